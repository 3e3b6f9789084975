package http

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/lease-agent/internal/application/workflow"
	"github.com/garyjia/lease-agent/internal/domain/entity"
)

const dateLayout = "2006-01-02"

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// TenantBody is the tenant part of a create request
type TenantBody struct {
	Name string `json:"name"`
	ABN  string `json:"abn"`
	ACN  string `json:"acn"`
}

// DocumentBody is one base64 encoded document of a JSON create request
type DocumentBody struct {
	Name     string `json:"name" binding:"required"`
	Type     string `json:"type"`
	MimeType string `json:"mime_type"`
	Content  string `json:"content" binding:"required,base64"`
}

// CreateLeaseRequestBody is the body of POST /api/lease-requests. Field level
// rules live on the entity so every problem is reported in one response.
type CreateLeaseRequestBody struct {
	PropertyID       string          `json:"property_id"`
	PropertyAddress  string          `json:"property_address"`
	RequestorEmail   string          `json:"requestor_email"`
	SubmittedBy      string          `json:"submitted_by"`
	Tenant           TenantBody      `json:"tenant"`
	RentAmount       decimal.Decimal `json:"rent_amount"`
	SecurityDeposit  decimal.Decimal `json:"security_deposit"`
	LeaseTerm        int             `json:"lease_term"`
	CommencementDate string          `json:"commencement_date"`
	Documents        []DocumentBody  `json:"documents" binding:"dive"`
}

// AdvanceStepBody reports the outcome of an external step
type AdvanceStepBody struct {
	Outcome     string `json:"outcome" binding:"required,oneof=success failure"`
	Notes       string `json:"notes"`
	PerformedBy string `json:"performed_by"`
	SLABreached *bool  `json:"sla_breached"`
}

// ResolveReviewBody approves or rejects a step in review
type ResolveReviewBody struct {
	Resolver      string                          `json:"resolver" binding:"required"`
	Approved      *bool                           `json:"approved" binding:"required"`
	Notes         string                          `json:"notes"`
	CorrectedData map[string]entity.ExtractedData `json:"corrected_data"`
}

// ExtractionBody is an agent result delivered out of band
type ExtractionBody struct {
	DocumentID      string               `json:"document_id" binding:"required"`
	ConfidenceScore *float64             `json:"confidence_score" binding:"required,gte=0,lte=1"`
	Data            entity.ExtractedData `json:"data"`
	StepNumber      int                  `json:"step_number" binding:"gte=0"`
}

// ListQuery holds query parameters for listing requests
type ListQuery struct {
	Status string `form:"status"`
	Search string `form:"search"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

// TermsResponse is the financial terms view
type TermsResponse struct {
	RentAmount       string `json:"rent_amount"`
	SecurityDeposit  string `json:"security_deposit"`
	LeaseTerm        int    `json:"lease_term"`
	CommencementDate string `json:"commencement_date"`
}

// LeaseRequestResponse is a lease request in API responses
type LeaseRequestResponse struct {
	ID              string                        `json:"id"`
	PropertyID      string                        `json:"property_id,omitempty"`
	PropertyAddress string                        `json:"property_address"`
	RequestorEmail  string                        `json:"requestor_email"`
	Tenant          entity.Tenant                 `json:"tenant"`
	Terms           TermsResponse                 `json:"terms"`
	Status          string                        `json:"status"`
	StatusLabel     string                        `json:"status_label"`
	CurrentStep     int                           `json:"current_step"`
	Progress        float64                       `json:"progress"`
	LowConfidence   bool                          `json:"low_confidence"`
	Documents       []*entity.LeaseDocument       `json:"documents"`
	Steps           []entity.WorkflowStepInstance `json:"steps,omitempty"`
	Version         int64                         `json:"version"`
	CreatedAt       string                        `json:"created_at"`
	UpdatedAt       string                        `json:"updated_at"`
}

// ExtractionResponse reports what the engine did with an extraction result
type ExtractionResponse struct {
	Request      LeaseRequestResponse `json:"request"`
	Verdict      string               `json:"verdict,omitempty"`
	Stale        bool                 `json:"stale"`
	AutoAdvanced bool                 `json:"auto_advanced"`
}

// toLeaseRequestResponse converts the aggregate to its API form. Steps are
// only included when withSteps is set.
func toLeaseRequestResponse(r *entity.LeaseRequest, withSteps bool, reviewThreshold float64) LeaseRequestResponse {
	label, err := r.Status().Label()
	if err != nil {
		label = r.Status().String()
	}
	resp := LeaseRequestResponse{
		ID:              r.ID,
		PropertyID:      r.PropertyID,
		PropertyAddress: r.PropertyAddress,
		RequestorEmail:  r.RequestorEmail,
		Tenant:          r.Tenant,
		Terms: TermsResponse{
			RentAmount:       r.Terms.RentAmount.StringFixed(2),
			SecurityDeposit:  r.Terms.SecurityDeposit.StringFixed(2),
			LeaseTerm:        r.Terms.LeaseTermMonths,
			CommencementDate: r.Terms.CommencementDate.Format(dateLayout),
		},
		Status:        r.Status().String(),
		StatusLabel:   label,
		CurrentStep:   r.CurrentStep(),
		Progress:      r.ProgressPercent(),
		LowConfidence: r.HasLowConfidence(reviewThreshold),
		Documents:     r.Documents(),
		Version:       r.Version(),
		CreatedAt:     r.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     r.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if withSteps {
		resp.Steps = r.Steps()
	}
	return resp
}

func toExtractionResponse(out *workflow.ExtractionOutcome, reviewThreshold float64) ExtractionResponse {
	return ExtractionResponse{
		Request:      toLeaseRequestResponse(out.Request, true, reviewThreshold),
		Verdict:      string(out.Decision.Verdict),
		Stale:        out.Stale,
		AutoAdvanced: out.AutoAdvanced,
	}
}
