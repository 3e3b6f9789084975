package http

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/garyjia/lease-agent/internal/application/port"
	"github.com/garyjia/lease-agent/internal/application/service"
	"github.com/garyjia/lease-agent/internal/application/workflow"
	"github.com/garyjia/lease-agent/internal/domain/entity"
	domainwf "github.com/garyjia/lease-agent/internal/domain/workflow"
	"github.com/garyjia/lease-agent/pkg/utils"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	defaultPageSize = 20
	maxPageSize     = 100
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	leaseService      service.LeaseRequestService
	extractionService service.ExtractionService
	directoryService  service.DirectoryService
	engine            workflow.Engine
	logger            Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	leaseService service.LeaseRequestService,
	extractionService service.ExtractionService,
	directoryService service.DirectoryService,
	engine workflow.Engine,
	logger Logger,
) *Handlers {
	return &Handlers{
		leaseService:      leaseService,
		extractionService: extractionService,
		directoryService:  directoryService,
		engine:            engine,
		logger:            logger,
	}
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// CreateLeaseRequest handles POST /api/lease-requests. Accepts JSON with
// base64 documents or multipart/form-data with files under "documents".
func (h *Handlers) CreateLeaseRequest(c *gin.Context) {
	var (
		in  service.SubmitInput
		err error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		in, err = h.submitInputFromForm(c)
	} else {
		in, err = h.submitInputFromJSON(c)
	}
	if err != nil {
		var be bindError
		if errors.As(err, &be) {
			h.respondBindError(c, be.err)
			return
		}
		h.respondError(c, "invalid lease request", err)
		return
	}

	r, err := h.leaseService.Submit(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, "failed to submit lease request", err)
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    h.view(r, true),
	})
}

// bindError marks failures from gin binding
type bindError struct{ err error }

func (e bindError) Error() string { return e.err.Error() }

func (h *Handlers) submitInputFromJSON(c *gin.Context) (service.SubmitInput, error) {
	var body CreateLeaseRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		return service.SubmitInput{}, bindError{err}
	}

	commencement, err := parseDate(body.CommencementDate)
	if err != nil {
		return service.SubmitInput{}, err
	}

	in := service.SubmitInput{
		PropertyID:      body.PropertyID,
		PropertyAddress: body.PropertyAddress,
		RequestorEmail:  body.RequestorEmail,
		SubmittedBy:     body.SubmittedBy,
		Tenant:          entity.Tenant(body.Tenant),
		Terms: entity.FinancialTerms{
			RentAmount:       body.RentAmount,
			SecurityDeposit:  body.SecurityDeposit,
			LeaseTermMonths:  body.LeaseTerm,
			CommencementDate: commencement,
		},
	}
	for _, d := range body.Documents {
		content, err := base64.StdEncoding.DecodeString(d.Content)
		if err != nil {
			return service.SubmitInput{}, bindError{err}
		}
		in.Documents = append(in.Documents, service.DocumentUpload{
			Name:     d.Name,
			Type:     documentType(d.Type),
			MimeType: mimeTypeFor(d.MimeType, d.Name),
			Content:  content,
		})
	}
	return in, nil
}

func (h *Handlers) submitInputFromForm(c *gin.Context) (service.SubmitInput, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return service.SubmitInput{}, bindError{err}
	}

	v := &entity.ValidationError{}
	rent := formDecimal(c, "rent_amount", v)
	deposit := formDecimal(c, "security_deposit", v)
	term := 0
	if raw := c.PostForm("lease_term"); raw != "" {
		if term, err = strconv.Atoi(raw); err != nil {
			v.Add("lease_term", "must be a whole number of months")
		}
	}
	commencement, err := parseDate(c.PostForm("commencement_date"))
	if err != nil {
		v.Add("commencement_date", "must be a date in YYYY-MM-DD format")
	}
	if err := v.OrNil(); err != nil {
		return service.SubmitInput{}, err
	}

	in := service.SubmitInput{
		PropertyID:      c.PostForm("property_id"),
		PropertyAddress: c.PostForm("property_address"),
		RequestorEmail:  c.PostForm("requestor_email"),
		SubmittedBy:     c.PostForm("submitted_by"),
		Tenant: entity.Tenant{
			Name: c.PostForm("tenant_name"),
			ABN:  c.PostForm("tenant_abn"),
			ACN:  c.PostForm("tenant_acn"),
		},
		Terms: entity.FinancialTerms{
			RentAmount:       rent,
			SecurityDeposit:  deposit,
			LeaseTermMonths:  term,
			CommencementDate: commencement,
		},
	}

	types := form.Value["document_types"]
	for i, fh := range form.File["documents"] {
		f, err := fh.Open()
		if err != nil {
			return service.SubmitInput{}, fmt.Errorf("failed to open upload %s: %w", fh.Filename, err)
		}
		content, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return service.SubmitInput{}, fmt.Errorf("failed to read upload %s: %w", fh.Filename, err)
		}

		docType := ""
		if i < len(types) {
			docType = types[i]
		}
		in.Documents = append(in.Documents, service.DocumentUpload{
			Name:     fh.Filename,
			Type:     documentType(docType),
			MimeType: mimeTypeFor(fh.Header.Get("Content-Type"), fh.Filename),
			Content:  content,
		})
	}
	return in, nil
}

// ListLeaseRequests handles GET /api/lease-requests
func (h *Handlers) ListLeaseRequests(c *gin.Context) {
	filter, ok := h.listFilter(c)
	if !ok {
		return
	}

	requests, err := h.leaseService.List(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, "failed to list lease requests", err)
		return
	}

	items := make([]LeaseRequestResponse, 0, len(requests))
	for _, r := range requests {
		items = append(items, h.view(r, false))
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: items})
}

// GetStats handles GET /api/lease-requests/stats
func (h *Handlers) GetStats(c *gin.Context) {
	stats, err := h.leaseService.Stats(c.Request.Context())
	if err != nil {
		h.respondError(c, "failed to load stats", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: stats})
}

// GetLeaseRequest handles GET /api/lease-requests/:id
func (h *Handlers) GetLeaseRequest(c *gin.Context) {
	r, err := h.leaseService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "failed to get lease request", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: h.view(r, true)})
}

// GetWorkflowSteps handles GET /api/lease-requests/:id/workflow-steps
func (h *Handlers) GetWorkflowSteps(c *gin.Context) {
	r, err := h.leaseService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "failed to get lease request", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: r.Steps()})
}

// AdvanceStep handles POST /api/lease-requests/:id/steps/:step/advance
func (h *Handlers) AdvanceStep(c *gin.Context) {
	step, ok := h.stepParam(c)
	if !ok {
		return
	}
	var body AdvanceStepBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.respondBindError(c, err)
		return
	}

	r, err := h.engine.Advance(c.Request.Context(), workflow.AdvanceCommand{
		RequestID:   c.Param("id"),
		StepNumber:  step,
		Outcome:     domainwf.Outcome(body.Outcome),
		Notes:       utils.SanitizeString(body.Notes),
		PerformedBy: utils.SanitizeLine(body.PerformedBy),
		SLABreached: body.SLABreached,
	})
	if err != nil {
		h.respondError(c, "failed to advance step", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: h.view(r, true)})
}

// ResolveReview handles POST /api/lease-requests/:id/steps/:step/review
func (h *Handlers) ResolveReview(c *gin.Context) {
	step, ok := h.stepParam(c)
	if !ok {
		return
	}
	var body ResolveReviewBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.respondBindError(c, err)
		return
	}

	r, err := h.engine.ResolveReview(c.Request.Context(), workflow.ReviewDecision{
		RequestID:     c.Param("id"),
		StepNumber:    step,
		Resolver:      utils.SanitizeLine(body.Resolver),
		Approved:      *body.Approved,
		Notes:         utils.SanitizeString(body.Notes),
		CorrectedData: body.CorrectedData,
	})
	if err != nil {
		h.respondError(c, "failed to resolve review", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: h.view(r, true)})
}

// RecordExtraction handles POST /api/lease-requests/:id/extractions
func (h *Handlers) RecordExtraction(c *gin.Context) {
	var body ExtractionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.respondBindError(c, err)
		return
	}

	out, err := h.engine.RecordExtractionResult(c.Request.Context(), workflow.ExtractionSignal{
		RequestID:       c.Param("id"),
		DocumentID:      body.DocumentID,
		ConfidenceScore: *body.ConfidenceScore,
		Data:            body.Data,
		StepNumber:      body.StepNumber,
	})
	if err != nil {
		h.respondError(c, "failed to record extraction", err)
		return
	}

	status := http.StatusOK
	if out.Stale {
		status = http.StatusAccepted
	}
	c.JSON(status, Response{Success: true, Data: toExtractionResponse(out, h.engine.ReviewThreshold())})
}

// RunExtraction handles POST /api/lease-requests/:id/extract
func (h *Handlers) RunExtraction(c *gin.Context) {
	run, err := h.extractionService.RunExtraction(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "extraction failed", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: run})
}

// GetAuditTrail handles GET /api/lease-requests/:id/audit
func (h *Handlers) GetAuditTrail(c *gin.Context) {
	entries, err := h.leaseService.AuditTrail(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "failed to load audit trail", err)
		return
	}
	if entries == nil {
		entries = []entity.AuditEntry{}
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: entries})
}

// ExportAuditTrail handles GET /api/lease-requests/:id/audit/export
func (h *Handlers) ExportAuditTrail(c *gin.Context) {
	id := c.Param("id")
	data, err := h.leaseService.ExportAuditTrail(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "failed to export audit trail", err)
		return
	}
	attachment(c, fmt.Sprintf("%s-audit.xlsx", id), data)
}

// ExportRegister handles GET /api/lease-requests/export
func (h *Handlers) ExportRegister(c *gin.Context) {
	filter, ok := h.listFilter(c)
	if !ok {
		return
	}
	data, err := h.leaseService.ExportRegister(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, "failed to export register", err)
		return
	}
	attachment(c, fmt.Sprintf("lease-register-%s.xlsx", time.Now().UTC().Format("20060102")), data)
}

func (h *Handlers) listFilter(c *gin.Context) (port.ListFilter, bool) {
	var q ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.respondBindError(c, err)
		return port.ListFilter{}, false
	}

	var status domainwf.Status
	if q.Status != "" {
		parsed, err := domainwf.ParseStatus(q.Status)
		if err != nil {
			c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid status filter: " + err.Error()})
			return port.ListFilter{}, false
		}
		status = parsed
	}

	if q.Limit <= 0 || q.Limit > maxPageSize {
		q.Limit = defaultPageSize
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return port.ListFilter{
		Status: status,
		Search: utils.SanitizeLine(q.Search),
		Limit:  q.Limit,
		Offset: q.Offset,
	}, true
}

func (h *Handlers) view(r *entity.LeaseRequest, withSteps bool) LeaseRequestResponse {
	return toLeaseRequestResponse(r, withSteps, h.engine.ReviewThreshold())
}

func (h *Handlers) stepParam(c *gin.Context) (int, bool) {
	raw := c.Param("step")
	n, err := strconv.Atoi(raw)
	if err == nil {
		err = domainwf.ValidateStepNumber(n)
	} else {
		err = fmt.Errorf("%w: %q", domainwf.ErrInvalidStepNumber, raw)
	}
	if err != nil {
		h.respondError(c, "invalid step", err)
		return 0, false
	}
	return n, true
}

func attachment(c *gin.Context, filename string, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}

// parseDate reads a YYYY-MM-DD date. Empty input is the zero time.
func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		v := &entity.ValidationError{}
		v.Add("commencement_date", "must be a date in YYYY-MM-DD format")
		return time.Time{}, v
	}
	return t, nil
}

func formDecimal(c *gin.Context, field string, v *entity.ValidationError) decimal.Decimal {
	raw := strings.TrimSpace(c.PostForm(field))
	if raw == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		v.Add(field, "must be a decimal amount")
	}
	return d
}

// documentType defaults a missing type to other
func documentType(raw string) entity.DocumentType {
	if raw == "" {
		return entity.DocumentTypeOther
	}
	return entity.DocumentType(strings.ToLower(raw))
}

// mimeTypeFor prefers the declared type, then the file extension
func mimeTypeFor(declared, filename string) string {
	if declared != "" && declared != "application/octet-stream" {
		if mt, _, err := mime.ParseMediaType(declared); err == nil {
			return mt
		}
	}
	if mt := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); mt != "" {
		if base, _, err := mime.ParseMediaType(mt); err == nil {
			return base
		}
	}
	return "application/octet-stream"
}
