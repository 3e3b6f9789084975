package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// LeaseDocument is a file submitted with a lease request
type LeaseDocument struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Type       DocumentType `json:"type"`
	PayloadRef string       `json:"payload_ref"`
	MimeType   string       `json:"mime_type"`
	Size       int64        `json:"size"`
	UploadedAt time.Time    `json:"uploaded_at"`

	// Set once the extraction agent has reported on the document
	ExtractedData   *ExtractedData `json:"extracted_data,omitempty"`
	ConfidenceScore *float64       `json:"confidence_score,omitempty"`
}

// ExtractedData holds the fields the extraction agent pulled out of a document
type ExtractedData struct {
	TenantName        string               `json:"tenant_name,omitempty"`
	ABN               string               `json:"abn,omitempty"`
	ACN               string               `json:"acn,omitempty"`
	PropertyAddress   string               `json:"property_address,omitempty"`
	LeaseTerm         *int                 `json:"lease_term,omitempty"`
	RentAmount        *decimal.Decimal     `json:"rent_amount,omitempty"`
	SecurityDeposit   *decimal.Decimal     `json:"security_deposit,omitempty"`
	SpecialConditions []string             `json:"special_conditions,omitempty"`
	KeyDates          map[string]time.Time `json:"key_dates,omitempty"`
	Fields            map[string]string    `json:"fields,omitempty"`
}

// DocumentID builds the id for the index-th document of a request
func DocumentID(requestID string, index int) string {
	return fmt.Sprintf("doc_%s_%d", requestID, index)
}

// IsScored returns true once a confidence score was recorded
func (d *LeaseDocument) IsScored() bool {
	return d.ConfidenceScore != nil
}

func (d *LeaseDocument) clone() *LeaseDocument {
	c := *d
	if d.ConfidenceScore != nil {
		score := *d.ConfidenceScore
		c.ConfidenceScore = &score
	}
	if d.ExtractedData != nil {
		data := d.ExtractedData.Clone()
		c.ExtractedData = &data
	}
	return &c
}

// Clone returns a deep copy
func (e ExtractedData) Clone() ExtractedData {
	c := e
	if e.LeaseTerm != nil {
		term := *e.LeaseTerm
		c.LeaseTerm = &term
	}
	if e.RentAmount != nil {
		rent := *e.RentAmount
		c.RentAmount = &rent
	}
	if e.SecurityDeposit != nil {
		deposit := *e.SecurityDeposit
		c.SecurityDeposit = &deposit
	}
	if e.SpecialConditions != nil {
		c.SpecialConditions = append([]string(nil), e.SpecialConditions...)
	}
	if e.KeyDates != nil {
		c.KeyDates = make(map[string]time.Time, len(e.KeyDates))
		for k, v := range e.KeyDates {
			c.KeyDates[k] = v
		}
	}
	if e.Fields != nil {
		c.Fields = make(map[string]string, len(e.Fields))
		for k, v := range e.Fields {
			c.Fields[k] = v
		}
	}
	return c
}
