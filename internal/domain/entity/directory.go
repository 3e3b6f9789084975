package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PropertyType classifies a leasable property
type PropertyType string

const (
	PropertyTypeRetail     PropertyType = "retail"
	PropertyTypeOffice     PropertyType = "office"
	PropertyTypeIndustrial PropertyType = "industrial"
	PropertyTypeMixed      PropertyType = "mixed"
)

// IsValid returns true for the four known property types
func (t PropertyType) IsValid() bool {
	switch t {
	case PropertyTypeRetail, PropertyTypeOffice, PropertyTypeIndustrial, PropertyTypeMixed:
		return true
	}
	return false
}

// Property is a directory record a lease request refers to by PropertyID
type Property struct {
	ID            string          `json:"id" yaml:"id"`
	Address       string          `json:"address" yaml:"address"`
	UnitNumber    string          `json:"unit_number,omitempty" yaml:"unit_number"`
	Type          PropertyType    `json:"property_type" yaml:"property_type"`
	UsageType     string          `json:"usage_type" yaml:"usage_type"`
	AvailableArea decimal.Decimal `json:"available_area" yaml:"available_area"`
	SAPID         string          `json:"sap_id" yaml:"sap_id"`
	Available     bool            `json:"is_available" yaml:"is_available"`
}

// Validate reports every problem with the record under prefix
func (p Property) Validate(prefix string, v *ValidationError) {
	if strings.TrimSpace(p.ID) == "" {
		v.Add(prefix+"id", "is required")
	}
	if strings.TrimSpace(p.Address) == "" {
		v.Add(prefix+"address", "is required")
	}
	if !p.Type.IsValid() {
		v.Add(prefix+"property_type", "must be one of retail, office, industrial, mixed")
	}
	if p.AvailableArea.IsNegative() {
		v.Add(prefix+"available_area", "must not be negative")
	}
}

// BusinessPartner is a directory record for a prospective tenant
type BusinessPartner struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	ABN       string    `json:"abn,omitempty" yaml:"abn"`
	ACN       string    `json:"acn,omitempty" yaml:"acn"`
	Address   string    `json:"address" yaml:"address"`
	Phone     string    `json:"phone,omitempty" yaml:"phone"`
	Email     string    `json:"email,omitempty" yaml:"email"`
	SAPID     string    `json:"sap_id,omitempty" yaml:"sap_id"`
	Verified  bool      `json:"verified" yaml:"verified"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Tenant returns the partner as the tenant of a lease request
func (b BusinessPartner) Tenant() Tenant {
	return Tenant{Name: b.Name, ABN: b.ABN, ACN: b.ACN}
}

// Validate reports every problem with the record under prefix
func (b BusinessPartner) Validate(prefix string, v *ValidationError) {
	if strings.TrimSpace(b.ID) == "" {
		v.Add(prefix+"id", "is required")
	}
	if strings.TrimSpace(b.Name) == "" {
		v.Add(prefix+"name", "is required")
	}
	if b.ABN != "" && !ValidABN(b.ABN) {
		v.Add(prefix+"abn", "must match format NN NNN NNN NNN")
	}
	if b.ACN != "" && !ValidACN(b.ACN) {
		v.Add(prefix+"acn", "must match format NNN NNN NNN")
	}
	if b.Email != "" {
		if err := validate.Var(b.Email, "email"); err != nil {
			v.Add(prefix+"email", "must be a valid email address")
		}
	}
}

// Directory is a batch of reference records loaded together
type Directory struct {
	Properties       []Property        `yaml:"properties"`
	BusinessPartners []BusinessPartner `yaml:"business_partners"`
}

// Validate checks every record and rejects duplicate ids
func (d Directory) Validate() error {
	v := &ValidationError{}
	seen := make(map[string]bool)
	for i, p := range d.Properties {
		prefix := fmt.Sprintf("properties[%d].", i)
		p.Validate(prefix, v)
		if p.ID != "" && seen["p/"+p.ID] {
			v.Add(prefix+"id", "duplicates %q", p.ID)
		}
		seen["p/"+p.ID] = true
	}
	for i, b := range d.BusinessPartners {
		prefix := fmt.Sprintf("business_partners[%d].", i)
		b.Validate(prefix, v)
		if b.ID != "" && seen["b/"+b.ID] {
			v.Add(prefix+"id", "duplicates %q", b.ID)
		}
		seen["b/"+b.ID] = true
	}
	return v.OrNil()
}
