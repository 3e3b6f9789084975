package entity

import (
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

var (
	abnPattern = regexp.MustCompile(`^\d{2}\s\d{3}\s\d{3}\s\d{3}$`)
	acnPattern = regexp.MustCompile(`^\d{3}\s\d{3}\s\d{3}$`)
)

// Tenant identifies the party taking the lease
type Tenant struct {
	Name string `json:"name"`
	ABN  string `json:"abn,omitempty"`
	ACN  string `json:"acn,omitempty"`
}

// FinancialTerms are the money and date terms of the lease
type FinancialTerms struct {
	RentAmount       decimal.Decimal `json:"rent_amount"`
	SecurityDeposit  decimal.Decimal `json:"security_deposit"`
	LeaseTermMonths  int             `json:"lease_term"`
	CommencementDate time.Time       `json:"commencement_date"`
}

// ValidABN checks the "NN NNN NNN NNN" format. No checksum is computed.
func ValidABN(abn string) bool {
	return abnPattern.MatchString(abn)
}

// ValidACN checks the "NNN NNN NNN" format. No checksum is computed.
func ValidACN(acn string) bool {
	return acnPattern.MatchString(acn)
}

func (t Tenant) validate(v *ValidationError) {
	if t.Name == "" {
		v.Add("tenant.name", "is required")
	}
	if t.ABN != "" && !ValidABN(t.ABN) {
		v.Add("tenant.abn", "must match format NN NNN NNN NNN")
	}
	if t.ACN != "" && !ValidACN(t.ACN) {
		v.Add("tenant.acn", "must match format NNN NNN NNN")
	}
}

func (f FinancialTerms) validate(v *ValidationError) {
	if !f.RentAmount.IsPositive() {
		v.Add("rent_amount", "must be greater than zero")
	}
	if f.SecurityDeposit.IsNegative() {
		v.Add("security_deposit", "must not be negative")
	}
	if f.LeaseTermMonths < 1 {
		v.Add("lease_term", "must be at least 1 month")
	}
	if f.CommencementDate.IsZero() {
		v.Add("commencement_date", "is required")
	}
}
