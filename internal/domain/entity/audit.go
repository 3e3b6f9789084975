package entity

import "time"

// AuditEntry is one immutable line of a request's timeline
type AuditEntry struct {
	ID              string    `json:"id"`
	RequestID       string    `json:"request_id"`
	Timestamp       time.Time `json:"timestamp"`
	Action          string    `json:"action"`
	PerformedBy     string    `json:"performed_by"`
	Details         string    `json:"details"`
	StepNumber      *int      `json:"step_number,omitempty"`
	ConfidenceScore *float64  `json:"confidence_score,omitempty"`
	SLABreached     *bool     `json:"sla_breached,omitempty"`
}
