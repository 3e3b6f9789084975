package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/lease-agent/internal/application/port"
	"github.com/garyjia/lease-agent/internal/domain/entity"
)

// Option sets an optional field on an audit entry
type Option func(*entity.AuditEntry)

// WithStep attaches the step number the entry refers to
func WithStep(n int) Option {
	return func(e *entity.AuditEntry) {
		e.StepNumber = &n
	}
}

// WithConfidence attaches the confidence score behind the entry
func WithConfidence(score float64) Option {
	return func(e *entity.AuditEntry) {
		e.ConfidenceScore = &score
	}
}

// WithSLABreached annotates the entry with an externally computed SLA flag
func WithSLABreached(breached bool) Option {
	return func(e *entity.AuditEntry) {
		e.SLABreached = &breached
	}
}

// Recorder appends entries to the audit trail of lease requests
type Recorder struct {
	repo port.AuditRepository
	now  func() time.Time
}

// RecorderOption configures a Recorder
type RecorderOption func(*Recorder)

// WithClock replaces time.Now, mainly for tests
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		r.now = now
	}
}

// NewRecorder creates a recorder writing to repo
func NewRecorder(repo port.AuditRepository, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		repo: repo,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record persists a new entry with a fresh id and the current time.
// Store errors are returned wrapped, never swallowed.
func (r *Recorder) Record(ctx context.Context, requestID, action, performedBy, details string, opts ...Option) (*entity.AuditEntry, error) {
	if performedBy == "" {
		performedBy = entity.SystemActor
	}

	entry := &entity.AuditEntry{
		ID:          uuid.NewString(),
		RequestID:   requestID,
		Timestamp:   r.now().UTC(),
		Action:      action,
		PerformedBy: performedBy,
		Details:     details,
	}
	for _, opt := range opts {
		opt(entry)
	}

	if err := r.repo.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to record audit entry %q for %s: %w", action, requestID, err)
	}
	return entry, nil
}

// RecordOn persists an entry and appends it to the in-memory aggregate
func (r *Recorder) RecordOn(ctx context.Context, req *entity.LeaseRequest, action, performedBy, details string, opts ...Option) (*entity.AuditEntry, error) {
	entry, err := r.Record(ctx, req.ID, action, performedBy, details, opts...)
	if err != nil {
		return nil, err
	}
	if err := req.AppendAudit(*entry); err != nil {
		return nil, err
	}
	return entry, nil
}
