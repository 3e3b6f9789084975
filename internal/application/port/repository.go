package port

import (
	"context"
	"errors"

	"github.com/garyjia/lease-agent/internal/domain/entity"
	"github.com/garyjia/lease-agent/internal/domain/workflow"
)

var (
	// ErrNotFound is returned when a lease request does not exist
	ErrNotFound = errors.New("not found")

	// ErrPersistence wraps store failures
	ErrPersistence = errors.New("persistence failure")
)

// ListFilter narrows a lease request listing
type ListFilter struct {
	// Status matches exactly when set
	Status workflow.Status
	// Search matches tenant name, property address or id, case-insensitive
	Search string
	Limit  int
	Offset int
}

// StatusCounts are the dashboard counters
type StatusCounts struct {
	Total         int `json:"total"`
	Completed     int `json:"completed"`
	PendingReview int `json:"pending_review"`
	Processing    int `json:"processing"`
	Failed        int `json:"failed"`
}

// SuccessRate is completed over total in percent, 0 when empty
func (c StatusCounts) SuccessRate() float64 {
	if c.Total == 0 {
		return 0
	}
	return float64(c.Completed) / float64(c.Total) * 100
}

// PendingExtraction identifies a document the agent has not scored yet
type PendingExtraction struct {
	RequestID  string
	DocumentID string
	StepNumber int
}

// LeaseRequestRepository persists the lease request aggregate with its
// documents, steps and audit trail
type LeaseRequestRepository interface {
	// Create inserts a new request and its documents and steps
	Create(ctx context.Context, r *entity.LeaseRequest) error

	// GetByID loads the full aggregate. Returns ErrNotFound when absent.
	GetByID(ctx context.Context, id string) (*entity.LeaseRequest, error)

	// Update writes status, steps and documents if the stored version still
	// matches r.Version(), then bumps the version. A mismatch returns
	// workflow.ErrConcurrentModification.
	Update(ctx context.Context, r *entity.LeaseRequest) error

	// List returns requests newest first
	List(ctx context.Context, filter ListFilter) ([]*entity.LeaseRequest, error)

	// CountByStatus returns the dashboard counters
	CountByStatus(ctx context.Context) (StatusCounts, error)

	// ListAwaitingExtraction returns unscored documents of requests whose
	// active step is document extraction
	ListAwaitingExtraction(ctx context.Context, limit int) ([]PendingExtraction, error)
}

// AuditRepository persists audit entries. Entries are never updated or deleted.
type AuditRepository interface {
	Append(ctx context.Context, entry *entity.AuditEntry) error
	ListByRequest(ctx context.Context, requestID string) ([]entity.AuditEntry, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// DirectoryRepository stores the property and business partner reference
// records a lease request form is filled from
type DirectoryRepository interface {
	// ListProperties returns properties ordered by id, only available ones when asked
	ListProperties(ctx context.Context, availableOnly bool) ([]entity.Property, error)

	// GetProperty returns one property. Returns ErrNotFound when absent.
	GetProperty(ctx context.Context, id string) (*entity.Property, error)

	// ListBusinessPartners returns partners ordered by name, optionally
	// matching search on name, ABN or id
	ListBusinessPartners(ctx context.Context, search string) ([]entity.BusinessPartner, error)

	// UpsertProperty inserts or replaces a property by id
	UpsertProperty(ctx context.Context, p *entity.Property) error

	// UpsertBusinessPartner inserts or replaces a partner by id
	UpsertBusinessPartner(ctx context.Context, b *entity.BusinessPartner) error
}
