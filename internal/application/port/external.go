package port

import (
	"context"
	"errors"

	"github.com/garyjia/lease-agent/internal/domain/entity"
)

// ErrAgentUnavailable wraps extraction agent failures and timeouts
var ErrAgentUnavailable = errors.New("extraction agent unavailable")

// ExtractionDocument is one document handed to the extraction agent
type ExtractionDocument struct {
	ID           string
	Name         string
	DeclaredType entity.DocumentType
	MimeType     string
	Payload      []byte
	// Text is the extracted plain text when the payload is a readable document
	Text string
}

// ExtractionRequest asks the agent to read the documents of one request
type ExtractionRequest struct {
	RequestID string
	Documents []ExtractionDocument
}

// ExtractionResult is the agent's answer for one document
type ExtractionResult struct {
	DocumentID      string
	Data            entity.ExtractedData
	ConfidenceScore float64
}

// ExtractionAgent pulls lease fields out of documents
type ExtractionAgent interface {
	Extract(ctx context.Context, req ExtractionRequest) ([]ExtractionResult, error)
}

// Notification is a message to the requestor of a lease request
type Notification struct {
	RequestID string
	Recipient string
	Title     string
	Body      string
}

// Notifier delivers notifications to requestors
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Unlock releases a lock obtained from Locker
type Unlock func()

// Locker grants single-writer access per key. TryLock does not wait: when the
// key is held it returns workflow.ErrConcurrentModification.
type Locker interface {
	TryLock(ctx context.Context, key string) (Unlock, error)
}

// Exporter renders lease request data as spreadsheet files
type Exporter interface {
	ExportAuditTrail(r *entity.LeaseRequest) ([]byte, error)
	ExportRegister(requests []*entity.LeaseRequest) ([]byte, error)
}
