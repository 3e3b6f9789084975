package service

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/lease-agent/internal/application/audit"
	"github.com/garyjia/lease-agent/internal/application/dispatcher"
	"github.com/garyjia/lease-agent/internal/application/port"
	"github.com/garyjia/lease-agent/internal/application/workflow"
	"github.com/garyjia/lease-agent/internal/domain/entity"
	"github.com/garyjia/lease-agent/internal/domain/event"
	domainwf "github.com/garyjia/lease-agent/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// DocumentUpload is one document in a submission
type DocumentUpload struct {
	Name     string
	Type     entity.DocumentType
	MimeType string
	Content  []byte
}

// SubmitInput is the data needed to open a lease request
type SubmitInput struct {
	PropertyID      string
	PropertyAddress string
	RequestorEmail  string
	SubmittedBy     string
	Tenant          entity.Tenant
	Terms           entity.FinancialTerms
	Documents       []DocumentUpload
}

// Stats are the dashboard counters
type Stats struct {
	port.StatusCounts
	SuccessRate float64 `json:"success_rate"`
}

// LeaseRequestService manages lease request submission and queries
type LeaseRequestService interface {
	Submit(ctx context.Context, in SubmitInput) (*entity.LeaseRequest, error)
	Get(ctx context.Context, id string) (*entity.LeaseRequest, error)
	List(ctx context.Context, filter port.ListFilter) ([]*entity.LeaseRequest, error)
	Stats(ctx context.Context) (*Stats, error)
	AuditTrail(ctx context.Context, id string) ([]entity.AuditEntry, error)
	ExportAuditTrail(ctx context.Context, id string) ([]byte, error)
	ExportRegister(ctx context.Context, filter port.ListFilter) ([]byte, error)
}

type leaseRequestServiceImpl struct {
	repo       port.LeaseRequestRepository
	auditRepo  port.AuditRepository
	txManager  port.TransactionManager
	storage    port.DocumentStorage
	exporter   port.Exporter
	engine     workflow.Engine
	recorder   *audit.Recorder
	dispatcher dispatcher.Dispatcher
	logger     Logger
	newID      func() string
}

// NewLeaseRequestService creates a new LeaseRequestService
func NewLeaseRequestService(
	repo port.LeaseRequestRepository,
	auditRepo port.AuditRepository,
	txManager port.TransactionManager,
	storage port.DocumentStorage,
	exporter port.Exporter,
	engine workflow.Engine,
	recorder *audit.Recorder,
	d dispatcher.Dispatcher,
	logger Logger,
) LeaseRequestService {
	return &leaseRequestServiceImpl{
		repo:       repo,
		auditRepo:  auditRepo,
		txManager:  txManager,
		storage:    storage,
		exporter:   exporter,
		engine:     engine,
		recorder:   recorder,
		dispatcher: d,
		logger:     logger,
		newID:      NewRequestID,
	}
}

// NewRequestID returns a fresh "LR-" prefixed request id
func NewRequestID() string {
	return "LR-" + strings.ToUpper(uuid.NewString())
}

// Submit validates and stores a new request, initializes its workflow and
// completes request initiation. The request is left with document extraction active.
func (s *leaseRequestServiceImpl) Submit(ctx context.Context, in SubmitInput) (*entity.LeaseRequest, error) {
	id := s.newID()
	now := time.Now()

	docs := make([]*entity.LeaseDocument, 0, len(in.Documents))
	for i, up := range in.Documents {
		docID := entity.DocumentID(id, i)
		docs = append(docs, &entity.LeaseDocument{
			ID:         docID,
			Name:       up.Name,
			Type:       up.Type,
			MimeType:   up.MimeType,
			Size:       int64(len(up.Content)),
			UploadedAt: now,
			PayloadRef: payloadRef(id, docID, up.Name),
		})
	}

	r, err := entity.NewLeaseRequest(entity.NewLeaseRequestParams{
		ID:              id,
		PropertyID:      in.PropertyID,
		PropertyAddress: in.PropertyAddress,
		RequestorEmail:  in.RequestorEmail,
		Tenant:          in.Tenant,
		Terms:           in.Terms,
		Documents:       docs,
		CreatedAt:       now,
	})
	if err != nil {
		return nil, err
	}

	for i, up := range in.Documents {
		if err := s.storage.Save(ctx, docs[i].PayloadRef, up.Content); err != nil {
			s.removePayloads(ctx, docs[:i])
			return nil, fmt.Errorf("failed to store document %s: %w", docs[i].ID, err)
		}
	}

	submittedBy := in.SubmittedBy
	if submittedBy == "" {
		submittedBy = in.RequestorEmail
	}

	// creation, initialization and step 1 commit or roll back together
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.repo.Create(txCtx, r); err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		if _, err := s.recorder.Record(txCtx, id, entity.ActionRequestCreated, submittedBy,
			fmt.Sprintf("Lease request submitted for %s with %d document(s)", in.Tenant.Name, len(docs))); err != nil {
			return err
		}
		if _, err := s.engine.Initialize(txCtx, id); err != nil {
			return err
		}
		advanced, err := s.engine.Advance(txCtx, workflow.AdvanceCommand{
			RequestID:   id,
			StepNumber:  domainwf.StepRequestInitiation,
			Outcome:     domainwf.OutcomeSuccess,
			Notes:       "Request metadata and documents received",
			PerformedBy: entity.SystemActor,
		})
		if err != nil {
			return fmt.Errorf("failed to complete request initiation for %s: %w", id, err)
		}
		r = advanced
		return nil
	})
	if err != nil {
		s.removePayloads(ctx, docs)
		s.logger.Error("Failed to submit lease request", "request_id", id, "error", err)
		return nil, err
	}

	if s.dispatcher != nil {
		s.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeRequestSubmitted, id, map[string]interface{}{
			event.KeyRequestorEmail: r.RequestorEmail,
			event.KeyTenantName:     r.Tenant.Name,
			event.KeyStatus:         r.Status().String(),
		}))
	}

	s.logger.Info("Lease request submitted", "request_id", id, "documents", len(docs), "status", r.Status().String())
	return r, nil
}

// Get returns the full aggregate
func (s *leaseRequestServiceImpl) Get(ctx context.Context, id string) (*entity.LeaseRequest, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns requests matching the filter, newest first
func (s *leaseRequestServiceImpl) List(ctx context.Context, filter port.ListFilter) ([]*entity.LeaseRequest, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, fmt.Errorf("%w: %q", domainwf.ErrUnknownStatus, string(filter.Status))
	}
	return s.repo.List(ctx, filter)
}

// Stats returns the dashboard counters and success rate
func (s *leaseRequestServiceImpl) Stats(ctx context.Context) (*Stats, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count requests: %w", err)
	}
	return &Stats{StatusCounts: counts, SuccessRate: counts.SuccessRate()}, nil
}

// AuditTrail returns the entries of a request in chronological order
func (s *leaseRequestServiceImpl) AuditTrail(ctx context.Context, id string) ([]entity.AuditEntry, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.auditRepo.ListByRequest(ctx, id)
}

// ExportAuditTrail renders the audit trail of a request as a spreadsheet
func (s *leaseRequestServiceImpl) ExportAuditTrail(ctx context.Context, id string) ([]byte, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.exporter.ExportAuditTrail(r)
}

// ExportRegister renders the matching requests as a spreadsheet
func (s *leaseRequestServiceImpl) ExportRegister(ctx context.Context, filter port.ListFilter) ([]byte, error) {
	requests, err := s.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return s.exporter.ExportRegister(requests)
}

func (s *leaseRequestServiceImpl) removePayloads(ctx context.Context, docs []*entity.LeaseDocument) {
	for _, d := range docs {
		if err := s.storage.Delete(ctx, d.PayloadRef); err != nil {
			s.logger.Error("Failed to remove document payload", "payload_ref", d.PayloadRef, "error", err)
		}
	}
}

// payloadRef is "<request>/<document><ext>"
func payloadRef(requestID, documentID, name string) string {
	return path.Join(requestID, documentID+strings.ToLower(path.Ext(name)))
}
