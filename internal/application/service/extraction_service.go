package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/lease-agent/internal/application/port"
	"github.com/garyjia/lease-agent/internal/application/workflow"
	"github.com/garyjia/lease-agent/internal/domain/entity"
)

// ExtractionRun summarizes one pass of the agent over a request
type ExtractionRun struct {
	RequestID        string
	StepNumber       int
	Submitted        int
	Recorded         int
	Stale            int
	FlaggedForReview bool
	AutoAdvanced     bool
}

// ExtractionService sends unscored documents to the extraction agent and
// feeds the results back to the engine
type ExtractionService interface {
	RunExtraction(ctx context.Context, requestID string) (*ExtractionRun, error)
}

type extractionServiceImpl struct {
	repo    port.LeaseRequestRepository
	storage port.DocumentStorage
	reader  port.TextExtractor
	agent   port.ExtractionAgent
	engine  workflow.Engine
	timeout time.Duration
	logger  Logger
}

// NewExtractionService creates a new ExtractionService. timeout bounds each agent call.
func NewExtractionService(
	repo port.LeaseRequestRepository,
	storage port.DocumentStorage,
	reader port.TextExtractor,
	agent port.ExtractionAgent,
	engine workflow.Engine,
	timeout time.Duration,
	logger Logger,
) ExtractionService {
	return &extractionServiceImpl{
		repo:    repo,
		storage: storage,
		reader:  reader,
		agent:   agent,
		engine:  engine,
		timeout: timeout,
		logger:  logger,
	}
}

// RunExtraction extracts every unscored document of the request. On agent
// failure nothing is recorded and the error wraps port.ErrAgentUnavailable.
func (s *extractionServiceImpl) RunExtraction(ctx context.Context, requestID string) (*ExtractionRun, error) {
	r, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	run := &ExtractionRun{RequestID: requestID}
	active, ok := r.ActiveStep()
	if !ok || r.IsTerminal() {
		return run, nil
	}
	run.StepNumber = active.StepNumber

	req := port.ExtractionRequest{RequestID: requestID}
	for _, d := range r.Documents() {
		if d.IsScored() {
			continue
		}
		doc, err := s.loadDocument(ctx, d)
		if err != nil {
			return nil, err
		}
		req.Documents = append(req.Documents, doc)
	}
	if len(req.Documents) == 0 {
		return run, nil
	}
	run.Submitted = len(req.Documents)

	agentCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		agentCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.logger.Info("Requesting document extraction", "request_id", requestID, "documents", run.Submitted, "step", run.StepNumber)
	results, err := s.agent.Extract(agentCtx, req)
	if err != nil {
		s.logger.Error("Extraction agent failed", "request_id", requestID, "error", err)
		if errors.Is(err, port.ErrAgentUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", port.ErrAgentUnavailable, err)
	}

	for _, res := range results {
		out, err := s.engine.RecordExtractionResult(ctx, workflow.ExtractionSignal{
			RequestID:       requestID,
			DocumentID:      res.DocumentID,
			ConfidenceScore: res.ConfidenceScore,
			Data:            res.Data,
			StepNumber:      run.StepNumber,
		})
		if err != nil {
			return run, fmt.Errorf("failed to record extraction for %s: %w", res.DocumentID, err)
		}
		if out.Stale {
			run.Stale++
			continue
		}
		run.Recorded++
		run.FlaggedForReview = run.FlaggedForReview || out.Decision.NeedsReview()
		run.AutoAdvanced = run.AutoAdvanced || out.AutoAdvanced
	}

	return run, nil
}

func (s *extractionServiceImpl) loadDocument(ctx context.Context, d *entity.LeaseDocument) (port.ExtractionDocument, error) {
	payload, err := s.storage.Read(ctx, d.PayloadRef)
	if err != nil {
		return port.ExtractionDocument{}, fmt.Errorf("failed to read document %s: %w", d.ID, err)
	}

	doc := port.ExtractionDocument{
		ID:           d.ID,
		Name:         d.Name,
		DeclaredType: d.Type,
		MimeType:     d.MimeType,
		Payload:      payload,
	}

	if s.reader != nil {
		text, err := s.reader.ExtractText(ctx, payload, d.MimeType)
		if err != nil {
			// the agent can still work from the raw payload
			s.logger.Error("Failed to extract document text", "document_id", d.ID, "error", err)
		} else {
			doc.Text = text
		}
	}
	return doc, nil
}
