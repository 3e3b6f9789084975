package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/lease-agent/internal/application/audit"
	"github.com/garyjia/lease-agent/internal/application/dispatcher"
	"github.com/garyjia/lease-agent/internal/application/gate"
	"github.com/garyjia/lease-agent/internal/application/port"
	"github.com/garyjia/lease-agent/internal/domain/entity"
	"github.com/garyjia/lease-agent/internal/domain/event"
	domainwf "github.com/garyjia/lease-agent/internal/domain/workflow"
)

// errUnchanged aborts a mutation without writing and without failing the call
var errUnchanged = errors.New("unchanged")

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type engineImpl struct {
	repo       port.LeaseRequestRepository
	recorder   *audit.Recorder
	txManager  port.TransactionManager
	locker     port.Locker
	gate       *gate.Gate
	dispatcher dispatcher.Dispatcher
	logger     Logger

	autoAdvance bool
	now         func() time.Time
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithGate replaces the default 0.70 confidence gate
func WithGate(g *gate.Gate) EngineOption {
	return func(e *engineImpl) {
		e.gate = g
	}
}

// WithAutoAdvance toggles completing document extraction and validation once
// every document passes the gate
func WithAutoAdvance(enabled bool) EngineOption {
	return func(e *engineImpl) {
		e.autoAdvance = enabled
	}
}

// WithLogger sets the engine logger
func WithLogger(l Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = l
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// NewEngine creates a new workflow engine
func NewEngine(
	repo port.LeaseRequestRepository,
	recorder *audit.Recorder,
	txManager port.TransactionManager,
	locker port.Locker,
	opts ...EngineOption,
) Engine {
	e := &engineImpl{
		repo:        repo,
		recorder:    recorder,
		txManager:   txManager,
		locker:      locker,
		gate:        gate.Default(),
		autoAdvance: true,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Initialize materializes the 12 steps of a stored request
func (e *engineImpl) Initialize(ctx context.Context, requestID string) (*entity.LeaseRequest, error) {
	return e.mutate(ctx, requestID, func(txCtx context.Context, r *entity.LeaseRequest) ([]*event.Event, error) {
		now := e.now()
		if err := r.Initialize(now); err != nil {
			return nil, err
		}

		_, err := e.recorder.RecordOn(txCtx, r, entity.ActionWorkflowInitialized, entity.SystemActor,
			"Workflow initialized with 12 steps", audit.WithStep(domainwf.StepRequestInitiation))
		return nil, err
	})
}

// Advance completes or fails the active step
func (e *engineImpl) Advance(ctx context.Context, cmd AdvanceCommand) (*entity.LeaseRequest, error) {
	if cmd.PerformedBy == "" {
		cmd.PerformedBy = entity.SystemActor
	}

	return e.mutate(ctx, cmd.RequestID, func(txCtx context.Context, r *entity.LeaseRequest) ([]*event.Event, error) {
		opts := []audit.Option{}
		if cmd.SLABreached != nil {
			opts = append(opts, audit.WithSLABreached(*cmd.SLABreached))
		}
		return e.advanceStep(txCtx, r, cmd.StepNumber, cmd.Outcome, cmd.Notes, cmd.PerformedBy, opts...)
	})
}

// advanceStep runs one Advance transition on a loaded request and audits it
func (e *engineImpl) advanceStep(
	ctx context.Context,
	r *entity.LeaseRequest,
	stepNumber int,
	outcome domainwf.Outcome,
	notes, performedBy string,
	opts ...audit.Option,
) ([]*event.Event, error) {
	previous := r.Status()
	if err := r.Advance(stepNumber, outcome, notes, e.now()); err != nil {
		return nil, err
	}

	tmpl, err := domainwf.Lookup(stepNumber)
	if err != nil {
		return nil, err
	}

	action := entity.ActionStepCompleted
	details := fmt.Sprintf("Step %d (%s) completed", stepNumber, tmpl.Name)
	switch {
	case outcome == domainwf.OutcomeFailure:
		action = entity.ActionStepFailed
		details = fmt.Sprintf("Step %d (%s) failed", stepNumber, tmpl.Name)
	case r.Status() == domainwf.StatusCompleted:
		action = entity.ActionRequestCompleted
		details = "All workflow steps completed"
	}
	if notes != "" {
		details += ": " + notes
	}

	opts = append(opts, audit.WithStep(stepNumber))
	if _, err := e.recorder.RecordOn(ctx, r, action, performedBy, details, opts...); err != nil {
		return nil, err
	}

	return advanceEvents(r, stepNumber, previous, performedBy), nil
}

// RecordExtractionResult stores one agent result and routes it through the gate
func (e *engineImpl) RecordExtractionResult(ctx context.Context, sig ExtractionSignal) (*ExtractionOutcome, error) {
	stepNumber := sig.StepNumber
	if stepNumber == 0 {
		stepNumber = domainwf.StepDocumentExtraction
	}

	outcome := &ExtractionOutcome{}
	r, err := e.mutate(ctx, sig.RequestID, func(txCtx context.Context, r *entity.LeaseRequest) ([]*event.Event, error) {
		active, ok := r.ActiveStep()
		if r.IsTerminal() || !ok || active.StepNumber != stepNumber {
			e.logWarn("Discarding stale extraction result",
				"request_id", sig.RequestID,
				"document_id", sig.DocumentID,
				"signal_step", stepNumber,
				"active_step", r.CurrentStep(),
				"status", r.Status().String(),
				"error", domainwf.ErrStaleSignal,
			)
			outcome.Stale = true
			outcome.Request = r
			return nil, errUnchanged
		}

		now := e.now()
		if err := r.RecordExtraction(sig.DocumentID, sig.ConfidenceScore, sig.Data, now); err != nil {
			return nil, err
		}

		decision := e.gate.Evaluate(r.ID, sig.DocumentID, stepNumber, sig.ConfidenceScore)
		outcome.Decision = decision

		if decision.NeedsReview() {
			if err := r.FlagForReview(stepNumber, sig.ConfidenceScore, now); err != nil {
				return nil, err
			}
			if _, err := e.recorder.RecordOn(txCtx, r, entity.ActionReviewRequired, entity.SystemActor, decision.Rationale,
				audit.WithStep(stepNumber), audit.WithConfidence(sig.ConfidenceScore)); err != nil {
				return nil, err
			}
			return []*event.Event{reviewRequiredEvent(r, stepNumber, sig.DocumentID, sig.ConfidenceScore)}, nil
		}

		if _, err := e.recorder.RecordOn(txCtx, r, entity.ActionExtractionRecorded, entity.SystemActor, decision.Rationale,
			audit.WithStep(stepNumber), audit.WithConfidence(sig.ConfidenceScore)); err != nil {
			return nil, err
		}
		events := []*event.Event{extractionEvent(r, sig.DocumentID, sig.ConfidenceScore)}

		// a step already in review stays there until a reviewer resolves it
		if active.Status != domainwf.StepProcessing {
			return events, nil
		}
		if lowest, ok := r.LowestDocumentScore(); ok {
			if err := r.RecordStepConfidence(stepNumber, lowest); err != nil {
				return nil, err
			}
		}

		if !e.autoAdvance || stepNumber != domainwf.StepDocumentExtraction || !e.gate.ReadyToAdvance(r) {
			return events, nil
		}

		more, err := e.advanceStep(txCtx, r, domainwf.StepDocumentExtraction, domainwf.OutcomeSuccess,
			"All documents meet the confidence threshold", entity.SystemActor)
		if err != nil {
			return nil, err
		}
		events = append(events, more...)

		more, err = e.advanceStep(txCtx, r, domainwf.StepValidation, domainwf.OutcomeSuccess,
			"No exceptions raised", entity.SystemActor)
		if err != nil {
			return nil, err
		}
		outcome.AutoAdvanced = true
		return append(events, more...), nil
	})

	if err != nil {
		return nil, err
	}
	if !outcome.Stale {
		outcome.Request = r
	}
	return outcome, nil
}

// ResolveReview approves or rejects a step awaiting review
func (e *engineImpl) ResolveReview(ctx context.Context, cmd ReviewDecision) (*entity.LeaseRequest, error) {
	if cmd.Resolver == "" {
		v := &entity.ValidationError{}
		v.Add("resolver", "is required")
		return nil, v
	}

	return e.mutate(ctx, cmd.RequestID, func(txCtx context.Context, r *entity.LeaseRequest) ([]*event.Event, error) {
		now := e.now()
		step, err := r.Step(cmd.StepNumber)
		if err != nil {
			return nil, err
		}
		if err := r.ResolveReview(cmd.StepNumber, cmd.Resolver, cmd.Approved, cmd.Notes, now); err != nil {
			return nil, err
		}

		action := entity.ActionReviewRejected
		details := fmt.Sprintf("Review of step %d rejected", cmd.StepNumber)
		if cmd.Approved {
			action = entity.ActionReviewApproved
			details = fmt.Sprintf("Review of step %d approved", cmd.StepNumber)
			for docID, data := range cmd.CorrectedData {
				if err := r.ApplyCorrection(docID, data, now); err != nil {
					return nil, err
				}
			}
			if n := len(cmd.CorrectedData); n > 0 {
				details += fmt.Sprintf(" with corrections to %d document(s)", n)
			}
		}
		if cmd.Notes != "" {
			details += ": " + cmd.Notes
		}

		opts := []audit.Option{audit.WithStep(cmd.StepNumber)}
		if step.ConfidenceScore != nil {
			opts = append(opts, audit.WithConfidence(*step.ConfidenceScore))
		}
		if _, err := e.recorder.RecordOn(txCtx, r, action, cmd.Resolver, details, opts...); err != nil {
			return nil, err
		}
		return reviewResolvedEvents(r, cmd.StepNumber, cmd.Resolver, cmd.Approved), nil
	})
}

// ProgressPercent returns completed steps over 12, in percent
func (e *engineImpl) ProgressPercent(r *entity.LeaseRequest) float64 {
	return r.ProgressPercent()
}

// ReviewThreshold returns the gate boundary
func (e *engineImpl) ReviewThreshold() float64 {
	return e.gate.Threshold()
}

// mutate runs fn on a freshly loaded request under the request lock inside
// one transaction, stores the result and dispatches events after commit
func (e *engineImpl) mutate(
	ctx context.Context,
	requestID string,
	fn func(txCtx context.Context, r *entity.LeaseRequest) ([]*event.Event, error),
) (*entity.LeaseRequest, error) {
	unlock, err := e.locker.TryLock(ctx, lockKey(requestID))
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", requestID, err)
	}
	defer unlock()

	var (
		result *entity.LeaseRequest
		events []*event.Event
	)

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		r, err := e.repo.GetByID(txCtx, requestID)
		if err != nil {
			return err
		}

		evts, err := fn(txCtx, r)
		if err != nil {
			return err
		}

		if err := e.repo.Update(txCtx, r); err != nil {
			return fmt.Errorf("failed to store request %s: %w", requestID, err)
		}

		result = r
		events = evts
		return nil
	})

	if errors.Is(err, errUnchanged) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	e.dispatch(ctx, events)
	return result, nil
}

func (e *engineImpl) dispatch(ctx context.Context, events []*event.Event) {
	if e.dispatcher == nil {
		return
	}
	for _, evt := range events {
		e.dispatcher.DispatchAsync(ctx, evt)
	}
}

func (e *engineImpl) logWarn(msg string, keysAndValues ...interface{}) {
	if e.logger != nil {
		e.logger.Warn(msg, keysAndValues...)
	}
}

func lockKey(requestID string) string {
	return "lease-request:" + requestID
}
