package workflow

import (
	"context"

	"github.com/garyjia/lease-agent/internal/application/gate"
	"github.com/garyjia/lease-agent/internal/domain/entity"
	domainwf "github.com/garyjia/lease-agent/internal/domain/workflow"
)

// Engine is the single entry point for lease request step transitions.
// Every mutating call holds the request lock, runs in one transaction and
// writes exactly one audit entry per transition.
type Engine interface {
	// Initialize materializes the steps of a stored request with step 1 processing
	Initialize(ctx context.Context, requestID string) (*entity.LeaseRequest, error)

	// Advance completes or fails the active step
	Advance(ctx context.Context, cmd AdvanceCommand) (*entity.LeaseRequest, error)

	// RecordExtractionResult stores an agent result and applies the confidence gate
	RecordExtractionResult(ctx context.Context, sig ExtractionSignal) (*ExtractionOutcome, error)

	// ResolveReview approves or rejects a step awaiting review
	ResolveReview(ctx context.Context, cmd ReviewDecision) (*entity.LeaseRequest, error)

	// ProgressPercent returns completed steps over 12, in percent
	ProgressPercent(r *entity.LeaseRequest) float64

	// ReviewThreshold is the score below which a step is flagged for review
	ReviewThreshold() float64
}

// AdvanceCommand reports the outcome of the active step
type AdvanceCommand struct {
	RequestID   string
	StepNumber  int
	Outcome     domainwf.Outcome
	Notes       string
	PerformedBy string
	// SLABreached is recorded as given on the audit entry when set
	SLABreached *bool
}

// ExtractionSignal is one agent result fed back to the engine
type ExtractionSignal struct {
	RequestID       string
	DocumentID      string
	ConfidenceScore float64
	Data            entity.ExtractedData
	// StepNumber is the step that was active when extraction was dispatched.
	// Zero means document extraction.
	StepNumber int
}

// ExtractionOutcome describes what the engine did with a signal
type ExtractionOutcome struct {
	Request  *entity.LeaseRequest
	Decision gate.Decision
	// Stale is set when the signal arrived after its step was superseded.
	// Nothing was written in that case.
	Stale bool
	// AutoAdvanced is set when the signal completed document extraction
	AutoAdvanced bool
}

// ReviewDecision resolves a step in review_required
type ReviewDecision struct {
	RequestID  string
	StepNumber int
	Resolver   string
	Approved   bool
	Notes      string
	// CorrectedData replaces the extracted data of the listed documents on approval
	CorrectedData map[string]entity.ExtractedData
}
