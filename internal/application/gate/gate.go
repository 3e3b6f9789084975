package gate

import (
	"fmt"
	"time"

	"github.com/garyjia/lease-agent/internal/domain/entity"
)

// ReviewThreshold is the default confidence below which a step needs human review
const ReviewThreshold = 0.70

// Threshold is the decision boundary for extraction results
type Threshold struct {
	Review        float64 // scores strictly below go to review
	ConfigVersion string  // recorded in decisions for the audit trail
}

// DefaultThreshold returns the standard 0.70 boundary
func DefaultThreshold() Threshold {
	return Threshold{
		Review:        ReviewThreshold,
		ConfigVersion: "v1",
	}
}

// Validate ensures the boundary lies within (0, 1]
func (t Threshold) Validate() error {
	if t.Review <= 0.0 || t.Review > 1.0 {
		return fmt.Errorf("review threshold must be within (0.0, 1.0], got %.2f", t.Review)
	}
	return nil
}

// Verdict is the routing result for one score
type Verdict string

const (
	VerdictPass   Verdict = "PASS"
	VerdictReview Verdict = "REVIEW"
)

// Decision records how a confidence score was routed
type Decision struct {
	RequestID       string
	DocumentID      string
	StepNumber      int
	ConfidenceScore float64
	Verdict         Verdict
	Rationale       string
	Threshold       Threshold
	Timestamp       time.Time
}

// NeedsReview returns true when the score fell below the threshold
func (d Decision) NeedsReview() bool {
	return d.Verdict == VerdictReview
}

// String returns a human-readable representation of the decision
func (d Decision) String() string {
	return fmt.Sprintf("Decision{Request: %s, Document: %s, Step: %d, Verdict: %s, Confidence: %.2f}",
		d.RequestID, d.DocumentID, d.StepNumber, d.Verdict, d.ConfidenceScore)
}

// Gate routes extraction confidence scores
type Gate struct {
	threshold Threshold
}

// New creates a gate, rejecting an invalid threshold
func New(threshold Threshold) (*Gate, error) {
	if err := threshold.Validate(); err != nil {
		return nil, err
	}
	return &Gate{threshold: threshold}, nil
}

// Default creates a gate at ReviewThreshold
func Default() *Gate {
	return &Gate{threshold: DefaultThreshold()}
}

// Threshold returns the review boundary
func (g *Gate) Threshold() float64 {
	return g.threshold.Review
}

// Evaluate routes one document score. A score equal to the threshold passes.
func (g *Gate) Evaluate(requestID, documentID string, stepNumber int, score float64) Decision {
	d := Decision{
		RequestID:       requestID,
		DocumentID:      documentID,
		StepNumber:      stepNumber,
		ConfidenceScore: score,
		Threshold:       g.threshold,
		Timestamp:       time.Now(),
	}

	if score < g.threshold.Review {
		d.Verdict = VerdictReview
		d.Rationale = fmt.Sprintf("Low confidence %.2f below threshold %.2f on document %s",
			score, g.threshold.Review, documentID)
		return d
	}

	d.Verdict = VerdictPass
	d.Rationale = fmt.Sprintf("Confidence %.2f meets threshold %.2f on document %s",
		score, g.threshold.Review, documentID)
	return d
}

// ReadyToAdvance returns true once every document of the request is scored
// and none is below the threshold
func (g *Gate) ReadyToAdvance(r *entity.LeaseRequest) bool {
	if !r.AllDocumentsScored() {
		return false
	}
	lowest, ok := r.LowestDocumentScore()
	return ok && lowest >= g.threshold.Review
}
