package entity

import (
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/lease-agent/internal/domain/workflow"
)

// ErrDocumentNotFound is returned when a document id is not part of the request
var ErrDocumentNotFound = errors.New("document not found")

// Initialize materializes the 12 step instances with step 1 processing
func (r *LeaseRequest) Initialize(now time.Time) error {
	if len(r.steps) > 0 {
		return fmt.Errorf("request %s: %w", r.ID, workflow.ErrAlreadyInitialized)
	}
	if r.IsTerminal() {
		return fmt.Errorf("request %s: %w", r.ID, workflow.ErrAlreadyTerminal)
	}

	steps := make([]WorkflowStepInstance, 0, workflow.TotalSteps)
	for _, tmpl := range workflow.Steps() {
		steps = append(steps, WorkflowStepInstance{
			StepNumber: tmpl.Number,
			Name:       tmpl.Name,
			Status:     workflow.StepPending,
		})
	}
	if err := steps[0].fire(workflow.TriggerStart, now); err != nil {
		return err
	}

	r.steps = steps
	return r.syncStatus(now)
}

// Advance completes or fails the active step. On success the next step starts,
// or the request completes after the final step. On failure the request fails.
func (r *LeaseRequest) Advance(stepNumber int, outcome workflow.Outcome, notes string, now time.Time) error {
	if !outcome.IsValid() {
		return fmt.Errorf("%w: outcome %q", workflow.ErrInvalidTransition, string(outcome))
	}
	i, err := r.requireActive(stepNumber)
	if err != nil {
		return err
	}

	step := &r.steps[i]
	if err := step.fire(outcome.Trigger(), now); err != nil {
		return fmt.Errorf("request %s step %d: %w", r.ID, stepNumber, err)
	}
	if notes != "" {
		step.Notes = notes
	}

	if outcome == workflow.OutcomeSuccess && stepNumber < workflow.TotalSteps {
		if err := r.steps[i+1].fire(workflow.TriggerStart, now); err != nil {
			return fmt.Errorf("request %s step %d: %w", r.ID, stepNumber+1, err)
		}
	}
	return r.syncStatus(now)
}

// FlagForReview moves the active step into review with the low score that triggered it
func (r *LeaseRequest) FlagForReview(stepNumber int, score float64, now time.Time) error {
	if err := checkScore(score); err != nil {
		return err
	}
	i, err := r.requireActive(stepNumber)
	if err != nil {
		return err
	}

	step := &r.steps[i]
	if err := step.fire(workflow.TriggerRequestReview, now); err != nil {
		return fmt.Errorf("request %s step %d: %w", r.ID, stepNumber, err)
	}
	step.ConfidenceScore = &score
	return r.syncStatus(now)
}

// RecordStepConfidence stores the score that passed the gate on the active step
func (r *LeaseRequest) RecordStepConfidence(stepNumber int, score float64) error {
	if err := checkScore(score); err != nil {
		return err
	}
	i, err := r.requireActive(stepNumber)
	if err != nil {
		return err
	}
	r.steps[i].ConfidenceScore = &score
	return nil
}

// ResolveReview approves or rejects a step awaiting review. Approval puts the
// step back into processing. Rejection fails the step and the request.
func (r *LeaseRequest) ResolveReview(stepNumber int, resolver string, approved bool, notes string, now time.Time) error {
	i, err := r.requireActive(stepNumber)
	if err != nil {
		return err
	}

	step := &r.steps[i]
	if step.Status != workflow.StepReviewRequired {
		return fmt.Errorf("request %s step %d: %w", r.ID, stepNumber, workflow.ErrReviewNotPending)
	}

	trigger := workflow.TriggerRejectReview
	if approved {
		trigger = workflow.TriggerApproveReview
	}
	if err := step.fire(trigger, now); err != nil {
		return fmt.Errorf("request %s step %d: %w", r.ID, stepNumber, err)
	}
	step.AssignedTo = resolver
	if notes != "" {
		step.Notes = notes
	}
	return r.syncStatus(now)
}

// RecordExtraction stores the agent's result on one document
func (r *LeaseRequest) RecordExtraction(documentID string, score float64, data ExtractedData, now time.Time) error {
	if err := checkScore(score); err != nil {
		return err
	}
	if r.IsTerminal() {
		return fmt.Errorf("request %s: %w", r.ID, workflow.ErrAlreadyTerminal)
	}
	for _, d := range r.documents {
		if d.ID == documentID {
			s := score
			c := data.Clone()
			d.ConfidenceScore = &s
			d.ExtractedData = &c
			r.UpdatedAt = now
			return nil
		}
	}
	return fmt.Errorf("request %s: %w: %s", r.ID, ErrDocumentNotFound, documentID)
}

// ApplyCorrection replaces the extracted data of a document with reviewer supplied values
func (r *LeaseRequest) ApplyCorrection(documentID string, data ExtractedData, now time.Time) error {
	for _, d := range r.documents {
		if d.ID == documentID {
			c := data.Clone()
			d.ExtractedData = &c
			r.UpdatedAt = now
			return nil
		}
	}
	return fmt.Errorf("request %s: %w: %s", r.ID, ErrDocumentNotFound, documentID)
}

// AllDocumentsScored returns true once every document has a confidence score
func (r *LeaseRequest) AllDocumentsScored() bool {
	for _, d := range r.documents {
		if !d.IsScored() {
			return false
		}
	}
	return len(r.documents) > 0
}

// LowestDocumentScore returns the minimum score over the scored documents
func (r *LeaseRequest) LowestDocumentScore() (float64, bool) {
	lowest, found := 0.0, false
	for _, d := range r.documents {
		if d.ConfidenceScore == nil {
			continue
		}
		if !found || *d.ConfidenceScore < lowest {
			lowest = *d.ConfidenceScore
			found = true
		}
	}
	return lowest, found
}

// AppendAudit adds an entry to the trail. Entries must not go back in time.
func (r *LeaseRequest) AppendAudit(entry AuditEntry) error {
	if n := len(r.auditTrail); n > 0 && entry.Timestamp.Before(r.auditTrail[n-1].Timestamp) {
		return fmt.Errorf("%w: audit entry %s predates the last entry", workflow.ErrInvalidState, entry.ID)
	}
	r.auditTrail = append(r.auditTrail, entry)
	return nil
}

// requireActive returns the index of stepNumber if it is the active step
func (r *LeaseRequest) requireActive(stepNumber int) (int, error) {
	if err := workflow.ValidateStepNumber(stepNumber); err != nil {
		return -1, err
	}
	if !r.IsInitialized() {
		return -1, fmt.Errorf("request %s: %w", r.ID, workflow.ErrNotInitialized)
	}
	if r.IsTerminal() {
		return -1, fmt.Errorf("request %s: %w", r.ID, workflow.ErrAlreadyTerminal)
	}

	i := r.activeIndex()
	if i != stepNumber-1 {
		return -1, fmt.Errorf("request %s: %w: step %d is not active (active step %d)",
			r.ID, workflow.ErrOutOfOrderTransition, stepNumber, i+1)
	}
	return i, nil
}

// syncStatus derives the request status from the step instances
func (r *LeaseRequest) syncStatus(now time.Time) error {
	var status workflow.Status
	var err error

	if i := r.activeIndex(); i >= 0 {
		status, err = workflow.StatusFor(i+1, r.steps[i].Status)
	} else {
		status, err = r.settledStatus()
	}
	if err != nil {
		return err
	}

	r.status = status
	r.UpdatedAt = now
	return nil
}

// settledStatus covers the case with no active step: completed or failed
func (r *LeaseRequest) settledStatus() (workflow.Status, error) {
	for _, s := range r.steps {
		if s.Status == workflow.StepFailed {
			return workflow.StatusFailed, nil
		}
	}
	if r.CompletedSteps() == workflow.TotalSteps {
		return workflow.StatusCompleted, nil
	}
	return "", fmt.Errorf("request %s: %w: no active step", r.ID, workflow.ErrInvalidState)
}

func checkScore(score float64) error {
	if score < 0 || score > 1 {
		v := &ValidationError{}
		v.Add("confidence_score", "must be within [0, 1], got %v", score)
		return v
	}
	return nil
}
