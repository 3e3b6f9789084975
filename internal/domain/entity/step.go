package entity

import (
	"time"

	"github.com/garyjia/lease-agent/internal/domain/workflow"
)

// WorkflowStepInstance is the state of one catalog step for one request
type WorkflowStepInstance struct {
	StepNumber      int                 `json:"step"`
	Name            string              `json:"name"`
	Status          workflow.StepStatus `json:"status"`
	StartedAt       *time.Time          `json:"started_at,omitempty"`
	CompletedAt     *time.Time          `json:"completed_at,omitempty"`
	AssignedTo      string              `json:"assigned_to,omitempty"`
	Notes           string              `json:"notes,omitempty"`
	ConfidenceScore *float64            `json:"confidence_score,omitempty"`
	RequiresReview  bool                `json:"requires_review"`
}

// fire runs the trigger through the step state machine and keeps the
// derived fields in line with the new status
func (s *WorkflowStepInstance) fire(trigger workflow.Trigger, now time.Time) error {
	machine := workflow.BuildStepStateMachine(s.Status)
	if err := machine.Fire(trigger); err != nil {
		return err
	}

	s.Status = machine.Status()
	s.RequiresReview = s.Status == workflow.StepReviewRequired

	switch {
	case s.Status == workflow.StepProcessing && s.StartedAt == nil:
		t := now
		s.StartedAt = &t
	case s.Status.IsTerminal():
		t := now
		s.CompletedAt = &t
	}
	return nil
}

func (s WorkflowStepInstance) clone() WorkflowStepInstance {
	c := s
	if s.StartedAt != nil {
		t := *s.StartedAt
		c.StartedAt = &t
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	if s.ConfidenceScore != nil {
		score := *s.ConfidenceScore
		c.ConfidenceScore = &score
	}
	return c
}

// checkConsistency verifies the per-step derived field rules
func (s WorkflowStepInstance) checkConsistency() error {
	if !s.Status.IsValid() {
		return workflow.ErrUnknownStatus
	}
	if s.RequiresReview != (s.Status == workflow.StepReviewRequired) {
		return workflow.ErrInvalidState
	}
	if (s.CompletedAt != nil) != s.Status.IsTerminal() {
		return workflow.ErrInvalidState
	}
	if s.ConfidenceScore != nil && (*s.ConfidenceScore < 0 || *s.ConfidenceScore > 1) {
		return workflow.ErrInvalidState
	}
	return nil
}
