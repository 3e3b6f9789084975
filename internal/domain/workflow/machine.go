package workflow

// StateMachine tracks the status of one step and validates its transitions
type StateMachine interface {
	// Status returns the current status
	Status() StepStatus

	// Fire attempts to execute the trigger, transitioning to the new status if allowed
	Fire(trigger Trigger) error
}

// BuildStepStateMachine creates a state machine configured with the step lifecycle:
//
//	pending -> processing -> completed | review_required | failed
//	review_required -> processing | failed
//
// A second low-confidence result while already in review keeps the step in review.
func BuildStepStateMachine(initial StepStatus) StateMachine {
	builder := NewBuilder()

	builder.Configure(StepPending).
		Permit(TriggerStart, StepProcessing)

	builder.Configure(StepProcessing).
		Permit(TriggerComplete, StepCompleted).
		Permit(TriggerFail, StepFailed).
		Permit(TriggerRequestReview, StepReviewRequired)

	builder.Configure(StepReviewRequired).
		Permit(TriggerRequestReview, StepReviewRequired).
		Permit(TriggerApproveReview, StepProcessing).
		Permit(TriggerRejectReview, StepFailed)

	// completed and failed are terminal - no outgoing transitions

	return builder.Build(initial)
}
