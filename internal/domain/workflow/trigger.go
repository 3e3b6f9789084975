package workflow

// Trigger represents an event that can cause a step transition
type Trigger string

const (
	TriggerStart         Trigger = "START"
	TriggerComplete      Trigger = "COMPLETE"
	TriggerFail          Trigger = "FAIL"
	TriggerRequestReview Trigger = "REQUEST_REVIEW"
	TriggerApproveReview Trigger = "APPROVE_REVIEW"
	TriggerRejectReview  Trigger = "REJECT_REVIEW"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}

// Outcome is the result reported for an external step (SAP, ASIC, ...)
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// IsValid returns true for success and failure
func (o Outcome) IsValid() bool {
	return o == OutcomeSuccess || o == OutcomeFailure
}

// Trigger maps the outcome to the step trigger it fires
func (o Outcome) Trigger() Trigger {
	if o == OutcomeSuccess {
		return TriggerComplete
	}
	return TriggerFail
}
