package event

// Type identifies the type of domain event
type Type string

const (
	TypeRequestSubmitted   Type = "request.submitted"
	TypeStepAdvanced       Type = "request.step_advanced"
	TypeReviewRequired     Type = "request.review_required"
	TypeReviewResolved     Type = "request.review_resolved"
	TypeExtractionRecorded Type = "document.extraction_recorded"
	TypeRequestCompleted   Type = "request.completed"
	TypeRequestFailed      Type = "request.failed"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeRequestSubmitted,
		TypeStepAdvanced,
		TypeReviewRequired,
		TypeReviewResolved,
		TypeExtractionRecorded,
		TypeRequestCompleted,
		TypeRequestFailed:
		return true
	default:
		return false
	}
}
