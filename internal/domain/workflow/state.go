package workflow

import "fmt"

// StepStatus represents the lifecycle state of a single workflow step
type StepStatus string

const (
	StepPending        StepStatus = "pending"
	StepProcessing     StepStatus = "processing"
	StepReviewRequired StepStatus = "review_required"
	StepCompleted      StepStatus = "completed"
	StepFailed         StepStatus = "failed"
)

var validStepStatuses = map[StepStatus]bool{
	StepPending:        true,
	StepProcessing:     true,
	StepReviewRequired: true,
	StepCompleted:      true,
	StepFailed:         true,
}

var terminalStepStatuses = map[StepStatus]bool{
	StepCompleted: true,
	StepFailed:    true,
}

// IsTerminal returns true if the step can no longer change
func (s StepStatus) IsTerminal() bool {
	return terminalStepStatuses[s]
}

// IsActive returns true if the step is the one currently being worked on
func (s StepStatus) IsActive() bool {
	return s == StepProcessing || s == StepReviewRequired
}

// String returns the string representation of the step status
func (s StepStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is part of the step vocabulary
func (s StepStatus) IsValid() bool {
	return validStepStatuses[s]
}

// ParseStepStatus converts a wire string into a StepStatus.
// Unknown values are rejected.
func ParseStepStatus(s string) (StepStatus, error) {
	status := StepStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("%w: step status %q", ErrUnknownStatus, s)
	}
	return status, nil
}

// MarshalText implements encoding.TextMarshaler
func (s StepStatus) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("%w: step status %q", ErrUnknownStatus, string(s))
	}
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *StepStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseStepStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
