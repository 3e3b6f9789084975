package workflow

import "fmt"

// Status is the coarse-grained request status mirroring the active step
type Status string

const (
	StatusInitiated            Status = "initiated"
	StatusDocumentExtraction   Status = "document_extraction"
	StatusValidationReview     Status = "validation_review"
	StatusSpaceValidation      Status = "space_validation"
	StatusBPCheck              Status = "bp_check"
	StatusASICValidation       Status = "asic_validation"
	StatusShellCreation        Status = "shell_creation"
	StatusDepositInvoice       Status = "deposit_invoice"
	StatusAbstractVerification Status = "abstract_verification"
	StatusClauseFinalisation   Status = "clause_finalisation"
	StatusActivation           Status = "activation"
	StatusCompleted            Status = "completed"
	StatusFailed               Status = "failed"
	StatusPendingReview        Status = "pending_review"
)

// statusLabels is the single mapping from wire status to display label.
var statusLabels = map[Status]string{
	StatusInitiated:            "Initiated",
	StatusDocumentExtraction:   "Processing Documents",
	StatusValidationReview:     "Pending Review",
	StatusSpaceValidation:      "Validating Space",
	StatusBPCheck:              "Business Partner Check",
	StatusASICValidation:       "ASIC Validation",
	StatusShellCreation:        "Creating Lease",
	StatusDepositInvoice:       "Processing Invoice",
	StatusAbstractVerification: "Verifying Abstract",
	StatusClauseFinalisation:   "Finalizing Clauses",
	StatusActivation:           "Activating Lease",
	StatusCompleted:            "Completed",
	StatusFailed:               "Failed",
	StatusPendingReview:        "Requires Review",
}

var terminalStatuses = map[Status]bool{
	StatusCompleted: true,
	StatusFailed:    true,
}

// AllStatuses returns the full wire vocabulary in canonical order
func AllStatuses() []Status {
	return []Status{
		StatusInitiated,
		StatusDocumentExtraction,
		StatusValidationReview,
		StatusSpaceValidation,
		StatusBPCheck,
		StatusASICValidation,
		StatusShellCreation,
		StatusDepositInvoice,
		StatusAbstractVerification,
		StatusClauseFinalisation,
		StatusActivation,
		StatusCompleted,
		StatusFailed,
		StatusPendingReview,
	}
}

// IsTerminal returns true for completed and failed requests
func (s Status) IsTerminal() bool {
	return terminalStatuses[s]
}

// IsValid returns true if the status is part of the wire vocabulary
func (s Status) IsValid() bool {
	_, ok := statusLabels[s]
	return ok
}

// String returns the wire representation
func (s Status) String() string {
	return string(s)
}

// Label returns the human readable label for the status
func (s Status) Label() (string, error) {
	label, ok := statusLabels[s]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, string(s))
	}
	return label, nil
}

// ParseStatus converts a wire string into a Status. Unknown values are an error.
func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if !status.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
	return status, nil
}

// MarshalText implements encoding.TextMarshaler
func (s Status) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, string(s))
	}
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
