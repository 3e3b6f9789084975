package workflow

import "fmt"

// TotalSteps is the number of steps every lease request goes through
const TotalSteps = 12

// Step numbers with behaviour attached to them
const (
	StepRequestInitiation  = 1
	StepDocumentExtraction = 2
	StepValidation         = 3
	StepFinalAudit         = TotalSteps
)

// StepTemplate describes one entry of the fixed workflow
type StepTemplate struct {
	Number      int    `json:"step"`
	Name        string `json:"name"`
	Description string `json:"description"`
	// Status is the request status while this step is active
	Status Status `json:"status"`
}

var catalog = [TotalSteps]StepTemplate{
	{1, "Request Initiation", "Initial lease request submitted with metadata and documents", StatusInitiated},
	{2, "Document Extraction", "AI extraction of key data fields from uploaded documents", StatusDocumentExtraction},
	{3, "Validation & Exceptions", "Human review of low-confidence extracted data", StatusValidationReview},
	{4, "Usage Type & Unit Check", "Verification of space details and usage type in SAP RE-FX", StatusSpaceValidation},
	{5, "Business Partner Check", "Identification or creation of tenant Business Partner in SAP", StatusBPCheck},
	{6, "ASIC Validation", "Compliance check against ASIC records for tenant entity", StatusASICValidation},
	{7, "Shell Lease Creation", "Creation of initial lease contract in SAP using validated inputs", StatusShellCreation},
	{8, "Deposit Invoice", "Generation and issuance of lease deposit invoice", StatusDepositInvoice},
	{9, "Lease Abstract Verification", "Comparison of SAP lease abstracts before and after data entry", StatusAbstractVerification},
	{10, "Clause Finalisation", "Completion of specific lease clause entries", StatusClauseFinalisation},
	{11, "Lease Activation", "Setting the lease to active status in SAP", StatusActivation},
	// the vocabulary has no status of its own for the final step
	{12, "Audit & Notification", "Final logging, SLA tracking, and requestor notification", StatusActivation},
}

// Steps returns the ordered step templates
func Steps() []StepTemplate {
	steps := make([]StepTemplate, TotalSteps)
	copy(steps, catalog[:])
	return steps
}

// ValidateStepNumber checks n is within 1..TotalSteps
func ValidateStepNumber(n int) error {
	if n < 1 || n > TotalSteps {
		return fmt.Errorf("%w: %d (must be 1-%d)", ErrInvalidStepNumber, n, TotalSteps)
	}
	return nil
}

// Lookup returns the template for step n
func Lookup(n int) (StepTemplate, error) {
	if err := ValidateStepNumber(n); err != nil {
		return StepTemplate{}, err
	}
	return catalog[n-1], nil
}

// StatusFor derives the request status from the active step and its status
func StatusFor(stepNumber int, stepStatus StepStatus) (Status, error) {
	tmpl, err := Lookup(stepNumber)
	if err != nil {
		return "", err
	}

	switch stepStatus {
	case StepReviewRequired:
		return StatusPendingReview, nil
	case StepFailed:
		return StatusFailed, nil
	case StepCompleted:
		if stepNumber == TotalSteps {
			return StatusCompleted, nil
		}
		return tmpl.Status, nil
	case StepPending, StepProcessing:
		return tmpl.Status, nil
	default:
		return "", fmt.Errorf("%w: step status %q", ErrUnknownStatus, string(stepStatus))
	}
}
