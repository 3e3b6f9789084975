package entity

// SystemActor is the performedBy value for transitions the engine makes on its own
const SystemActor = "system"

// DocumentType classifies an uploaded lease document
type DocumentType string

// Document type constants for LeaseDocument
const (
	DocumentTypeSolicitorInstructions DocumentType = "solicitor_instructions"
	DocumentTypeASICExtract           DocumentType = "asic_extract"
	DocumentTypeLeaseAgreement        DocumentType = "lease_agreement"
	DocumentTypePropertyPlan          DocumentType = "property_plan"
	DocumentTypeOther                 DocumentType = "other"
)

var validDocumentTypes = map[DocumentType]bool{
	DocumentTypeSolicitorInstructions: true,
	DocumentTypeASICExtract:           true,
	DocumentTypeLeaseAgreement:        true,
	DocumentTypePropertyPlan:          true,
	DocumentTypeOther:                 true,
}

// IsValid returns true if the type is one of the accepted document types
func (t DocumentType) IsValid() bool {
	return validDocumentTypes[t]
}

// Audit action constants
const (
	ActionRequestCreated      = "Request Created"
	ActionWorkflowInitialized = "Workflow Initialized"
	ActionStepCompleted       = "Step Completed"
	ActionStepFailed          = "Step Failed"
	ActionStepStarted         = "Step Started"
	ActionExtractionRecorded  = "Extraction Recorded"
	ActionReviewRequired      = "Review Required"
	ActionReviewApproved      = "Review Approved"
	ActionReviewRejected      = "Review Rejected"
	ActionRequestCompleted    = "Request Completed"
)
