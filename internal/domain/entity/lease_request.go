package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/garyjia/lease-agent/internal/domain/workflow"
)

var validate = validator.New()

// LeaseRequest is the aggregate tracking one commercial lease through the workflow.
// Status, steps, documents and the audit trail only change through its methods.
type LeaseRequest struct {
	ID              string
	PropertyID      string
	PropertyAddress string
	RequestorEmail  string
	Tenant          Tenant
	Terms           FinancialTerms
	CreatedAt       time.Time
	UpdatedAt       time.Time

	status     workflow.Status
	documents  []*LeaseDocument
	steps      []WorkflowStepInstance
	auditTrail []AuditEntry
	version    int64
}

// NewLeaseRequestParams is the creation input for a lease request
type NewLeaseRequestParams struct {
	ID              string
	PropertyID      string
	PropertyAddress string
	RequestorEmail  string
	Tenant          Tenant
	Terms           FinancialTerms
	Documents       []*LeaseDocument
	CreatedAt       time.Time
}

// NewLeaseRequest validates the input and returns an uninitialized request in
// status initiated. All problems are reported at once in a *ValidationError.
func NewLeaseRequest(p NewLeaseRequestParams) (*LeaseRequest, error) {
	v := &ValidationError{}

	if p.ID == "" {
		v.Add("id", "is required")
	}
	if strings.TrimSpace(p.PropertyAddress) == "" {
		v.Add("property_address", "is required")
	}
	if err := validate.Var(p.RequestorEmail, "required,email"); err != nil {
		v.Add("requestor_email", "must be a valid email address")
	}
	p.Tenant.validate(v)
	p.Terms.validate(v)

	if len(p.Documents) == 0 {
		v.Add("documents", "at least one document is required")
	}
	seen := make(map[string]bool, len(p.Documents))
	for i, d := range p.Documents {
		field := fmt.Sprintf("documents[%d]", i)
		if d == nil {
			v.Add(field, "is empty")
			continue
		}
		if !d.Type.IsValid() {
			v.Add(field+".type", "unknown document type %q", string(d.Type))
		}
		if d.ID == "" {
			v.Add(field+".id", "is required")
		} else if seen[d.ID] {
			v.Add(field+".id", "duplicate document id %q", d.ID)
		}
		seen[d.ID] = true
	}

	if err := v.OrNil(); err != nil {
		return nil, err
	}

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	docs := make([]*LeaseDocument, 0, len(p.Documents))
	for _, d := range p.Documents {
		docs = append(docs, d.clone())
	}

	return &LeaseRequest{
		ID:              p.ID,
		PropertyID:      p.PropertyID,
		PropertyAddress: p.PropertyAddress,
		RequestorEmail:  p.RequestorEmail,
		Tenant:          p.Tenant,
		Terms:           p.Terms,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
		status:          workflow.StatusInitiated,
		documents:       docs,
	}, nil
}

// Snapshot is the flat persisted form of a LeaseRequest
type Snapshot struct {
	ID              string
	PropertyID      string
	PropertyAddress string
	RequestorEmail  string
	Tenant          Tenant
	Terms           FinancialTerms
	Status          workflow.Status
	Documents       []*LeaseDocument
	Steps           []WorkflowStepInstance
	AuditTrail      []AuditEntry
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// RestoreLeaseRequest rebuilds an aggregate from stored state. Stored values
// outside the status vocabularies or breaking the step rules are rejected.
func RestoreLeaseRequest(s Snapshot) (*LeaseRequest, error) {
	if !s.Status.IsValid() {
		return nil, fmt.Errorf("request %s: %w: %q", s.ID, workflow.ErrUnknownStatus, string(s.Status))
	}
	if len(s.Steps) != 0 && len(s.Steps) != workflow.TotalSteps {
		return nil, fmt.Errorf("request %s: %w: %d steps stored", s.ID, workflow.ErrInvalidState, len(s.Steps))
	}

	active := 0
	for i, step := range s.Steps {
		if step.StepNumber != i+1 {
			return nil, fmt.Errorf("request %s: %w: step %d out of order", s.ID, workflow.ErrInvalidState, step.StepNumber)
		}
		if err := step.checkConsistency(); err != nil {
			return nil, fmt.Errorf("request %s step %d: %w", s.ID, step.StepNumber, err)
		}
		if step.Status.IsActive() {
			active++
		}
	}
	if active > 1 {
		return nil, fmt.Errorf("request %s: %w: %d active steps", s.ID, workflow.ErrInvalidState, active)
	}

	r := &LeaseRequest{
		ID:              s.ID,
		PropertyID:      s.PropertyID,
		PropertyAddress: s.PropertyAddress,
		RequestorEmail:  s.RequestorEmail,
		Tenant:          s.Tenant,
		Terms:           s.Terms,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
		status:          s.Status,
		version:         s.Version,
	}
	for _, d := range s.Documents {
		r.documents = append(r.documents, d.clone())
	}
	for _, step := range s.Steps {
		r.steps = append(r.steps, step.clone())
	}
	r.auditTrail = append(r.auditTrail, s.AuditTrail...)
	return r, nil
}

// Snapshot returns a deep copy of the aggregate state for persistence
func (r *LeaseRequest) Snapshot() Snapshot {
	return Snapshot{
		ID:              r.ID,
		PropertyID:      r.PropertyID,
		PropertyAddress: r.PropertyAddress,
		RequestorEmail:  r.RequestorEmail,
		Tenant:          r.Tenant,
		Terms:           r.Terms,
		Status:          r.status,
		Documents:       r.Documents(),
		Steps:           r.Steps(),
		AuditTrail:      r.AuditTrail(),
		Version:         r.version,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

// Status returns the current request status
func (r *LeaseRequest) Status() workflow.Status {
	return r.status
}

// Version returns the optimistic concurrency counter
func (r *LeaseRequest) Version() int64 {
	return r.version
}

// SetVersion is called by the store after a successful write
func (r *LeaseRequest) SetVersion(v int64) {
	r.version = v
}

// IsTerminal returns true once the request is completed or failed
func (r *LeaseRequest) IsTerminal() bool {
	return r.status.IsTerminal()
}

// IsInitialized returns true once the 12 steps are materialized
func (r *LeaseRequest) IsInitialized() bool {
	return len(r.steps) == workflow.TotalSteps
}

// Steps returns a copy of the step instances in catalog order
func (r *LeaseRequest) Steps() []WorkflowStepInstance {
	steps := make([]WorkflowStepInstance, 0, len(r.steps))
	for _, s := range r.steps {
		steps = append(steps, s.clone())
	}
	return steps
}

// Step returns a copy of step n
func (r *LeaseRequest) Step(n int) (WorkflowStepInstance, error) {
	if err := workflow.ValidateStepNumber(n); err != nil {
		return WorkflowStepInstance{}, err
	}
	if !r.IsInitialized() {
		return WorkflowStepInstance{}, workflow.ErrNotInitialized
	}
	return r.steps[n-1].clone(), nil
}

// ActiveStep returns the step that is processing or awaiting review
func (r *LeaseRequest) ActiveStep() (WorkflowStepInstance, bool) {
	if i := r.activeIndex(); i >= 0 {
		return r.steps[i].clone(), true
	}
	return WorkflowStepInstance{}, false
}

// CurrentStep returns the active step number, the last step when completed,
// or 0 before initialization
func (r *LeaseRequest) CurrentStep() int {
	if i := r.activeIndex(); i >= 0 {
		return i + 1
	}
	last := 0
	for i, s := range r.steps {
		if s.Status.IsTerminal() {
			last = i + 1
		}
	}
	return last
}

// Documents returns copies of the submitted documents
func (r *LeaseRequest) Documents() []*LeaseDocument {
	docs := make([]*LeaseDocument, 0, len(r.documents))
	for _, d := range r.documents {
		docs = append(docs, d.clone())
	}
	return docs
}

// Document returns a copy of the document with the given id
func (r *LeaseRequest) Document(id string) (*LeaseDocument, error) {
	for _, d := range r.documents {
		if d.ID == id {
			return d.clone(), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
}

// AuditTrail returns the entries in chronological order
func (r *LeaseRequest) AuditTrail() []AuditEntry {
	return append([]AuditEntry(nil), r.auditTrail...)
}

// CompletedSteps counts the completed step instances
func (r *LeaseRequest) CompletedSteps() int {
	n := 0
	for _, s := range r.steps {
		if s.Status == workflow.StepCompleted {
			n++
		}
	}
	return n
}

// ProgressPercent is completed steps over the catalog size, in percent
func (r *LeaseRequest) ProgressPercent() float64 {
	return float64(r.CompletedSteps()) / float64(workflow.TotalSteps) * 100
}

// HasLowConfidence returns true if any step carries a score below threshold
func (r *LeaseRequest) HasLowConfidence(threshold float64) bool {
	for _, s := range r.steps {
		if s.ConfidenceScore != nil && *s.ConfidenceScore < threshold {
			return true
		}
	}
	return false
}

func (r *LeaseRequest) activeIndex() int {
	for i, s := range r.steps {
		if s.Status.IsActive() {
			return i
		}
	}
	return -1
}
