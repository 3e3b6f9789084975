package entity

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/lease-agent/internal/domain/workflow"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func validParams() NewLeaseRequestParams {
	return NewLeaseRequestParams{
		ID:              "LR-001",
		PropertyID:      "PROP001",
		PropertyAddress: "123 Collins Street, Melbourne VIC 3000",
		RequestorEmail:  "leasing@example.com",
		Tenant: Tenant{
			Name: "Acme Retail Pty Ltd",
			ABN:  "12 345 678 901",
			ACN:  "123 456 789",
		},
		Terms: FinancialTerms{
			RentAmount:       decimal.NewFromInt(8500),
			SecurityDeposit:  decimal.NewFromInt(17000),
			LeaseTermMonths:  36,
			CommencementDate: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		},
		Documents: []*LeaseDocument{
			{ID: DocumentID("LR-001", 0), Name: "instructions.pdf", Type: DocumentTypeSolicitorInstructions, MimeType: "application/pdf"},
			{ID: DocumentID("LR-001", 1), Name: "asic.pdf", Type: DocumentTypeASICExtract, MimeType: "application/pdf"},
		},
		CreatedAt: t0,
	}
}

func newInitialized(t *testing.T) *LeaseRequest {
	t.Helper()
	r, err := NewLeaseRequest(validParams())
	require.NoError(t, err)
	require.NoError(t, r.Initialize(t0))
	return r
}

func fieldNames(err error) []string {
	var v *ValidationError
	if !errors.As(err, &v) {
		return nil
	}
	names := make([]string, 0, len(v.Fields))
	for _, f := range v.Fields {
		names = append(names, f.Field)
	}
	return names
}

func TestNewLeaseRequest_Valid(t *testing.T) {
	r, err := NewLeaseRequest(validParams())
	require.NoError(t, err)

	assert.Equal(t, workflow.StatusInitiated, r.Status())
	assert.False(t, r.IsInitialized())
	assert.Len(t, r.Documents(), 2)
	assert.Equal(t, t0, r.CreatedAt)
	assert.Equal(t, "doc_LR-001_1", r.Documents()[1].ID)
}

func TestNewLeaseRequest_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *NewLeaseRequestParams)
		field  string
	}{
		{"empty tenant name", func(p *NewLeaseRequestParams) { p.Tenant.Name = "" }, "tenant.name"},
		{"zero rent", func(p *NewLeaseRequestParams) { p.Terms.RentAmount = decimal.Zero }, "rent_amount"},
		{"negative rent", func(p *NewLeaseRequestParams) { p.Terms.RentAmount = decimal.NewFromInt(-1) }, "rent_amount"},
		{"negative deposit", func(p *NewLeaseRequestParams) { p.Terms.SecurityDeposit = decimal.NewFromInt(-5) }, "security_deposit"},
		{"zero term", func(p *NewLeaseRequestParams) { p.Terms.LeaseTermMonths = 0 }, "lease_term"},
		{"missing commencement", func(p *NewLeaseRequestParams) { p.Terms.CommencementDate = time.Time{} }, "commencement_date"},
		{"abn without spaces", func(p *NewLeaseRequestParams) { p.Tenant.ABN = "12345678901" }, "tenant.abn"},
		{"acn too short", func(p *NewLeaseRequestParams) { p.Tenant.ACN = "123 456" }, "tenant.acn"},
		{"no documents", func(p *NewLeaseRequestParams) { p.Documents = nil }, "documents"},
		{"bad document type", func(p *NewLeaseRequestParams) { p.Documents[0].Type = "invoice" }, "documents[0].type"},
		{"duplicate document id", func(p *NewLeaseRequestParams) { p.Documents[1].ID = p.Documents[0].ID }, "documents[1].id"},
		{"bad email", func(p *NewLeaseRequestParams) { p.RequestorEmail = "not-an-email" }, "requestor_email"},
		{"missing address", func(p *NewLeaseRequestParams) { p.PropertyAddress = "  " }, "property_address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			tt.mutate(&p)

			r, err := NewLeaseRequest(p)
			assert.Nil(t, r)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Contains(t, fieldNames(err), tt.field)
		})
	}
}

func TestNewLeaseRequest_CollectsAllProblems(t *testing.T) {
	p := validParams()
	p.Tenant.Name = ""
	p.Terms.RentAmount = decimal.Zero
	p.Terms.LeaseTermMonths = 0

	_, err := NewLeaseRequest(p)
	assert.ElementsMatch(t, []string{"tenant.name", "rent_amount", "lease_term"}, fieldNames(err))
}

func TestNewLeaseRequest_OptionalIdentifiers(t *testing.T) {
	p := validParams()
	p.Tenant.ABN = ""
	p.Tenant.ACN = ""
	p.Terms.SecurityDeposit = decimal.Zero

	_, err := NewLeaseRequest(p)
	assert.NoError(t, err)
}

func TestValidABNAndACN(t *testing.T) {
	assert.True(t, ValidABN("51 824 753 556"))
	assert.False(t, ValidABN("51-824-753-556"))
	assert.False(t, ValidABN("51 824 753 55"))
	assert.True(t, ValidACN("004 085 616"))
	assert.False(t, ValidACN("004085616"))
}

func TestInitialize(t *testing.T) {
	r := newInitialized(t)

	steps := r.Steps()
	require.Len(t, steps, workflow.TotalSteps)

	assert.Equal(t, workflow.StepProcessing, steps[0].Status)
	require.NotNil(t, steps[0].StartedAt)
	assert.Equal(t, t0, *steps[0].StartedAt)
	for _, s := range steps[1:] {
		assert.Equal(t, workflow.StepPending, s.Status, "step %d", s.StepNumber)
		assert.Nil(t, s.StartedAt)
	}
	assert.Equal(t, workflow.StatusInitiated, r.Status())
	assert.Equal(t, 1, r.CurrentStep())

	err := r.Initialize(t0)
	assert.ErrorIs(t, err, workflow.ErrAlreadyInitialized)
}

func TestAdvance_HappyPathToCompletion(t *testing.T) {
	r := newInitialized(t)

	for n := 1; n <= workflow.TotalSteps; n++ {
		now := t0.Add(time.Duration(n) * time.Minute)
		require.NoError(t, r.Advance(n, workflow.OutcomeSuccess, "", now), "step %d", n)

		if n < workflow.TotalSteps {
			tmpl, _ := workflow.Lookup(n + 1)
			assert.Equal(t, tmpl.Status, r.Status(), "after step %d", n)
			assert.Equal(t, n+1, r.CurrentStep())
		}
	}

	assert.Equal(t, workflow.StatusCompleted, r.Status())
	assert.Equal(t, 100.0, r.ProgressPercent())
	assert.True(t, r.IsTerminal())

	_, active := r.ActiveStep()
	assert.False(t, active)

	for _, s := range r.Steps() {
		assert.NotNil(t, s.CompletedAt, "step %d", s.StepNumber)
	}

	err := r.Advance(12, workflow.OutcomeSuccess, "", t0)
	assert.ErrorIs(t, err, workflow.ErrAlreadyTerminal)
}

func TestAdvance_OutOfOrder(t *testing.T) {
	r := newInitialized(t)
	require.NoError(t, r.Advance(1, workflow.OutcomeSuccess, "", t0))

	before := r.Snapshot()

	err := r.Advance(5, workflow.OutcomeSuccess, "", t0)
	assert.ErrorIs(t, err, workflow.ErrOutOfOrderTransition)

	err = r.Advance(1, workflow.OutcomeSuccess, "", t0)
	assert.ErrorIs(t, err, workflow.ErrOutOfOrderTransition)

	assert.Equal(t, before.Steps, r.Steps())
	assert.Equal(t, before.Status, r.Status())
}

func TestAdvance_InvalidStepNumber(t *testing.T) {
	r := newInitialized(t)
	assert.ErrorIs(t, r.Advance(0, workflow.OutcomeSuccess, "", t0), workflow.ErrInvalidStepNumber)
	assert.ErrorIs(t, r.Advance(13, workflow.OutcomeSuccess, "", t0), workflow.ErrInvalidStepNumber)
}

func TestAdvance_NotInitialized(t *testing.T) {
	r, err := NewLeaseRequest(validParams())
	require.NoError(t, err)
	assert.ErrorIs(t, r.Advance(1, workflow.OutcomeSuccess, "", t0), workflow.ErrNotInitialized)
}

func TestAdvance_FailureFailsRequest(t *testing.T) {
	r := newInitialized(t)
	for n := 1; n <= 5; n++ {
		require.NoError(t, r.Advance(n, workflow.OutcomeSuccess, "", t0))
	}

	require.NoError(t, r.Advance(6, workflow.OutcomeFailure, "ASIC record not found", t0))

	step, err := r.Step(6)
	require.NoError(t, err)
	assert.Equal(t, workflow.StepFailed, step.Status)
	assert.Equal(t, "ASIC record not found", step.Notes)
	assert.NotNil(t, step.CompletedAt)
	assert.Equal(t, workflow.StatusFailed, r.Status())

	next, _ := r.Step(7)
	assert.Equal(t, workflow.StepPending, next.Status)

	assert.ErrorIs(t, r.Advance(7, workflow.OutcomeSuccess, "", t0), workflow.ErrAlreadyTerminal)
}

func TestAdvance_RejectsUnknownOutcome(t *testing.T) {
	r := newInitialized(t)
	err := r.Advance(1, workflow.Outcome("timeout"), "", t0)
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)
	assert.Equal(t, 1, r.CurrentStep())
}

func TestFlagForReview_AndResolve(t *testing.T) {
	r := newInitialized(t)
	require.NoError(t, r.Advance(1, workflow.OutcomeSuccess, "", t0))

	require.NoError(t, r.FlagForReview(2, 0.65, t0))
	step, _ := r.Step(2)
	assert.Equal(t, workflow.StepReviewRequired, step.Status)
	assert.True(t, step.RequiresReview)
	require.NotNil(t, step.ConfidenceScore)
	assert.Equal(t, 0.65, *step.ConfidenceScore)
	assert.Equal(t, workflow.StatusPendingReview, r.Status())
	assert.True(t, r.HasLowConfidence(0.70))

	// a step in review cannot be advanced directly
	assert.ErrorIs(t, r.Advance(2, workflow.OutcomeSuccess, "", t0), workflow.ErrInvalidTransition)

	// re-flagging keeps the step in review
	require.NoError(t, r.FlagForReview(2, 0.40, t0))
	step, _ = r.Step(2)
	assert.Equal(t, 0.40, *step.ConfidenceScore)

	require.NoError(t, r.ResolveReview(2, "jane.reviewer", true, "checked manually", t0))
	step, _ = r.Step(2)
	assert.Equal(t, workflow.StepProcessing, step.Status)
	assert.False(t, step.RequiresReview)
	assert.Equal(t, "jane.reviewer", step.AssignedTo)
	assert.Equal(t, workflow.StatusDocumentExtraction, r.Status())

	require.NoError(t, r.Advance(2, workflow.OutcomeSuccess, "", t0))
	assert.Equal(t, workflow.StatusValidationReview, r.Status())
}

func TestResolveReview_Reject(t *testing.T) {
	r := newInitialized(t)
	require.NoError(t, r.Advance(1, workflow.OutcomeSuccess, "", t0))
	require.NoError(t, r.FlagForReview(2, 0.5, t0))

	require.NoError(t, r.ResolveReview(2, "jane.reviewer", false, "", t0))

	step, _ := r.Step(2)
	assert.Equal(t, workflow.StepFailed, step.Status)
	assert.NotNil(t, step.CompletedAt)
	assert.Equal(t, workflow.StatusFailed, r.Status())
}

func TestResolveReview_NotPending(t *testing.T) {
	r := newInitialized(t)
	require.NoError(t, r.Advance(1, workflow.OutcomeSuccess, "", t0))

	err := r.ResolveReview(2, "jane.reviewer", true, "", t0)
	assert.ErrorIs(t, err, workflow.ErrReviewNotPending)

	err = r.ResolveReview(4, "jane.reviewer", true, "", t0)
	assert.ErrorIs(t, err, workflow.ErrOutOfOrderTransition)
}

func TestFlagForReview_RejectsScoreOutOfRange(t *testing.T) {
	r := newInitialized(t)
	assert.ErrorIs(t, r.FlagForReview(1, 1.2, t0), ErrValidation)
	assert.ErrorIs(t, r.FlagForReview(1, -0.1, t0), ErrValidation)
}

func TestRecordExtraction(t *testing.T) {
	r := newInitialized(t)
	term := 36
	data := ExtractedData{TenantName: "Acme Retail Pty Ltd", LeaseTerm: &term}

	require.NoError(t, r.RecordExtraction("doc_LR-001_0", 0.91, data, t0))

	doc, err := r.Document("doc_LR-001_0")
	require.NoError(t, err)
	require.NotNil(t, doc.ConfidenceScore)
	assert.Equal(t, 0.91, *doc.ConfidenceScore)
	assert.Equal(t, "Acme Retail Pty Ltd", doc.ExtractedData.TenantName)
	assert.False(t, r.AllDocumentsScored())

	lowest, ok := r.LowestDocumentScore()
	assert.True(t, ok)
	assert.Equal(t, 0.91, lowest)

	require.NoError(t, r.RecordExtraction("doc_LR-001_1", 0.72, ExtractedData{}, t0))
	assert.True(t, r.AllDocumentsScored())
	lowest, _ = r.LowestDocumentScore()
	assert.Equal(t, 0.72, lowest)

	err = r.RecordExtraction("doc_missing", 0.9, data, t0)
	assert.ErrorIs(t, err, ErrDocumentNotFound)

	// the caller's data must not alias the stored copy
	term = 1
	doc, _ = r.Document("doc_LR-001_0")
	assert.Equal(t, 36, *doc.ExtractedData.LeaseTerm)
}

func TestProgressPercent(t *testing.T) {
	r := newInitialized(t)
	assert.Equal(t, 0.0, r.ProgressPercent())

	for n := 1; n <= 3; n++ {
		require.NoError(t, r.Advance(n, workflow.OutcomeSuccess, "", t0))
	}
	assert.Equal(t, 25.0, r.ProgressPercent())
}

func TestAtMostOneActiveStep(t *testing.T) {
	r := newInitialized(t)

	check := func() {
		active := 0
		for _, s := range r.Steps() {
			if s.Status.IsActive() {
				active++
			}
			assert.Equal(t, s.Status == workflow.StepReviewRequired, s.RequiresReview)
			assert.Equal(t, s.Status.IsTerminal(), s.CompletedAt != nil)
		}
		assert.LessOrEqual(t, active, 1)
	}

	check()
	require.NoError(t, r.Advance(1, workflow.OutcomeSuccess, "", t0))
	check()
	require.NoError(t, r.FlagForReview(2, 0.3, t0))
	check()
	require.NoError(t, r.ResolveReview(2, "bob", true, "", t0))
	check()
	require.NoError(t, r.Advance(2, workflow.OutcomeSuccess, "", t0))
	check()
}

func TestAppendAudit_Chronological(t *testing.T) {
	r := newInitialized(t)

	require.NoError(t, r.AppendAudit(AuditEntry{ID: "a1", Timestamp: t0}))
	require.NoError(t, r.AppendAudit(AuditEntry{ID: "a2", Timestamp: t0}))
	require.NoError(t, r.AppendAudit(AuditEntry{ID: "a3", Timestamp: t0.Add(time.Second)}))

	err := r.AppendAudit(AuditEntry{ID: "a4", Timestamp: t0})
	assert.ErrorIs(t, err, workflow.ErrInvalidState)
	assert.Len(t, r.AuditTrail(), 3)
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	r := newInitialized(t)
	require.NoError(t, r.Advance(1, workflow.OutcomeSuccess, "", t0))
	require.NoError(t, r.FlagForReview(2, 0.6, t0))
	r.SetVersion(4)

	restored, err := RestoreLeaseRequest(r.Snapshot())
	require.NoError(t, err)

	assert.Equal(t, r.Status(), restored.Status())
	assert.Equal(t, r.Steps(), restored.Steps())
	assert.Equal(t, int64(4), restored.Version())
	assert.Equal(t, r.Documents(), restored.Documents())
}

func TestRestoreLeaseRequest_RejectsBadState(t *testing.T) {
	r := newInitialized(t)

	snap := r.Snapshot()
	snap.Status = workflow.Status("Processing Documents")
	_, err := RestoreLeaseRequest(snap)
	assert.ErrorIs(t, err, workflow.ErrUnknownStatus)

	snap = r.Snapshot()
	snap.Steps[3].Status = workflow.StepProcessing
	_, err = RestoreLeaseRequest(snap)
	assert.ErrorIs(t, err, workflow.ErrInvalidState)

	snap = r.Snapshot()
	snap.Steps[0].RequiresReview = true
	_, err = RestoreLeaseRequest(snap)
	assert.ErrorIs(t, err, workflow.ErrInvalidState)

	snap = r.Snapshot()
	snap.Steps = snap.Steps[:5]
	_, err = RestoreLeaseRequest(snap)
	assert.ErrorIs(t, err, workflow.ErrInvalidState)
}

func TestAccessorsReturnCopies(t *testing.T) {
	r := newInitialized(t)

	steps := r.Steps()
	steps[0].Status = workflow.StepCompleted

	docs := r.Documents()
	docs[0].Name = "tampered"

	step, _ := r.Step(1)
	assert.Equal(t, workflow.StepProcessing, step.Status)
	assert.NotEqual(t, "tampered", r.Documents()[0].Name)
}
