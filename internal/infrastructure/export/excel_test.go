package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/lease-agent/internal/domain/entity"
	"github.com/garyjia/lease-agent/internal/domain/workflow"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newRequest(t *testing.T, id string) *entity.LeaseRequest {
	t.Helper()
	r, err := entity.NewLeaseRequest(entity.NewLeaseRequestParams{
		ID:              id,
		PropertyID:      "PROP001",
		PropertyAddress: "123 Collins Street, Melbourne VIC 3000",
		RequestorEmail:  "requestor@example.com",
		Tenant:          entity.Tenant{Name: "Acme Retail Pty Ltd", ABN: "12 345 678 901"},
		Terms: entity.FinancialTerms{
			RentAmount:       decimal.RequireFromString("8500.5"),
			SecurityDeposit:  decimal.NewFromInt(17000),
			LeaseTermMonths:  36,
			CommencementDate: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		},
		Documents: []*entity.LeaseDocument{
			{ID: entity.DocumentID(id, 0), Name: "lease.pdf", Type: entity.DocumentTypeLeaseAgreement, MimeType: "application/pdf", Size: 10, UploadedAt: t0},
		},
		CreatedAt: t0,
	})
	require.NoError(t, err)
	require.NoError(t, r.Initialize(t0))
	return r
}

func openWorkbook(t *testing.T, data []byte) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestExportAuditTrail(t *testing.T) {
	r := newRequest(t, "LR-1")
	require.NoError(t, r.Advance(1, workflow.OutcomeSuccess, "", t0))
	require.NoError(t, r.FlagForReview(2, 0.65, t0))

	step := 2
	score := 0.65
	require.NoError(t, r.AppendAudit(entity.AuditEntry{
		ID: "a1", RequestID: r.ID, Timestamp: t0, Action: entity.ActionRequestCreated,
		PerformedBy: "requestor@example.com", Details: "submitted",
	}))
	require.NoError(t, r.AppendAudit(entity.AuditEntry{
		ID: "a2", RequestID: r.ID, Timestamp: t0.Add(time.Minute), Action: entity.ActionReviewRequired,
		PerformedBy: entity.SystemActor, StepNumber: &step, ConfidenceScore: &score,
	}))

	data, err := NewExcelExporter(zap.NewNop()).ExportAuditTrail(r)
	require.NoError(t, err)

	f := openWorkbook(t, data)
	assert.Equal(t, []string{auditSheet, stepsSheet}, f.GetSheetList())

	rows, err := f.GetRows(auditSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Timestamp", rows[0][0])
	assert.Equal(t, "2024-03-01 09:00:00", rows[1][0])
	assert.Equal(t, entity.ActionRequestCreated, rows[1][1])
	assert.Equal(t, entity.ActionReviewRequired, rows[2][1])
	assert.Equal(t, "2", rows[2][3])
	assert.Equal(t, "65%", rows[2][4])

	steps, err := f.GetRows(stepsSheet)
	require.NoError(t, err)
	require.Len(t, steps, workflow.TotalSteps+1)
	assert.Equal(t, "Document Extraction", steps[2][1])
	assert.Equal(t, string(workflow.StepReviewRequired), steps[2][2])
	assert.Equal(t, "Yes", steps[2][6])
}

func TestExportRegister(t *testing.T) {
	requests := []*entity.LeaseRequest{newRequest(t, "LR-1"), newRequest(t, "LR-2")}

	data, err := NewExcelExporter(zap.NewNop()).ExportRegister(requests)
	require.NoError(t, err)

	f := openWorkbook(t, data)
	rows, err := f.GetRows(registerSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Request ID", rows[0][0])
	assert.Equal(t, "LR-1", rows[1][0])
	assert.Equal(t, "Acme Retail Pty Ltd", rows[1][1])
	assert.Equal(t, string(workflow.StatusInitiated), rows[1][4])
	assert.Equal(t, "8500.50", rows[1][7])
	assert.Equal(t, "2024-04-01", rows[1][10])
}

func TestExportRegister_Empty(t *testing.T) {
	data, err := NewExcelExporter(zap.NewNop()).ExportRegister(nil)
	require.NoError(t, err)

	rows, err := openWorkbook(t, data).GetRows(registerSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
