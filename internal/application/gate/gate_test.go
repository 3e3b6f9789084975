package gate

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/lease-agent/internal/domain/entity"
)

func TestDefaultThreshold(t *testing.T) {
	threshold := DefaultThreshold()

	assert.Equal(t, 0.70, threshold.Review)
	assert.Equal(t, "v1", threshold.ConfigVersion)
	assert.NoError(t, threshold.Validate())
}

func TestThreshold_Validate(t *testing.T) {
	tests := []struct {
		name        string
		review      float64
		expectError bool
	}{
		{"default", 0.70, false},
		{"upper bound", 1.0, false},
		{"zero", 0.0, true},
		{"negative", -0.1, true},
		{"above one", 1.5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Threshold{Review: tt.review}.Validate()
			if tt.expectError {
				assert.Error(t, err)
				_, newErr := New(Threshold{Review: tt.review})
				assert.Error(t, newErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestEvaluate_Boundary(t *testing.T) {
	g := Default()

	tests := []struct {
		score float64
		want  Verdict
	}{
		{0.0, VerdictReview},
		{0.65, VerdictReview},
		{0.6999, VerdictReview},
		{0.70, VerdictPass},
		{0.7001, VerdictPass},
		{1.0, VerdictPass},
	}

	for _, tt := range tests {
		d := g.Evaluate("LR-1", "doc_LR-1_0", 2, tt.score)
		assert.Equal(t, tt.want, d.Verdict, "score %.4f", tt.score)
		assert.Equal(t, tt.want == VerdictReview, d.NeedsReview())
		assert.Equal(t, 2, d.StepNumber)
		assert.NotEmpty(t, d.Rationale)
	}
}

func TestEvaluate_Rationale(t *testing.T) {
	d := Default().Evaluate("LR-1", "doc_LR-1_0", 2, 0.65)
	assert.Contains(t, d.Rationale, "0.65")
	assert.Contains(t, d.Rationale, "0.70")
	assert.Contains(t, d.String(), "REVIEW")
}

func TestReadyToAdvance(t *testing.T) {
	r, err := entity.NewLeaseRequest(entity.NewLeaseRequestParams{
		ID:              "LR-1",
		PropertyAddress: "1 Test St",
		RequestorEmail:  "a@example.com",
		Tenant:          entity.Tenant{Name: "Tenant"},
		Terms: entity.FinancialTerms{
			RentAmount:       decimal.NewFromInt(1000),
			LeaseTermMonths:  12,
			CommencementDate: time.Now(),
		},
		Documents: []*entity.LeaseDocument{
			{ID: "d0", Type: entity.DocumentTypeLeaseAgreement},
			{ID: "d1", Type: entity.DocumentTypeOther},
		},
	})
	require.NoError(t, err)

	g := Default()
	assert.False(t, g.ReadyToAdvance(r))

	require.NoError(t, r.RecordExtraction("d0", 0.95, entity.ExtractedData{}, time.Now()))
	assert.False(t, g.ReadyToAdvance(r), "one document still unscored")

	require.NoError(t, r.RecordExtraction("d1", 0.70, entity.ExtractedData{}, time.Now()))
	assert.True(t, g.ReadyToAdvance(r), "0.70 passes")

	require.NoError(t, r.RecordExtraction("d1", 0.69, entity.ExtractedData{}, time.Now()))
	assert.False(t, g.ReadyToAdvance(r))
}
