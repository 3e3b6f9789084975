package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/lease-agent/internal/domain/entity"
)

func TestAuditRepository_AppendAndList(t *testing.T) {
	db := openTestDB(t)
	requests := NewLeaseRequestRepository(db.DB, zap.NewNop())
	repo := NewAuditRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, requests.Create(ctx, newRequest(t, "LR-a", "Acme Retail Pty Ltd", baseTime)))

	step := 2
	score := 0.65
	breached := true
	entries := []entity.AuditEntry{
		{ID: "a1", RequestID: "LR-a", Timestamp: baseTime, Action: entity.ActionRequestCreated, PerformedBy: "requestor@example.com", Details: "submitted"},
		{ID: "a2", RequestID: "LR-a", Timestamp: baseTime, Action: entity.ActionWorkflowInitialized, PerformedBy: entity.SystemActor},
		{ID: "a3", RequestID: "LR-a", Timestamp: baseTime.Add(time.Second), Action: entity.ActionReviewRequired, PerformedBy: entity.SystemActor,
			StepNumber: &step, ConfidenceScore: &score, SLABreached: &breached},
	}
	for i := range entries {
		require.NoError(t, repo.Append(ctx, &entries[i]))
	}

	got, err := repo.ListByRequest(ctx, "LR-a")
	require.NoError(t, err)
	require.Len(t, got, 3)

	// same timestamp keeps insertion order
	assert.Equal(t, "a1", got[0].ID)
	assert.Equal(t, "a2", got[1].ID)
	assert.Nil(t, got[1].StepNumber)
	assert.Nil(t, got[1].ConfidenceScore)

	last := got[2]
	assert.Equal(t, entity.ActionReviewRequired, last.Action)
	require.NotNil(t, last.StepNumber)
	assert.Equal(t, 2, *last.StepNumber)
	require.NotNil(t, last.ConfidenceScore)
	assert.InDelta(t, 0.65, *last.ConfidenceScore, 1e-9)
	require.NotNil(t, last.SLABreached)
	assert.True(t, *last.SLABreached)
	assert.True(t, last.Timestamp.Equal(baseTime.Add(time.Second)))

	// the aggregate carries the same trail
	r, err := requests.GetByID(ctx, "LR-a")
	require.NoError(t, err)
	assert.Len(t, r.AuditTrail(), 3)
}

func TestAuditRepository_ListEmpty(t *testing.T) {
	db := openTestDB(t)
	got, err := NewAuditRepository(db.DB, zap.NewNop()).ListByRequest(context.Background(), "LR-none")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAuditRepository_AppendRequiresRequest(t *testing.T) {
	db := openTestDB(t)
	err := NewAuditRepository(db.DB, zap.NewNop()).Append(context.Background(), &entity.AuditEntry{
		ID: "orphan", RequestID: "LR-none", Timestamp: baseTime, Action: entity.ActionStepCompleted, PerformedBy: entity.SystemActor,
	})
	assert.Error(t, err)
}
