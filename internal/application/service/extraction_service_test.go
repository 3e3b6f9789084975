package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/lease-agent/internal/application/port"
	"github.com/garyjia/lease-agent/internal/domain/entity"
	domainwf "github.com/garyjia/lease-agent/internal/domain/workflow"
)

type mockAgent struct {
	extractFunc func(ctx context.Context, req port.ExtractionRequest) ([]port.ExtractionResult, error)
	calls       []port.ExtractionRequest
}

func (m *mockAgent) Extract(ctx context.Context, req port.ExtractionRequest) ([]port.ExtractionResult, error) {
	m.calls = append(m.calls, req)
	return m.extractFunc(ctx, req)
}

// scoreAll answers every document with the same score
func scoreAll(score float64) func(ctx context.Context, req port.ExtractionRequest) ([]port.ExtractionResult, error) {
	return func(ctx context.Context, req port.ExtractionRequest) ([]port.ExtractionResult, error) {
		out := make([]port.ExtractionResult, 0, len(req.Documents))
		for _, d := range req.Documents {
			out = append(out, port.ExtractionResult{
				DocumentID:      d.ID,
				Data:            entity.ExtractedData{TenantName: "Acme Retail Pty Ltd"},
				ConfidenceScore: score,
			})
		}
		return out, nil
	}
}

type mockReader struct {
	text string
	err  error
}

func (m *mockReader) ExtractText(ctx context.Context, content []byte, mimeType string) (string, error) {
	return m.text, m.err
}

func newExtractionEnv(t *testing.T, agent *mockAgent, reader port.TextExtractor) (*testEnv, ExtractionService, *entity.LeaseRequest) {
	t.Helper()
	env := newTestEnv()
	r, err := env.service.Submit(context.Background(), validSubmitInput())
	require.NoError(t, err)
	svc := NewExtractionService(env.repo, env.storage, reader, agent, env.engine, time.Second, env.logger)
	return env, svc, r
}

func TestRunExtraction_HighConfidenceAutoAdvances(t *testing.T) {
	agent := &mockAgent{extractFunc: scoreAll(0.92)}
	env, svc, r := newExtractionEnv(t, agent, &mockReader{text: "LEASE AGREEMENT"})

	run, err := svc.RunExtraction(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, run.StepNumber)
	assert.Equal(t, 1, run.Submitted)
	assert.Equal(t, 1, run.Recorded)
	assert.False(t, run.FlaggedForReview)
	assert.True(t, run.AutoAdvanced)

	require.Len(t, agent.calls, 1)
	doc := agent.calls[0].Documents[0]
	assert.Equal(t, "LEASE AGREEMENT", doc.Text)
	assert.Equal(t, []byte("%PDF-1.4 lease"), doc.Payload)

	got, err := env.repo.GetByID(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.CurrentStep())
	assert.Equal(t, domainwf.StatusSpaceValidation, got.Status())
}

func TestRunExtraction_LowConfidenceFlagsReview(t *testing.T) {
	agent := &mockAgent{extractFunc: scoreAll(0.65)}
	env, svc, r := newExtractionEnv(t, agent, nil)

	run, err := svc.RunExtraction(context.Background(), r.ID)
	require.NoError(t, err)
	assert.True(t, run.FlaggedForReview)
	assert.False(t, run.AutoAdvanced)

	got, err := env.repo.GetByID(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, domainwf.StatusPendingReview, got.Status())
	step, err := got.Step(2)
	require.NoError(t, err)
	assert.True(t, step.RequiresReview)
}

func TestRunExtraction_AgentFailureRecordsNothing(t *testing.T) {
	agent := &mockAgent{
		extractFunc: func(ctx context.Context, req port.ExtractionRequest) ([]port.ExtractionResult, error) {
			return nil, errors.New("connection refused")
		},
	}
	env, svc, r := newExtractionEnv(t, agent, nil)

	_, err := svc.RunExtraction(context.Background(), r.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, port.ErrAgentUnavailable)

	got, err := env.repo.GetByID(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, domainwf.StatusDocumentExtraction, got.Status())
	for _, d := range got.Documents() {
		assert.False(t, d.IsScored())
	}
	assert.Len(t, got.AuditTrail(), 3)
}

func TestRunExtraction_AgentTimeout(t *testing.T) {
	agent := &mockAgent{
		extractFunc: func(ctx context.Context, req port.ExtractionRequest) ([]port.ExtractionResult, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	env := newTestEnv()
	r, err := env.service.Submit(context.Background(), validSubmitInput())
	require.NoError(t, err)
	svc := NewExtractionService(env.repo, env.storage, nil, agent, env.engine, 10*time.Millisecond, env.logger)

	_, err = svc.RunExtraction(context.Background(), r.ID)
	assert.ErrorIs(t, err, port.ErrAgentUnavailable)
}

func TestRunExtraction_ReaderFailureStillExtracts(t *testing.T) {
	agent := &mockAgent{extractFunc: scoreAll(0.85)}
	_, svc, r := newExtractionEnv(t, agent, &mockReader{err: errors.New("not a pdf")})

	run, err := svc.RunExtraction(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Recorded)
	assert.Empty(t, agent.calls[0].Documents[0].Text)
}

func TestRunExtraction_NothingToScore(t *testing.T) {
	agent := &mockAgent{extractFunc: scoreAll(0.92)}
	_, svc, r := newExtractionEnv(t, agent, nil)

	_, err := svc.RunExtraction(context.Background(), r.ID)
	require.NoError(t, err)

	// the request moved past extraction and every document is scored
	run, err := svc.RunExtraction(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Zero(t, run.Submitted)
	assert.Len(t, agent.calls, 1)
}

func TestRunExtraction_UnknownRequest(t *testing.T) {
	agent := &mockAgent{extractFunc: scoreAll(0.92)}
	env := newTestEnv()
	svc := NewExtractionService(env.repo, env.storage, nil, agent, env.engine, time.Second, env.logger)

	_, err := svc.RunExtraction(context.Background(), "LR-missing")
	assert.ErrorIs(t, err, port.ErrNotFound)
	assert.Empty(t, agent.calls)
}
