package container

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/lease-agent/internal/application/port"
	"github.com/garyjia/lease-agent/internal/application/service"
	"github.com/garyjia/lease-agent/internal/domain/entity"
	domainwf "github.com/garyjia/lease-agent/internal/domain/workflow"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Database.Path = filepath.Join(dir, "lease.db")
	cfg.Storage.DocumentDir = filepath.Join(dir, "documents")
	cfg.Agent.APIKey = "test-key"
	cfg.Worker.Enabled = false
	return cfg
}

func TestNewContainer_Validation(t *testing.T) {
	_, err := NewContainer(nil, zap.NewNop())
	assert.Error(t, err)

	_, err = NewContainer(testConfig(t), nil)
	assert.Error(t, err)

	cfg := testConfig(t)
	cfg.Workflow.ReviewThreshold = 0
	_, err = NewContainer(cfg, zap.NewNop())
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.Lock.Backend = "zookeeper"
	_, err = NewContainer(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestContainer_Lifecycle(t *testing.T) {
	c, err := NewContainer(testConfig(t), zap.NewNop())
	require.NoError(t, err)
	assert.False(t, c.Ready())

	require.NoError(t, c.Start(context.Background()))
	assert.True(t, c.Ready())
	assert.Error(t, c.Start(context.Background()), "second start")

	assert.NotNil(t, c.Engine())
	assert.NotNil(t, c.Server())
	assert.NotNil(t, c.Services().LeaseRequests)
	assert.Nil(t, c.ExtractionWorker())

	health := c.Health(context.Background())
	assert.True(t, health.Overall)
	assert.Equal(t, "memory", health.Components["lock"].Message)
	assert.Equal(t, "disabled", health.Components["workers"].Message)

	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
	assert.Error(t, c.Close(), "second close")
	assert.Error(t, c.Start(context.Background()), "start after close")
}

func TestContainer_SubmitThroughWiredStack(t *testing.T) {
	c, err := NewContainer(testConfig(t), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	r, err := c.Services().LeaseRequests.Submit(ctx, service.SubmitInput{
		PropertyID:      "PROP001",
		PropertyAddress: "123 Collins Street, Melbourne VIC 3000",
		RequestorEmail:  "requestor@example.com",
		Tenant:          entity.Tenant{Name: "Acme Retail Pty Ltd", ABN: "12 345 678 901"},
		Terms: entity.FinancialTerms{
			RentAmount:       decimal.NewFromInt(8500),
			SecurityDeposit:  decimal.NewFromInt(17000),
			LeaseTermMonths:  36,
			CommencementDate: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		},
		Documents: []service.DocumentUpload{{
			Name:     "lease.txt",
			Type:     entity.DocumentTypeLeaseAgreement,
			MimeType: "text/plain",
			Content:  []byte("Lease between Acme Retail Pty Ltd and the landlord"),
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, domainwf.StatusDocumentExtraction, r.Status())

	stored, err := c.Repositories().LeaseRequests.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.CurrentStep())
	assert.Len(t, stored.Steps(), 12)

	pending, err := c.Repositories().LeaseRequests.ListAwaitingExtraction(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, port.PendingExtraction{
		RequestID:  r.ID,
		DocumentID: entity.DocumentID(r.ID, 0),
		StepNumber: 2,
	}, pending[0])
}

func TestContainer_DirectoryImport(t *testing.T) {
	c, err := NewContainer(testConfig(t), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	dir := c.Services().Directory
	result, err := dir.Import(ctx, entity.Directory{
		Properties: []entity.Property{{
			ID: "PROP001", Address: "123 Collins Street, Melbourne VIC 3000",
			Type: entity.PropertyTypeRetail, AvailableArea: decimal.NewFromInt(150), Available: true,
		}},
		BusinessPartners: []entity.BusinessPartner{{ID: "BP001", Name: "Acme Retail Pty Ltd", ABN: "12 345 678 901"}},
	})
	require.NoError(t, err)
	assert.Equal(t, &service.ImportResult{Properties: 1, BusinessPartners: 1}, result)

	p, err := dir.GetProperty(ctx, "PROP001")
	require.NoError(t, err)
	assert.Equal(t, entity.PropertyTypeRetail, p.Type)

	partners, err := dir.ListBusinessPartners(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, partners, 1)
	assert.Equal(t, "BP001", partners[0].ID)
}

func TestConvertToZapFields(t *testing.T) {
	fields := convertToZapFields("request_id", "LR-1", 42, "skipped", "error", assert.AnError, "dangling")
	require.Len(t, fields, 2)
	assert.Equal(t, "request_id", fields[0].Key)
	assert.Equal(t, "error", fields[1].Key)
}
