package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/lease-agent/internal/application/port"
	"github.com/garyjia/lease-agent/internal/domain/entity"
)

type memDirectory struct {
	mu         sync.Mutex
	properties map[string]entity.Property
	partners   map[string]entity.BusinessPartner
	failOn     string
}

func newMemDirectory() *memDirectory {
	return &memDirectory{
		properties: make(map[string]entity.Property),
		partners:   make(map[string]entity.BusinessPartner),
	}
}

func (m *memDirectory) ListProperties(ctx context.Context, availableOnly bool) ([]entity.Property, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entity.Property
	for _, p := range m.properties {
		if availableOnly && !p.Available {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memDirectory) GetProperty(ctx context.Context, id string) (*entity.Property, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.properties[id]
	if !ok {
		return nil, fmt.Errorf("property %s: %w", id, port.ErrNotFound)
	}
	return &p, nil
}

func (m *memDirectory) ListBusinessPartners(ctx context.Context, search string) ([]entity.BusinessPartner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entity.BusinessPartner
	for _, b := range m.partners {
		out = append(out, b)
	}
	return out, nil
}

func (m *memDirectory) UpsertProperty(ctx context.Context, p *entity.Property) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == m.failOn {
		return port.ErrPersistence
	}
	m.properties[p.ID] = *p
	return nil
}

func (m *memDirectory) UpsertBusinessPartner(ctx context.Context, b *entity.BusinessPartner) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.ID == m.failOn {
		return port.ErrPersistence
	}
	m.partners[b.ID] = *b
	return nil
}

func (m *memDirectory) snapshot() (map[string]entity.Property, map[string]entity.BusinessPartner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	props := make(map[string]entity.Property, len(m.properties))
	for k, v := range m.properties {
		props[k] = v
	}
	partners := make(map[string]entity.BusinessPartner, len(m.partners))
	for k, v := range m.partners {
		partners[k] = v
	}
	return props, partners
}

// directoryTx rolls memDirectory back when fn fails
type directoryTx struct {
	dir *memDirectory
}

func (t directoryTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	props, partners := t.dir.snapshot()
	if err := fn(ctx); err != nil {
		t.dir.mu.Lock()
		t.dir.properties, t.dir.partners = props, partners
		t.dir.mu.Unlock()
		return err
	}
	return nil
}

func sampleDirectory() entity.Directory {
	return entity.Directory{
		Properties: []entity.Property{
			{ID: "PROP001", Address: "123 Collins Street, Melbourne VIC 3000", Type: entity.PropertyTypeRetail,
				AvailableArea: decimal.NewFromInt(150), Available: true},
			{ID: "PROP002", Address: "45 George Street, Sydney NSW 2000", Type: entity.PropertyTypeOffice,
				AvailableArea: decimal.NewFromInt(320)},
		},
		BusinessPartners: []entity.BusinessPartner{
			{ID: "BP001", Name: "Acme Retail Pty Ltd", ABN: "12 345 678 901"},
		},
	}
}

func TestDirectoryService_Import(t *testing.T) {
	dir := newMemDirectory()
	logger := &mockLogger{}
	svc := NewDirectoryService(dir, directoryTx{dir: dir}, logger)
	ctx := context.Background()

	result, err := svc.Import(ctx, sampleDirectory())
	require.NoError(t, err)
	assert.Equal(t, &ImportResult{Properties: 2, BusinessPartners: 1}, result)
	assert.Contains(t, logger.infos, "Directory imported")

	available, err := svc.ListProperties(ctx, true)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, "PROP001", available[0].ID)

	p, err := svc.GetProperty(ctx, " PROP002 ")
	require.NoError(t, err)
	assert.Equal(t, entity.PropertyTypeOffice, p.Type)

	_, err = svc.GetProperty(ctx, "PROP404")
	assert.ErrorIs(t, err, port.ErrNotFound)
}

func TestDirectoryService_ImportRejectsInvalidBatch(t *testing.T) {
	dir := newMemDirectory()
	svc := NewDirectoryService(dir, directoryTx{dir: dir}, &mockLogger{})

	batch := sampleDirectory()
	batch.Properties[1].Type = "warehouse"
	batch.BusinessPartners = append(batch.BusinessPartners,
		entity.BusinessPartner{ID: "BP001", Name: "Acme Duplicate", ABN: "12345678901", Email: "not-an-email"})

	_, err := svc.Import(context.Background(), batch)
	var verr *entity.ValidationError
	require.True(t, errors.As(err, &verr))

	fields := make([]string, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		fields = append(fields, f.Field)
	}
	assert.ElementsMatch(t, []string{
		"properties[1].property_type",
		"business_partners[1].abn",
		"business_partners[1].email",
		"business_partners[1].id",
	}, fields)
	assert.Empty(t, dir.properties)
}

func TestDirectoryService_ImportRollsBackOnStoreFailure(t *testing.T) {
	dir := newMemDirectory()
	dir.failOn = "BP001"
	logger := &mockLogger{}
	svc := NewDirectoryService(dir, directoryTx{dir: dir}, logger)

	_, err := svc.Import(context.Background(), sampleDirectory())
	require.ErrorIs(t, err, port.ErrPersistence)
	assert.Contains(t, err.Error(), "business partner BP001")
	assert.Empty(t, dir.properties)
	assert.NotEmpty(t, logger.errors)
}
