package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/lease-agent/internal/application/audit"
	"github.com/garyjia/lease-agent/internal/application/dispatcher"
	"github.com/garyjia/lease-agent/internal/application/port"
	"github.com/garyjia/lease-agent/internal/application/workflow"
	"github.com/garyjia/lease-agent/internal/domain/entity"
	"github.com/garyjia/lease-agent/internal/domain/event"
	domainwf "github.com/garyjia/lease-agent/internal/domain/workflow"
)

type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Warn(msg string, keysAndValues ...interface{}) {}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

type memRepo struct {
	mu        sync.Mutex
	requests  map[string]entity.Snapshot
	audit     map[string][]entity.AuditEntry
	createErr error
	counts    port.StatusCounts
}

func newMemRepo() *memRepo {
	return &memRepo{
		requests: make(map[string]entity.Snapshot),
		audit:    make(map[string][]entity.AuditEntry),
	}
}

func (m *memRepo) Create(ctx context.Context, r *entity.LeaseRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	r.SetVersion(1)
	m.requests[r.ID] = r.Snapshot()
	return nil
}

func (m *memRepo) GetByID(ctx context.Context, id string) (*entity.LeaseRequest, error) {
	m.mu.Lock()
	snap, ok := m.requests[id]
	snap.AuditTrail = append([]entity.AuditEntry(nil), m.audit[id]...)
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("request %s: %w", id, port.ErrNotFound)
	}
	return entity.RestoreLeaseRequest(snap)
}

func (m *memRepo) Update(ctx context.Context, r *entity.LeaseRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.SetVersion(r.Version() + 1)
	m.requests[r.ID] = r.Snapshot()
	return nil
}

func (m *memRepo) List(ctx context.Context, filter port.ListFilter) ([]*entity.LeaseRequest, error) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.requests))
	for id, snap := range m.requests {
		if filter.Status != "" && snap.Status != filter.Status {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(snap.Tenant.Name), strings.ToLower(filter.Search)) {
			continue
		}
		ids = append(ids, id)
	}
	m.mu.Unlock()
	sort.Strings(ids)

	out := make([]*entity.LeaseRequest, 0, len(ids))
	for _, id := range ids {
		r, err := m.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *memRepo) CountByStatus(ctx context.Context) (port.StatusCounts, error) {
	return m.counts, nil
}

func (m *memRepo) ListAwaitingExtraction(ctx context.Context, limit int) ([]port.PendingExtraction, error) {
	return nil, nil
}

func (m *memRepo) Append(ctx context.Context, entry *entity.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit[entry.RequestID] = append(m.audit[entry.RequestID], *entry)
	return nil
}

func (m *memRepo) ListByRequest(ctx context.Context, requestID string) ([]entity.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]entity.AuditEntry(nil), m.audit[requestID]...), nil
}

func (m *memRepo) snapshot() (map[string]entity.Snapshot, map[string][]entity.AuditEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	requests := make(map[string]entity.Snapshot, len(m.requests))
	for k, v := range m.requests {
		requests[k] = v
	}
	trail := make(map[string][]entity.AuditEntry, len(m.audit))
	for k, v := range m.audit {
		trail[k] = append([]entity.AuditEntry(nil), v...)
	}
	return requests, trail
}

func (m *memRepo) restore(requests map[string]entity.Snapshot, trail map[string][]entity.AuditEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = requests
	m.audit = trail
}

type memTxKey struct{}

// memTx rolls memRepo back when the outermost call fails; nested calls join
type memTx struct {
	repo *memRepo
}

func (t memTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}
	requests, trail := t.repo.snapshot()
	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		t.repo.restore(requests, trail)
		return err
	}
	return nil
}

// scriptedLocker grants locks until call number failFrom, then reports a conflict
type scriptedLocker struct {
	mu       sync.Mutex
	calls    int
	failFrom int
}

func (l *scriptedLocker) TryLock(ctx context.Context, key string) (port.Unlock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.failFrom > 0 && l.calls >= l.failFrom {
		return nil, domainwf.ErrConcurrentModification
	}
	return func() {}, nil
}

type memStorage struct {
	mu      sync.Mutex
	files   map[string][]byte
	saveErr error
}

func newMemStorage() *memStorage {
	return &memStorage{files: make(map[string][]byte)}
}

func (m *memStorage) Save(ctx context.Context, ref string, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.files[ref] = content
	return nil
}

func (m *memStorage) Read(ctx context.Context, ref string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, ok := m.files[ref]
	if !ok {
		return nil, errors.New("file not found")
	}
	return content, nil
}

func (m *memStorage) Exists(ctx context.Context, ref string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[ref]
	return ok
}

func (m *memStorage) Delete(ctx context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, ref)
	return nil
}

type fakeExporter struct {
	auditFor   string
	registered int
}

func (f *fakeExporter) ExportAuditTrail(r *entity.LeaseRequest) ([]byte, error) {
	f.auditFor = r.ID
	return []byte("xlsx"), nil
}

func (f *fakeExporter) ExportRegister(requests []*entity.LeaseRequest) ([]byte, error) {
	f.registered = len(requests)
	return []byte("xlsx"), nil
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []*event.Event
	subs   map[event.Type][]string
}

func (d *recordingDispatcher) Subscribe(eventType event.Type, handler dispatcher.Handler) {}

func (d *recordingDispatcher) SubscribeNamed(eventType event.Type, name string, handler dispatcher.Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.subs == nil {
		d.subs = make(map[event.Type][]string)
	}
	d.subs[eventType] = append(d.subs[eventType], name)
}

func (d *recordingDispatcher) Unsubscribe(eventType event.Type, name string) {}

func (d *recordingDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	d.DispatchAsync(ctx, evt)
	return nil
}

func (d *recordingDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, evt)
}

func (d *recordingDispatcher) ListHandlers(eventType event.Type) []dispatcher.HandlerInfo {
	return nil
}

func (d *recordingDispatcher) Close() error { return nil }

func (d *recordingDispatcher) types() []event.Type {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]event.Type, 0, len(d.events))
	for _, e := range d.events {
		out = append(out, e.Type)
	}
	return out
}

type testEnv struct {
	repo       *memRepo
	storage    *memStorage
	exporter   *fakeExporter
	dispatcher *recordingDispatcher
	logger     *mockLogger
	locker     *scriptedLocker
	engine     workflow.Engine
	service    LeaseRequestService
}

func newTestEnv(opts ...workflow.EngineOption) *testEnv {
	env := &testEnv{
		repo:       newMemRepo(),
		storage:    newMemStorage(),
		exporter:   &fakeExporter{},
		dispatcher: &recordingDispatcher{},
		logger:     &mockLogger{},
		locker:     &scriptedLocker{},
	}
	tx := memTx{repo: env.repo}
	recorder := audit.NewRecorder(env.repo)
	opts = append([]workflow.EngineOption{workflow.WithDispatcher(env.dispatcher)}, opts...)
	env.engine = workflow.NewEngine(env.repo, recorder, tx, env.locker, opts...)
	env.service = NewLeaseRequestService(env.repo, env.repo, tx, env.storage, env.exporter,
		env.engine, recorder, env.dispatcher, env.logger)
	return env
}

func validSubmitInput(docs ...DocumentUpload) SubmitInput {
	if len(docs) == 0 {
		docs = []DocumentUpload{{
			Name:     "Lease Agreement.PDF",
			Type:     entity.DocumentTypeLeaseAgreement,
			MimeType: "application/pdf",
			Content:  []byte("%PDF-1.4 lease"),
		}}
	}
	return SubmitInput{
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
		Documents: docs,
	}
}
