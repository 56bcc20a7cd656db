package consignment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/erp/consignment/internal/domain/consignment"
	"github.com/erp/consignment/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// =============================================================================
// Mock collaborators
// =============================================================================

// MockSupplierDirectory is a mock implementation of SupplierDirectory
type MockSupplierDirectory struct {
	mock.Mock
}

func (m *MockSupplierDirectory) IsConsignmentEligible(ctx context.Context, tenantID, supplierID uuid.UUID) (bool, error) {
	args := m.Called(ctx, tenantID, supplierID)
	return args.Bool(0), args.Error(1)
}

// MockProductStockPool is a mock implementation of ProductStockPool
type MockProductStockPool struct {
	mock.Mock
}

func (m *MockProductStockPool) Exists(ctx context.Context, tenantID, productID uuid.UUID) (bool, error) {
	args := m.Called(ctx, tenantID, productID)
	return args.Bool(0), args.Error(1)
}

func (m *MockProductStockPool) IncrementConsignmentStock(ctx context.Context, tenantID, productID uuid.UUID, delta decimal.Decimal) error {
	args := m.Called(ctx, tenantID, productID, delta)
	return args.Error(0)
}

// MockLiabilityLedger is a mock implementation of LiabilityLedger
type MockLiabilityLedger struct {
	mock.Mock
}

func (m *MockLiabilityLedger) RecordLiabilityReduction(ctx context.Context, entry consignment.LiabilityReduction) (uuid.UUID, error) {
	args := m.Called(ctx, entry)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

// MockEventPublisher records published events
type MockEventPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (m *MockEventPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return nil
}

func (m *MockEventPublisher) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.EventType())
	}
	return out
}

// =============================================================================
// In-memory repositories
// =============================================================================

// memBatchRepo stores copies so that unsaved mutations stay invisible, and
// enforces the same version check as the database implementation.
type memBatchRepo struct {
	mu        sync.Mutex
	items     map[uuid.UUID]consignment.ConsignmentBatch
	conflicts int
	// afterSummaryRead, when set, runs once after FindForSummary has read the
	// batches and before it returns them
	afterSummaryRead func()
}

func newMemBatchRepo() *memBatchRepo {
	return &memBatchRepo{items: make(map[uuid.UUID]consignment.ConsignmentBatch)}
}

func (r *memBatchRepo) put(b *consignment.ConsignmentBatch) {
	c := *b
	c.ClearDomainEvents()
	r.items[b.ID] = c
}

func (r *memBatchRepo) get(id uuid.UUID) *consignment.ConsignmentBatch {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.items[id]
	if !ok {
		return nil
	}
	return &c
}

func (r *memBatchRepo) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*consignment.ConsignmentBatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.items[id]
	if !ok || c.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	return &c, nil
}

func (r *memBatchRepo) FindByIDsForTenant(_ context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]*consignment.ConsignmentBatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*consignment.ConsignmentBatch, 0, len(ids))
	seen := map[uuid.UUID]bool{}
	for _, id := range ids {
		c, ok := r.items[id]
		if !ok || c.TenantID != tenantID || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, &c)
	}
	return out, nil
}

func (r *memBatchRepo) FindAllForTenant(_ context.Context, tenantID uuid.UUID, filter consignment.BatchFilter) ([]*consignment.ConsignmentBatch, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*consignment.ConsignmentBatch, 0)
	for _, item := range r.items {
		c := item
		if c.TenantID != tenantID {
			continue
		}
		if filter.SupplierID != nil && c.SupplierID != *filter.SupplierID {
			continue
		}
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.Before(out[j].ReceivedAt) })
	return out, int64(len(out)), nil
}

func (r *memBatchRepo) FindForSummary(_ context.Context, tenantID uuid.UUID, filter consignment.SummaryFilter) ([]*consignment.ConsignmentBatch, error) {
	out := r.summaryRows(tenantID, filter)
	r.mu.Lock()
	hook := r.afterSummaryRead
	r.afterSummaryRead = nil
	r.mu.Unlock()

	if hook != nil {
		hook()
	}
	return out, nil
}

func (r *memBatchRepo) summaryRows(tenantID uuid.UUID, filter consignment.SummaryFilter) []*consignment.ConsignmentBatch {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*consignment.ConsignmentBatch, 0)
	for _, item := range r.items {
		c := item
		if c.TenantID != tenantID || c.Status == consignment.BatchStatusReceived {
			continue
		}
		if filter.SupplierID != nil && c.SupplierID != *filter.SupplierID {
			continue
		}
		out = append(out, &c)
	}
	return out
}

func (r *memBatchRepo) ExistsByBatchNumber(_ context.Context, tenantID uuid.UUID, batchNumber string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.items {
		if c.TenantID == tenantID && c.BatchNumber == batchNumber {
			return true, nil
		}
	}
	return false, nil
}

func (r *memBatchRepo) Save(_ context.Context, b *consignment.ConsignmentBatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.put(b)
	return nil
}

func (r *memBatchRepo) SaveWithLock(_ context.Context, b *consignment.ConsignmentBatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflicts > 0 {
		r.conflicts--
		return shared.ErrConcurrencyConflict
	}
	stored, ok := r.items[b.ID]
	if !ok || stored.Version != b.Version-1 {
		return shared.ErrConcurrencyConflict
	}
	r.put(b)
	return nil
}

type memPaymentRepo struct {
	mu    sync.Mutex
	items []*consignment.ConsignmentPayment
}

func (r *memPaymentRepo) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*consignment.ConsignmentPayment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.items {
		if p.ID == id && p.TenantID == tenantID {
			return p, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memPaymentRepo) FindByIdempotencyKey(_ context.Context, tenantID uuid.UUID, key string) (*consignment.ConsignmentPayment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.items {
		if p.TenantID == tenantID && p.IdempotencyKey == key {
			return p, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memPaymentRepo) FindAllForTenant(_ context.Context, tenantID uuid.UUID, filter consignment.PaymentFilter) ([]*consignment.ConsignmentPayment, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*consignment.ConsignmentPayment, 0)
	for _, p := range r.items {
		if p.TenantID != tenantID {
			continue
		}
		if filter.SupplierID != nil && p.SupplierID != *filter.SupplierID {
			continue
		}
		out = append(out, p)
	}
	return out, int64(len(out)), nil
}

func (r *memPaymentRepo) Save(_ context.Context, p *consignment.ConsignmentPayment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.IdempotencyKey != "" {
		for _, existing := range r.items {
			if existing.TenantID == p.TenantID && existing.IdempotencyKey == p.IdempotencyKey {
				return shared.ErrAlreadyExists
			}
		}
	}
	r.items = append(r.items, p)
	return nil
}

func (r *memPaymentRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

type memBalanceRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]consignment.SupplierBalance
	// afterFindAll, when set, runs once after FindAllForTenant has read the
	// balances and before it returns them
	afterFindAll func()
}

func newMemBalanceRepo() *memBalanceRepo {
	return &memBalanceRepo{items: make(map[uuid.UUID]consignment.SupplierBalance)}
}

func (r *memBalanceRepo) get(supplierID uuid.UUID) *consignment.SupplierBalance {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.items {
		if b.SupplierID == supplierID {
			c := b
			return &c
		}
	}
	return nil
}

func (r *memBalanceRepo) FindBySupplier(_ context.Context, tenantID, supplierID uuid.UUID) (*consignment.SupplierBalance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.items {
		if b.TenantID == tenantID && b.SupplierID == supplierID {
			c := b
			return &c, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memBalanceRepo) FindAllForTenant(_ context.Context, tenantID uuid.UUID) ([]*consignment.SupplierBalance, error) {
	r.mu.Lock()
	out := make([]*consignment.SupplierBalance, 0)
	for _, b := range r.items {
		if b.TenantID == tenantID {
			c := b
			out = append(out, &c)
		}
	}
	hook := r.afterFindAll
	r.afterFindAll = nil
	r.mu.Unlock()

	if hook != nil {
		hook()
	}
	return out, nil
}

func (r *memBalanceRepo) Create(_ context.Context, b *consignment.SupplierBalance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.TenantID == b.TenantID && existing.SupplierID == b.SupplierID {
			return shared.ErrConcurrencyConflict
		}
	}
	r.items[b.ID] = *b
	return nil
}

func (r *memBalanceRepo) SaveWithLock(_ context.Context, b *consignment.SupplierBalance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[b.ID]
	if !ok || stored.Version != b.Version {
		return shared.ErrConcurrencyConflict
	}
	b.Version++
	r.items[b.ID] = *b
	return nil
}

// fakeIdempotencyStore is a map-backed IdempotencyStore
type fakeIdempotencyStore struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{keys: make(map[string]bool)}
}

func (s *fakeIdempotencyStore) MarkProcessed(_ context.Context, key string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keys[key] {
		return false, nil
	}
	s.keys[key] = true
	return true, nil
}

func (s *fakeIdempotencyStore) IsProcessed(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys[key], nil
}

func (s *fakeIdempotencyStore) Forget(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
	return nil
}

func (s *fakeIdempotencyStore) Close() error { return nil }

// fakeLocker hands out locks per key and can be told a key is busy
type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	busy     map[string]bool
	acquired []string
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: map[string]bool{}, busy: map[string]bool{}}
}

func (l *fakeLocker) Acquire(_ context.Context, key string, _ time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.busy[key] || l.held[key] {
		return nil, shared.ErrConcurrencyConflict
	}
	l.held[key] = true
	l.acquired = append(l.acquired, key)
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
		return nil
	}, nil
}
