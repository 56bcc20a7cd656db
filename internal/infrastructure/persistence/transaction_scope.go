package persistence

import (
	"context"

	appconsignment "github.com/erp/consignment/internal/application/consignment"
	"github.com/erp/consignment/internal/domain/consignment"
	"github.com/erp/consignment/internal/infrastructure/resilience"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// Batches, payments, balances, the stock counter and the ledger are all
// written through the same transaction.
type GormTransactionScope struct {
	db     *gorm.DB
	guards *resilience.Guards
}

// ScopeOption configures a GormTransactionScope
type ScopeOption func(*GormTransactionScope)

// WithGuards routes stock and ledger calls through the given circuit breakers
func WithGuards(g *resilience.Guards) ScopeOption {
	return func(s *GormTransactionScope) {
		s.guards = g
	}
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB, opts ...ScopeOption) *GormTransactionScope {
	s := &GormTransactionScope{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Execute runs fn within a database transaction. If fn returns an error,
// the transaction is rolled back.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appconsignment.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx, guards: s.guards})
	})
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx     *gorm.DB
	guards *resilience.Guards
}

func (r *gormTransactionalRepositories) BatchRepo() consignment.BatchRepository {
	return NewGormBatchRepository(r.tx)
}

func (r *gormTransactionalRepositories) PaymentRepo() consignment.PaymentRepository {
	return NewGormPaymentRepository(r.tx)
}

func (r *gormTransactionalRepositories) BalanceRepo() consignment.SupplierBalanceRepository {
	return NewGormSupplierBalanceRepository(r.tx)
}

func (r *gormTransactionalRepositories) StockPool() consignment.ProductStockPool {
	pool := NewGormProductStockPool(r.tx)
	if r.guards == nil {
		return pool
	}
	return resilience.GuardProductStockPool(pool, r.guards.Products)
}

func (r *gormTransactionalRepositories) Ledger() consignment.LiabilityLedger {
	ledger := NewGormLiabilityLedger(r.tx)
	if r.guards == nil {
		return ledger
	}
	return resilience.GuardLiabilityLedger(ledger, r.guards.Ledger)
}

var _ appconsignment.TransactionScope = (*GormTransactionScope)(nil)
var _ appconsignment.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
