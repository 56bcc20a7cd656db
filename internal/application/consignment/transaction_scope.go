package consignment

import (
	"context"

	"github.com/erp/consignment/internal/domain/consignment"
)

// TransactionScope runs a unit of work atomically. If fn returns an error
// every write made through the provided repositories is rolled back.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories exposes everything a consignment operation may
// write, bound to one transaction. The stock pool and the ledger are
// included so that a failing collaborator rolls back the batch changes too.
type TransactionalRepositories interface {
	BatchRepo() consignment.BatchRepository
	PaymentRepo() consignment.PaymentRepository
	BalanceRepo() consignment.SupplierBalanceRepository
	StockPool() consignment.ProductStockPool
	Ledger() consignment.LiabilityLedger
}

// NoOpTransactionScope runs fn directly against the given repositories.
// Used by tests and single-process setups without a transactional store.
type NoOpTransactionScope struct {
	batchRepo   consignment.BatchRepository
	paymentRepo consignment.PaymentRepository
	balanceRepo consignment.SupplierBalanceRepository
	stockPool   consignment.ProductStockPool
	ledger      consignment.LiabilityLedger
}

// NewNoOpTransactionScope creates a NoOpTransactionScope
func NewNoOpTransactionScope(
	batchRepo consignment.BatchRepository,
	paymentRepo consignment.PaymentRepository,
	balanceRepo consignment.SupplierBalanceRepository,
	stockPool consignment.ProductStockPool,
	ledger consignment.LiabilityLedger,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		batchRepo:   batchRepo,
		paymentRepo: paymentRepo,
		balanceRepo: balanceRepo,
		stockPool:   stockPool,
		ledger:      ledger,
	}
}

func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

func (s *NoOpTransactionScope) BatchRepo() consignment.BatchRepository             { return s.batchRepo }
func (s *NoOpTransactionScope) PaymentRepo() consignment.PaymentRepository         { return s.paymentRepo }
func (s *NoOpTransactionScope) BalanceRepo() consignment.SupplierBalanceRepository { return s.balanceRepo }
func (s *NoOpTransactionScope) StockPool() consignment.ProductStockPool            { return s.stockPool }
func (s *NoOpTransactionScope) Ledger() consignment.LiabilityLedger                { return s.ledger }

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
