package consignment

import (
	"context"
	"testing"

	"github.com/erp/consignment/internal/domain/consignment"
	"github.com/erp/consignment/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decEq(s string) interface{} {
	expected := dec(s)
	return mock.MatchedBy(func(d decimal.Decimal) bool { return d.Equal(expected) })
}

func assertDecimal(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(expected).Equal(actual), "expected %s, got %s", expected, actual.String())
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var de *shared.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, code, de.Code)
}

type fixture struct {
	ctx        context.Context
	tenantID   uuid.UUID
	supplierID uuid.UUID
	productID  uuid.UUID
	operatorID uuid.UUID

	batches   *memBatchRepo
	payments  *memPaymentRepo
	balances  *memBalanceRepo
	suppliers *MockSupplierDirectory
	stock     *MockProductStockPool
	ledger    *MockLiabilityLedger
	publisher *MockEventPublisher
	locker    *fakeLocker
	idem      *fakeIdempotencyStore

	batchSvc   *BatchService
	paymentSvc *PaymentService
	summarySvc *SummaryService
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	f := &fixture{
		ctx:        context.Background(),
		tenantID:   uuid.New(),
		supplierID: uuid.New(),
		productID:  uuid.New(),
		operatorID: uuid.New(),
		batches:    newMemBatchRepo(),
		payments:   &memPaymentRepo{},
		balances:   newMemBalanceRepo(),
		suppliers:  new(MockSupplierDirectory),
		stock:      new(MockProductStockPool),
		ledger:     new(MockLiabilityLedger),
		publisher:  &MockEventPublisher{},
		locker:     newFakeLocker(),
		idem:       newFakeIdempotencyStore(),
	}
	scope := NewNoOpTransactionScope(f.batches, f.payments, f.balances, f.stock, f.ledger)

	f.batchSvc = NewBatchService(scope, f.batches, f.suppliers, f.stock, nil, opts)
	f.batchSvc.SetEventPublisher(f.publisher)
	f.batchSvc.SetIdempotencyStore(f.idem)

	f.paymentSvc = NewPaymentService(scope, f.payments, f.suppliers, f.locker, nil, opts)
	f.paymentSvc.SetEventPublisher(f.publisher)

	f.summarySvc = NewSummaryService(scope, f.batches, f.balances, nil)
	return f
}

func testOptions(policy consignment.OverpaymentPolicy) Options {
	opts := DefaultOptions()
	opts.OverpaymentPolicy = policy
	opts.RetryBackoff = 0
	return opts
}

// allowCollaborators makes every collaborator succeed
func (f *fixture) allowCollaborators() {
	f.suppliers.On("IsConsignmentEligible", mock.Anything, f.tenantID, mock.Anything).Return(true, nil).Maybe()
	f.stock.On("Exists", mock.Anything, f.tenantID, mock.Anything).Return(true, nil).Maybe()
	f.stock.On("IncrementConsignmentStock", mock.Anything, f.tenantID, mock.Anything, mock.Anything).Return(nil).Maybe()
	f.ledger.On("RecordLiabilityReduction", mock.Anything, mock.Anything).Return(uuid.New(), nil).Maybe()
}

func (f *fixture) createBatch(t *testing.T, qty, unitCost string) *BatchResponse {
	t.Helper()
	resp, err := f.batchSvc.CreateBatch(f.ctx, f.tenantID, CreateBatchRequest{
		SupplierID:      f.supplierID,
		ProductID:       f.productID,
		InitialQuantity: dec(qty),
		Unit:            "kg",
		UnitCost:        dec(unitCost),
		OperatorID:      f.operatorID,
	})
	require.NoError(t, err)
	return resp
}

func (f *fixture) verifiedBatch(t *testing.T, qty, unitCost string) uuid.UUID {
	t.Helper()
	created := f.createBatch(t, qty, unitCost)
	_, err := f.batchSvc.VerifyBatch(f.ctx, f.tenantID, created.ID, f.operatorID)
	require.NoError(t, err)
	return created.ID
}

func (f *fixture) soldBatch(t *testing.T, qty, unitCost, sold string) uuid.UUID {
	t.Helper()
	id := f.verifiedBatch(t, qty, unitCost)
	_, err := f.batchSvc.RecordSale(f.ctx, f.tenantID, id, RecordSaleRequest{Quantity: dec(sold)})
	require.NoError(t, err)
	return id
}

func (f *fixture) pay(amount string, ids ...uuid.UUID) (*PaymentResponse, error) {
	return f.paymentSvc.RecordPayment(f.ctx, f.tenantID, RecordPaymentRequest{
		SupplierID:      f.supplierID,
		PaymentAmount:   dec(amount),
		PaymentMethod:   "bank_transfer",
		RelatedBatchIDs: ids,
		OperatorID:      f.operatorID,
	})
}
