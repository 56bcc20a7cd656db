package persistence

import (
	"context"
	"testing"

	"github.com/erp/consignment/internal/domain/consignment"
	"github.com/erp/consignment/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f fixture) newPayment(t *testing.T, amount, key string, batches ...*consignment.ConsignmentBatch) *consignment.ConsignmentPayment {
	t.Helper()
	ids := make([]uuid.UUID, len(batches))
	for i, b := range batches {
		ids[i] = b.ID
	}
	p, err := consignment.NewConsignmentPayment(consignment.NewPaymentParams{
		TenantID:        f.tenantID,
		SupplierID:      f.supplierID,
		PaymentAmount:   dec(amount),
		PaymentMethod:   "bank_transfer",
		RelatedBatchIDs: ids,
		RecordedBy:      f.operatorID,
		IdempotencyKey:  key,
	})
	require.NoError(t, err)

	result, err := consignment.NewPaymentAllocator(consignment.OverpaymentDiscard).
		Allocate(dec(amount), dec("0"), batches)
	require.NoError(t, err)
	p.AttachAllocation(result)
	return p
}

func TestGormPaymentRepository_SaveAndFind(t *testing.T) {
	db := setupSQLiteDB(t)
	f := newFixture(t, db)
	batches := NewGormBatchRepository(db)
	repo := NewGormPaymentRepository(db)
	ctx := context.Background()

	first := f.savedSoldBatch(t, batches, "10", "1", "10")
	second := f.savedSoldBatch(t, batches, "10", "1", "4")

	payment := f.newPayment(t, "12", "pay-001", first, second)
	require.Len(t, payment.Allocations, 2)
	require.NoError(t, repo.Save(ctx, payment))

	t.Run("loads allocations in sequence order", func(t *testing.T) {
		got, err := repo.FindByIDForTenant(ctx, f.tenantID, payment.ID)
		require.NoError(t, err)
		assert.True(t, got.PaymentAmount.Equal(dec("12")))
		assert.Equal(t, consignment.OverpaymentDiscard, got.OverpaymentPolicy)
		assert.Equal(t, []uuid.UUID{first.ID, second.ID}, got.RelatedBatchIDs)
		require.Len(t, got.Allocations, 2)
		assert.Equal(t, first.ID, got.Allocations[0].BatchID)
		assert.Equal(t, 1, got.Allocations[0].Sequence)
		assert.True(t, got.Allocations[0].Amount.Equal(dec("10")))
		assert.Equal(t, second.ID, got.Allocations[1].BatchID)
		assert.True(t, got.Allocations[1].Amount.Equal(dec("2")))
		assert.True(t, got.Allocations[1].OutstandingAfter.Equal(dec("2")))
	})

	t.Run("finds by idempotency key", func(t *testing.T) {
		got, err := repo.FindByIdempotencyKey(ctx, f.tenantID, "pay-001")
		require.NoError(t, err)
		assert.Equal(t, payment.ID, got.ID)

		_, err = repo.FindByIdempotencyKey(ctx, uuid.New(), "pay-001")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("rejects a second payment under the same key", func(t *testing.T) {
		dup := f.newPayment(t, "1", "pay-001")
		assert.ErrorIs(t, repo.Save(ctx, dup), shared.ErrAlreadyExists)
	})

	t.Run("payments without a key do not collide", func(t *testing.T) {
		require.NoError(t, repo.Save(ctx, f.newPayment(t, "1", "")))
		require.NoError(t, repo.Save(ctx, f.newPayment(t, "1", "")))
	})
}

func TestGormPaymentRepository_FindAllForTenant(t *testing.T) {
	db := setupSQLiteDB(t)
	f := newFixture(t, db)
	repo := NewGormPaymentRepository(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Save(ctx, f.newPayment(t, "5", "")))
	}

	otherSupplier := uuid.New()
	seedSupplier(t, db, f.tenantID, otherSupplier, true)
	other := f
	other.supplierID = otherSupplier
	require.NoError(t, repo.Save(ctx, other.newPayment(t, "9", "")))

	got, total, err := repo.FindAllForTenant(ctx, f.tenantID, consignment.PaymentFilter{
		Filter: shared.Filter{Page: 1, PageSize: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Len(t, got, 2)

	got, total, err = repo.FindAllForTenant(ctx, f.tenantID, consignment.PaymentFilter{SupplierID: &otherSupplier})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, got, 1)
	assert.True(t, got[0].PaymentAmount.Equal(dec("9")))
	assert.Empty(t, got[0].Allocations)
	assert.NotNil(t, got[0].RelatedBatchIDs)
}
