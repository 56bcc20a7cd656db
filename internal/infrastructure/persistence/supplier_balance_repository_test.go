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

func TestGormSupplierBalanceRepository(t *testing.T) {
	db := setupSQLiteDB(t)
	f := newFixture(t, db)
	repo := NewGormSupplierBalanceRepository(db)
	ctx := context.Background()

	_, err := repo.FindBySupplier(ctx, f.tenantID, f.supplierID)
	require.ErrorIs(t, err, shared.ErrNotFound)

	balance := consignment.NewSupplierBalance(f.tenantID, f.supplierID)
	require.NoError(t, repo.Create(ctx, balance))

	t.Run("second create for the supplier conflicts", func(t *testing.T) {
		again := consignment.NewSupplierBalance(f.tenantID, f.supplierID)
		assert.ErrorIs(t, repo.Create(ctx, again), shared.ErrConcurrencyConflict)
	})

	t.Run("SaveWithLock bumps the version", func(t *testing.T) {
		batch := f.newBatch(t, "10", "2")
		require.NoError(t, batch.Verify(f.operatorID))
		require.NoError(t, batch.RecordSale(dec("3")))

		before := balance.Version
		require.True(t, balance.ApplyDelta(consignment.ContributionOf(nil), consignment.ContributionOf(batch)))
		require.True(t, balance.SetCredit(dec("1.5")))
		require.NoError(t, repo.SaveWithLock(ctx, balance))
		assert.Equal(t, before+1, balance.Version)

		got, err := repo.FindBySupplier(ctx, f.tenantID, f.supplierID)
		require.NoError(t, err)
		assert.Equal(t, balance.Version, got.Version)
		assert.Equal(t, 1, got.TotalBatches)
		assert.True(t, got.TotalValue.Equal(dec("20")))
		assert.True(t, got.TotalSoldValue.Equal(dec("6")))
		assert.True(t, got.OutstandingBalance().Equal(dec("6")))
		assert.True(t, got.CreditBalance.Equal(dec("1.5")))
	})

	t.Run("stale balance conflicts", func(t *testing.T) {
		stale, err := repo.FindBySupplier(ctx, f.tenantID, f.supplierID)
		require.NoError(t, err)
		fresh, err := repo.FindBySupplier(ctx, f.tenantID, f.supplierID)
		require.NoError(t, err)

		fresh.SetCredit(dec("2"))
		require.NoError(t, repo.SaveWithLock(ctx, fresh))

		stale.SetCredit(dec("3"))
		assert.ErrorIs(t, repo.SaveWithLock(ctx, stale), shared.ErrConcurrencyConflict)
	})

	t.Run("lists balances of the tenant only", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, consignment.NewSupplierBalance(uuid.New(), f.supplierID)))

		all, err := repo.FindAllForTenant(ctx, f.tenantID)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, f.supplierID, all[0].SupplierID)
	})
}
