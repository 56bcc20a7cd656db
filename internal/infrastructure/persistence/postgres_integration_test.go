//go:build integration

package persistence

import (
	"context"
	"sync"
	"testing"
	"time"

	appconsignment "github.com/erp/consignment/internal/application/consignment"
	"github.com/erp/consignment/internal/domain/consignment"
	"github.com/erp/consignment/internal/domain/shared"
	"github.com/erp/consignment/internal/infrastructure/migration"
	"github.com/erp/consignment/migrations"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// setupPostgresDB starts a throwaway postgres and applies the embedded migrations
func setupPostgresDB(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("consignment_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	m, err := migration.New(sqlDB, migration.Source{FS: migrations.FS}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, m.Up())

	version, dirty, err := m.Version()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(1), version)
	return db
}

func TestPostgres_Repositories(t *testing.T) {
	db := setupPostgresDB(t)
	f := newFixture(t, db)
	ctx := context.Background()
	batches := NewGormBatchRepository(db)
	payments := NewGormPaymentRepository(db)

	t.Run("batch round trip and optimistic lock", func(t *testing.T) {
		b := f.savedSoldBatch(t, batches, "10", "2.5", "4")

		got, err := batches.FindByIDForTenant(ctx, f.tenantID, b.ID)
		require.NoError(t, err)
		assert.Equal(t, consignment.BatchStatusPartiallySold, got.Status)
		assert.True(t, got.OutstandingBalance().Equal(dec("10")))

		stale := *got
		require.NoError(t, got.RecordSale(dec("1")))
		require.NoError(t, batches.SaveWithLock(ctx, got))
		require.NoError(t, stale.RecordSale(dec("1")))
		assert.ErrorIs(t, batches.SaveWithLock(ctx, &stale), shared.ErrConcurrencyConflict)
	})

	t.Run("quantity check constraint holds", func(t *testing.T) {
		b := f.savedSoldBatch(t, batches, "2", "1", "")
		err := db.Exec(`UPDATE consignment_batches SET quantity_sold = 3 WHERE id = ?`, b.ID).Error
		assert.Error(t, err)
	})

	t.Run("payment with allocations and idempotency key", func(t *testing.T) {
		b := f.savedSoldBatch(t, batches, "5", "2", "5")
		p := f.newPayment(t, "4", "pg-key-1", b)
		require.NoError(t, payments.Save(ctx, p))

		got, err := payments.FindByIdempotencyKey(ctx, f.tenantID, "pg-key-1")
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{b.ID}, got.RelatedBatchIDs)
		require.Len(t, got.Allocations, 1)
		assert.True(t, got.Allocations[0].Amount.Equal(dec("4")))

		assert.ErrorIs(t, payments.Save(ctx, f.newPayment(t, "1", "pg-key-1")), shared.ErrAlreadyExists)
	})
}

func TestPostgres_ConcurrentStockUpdates(t *testing.T) {
	db := setupPostgresDB(t)
	f := newFixture(t, db)
	scope := NewGormTransactionScope(db)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := scope.Execute(ctx, func(repos appconsignment.TransactionalRepositories) error {
				return repos.StockPool().IncrementConsignmentStock(ctx, f.tenantID, f.productID, dec("1.5"))
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	var stock string
	require.NoError(t, db.Raw(`SELECT consignment_stock::text FROM products WHERE id = ?`, f.productID).Scan(&stock).Error)
	assert.True(t, dec(stock).Equal(dec("15")))
}
