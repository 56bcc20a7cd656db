package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/erp/consignment/internal/domain/consignment"
	"github.com/erp/consignment/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// setupSQLiteDB returns an in-memory database carrying the consignment
// tables plus the composite unique indexes the postgres migration defines.
func setupSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.ProductModel{},
		&models.SupplierModel{},
		&models.LiabilityLedgerEntryModel{},
		&models.ConsignmentBatchModel{},
		&models.ConsignmentPaymentModel{},
		&models.PaymentAllocationModel{},
		&models.SupplierBalanceModel{},
	))
	for _, stmt := range []string{
		`CREATE UNIQUE INDEX uq_consignment_batches_number ON consignment_batches (tenant_id, batch_number)`,
		`CREATE UNIQUE INDEX uq_consignment_payments_idempotency ON consignment_payments (tenant_id, idempotency_key) WHERE idempotency_key IS NOT NULL`,
		`CREATE UNIQUE INDEX uq_consignment_supplier_balances ON consignment_supplier_balances (tenant_id, supplier_id)`,
		`CREATE UNIQUE INDEX uq_ledger_entries_payment ON liability_ledger_entries (tenant_id, payment_id)`,
	} {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type fixture struct {
	tenantID   uuid.UUID
	operatorID uuid.UUID
	supplierID uuid.UUID
	productID  uuid.UUID
}

func newFixture(t *testing.T, db *gorm.DB) fixture {
	t.Helper()
	f := fixture{
		tenantID:   uuid.New(),
		operatorID: uuid.New(),
		supplierID: uuid.New(),
		productID:  uuid.New(),
	}
	seedSupplier(t, db, f.tenantID, f.supplierID, true)
	seedProduct(t, db, f.tenantID, f.productID, decimal.Zero)
	return f
}

func seedSupplier(t *testing.T, db *gorm.DB, tenantID, id uuid.UUID, consignment bool) {
	t.Helper()
	now := time.Now()
	require.NoError(t, db.Create(&models.SupplierModel{
		BaseModel:           models.BaseModel{ID: id, CreatedAt: now, UpdatedAt: now},
		TenantID:            tenantID,
		Code:                "SUP-" + id.String()[:8],
		Name:                "Supplier",
		SupportsConsignment: consignment,
		Status:              models.SupplierStatusActive,
	}).Error)
}

func seedProduct(t *testing.T, db *gorm.DB, tenantID, id uuid.UUID, stock decimal.Decimal) {
	t.Helper()
	now := time.Now()
	require.NoError(t, db.Create(&models.ProductModel{
		AggregateModel:   models.AggregateModel{BaseModel: models.BaseModel{ID: id, CreatedAt: now, UpdatedAt: now}, Version: 1},
		TenantID:         tenantID,
		Code:             "P-" + id.String()[:8],
		Name:             "Product",
		Unit:             "pcs",
		ConsignmentStock: stock,
	}).Error)
}

func (f fixture) newBatch(t *testing.T, qty, unitCost string) *consignment.ConsignmentBatch {
	t.Helper()
	received := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	b, err := consignment.NewConsignmentBatch(consignment.NewBatchParams{
		TenantID:        f.tenantID,
		SupplierID:      f.supplierID,
		ProductID:       f.productID,
		InitialQuantity: decimal.RequireFromString(qty),
		Unit:            "pcs",
		UnitCost:        decimal.RequireFromString(unitCost),
		ReceivedAt:      &received,
		CreatedBy:       f.operatorID,
	})
	require.NoError(t, err)
	return b
}

// savedSoldBatch stores a verified batch with sold units sold
func (f fixture) savedSoldBatch(t *testing.T, repo *GormBatchRepository, qty, unitCost, sold string) *consignment.ConsignmentBatch {
	t.Helper()
	ctx := context.Background()
	b := f.newBatch(t, qty, unitCost)
	require.NoError(t, repo.Save(ctx, b))
	require.NoError(t, b.Verify(f.operatorID))
	require.NoError(t, repo.SaveWithLock(ctx, b))
	if sold != "" {
		require.NoError(t, b.RecordSale(decimal.RequireFromString(sold)))
		require.NoError(t, repo.SaveWithLock(ctx, b))
	}
	return b
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
