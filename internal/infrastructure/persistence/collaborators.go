package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/consignment/internal/domain/consignment"
	"github.com/erp/consignment/internal/domain/shared"
	"github.com/erp/consignment/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormProductStockPool keeps the consignment stock counter on the products table
type GormProductStockPool struct {
	db *gorm.DB
}

// NewGormProductStockPool creates a new GormProductStockPool
func NewGormProductStockPool(db *gorm.DB) *GormProductStockPool {
	return &GormProductStockPool{db: db}
}

// Exists reports whether the product belongs to the tenant's catalog
func (p *GormProductStockPool) Exists(ctx context.Context, tenantID, productID uuid.UUID) (bool, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Model(&models.ProductModel{}).
		Scopes(forTenant(tenantID)).
		Where("id = ?", productID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// IncrementConsignmentStock adds delta to the counter in one statement,
// clamping the result at zero.
func (p *GormProductStockPool) IncrementConsignmentStock(ctx context.Context, tenantID, productID uuid.UUID, delta decimal.Decimal) error {
	if delta.IsZero() {
		return nil
	}
	result := p.db.WithContext(ctx).
		Model(&models.ProductModel{}).
		Scopes(forTenant(tenantID)).
		Where("id = ?", productID).
		Updates(map[string]any{
			"consignment_stock": gorm.Expr(
				"CASE WHEN consignment_stock + ? < 0 THEN 0 ELSE consignment_stock + ? END", delta, delta),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to adjust consignment stock: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewNotFoundError("PRODUCT_NOT_FOUND", fmt.Sprintf("Product %s not found", productID))
	}
	return nil
}

// GormSupplierDirectory answers supplier questions from the suppliers table
type GormSupplierDirectory struct {
	db *gorm.DB
}

// NewGormSupplierDirectory creates a new GormSupplierDirectory
func NewGormSupplierDirectory(db *gorm.DB) *GormSupplierDirectory {
	return &GormSupplierDirectory{db: db}
}

// IsConsignmentEligible reports whether the supplier is active and accepts consignment
func (d *GormSupplierDirectory) IsConsignmentEligible(ctx context.Context, tenantID, supplierID uuid.UUID) (bool, error) {
	var model models.SupplierModel
	err := d.db.WithContext(ctx).
		Scopes(forTenant(tenantID)).
		Select("id", "supports_consignment", "status").
		First(&model, "id = ?", supplierID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, shared.NewNotFoundError("SUPPLIER_NOT_FOUND", fmt.Sprintf("Supplier %s not found", supplierID))
		}
		return false, err
	}
	return model.SupportsConsignment && model.Status == models.SupplierStatusActive, nil
}

// GormLiabilityLedger books liability reductions into liability_ledger_entries
type GormLiabilityLedger struct {
	db *gorm.DB
}

// NewGormLiabilityLedger creates a new GormLiabilityLedger
func NewGormLiabilityLedger(db *gorm.DB) *GormLiabilityLedger {
	return &GormLiabilityLedger{db: db}
}

// RecordLiabilityReduction appends one entry and returns its id
func (l *GormLiabilityLedger) RecordLiabilityReduction(ctx context.Context, entry consignment.LiabilityReduction) (uuid.UUID, error) {
	if !entry.Amount.IsPositive() {
		return uuid.Nil, shared.NewValidationError("INVALID_AMOUNT", "Ledger amount must be positive")
	}
	occurredAt := entry.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	model := &models.LiabilityLedgerEntryModel{
		ID:            uuid.New(),
		TenantID:      entry.TenantID,
		SupplierID:    entry.SupplierID,
		PaymentID:     entry.PaymentID,
		EntryType:     models.LedgerEntryTypeConsignmentPayment,
		Amount:        entry.Amount,
		PaymentMethod: entry.PaymentMethod,
		Notes:         entry.Notes,
		RecordedBy:    entry.RecordedBy,
		OccurredAt:    occurredAt,
		CreatedAt:     time.Now(),
	}
	if err := l.db.WithContext(ctx).Create(model).Error; err != nil {
		if isDuplicateKey(err) {
			return uuid.Nil, shared.ErrAlreadyExists
		}
		return uuid.Nil, fmt.Errorf("failed to record liability reduction: %w", err)
	}
	return model.ID, nil
}

var (
	_ consignment.ProductStockPool  = (*GormProductStockPool)(nil)
	_ consignment.SupplierDirectory = (*GormSupplierDirectory)(nil)
	_ consignment.LiabilityLedger   = (*GormLiabilityLedger)(nil)
)
