package persistence

import (
	"context"

	"github.com/erp/consignment/internal/domain/consignment"
	"github.com/erp/consignment/internal/domain/shared"
	"github.com/erp/consignment/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormSupplierBalanceRepository implements consignment.SupplierBalanceRepository using GORM
type GormSupplierBalanceRepository struct {
	db *gorm.DB
}

// NewGormSupplierBalanceRepository creates a new GormSupplierBalanceRepository
func NewGormSupplierBalanceRepository(db *gorm.DB) *GormSupplierBalanceRepository {
	return &GormSupplierBalanceRepository{db: db}
}

// FindBySupplier returns the supplier's running balance
func (r *GormSupplierBalanceRepository) FindBySupplier(ctx context.Context, tenantID, supplierID uuid.UUID) (*consignment.SupplierBalance, error) {
	var model models.SupplierBalanceModel
	err := r.db.WithContext(ctx).Scopes(forTenant(tenantID)).First(&model, "supplier_id = ?", supplierID).Error
	if err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindAllForTenant returns every supplier balance of the tenant
func (r *GormSupplierBalanceRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID) ([]*consignment.SupplierBalance, error) {
	var rows []models.SupplierBalanceModel
	if err := r.db.WithContext(ctx).Scopes(forTenant(tenantID)).Order("supplier_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*consignment.SupplierBalance, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// Create inserts a first balance for a supplier. Losing the race against a
// concurrent insert is reported as a concurrency conflict so the caller
// retries against the stored row.
func (r *GormSupplierBalanceRepository) Create(ctx context.Context, balance *consignment.SupplierBalance) error {
	model := models.SupplierBalanceModelFromDomain(balance)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isDuplicateKey(err) {
			return shared.ErrConcurrencyConflict
		}
		return err
	}
	return nil
}

// SaveWithLock writes balance if the stored version still equals
// balance.Version, then bumps balance.Version.
func (r *GormSupplierBalanceRepository) SaveWithLock(ctx context.Context, balance *consignment.SupplierBalance) error {
	next := balance.Version + 1
	result := r.db.WithContext(ctx).
		Model(&models.SupplierBalanceModel{}).
		Where("id = ? AND tenant_id = ? AND version = ?", balance.ID, balance.TenantID, balance.Version).
		Updates(map[string]any{
			"total_batches":    balance.TotalBatches,
			"total_value":      balance.TotalValue,
			"total_sold_value": balance.TotalSoldValue,
			"total_paid":       balance.TotalPaid,
			"credit_balance":   balance.CreditBalance,
			"version":          next,
			"updated_at":       balance.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	balance.Version = next
	return nil
}

var _ consignment.SupplierBalanceRepository = (*GormSupplierBalanceRepository)(nil)
