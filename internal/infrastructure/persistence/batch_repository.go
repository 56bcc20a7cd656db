package persistence

import (
	"context"
	"fmt"

	"github.com/erp/consignment/internal/domain/consignment"
	"github.com/erp/consignment/internal/domain/shared"
	"github.com/erp/consignment/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormBatchRepository implements consignment.BatchRepository using GORM
type GormBatchRepository struct {
	db *gorm.DB
}

// NewGormBatchRepository creates a new GormBatchRepository
func NewGormBatchRepository(db *gorm.DB) *GormBatchRepository {
	return &GormBatchRepository{db: db}
}

// FindByIDForTenant finds a batch by ID within a tenant
func (r *GormBatchRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*consignment.ConsignmentBatch, error) {
	var model models.ConsignmentBatchModel
	err := r.db.WithContext(ctx).Scopes(forTenant(tenantID)).First(&model, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindByIDsForTenant returns the batches among ids that exist in the tenant
func (r *GormBatchRepository) FindByIDsForTenant(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]*consignment.ConsignmentBatch, error) {
	if len(ids) == 0 {
		return []*consignment.ConsignmentBatch{}, nil
	}
	var rows []models.ConsignmentBatchModel
	if err := r.db.WithContext(ctx).Scopes(forTenant(tenantID)).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return toBatches(rows), nil
}

// FindAllForTenant returns one page of batches and the total number of matches
func (r *GormBatchRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter consignment.BatchFilter) ([]*consignment.ConsignmentBatch, int64, error) {
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.ConsignmentBatchModel{}).Scopes(forTenant(tenantID)), filter).
		Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count consignment batches: %w", err)
	}

	page := filter.Filter.Normalize()

	var rows []models.ConsignmentBatchModel
	err := query.
		Scopes(batchSortColumns.order(page.OrderBy, page.OrderDir)).
		Offset(page.Offset()).
		Limit(page.PageSize).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return toBatches(rows), total, nil
}

// FindForSummary returns every batch past reception matching filter
func (r *GormBatchRepository) FindForSummary(ctx context.Context, tenantID uuid.UUID, filter consignment.SummaryFilter) ([]*consignment.ConsignmentBatch, error) {
	query := r.db.WithContext(ctx).
		Scopes(forTenant(tenantID)).
		Where("status <> ?", string(consignment.BatchStatusReceived))
	if filter.SupplierID != nil {
		query = query.Where("supplier_id = ?", *filter.SupplierID)
	}
	if filter.DateFrom != nil {
		query = query.Where("received_at >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("received_at <= ?", *filter.DateTo)
	}

	var rows []models.ConsignmentBatchModel
	if err := query.Order("supplier_id, received_at").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toBatches(rows), nil
}

// ExistsByBatchNumber reports whether the tenant already uses batchNumber
func (r *GormBatchRepository) ExistsByBatchNumber(ctx context.Context, tenantID uuid.UUID, batchNumber string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ConsignmentBatchModel{}).
		Scopes(forTenant(tenantID)).
		Where("batch_number = ?", batchNumber).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ActiveTenantIDs lists every tenant that owns at least one batch
func (r *GormBatchRepository) ActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.ConsignmentBatchModel{}).
		Distinct("tenant_id").
		Order("tenant_id").
		Pluck("tenant_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Save inserts a new batch
func (r *GormBatchRepository) Save(ctx context.Context, batch *consignment.ConsignmentBatch) error {
	model := models.ConsignmentBatchModelFromDomain(batch)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isDuplicateKey(err) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// SaveWithLock updates the mutable columns if the stored version is Version-1
func (r *GormBatchRepository) SaveWithLock(ctx context.Context, batch *consignment.ConsignmentBatch) error {
	model := models.ConsignmentBatchModelFromDomain(batch)
	result := r.db.WithContext(ctx).
		Model(&models.ConsignmentBatchModel{}).
		Where("id = ? AND tenant_id = ? AND version = ?", batch.ID, batch.TenantID, batch.Version-1).
		Updates(model.MutableColumns())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

func (r *GormBatchRepository) applyFilter(query *gorm.DB, filter consignment.BatchFilter) *gorm.DB {
	if filter.SupplierID != nil {
		query = query.Where("supplier_id = ?", *filter.SupplierID)
	}
	if filter.ProductID != nil {
		query = query.Where("product_id = ?", *filter.ProductID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", string(*filter.Status))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		query = query.Where("status IN ?", statuses)
	}
	if filter.DateFrom != nil {
		query = query.Where("received_at >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("received_at <= ?", *filter.DateTo)
	}
	return query
}

func toBatches(rows []models.ConsignmentBatchModel) []*consignment.ConsignmentBatch {
	out := make([]*consignment.ConsignmentBatch, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out
}

var _ consignment.BatchRepository = (*GormBatchRepository)(nil)
