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

// GormPaymentRepository implements consignment.PaymentRepository using GORM.
// Allocation lines are stored and loaded together with their payment.
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

func preloadAllocations(db *gorm.DB) *gorm.DB {
	return db.Preload("Allocations", func(db *gorm.DB) *gorm.DB {
		return db.Order("sequence ASC")
	})
}

// FindByIDForTenant finds a payment by ID within a tenant
func (r *GormPaymentRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*consignment.ConsignmentPayment, error) {
	var model models.ConsignmentPaymentModel
	err := r.db.WithContext(ctx).
		Scopes(forTenant(tenantID), preloadAllocations).
		First(&model, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindByIdempotencyKey finds the payment recorded under key
func (r *GormPaymentRepository) FindByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (*consignment.ConsignmentPayment, error) {
	var model models.ConsignmentPaymentModel
	err := r.db.WithContext(ctx).
		Scopes(forTenant(tenantID), preloadAllocations).
		First(&model, "idempotency_key = ?", key).Error
	if err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindAllForTenant returns one page of payments and the total number of matches
func (r *GormPaymentRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter consignment.PaymentFilter) ([]*consignment.ConsignmentPayment, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ConsignmentPaymentModel{}).Scopes(forTenant(tenantID))
	if filter.SupplierID != nil {
		query = query.Where("supplier_id = ?", *filter.SupplierID)
	}
	if filter.DateFrom != nil {
		query = query.Where("payment_date >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("payment_date <= ?", *filter.DateTo)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count consignment payments: %w", err)
	}

	page := filter.Filter.Normalize()

	var rows []models.ConsignmentPaymentModel
	err := query.
		Scopes(preloadAllocations).
		Scopes(paymentSortColumns.order(page.OrderBy, page.OrderDir)).
		Offset(page.Offset()).
		Limit(page.PageSize).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	out := make([]*consignment.ConsignmentPayment, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, total, nil
}

// Save inserts a payment together with its allocation lines. A second
// payment under the same idempotency key yields shared.ErrAlreadyExists.
func (r *GormPaymentRepository) Save(ctx context.Context, payment *consignment.ConsignmentPayment) error {
	model := models.ConsignmentPaymentModelFromDomain(payment)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isDuplicateKey(err) {
			return shared.ErrAlreadyExists
		}
		return fmt.Errorf("failed to save consignment payment: %w", err)
	}
	return nil
}

var _ consignment.PaymentRepository = (*GormPaymentRepository)(nil)
