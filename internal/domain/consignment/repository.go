package consignment

import (
	"context"
	"time"

	"github.com/erp/consignment/internal/domain/shared"
	"github.com/google/uuid"
)

// BatchFilter narrows ListBatches. Nil fields are not applied.
type BatchFilter struct {
	shared.Filter
	SupplierID *uuid.UUID
	ProductID  *uuid.UUID
	Status     *BatchStatus
	Statuses   []BatchStatus
	DateFrom   *time.Time
	DateTo     *time.Time
}

// SummaryFilter narrows the supplier roll-up
type SummaryFilter struct {
	SupplierID *uuid.UUID
	DateFrom   *time.Time
	DateTo     *time.Time
}

// IsEmpty reports whether no restriction is set
func (f SummaryFilter) IsEmpty() bool {
	return f.SupplierID == nil && f.DateFrom == nil && f.DateTo == nil
}

// PaymentFilter narrows ListPayments
type PaymentFilter struct {
	shared.Filter
	SupplierID *uuid.UUID
	DateFrom   *time.Time
	DateTo     *time.Time
}

// BatchRepository persists consignment batches
type BatchRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*ConsignmentBatch, error)
	// FindByIDsForTenant returns the batches that exist, in no particular order
	FindByIDsForTenant(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]*ConsignmentBatch, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter BatchFilter) ([]*ConsignmentBatch, int64, error)
	// FindForSummary returns every batch not in received matching filter
	FindForSummary(ctx context.Context, tenantID uuid.UUID, filter SummaryFilter) ([]*ConsignmentBatch, error)
	ExistsByBatchNumber(ctx context.Context, tenantID uuid.UUID, batchNumber string) (bool, error)
	// Save inserts a new batch
	Save(ctx context.Context, batch *ConsignmentBatch) error
	// SaveWithLock updates an existing batch if its stored version is Version-1
	SaveWithLock(ctx context.Context, batch *ConsignmentBatch) error
}

// PaymentRepository persists payments together with their allocation lines
type PaymentRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*ConsignmentPayment, error)
	FindByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (*ConsignmentPayment, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter PaymentFilter) ([]*ConsignmentPayment, int64, error)
	Save(ctx context.Context, payment *ConsignmentPayment) error
}

// SupplierBalanceRepository persists running supplier aggregates
type SupplierBalanceRepository interface {
	// FindBySupplier returns shared.ErrNotFound when no balance exists yet
	FindBySupplier(ctx context.Context, tenantID, supplierID uuid.UUID) (*SupplierBalance, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID) ([]*SupplierBalance, error)
	Create(ctx context.Context, balance *SupplierBalance) error
	// SaveWithLock updates balance if the stored version equals balance.Version,
	// then increments balance.Version
	SaveWithLock(ctx context.Context, balance *SupplierBalance) error
}
