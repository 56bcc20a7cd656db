package consignment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductStockPool is the product catalog's consignment stock counter
type ProductStockPool interface {
	// Exists reports whether the product is known to the catalog
	Exists(ctx context.Context, tenantID, productID uuid.UUID) (bool, error)
	// IncrementConsignmentStock adds delta (possibly negative) to the product's
	// consignment stock. The counter never goes below zero.
	IncrementConsignmentStock(ctx context.Context, tenantID, productID uuid.UUID, delta decimal.Decimal) error
}

// SupplierDirectory answers questions about suppliers
type SupplierDirectory interface {
	// IsConsignmentEligible returns a SUPPLIER_NOT_FOUND error for unknown suppliers
	IsConsignmentEligible(ctx context.Context, tenantID, supplierID uuid.UUID) (bool, error)
}

// LiabilityReduction is the ledger entry booked for one supplier payment
type LiabilityReduction struct {
	TenantID      uuid.UUID
	SupplierID    uuid.UUID
	PaymentID     uuid.UUID
	Amount        decimal.Decimal
	PaymentMethod string
	Notes         string
	RecordedBy    uuid.UUID
	OccurredAt    time.Time
}

// LiabilityLedger is the income-statement ledger
type LiabilityLedger interface {
	// RecordLiabilityReduction books entry and returns the ledger entry id
	RecordLiabilityReduction(ctx context.Context, entry LiabilityReduction) (uuid.UUID, error)
}
