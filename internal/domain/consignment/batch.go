package consignment

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/consignment/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const aggregateTypeBatch = "ConsignmentBatch"

// totalValueTolerance is how far a caller-supplied total value may drift from
// initial_quantity * unit_cost before creation is rejected.
var totalValueTolerance = decimal.NewFromFloat(0.01)

// ConsignmentBatch is one delivery of one product from one supplier, held on
// consignment. Units move out of the batch by sale or by return; money owed is
// the value of sold units minus what has been paid.
type ConsignmentBatch struct {
	shared.TenantAggregateRoot
	BatchNumber      string          `json:"batch_number"`
	SupplierID       uuid.UUID       `json:"supplier_id"`
	ProductID        uuid.UUID       `json:"product_id"`
	InitialQuantity  decimal.Decimal `json:"initial_quantity"`
	Unit             string          `json:"unit"`
	QuantitySold     decimal.Decimal `json:"quantity_sold"`
	QuantityReturned decimal.Decimal `json:"quantity_returned"`
	UnitCost         decimal.Decimal `json:"unit_cost"`
	TotalValue       decimal.Decimal `json:"total_value"`
	AmountPaid       decimal.Decimal `json:"amount_paid"`
	Status           BatchStatus     `json:"status"`
	ReceivedAt       time.Time       `json:"received_at"`
	VerifiedAt       *time.Time      `json:"verified_at"`
	VerifiedBy       *uuid.UUID      `json:"verified_by"`
	ReturnDate       *time.Time      `json:"return_date"`
	Notes            string          `json:"notes"`
}

// NewBatchParams carries the inputs for NewConsignmentBatch
type NewBatchParams struct {
	TenantID        uuid.UUID
	SupplierID      uuid.UUID
	ProductID       uuid.UUID
	BatchNumber     string
	InitialQuantity decimal.Decimal
	Unit            string
	UnitCost        decimal.Decimal
	TotalValue      *decimal.Decimal
	ReceivedAt      *time.Time
	Notes           string
	CreatedBy       uuid.UUID
}

// NewConsignmentBatch validates params and creates a batch in the received status
func NewConsignmentBatch(p NewBatchParams) (*ConsignmentBatch, error) {
	if p.CreatedBy == uuid.Nil {
		return nil, shared.ErrNotAuthenticated
	}
	if p.SupplierID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_SUPPLIER", "Supplier ID cannot be empty")
	}
	if p.ProductID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_PRODUCT", "Product ID cannot be empty")
	}
	if !p.InitialQuantity.IsPositive() {
		return nil, shared.NewValidationError("INVALID_QUANTITY", "Initial quantity must be positive")
	}
	if p.UnitCost.IsNegative() {
		return nil, shared.NewValidationError("INVALID_UNIT_COST", "Unit cost cannot be negative")
	}
	unit := strings.TrimSpace(p.Unit)
	if unit == "" {
		return nil, shared.NewValidationError("INVALID_UNIT", "Unit cannot be empty")
	}
	if len(unit) > 20 {
		return nil, shared.NewValidationError("INVALID_UNIT", "Unit cannot exceed 20 characters")
	}

	totalValue := p.InitialQuantity.Mul(p.UnitCost)
	if p.TotalValue != nil && p.TotalValue.Sub(totalValue).Abs().GreaterThan(totalValueTolerance) {
		return nil, shared.NewValidationError("TOTAL_VALUE_MISMATCH",
			fmt.Sprintf("Total value %s does not match quantity * unit cost (%s)", p.TotalValue.String(), totalValue.String()))
	}

	batchNumber := strings.TrimSpace(p.BatchNumber)
	if len(batchNumber) > 50 {
		return nil, shared.NewValidationError("INVALID_BATCH_NUMBER", "Batch number cannot exceed 50 characters")
	}

	b := &ConsignmentBatch{
		TenantAggregateRoot: shared.NewTenantAggregateRootWithCreator(p.TenantID, p.CreatedBy),
		SupplierID:          p.SupplierID,
		ProductID:           p.ProductID,
		InitialQuantity:     p.InitialQuantity,
		Unit:                unit,
		QuantitySold:        decimal.Zero,
		QuantityReturned:    decimal.Zero,
		UnitCost:            p.UnitCost,
		TotalValue:          totalValue,
		AmountPaid:          decimal.Zero,
		Status:              BatchStatusReceived,
		Notes:               p.Notes,
	}
	b.ReceivedAt = b.CreatedAt
	if p.ReceivedAt != nil && !p.ReceivedAt.IsZero() {
		b.ReceivedAt = *p.ReceivedAt
	}
	if batchNumber == "" {
		batchNumber = GenerateBatchNumber(b.ReceivedAt, b.ID)
	}
	b.BatchNumber = batchNumber

	b.AddDomainEvent(NewBatchCreatedEvent(b))
	return b, nil
}

// GenerateBatchNumber builds a CB-YYYYMMDD-XXXXXX number from the receipt date and id
func GenerateBatchNumber(receivedAt time.Time, id uuid.UUID) string {
	suffix := strings.ToUpper(strings.ReplaceAll(id.String(), "-", ""))[:6]
	return fmt.Sprintf("CB-%s-%s", receivedAt.Format("20060102"), suffix)
}

// QuantityRemaining is what is still physically on hand
func (b *ConsignmentBatch) QuantityRemaining() decimal.Decimal {
	return b.InitialQuantity.Sub(b.QuantitySold).Sub(b.QuantityReturned)
}

// SoldValue is the value of the units sold so far
func (b *ConsignmentBatch) SoldValue() decimal.Decimal {
	return b.UnitCost.Mul(b.QuantitySold)
}

// OutstandingBalance is what the hub still owes the supplier for this batch
func (b *ConsignmentBatch) OutstandingBalance() decimal.Decimal {
	return b.SoldValue().Sub(b.AmountPaid)
}

// PercentSold is quantity_sold / initial_quantity as a percentage, two decimals
func (b *ConsignmentBatch) PercentSold() decimal.Decimal {
	if !b.InitialQuantity.IsPositive() {
		return decimal.Zero
	}
	return b.QuantitySold.Div(b.InitialQuantity).Mul(decimal.NewFromInt(100)).Round(2)
}

func (b *ConsignmentBatch) IsVerified() bool {
	return b.VerifiedAt != nil
}

func (b *ConsignmentBatch) statusInputs() StatusInputs {
	return StatusInputs{
		InitialQuantity:  b.InitialQuantity,
		QuantitySold:     b.QuantitySold,
		QuantityReturned: b.QuantityReturned,
		UnitCost:         b.UnitCost,
		AmountPaid:       b.AmountPaid,
		Verified:         b.IsVerified(),
	}
}

// RefreshStatus recomputes Status from quantities and money. It reports
// whether the stored status changed.
func (b *ConsignmentBatch) RefreshStatus() bool {
	derived := DeriveStatus(b.statusInputs())
	if derived == b.Status {
		return false
	}
	b.Status = derived
	return true
}

// Verify confirms the delivery was counted and puts the batch in stock.
// The caller is responsible for crediting the product's consignment stock
// with InitialQuantity.
func (b *ConsignmentBatch) Verify(operatorID uuid.UUID) error {
	if operatorID == uuid.Nil {
		return shared.ErrNotAuthenticated
	}
	if b.Status != BatchStatusReceived || b.IsVerified() {
		return shared.NewStateError("ALREADY_VERIFIED",
			fmt.Sprintf("Batch %s cannot be verified in status %s", b.BatchNumber, b.Status))
	}

	now := time.Now()
	b.VerifiedAt = &now
	b.VerifiedBy = &operatorID
	b.RefreshStatus()
	b.Touch()

	b.AddDomainEvent(NewBatchVerifiedEvent(b, operatorID))
	return nil
}

// RecordReturn hands qty unsold units back to the supplier
func (b *ConsignmentBatch) RecordReturn(qty decimal.Decimal, notes string) error {
	if b.Status == BatchStatusReturned {
		return shared.NewStateError("BATCH_RETURNED",
			fmt.Sprintf("Batch %s has already been fully returned", b.BatchNumber))
	}
	remaining := b.QuantityRemaining()
	if !qty.IsPositive() || qty.GreaterThan(remaining) {
		return shared.NewValidationError("INVALID_RETURN_QUANTITY",
			fmt.Sprintf("Return quantity must be between 0 and %s", remaining.String()))
	}

	now := time.Now()
	b.QuantityReturned = b.QuantityReturned.Add(qty)
	b.ReturnDate = &now
	if notes != "" {
		b.Notes = notes
	}
	b.RefreshStatus()
	b.Touch()

	b.AddDomainEvent(NewBatchReturnRecordedEvent(b, qty))
	return nil
}

// RecordSale registers qty units sold by the sales pipeline
func (b *ConsignmentBatch) RecordSale(qty decimal.Decimal) error {
	if !b.IsVerified() {
		return shared.NewStateError("BATCH_NOT_VERIFIED",
			fmt.Sprintf("Batch %s must be verified before units can be sold", b.BatchNumber))
	}
	if b.Status.IsTerminal() {
		return shared.NewStateError("INVALID_STATE",
			fmt.Sprintf("Batch %s is %s", b.BatchNumber, b.Status))
	}
	remaining := b.QuantityRemaining()
	if !qty.IsPositive() || qty.GreaterThan(remaining) {
		return shared.NewValidationError("INVALID_SALE_QUANTITY",
			fmt.Sprintf("Sale quantity must be between 0 and %s", remaining.String()))
	}

	b.QuantitySold = b.QuantitySold.Add(qty)
	b.RefreshStatus()
	b.Touch()

	b.AddDomainEvent(NewBatchSaleRecordedEvent(b, qty))
	return nil
}

// ApplyPayment settles up to amount of the outstanding balance and returns
// the portion actually applied. A batch only reaches paid from fully_sold.
func (b *ConsignmentBatch) ApplyPayment(amount decimal.Decimal) decimal.Decimal {
	outstanding := b.OutstandingBalance()
	if !amount.IsPositive() || !outstanding.IsPositive() {
		return decimal.Zero
	}
	applied := decimal.Min(amount, outstanding)

	b.RefreshStatus()
	wasFullySold := b.Status == BatchStatusFullySold

	b.AmountPaid = b.AmountPaid.Add(applied)
	if wasFullySold {
		b.RefreshStatus()
	}
	b.Touch()

	if b.Status == BatchStatusPaid {
		b.AddDomainEvent(NewBatchPaidEvent(b))
	}
	return applied
}
