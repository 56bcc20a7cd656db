package consignment

import "github.com/shopspring/decimal"

// BatchStatus represents the lifecycle status of a consignment batch
type BatchStatus string

const (
	BatchStatusReceived          BatchStatus = "received"           // Delivered, not yet counted
	BatchStatusInStock           BatchStatus = "in_stock"           // Verified, nothing sold
	BatchStatusPartiallySold     BatchStatus = "partially_sold"     // Some units sold
	BatchStatusFullySold         BatchStatus = "fully_sold"         // Every unit sold, money still owed
	BatchStatusPartiallyReturned BatchStatus = "partially_returned" // Some units handed back to the supplier
	BatchStatusReturned          BatchStatus = "returned"           // Nothing left on hand after returns
	BatchStatusPaid              BatchStatus = "paid"               // Fully sold and settled
)

// AllBatchStatuses lists every status in lifecycle order
func AllBatchStatuses() []BatchStatus {
	return []BatchStatus{
		BatchStatusReceived,
		BatchStatusInStock,
		BatchStatusPartiallySold,
		BatchStatusFullySold,
		BatchStatusPartiallyReturned,
		BatchStatusReturned,
		BatchStatusPaid,
	}
}

// IsValid checks if the status is a valid BatchStatus
func (s BatchStatus) IsValid() bool {
	switch s {
	case BatchStatusReceived, BatchStatusInStock, BatchStatusPartiallySold, BatchStatusFullySold,
		BatchStatusPartiallyReturned, BatchStatusReturned, BatchStatusPaid:
		return true
	}
	return false
}

func (s BatchStatus) String() string {
	return string(s)
}

// IsTerminal returns true when no further stock movement can happen
func (s BatchStatus) IsTerminal() bool {
	return s == BatchStatusReturned || s == BatchStatusPaid
}

// StatusInputs is the minimal state DeriveStatus needs.
type StatusInputs struct {
	InitialQuantity  decimal.Decimal
	QuantitySold     decimal.Decimal
	QuantityReturned decimal.Decimal
	UnitCost         decimal.Decimal
	AmountPaid       decimal.Decimal
	Verified         bool
}

// DeriveStatus is the single source of truth for a batch status.
//
// A batch with nothing left on hand is returned if any unit went back to the
// supplier; otherwise it is fully sold, and becomes paid once a payment has
// brought its outstanding balance to zero. With stock still on hand, returns
// take precedence, then verification, then sales.
func DeriveStatus(in StatusInputs) BatchStatus {
	remaining := in.InitialQuantity.Sub(in.QuantitySold).Sub(in.QuantityReturned)
	if !remaining.IsPositive() {
		if in.QuantityReturned.IsPositive() {
			return BatchStatusReturned
		}
		outstanding := in.UnitCost.Mul(in.QuantitySold).Sub(in.AmountPaid)
		if in.AmountPaid.IsPositive() && !outstanding.IsPositive() {
			return BatchStatusPaid
		}
		return BatchStatusFullySold
	}
	if in.QuantityReturned.IsPositive() {
		return BatchStatusPartiallyReturned
	}
	if !in.Verified {
		return BatchStatusReceived
	}
	if in.QuantitySold.IsPositive() {
		return BatchStatusPartiallySold
	}
	return BatchStatusInStock
}
