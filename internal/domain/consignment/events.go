package consignment

import (
	"time"

	"github.com/erp/consignment/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event type names
const (
	EventTypeBatchCreated        = "ConsignmentBatchCreated"
	EventTypeBatchVerified       = "ConsignmentBatchVerified"
	EventTypeBatchReturnRecorded = "ConsignmentBatchReturnRecorded"
	EventTypeBatchSaleRecorded   = "ConsignmentBatchSaleRecorded"
	EventTypeBatchPaid           = "ConsignmentBatchPaid"
	EventTypePaymentRecorded     = "ConsignmentPaymentRecorded"
)

// BatchCreatedEvent is raised when a delivery is registered
type BatchCreatedEvent struct {
	shared.BaseDomainEvent
	BatchID         uuid.UUID       `json:"batch_id"`
	BatchNumber     string          `json:"batch_number"`
	SupplierID      uuid.UUID       `json:"supplier_id"`
	ProductID       uuid.UUID       `json:"product_id"`
	InitialQuantity decimal.Decimal `json:"initial_quantity"`
	UnitCost        decimal.Decimal `json:"unit_cost"`
	TotalValue      decimal.Decimal `json:"total_value"`
}

func (e *BatchCreatedEvent) EventType() string { return EventTypeBatchCreated }

func NewBatchCreatedEvent(b *ConsignmentBatch) *BatchCreatedEvent {
	return &BatchCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBatchCreated, aggregateTypeBatch, b.ID, b.TenantID),
		BatchID:         b.ID,
		BatchNumber:     b.BatchNumber,
		SupplierID:      b.SupplierID,
		ProductID:       b.ProductID,
		InitialQuantity: b.InitialQuantity,
		UnitCost:        b.UnitCost,
		TotalValue:      b.TotalValue,
	}
}

// BatchVerifiedEvent is raised when a batch enters stock
type BatchVerifiedEvent struct {
	shared.BaseDomainEvent
	BatchID    uuid.UUID       `json:"batch_id"`
	SupplierID uuid.UUID       `json:"supplier_id"`
	ProductID  uuid.UUID       `json:"product_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	VerifiedBy uuid.UUID       `json:"verified_by"`
	VerifiedAt time.Time       `json:"verified_at"`
}

func (e *BatchVerifiedEvent) EventType() string { return EventTypeBatchVerified }

func NewBatchVerifiedEvent(b *ConsignmentBatch, operatorID uuid.UUID) *BatchVerifiedEvent {
	return &BatchVerifiedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBatchVerified, aggregateTypeBatch, b.ID, b.TenantID),
		BatchID:         b.ID,
		SupplierID:      b.SupplierID,
		ProductID:       b.ProductID,
		Quantity:        b.InitialQuantity,
		VerifiedBy:      operatorID,
		VerifiedAt:      *b.VerifiedAt,
	}
}

// BatchReturnRecordedEvent is raised when units go back to the supplier
type BatchReturnRecordedEvent struct {
	shared.BaseDomainEvent
	BatchID           uuid.UUID       `json:"batch_id"`
	SupplierID        uuid.UUID       `json:"supplier_id"`
	ProductID         uuid.UUID       `json:"product_id"`
	Quantity          decimal.Decimal `json:"quantity"`
	QuantityRemaining decimal.Decimal `json:"quantity_remaining"`
	Status            BatchStatus     `json:"status"`
}

func (e *BatchReturnRecordedEvent) EventType() string { return EventTypeBatchReturnRecorded }

func NewBatchReturnRecordedEvent(b *ConsignmentBatch, qty decimal.Decimal) *BatchReturnRecordedEvent {
	return &BatchReturnRecordedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypeBatchReturnRecorded, aggregateTypeBatch, b.ID, b.TenantID),
		BatchID:           b.ID,
		SupplierID:        b.SupplierID,
		ProductID:         b.ProductID,
		Quantity:          qty,
		QuantityRemaining: b.QuantityRemaining(),
		Status:            b.Status,
	}
}

// BatchSaleRecordedEvent is raised when the sales pipeline reports sold units
type BatchSaleRecordedEvent struct {
	shared.BaseDomainEvent
	BatchID    uuid.UUID       `json:"batch_id"`
	SupplierID uuid.UUID       `json:"supplier_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	SoldValue  decimal.Decimal `json:"sold_value"`
	Status     BatchStatus     `json:"status"`
}

func (e *BatchSaleRecordedEvent) EventType() string { return EventTypeBatchSaleRecorded }

func NewBatchSaleRecordedEvent(b *ConsignmentBatch, qty decimal.Decimal) *BatchSaleRecordedEvent {
	return &BatchSaleRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBatchSaleRecorded, aggregateTypeBatch, b.ID, b.TenantID),
		BatchID:         b.ID,
		SupplierID:      b.SupplierID,
		Quantity:        qty,
		SoldValue:       b.SoldValue(),
		Status:          b.Status,
	}
}

// BatchPaidEvent is raised when a fully sold batch is settled
type BatchPaidEvent struct {
	shared.BaseDomainEvent
	BatchID    uuid.UUID       `json:"batch_id"`
	SupplierID uuid.UUID       `json:"supplier_id"`
	AmountPaid decimal.Decimal `json:"amount_paid"`
}

func (e *BatchPaidEvent) EventType() string { return EventTypeBatchPaid }

func NewBatchPaidEvent(b *ConsignmentBatch) *BatchPaidEvent {
	return &BatchPaidEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBatchPaid, aggregateTypeBatch, b.ID, b.TenantID),
		BatchID:         b.ID,
		SupplierID:      b.SupplierID,
		AmountPaid:      b.AmountPaid,
	}
}

// PaymentRecordedEvent is raised once a supplier payment has been allocated
type PaymentRecordedEvent struct {
	shared.BaseDomainEvent
	PaymentID       uuid.UUID         `json:"payment_id"`
	SupplierID      uuid.UUID         `json:"supplier_id"`
	PaymentAmount   decimal.Decimal   `json:"payment_amount"`
	AppliedAmount   decimal.Decimal   `json:"applied_amount"`
	UnappliedAmount decimal.Decimal   `json:"unapplied_amount"`
	CreditApplied   decimal.Decimal   `json:"credit_applied"`
	Policy          OverpaymentPolicy `json:"overpayment_policy"`
	BatchCount      int               `json:"batch_count"`
}

func (e *PaymentRecordedEvent) EventType() string { return EventTypePaymentRecorded }

func NewPaymentRecordedEvent(p *ConsignmentPayment) *PaymentRecordedEvent {
	return &PaymentRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentRecorded, aggregateTypePayment, p.ID, p.TenantID),
		PaymentID:       p.ID,
		SupplierID:      p.SupplierID,
		PaymentAmount:   p.PaymentAmount,
		AppliedAmount:   p.AppliedAmount,
		UnappliedAmount: p.UnappliedAmount,
		CreditApplied:   p.CreditApplied,
		Policy:          p.OverpaymentPolicy,
		BatchCount:      len(p.Allocations),
	}
}
