package models

import (
	"time"

	"github.com/erp/consignment/internal/domain/consignment"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ConsignmentBatchModel is the persistence model for the ConsignmentBatch aggregate root.
type ConsignmentBatchModel struct {
	TenantAggregateModel
	BatchNumber      string          `gorm:"type:varchar(50);not null"`
	SupplierID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	InitialQuantity  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Unit             string          `gorm:"type:varchar(20);not null"`
	QuantitySold     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	QuantityReturned decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	UnitCost         decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	TotalValue       decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	AmountPaid       decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Status           string          `gorm:"type:varchar(20);not null;default:'received';index"`
	ReceivedAt       time.Time       `gorm:"not null;index"`
	VerifiedAt       *time.Time
	VerifiedBy       *uuid.UUID `gorm:"type:uuid"`
	ReturnDate       *time.Time
	Notes            string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (ConsignmentBatchModel) TableName() string {
	return "consignment_batches"
}

// ToDomain converts the persistence model to a domain ConsignmentBatch.
func (m *ConsignmentBatchModel) ToDomain() *consignment.ConsignmentBatch {
	b := &consignment.ConsignmentBatch{
		BatchNumber:      m.BatchNumber,
		SupplierID:       m.SupplierID,
		ProductID:        m.ProductID,
		InitialQuantity:  m.InitialQuantity,
		Unit:             m.Unit,
		QuantitySold:     m.QuantitySold,
		QuantityReturned: m.QuantityReturned,
		UnitCost:         m.UnitCost,
		TotalValue:       m.TotalValue,
		AmountPaid:       m.AmountPaid,
		Status:           consignment.BatchStatus(m.Status),
		ReceivedAt:       m.ReceivedAt,
		VerifiedAt:       m.VerifiedAt,
		VerifiedBy:       m.VerifiedBy,
		ReturnDate:       m.ReturnDate,
		Notes:            m.Notes,
	}
	b.TenantAggregateRoot = m.tenantRoot()
	return b
}

// FromDomain populates the persistence model from a domain ConsignmentBatch.
func (m *ConsignmentBatchModel) FromDomain(b *consignment.ConsignmentBatch) {
	m.TenantAggregateModel = tenantModelFrom(b.TenantAggregateRoot)
	m.BatchNumber = b.BatchNumber
	m.SupplierID = b.SupplierID
	m.ProductID = b.ProductID
	m.InitialQuantity = b.InitialQuantity
	m.Unit = b.Unit
	m.QuantitySold = b.QuantitySold
	m.QuantityReturned = b.QuantityReturned
	m.UnitCost = b.UnitCost
	m.TotalValue = b.TotalValue
	m.AmountPaid = b.AmountPaid
	m.Status = string(b.Status)
	m.ReceivedAt = b.ReceivedAt
	m.VerifiedAt = b.VerifiedAt
	m.VerifiedBy = b.VerifiedBy
	m.ReturnDate = b.ReturnDate
	m.Notes = b.Notes
}

// MutableColumns returns the columns a batch update may change, keyed by
// column name. Identity, supplier, product and pricing are fixed at creation.
func (m *ConsignmentBatchModel) MutableColumns() map[string]any {
	return map[string]any{
		"quantity_sold":     m.QuantitySold,
		"quantity_returned": m.QuantityReturned,
		"amount_paid":       m.AmountPaid,
		"status":            m.Status,
		"verified_at":       m.VerifiedAt,
		"verified_by":       m.VerifiedBy,
		"return_date":       m.ReturnDate,
		"notes":             m.Notes,
		"version":           m.Version,
		"updated_at":        m.UpdatedAt,
	}
}

// ConsignmentBatchModelFromDomain creates a persistence model from a domain ConsignmentBatch.
func ConsignmentBatchModelFromDomain(b *consignment.ConsignmentBatch) *ConsignmentBatchModel {
	m := &ConsignmentBatchModel{}
	m.FromDomain(b)
	return m
}

// PaymentAllocationModel is one allocation line of a payment. Lines are
// written together with their payment and never updated.
type PaymentAllocationModel struct {
	ID                uuid.UUID       `gorm:"type:uuid;primary_key"`
	PaymentID         uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uq_consignment_payment_allocations_seq,priority:1"`
	BatchID           uuid.UUID       `gorm:"type:uuid;not null;index"`
	Sequence          int             `gorm:"not null;uniqueIndex:uq_consignment_payment_allocations_seq,priority:2"`
	Amount            decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	OutstandingBefore decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	OutstandingAfter  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (PaymentAllocationModel) TableName() string {
	return "consignment_payment_allocations"
}

// ToDomain converts the model to a domain PaymentAllocation
func (m *PaymentAllocationModel) ToDomain() consignment.PaymentAllocation {
	return consignment.PaymentAllocation{
		ID:                m.ID,
		PaymentID:         m.PaymentID,
		BatchID:           m.BatchID,
		Sequence:          m.Sequence,
		Amount:            m.Amount,
		OutstandingBefore: m.OutstandingBefore,
		OutstandingAfter:  m.OutstandingAfter,
	}
}

// ConsignmentPaymentModel is the persistence model for the ConsignmentPayment aggregate root.
type ConsignmentPaymentModel struct {
	TenantAggregateModel
	SupplierID        uuid.UUID                `gorm:"type:uuid;not null;index"`
	PaymentAmount     decimal.Decimal          `gorm:"type:decimal(18,4);not null"`
	PaymentMethod     string                   `gorm:"type:varchar(50);not null"`
	RelatedBatchIDs   UUIDList                 `gorm:"type:jsonb;not null;default:'[]'"`
	Notes             string                   `gorm:"type:text"`
	RecordedBy        uuid.UUID                `gorm:"type:uuid;not null"`
	PaymentDate       time.Time                `gorm:"not null;index"`
	IdempotencyKey    *string                  `gorm:"type:varchar(128)"`
	OverpaymentPolicy string                   `gorm:"type:varchar(20);not null"`
	AppliedAmount     decimal.Decimal          `gorm:"type:decimal(18,4);not null;default:0"`
	UnappliedAmount   decimal.Decimal          `gorm:"type:decimal(18,4);not null;default:0"`
	CreditApplied     decimal.Decimal          `gorm:"type:decimal(18,4);not null;default:0"`
	LedgerEntryID     *uuid.UUID               `gorm:"type:uuid"`
	Allocations       []PaymentAllocationModel `gorm:"foreignKey:PaymentID;references:ID"`
}

// TableName returns the table name for GORM
func (ConsignmentPaymentModel) TableName() string {
	return "consignment_payments"
}

// ToDomain converts the persistence model to a domain ConsignmentPayment.
// Allocations are included only when they were preloaded.
func (m *ConsignmentPaymentModel) ToDomain() *consignment.ConsignmentPayment {
	p := &consignment.ConsignmentPayment{
		SupplierID:        m.SupplierID,
		PaymentAmount:     m.PaymentAmount,
		PaymentMethod:     m.PaymentMethod,
		RelatedBatchIDs:   []uuid.UUID(m.RelatedBatchIDs),
		Notes:             m.Notes,
		RecordedBy:        m.RecordedBy,
		PaymentDate:       m.PaymentDate,
		OverpaymentPolicy: consignment.OverpaymentPolicy(m.OverpaymentPolicy),
		AppliedAmount:     m.AppliedAmount,
		UnappliedAmount:   m.UnappliedAmount,
		CreditApplied:     m.CreditApplied,
		LedgerEntryID:     m.LedgerEntryID,
		Allocations:       make([]consignment.PaymentAllocation, len(m.Allocations)),
	}
	p.TenantAggregateRoot = m.tenantRoot()
	if m.IdempotencyKey != nil {
		p.IdempotencyKey = *m.IdempotencyKey
	}
	if p.RelatedBatchIDs == nil {
		p.RelatedBatchIDs = []uuid.UUID{}
	}
	for i := range m.Allocations {
		p.Allocations[i] = m.Allocations[i].ToDomain()
	}
	return p
}

// FromDomain populates the persistence model from a domain ConsignmentPayment.
func (m *ConsignmentPaymentModel) FromDomain(p *consignment.ConsignmentPayment) {
	m.TenantAggregateModel = tenantModelFrom(p.TenantAggregateRoot)
	m.SupplierID = p.SupplierID
	m.PaymentAmount = p.PaymentAmount
	m.PaymentMethod = p.PaymentMethod
	m.RelatedBatchIDs = UUIDList(p.RelatedBatchIDs)
	m.Notes = p.Notes
	m.RecordedBy = p.RecordedBy
	m.PaymentDate = p.PaymentDate
	m.IdempotencyKey = nil
	if p.IdempotencyKey != "" {
		key := p.IdempotencyKey
		m.IdempotencyKey = &key
	}
	m.OverpaymentPolicy = string(p.OverpaymentPolicy)
	m.AppliedAmount = p.AppliedAmount
	m.UnappliedAmount = p.UnappliedAmount
	m.CreditApplied = p.CreditApplied
	m.LedgerEntryID = p.LedgerEntryID
	m.Allocations = make([]PaymentAllocationModel, len(p.Allocations))
	for i, a := range p.Allocations {
		m.Allocations[i] = PaymentAllocationModel{
			ID:                a.ID,
			PaymentID:         p.ID,
			BatchID:           a.BatchID,
			Sequence:          a.Sequence,
			Amount:            a.Amount,
			OutstandingBefore: a.OutstandingBefore,
			OutstandingAfter:  a.OutstandingAfter,
		}
		if m.Allocations[i].ID == uuid.Nil {
			m.Allocations[i].ID = uuid.New()
		}
	}
}

// ConsignmentPaymentModelFromDomain creates a persistence model from a domain ConsignmentPayment.
func ConsignmentPaymentModelFromDomain(p *consignment.ConsignmentPayment) *ConsignmentPaymentModel {
	m := &ConsignmentPaymentModel{}
	m.FromDomain(p)
	return m
}

// SupplierBalanceModel is the persistence model for the running supplier aggregate.
type SupplierBalanceModel struct {
	TenantAggregateModel
	SupplierID     uuid.UUID       `gorm:"type:uuid;not null"`
	TotalBatches   int             `gorm:"not null;default:0"`
	TotalValue     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	TotalSoldValue decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	TotalPaid      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	CreditBalance  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (SupplierBalanceModel) TableName() string {
	return "consignment_supplier_balances"
}

// ToDomain converts the persistence model to a domain SupplierBalance.
func (m *SupplierBalanceModel) ToDomain() *consignment.SupplierBalance {
	s := &consignment.SupplierBalance{
		SupplierID:     m.SupplierID,
		TotalBatches:   m.TotalBatches,
		TotalValue:     m.TotalValue,
		TotalSoldValue: m.TotalSoldValue,
		TotalPaid:      m.TotalPaid,
		CreditBalance:  m.CreditBalance,
	}
	s.TenantAggregateRoot = m.tenantRoot()
	return s
}

// FromDomain populates the persistence model from a domain SupplierBalance.
func (m *SupplierBalanceModel) FromDomain(s *consignment.SupplierBalance) {
	m.TenantAggregateModel = tenantModelFrom(s.TenantAggregateRoot)
	m.SupplierID = s.SupplierID
	m.TotalBatches = s.TotalBatches
	m.TotalValue = s.TotalValue
	m.TotalSoldValue = s.TotalSoldValue
	m.TotalPaid = s.TotalPaid
	m.CreditBalance = s.CreditBalance
}

// SupplierBalanceModelFromDomain creates a persistence model from a domain SupplierBalance.
func SupplierBalanceModelFromDomain(s *consignment.SupplierBalance) *SupplierBalanceModel {
	m := &SupplierBalanceModel{}
	m.FromDomain(s)
	return m
}
