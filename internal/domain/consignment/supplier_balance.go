package consignment

import (
	"time"

	"github.com/erp/consignment/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Contribution is what a single batch adds to its supplier's totals
type Contribution struct {
	Batches   int
	Value     decimal.Decimal
	SoldValue decimal.Decimal
	Paid      decimal.Decimal
}

// ContributionOf returns the batch's share of the supplier roll-up. A batch
// still waiting for verification contributes nothing.
func ContributionOf(b *ConsignmentBatch) Contribution {
	if b == nil || b.Status == BatchStatusReceived {
		return Contribution{Value: decimal.Zero, SoldValue: decimal.Zero, Paid: decimal.Zero}
	}
	return Contribution{
		Batches:   1,
		Value:     b.TotalValue,
		SoldValue: b.SoldValue(),
		Paid:      b.AmountPaid,
	}
}

// Sub returns c - o
func (c Contribution) Sub(o Contribution) Contribution {
	return Contribution{
		Batches:   c.Batches - o.Batches,
		Value:     c.Value.Sub(o.Value),
		SoldValue: c.SoldValue.Sub(o.SoldValue),
		Paid:      c.Paid.Sub(o.Paid),
	}
}

func (c Contribution) IsZero() bool {
	return c.Batches == 0 && c.Value.IsZero() && c.SoldValue.IsZero() && c.Paid.IsZero()
}

// SupplierBalance is the running per-supplier aggregate, kept in step with
// every batch mutation so summaries do not need a full scan. Several batch
// deltas can land on one balance inside a transaction, so mutations leave
// Version alone; the repository compares and bumps it on save.
type SupplierBalance struct {
	shared.TenantAggregateRoot
	SupplierID     uuid.UUID       `json:"supplier_id"`
	TotalBatches   int             `json:"total_batches"`
	TotalValue     decimal.Decimal `json:"total_value"`
	TotalSoldValue decimal.Decimal `json:"total_sold_value"`
	TotalPaid      decimal.Decimal `json:"total_paid"`
	CreditBalance  decimal.Decimal `json:"credit_balance"`
}

// NewSupplierBalance creates an empty balance
func NewSupplierBalance(tenantID, supplierID uuid.UUID) *SupplierBalance {
	return &SupplierBalance{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		SupplierID:          supplierID,
		TotalValue:          decimal.Zero,
		TotalSoldValue:      decimal.Zero,
		TotalPaid:           decimal.Zero,
		CreditBalance:       decimal.Zero,
	}
}

func (s *SupplierBalance) OutstandingBalance() decimal.Decimal {
	return s.TotalSoldValue.Sub(s.TotalPaid)
}

// ApplyDelta adds the difference between a batch's contribution after and
// before a mutation. It reports whether anything changed.
func (s *SupplierBalance) ApplyDelta(before, after Contribution) bool {
	d := after.Sub(before)
	if d.IsZero() {
		return false
	}
	s.TotalBatches += d.Batches
	s.TotalValue = s.TotalValue.Add(d.Value)
	s.TotalSoldValue = s.TotalSoldValue.Add(d.SoldValue)
	s.TotalPaid = s.TotalPaid.Add(d.Paid)
	s.UpdatedAt = time.Now()
	return true
}

// SetCredit replaces the supplier's carried-forward credit
func (s *SupplierBalance) SetCredit(credit decimal.Decimal) bool {
	if credit.Equal(s.CreditBalance) {
		return false
	}
	s.CreditBalance = credit
	s.UpdatedAt = time.Now()
	return true
}

// Reset overwrites the batch totals with a freshly folded summary, keeping credit
func (s *SupplierBalance) Reset(sum SupplierSummary) {
	s.TotalBatches = sum.TotalBatches
	s.TotalValue = sum.TotalValue
	s.TotalSoldValue = sum.TotalSoldValue
	s.TotalPaid = sum.TotalPaid
	s.UpdatedAt = time.Now()
}

// Summary exposes the balance as a SupplierSummary
func (s *SupplierBalance) Summary() SupplierSummary {
	return SupplierSummary{
		SupplierID:         s.SupplierID,
		TotalBatches:       s.TotalBatches,
		TotalValue:         s.TotalValue,
		TotalSoldValue:     s.TotalSoldValue,
		TotalPaid:          s.TotalPaid,
		OutstandingBalance: s.OutstandingBalance(),
		CreditBalance:      s.CreditBalance,
	}
}

// Matches reports whether the running totals agree with a folded summary
func (s *SupplierBalance) Matches(sum SupplierSummary) bool {
	return s.TotalBatches == sum.TotalBatches &&
		s.TotalValue.Equal(sum.TotalValue) &&
		s.TotalSoldValue.Equal(sum.TotalSoldValue) &&
		s.TotalPaid.Equal(sum.TotalPaid)
}
