package consignment

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StatementPayment is one payment line of a supplier statement
type StatementPayment struct {
	PaymentID       uuid.UUID
	PaymentDate     time.Time
	PaymentMethod   string
	PaymentAmount   decimal.Decimal
	AppliedAmount   decimal.Decimal
	UnappliedAmount decimal.Decimal
	CreditApplied   decimal.Decimal
	BatchCount      int
	Notes           string
}

// SupplierStatement is what the shop sends a supplier: every counted batch,
// the payments of the period and the resulting position.
type SupplierStatement struct {
	TenantID    uuid.UUID
	SupplierID  uuid.UUID
	PeriodFrom  *time.Time
	PeriodTo    *time.Time
	GeneratedAt time.Time
	Batches     []BatchView
	Payments    []StatementPayment
	Summary     SupplierSummary
	// PaidInPeriod sums the payment amounts listed in Payments
	PaidInPeriod decimal.Decimal
}

// NewSupplierStatement assembles a statement. Batches from other suppliers
// and batches still in received are left out. Batches are ordered by
// reception, payments by date.
func NewSupplierStatement(
	tenantID, supplierID uuid.UUID,
	from, to *time.Time,
	batches []*ConsignmentBatch,
	payments []*ConsignmentPayment,
	creditBalance decimal.Decimal,
	generatedAt time.Time,
) *SupplierStatement {
	own := make([]*ConsignmentBatch, 0, len(batches))
	for _, b := range batches {
		if b.SupplierID == supplierID && ContributionOf(b).Batches > 0 {
			own = append(own, b)
		}
	}
	sort.SliceStable(own, func(i, j int) bool {
		if !own[i].ReceivedAt.Equal(own[j].ReceivedAt) {
			return own[i].ReceivedAt.Before(own[j].ReceivedAt)
		}
		return own[i].BatchNumber < own[j].BatchNumber
	})

	st := &SupplierStatement{
		TenantID:     tenantID,
		SupplierID:   supplierID,
		PeriodFrom:   from,
		PeriodTo:     to,
		GeneratedAt:  generatedAt,
		Batches:      make([]BatchView, 0, len(own)),
		Payments:     make([]StatementPayment, 0, len(payments)),
		Summary:      *newSupplierSummary(supplierID),
		PaidInPeriod: decimal.Zero,
	}
	for _, b := range own {
		st.Batches = append(st.Batches, EnrichBatch(b))
		st.Summary.add(ContributionOf(b))
	}
	st.Summary.CreditBalance = creditBalance

	for _, p := range payments {
		if p.SupplierID != supplierID {
			continue
		}
		st.Payments = append(st.Payments, StatementPayment{
			PaymentID:       p.ID,
			PaymentDate:     p.PaymentDate,
			PaymentMethod:   p.PaymentMethod,
			PaymentAmount:   p.PaymentAmount,
			AppliedAmount:   p.AppliedAmount,
			UnappliedAmount: p.UnappliedAmount,
			CreditApplied:   p.CreditApplied,
			BatchCount:      len(p.Allocations),
			Notes:           p.Notes,
		})
		st.PaidInPeriod = st.PaidInPeriod.Add(p.PaymentAmount)
	}
	sort.SliceStable(st.Payments, func(i, j int) bool {
		return st.Payments[i].PaymentDate.Before(st.Payments[j].PaymentDate)
	})
	return st
}
