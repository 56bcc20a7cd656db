package consignment

import (
	"fmt"

	"github.com/erp/consignment/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OverpaymentPolicy decides what happens to the part of a payment that no
// listed batch can absorb.
type OverpaymentPolicy string

const (
	// OverpaymentStrict rejects the whole payment
	OverpaymentStrict OverpaymentPolicy = "strict"
	// OverpaymentDiscard records the payment in full and leaves the leftover unassigned
	OverpaymentDiscard OverpaymentPolicy = "discard"
	// OverpaymentCreditForward keeps the leftover as supplier credit for later payments
	OverpaymentCreditForward OverpaymentPolicy = "credit_forward"
)

func (p OverpaymentPolicy) IsValid() bool {
	switch p {
	case OverpaymentStrict, OverpaymentDiscard, OverpaymentCreditForward:
		return true
	}
	return false
}

func (p OverpaymentPolicy) String() string {
	return string(p)
}

// ParseOverpaymentPolicy parses a configured policy; empty means discard
func ParseOverpaymentPolicy(s string) (OverpaymentPolicy, error) {
	if s == "" {
		return OverpaymentDiscard, nil
	}
	p := OverpaymentPolicy(s)
	if !p.IsValid() {
		return "", shared.NewValidationError("INVALID_OVERPAYMENT_POLICY",
			fmt.Sprintf("Unknown overpayment policy %q", s))
	}
	return p, nil
}

// AllocationLine is the share of a payment applied to one batch
type AllocationLine struct {
	BatchID           uuid.UUID       `json:"batch_id"`
	BatchNumber       string          `json:"batch_number"`
	Sequence          int             `json:"sequence"`
	Amount            decimal.Decimal `json:"amount"`
	OutstandingBefore decimal.Decimal `json:"outstanding_before"`
	OutstandingAfter  decimal.Decimal `json:"outstanding_after"`
	StatusBefore      BatchStatus     `json:"status_before"`
	StatusAfter       BatchStatus     `json:"status_after"`
}

// AllocationResult describes how a payment was spread across batches
type AllocationResult struct {
	Policy          OverpaymentPolicy
	Lines           []AllocationLine
	PaymentAmount   decimal.Decimal
	CreditAvailable decimal.Decimal
	// Applied is the total added to batch amount_paid
	Applied decimal.Decimal
	// CreditApplied is the part of Applied funded by earlier supplier credit
	CreditApplied decimal.Decimal
	// Unapplied is the part of PaymentAmount no batch absorbed
	Unapplied decimal.Decimal
	// CreditAfter is the supplier credit left once the payment is booked
	CreditAfter decimal.Decimal
}

// MutatedBatches returns the ids of batches that received money
func (r AllocationResult) MutatedBatches() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(r.Lines))
	for _, l := range r.Lines {
		ids = append(ids, l.BatchID)
	}
	return ids
}

// PaymentAllocator distributes a payment greedily over batches in the order
// given by the caller. Batches without outstanding balance are skipped and a
// batch listed twice is only considered once.
type PaymentAllocator struct {
	policy OverpaymentPolicy
}

// NewPaymentAllocator creates an allocator; an invalid policy falls back to discard
func NewPaymentAllocator(policy OverpaymentPolicy) *PaymentAllocator {
	if !policy.IsValid() {
		policy = OverpaymentDiscard
	}
	return &PaymentAllocator{policy: policy}
}

func (a *PaymentAllocator) Policy() OverpaymentPolicy {
	return a.policy
}

// Plan computes the allocation without touching the batches
func (a *PaymentAllocator) Plan(amount, credit decimal.Decimal, batches []*ConsignmentBatch) (AllocationResult, error) {
	if !amount.IsPositive() {
		return AllocationResult{}, shared.NewValidationError("INVALID_AMOUNT", "Payment amount must be positive")
	}
	if credit.IsNegative() || a.policy != OverpaymentCreditForward {
		credit = decimal.Zero
	}

	budget := amount.Add(credit)
	remaining := budget
	seen := make(map[uuid.UUID]struct{}, len(batches))
	lines := make([]AllocationLine, 0, len(batches))

	for _, b := range batches {
		if !remaining.IsPositive() {
			break
		}
		if b == nil {
			continue
		}
		if _, dup := seen[b.ID]; dup {
			continue
		}
		seen[b.ID] = struct{}{}

		outstanding := b.OutstandingBalance()
		if !outstanding.IsPositive() {
			continue
		}
		applied := decimal.Min(remaining, outstanding)
		lines = append(lines, AllocationLine{
			BatchID:           b.ID,
			BatchNumber:       b.BatchNumber,
			Sequence:          len(lines) + 1,
			Amount:            applied,
			OutstandingBefore: outstanding,
			OutstandingAfter:  outstanding.Sub(applied),
			StatusBefore:      b.Status,
		})
		remaining = remaining.Sub(applied)
	}

	applied := budget.Sub(remaining)
	result := AllocationResult{
		Policy:          a.policy,
		Lines:           lines,
		PaymentAmount:   amount,
		CreditAvailable: credit,
		Applied:         applied,
		CreditApplied:   decimal.Max(decimal.Zero, applied.Sub(amount)),
		Unapplied:       decimal.Max(decimal.Zero, amount.Sub(applied)),
		CreditAfter:     decimal.Zero,
	}
	if a.policy == OverpaymentCreditForward {
		result.CreditAfter = remaining
	}

	if a.policy == OverpaymentStrict && result.Unapplied.IsPositive() {
		return result, shared.NewValidationError("OVERPAYMENT_REJECTED",
			fmt.Sprintf("Payment exceeds the outstanding balance of the listed batches by %s", result.Unapplied.String()))
	}
	return result, nil
}

// Allocate plans the allocation and applies it to the batches. Nothing is
// mutated when planning fails.
func (a *PaymentAllocator) Allocate(amount, credit decimal.Decimal, batches []*ConsignmentBatch) (AllocationResult, error) {
	result, err := a.Plan(amount, credit, batches)
	if err != nil {
		return result, err
	}

	byID := make(map[uuid.UUID]*ConsignmentBatch, len(batches))
	for _, b := range batches {
		if b != nil {
			byID[b.ID] = b
		}
	}
	for i := range result.Lines {
		line := &result.Lines[i]
		b := byID[line.BatchID]
		b.ApplyPayment(line.Amount)
		line.StatusAfter = b.Status
	}
	return result, nil
}
