package consignment

import (
	"strings"
	"time"

	"github.com/erp/consignment/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const aggregateTypePayment = "ConsignmentPayment"

// PaymentAllocation is a persisted allocation line of a payment
type PaymentAllocation struct {
	ID                uuid.UUID       `json:"id"`
	PaymentID         uuid.UUID       `json:"payment_id"`
	BatchID           uuid.UUID       `json:"batch_id"`
	Sequence          int             `json:"sequence"`
	Amount            decimal.Decimal `json:"amount"`
	OutstandingBefore decimal.Decimal `json:"outstanding_before"`
	OutstandingAfter  decimal.Decimal `json:"outstanding_after"`
}

// ConsignmentPayment records money handed to a supplier. The request fields
// are kept verbatim; the allocation outcome is attached once computed.
type ConsignmentPayment struct {
	shared.TenantAggregateRoot
	SupplierID        uuid.UUID           `json:"supplier_id"`
	PaymentAmount     decimal.Decimal     `json:"payment_amount"`
	PaymentMethod     string              `json:"payment_method"`
	RelatedBatchIDs   []uuid.UUID         `json:"related_batch_ids"`
	Notes             string              `json:"notes"`
	RecordedBy        uuid.UUID           `json:"recorded_by"`
	PaymentDate       time.Time           `json:"payment_date"`
	IdempotencyKey    string              `json:"idempotency_key,omitempty"`
	OverpaymentPolicy OverpaymentPolicy   `json:"overpayment_policy"`
	AppliedAmount     decimal.Decimal     `json:"applied_amount"`
	UnappliedAmount   decimal.Decimal     `json:"unapplied_amount"`
	CreditApplied     decimal.Decimal     `json:"credit_applied"`
	LedgerEntryID     *uuid.UUID          `json:"ledger_entry_id,omitempty"`
	Allocations       []PaymentAllocation `json:"allocations"`
}

// NewPaymentParams carries the inputs for NewConsignmentPayment
type NewPaymentParams struct {
	TenantID        uuid.UUID
	SupplierID      uuid.UUID
	PaymentAmount   decimal.Decimal
	PaymentMethod   string
	RelatedBatchIDs []uuid.UUID
	Notes           string
	RecordedBy      uuid.UUID
	IdempotencyKey  string
}

// NewConsignmentPayment validates the request part of a payment
func NewConsignmentPayment(p NewPaymentParams) (*ConsignmentPayment, error) {
	if p.RecordedBy == uuid.Nil {
		return nil, shared.ErrNotAuthenticated
	}
	if p.SupplierID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_SUPPLIER", "Supplier ID cannot be empty")
	}
	if !p.PaymentAmount.IsPositive() {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "Payment amount must be positive")
	}
	method := strings.TrimSpace(p.PaymentMethod)
	if method == "" {
		return nil, shared.NewValidationError("INVALID_PAYMENT_METHOD", "Payment method cannot be empty")
	}
	if len(p.IdempotencyKey) > 100 {
		return nil, shared.NewValidationError("INVALID_IDEMPOTENCY_KEY", "Idempotency key cannot exceed 100 characters")
	}

	ids := make([]uuid.UUID, len(p.RelatedBatchIDs))
	copy(ids, p.RelatedBatchIDs)

	payment := &ConsignmentPayment{
		TenantAggregateRoot: shared.NewTenantAggregateRootWithCreator(p.TenantID, p.RecordedBy),
		SupplierID:          p.SupplierID,
		PaymentAmount:       p.PaymentAmount,
		PaymentMethod:       method,
		RelatedBatchIDs:     ids,
		Notes:               p.Notes,
		RecordedBy:          p.RecordedBy,
		IdempotencyKey:      p.IdempotencyKey,
		AppliedAmount:       decimal.Zero,
		UnappliedAmount:     decimal.Zero,
		CreditApplied:       decimal.Zero,
		Allocations:         make([]PaymentAllocation, 0),
	}
	payment.PaymentDate = payment.CreatedAt
	return payment, nil
}

// SameRequest reports whether p was recorded from the same supplier, amount,
// method and batch list as params. Batch order matters since it drives the
// allocation.
func (p *ConsignmentPayment) SameRequest(params NewPaymentParams) bool {
	if p.SupplierID != params.SupplierID ||
		!p.PaymentAmount.Equal(params.PaymentAmount) ||
		p.PaymentMethod != strings.TrimSpace(params.PaymentMethod) ||
		len(p.RelatedBatchIDs) != len(params.RelatedBatchIDs) {
		return false
	}
	for i, id := range p.RelatedBatchIDs {
		if params.RelatedBatchIDs[i] != id {
			return false
		}
	}
	return true
}

// AttachAllocation stores the outcome of the allocator on the payment
func (p *ConsignmentPayment) AttachAllocation(result AllocationResult) {
	p.OverpaymentPolicy = result.Policy
	p.AppliedAmount = result.Applied
	p.UnappliedAmount = result.Unapplied
	p.CreditApplied = result.CreditApplied
	p.Allocations = make([]PaymentAllocation, 0, len(result.Lines))
	for _, line := range result.Lines {
		p.Allocations = append(p.Allocations, PaymentAllocation{
			ID:                uuid.New(),
			PaymentID:         p.ID,
			BatchID:           line.BatchID,
			Sequence:          line.Sequence,
			Amount:            line.Amount,
			OutstandingBefore: line.OutstandingBefore,
			OutstandingAfter:  line.OutstandingAfter,
		})
	}
	p.AddDomainEvent(NewPaymentRecordedEvent(p))
}

// SetLedgerEntry links the liability reduction booked for this payment
func (p *ConsignmentPayment) SetLedgerEntry(entryID uuid.UUID) {
	p.LedgerEntryID = &entryID
}

// AllocatedTo returns the amount allocated to batchID, zero if none
func (p *ConsignmentPayment) AllocatedTo(batchID uuid.UUID) decimal.Decimal {
	for _, a := range p.Allocations {
		if a.BatchID == batchID {
			return a.Amount
		}
	}
	return decimal.Zero
}
