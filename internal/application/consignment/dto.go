package consignment

import (
	"time"

	"github.com/erp/consignment/internal/domain/consignment"
	csvimport "github.com/erp/consignment/internal/infrastructure/import"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateBatchRequest registers a new delivery
type CreateBatchRequest struct {
	SupplierID      uuid.UUID        `json:"supplier_id"`
	ProductID       uuid.UUID        `json:"product_id"`
	BatchNumber     string           `json:"batch_number"`
	InitialQuantity decimal.Decimal  `json:"initial_quantity"`
	Unit            string           `json:"unit"`
	UnitCost        decimal.Decimal  `json:"unit_cost"`
	TotalValue      *decimal.Decimal `json:"total_value"`
	ReceivedAt      *time.Time       `json:"received_at"`
	Notes           string           `json:"notes"`
	OperatorID      uuid.UUID        `json:"-"`
}

// RecordReturnRequest hands unsold units back to the supplier
type RecordReturnRequest struct {
	ReturnQuantity decimal.Decimal `json:"return_quantity"`
	Notes          string          `json:"notes"`
	OperatorID     uuid.UUID       `json:"-"`
}

// RecordSaleRequest is sent by the sales pipeline when consigned units are sold.
// SaleReference deduplicates redelivered notifications.
type RecordSaleRequest struct {
	Quantity      decimal.Decimal `json:"quantity"`
	SaleReference string          `json:"sale_reference"`
}

// RecordPaymentRequest pays a supplier and spreads the amount over the listed batches
type RecordPaymentRequest struct {
	SupplierID      uuid.UUID       `json:"supplier_id"`
	PaymentAmount   decimal.Decimal `json:"payment_amount"`
	PaymentMethod   string          `json:"payment_method"`
	RelatedBatchIDs []uuid.UUID     `json:"related_batch_ids"`
	Notes           string          `json:"notes"`
	IdempotencyKey  string          `json:"idempotency_key"`
	OperatorID      uuid.UUID       `json:"-"`
}

// BatchListFilter represents filter options for the batch list
type BatchListFilter struct {
	SupplierID *uuid.UUID `form:"supplier_id"`
	ProductID  *uuid.UUID `form:"product_id"`
	Status     string     `form:"status"`
	Statuses   []string   `form:"statuses"`
	DateFrom   *time.Time `form:"date_from" time_format:"2006-01-02"`
	DateTo     *time.Time `form:"date_to" time_format:"2006-01-02"`
	Page       int        `form:"page" binding:"omitempty,min=1"`
	PageSize   int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy    string     `form:"order_by"`
	OrderDir   string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// PaymentListFilter represents filter options for the payment list
type PaymentListFilter struct {
	SupplierID *uuid.UUID `form:"supplier_id"`
	DateFrom   *time.Time `form:"date_from" time_format:"2006-01-02"`
	DateTo     *time.Time `form:"date_to" time_format:"2006-01-02"`
	Page       int        `form:"page" binding:"omitempty,min=1"`
	PageSize   int        `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// SummaryFilter narrows the supplier summaries
type SummaryFilter struct {
	SupplierID *uuid.UUID `form:"supplier_id"`
	DateFrom   *time.Time `form:"date_from" time_format:"2006-01-02"`
	DateTo     *time.Time `form:"date_to" time_format:"2006-01-02"`
}

// BatchResponse is an enriched batch
type BatchResponse struct {
	consignment.BatchView
}

// SaleResponse reports the batch after a sale notification
type SaleResponse struct {
	Batch     BatchResponse `json:"batch"`
	Duplicate bool          `json:"duplicate"`
}

// AllocationResponse is one batch's share of a payment
type AllocationResponse struct {
	BatchID           uuid.UUID       `json:"batch_id"`
	Sequence          int             `json:"sequence"`
	Amount            decimal.Decimal `json:"amount"`
	OutstandingBefore decimal.Decimal `json:"outstanding_before"`
	OutstandingAfter  decimal.Decimal `json:"outstanding_after"`
}

// PaymentResponse represents a supplier payment in API responses
type PaymentResponse struct {
	ID                uuid.UUID            `json:"id"`
	TenantID          uuid.UUID            `json:"tenant_id"`
	SupplierID        uuid.UUID            `json:"supplier_id"`
	PaymentAmount     decimal.Decimal      `json:"payment_amount"`
	PaymentMethod     string               `json:"payment_method"`
	RelatedBatchIDs   []uuid.UUID          `json:"related_batch_ids"`
	Notes             string               `json:"notes"`
	RecordedBy        uuid.UUID            `json:"recorded_by"`
	PaymentDate       time.Time            `json:"payment_date"`
	IdempotencyKey    string               `json:"idempotency_key,omitempty"`
	OverpaymentPolicy string               `json:"overpayment_policy"`
	AppliedAmount     decimal.Decimal      `json:"applied_amount"`
	UnappliedAmount   decimal.Decimal      `json:"unapplied_amount"`
	CreditApplied     decimal.Decimal      `json:"credit_applied"`
	LedgerEntryID     *uuid.UUID           `json:"ledger_entry_id,omitempty"`
	Allocations       []AllocationResponse `json:"allocations"`
	Replayed          bool                 `json:"replayed"`
}

// SupplierSummaryListResponse is the supplier roll-up plus global stats
type SupplierSummaryListResponse struct {
	Summaries []consignment.SupplierSummary `json:"summaries"`
	Stats     consignment.PaymentStats      `json:"stats"`
	Source    string                        `json:"source"`
}

// RebuildResponse reports a reconciliation of the running aggregates
type RebuildResponse struct {
	Suppliers int `json:"suppliers"`
	Corrected int `json:"corrected"`
}

// ToBatchResponse converts a domain batch to a response
func ToBatchResponse(b *consignment.ConsignmentBatch) BatchResponse {
	return BatchResponse{BatchView: consignment.EnrichBatch(b)}
}

// ToBatchResponses converts a slice of batches
func ToBatchResponses(batches []*consignment.ConsignmentBatch) []BatchResponse {
	out := make([]BatchResponse, 0, len(batches))
	for _, b := range batches {
		out = append(out, ToBatchResponse(b))
	}
	return out
}

// ToPaymentResponse converts a domain payment to a response
func ToPaymentResponse(p *consignment.ConsignmentPayment) PaymentResponse {
	allocations := make([]AllocationResponse, 0, len(p.Allocations))
	for _, a := range p.Allocations {
		allocations = append(allocations, AllocationResponse{
			BatchID:           a.BatchID,
			Sequence:          a.Sequence,
			Amount:            a.Amount,
			OutstandingBefore: a.OutstandingBefore,
			OutstandingAfter:  a.OutstandingAfter,
		})
	}
	ids := p.RelatedBatchIDs
	if ids == nil {
		ids = []uuid.UUID{}
	}
	return PaymentResponse{
		ID:                p.ID,
		TenantID:          p.TenantID,
		SupplierID:        p.SupplierID,
		PaymentAmount:     p.PaymentAmount,
		PaymentMethod:     p.PaymentMethod,
		RelatedBatchIDs:   ids,
		Notes:             p.Notes,
		RecordedBy:        p.RecordedBy,
		PaymentDate:       p.PaymentDate,
		IdempotencyKey:    p.IdempotencyKey,
		OverpaymentPolicy: p.OverpaymentPolicy.String(),
		AppliedAmount:     p.AppliedAmount,
		UnappliedAmount:   p.UnappliedAmount,
		CreditApplied:     p.CreditApplied,
		LedgerEntryID:     p.LedgerEntryID,
		Allocations:       allocations,
	}
}

// ToPaymentResponses converts a slice of payments
func ToPaymentResponses(payments []*consignment.ConsignmentPayment) []PaymentResponse {
	out := make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, ToPaymentResponse(p))
	}
	return out
}

// StatementRequest selects the supplier and period of a statement
type StatementRequest struct {
	SupplierID uuid.UUID  `json:"supplier_id"`
	DateFrom   *time.Time `json:"date_from"`
	DateTo     *time.Time `json:"date_to"`
}

// RenderedStatement is a statement document ready to be sent
type RenderedStatement struct {
	Filename     string
	ContentType  string
	Data         []byte
	BatchCount   int
	PaymentCount int
	Summary      consignment.SupplierSummary
	GeneratedAt  time.Time
}

// StatementExportResponse points at an uploaded statement
type StatementExportResponse struct {
	SupplierID   uuid.UUID                   `json:"supplier_id"`
	StorageKey   string                      `json:"storage_key"`
	Filename     string                      `json:"filename"`
	ContentType  string                      `json:"content_type"`
	DownloadURL  string                      `json:"download_url"`
	ExpiresAt    time.Time                   `json:"expires_at"`
	BatchCount   int                         `json:"batch_count"`
	PaymentCount int                         `json:"payment_count"`
	Summary      consignment.SupplierSummary `json:"summary"`
	GeneratedAt  time.Time                   `json:"generated_at"`
}

// BatchImportRequest tunes a CSV intake. DryRun validates without creating.
type BatchImportRequest struct {
	DryRun    bool
	Delimiter rune
}

// ImportedBatch is one batch created from an intake line
type ImportedBatch struct {
	Line        int       `json:"line"`
	ID          uuid.UUID `json:"id"`
	BatchNumber string    `json:"batch_number"`
}

// BatchImportResult reports what an intake file produced
type BatchImportResult struct {
	TotalRows    int                  `json:"total_rows"`
	ImportedRows int                  `json:"imported_rows"`
	ErrorRows    int                  `json:"error_rows"`
	DryRun       bool                 `json:"dry_run"`
	Batches      []ImportedBatch      `json:"batches,omitempty"`
	Errors       []csvimport.RowError `json:"errors,omitempty"`
	IsTruncated  bool                 `json:"is_truncated,omitempty"`
	TotalErrors  int                  `json:"total_errors,omitempty"`
}
