package handler

import (
	"fmt"
	"strings"
	"time"

	consignmentapp "github.com/erp/consignment/internal/application/consignment"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateBatchBody is the body of POST /consignment/batches
type CreateBatchBody struct {
	SupplierID      string           `json:"supplier_id" binding:"required,uuid"`
	ProductID       string           `json:"product_id" binding:"required,uuid"`
	BatchNumber     string           `json:"batch_number" binding:"max=50"`
	InitialQuantity decimal.Decimal  `json:"initial_quantity" binding:"decimal_gt=0"`
	Unit            string           `json:"unit" binding:"required,max=20"`
	UnitCost        decimal.Decimal  `json:"unit_cost" binding:"decimal_gte=0"`
	TotalValue      *decimal.Decimal `json:"total_value" binding:"omitempty,decimal_gte=0"`
	ReceivedAt      *time.Time       `json:"received_at"`
	Notes           string           `json:"notes" binding:"max=2000"`
}

func (b CreateBatchBody) toRequest(operatorID uuid.UUID) consignmentapp.CreateBatchRequest {
	return consignmentapp.CreateBatchRequest{
		SupplierID:      uuid.MustParse(b.SupplierID),
		ProductID:       uuid.MustParse(b.ProductID),
		BatchNumber:     strings.TrimSpace(b.BatchNumber),
		InitialQuantity: b.InitialQuantity,
		Unit:            b.Unit,
		UnitCost:        b.UnitCost,
		TotalValue:      b.TotalValue,
		ReceivedAt:      b.ReceivedAt,
		Notes:           b.Notes,
		OperatorID:      operatorID,
	}
}

// RecordReturnBody is the body of POST /consignment/batches/:id/returns
type RecordReturnBody struct {
	ReturnQuantity decimal.Decimal `json:"return_quantity" binding:"decimal_gt=0"`
	Notes          string          `json:"notes" binding:"max=2000"`
}

// RecordSaleBody is the body of POST /consignment/batches/:id/sales
type RecordSaleBody struct {
	Quantity      decimal.Decimal `json:"quantity" binding:"decimal_gt=0"`
	SaleReference string          `json:"sale_reference" binding:"max=100"`
}

// RecordPaymentBody is the body of POST /consignment/payments. The
// Idempotency-Key header, when sent, wins over idempotency_key.
type RecordPaymentBody struct {
	SupplierID      string          `json:"supplier_id" binding:"required,uuid"`
	PaymentAmount   decimal.Decimal `json:"payment_amount" binding:"decimal_gt=0"`
	PaymentMethod   string          `json:"payment_method" binding:"required,max=50"`
	RelatedBatchIDs []string        `json:"related_batch_ids" binding:"required,min=1,dive,uuid"`
	Notes           string          `json:"notes" binding:"max=2000"`
	IdempotencyKey  string          `json:"idempotency_key" binding:"max=100"`
}

func (b RecordPaymentBody) toRequest(operatorID uuid.UUID, idempotencyKey string) consignmentapp.RecordPaymentRequest {
	ids := make([]uuid.UUID, 0, len(b.RelatedBatchIDs))
	for _, raw := range b.RelatedBatchIDs {
		ids = append(ids, uuid.MustParse(raw))
	}
	key := strings.TrimSpace(idempotencyKey)
	if key == "" {
		key = strings.TrimSpace(b.IdempotencyKey)
	}
	return consignmentapp.RecordPaymentRequest{
		SupplierID:      uuid.MustParse(b.SupplierID),
		PaymentAmount:   b.PaymentAmount,
		PaymentMethod:   b.PaymentMethod,
		RelatedBatchIDs: ids,
		Notes:           b.Notes,
		IdempotencyKey:  key,
		OperatorID:      operatorID,
	}
}

// BatchListQuery is the query string of GET /consignment/batches
type BatchListQuery struct {
	SupplierID string   `form:"supplier_id" binding:"omitempty,uuid"`
	ProductID  string   `form:"product_id" binding:"omitempty,uuid"`
	Status     string   `form:"status"`
	Statuses   []string `form:"statuses"`
	DateFrom   string   `form:"date_from"`
	DateTo     string   `form:"date_to"`
	Page       int      `form:"page" binding:"omitempty,min=1"`
	PageSize   int      `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy    string   `form:"order_by" binding:"omitempty,oneof=received_at created_at batch_number status total_value"`
	OrderDir   string   `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

func (q BatchListQuery) toFilter() (consignmentapp.BatchListFilter, error) {
	from, to, err := parseDateRange(q.DateFrom, q.DateTo)
	if err != nil {
		return consignmentapp.BatchListFilter{}, err
	}
	page, pageSize := pagination(q.Page, q.PageSize)

	statuses := make([]string, 0, len(q.Statuses))
	for _, s := range q.Statuses {
		// ?statuses=a,b and ?statuses=a&statuses=b are equivalent
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				statuses = append(statuses, part)
			}
		}
	}

	return consignmentapp.BatchListFilter{
		SupplierID: optionalUUID(q.SupplierID),
		ProductID:  optionalUUID(q.ProductID),
		Status:     q.Status,
		Statuses:   statuses,
		DateFrom:   from,
		DateTo:     to,
		Page:       page,
		PageSize:   pageSize,
		OrderBy:    q.OrderBy,
		OrderDir:   q.OrderDir,
	}, nil
}

// PaymentListQuery is the query string of GET /consignment/payments
type PaymentListQuery struct {
	SupplierID string `form:"supplier_id" binding:"omitempty,uuid"`
	DateFrom   string `form:"date_from"`
	DateTo     string `form:"date_to"`
	Page       int    `form:"page" binding:"omitempty,min=1"`
	PageSize   int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

func (q PaymentListQuery) toFilter() (consignmentapp.PaymentListFilter, error) {
	from, to, err := parseDateRange(q.DateFrom, q.DateTo)
	if err != nil {
		return consignmentapp.PaymentListFilter{}, err
	}
	page, pageSize := pagination(q.Page, q.PageSize)
	return consignmentapp.PaymentListFilter{
		SupplierID: optionalUUID(q.SupplierID),
		DateFrom:   from,
		DateTo:     to,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

// SummaryQuery is the query string of GET /consignment/summaries
type SummaryQuery struct {
	SupplierID string `form:"supplier_id" binding:"omitempty,uuid"`
	DateFrom   string `form:"date_from"`
	DateTo     string `form:"date_to"`
}

func (q SummaryQuery) toFilter() (consignmentapp.SummaryFilter, error) {
	from, to, err := parseDateRange(q.DateFrom, q.DateTo)
	if err != nil {
		return consignmentapp.SummaryFilter{}, err
	}
	return consignmentapp.SummaryFilter{
		SupplierID: optionalUUID(q.SupplierID),
		DateFrom:   from,
		DateTo:     to,
	}, nil
}

func pagination(page, pageSize int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	return page, pageSize
}

func optionalUUID(raw string) *uuid.UUID {
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}

const dateLayout = "2006-01-02"

// parseDateRange accepts YYYY-MM-DD or RFC 3339. A bare date_to covers the
// whole day.
func parseDateRange(fromRaw, toRaw string) (from, to *time.Time, err error) {
	if fromRaw != "" {
		t, _, err := parseDate(fromRaw)
		if err != nil {
			return nil, nil, fmt.Errorf("date_from: %w", err)
		}
		from = &t
	}
	if toRaw != "" {
		t, dateOnly, err := parseDate(toRaw)
		if err != nil {
			return nil, nil, fmt.Errorf("date_to: %w", err)
		}
		if dateOnly {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		to = &t
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, nil, fmt.Errorf("date_to is before date_from")
	}
	return from, to, nil
}

func parseDate(raw string) (time.Time, bool, error) {
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("expected YYYY-MM-DD or RFC 3339, got %q", raw)
	}
	return t.UTC(), false, nil
}
