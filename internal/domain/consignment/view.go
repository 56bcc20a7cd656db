package consignment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BatchView is a batch plus the figures derived from it, as exposed by every
// read path.
type BatchView struct {
	ID                 uuid.UUID       `json:"id"`
	TenantID           uuid.UUID       `json:"tenant_id"`
	BatchNumber        string          `json:"batch_number"`
	SupplierID         uuid.UUID       `json:"supplier_id"`
	ProductID          uuid.UUID       `json:"product_id"`
	InitialQuantity    decimal.Decimal `json:"initial_quantity"`
	Unit               string          `json:"unit"`
	QuantitySold       decimal.Decimal `json:"quantity_sold"`
	QuantityReturned   decimal.Decimal `json:"quantity_returned"`
	QuantityRemaining  decimal.Decimal `json:"quantity_remaining"`
	UnitCost           decimal.Decimal `json:"unit_cost"`
	TotalValue         decimal.Decimal `json:"total_value"`
	SoldValue          decimal.Decimal `json:"sold_value"`
	AmountPaid         decimal.Decimal `json:"amount_paid"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`
	PercentSold        decimal.Decimal `json:"percent_sold"`
	Status             BatchStatus     `json:"status"`
	ReceivedAt         time.Time       `json:"received_at"`
	VerifiedAt         *time.Time      `json:"verified_at,omitempty"`
	VerifiedBy         *uuid.UUID      `json:"verified_by,omitempty"`
	ReturnDate         *time.Time      `json:"return_date,omitempty"`
	Notes              string          `json:"notes"`
	CreatedBy          *uuid.UUID      `json:"created_by,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	Version            int             `json:"version"`
}

// EnrichBatch computes the derived figures of b. It never mutates b.
func EnrichBatch(b *ConsignmentBatch) BatchView {
	return BatchView{
		ID:                 b.ID,
		TenantID:           b.TenantID,
		BatchNumber:        b.BatchNumber,
		SupplierID:         b.SupplierID,
		ProductID:          b.ProductID,
		InitialQuantity:    b.InitialQuantity,
		Unit:               b.Unit,
		QuantitySold:       b.QuantitySold,
		QuantityReturned:   b.QuantityReturned,
		QuantityRemaining:  b.QuantityRemaining(),
		UnitCost:           b.UnitCost,
		TotalValue:         b.TotalValue,
		SoldValue:          b.SoldValue(),
		AmountPaid:         b.AmountPaid,
		OutstandingBalance: b.OutstandingBalance(),
		PercentSold:        b.PercentSold(),
		Status:             b.Status,
		ReceivedAt:         b.ReceivedAt,
		VerifiedAt:         b.VerifiedAt,
		VerifiedBy:         b.VerifiedBy,
		ReturnDate:         b.ReturnDate,
		Notes:              b.Notes,
		CreatedBy:          b.CreatedBy,
		CreatedAt:          b.CreatedAt,
		UpdatedAt:          b.UpdatedAt,
		Version:            b.Version,
	}
}

// EnrichBatches enriches a list, preserving order
func EnrichBatches(batches []*ConsignmentBatch) []BatchView {
	views := make([]BatchView, 0, len(batches))
	for _, b := range batches {
		views = append(views, EnrichBatch(b))
	}
	return views
}
