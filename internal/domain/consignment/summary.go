package consignment

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SupplierSummary is the per-supplier roll-up of consignment figures
type SupplierSummary struct {
	SupplierID         uuid.UUID       `json:"supplier_id"`
	TotalBatches       int             `json:"total_batches"`
	TotalValue         decimal.Decimal `json:"total_value"`
	TotalSoldValue     decimal.Decimal `json:"total_sold_value"`
	TotalPaid          decimal.Decimal `json:"total_paid"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`
	CreditBalance      decimal.Decimal `json:"credit_balance"`
}

func newSupplierSummary(supplierID uuid.UUID) *SupplierSummary {
	return &SupplierSummary{
		SupplierID:         supplierID,
		TotalValue:         decimal.Zero,
		TotalSoldValue:     decimal.Zero,
		TotalPaid:          decimal.Zero,
		OutstandingBalance: decimal.Zero,
		CreditBalance:      decimal.Zero,
	}
}

func (s *SupplierSummary) add(c Contribution) {
	s.TotalBatches += c.Batches
	s.TotalValue = s.TotalValue.Add(c.Value)
	s.TotalSoldValue = s.TotalSoldValue.Add(c.SoldValue)
	s.TotalPaid = s.TotalPaid.Add(c.Paid)
	s.OutstandingBalance = s.TotalSoldValue.Sub(s.TotalPaid)
}

// PaymentStats is the global roll-up over every counted batch
type PaymentStats struct {
	TotalConsignmentValue decimal.Decimal `json:"total_consignment_value"`
	TotalSoldValue        decimal.Decimal `json:"total_sold_value"`
	TotalOwed             decimal.Decimal `json:"total_owed"`
	TotalPaid             decimal.Decimal `json:"total_paid"`
	BatchesCount          int             `json:"batches_count"`
	SuppliersCount        int             `json:"suppliers_count"`
}

// StatsFromSummaries folds supplier summaries into global stats
func StatsFromSummaries(summaries []SupplierSummary) PaymentStats {
	stats := PaymentStats{
		TotalConsignmentValue: decimal.Zero,
		TotalSoldValue:        decimal.Zero,
		TotalOwed:             decimal.Zero,
		TotalPaid:             decimal.Zero,
	}
	for _, s := range summaries {
		if s.TotalBatches == 0 {
			continue
		}
		stats.TotalConsignmentValue = stats.TotalConsignmentValue.Add(s.TotalValue)
		stats.TotalSoldValue = stats.TotalSoldValue.Add(s.TotalSoldValue)
		stats.TotalPaid = stats.TotalPaid.Add(s.TotalPaid)
		stats.BatchesCount += s.TotalBatches
		stats.SuppliersCount++
	}
	stats.TotalOwed = stats.TotalSoldValue.Sub(stats.TotalPaid)
	return stats
}

// SortSummaries orders by outstanding balance, largest first; ties by supplier id
func SortSummaries(summaries []SupplierSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		cmp := summaries[i].OutstandingBalance.Cmp(summaries[j].OutstandingBalance)
		if cmp != 0 {
			return cmp > 0
		}
		return summaries[i].SupplierID.String() < summaries[j].SupplierID.String()
	})
}

// SummarizeBatches groups batches by supplier. Batches still in received are
// ignored. The result is sorted with SortSummaries.
func SummarizeBatches(batches []*ConsignmentBatch) ([]SupplierSummary, PaymentStats) {
	bySupplier := make(map[uuid.UUID]*SupplierSummary)
	order := make([]uuid.UUID, 0)

	for _, b := range batches {
		c := ContributionOf(b)
		if c.Batches == 0 {
			continue
		}
		s, ok := bySupplier[b.SupplierID]
		if !ok {
			s = newSupplierSummary(b.SupplierID)
			bySupplier[b.SupplierID] = s
			order = append(order, b.SupplierID)
		}
		s.add(c)
	}

	summaries := make([]SupplierSummary, 0, len(order))
	for _, id := range order {
		summaries = append(summaries, *bySupplier[id])
	}
	SortSummaries(summaries)
	return summaries, StatsFromSummaries(summaries)
}
