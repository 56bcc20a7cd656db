package persistence

import (
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// sortColumns whitelists the columns a list endpoint may order by. Requested
// names outside the list fall back to a fixed column.
type sortColumns struct {
	fallback string
	allowed  map[string]struct{}
}

func newSortColumns(fallback string, columns ...string) sortColumns {
	allowed := make(map[string]struct{}, len(columns)+1)
	allowed[fallback] = struct{}{}
	for _, c := range columns {
		allowed[c] = struct{}{}
	}
	return sortColumns{fallback: fallback, allowed: allowed}
}

var (
	batchSortColumns = newSortColumns("received_at",
		"created_at", "updated_at", "verified_at", "batch_number", "supplier_id",
		"product_id", "status", "initial_quantity", "quantity_sold", "total_value", "amount_paid")
	paymentSortColumns = newSortColumns("payment_date",
		"created_at", "payment_amount", "supplier_id")
)

// column resolves a requested column. Matching is exact after trimming.
func (s sortColumns) column(requested string) string {
	requested = strings.TrimSpace(requested)
	if _, ok := s.allowed[requested]; ok {
		return requested
	}
	return s.fallback
}

// descending treats anything but "asc" as descending
func descending(dir string) bool {
	return !strings.EqualFold(strings.TrimSpace(dir), "asc")
}

// order sorts by the resolved column, then by id in the same direction so
// that pages are stable across equal keys.
func (s sortColumns) order(orderBy, orderDir string) func(*gorm.DB) *gorm.DB {
	desc := descending(orderDir)
	return func(db *gorm.DB) *gorm.DB {
		return db.Order(clause.OrderBy{Columns: []clause.OrderByColumn{
			{Column: clause.Column{Name: s.column(orderBy)}, Desc: desc},
			{Column: clause.Column{Name: "id"}, Desc: desc},
		}})
	}
}
