// Package export renders consignment documents for suppliers.
package export

import (
	"fmt"
	"time"

	"github.com/erp/consignment/internal/domain/consignment"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	SheetSummary  = "Summary"
	SheetBatches  = "Batches"
	SheetPayments = "Payments"

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	dateLayout      = "2006-01-02"
)

var (
	batchHeaders = []interface{}{
		"Batch number", "Received", "Status", "Unit", "Initial quantity", "Sold", "Returned",
		"Remaining", "Unit cost", "Total value", "Sold value", "Paid", "Outstanding",
	}
	paymentHeaders = []interface{}{
		"Date", "Method", "Amount", "Applied", "Unapplied", "Credit applied", "Batches", "Notes", "Payment ID",
	}
)

// XLSXStatementRenderer writes supplier statements as Excel workbooks with a
// summary, a batch and a payment sheet.
type XLSXStatementRenderer struct{}

// NewXLSXStatementRenderer creates a new renderer
func NewXLSXStatementRenderer() *XLSXStatementRenderer {
	return &XLSXStatementRenderer{}
}

// ContentType returns the workbook MIME type
func (r *XLSXStatementRenderer) ContentType() string {
	return xlsxContentType
}

// FileExtension returns ".xlsx"
func (r *XLSXStatementRenderer) FileExtension() string {
	return ".xlsx"
}

// Render builds the workbook
func (r *XLSXStatementRenderer) Render(st *consignment.SupplierStatement) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return nil, err
	}
	for _, name := range []string{SheetBatches, SheetPayments} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	if err := writeSummary(f, st, bold); err != nil {
		return nil, fmt.Errorf("summary sheet: %w", err)
	}
	if err := writeBatches(f, st, bold); err != nil {
		return nil, fmt.Errorf("batch sheet: %w", err)
	}
	if err := writePayments(f, st, bold); err != nil {
		return nil, fmt.Errorf("payment sheet: %w", err)
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeSummary(f *excelize.File, st *consignment.SupplierStatement, bold int) error {
	s := st.Summary
	rows := [][]interface{}{
		{"Supplier", st.SupplierID.String()},
		{"Period from", optionalDate(st.PeriodFrom)},
		{"Period to", optionalDate(st.PeriodTo)},
		{"Generated at", st.GeneratedAt.Format(time.RFC3339)},
		{"Batches", s.TotalBatches},
		{"Total value", money(s.TotalValue)},
		{"Sold value", money(s.TotalSoldValue)},
		{"Paid", money(s.TotalPaid)},
		{"Outstanding", money(s.OutstandingBalance)},
		{"Credit", money(s.CreditBalance)},
		{"Paid in period", money(st.PaidInPeriod)},
	}
	for i, row := range rows {
		if err := setRow(f, SheetSummary, i+1, row); err != nil {
			return err
		}
	}
	if err := f.SetColStyle(SheetSummary, "A", bold); err != nil {
		return err
	}
	return f.SetColWidth(SheetSummary, "A", "B", 40)
}

func writeBatches(f *excelize.File, st *consignment.SupplierStatement, bold int) error {
	if err := writeHeader(f, SheetBatches, batchHeaders, bold); err != nil {
		return err
	}
	for i, b := range st.Batches {
		row := []interface{}{
			b.BatchNumber,
			b.ReceivedAt.Format(dateLayout),
			string(b.Status),
			b.Unit,
			money(b.InitialQuantity),
			money(b.QuantitySold),
			money(b.QuantityReturned),
			money(b.QuantityRemaining),
			money(b.UnitCost),
			money(b.TotalValue),
			money(b.SoldValue),
			money(b.AmountPaid),
			money(b.OutstandingBalance),
		}
		if err := setRow(f, SheetBatches, i+2, row); err != nil {
			return err
		}
	}
	return f.SetColWidth(SheetBatches, "A", "M", 16)
}

func writePayments(f *excelize.File, st *consignment.SupplierStatement, bold int) error {
	if err := writeHeader(f, SheetPayments, paymentHeaders, bold); err != nil {
		return err
	}
	for i, p := range st.Payments {
		row := []interface{}{
			p.PaymentDate.Format(dateLayout),
			p.PaymentMethod,
			money(p.PaymentAmount),
			money(p.AppliedAmount),
			money(p.UnappliedAmount),
			money(p.CreditApplied),
			p.BatchCount,
			p.Notes,
			p.PaymentID.String(),
		}
		if err := setRow(f, SheetPayments, i+2, row); err != nil {
			return err
		}
	}
	return f.SetColWidth(SheetPayments, "A", "I", 16)
}

func writeHeader(f *excelize.File, sheet string, headers []interface{}, bold int) error {
	if err := setRow(f, sheet, 1, headers); err != nil {
		return err
	}
	return f.SetRowStyle(sheet, 1, 1, bold)
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

// money keeps amounts numeric in the sheet. Statement figures carry at most
// a few decimals, well inside float64 precision.
func money(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

func optionalDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}
