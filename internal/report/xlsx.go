// Package report renders ledger views and customer bills as XLSX workbooks.
package report

import (
	"context"
	"fmt"
	"io"
	"time"

	"khata/internal/core"
	"khata/internal/ledger"
	"khata/internal/services"
	"khata/internal/store"

	"github.com/xuri/excelize/v2"
)

// LedgerViewer is the slice of the service layer the builder needs.
// Satisfied by *services.LedgerService.
type LedgerViewer interface {
	View(ctx context.Context, customerID int64, dateRange *store.DateRange) (*services.LedgerView, error)
	Statement(ctx context.Context, customerID int64, dateRange *store.DateRange) (*services.Statement, error)
}

type Builder struct {
	viewer LedgerViewer
}

func NewBuilder(viewer LedgerViewer) *Builder {
	return &Builder{viewer: viewer}
}

var transactionHeader = []string{"Date", "Customer", "Type", "Amount", "Balance", "Description"}

// WriteTransactionsReport renders a transactions workbook for the given
// scope. Rows are newest first, matching the API views.
func (b *Builder) WriteTransactionsReport(ctx context.Context, w io.Writer, customerID int64, dateRange *store.DateRange) error {
	view, err := b.viewer.View(ctx, customerID, dateRange)
	if err != nil {
		return fmt.Errorf("load ledger view: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Transactions"
	f.SetSheetName("Sheet1", sheet)

	if err := writeRow(f, sheet, 1, toCells(transactionHeader)); err != nil {
		return err
	}

	row := 2
	for _, tx := range view.Transactions {
		cells := []any{
			tx.Date.UTC().Format("2006-01-02"),
			tx.CustomerName,
			string(tx.Type),
			tx.Amount.Float64(),
			tx.RunningBalance.Float64(),
			tx.Description,
		}
		if err := writeRow(f, sheet, row, cells); err != nil {
			return err
		}
		row++
	}

	row++ // blank line before totals
	if err := writeSummary(f, sheet, row, view.Summary); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// WriteCustomerBill renders a printable bill for one customer: a heading
// block, one section per month, and the closing balance.
func (b *Builder) WriteCustomerBill(ctx context.Context, w io.Writer, customerID int64, dateRange *store.DateRange) error {
	stmt, err := b.viewer.Statement(ctx, customerID, dateRange)
	if err != nil {
		return fmt.Errorf("load statement: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Bill"
	f.SetSheetName("Sheet1", sheet)

	row := 1
	heading := [][]any{
		{"Customer", stmt.Customer.Name},
		{"Phone", stmt.Customer.Phone},
		{"Address", stmt.Customer.Address},
		{"Generated", stmt.GeneratedAt.Format(time.RFC3339)},
	}
	for _, cells := range heading {
		if err := writeRow(f, sheet, row, cells); err != nil {
			return err
		}
		row++
	}
	row++

	for _, bucket := range stmt.View.Buckets {
		title := fmt.Sprintf("%s %d", bucket.Key.Month.String(), bucket.Key.Year)
		if err := writeRow(f, sheet, row, []any{title}); err != nil {
			return err
		}
		row++

		if err := writeRow(f, sheet, row, toCells(transactionHeader)); err != nil {
			return err
		}
		row++

		for _, tx := range bucket.Transactions {
			cells := []any{
				tx.Date.UTC().Format("2006-01-02"),
				tx.CustomerName,
				string(tx.Type),
				tx.Amount.Float64(),
				tx.RunningBalance.Float64(),
				tx.Description,
			}
			if err := writeRow(f, sheet, row, cells); err != nil {
				return err
			}
			row++
		}

		if err := writeSummary(f, sheet, row, bucket.Summary); err != nil {
			return err
		}
		row += 5
	}

	closing := closingBalance(stmt.View)
	if err := writeRow(f, sheet, row, []any{"Closing Balance", core.FormatCents(closing)}); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, sheet string, row int, s ledger.Summary) error {
	lines := [][]any{
		{"Total Debit", s.TotalDebit.Float64()},
		{"Total Credit", s.TotalCredit.Float64()},
		{"Net Amount", s.NetAmount.Float64()},
		{"Entries", s.Count},
	}
	for i, cells := range lines {
		if err := writeRow(f, sheet, row+i, cells); err != nil {
			return err
		}
	}
	return nil
}

// closingBalance is the running balance of the newest in-scope row, zero on
// an empty view.
func closingBalance(view services.LedgerView) int64 {
	for _, tx := range view.Transactions {
		if tx.Scoped {
			return tx.RunningBalance.Cents
		}
	}
	return 0
}

func writeRow(f *excelize.File, sheet string, row int, cells []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("cell name for row %d: %w", row, err)
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}

func toCells(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
