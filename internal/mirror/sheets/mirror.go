// Package sheets mirrors created transactions into a Google Spreadsheet so
// shop owners can eyeball the book without touching the service.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"khata/internal/core"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Mirror appends one row per created transaction to a per-year worksheet.
// It never reads the book back; the database stays the system of record.
type Mirror struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
	now           func() time.Time
}

// New creates a mirror writing to the given spreadsheet. Credentials come
// from GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS.
func New(ctx context.Context, spreadsheetID, sheetBase string) (*Mirror, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet ID")
	}
	if strings.TrimSpace(sheetBase) == "" {
		sheetBase = "Ledger"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Mirror{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetBase:     sheetBase,
		now:           time.Now,
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))

	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return service, nil
}

// AppendTransaction writes one row to the worksheet for the transaction's
// year, creating the worksheet if it does not exist yet.
func (m *Mirror) AppendTransaction(ctx context.Context, tx core.Transaction, customer core.Customer) error {
	if m.svc == nil {
		return errors.New("sheets service not initialized")
	}

	sheetName := sheetNameForYear(m.sheetBase, tx.Date.Year())
	if err := m.ensureSheet(ctx, sheetName); err != nil {
		return fmt.Errorf("ensure sheet %s: %w", sheetName, err)
	}

	rng := fmt.Sprintf("%s!A:F", sheetName)
	vr := &gsheet.ValueRange{Values: [][]any{transactionRow(tx, customer)}}

	_, err := m.svc.Spreadsheets.Values.Append(m.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to sheet %s: %w", sheetName, err)
	}

	slog.InfoContext(ctx, "Appended transaction to spreadsheet",
		"transaction_id", tx.ID,
		"sheet", sheetName)

	return nil
}

// ensureSheet adds the worksheet when the spreadsheet does not have it yet.
func (m *Mirror) ensureSheet(ctx context.Context, sheetName string) error {
	spreadsheet, err := m.svc.Spreadsheets.Get(m.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}

	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == sheetName {
			return nil
		}
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{
				Properties: &gsheet.SheetProperties{Title: sheetName},
			},
		}},
	}
	if _, err := m.svc.Spreadsheets.BatchUpdate(m.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}

	header := &gsheet.ValueRange{Values: [][]any{{"Date", "Customer", "Transaction ID", "Type", "Amount", "Description"}}}
	rng := fmt.Sprintf("%s!A1:F1", sheetName)
	if _, err := m.svc.Spreadsheets.Values.Update(m.spreadsheetID, rng, header).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	slog.InfoContext(ctx, "Created mirror worksheet", "sheet", sheetName)
	return nil
}

// sheetNameForYear appends the year unless the base already carries one.
func sheetNameForYear(base string, year int) string {
	base = strings.TrimSpace(base)
	if strings.Contains(base, fmt.Sprintf("%d", year)) {
		return base
	}
	return fmt.Sprintf("%s %d", base, year)
}

func transactionRow(tx core.Transaction, customer core.Customer) []any {
	return []any{
		tx.Date.UTC().Format("2006-01-02"),
		customer.Name,
		tx.ID,
		string(tx.Type),
		tx.Amount.Float64(),
		tx.Description,
	}
}
