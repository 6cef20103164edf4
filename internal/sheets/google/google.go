// Package google mirrors the ledger document into a Google Sheets spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"ledger/internal/core"
	"ledger/internal/log"
)

const (
	DefaultMembersSheet  = "Members"
	DefaultPaymentsSheet = "Payments"
	DefaultExpensesSheet = "Expenses"

	clearColumns = "A:Z"
)

var (
	ErrMissingSpreadsheetID = errors.New("missing GOOGLE_SPREADSHEET_ID")
	ErrMissingCredentials   = errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
)

// Config selects the spreadsheet and the service account used to write it.
type Config struct {
	SpreadsheetID      string
	ServiceAccountJSON string
	ServiceAccountFile string
}

// Client rewrites the Members, Payments and Expenses tabs of one spreadsheet.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	membersSheet  string
	paymentsSheet string
	expensesSheet string
}

// New builds a client on an existing Sheets service.
func New(svc *gsheet.Service, spreadsheetID string) (*Client, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, ErrMissingSpreadsheetID
	}
	if svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		membersSheet:  DefaultMembersSheet,
		paymentsSheet: DefaultPaymentsSheet,
		expensesSheet: DefaultExpensesSheet,
	}, nil
}

// NewFromConfig authenticates with a service account. Inline JSON wins over a file,
// and GOOGLE_APPLICATION_CREDENTIALS is the last resort.
func NewFromConfig(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, ErrMissingSpreadsheetID
	}
	creds, err := loadCredentials(cfg)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created", log.FieldComponent, log.ComponentSheets)
	return New(svc, cfg.SpreadsheetID)
}

func loadCredentials(cfg Config) ([]byte, error) {
	inline := strings.TrimSpace(cfg.ServiceAccountJSON)
	file := strings.TrimSpace(cfg.ServiceAccountFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		return []byte(inline), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	}
	return nil, ErrMissingCredentials
}

// Export replaces the three tabs with the document contents: every tab is cleared, then
// all rows are written in one batch.
func (c *Client) Export(ctx context.Context, doc core.Document) error {
	sheets := []string{c.membersSheet, c.paymentsSheet, c.expensesSheet}

	ranges := make([]string, 0, len(sheets))
	for _, s := range sheets {
		ranges = append(ranges, fmt.Sprintf("%s!%s", s, clearColumns))
	}
	_, err := c.svc.Spreadsheets.Values.BatchClear(c.spreadsheetID, &gsheet.BatchClearValuesRequest{Ranges: ranges}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear sheets: %w", err)
	}

	data := []*gsheet.ValueRange{
		{Range: c.membersSheet + "!A1", Values: MemberValues(doc)},
		{Range: c.paymentsSheet + "!A1", Values: PaymentValues(doc)},
		{Range: c.expensesSheet + "!A1", Values: ExpenseValues(doc)},
	}
	_, err = c.svc.Spreadsheets.Values.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data:             data,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write sheets: %w", err)
	}

	slog.InfoContext(ctx, "Exported document to Google Sheets",
		log.NewFields().
			WithComponent(log.ComponentSheets).
			WithOperation(log.OpExport).
			WithDocument(len(doc.Members), len(doc.Payments), len(doc.Expenses)).
			ToSlice()...)
	return nil
}
