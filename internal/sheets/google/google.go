package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/sony/gobreaker"
	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"penjualan/internal/core"
	applog "penjualan/internal/log"
	"penjualan/internal/resilience"
	ports "penjualan/internal/sheets"
)

// Config selects the spreadsheet and the service account used to reach it.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// Client stores transaction records as rows of one Google Sheets tab.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	breaker       *gobreaker.CircuitBreaker
	logger        *applog.Logger

	mu      sync.Mutex
	sheetID *int64
}

var _ ports.RecordStore = (*Client)(nil)

// New creates a Sheets client authenticated with a service account. Extra
// options are appended after the credentials.
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	creds, err := credentials(cfg)
	if err != nil {
		return nil, err
	}
	all := append([]goption.ClientOption{
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope),
	}, opts...)
	svc, err := gsheet.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, cfg.SpreadsheetID, cfg.SheetName), nil
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string) *Client {
	if sheetName == "" {
		sheetName = "Transactions"
	}
	logger := applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentSheets)
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		logger:        logger,
		breaker: resilience.NewCircuitBreaker(resilience.BreakerConfig{
			Name:   "google-sheets",
			Counts: isRetryable,
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

// WithLogger replaces the client's logger.
func (c *Client) WithLogger(l *applog.Logger) *Client {
	c.logger = l.WithComponent(applog.ComponentSheets)
	return c
}

func credentials(cfg Config) ([]byte, error) {
	if js := strings.TrimSpace(cfg.CredentialsJSON); js != "" {
		return []byte(js), nil
	}
	if cfg.CredentialsFile == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	b, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return b, nil
}

func (c *Client) a1(cells string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(c.sheetName, "'", "''"), cells)
}

// call runs fn through the circuit breaker and classifies its error.
func (c *Client) call(op string, fn func() error) error {
	if c.svc == nil {
		return core.Permanent(op, errors.New("sheets service not initialized"))
	}
	return classify(op, resilience.Do(c.breaker, fn))
}

// EnsureHeader writes the header row when the sheet is empty.
func (c *Client) EnsureHeader(ctx context.Context) error {
	var existing [][]interface{}
	err := c.call("ensure header", func() error {
		resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.a1("A1:"+lastColumn+"1")).Context(ctx).Do()
		if err != nil {
			return err
		}
		existing = resp.Values
		return nil
	})
	if err != nil {
		return err
	}
	if len(existing) > 0 && len(existing[0]) > 0 {
		return nil
	}
	return c.call("ensure header", func() error {
		vr := &gsheet.ValueRange{Values: [][]interface{}{headerRow()}}
		_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, c.a1("A1:"+lastColumn+"1"), vr).
			ValueInputOption("RAW").Context(ctx).Do()
		return err
	})
}

// Submit appends the record as a new row. A record whose id or No. PJB is
// already present is rejected as a permanent duplicate.
func (c *Client) Submit(ctx context.Context, r core.TransactionRecord) (string, error) {
	if r.ID == "" {
		return "", core.Permanent("submit", errors.New("record has no id"))
	}
	existing, err := c.FetchAll(ctx)
	if err != nil {
		return "", err
	}
	for _, e := range existing {
		if e.ID == r.ID {
			return "", core.Permanent("submit", fmt.Errorf("%w: %s", core.ErrDuplicateID, r.ID))
		}
		if strings.EqualFold(e.NoPJB, r.NoPJB) {
			return "", core.Permanent("submit", fmt.Errorf("%w: No. PJB %s", core.ErrDuplicateRecord, r.NoPJB))
		}
	}

	row, err := recordToRow(r)
	if err != nil {
		return "", core.Permanent("submit", err)
	}
	err = c.call("submit", func() error {
		vr := &gsheet.ValueRange{Values: [][]interface{}{row}}
		_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.a1("A:"+lastColumn), vr).
			ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
		return err
	})
	if err != nil {
		return "", err
	}
	c.logger.InfoContext(ctx, "Record appended to sheet", applog.FieldRecordID, r.ID, applog.FieldNoPJB, r.NoPJB)
	return r.ID, nil
}

// FetchAll reads every data row below the header. Rows that cannot be
// decoded are logged and skipped.
func (c *Client) FetchAll(ctx context.Context) ([]core.TransactionRecord, error) {
	var values [][]interface{}
	err := c.call("fetch all", func() error {
		resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.a1("A2:"+lastColumn)).
			ValueRenderOption("UNFORMATTED_VALUE").Context(ctx).Do()
		if err != nil {
			return err
		}
		values = resp.Values
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]core.TransactionRecord, 0, len(values))
	for i, row := range values {
		rec, err := rowToRecord(row)
		if errors.Is(err, errEmptyRow) {
			continue
		}
		if err != nil {
			c.logger.WarnContext(ctx, "Skipping malformed sheet row", "row", i+2, applog.FieldError, err)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// DeleteByID removes the row holding id. Unknown ids are ignored.
func (c *Client) DeleteByID(ctx context.Context, id string) error {
	var ids [][]interface{}
	err := c.call("delete", func() error {
		resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.a1("A2:A")).Context(ctx).Do()
		if err != nil {
			return err
		}
		ids = resp.Values
		return nil
	})
	if err != nil {
		return err
	}
	rowIndex := -1
	for i, row := range ids {
		if len(row) > 0 && cellString(row[0]) == id {
			rowIndex = i + 1 // zero-based sheet index; row 0 is the header
			break
		}
	}
	if rowIndex < 0 {
		return nil
	}

	sheetID, err := c.lookupSheetID(ctx)
	if err != nil {
		return err
	}
	err = c.call("delete", func() error {
		req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{Range: &gsheet.DimensionRange{
				SheetId:         sheetID,
				Dimension:       "ROWS",
				StartIndex:      int64(rowIndex),
				EndIndex:        int64(rowIndex + 1),
				ForceSendFields: []string{"SheetId"},
			}},
		}}}
		_, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do()
		return err
	})
	if err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "Record row deleted from sheet", applog.FieldRecordID, id, "row", rowIndex+1)
	return nil
}

func (c *Client) lookupSheetID(ctx context.Context) (int64, error) {
	c.mu.Lock()
	if c.sheetID != nil {
		id := *c.sheetID
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	var found *int64
	err := c.call("lookup sheet", func() error {
		ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets(properties(sheetId,title))").Context(ctx).Do()
		if err != nil {
			return err
		}
		for _, sh := range ss.Sheets {
			if sh.Properties != nil && sh.Properties.Title == c.sheetName {
				id := sh.Properties.SheetId
				found = &id
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if found == nil {
		return 0, core.Permanent("lookup sheet", fmt.Errorf("sheet %q not found in spreadsheet", c.sheetName))
	}
	c.mu.Lock()
	c.sheetID = found
	c.mu.Unlock()
	return *found, nil
}

// isRetryable reports whether a Sheets error is worth retrying and should
// count against the circuit breaker.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if resilience.IsOpen(err) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == 429 || gerr.Code >= 500
	}
	// Network and transport failures carry no status code.
	return true
}

func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *core.PersistError
	if errors.As(err, &pe) {
		return err
	}
	if isRetryable(err) {
		return core.Transient(op, err)
	}
	return core.Permanent(op, err)
}
