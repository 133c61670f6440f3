package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	ports "multitool/internal/sheets"

	"multitool/internal/core"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// TimestampLayout is how history timestamps are written to the sheet.
const TimestampLayout = "2006-01-02 15:04:05"

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	// sheetPrefix is prepended to the feature name; the record year is
	// prepended to the result, e.g. "2025 history_speech".
	sheetPrefix string

	mu    sync.Mutex
	known map[string]bool
}

// Ensure interface conformance
var _ ports.HistoryExporter = (*Client)(nil)

// New creates a Sheets client authenticated with a service account.
// Credentials come from GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS.
func New(ctx context.Context, spreadsheetID, sheetPrefix string) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if sheetPrefix == "" {
		sheetPrefix = "history_"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetPrefix:   sheetPrefix,
		known:         map[string]bool{},
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
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
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

// Export appends the record as one row of its feature's sheet, creating
// the sheet on first use.
func (c *Client) Export(ctx context.Context, rec core.HistoryRecord) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if !rec.Feature.Valid() {
		return "", fmt.Errorf("%w: unknown feature %q", core.ErrInvalidInput, rec.Feature)
	}

	sheet := c.sheetName(rec)
	if err := c.ensureSheet(ctx, sheet); err != nil {
		return "", err
	}

	rng := fmt.Sprintf("'%s'!A:E", sheet)
	vr := &gsheet.ValueRange{Values: [][]any{ports.Row(rec, TimestampLayout)}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", sheet, err)
	}
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		return resp.Updates.UpdatedRange, nil
	}
	return rng, nil
}

func (c *Client) sheetName(rec core.HistoryRecord) string {
	return yearPrefixedName(c.sheetPrefix+string(rec.Feature), rec.Timestamp.Year())
}

// ensureSheet adds the sheet with a header row when the spreadsheet does
// not have it yet. Known names are remembered for the client's lifetime.
func (c *Client) ensureSheet(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.known[name] {
		return nil
	}

	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			c.known[sh.Properties.Title] = true
		}
	}
	if c.known[name] {
		return nil
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: name}},
	}}}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", name, err)
	}
	header := &gsheet.ValueRange{Values: [][]any{{"id", "timestamp", "feature", "input", "output"}}}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, fmt.Sprintf("'%s'!A1:E1", name), header).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write header of %s: %w", name, err)
	}

	slog.InfoContext(ctx, "Created export sheet", "sheet", name)
	c.known[name] = true
	return nil
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
