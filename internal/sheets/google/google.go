package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	applog "github.com/privatep88/Petty-Cash/internal/log"
	ports "github.com/privatep88/Petty-Cash/internal/sheets"
)

// Client writes each period report to its own tab of one spreadsheet.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	logger        *applog.Logger
}

var _ ports.ReportPublisher = (*Client)(nil)

// New creates a client for spreadsheetID. Without options, credentials come
// from GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
func New(ctx context.Context, spreadsheetID string, logger *applog.Logger, opts ...goption.ClientOption) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if logger == nil {
		logger = applog.Discard()
	}
	logger = logger.WithComponent(applog.ComponentSheets)

	if len(opts) == 0 {
		creds, err := serviceAccountCredentials(ctx, logger)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, logger: logger}, nil
}

func serviceAccountCredentials(ctx context.Context, logger *applog.Logger) ([]byte, error) {
	inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	file := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		logger.InfoContext(ctx, "Using inline service account credentials")
		return []byte(inline), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		logger.InfoContext(ctx, "Read service account credentials", "path", file, "size", len(data))
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// PublishReport creates the report's tab when missing, clears it and writes
// the header, rows, total and notes starting at A1.
func (c *Client) PublishReport(ctx context.Context, r ports.Report) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	title := r.Title()

	if err := c.ensureSheet(ctx, title); err != nil {
		return "", err
	}

	all := quoteSheet(title)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, all, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("clear %s: %w", title, err)
	}

	values := reportValues(r)
	rng := fmt.Sprintf("%s!A1:%s%d", quoteSheet(title), lastColumn(values), len(values))
	vr := &gsheet.ValueRange{Values: values}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("update %s: %w", rng, err)
	}

	c.logger.InfoContext(ctx, "Report written to sheet",
		applog.FieldPeriodKey, title,
		applog.FieldEntries, len(r.Rows),
		"range", rng)
	return rng, nil
}

func (c *Client) ensureSheet(ctx context.Context, title string) error {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == title {
			return nil
		}
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{
				Properties: &gsheet.SheetProperties{Title: title, RightToLeft: true},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", title, err)
	}
	c.logger.InfoContext(ctx, "Created report sheet", applog.FieldPeriodKey, title)
	return nil
}

// reportValues lays the report out as header, rows, a blank line, the
// total under the cost column and the general notes.
func reportValues(r ports.Report) [][]any {
	out := make([][]any, 0, len(r.Rows)+4)
	out = append(out, toAny(r.Headers))
	for _, row := range r.Rows {
		out = append(out, toAny(row))
	}
	out = append(out, []any{})

	costCol := max(len(r.Headers)-2, 0)
	total := make([]any, costCol+1)
	for i := range total {
		total[i] = ""
	}
	total[0] = "الإجمالي"
	total[costCol] = r.Total
	out = append(out, total)

	if r.GeneralNotes != "" {
		out = append(out, []any{"ملاحظات عامة", r.GeneralNotes})
	}
	return out
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

func lastColumn(values [][]any) string {
	width := 1
	for _, row := range values {
		width = max(width, len(row))
	}
	return string(rune('A' + width - 1))
}

// quoteSheet wraps a tab name for A1 notation.
func quoteSheet(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}
