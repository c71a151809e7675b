package tasks

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"promo-pipelines/types"
)

var spreadsheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9_-]+)`)

// SheetRef identifies a spreadsheet and optionally one tab by gid
type SheetRef struct {
	SpreadsheetID string
	GID           int64
	HasGID        bool
}

// ParseSheetRef accepts a full Google Sheets URL or a bare spreadsheet id
func ParseSheetRef(s string) (SheetRef, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return SheetRef{}, fmt.Errorf("spreadsheet URL is empty")
	}
	if !strings.Contains(s, "/") {
		return SheetRef{SpreadsheetID: s}, nil
	}

	m := spreadsheetIDPattern.FindStringSubmatch(s)
	if m == nil {
		return SheetRef{}, fmt.Errorf("no spreadsheet id in %q", s)
	}
	ref := SheetRef{SpreadsheetID: m[1]}

	u, err := url.Parse(s)
	if err != nil {
		return ref, nil
	}
	gid := u.Query().Get("gid")
	if gid == "" && strings.HasPrefix(u.Fragment, "gid=") {
		gid = strings.TrimPrefix(u.Fragment, "gid=")
	}
	if gid != "" {
		if n, err := strconv.ParseInt(gid, 10, 64); err == nil {
			ref.GID = n
			ref.HasGID = true
		}
	}
	return ref, nil
}

// SheetInfo describes one tab
type SheetInfo struct {
	Title string
	ID    int64
}

// SheetsClient reads campaign rows from and stamps processed dates into a spreadsheet
type SheetsClient struct {
	svc           *sheets.Service
	spreadsheetID string
}

// NewSheetsClient authenticates with a service-account credentials file.
// Extra options (endpoint, HTTP client) override the defaults.
func NewSheetsClient(ctx context.Context, spreadsheetID, credentialsFile string, opts ...option.ClientOption) (*SheetsClient, error) {
	all := []option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}
	if credentialsFile != "" {
		all = append(all, option.WithCredentialsFile(credentialsFile))
	}
	all = append(all, opts...)

	svc, err := sheets.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &SheetsClient{svc: svc, spreadsheetID: spreadsheetID}, nil
}

// ListSheets returns every tab in the spreadsheet
func (c *SheetsClient) ListSheets(ctx context.Context) ([]SheetInfo, error) {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get spreadsheet: %w", err)
	}
	out := make([]SheetInfo, 0, len(ss.Sheets))
	for _, s := range ss.Sheets {
		if s.Properties == nil {
			continue
		}
		out = append(out, SheetInfo{Title: s.Properties.Title, ID: s.Properties.SheetId})
	}
	return out, nil
}

// SheetTitle resolves a gid to a tab title
func (c *SheetsClient) SheetTitle(ctx context.Context, gid int64) (string, error) {
	tabs, err := c.ListSheets(ctx)
	if err != nil {
		return "", err
	}
	for _, t := range tabs {
		if t.ID == gid {
			return t.Title, nil
		}
	}
	return "", fmt.Errorf("no sheet with gid %d", gid)
}

// ReadValues returns the formatted cell values of an A1 range
func (c *SheetsClient) ReadValues(ctx context.Context, rng string) ([][]string, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}

	out := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		out[i] = make([]string, len(row))
		for j, v := range row {
			if v != nil {
				out[i][j] = fmt.Sprint(v)
			}
		}
	}
	return out, nil
}

// ReadRows reads and parses the campaign rows of a layout
func (c *SheetsClient) ReadRows(ctx context.Context, layout SheetLayout) ([]types.SourceRow, RowStats, error) {
	logger := zap.L().With(zap.String("task", "read_rows"), zap.String("sheet", layout.SheetName))
	logger.Info("read_rows started", zap.String("range", layout.ReadRange()))

	values, err := c.ReadValues(ctx, layout.ReadRange())
	if err != nil {
		return nil, RowStats{}, err
	}
	rows, stats := ParseRows(layout, values)

	logger.Info("read_rows complete", zap.Int("rows_read", stats.Read), zap.Int("rows_invalid", stats.Invalid))
	return rows, stats, nil
}

// StampProcessed writes today's date into the processed column of every row
// whose id is in ids and whose processed cell is still empty. It returns the
// number of cells written.
func (c *SheetsClient) StampProcessed(ctx context.Context, layout SheetLayout, ids []int64, today time.Time) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	logger := zap.L().With(zap.String("task", "stamp_processed"), zap.String("sheet", layout.SheetName))

	idValues, err := c.ReadValues(ctx, columnRange(layout.SheetName, layout.IDColumn, layout.StartRow))
	if err != nil {
		return 0, err
	}
	doneValues, err := c.ReadValues(ctx, columnRange(layout.SheetName, layout.ProcessedColumn, layout.StartRow))
	if err != nil {
		return 0, err
	}

	updates := StampTargets(layout, idValues, doneValues, ids)
	if len(updates) == 0 {
		logger.Info("stamp_processed: nothing to stamp")
		return 0, nil
	}

	stamp := StampValue(today)
	data := make([]*sheets.ValueRange, 0, len(updates))
	for _, row := range updates {
		data = append(data, &sheets.ValueRange{
			Range:  fmt.Sprintf("%s!%s%d", quoteSheet(layout.SheetName), layout.ProcessedColumn, row),
			Values: [][]interface{}{{stamp}},
		})
	}

	_, err = c.svc.Spreadsheets.Values.BatchUpdate(c.spreadsheetID, &sheets.BatchUpdateValuesRequest{
		ValueInputOption: "USER_ENTERED",
		Data:             data,
	}).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("stamp processed dates: %w", err)
	}

	logger.Info("stamp_processed complete", zap.Int("rows", len(updates)), zap.String("value", stamp))
	return len(updates), nil
}

func columnRange(sheet, col string, startRow int) string {
	return fmt.Sprintf("%s!%s%d:%s", quoteSheet(sheet), col, startRow, col)
}

// StampTargets returns the sheet row numbers to stamp: id in ids and processed cell blank
func StampTargets(layout SheetLayout, idValues, doneValues [][]string, ids []int64) []int {
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	var rows []int
	for i, r := range idValues {
		if len(r) == 0 || IsBlank(r[0]) {
			continue
		}
		id, err := parseID(r[0])
		if err != nil || !want[id] {
			continue
		}
		if i < len(doneValues) && len(doneValues[i]) > 0 && !IsBlank(doneValues[i][0]) {
			continue
		}
		rows = append(rows, layout.StartRow+i)
	}
	return rows
}
