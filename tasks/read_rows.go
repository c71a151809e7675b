package tasks

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"promo-pipelines/types"
)

// ColumnMap gives the 0-based offset of each field inside a layout's range
type ColumnMap struct {
	Start, End, Target, DiscountType, DiscountValue, Channel, Note, Processed int
}

// SheetLayout describes where one campaign kind lives in the spreadsheet
type SheetLayout struct {
	Kind            types.CampaignKind
	SheetName       string
	FirstColumn     string
	LastColumn      string
	StartRow        int
	Columns         ColumnMap
	IDColumn        string
	ProcessedColumn string
}

// ProductLayout is the product tab: K:R from row 4
func ProductLayout(sheet string) SheetLayout {
	return SheetLayout{
		Kind:            types.KindProduct,
		SheetName:       sheet,
		FirstColumn:     "K",
		LastColumn:      "R",
		StartRow:        4,
		Columns:         ColumnMap{Start: 0, End: 1, Target: 2, DiscountType: 3, DiscountValue: 4, Channel: 5, Note: 6, Processed: 7},
		IDColumn:        "M",
		ProcessedColumn: "R",
	}
}

// BrandLayout is the brand tab: A:I from row 3 (F holds an unused second discount)
func BrandLayout(sheet string) SheetLayout {
	return SheetLayout{
		Kind:            types.KindBrand,
		SheetName:       sheet,
		FirstColumn:     "A",
		LastColumn:      "I",
		StartRow:        3,
		Columns:         ColumnMap{Start: 0, End: 1, Target: 2, DiscountType: 3, DiscountValue: 4, Note: 6, Channel: 7, Processed: 8},
		IDColumn:        "C",
		ProcessedColumn: "I",
	}
}

// LayoutFor returns the layout of kind on the given tab
func LayoutFor(kind types.CampaignKind, sheet string) SheetLayout {
	if kind == types.KindBrand {
		return BrandLayout(sheet)
	}
	return ProductLayout(sheet)
}

// ReadRange is the A1 range holding the layout's data
func (l SheetLayout) ReadRange() string {
	return fmt.Sprintf("%s!%s%d:%s", quoteSheet(l.SheetName), l.FirstColumn, l.StartRow, l.LastColumn)
}

func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// RowStats counts what ParseRows saw
type RowStats struct {
	Read    int // non-blank rows
	Invalid int // dropped: missing id/dates or unparseable values
}

// ParseRows converts raw cell values into source rows. Blank lines are
// skipped; rows missing a target id, start date or end date, or carrying an
// unknown discount type, are dropped with a warning.
func ParseRows(layout SheetLayout, values [][]string) ([]types.SourceRow, RowStats) {
	logger := zap.L().With(zap.String("task", "read_rows"), zap.String("kind", string(layout.Kind)))

	var rows []types.SourceRow
	var stats RowStats
	for i, raw := range values {
		if blankRow(raw) {
			continue
		}
		stats.Read++
		sheetRow := layout.StartRow + i

		row, err := parseRow(layout, raw)
		if err != nil {
			stats.Invalid++
			logger.Warn("row dropped", zap.Int("sheet_row", sheetRow), zap.Error(err))
			continue
		}
		row.SheetRow = sheetRow
		rows = append(rows, row)
	}
	return rows, stats
}

func parseRow(layout SheetLayout, raw []string) (types.SourceRow, error) {
	c := layout.Columns
	row := types.SourceRow{
		Kind:            layout.Kind,
		ChannelSelector: cell(raw, c.Channel),
		Note:            cell(raw, c.Note),
		ProcessedDate:   cell(raw, c.Processed),
	}

	idText := cell(raw, c.Target)
	if idText == "" {
		return row, fmt.Errorf("target id is empty")
	}
	id, err := parseID(idText)
	if err != nil {
		return row, err
	}
	row.TargetID = id

	startText := cell(raw, c.Start)
	if startText == "" {
		return row, fmt.Errorf("start date is empty")
	}
	if row.StartDate, err = ParseSheetDate(startText); err != nil {
		return row, err
	}
	endText := cell(raw, c.End)
	if endText == "" {
		return row, fmt.Errorf("end date is empty")
	}
	if row.EndDate, err = ParseSheetDate(endText); err != nil {
		return row, err
	}

	if row.DiscountType, err = types.ParseDiscountType(cell(raw, c.DiscountType)); err != nil {
		return row, err
	}
	if row.DiscountValue, err = ParseDiscountValue(cell(raw, c.DiscountValue)); err != nil {
		return row, err
	}
	return row, nil
}

// cell returns the trimmed value at i, with blank-like placeholders as ""
func cell(raw []string, i int) string {
	if i < 0 || i >= len(raw) {
		return ""
	}
	v := strings.TrimSpace(raw[i])
	if IsBlank(v) {
		return ""
	}
	return v
}

// IsBlank reports whether a sheet cell should be treated as empty
func IsBlank(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "-", "none", "null", "nan", "nat":
		return true
	}
	return false
}

func blankRow(raw []string) bool {
	for _, v := range raw {
		if !IsBlank(v) {
			return false
		}
	}
	return true
}

func parseID(s string) (int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return id, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || f <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return int64(f), nil
}

var sheetDateLayouts = []string{
	"2006-1-2",
	"2006.1.2",
	"2006/1/2",
	"2006-1-2 15:04:05",
	"2006.1.2 15:04:05",
	"20060102",
}

// ParseSheetDate accepts the date spellings found in the campaign sheets
// ("2025-11-01", "2025. 11. 1", "2025/11/01", ...). The result is midnight UTC.
func ParseSheetDate(s string) (time.Time, error) {
	v := strings.TrimSpace(s)
	v = strings.ReplaceAll(v, ". ", ".")
	v = strings.TrimSuffix(v, ".")
	for _, layout := range sheetDateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

// ParseDiscountValue strips %, 원 and thousands separators. Blank is zero.
func ParseDiscountValue(s string) (float64, error) {
	v := strings.NewReplacer("%", "", "원", "", ",", "", " ", "").Replace(s)
	if IsBlank(v) {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid discount %q", s)
	}
	return f, nil
}

// StampValue is the processed-date text written back to the sheet
func StampValue(today time.Time) string {
	return fmt.Sprintf("%d. %d. %d", today.Year(), int(today.Month()), today.Day())
}
