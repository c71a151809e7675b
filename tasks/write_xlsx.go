package tasks

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"promo-pipelines/types"
)

const xlsxSheet = "Sheet1"

type column struct {
	header string
	value  func(r types.PromotionRow) any
}

func pct(v float64) any { return int(math.Round(v)) }

// Output layouts. Start date, end date and channel live in the file name.
var (
	productColumns = []column{
		{"상품번호", func(r types.PromotionRow) any { return r.TargetID }},
		{"내부할인타입", func(r types.PromotionRow) any { return r.DiscountType.Code() }},
		{"내부할인", func(r types.PromotionRow) any { return pct(r.DiscountValue) }},
		{"연동할인타입", func(r types.PromotionRow) any { return r.LinkedDiscountType.Code() }},
		{"연동할인", func(r types.PromotionRow) any { return pct(r.LinkedDiscountValue) }},
		{"외부할인타입", func(r types.PromotionRow) any { return r.ExternalDiscountType.Code() }},
		{"외부할인가", func(r types.PromotionRow) any { return pct(r.ExternalDiscountValue) }},
		{"채널분담율", func(r types.PromotionRow) any { return r.ChannelShare }},
		{"브리치분담율", func(r types.PromotionRow) any { return r.PlatformShare }},
		{"입점사분담율", func(r types.PromotionRow) any { return r.VendorShare }},
	}
	brandColumns = []column{
		{"브랜드번호", func(r types.PromotionRow) any { return strconv.FormatInt(r.TargetID, 10) }},
		{"할인타입", func(r types.PromotionRow) any { return r.DiscountType.Code() }},
		{"할인", func(r types.PromotionRow) any { return pct(r.DiscountValue) }},
		{"채널분담율", func(r types.PromotionRow) any { return r.ChannelShare }},
		{"브리치분담율", func(r types.PromotionRow) any { return r.PlatformShare }},
		{"입점사분담율", func(r types.PromotionRow) any { return r.VendorShare }},
	}
)

func columnsFor(kind types.CampaignKind) []column {
	if kind == types.KindBrand {
		return brandColumns
	}
	return productColumns
}

// XLSXWriter materializes file groups as .xlsx files in one directory
type XLSXWriter struct {
	dir string
}

// NewXLSXWriter returns a writer for outputDir
func NewXLSXWriter(outputDir string) *XLSXWriter {
	return &XLSXWriter{dir: outputDir}
}

// Dir returns the output directory
func (w *XLSXWriter) Dir() string {
	return w.dir
}

// Write produces one file holding exactly the group's rows, in order
func (w *XLSXWriter) Write(kind types.CampaignKind, g FileGroup) (types.GeneratedFile, error) {
	name := FileName(kind, g)
	path := filepath.Join(w.dir, name)

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return types.GeneratedFile{}, fmt.Errorf("create output dir: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	cols := columnsFor(kind)
	for i, c := range cols {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return types.GeneratedFile{}, fmt.Errorf("header cell: %w", err)
		}
		if err := f.SetCellStr(xlsxSheet, cell, c.header); err != nil {
			return types.GeneratedFile{}, fmt.Errorf("write header: %w", err)
		}
	}

	var targets []int64
	seen := make(map[int64]bool)
	for r, row := range g.Rows {
		for i, c := range cols {
			cell, err := excelize.CoordinatesToCellName(i+1, r+2)
			if err != nil {
				return types.GeneratedFile{}, fmt.Errorf("data cell: %w", err)
			}
			switch v := c.value(row).(type) {
			case string:
				err = f.SetCellStr(xlsxSheet, cell, v)
			default:
				err = f.SetCellValue(xlsxSheet, cell, v)
			}
			if err != nil {
				return types.GeneratedFile{}, fmt.Errorf("write %s: %w", cell, err)
			}
		}
		if !seen[row.TargetID] {
			seen[row.TargetID] = true
			targets = append(targets, row.TargetID)
		}
	}

	if err := styleHeader(f, len(cols)); err != nil {
		return types.GeneratedFile{}, err
	}
	if err := f.SaveAs(path); err != nil {
		return types.GeneratedFile{}, fmt.Errorf("save %s: %w", name, err)
	}

	zap.L().Info("file written",
		zap.String("task", "write_files"),
		zap.String("file", name),
		zap.Int("rows", len(g.Rows)))

	return types.GeneratedFile{
		Name:      name,
		Path:      path,
		Kind:      kind,
		Channel:   g.Channel,
		StartDate: g.StartDate,
		EndDate:   g.EndDate,
		Rows:      len(g.Rows),
		TargetIDs: targets,
	}, nil
}

func styleHeader(f *excelize.File, n int) error {
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(n, 1)
	if err != nil {
		return fmt.Errorf("header range: %w", err)
	}
	if err := f.SetCellStyle(xlsxSheet, "A1", last, style); err != nil {
		return fmt.Errorf("apply header style: %w", err)
	}
	lastCol := strings.TrimRight(last, "0123456789")
	if err := f.SetColWidth(xlsxSheet, "A", lastCol, 14); err != nil {
		return fmt.Errorf("column width: %w", err)
	}
	return nil
}

// ReadTargetIDs returns the distinct target ids in a generated file, in row order
func (w *XLSXWriter) ReadTargetIDs(path string) ([]int64, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%s has no sheets", filepath.Base(path))
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}

	var ids []int64
	seen := make(map[int64]bool)
	for i, row := range rows {
		if i == 0 || len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		id, err := parseID(row[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}
