package tasks

import (
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"promo-pipelines/types"
)

func TestXLSXWriter_Product(t *testing.T) {
	dir := t.TempDir()
	w := NewXLSXWriter(dir)

	rows := []types.PromotionRow{
		{StartDate: date(2025, 11, 1), EndDate: date(2025, 12, 5), Channel: "SSG", TargetID: 986269048,
			DiscountType: types.DiscountPercent, DiscountValue: 17, VendorShare: 100,
			LinkedDiscountType: types.DiscountPercent, ExternalDiscountType: types.DiscountPercent},
		{StartDate: date(2025, 11, 1), EndDate: date(2025, 12, 5), Channel: "SSG", TargetID: 12345678,
			DiscountType: types.DiscountWon, DiscountValue: 1500, VendorShare: 100,
			LinkedDiscountType: types.DiscountWon, ExternalDiscountType: types.DiscountWon},
		{StartDate: date(2025, 11, 1), EndDate: date(2025, 12, 5), Channel: "SSG", TargetID: 986269048,
			DiscountType: types.DiscountPercent, DiscountValue: 5, VendorShare: 100,
			LinkedDiscountType: types.DiscountPercent, ExternalDiscountType: types.DiscountPercent},
	}
	g := Partition(rows)[0]

	file, err := w.Write(types.KindProduct, g)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if file.Name != "251101-251205_상품_SSG_3.xlsx" {
		t.Errorf("Name = %q", file.Name)
	}
	if file.Path != filepath.Join(dir, file.Name) {
		t.Errorf("Path = %q", file.Path)
	}
	if file.Rows != 3 || len(file.TargetIDs) != 2 {
		t.Errorf("Rows = %d, TargetIDs = %v", file.Rows, file.TargetIDs)
	}

	f, err := excelize.OpenFile(file.Path)
	if err != nil {
		t.Fatalf("open written file: %v", err)
	}
	defer f.Close()

	got, err := f.GetRows(xlsxSheet)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("sheet rows = %d, want header + 3", len(got))
	}
	if got[0][0] != "상품번호" || len(got[0]) != len(productColumns) {
		t.Errorf("header = %v", got[0])
	}
	wantFirst := []string{"986269048", "P", "17", "P", "0", "P", "0", "0", "0", "100"}
	for i, v := range wantFirst {
		if got[1][i] != v {
			t.Errorf("row 2 col %d = %q, want %q", i+1, got[1][i], v)
		}
	}
	// linked and external discounts follow the row's own type
	if got[2][1] != "W" || got[2][2] != "1500" || got[2][3] != "W" || got[2][5] != "W" {
		t.Errorf("won row = %v", got[2])
	}

	ids, err := w.ReadTargetIDs(file.Path)
	if err != nil {
		t.Fatalf("ReadTargetIDs() error = %v", err)
	}
	if len(ids) != 2 || ids[0] != 986269048 || ids[1] != 12345678 {
		t.Errorf("ReadTargetIDs() = %v", ids)
	}
}

func TestXLSXWriter_Brand(t *testing.T) {
	w := NewXLSXWriter(filepath.Join(t.TempDir(), "nested"))

	g := FileGroup{
		StartDate: date(2025, 11, 1),
		EndDate:   date(2025, 11, 30),
		Channel:   "쿠팡",
		Rows: []types.PromotionRow{{
			StartDate: date(2025, 11, 1), EndDate: date(2025, 11, 30), Channel: "쿠팡", TargetID: 5001,
			DiscountType: types.DiscountPercent, DiscountValue: 12.6, VendorShare: 100,
		}},
	}

	file, err := w.Write(types.KindBrand, g)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	f, err := excelize.OpenFile(file.Path)
	if err != nil {
		t.Fatalf("open written file: %v", err)
	}
	defer f.Close()

	got, _ := f.GetRows(xlsxSheet)
	if len(got) != 2 || len(got[0]) != len(brandColumns) {
		t.Fatalf("rows = %v", got)
	}
	if got[1][0] != "5001" || got[1][2] != "13" {
		t.Errorf("brand row = %v", got[1])
	}
}

func TestReadTargetIDs_Missing(t *testing.T) {
	w := NewXLSXWriter(t.TempDir())
	if _, err := w.ReadTargetIDs(filepath.Join(w.Dir(), "nope.xlsx")); err == nil {
		t.Error("ReadTargetIDs() expected error for missing file")
	}
}
