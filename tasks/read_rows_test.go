package tasks

import (
	"testing"
	"time"

	"promo-pipelines/types"
)

func TestParseRows_Product(t *testing.T) {
	layout := ProductLayout("상품 프로모션")
	values := [][]string{
		{"2025-11-01", "2025-12-05", "986269048", "P", "0.17", "*전 채널", "", ""},
		{},
		{"-", "", "", "", "", "", "", ""},
		{"2025. 11. 1", "2025. 11. 30", "12,345,678", "W", "1,500원", "SSG", "memo", "2025. 10. 30"},
		{"2025-11-01", "", "111", "P", "10", "SSG"},
		{"2025-11-01", "2025-11-02", "", "P", "10", "SSG"},
		{"2025-11-01", "2025-11-02", "222", "X", "10", "SSG"},
	}

	rows, stats := ParseRows(layout, values)
	if stats.Read != 5 {
		t.Errorf("Read = %d, want 5", stats.Read)
	}
	if stats.Invalid != 3 {
		t.Errorf("Invalid = %d, want 3", stats.Invalid)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}

	first := rows[0]
	if first.SheetRow != 4 || first.TargetID != 986269048 || first.DiscountValue != 0.17 {
		t.Errorf("first row = %+v", first)
	}
	if first.ChannelSelector != "*전 채널" || first.IsProcessed() {
		t.Errorf("first row selector/processed = %q %v", first.ChannelSelector, first.IsProcessed())
	}

	second := rows[1]
	if second.SheetRow != 7 || second.TargetID != 12345678 {
		t.Errorf("second row = %+v", second)
	}
	if second.DiscountType != types.DiscountWon || second.DiscountValue != 1500 {
		t.Errorf("second discount = %v %v", second.DiscountType, second.DiscountValue)
	}
	if !second.IsProcessed() || second.Note != "memo" {
		t.Errorf("second processed/note = %q %q", second.ProcessedDate, second.Note)
	}
	if !second.EndDate.Equal(date(2025, 11, 30)) {
		t.Errorf("second end = %v", second.EndDate)
	}
}

func TestParseRows_Brand(t *testing.T) {
	layout := BrandLayout("브랜드 프로모션")
	values := [][]string{
		{"2025-11-01", "2025-11-30", "5001", "P", "10", "", "메모", "SSG, 쿠팡", ""},
	}

	rows, _ := ParseRows(layout, values)
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	r := rows[0]
	if r.Kind != types.KindBrand || r.SheetRow != 3 || r.ChannelSelector != "SSG, 쿠팡" || r.Note != "메모" {
		t.Errorf("row = %+v", r)
	}
}

func TestLayoutRanges(t *testing.T) {
	if got := ProductLayout("상품").ReadRange(); got != "'상품'!K4:R" {
		t.Errorf("product range = %q", got)
	}
	if got := BrandLayout("it's").ReadRange(); got != "'it''s'!A3:I" {
		t.Errorf("brand range = %q", got)
	}
	if got := LayoutFor(types.KindBrand, "b").IDColumn; got != "C" {
		t.Errorf("brand id column = %q", got)
	}
}

func TestParseSheetDate(t *testing.T) {
	want := date(2025, 11, 1)
	inputs := []string{
		"2025-11-01",
		"2025-11-1",
		"2025. 11. 1",
		"2025. 11. 01.",
		"2025.11.01",
		"2025/11/01",
		"2025-11-01 13:45:00",
		"20251101",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			got, err := ParseSheetDate(in)
			if err != nil {
				t.Fatalf("ParseSheetDate(%q) error = %v", in, err)
			}
			if !got.Equal(want) {
				t.Errorf("ParseSheetDate(%q) = %v, want %v", in, got, want)
			}
		})
	}

	if _, err := ParseSheetDate("next week"); err == nil {
		t.Error("ParseSheetDate() expected error for free text")
	}
}

func TestParseDiscountValue(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"17%", 17},
		{"0.17", 0.17},
		{"1,500원", 1500},
		{"", 0},
		{"-", 0},
	}
	for _, tt := range tests {
		got, err := ParseDiscountValue(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseDiscountValue(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseDiscountValue("ten"); err == nil {
		t.Error("ParseDiscountValue() expected error")
	}
}

func TestIsBlank(t *testing.T) {
	for _, v := range []string{"", "  ", "-", "None", "NULL", "nan", "NaT"} {
		if !IsBlank(v) {
			t.Errorf("IsBlank(%q) = false", v)
		}
	}
	for _, v := range []string{"0", "SSG", "2025. 11. 1"} {
		if IsBlank(v) {
			t.Errorf("IsBlank(%q) = true", v)
		}
	}
}

func TestStampValue(t *testing.T) {
	got := StampValue(time.Date(2025, 11, 3, 15, 0, 0, 0, time.UTC))
	if got != "2025. 11. 3" {
		t.Errorf("StampValue() = %q", got)
	}
}

func TestStampTargets(t *testing.T) {
	layout := ProductLayout("s")
	idValues := [][]string{{"100"}, {"200"}, {}, {"100"}, {"300"}}
	doneValues := [][]string{{""}, {"2025. 10. 1"}, {}, {}}

	got := StampTargets(layout, idValues, doneValues, []int64{100, 200})
	want := []int{4, 7}
	if len(got) != len(want) {
		t.Fatalf("StampTargets() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("StampTargets()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}
