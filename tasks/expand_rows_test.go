package tasks

import (
	"testing"
	"time"

	"promo-pipelines/channels"
	"promo-pipelines/types"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestExpandRow_AllChannelsProduct(t *testing.T) {
	dir := channels.Default()
	row := types.SourceRow{
		Kind:            types.KindProduct,
		StartDate:       date(2025, 11, 1),
		EndDate:         date(2025, 12, 5),
		TargetID:        986269048,
		DiscountType:    types.DiscountPercent,
		DiscountValue:   0.17,
		ChannelSelector: "*전 채널",
	}
	channelMap := map[string]string{"SSG": "1000614610607", "쿠팡": "200012345678"}

	got := ExpandRow(dir, row, channelMap)
	if len(got) != 2 {
		t.Fatalf("ExpandRow() = %d rows, want 2", len(got))
	}
	wantChannels := []string{"SSG", "쿠팡"}
	for i, r := range got {
		if r.Channel != wantChannels[i] {
			t.Errorf("row %d channel = %q, want %q", i, r.Channel, wantChannels[i])
		}
		if r.DiscountValue != 17 {
			t.Errorf("row %d discount = %v, want 17", i, r.DiscountValue)
		}
		if r.TargetID != 986269048 {
			t.Errorf("row %d target = %d", i, r.TargetID)
		}
		if r.LinkedDiscountType != types.DiscountPercent || r.LinkedDiscountValue != 0 {
			t.Errorf("row %d linked discount = %v %v", i, r.LinkedDiscountType, r.LinkedDiscountValue)
		}
		if r.ChannelShare != 0 || r.PlatformShare != 0 || r.VendorShare != 100 {
			t.Errorf("row %d shares = %d/%d/%d", i, r.ChannelShare, r.PlatformShare, r.VendorShare)
		}
		if !r.StartDate.Equal(row.StartDate) || !r.EndDate.Equal(row.EndDate) {
			t.Errorf("row %d dates changed", i)
		}
	}
}

func TestExpandRow_ProductWithoutLookup(t *testing.T) {
	dir := channels.Default()
	row := types.SourceRow{Kind: types.KindProduct, TargetID: 1, ChannelSelector: "*전 채널"}

	if got := ExpandRow(dir, row, nil); len(got) != 0 {
		t.Errorf("ExpandRow() with no channel data = %d rows, want 0", len(got))
	}
}

func TestExpandRow_BrandIgnoresLookup(t *testing.T) {
	dir := channels.Default()
	row := types.SourceRow{
		Kind:            types.KindBrand,
		TargetID:        5001,
		DiscountType:    types.DiscountPercent,
		DiscountValue:   10,
		ChannelSelector: "*전 채널",
	}

	got := ExpandRow(dir, row, map[string]string{"SSG": "1"})
	if len(got) != len(dir.EnabledChannels(types.KindBrand)) {
		t.Fatalf("ExpandRow() = %d rows, want one per brand channel", len(got))
	}
	for _, r := range got {
		if r.DiscountValue != 10 {
			t.Errorf("%s discount = %v, want 10", r.Channel, r.DiscountValue)
		}
	}
}

func TestNormalizeDiscount(t *testing.T) {
	tests := []struct {
		name string
		kind types.DiscountType
		in   float64
		want float64
	}{
		{"fraction", types.DiscountPercent, 0.17, 17},
		{"small fraction", types.DiscountPercent, 0.05, 5},
		{"already percent", types.DiscountPercent, 17, 17},
		{"one stays one", types.DiscountPercent, 1, 1},
		{"zero", types.DiscountPercent, 0, 0},
		{"won untouched", types.DiscountWon, 0.5, 0.5},
		{"absolute untouched", types.DiscountAbsolute, 3000, 3000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeDiscount(tt.kind, tt.in)
			if got != tt.want {
				t.Errorf("NormalizeDiscount(%v) = %v, want %v", tt.in, got, tt.want)
			}
			if again := NormalizeDiscount(tt.kind, got); again != got {
				t.Errorf("NormalizeDiscount not idempotent: %v -> %v", got, again)
			}
		})
	}
}

func TestExpandRows_Contributing(t *testing.T) {
	dir := channels.Default()
	rows := []types.SourceRow{
		{Kind: types.KindProduct, TargetID: 1, DiscountType: types.DiscountPercent, DiscountValue: 10, ChannelSelector: "SSG"},
		{Kind: types.KindProduct, TargetID: 2, DiscountType: types.DiscountPercent, DiscountValue: 10, ChannelSelector: "SSG"},
		{Kind: types.KindProduct, TargetID: 1, DiscountType: types.DiscountPercent, DiscountValue: 20, ChannelSelector: "쿠팡"},
	}
	lookup := map[int64]map[string]string{
		1: {"SSG": "a", "쿠팡": "b"},
		2: {},
	}

	res := ExpandRows(dir, rows, lookup)
	if len(res.Rows) != 2 {
		t.Errorf("rows = %d, want 2", len(res.Rows))
	}
	if len(res.Contributing) != 1 || res.Contributing[0] != 1 {
		t.Errorf("contributing = %v, want [1]", res.Contributing)
	}
	if res.Empty != 1 {
		t.Errorf("empty = %d, want 1", res.Empty)
	}
}
