package tasks

import (
	"errors"
	"testing"

	"promo-pipelines/types"
)

func promoRow(start, end int, channel string, id int64) types.PromotionRow {
	return types.PromotionRow{
		StartDate: date(2025, 11, start),
		EndDate:   date(2025, 12, end),
		Channel:   channel,
		TargetID:  id,
	}
}

func TestPartition(t *testing.T) {
	rows := []types.PromotionRow{
		promoRow(1, 5, "쿠팡", 1),
		promoRow(1, 5, "SSG", 1),
		promoRow(1, 5, "쿠팡", 2),
		promoRow(3, 5, "SSG", 3),
		promoRow(1, 4, "SSG", 4),
	}

	groups := Partition(rows)
	if len(groups) != 4 {
		t.Fatalf("Partition() = %d groups, want 4", len(groups))
	}

	want := []struct {
		start, end int
		channel    string
		ids        []int64
	}{
		{1, 4, "SSG", []int64{4}},
		{1, 5, "SSG", []int64{1}},
		{1, 5, "쿠팡", []int64{1, 2}},
		{3, 5, "SSG", []int64{3}},
	}
	total := 0
	for i, w := range want {
		g := groups[i]
		if g.StartDate.Day() != w.start || g.EndDate.Day() != w.end || g.Channel != w.channel {
			t.Errorf("group %d = %s %s %s", i, g.StartDate.Format("0102"), g.EndDate.Format("0102"), g.Channel)
		}
		if len(g.Rows) != len(w.ids) {
			t.Fatalf("group %d rows = %d, want %d", i, len(g.Rows), len(w.ids))
		}
		for j, id := range w.ids {
			if g.Rows[j].TargetID != id {
				t.Errorf("group %d row %d id = %d, want %d", i, j, g.Rows[j].TargetID, id)
			}
		}
		total += len(g.Rows)
	}
	if total != len(rows) {
		t.Errorf("partition lost rows: %d of %d", total, len(rows))
	}
}

func TestFileName(t *testing.T) {
	g := FileGroup{
		StartDate: date(2025, 11, 1),
		EndDate:   date(2025, 12, 5),
		Channel:   "SSG",
		Rows:      make([]types.PromotionRow, 2),
	}

	got := FileName(types.KindProduct, g)
	if got != "251101-251205_상품_SSG_2.xlsx" {
		t.Errorf("FileName() = %q", got)
	}

	key, err := ParseFileName("outputs/" + got)
	if err != nil {
		t.Fatalf("ParseFileName() error = %v", err)
	}
	if key.Kind != types.KindProduct || key.Channel != "SSG" || key.Rows != 2 {
		t.Errorf("ParseFileName() = %+v", key)
	}
	if !key.StartDate.Equal(g.StartDate) || !key.EndDate.Equal(g.EndDate) {
		t.Errorf("ParseFileName() dates = %v %v", key.StartDate, key.EndDate)
	}
}

func TestFileName_ChannelWithSpace(t *testing.T) {
	g := FileGroup{StartDate: date(2025, 11, 1), EndDate: date(2025, 12, 5), Channel: "GS Shop", Rows: make([]types.PromotionRow, 1)}

	name := FileName(types.KindBrand, g)
	key, err := ParseFileName(name)
	if err != nil {
		t.Fatalf("ParseFileName(%q) error = %v", name, err)
	}
	if key.Channel != "GS Shop" || key.Kind != types.KindBrand {
		t.Errorf("ParseFileName() = %+v", key)
	}
}

func TestParseFileName_Invalid(t *testing.T) {
	tests := []string{
		"report.xlsx",
		"251101_상품_SSG_2.xlsx",
		"251301-251205_상품_SSG_2.xlsx",
		"251101-251205_기타_SSG_2.xlsx",
		"251101-251205_상품__2.xlsx",
		"251101-251205_상품_SSG_x.xlsx",
	}
	for _, name := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseFileName(name); !errors.Is(err, ErrInvalidFileName) {
				t.Errorf("ParseFileName(%q) error = %v, want ErrInvalidFileName", name, err)
			}
		})
	}
}
