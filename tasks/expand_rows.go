package tasks

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"promo-pipelines/channels"
	"promo-pipelines/types"
)

// Settlement shares written to every row (channel / platform / vendor)
const (
	DefaultChannelShare  = 0
	DefaultPlatformShare = 0
	DefaultVendorShare   = 100
)

// NormalizeDiscount expresses percent discounts on a 0-100 scale. Fractions
// strictly between 0 and 1 are multiplied by 100 once; everything else, and
// every non-percent type, passes through.
func NormalizeDiscount(kind types.DiscountType, v float64) float64 {
	switch kind {
	case types.DiscountPercent:
		if v > 0 && v < 1 {
			return math.Round(v*100*1e9) / 1e9
		}
		return v
	case types.DiscountWon, types.DiscountAbsolute:
		return v
	}
	return v
}

// ExpandRow emits one PromotionRow per channel the row's selector resolves to.
// channelMap is the product's lookup result and is ignored for brand rows.
func ExpandRow(dir *channels.Directory, row types.SourceRow, channelMap map[string]string) []types.PromotionRow {
	var available map[string]string
	if row.Kind == types.KindProduct {
		available = channelMap
		if available == nil {
			available = map[string]string{}
		}
	}

	resolved := dir.ExpandSelector(row.ChannelSelector, available, row.Kind)
	if len(resolved) == 0 {
		return nil
	}

	names := make([]string, 0, len(resolved))
	for name := range resolved {
		names = append(names, name)
	}
	sort.Strings(names)

	value := NormalizeDiscount(row.DiscountType, row.DiscountValue)
	out := make([]types.PromotionRow, 0, len(names))
	for _, name := range names {
		out = append(out, types.PromotionRow{
			StartDate:             row.StartDate,
			EndDate:               row.EndDate,
			Channel:               name,
			TargetID:              row.TargetID,
			DiscountType:          row.DiscountType,
			DiscountValue:         value,
			LinkedDiscountType:    row.DiscountType,
			LinkedDiscountValue:   0,
			ExternalDiscountType:  row.DiscountType,
			ExternalDiscountValue: 0,
			ChannelShare:          DefaultChannelShare,
			PlatformShare:         DefaultPlatformShare,
			VendorShare:           DefaultVendorShare,
		})
	}
	return out
}

// ExpansionResult is the output of ExpandRows
type ExpansionResult struct {
	Rows []types.PromotionRow
	// Contributing holds target ids that produced at least one row, in first-seen order
	Contributing []int64
	// Empty counts rows whose selector matched no channel
	Empty int
}

// ExpandRows expands every row using one shared lookup result
func ExpandRows(dir *channels.Directory, rows []types.SourceRow, lookup map[int64]map[string]string) ExpansionResult {
	logger := zap.L().With(zap.String("task", "expand_rows"))

	var res ExpansionResult
	seen := make(map[int64]bool)
	for _, row := range rows {
		expanded := ExpandRow(dir, row, lookup[row.TargetID])
		if len(expanded) == 0 {
			res.Empty++
			logger.Debug("row matched no channel",
				zap.Int("sheet_row", row.SheetRow),
				zap.Int64("target_id", row.TargetID),
				zap.String("selector", row.ChannelSelector))
			continue
		}
		res.Rows = append(res.Rows, expanded...)
		if !seen[row.TargetID] {
			seen[row.TargetID] = true
			res.Contributing = append(res.Contributing, row.TargetID)
		}
	}

	logger.Info("expand_rows complete",
		zap.Int("source_rows", len(rows)),
		zap.Int("expanded_rows", len(res.Rows)),
		zap.Int("empty_rows", res.Empty))
	return res
}
