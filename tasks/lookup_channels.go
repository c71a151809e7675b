package tasks

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// PrimaryLookup resolves one product's channel listings
type PrimaryLookup interface {
	ChannelProductIDs(ctx context.Context, productID int64) (map[string]string, error)
}

// SecondaryLookup resolves a batch of products through the back office UI
type SecondaryLookup interface {
	Scrape(ctx context.Context, productIDs []int64) (map[int64]map[string]string, error)
}

// ChannelLookup combines the product service with the UI fallback
type ChannelLookup struct {
	primary   PrimaryLookup
	secondary SecondaryLookup
	limiter   *rate.Limiter
}

// NewChannelLookup spaces primary calls by delay. secondary may be nil.
func NewChannelLookup(primary PrimaryLookup, secondary SecondaryLookup, delay time.Duration) *ChannelLookup {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &ChannelLookup{
		primary:   primary,
		secondary: secondary,
		limiter:   rate.NewLimiter(limit, 1),
	}
}

// Query returns, per product id, canonical channel -> listing id. Every id is
// present in the result; an empty map means no channel information. Failures
// never abort the batch.
func (l *ChannelLookup) Query(ctx context.Context, productIDs []int64) map[int64]map[string]string {
	logger := zap.L().With(zap.String("task", "lookup_channels"))
	ids := uniqueIDs(productIDs)
	logger.Info("lookup_channels started", zap.Int("products", len(ids)))

	results := make(map[int64]map[string]string, len(ids))
	var missing []int64
	for _, id := range ids {
		if err := l.limiter.Wait(ctx); err != nil {
			logger.Warn("lookup throttle interrupted", zap.Int64("product_id", id), zap.Error(err))
			results[id] = map[string]string{}
			missing = append(missing, id)
			continue
		}
		channels, err := l.primary.ChannelProductIDs(ctx, id)
		if err != nil {
			logger.Warn("primary lookup failed", zap.Int64("product_id", id), zap.Error(err))
			channels = nil
		}
		if channels == nil {
			channels = map[string]string{}
		}
		results[id] = channels
		if len(channels) == 0 {
			missing = append(missing, id)
		}
	}

	if len(missing) > 0 && l.secondary != nil {
		logger.Info("secondary lookup started", zap.Int("products", len(missing)))
		scraped, err := l.secondary.Scrape(ctx, missing)
		if err != nil {
			logger.Warn("secondary lookup failed, keeping primary results", zap.Error(err))
		}
		recovered := 0
		for _, id := range missing {
			if found := scraped[id]; len(found) > 0 {
				results[id] = found
				recovered++
			}
		}
		logger.Info("secondary lookup complete", zap.Int("recovered", recovered))
	}

	empty := 0
	for _, m := range results {
		if len(m) == 0 {
			empty++
		}
	}
	logger.Info("lookup_channels complete",
		zap.Int("products", len(ids)),
		zap.Int("without_channels", empty))
	return results
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
