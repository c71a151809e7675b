package tasks

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"promo-pipelines/channels"
)

const (
	productSearchPath = "/products/new#/"

	// product search result layout
	scrapeMinCells      = 60
	scrapeIDCell        = 10
	scrapeChannelCell   = 58
	scrapeLinkedMarker  = "연동 성공"
	scrapeMinListingLen = 8
)

const tableCellsJS = `Array.from(document.querySelectorAll("tbody tr")).map(tr =>
  Array.from(tr.querySelectorAll("td")).map(td => (td.innerText || "").trim()))`

// ChannelScraper reads channel listing ids from the back office product search
type ChannelScraper struct {
	browser   *Browser
	dir       *channels.Directory
	batchSize int
}

// NewChannelScraper searches batchSize products per page load
func NewChannelScraper(browser *Browser, dir *channels.Directory, batchSize int) *ChannelScraper {
	if batchSize <= 0 {
		batchSize = 20
	}
	return &ChannelScraper{browser: browser, dir: dir, batchSize: batchSize}
}

// Scrape returns canonical channel -> listing id for the ids it could find.
// A failed batch is logged and skipped; the error is returned only when every
// batch failed.
func (s *ChannelScraper) Scrape(ctx context.Context, productIDs []int64) (map[int64]map[string]string, error) {
	logger := zap.L().With(zap.String("task", "scrape_channels"))
	out := make(map[int64]map[string]string)

	var lastErr error
	failed := 0
	batches := 0
	for start := 0; start < len(productIDs); start += s.batchSize {
		batch := productIDs[start:min(start+s.batchSize, len(productIDs))]
		batches++

		rows, err := s.searchBatch(ctx, batch)
		if err != nil {
			logger.Warn("scrape batch failed", zap.Int("batch", batches), zap.Int("products", len(batch)), zap.Error(err))
			lastErr = err
			failed++
			if ctx.Err() != nil {
				break
			}
			continue
		}
		for id, found := range ParseScrapedRows(s.dir, rows, batch) {
			out[id] = found
		}
		logger.Info("scrape batch complete", zap.Int("batch", batches), zap.Int("rows", len(rows)))
	}

	if batches > 0 && failed == batches {
		return out, fmt.Errorf("scrape channels: %w", lastErr)
	}
	return out, nil
}

func (s *ChannelScraper) searchBatch(ctx context.Context, batch []int64) ([][]string, error) {
	terms := make([]string, len(batch))
	for i, id := range batch {
		terms[i] = strconv.FormatInt(id, 10)
	}

	var rows [][]string
	err := s.browser.Do(ctx, func(tab context.Context) error {
		return chromedp.Run(tab,
			chromedp.Navigate(s.browser.URL(productSearchPath)),
			chromedp.WaitVisible(`.form-text-group .multiselect.br-select`, chromedp.ByQuery),
			chromedp.Click(`.form-text-group .multiselect.br-select`, chromedp.ByQuery),
			clickText(`.form-text-group span.multiselect__option`, "상품번호", true),
			chromedp.SetValue(`.br-text-wrapper input[type='text']`, "", chromedp.ByQuery),
			chromedp.SendKeys(`.br-text-wrapper input[type='text']`, strings.Join(terms, " "), chromedp.ByQuery),
			clickText(`button.br-btn-purple`, "검색", false),
			chromedp.WaitReady(`tbody tr`, chromedp.ByQuery),
			chromedp.Sleep(time.Second),
			chromedp.Evaluate(tableCellsJS, &rows),
		)
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ParseScrapedRows extracts listing ids from search result cell texts. Rows
// for products outside want are ignored. Channel columns follow the directory
// order starting at the first channel cell.
func ParseScrapedRows(dir *channels.Directory, rows [][]string, want []int64) map[int64]map[string]string {
	wanted := make(map[int64]bool, len(want))
	for _, id := range want {
		wanted[id] = true
	}
	order := dir.Channels()

	out := make(map[int64]map[string]string)
	for _, cells := range rows {
		if len(cells) < scrapeMinCells {
			continue
		}
		idText := strings.TrimSpace(cells[scrapeIDCell])
		if len(idText) < scrapeMinListingLen || !allDigits(idText) {
			continue
		}
		id, err := strconv.ParseInt(idText, 10, 64)
		if err != nil || !wanted[id] {
			continue
		}

		found := make(map[string]string)
		for i, c := range order {
			idx := scrapeChannelCell + i
			if idx >= len(cells) {
				break
			}
			listing, ok := linkedListingID(cells[idx])
			if !ok {
				continue
			}
			found[dir.Canonical(c.ScrapeLabel)] = listing
		}
		if len(found) > 0 {
			out[id] = found
		}
	}
	return out
}

// linkedListingID returns the listing id of a "linked" channel cell
func linkedListingID(cell string) (string, bool) {
	if !strings.Contains(cell, scrapeLinkedMarker) {
		return "", false
	}
	for _, line := range strings.Split(cell, "\n") {
		clean := strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(line))
		if len(clean) >= scrapeMinListingLen && allDigits(clean) {
			return clean, true
		}
	}
	return "", false
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
