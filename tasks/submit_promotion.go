package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"promo-pipelines/channels"
	"promo-pipelines/types"
)

const promotionCreatePath = "/distribution/promotion/create#/"

// ErrSubmissionRejected is returned when the back office rejects an upload
var ErrSubmissionRejected = errors.New("promotion submission rejected")

// alertFailureKeywords mark an alert as a rejection of the uploaded file
var alertFailureKeywords = []string{
	"엑셀 양식", "양식이 맞지", "양식이 올바르지", "엑셀 형식", "엑셀형식",
	"실패", "에러", "오류", "잘못된", "불러올 수 없습니다",
}

// Submission is one generated file to register as a promotion
type Submission struct {
	Path      string
	Channel   string
	StartDate time.Time
	EndDate   time.Time
	Kind      types.CampaignKind
}

// PromotionSubmitter registers promotion files through the back office UI
type PromotionSubmitter struct {
	browser       *Browser
	dir           *channels.Directory
	screenshotDir string
}

// NewPromotionSubmitter saves failure screenshots into screenshotDir
func NewPromotionSubmitter(browser *Browser, dir *channels.Directory, screenshotDir string) *PromotionSubmitter {
	return &PromotionSubmitter{browser: browser, dir: dir, screenshotDir: screenshotDir}
}

// Submit uploads one file. It reports false with the reason when the site
// rejects it or the UI flow breaks.
func (s *PromotionSubmitter) Submit(ctx context.Context, sub Submission) (bool, error) {
	name := filepath.Base(sub.Path)
	logger := zap.L().With(zap.String("task", "submit_promotion"), zap.String("file", name))

	abs, err := filepath.Abs(sub.Path)
	if err != nil {
		return false, fmt.Errorf("resolve path: %w", err)
	}
	if _, err := os.Stat(abs); err != nil {
		return false, fmt.Errorf("promotion file: %w", err)
	}

	uploader := sub.Channel
	if c, ok := s.dir.Channel(s.dir.Canonical(sub.Channel)); ok && c.UploaderLabel != "" {
		uploader = c.UploaderLabel
	}

	logger.Info("Task: submit_promotion", zap.String("channel", sub.Channel))
	s.browser.TakeDialogs()

	err = s.browser.Do(ctx, func(tab context.Context) error {
		if err := chromedp.Run(tab,
			chromedp.Navigate(s.browser.URL(promotionCreatePath)),
			chromedp.WaitVisible(`input[placeholder*='프로모션']`, chromedp.ByQuery),
			chromedp.SendKeys(`input[placeholder*='프로모션']`, PromotionName(name), chromedp.ByQuery),
			pickDateTime(0, sub.StartDate, 0, 0),
			pickDateTime(1, sub.EndDate, 23, 59),
			chromedp.Click(`.multiselect.br-select`, chromedp.ByQuery),
			clickText(`.multiselect__content li span`, uploader, true),
			clickText(`label`, sub.Kind.Label(), true),
			clickText(`button`, "엑셀 업로드", false),
			chromedp.WaitReady(`input[type='file']`, chromedp.ByQuery),
			chromedp.SetUploadFiles(`input[type='file']`, []string{abs}, chromedp.ByQuery),
			clickText(`.modal button, .v--modal button`, "업로드", true),
			chromedp.Sleep(2*time.Second),
		); err != nil {
			return err
		}
		if err := ClassifyAlerts(s.browser.TakeDialogs()); err != nil {
			return err
		}

		if err := chromedp.Run(tab,
			tryClickText(`.modal button, .v--modal button`, "닫기", true, 2*time.Second),
			clickText(`button`, "저장", true),
			clickText(`.br-btn-purple`, "확인", true),
			chromedp.Sleep(2*time.Second),
		); err != nil {
			return err
		}
		return ClassifyAlerts(s.browser.TakeDialogs())
	})
	if err != nil {
		s.saveScreenshot(ctx, name)
		logger.Error("submit_promotion failed", zap.Error(err))
		return false, err
	}

	logger.Info("Task: submit_promotion complete")
	return true, nil
}

func (s *PromotionSubmitter) saveScreenshot(ctx context.Context, name string) {
	if s.screenshotDir == "" {
		return
	}
	buf, err := s.browser.Screenshot(ctx)
	if err != nil || len(buf) == 0 {
		zap.L().Warn("capture screenshot failed", zap.String("file", name), zap.Error(err))
		return
	}
	path := filepath.Join(s.screenshotDir, "error_"+strings.TrimSuffix(name, FileExt)+".png")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		zap.L().Warn("write screenshot failed", zap.String("path", path), zap.Error(err))
		return
	}
	zap.L().Info("saved failure screenshot", zap.String("path", path))
}

// PromotionName is the display name registered for a file
func PromotionName(fileName string) string {
	base := strings.TrimSuffix(filepath.Base(fileName), FileExt)
	return strings.ReplaceAll(base, "_", " ")
}

// ClassifyAlerts returns ErrSubmissionRejected when any alert text names a
// failure. Other alerts are informational.
func ClassifyAlerts(texts []string) error {
	for _, t := range texts {
		for _, kw := range alertFailureKeywords {
			if strings.Contains(t, kw) {
				return fmt.Errorf("%w: %s", ErrSubmissionRejected, strings.TrimSpace(t))
			}
		}
	}
	return nil
}

var monthHeaderPattern = regexp.MustCompile(`(\d{1,2})\s*월\s*(\d{4})`)

// ParseMonthHeader reads the date picker header, e.g. "11월 2025"
func ParseMonthHeader(s string) (year int, month time.Month, err error) {
	m := monthHeaderPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, fmt.Errorf("unrecognized month header %q", s)
	}
	mm, _ := strconv.Atoi(m[1])
	yy, _ := strconv.Atoi(m[2])
	if mm < 1 || mm > 12 {
		return 0, 0, fmt.Errorf("month out of range in %q", s)
	}
	return yy, time.Month(mm), nil
}

// monthSteps is the number of next (positive) or previous (negative) clicks
// from the shown month to the target
func monthSteps(shownYear int, shown time.Month, target time.Time) int {
	return (target.Year()-shownYear)*12 + int(target.Month()-shown)
}

const clickNthJS = `(() => {
  const els = document.querySelectorAll(%s);
  if (els.length <= %d) return false;
  els[%d].click();
  return true;
})()`

const pickerItemJS = `(() => {
  const pickers = document.querySelectorAll(".vdatetime-popup__list-picker");
  if (pickers.length <= %d) return false;
  const item = Array.from(pickers[%d].querySelectorAll(".vdatetime-popup__list-picker__item"))
    .find(e => e.innerText.trim() === %s);
  if (!item) return false;
  item.click();
  return true;
})()`

func evalTrue(js, what string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		var ok bool
		if err := chromedp.Evaluate(js, &ok).Do(ctx); err != nil {
			return fmt.Errorf("%s: %w", what, err)
		}
		if !ok {
			return fmt.Errorf("%s: element not found", what)
		}
		return nil
	})
}

// pickDateTime fills the index-th date-time input through its popup
func pickDateTime(index int, date time.Time, hour, minute int) chromedp.Action {
	const (
		popup     = `.vdatetime-popup`
		header    = `.vdatetime-popup__month-selector__current`
		next      = `.vdatetime-popup__month-selector__next`
		previous  = `.vdatetime-popup__month-selector__previous`
		dayItem   = `.vdatetime-popup__date-picker__item:not(.vdatetime-popup__date-picker__item--header):not(.vdatetime-popup__date-picker__item--disabled)`
		okButton  = `.vdatetime-popup__actions__button--confirm, .vdatetime-popup__actions__button`
		yearLabel = `.vdatetime-popup__year`
	)
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := chromedp.Run(ctx,
			evalTrue(fmt.Sprintf(clickNthJS, jsString(`.vdatetime input.form-control`), index, index), "open date picker"),
			chromedp.WaitVisible(popup, chromedp.ByQuery),
			chromedp.Click(yearLabel, chromedp.ByQuery),
			clickText(`.vdatetime-popup__list-picker__item`, strconv.Itoa(date.Year()), true),
		); err != nil {
			return err
		}

		for i := 0; i < 36; i++ {
			var text string
			if err := chromedp.Text(header, &text, chromedp.ByQuery).Do(ctx); err != nil {
				return fmt.Errorf("read month header: %w", err)
			}
			y, m, err := ParseMonthHeader(text)
			if err != nil {
				return err
			}
			steps := monthSteps(y, m, date)
			if steps == 0 {
				break
			}
			button := next
			if steps < 0 {
				button = previous
			}
			if err := chromedp.Run(ctx,
				chromedp.Click(button, chromedp.ByQuery),
				chromedp.Sleep(300*time.Millisecond),
			); err != nil {
				return err
			}
		}

		return chromedp.Run(ctx,
			clickText(dayItem, strconv.Itoa(date.Day()), true),
			clickText(okButton, "Ok", true),
			evalTrue(fmt.Sprintf(pickerItemJS, 0, 0, jsString(fmt.Sprintf("%02d", hour))), "pick hour"),
			evalTrue(fmt.Sprintf(pickerItemJS, 1, 1, jsString(fmt.Sprintf("%02d", minute))), "pick minute"),
			clickText(okButton, "Ok", true),
			chromedp.WaitNotPresent(popup, chromedp.ByQuery),
		)
	})
}
