package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// BrowserConfig configures the back office browser session
type BrowserConfig struct {
	BaseURL  string
	Email    string
	Password string
	Headless bool
	Timeout  time.Duration // per operation
}

// Browser is one logged-in back office tab shared by the scraper and the
// submitter. Operations are serialized because the site allows one session.
type Browser struct {
	cfg BrowserConfig

	mu       sync.Mutex
	tab      context.Context
	cancel   context.CancelFunc
	loggedIn bool

	dialogMu sync.Mutex
	dialogs  []string
}

// NewBrowser returns a session that starts Chrome on first use
func NewBrowser(cfg BrowserConfig) *Browser {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Browser{cfg: cfg}
}

// URL joins a path onto the back office base URL
func (b *Browser) URL(path string) string {
	return b.cfg.BaseURL + path
}

// Do runs fn on the shared tab with a per-operation timeout. It starts Chrome
// and logs in when needed. Cancelling ctx aborts fn.
func (b *Browser) Do(ctx context.Context, fn func(tab context.Context) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.startLocked(); err != nil {
		return err
	}

	opCtx, cancel := context.WithTimeout(b.tab, b.cfg.Timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if !b.loggedIn {
		if err := b.login(opCtx); err != nil {
			return fmt.Errorf("login: %w", err)
		}
		b.loggedIn = true
	}
	return fn(opCtx)
}

func (b *Browser) startLocked() error {
	if b.tab != nil {
		return nil
	}

	headless := chromedp.Flag("headless", "new")
	if !b.cfg.Headless {
		headless = chromedp.Flag("headless", false)
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		headless,
		chromedp.Flag("disable-gpu", true),
		chromedp.NoSandbox,
		chromedp.WindowSize(1600, 1000),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	tab, tabCancel := chromedp.NewContext(allocCtx)

	chromedp.ListenTarget(tab, func(ev interface{}) {
		if e, ok := ev.(*page.EventJavascriptDialogOpening); ok {
			b.dialogMu.Lock()
			b.dialogs = append(b.dialogs, e.Message)
			b.dialogMu.Unlock()
			go func() {
				if err := chromedp.Run(tab, page.HandleJavaScriptDialog(true)); err != nil {
					zap.L().Warn("dismiss dialog failed", zap.Error(err))
				}
			}()
		}
	})

	if err := chromedp.Run(tab); err != nil {
		tabCancel()
		allocCancel()
		return fmt.Errorf("start browser: %w", err)
	}

	b.tab = tab
	b.cancel = func() {
		tabCancel()
		allocCancel()
	}
	zap.L().Info("browser started", zap.Bool("headless", b.cfg.Headless))
	return nil
}

func (b *Browser) login(ctx context.Context) error {
	if b.cfg.Email == "" || b.cfg.Password == "" {
		return fmt.Errorf("back office credentials are not configured")
	}
	zap.L().Info("logging in to back office", zap.String("url", b.cfg.BaseURL))

	return chromedp.Run(ctx,
		chromedp.Navigate(b.cfg.BaseURL),
		clickText("button", "로그인", false),
		chromedp.WaitVisible(`input[type='email']`, chromedp.ByQuery),
		chromedp.SendKeys(`input[type='email']`, b.cfg.Email, chromedp.ByQuery),
		chromedp.SendKeys(`input[type='password']`, b.cfg.Password, chromedp.ByQuery),
		chromedp.Click(`.modal .login-btn, .v--modal .login-btn`, chromedp.ByQuery),
		chromedp.WaitNotPresent(`.modal .login-btn, .v--modal .login-btn`, chromedp.ByQuery),
	)
}

// TakeDialogs returns and clears the alert texts seen since the last call
func (b *Browser) TakeDialogs() []string {
	b.dialogMu.Lock()
	defer b.dialogMu.Unlock()
	out := b.dialogs
	b.dialogs = nil
	return out
}

// Screenshot captures the current tab
func (b *Browser) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := b.Do(ctx, func(tab context.Context) error {
		return chromedp.Run(tab, chromedp.FullScreenshot(&buf, 80))
	})
	return buf, err
}

// Close shuts Chrome down
func (b *Browser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		b.cancel()
	}
	b.tab = nil
	b.cancel = nil
	b.loggedIn = false
}

const clickTextJS = `(() => {
  const sel = %s, text = %s, exact = %t;
  const el = Array.from(document.querySelectorAll(sel)).find(e => {
    const t = (e.innerText || e.textContent || "").trim();
    return exact ? t === text : t.includes(text);
  });
  if (!el) return false;
  el.scrollIntoView({block: "center"});
  el.click();
  return true;
})()`

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// clickText clicks the first element matching selector whose text equals (or
// contains) text, polling until it appears or ctx ends.
func clickText(selector, text string, exact bool) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		js := fmt.Sprintf(clickTextJS, jsString(selector), jsString(text), exact)
		for {
			var ok bool
			if err := chromedp.Evaluate(js, &ok).Do(ctx); err != nil {
				return fmt.Errorf("click %q: %w", text, err)
			}
			if ok {
				return nil
			}
			select {
			case <-ctx.Done():
				return fmt.Errorf("no %s with text %q: %w", selector, text, ctx.Err())
			case <-time.After(250 * time.Millisecond):
			}
		}
	})
}

// tryClickText is clickText with a short deadline whose failure is ignored
func tryClickText(selector, text string, exact bool, wait time.Duration) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		short, cancel := context.WithTimeout(ctx, wait)
		defer cancel()
		_ = clickText(selector, text, exact).Do(short)
		return nil
	})
}
