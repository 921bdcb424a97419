package pagesource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/chromedp/chromedp"

	"github.com/pfrederiksen/troopcal/internal/logger"
)

const (
	// DefaultFrameWait bounds the wait for a content frame to appear
	DefaultFrameWait = 30 * time.Second

	framePollInterval = 500 * time.Millisecond

	// Log-on link, matched like "Log On" / "LogOn" in any case
	logOnXPath = `//a[contains(translate(normalize-space(.), 'LOGN ', 'logn'), 'logon')]`
)

// ErrFrameNotFound is returned when no frame with the expected page appears in time
var ErrFrameNotFound = errors.New("content frame not found")

// BrowserOptions configures the headless browser session
type BrowserOptions struct {
	BaseURL  string // troop site root, <BaseURL>/Index.htm is the frameset
	ListURL  string
	Username string
	Password string

	UsernameSelector string
	PasswordSelector string
	SubmitSelector   string

	Headless    bool
	NavTimeout  time.Duration
	SettleDelay time.Duration
	FrameWait   time.Duration
	Retries     int
}

// Browser fetches pages through an authenticated Chromium session. Each
// fetch opens its own tab in the shared browser, so concurrent fetches are
// safe once Login has succeeded.
type Browser struct {
	opts BrowserOptions

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu       sync.Mutex
	loggedIn bool
}

// NewBrowser starts Chromium. Call Close when done.
func NewBrowser(ctx context.Context, opts BrowserOptions) (*Browser, error) {
	if opts.NavTimeout <= 0 {
		opts.NavTimeout = 20 * time.Second
	}
	if opts.FrameWait <= 0 {
		opts.FrameWait = DefaultFrameWait
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// The first Run launches the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("starting browser: %w", err)
	}

	return &Browser{
		opts:          opts,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// Close shuts the browser down
func (b *Browser) Close() {
	b.browserCancel()
	b.allocCancel()
}

// Login opens the frameset, follows the content frame to the Log On link and
// submits the log-on form. The session cookie is shared by every later tab.
func (b *Browser) Login(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.loggedIn {
		return nil
	}

	err := b.retry(ctx, "login", func() error {
		tab, cancel := b.newTab(ctx)
		defer cancel()

		if err := chromedp.Run(tab, chromedp.Navigate(b.opts.BaseURL+"/Index.htm")); err != nil {
			return fmt.Errorf("opening frameset: %w", err)
		}

		frameURL, err := b.frameURL(tab, "Redirect.htm")
		if err != nil {
			return err
		}
		logger.Debug("Using content frame", logger.Fields{"url": frameURL})

		return chromedp.Run(tab,
			chromedp.Navigate(frameURL),
			chromedp.Click(logOnXPath, chromedp.BySearch),
			chromedp.WaitVisible(b.opts.PasswordSelector, chromedp.ByQuery),
			chromedp.SendKeys(b.opts.UsernameSelector, b.opts.Username, chromedp.ByQuery),
			chromedp.SendKeys(b.opts.PasswordSelector, b.opts.Password, chromedp.ByQuery),
			chromedp.Click(b.opts.SubmitSelector, chromedp.ByQuery),
			chromedp.Sleep(b.opts.SettleDelay),
		)
	})
	if err != nil {
		return fmt.Errorf("logging in: %w", err)
	}

	b.loggedIn = true
	logger.Info("Logged in", logger.Fields{"base_url": b.opts.BaseURL})
	return nil
}

// FetchListingHTML logs in if needed and returns the listing page's HTML
func (b *Browser) FetchListingHTML(ctx context.Context) (string, error) {
	if err := b.Login(ctx); err != nil {
		return "", err
	}
	return b.fetch(ctx, b.opts.ListURL, "FormList.aspx")
}

// FetchDetailHTML returns the HTML of one event detail page
func (b *Browser) FetchDetailHTML(ctx context.Context, url string) (string, error) {
	if err := b.Login(ctx); err != nil {
		return "", err
	}
	return b.fetch(ctx, url, "FormDetail.aspx")
}

// fetch navigates a fresh tab to url and returns the HTML of the frame whose
// URL contains page. The top-level document counts as a frame.
func (b *Browser) fetch(ctx context.Context, url, page string) (string, error) {
	var html string
	err := b.retry(ctx, url, func() error {
		tab, cancel := b.newTab(ctx)
		defer cancel()

		// allocate the tab before deriving a timeout from it
		if err := chromedp.Run(tab); err != nil {
			return fmt.Errorf("opening tab: %w", err)
		}

		navCtx, navCancel := context.WithTimeout(tab, b.opts.NavTimeout)
		defer navCancel()
		if err := chromedp.Run(navCtx, chromedp.Navigate(url), chromedp.Sleep(b.opts.SettleDelay)); err != nil {
			return fmt.Errorf("navigating: %w", err)
		}

		h, err := b.frameHTML(tab, page)
		if err != nil {
			return err
		}
		html = h
		return nil
	})
	return html, err
}

// newTab opens a tab in the shared browser that also ends when ctx does
func (b *Browser) newTab(ctx context.Context) (context.Context, context.CancelFunc) {
	tab, cancel := chromedp.NewContext(b.browserCtx)
	stop := context.AfterFunc(ctx, cancel)
	return tab, func() {
		stop()
		cancel()
	}
}

func (b *Browser) retry(ctx context.Context, what string, op func() error) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(max(b.opts.Retries, 0))),
		ctx,
	)
	notify := func(err error, wait time.Duration) {
		logger.Warn("Retrying browser step", logger.Fields{
			"step":  what,
			"error": err.Error(),
			"wait":  wait.String(),
		})
	}
	return backoff.RetryNotify(op, policy, notify)
}

// Walks the window and its frames depth first and returns the first
// same-origin document whose URL contains the needle.
const findFrameJS = `(function(needle, wantHTML) {
  needle = needle.toLowerCase();
  function walk(w, top) {
    try {
      var href = w.location.href || "";
      if (w.document && w.document.body && (needle ? href.toLowerCase().indexOf(needle) !== -1 : !top)) {
        return wantHTML ? w.document.documentElement.outerHTML : href;
      }
    } catch (e) {}
    for (var i = 0; i < w.frames.length; i++) {
      var r = walk(w.frames[i], false);
      if (r) return r;
    }
    return "";
  }
  return walk(window, true);
})(%s, %t)`

// frameURL polls for a frame whose URL contains page and returns its URL,
// falling back to the first child frame.
func (b *Browser) frameURL(tab context.Context, page string) (string, error) {
	url, err := b.pollFrame(tab, page, false)
	if errors.Is(err, ErrFrameNotFound) {
		return b.pollFrame(tab, "", false)
	}
	return url, err
}

func (b *Browser) frameHTML(tab context.Context, page string) (string, error) {
	return b.pollFrame(tab, page, true)
}

func (b *Browser) pollFrame(tab context.Context, page string, wantHTML bool) (string, error) {
	needle, err := json.Marshal(page)
	if err != nil {
		return "", err
	}
	script := fmt.Sprintf(findFrameJS, needle, wantHTML)

	ctx, cancel := context.WithTimeout(tab, b.opts.FrameWait)
	defer cancel()

	for {
		var out string
		if err := chromedp.Run(ctx, chromedp.Evaluate(script, &out)); err != nil {
			if ctx.Err() != nil {
				return "", fmt.Errorf("%w: %s", ErrFrameNotFound, page)
			}
			return "", fmt.Errorf("inspecting frames: %w", err)
		}
		if out != "" {
			return out, nil
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %s", ErrFrameNotFound, page)
		case <-time.After(framePollInterval):
		}
	}
}
