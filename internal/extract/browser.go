package extract

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

type BrowserConfig struct {
	Timeout time.Duration
	Logger  *slog.Logger
}

// BrowserExtractor renders a page in headless Chrome and reads its visible
// text. It is the last resort for script-built pages.
type BrowserExtractor struct {
	timeout time.Duration
	logger  *slog.Logger
}

func NewBrowserExtractor(cfg BrowserConfig) *BrowserExtractor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &BrowserExtractor{timeout: cfg.Timeout, logger: cfg.Logger}
}

func (b *BrowserExtractor) Name() string { return "browser" }

func (b *BrowserExtractor) Match(u *url.URL) bool { return true }

// newContext starts a fresh headless Chrome. The caller MUST call cancel().
func (b *BrowserExtractor) newContext(parent context.Context) (context.Context, context.CancelFunc) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Headless,
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(userAgent),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, opts...)
	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	return taskCtx, func() {
		taskCancel()
		allocCancel()
	}
}

func (b *BrowserExtractor) Extract(ctx context.Context, u *url.URL) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	taskCtx, taskCancel := b.newContext(ctx)
	defer taskCancel()

	var title, text string
	start := time.Now()
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(u.String()),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Title(&title),
		chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &text),
	)
	if err != nil {
		return "", fmt.Errorf("browser render: %w", err)
	}
	b.logger.Debug("page rendered", "url", u.String(), "duration_ms", time.Since(start).Milliseconds())

	text = collapseLines(text)
	if text == "" {
		return "", nil
	}
	if title = strings.TrimSpace(title); title != "" {
		text = "Title: " + title + "\n\n" + text
	}
	return text, nil
}

func collapseLines(s string) string {
	var kept []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
