// Package browser provides headless Chrome automation for unsubscribe pages
// that need a confirmation click after the initial GET.
package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// Browser wraps chromedp for headless Chrome automation
type Browser struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
	config      Config
}

// Config holds browser automation settings
type Config struct {
	Headless      bool
	Timeout       time.Duration
	ScreenshotDir string
	UserAgent     string
	WindowWidth   int
	WindowHeight  int
}

// DefaultConfig returns sensible default browser settings
func DefaultConfig() Config {
	return Config{
		Headless:      true,
		Timeout:       30 * time.Second,
		ScreenshotDir: "",
		UserAgent:     "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		WindowWidth:   1280,
		WindowHeight:  900,
	}
}

// PageResult represents the outcome of an unsubscribe page visit
type PageResult struct {
	Success        bool
	URL            string
	FinalURL       string
	Clicked        bool
	PageTitle      string
	ScreenshotPath string
	ErrorMessage   string
}

// New creates a new Browser instance
func New(cfg Config) (*Browser, error) {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.UserAgent(cfg.UserAgent),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
	}

	if cfg.Headless {
		opts = append(opts, chromedp.Headless)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	return &Browser{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		ctx:         ctx,
		cancel:      cancel,
		config:      cfg,
	}, nil
}

// Close cleans up browser resources
func (b *Browser) Close() {
	if b.cancel != nil {
		b.cancel()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
}

// confirmSelectors are tried in order on pages that ask for a final click
var confirmSelectors = []string{
	"button[type='submit']",
	"input[type='submit']",
	"#unsubscribe",
	"#unsubscribe-btn",
	".unsubscribe-button",
	"a[href*='unsubscribe']",
}

// VisitUnsubscribePage navigates to an unsubscribe URL and, when the page
// asks for a confirmation click, clicks the most likely control. Many list
// operators complete the unsubscribe on the GET alone, so a page with no
// clickable control still counts as visited.
func (b *Browser) VisitUnsubscribePage(rawURL, label string) (*PageResult, error) {
	result := &PageResult{URL: rawURL}

	ctx, cancel := context.WithTimeout(b.ctx, b.config.Timeout)
	defer cancel()

	if err := chromedp.Run(ctx, chromedp.Navigate(rawURL)); err != nil {
		result.ErrorMessage = fmt.Sprintf("navigation failed: %v", err)
		return result, err
	}
	if err := chromedp.Run(ctx, chromedp.WaitReady("body")); err != nil {
		result.ErrorMessage = fmt.Sprintf("page load failed: %v", err)
		return result, err
	}

	// Let dynamic content settle
	time.Sleep(2 * time.Second)

	chromedp.Run(ctx, chromedp.Title(&result.PageTitle))

	if b.pageLooksDone(ctx) {
		result.Success = true
	} else {
		result.Clicked = b.clickConfirm(ctx)
		if result.Clicked {
			time.Sleep(2 * time.Second)
			result.Success = b.pageLooksDone(ctx)
		}
	}

	var finalURL string
	if err := chromedp.Run(ctx, chromedp.Location(&finalURL)); err == nil {
		result.FinalURL = finalURL
	}

	if b.config.ScreenshotDir != "" {
		path, err := b.takeScreenshot(ctx, label)
		if err == nil {
			result.ScreenshotPath = path
		}
	}

	if !result.Success && result.ErrorMessage == "" {
		result.ErrorMessage = "no confirmation detected on page"
	}
	return result, nil
}

// clickConfirm tries the known confirmation controls and reports whether one
// was clicked
func (b *Browser) clickConfirm(ctx context.Context) bool {
	for _, selector := range confirmSelectors {
		var exists bool
		err := chromedp.Run(ctx, chromedp.Evaluate(
			fmt.Sprintf(`document.querySelector(%q) !== null`, selector),
			&exists,
		))
		if err != nil || !exists {
			continue
		}
		if err := chromedp.Run(ctx, chromedp.Click(selector, chromedp.NodeVisible)); err == nil {
			return true
		}
	}
	return false
}

// pageLooksDone checks the visible text for unsubscribe success wording
func (b *Browser) pageLooksDone(ctx context.Context) bool {
	var text string
	if err := chromedp.Run(ctx, chromedp.Text("body", &text, chromedp.NodeVisible)); err != nil {
		return false
	}
	return ResponseIndicatesSuccess(200, text)
}

// takeScreenshot captures the current page state
func (b *Browser) takeScreenshot(ctx context.Context, label string) (string, error) {
	var buf []byte
	if err := chromedp.Run(ctx, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return "", err
	}

	if err := os.MkdirAll(b.config.ScreenshotDir, 0755); err != nil {
		return "", err
	}

	filename := fmt.Sprintf("%s_%d.png", sanitizeLabel(label), time.Now().Unix())
	path := filepath.Join(b.config.ScreenshotDir, filename)

	if err := os.WriteFile(path, buf, 0644); err != nil {
		return "", err
	}
	return filename, nil
}

func sanitizeLabel(label string) string {
	label = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		}
		return '_'
	}, label)
	if label == "" {
		return "page"
	}
	return label
}

// GetPageHTML returns the current page HTML
func (b *Browser) GetPageHTML(ctx context.Context) (string, error) {
	var html string
	err := chromedp.Run(ctx, chromedp.OuterHTML("html", &html))
	return html, err
}

// EnablePageEvents enables page lifecycle event monitoring
func (b *Browser) EnablePageEvents(ctx context.Context) error {
	return chromedp.Run(ctx, page.Enable())
}
