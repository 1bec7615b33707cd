package lidl

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"grocery-price-compare/config"
	"grocery-price-compare/utils"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Page is the rendering capability the scraper drives. A Page is used by
// one goroutine at a time.
type Page interface {
	// Navigate loads url and returns once the DOM content is loaded or
	// timeout expires.
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	// Evaluate runs js in the page and decodes its result into out.
	Evaluate(ctx context.Context, js string, out any) error
	Wait(ctx context.Context, d time.Duration) error
	CurrentURL(ctx context.Context) (string, error)
}

// PageOpener hands out pages. The returned release func must be called
// exactly once, on every exit path.
type PageOpener interface {
	Open(ctx context.Context) (Page, func(), error)
}

// ChromeOpener launches one headless Chrome per opened page.
type ChromeOpener struct {
	cfg    *config.Config
	logger *utils.Logger
}

// NewChromeOpener creates a ChromeOpener.
func NewChromeOpener(cfg *config.Config, logger *utils.Logger) *ChromeOpener {
	return &ChromeOpener{cfg: cfg, logger: logger}
}

// Open starts a browser and returns its single tab.
func (o *ChromeOpener) Open(ctx context.Context) (Page, func(), error) {
	chromeBin := findChromeBinary(o.cfg.ChromeBin)
	o.logger.Debug("[browser] Using browser binary: %s", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.UserAgent(userAgent),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	// Suppress chromedp log noise
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, nil, fmt.Errorf("start browser: %w", err)
	}

	release := func() {
		cancelTab()
		cancelAlloc()
	}
	return &ChromePage{tab: tabCtx}, release, nil
}

// ChromePage is a Page backed by a chromedp tab.
type ChromePage struct {
	tab context.Context
}

// run executes actions on the tab, honouring both the caller's ctx and an
// optional timeout.
func (p *ChromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.tab)
	defer cancel()
	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, timeout)
		defer cancelTimeout()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (p *ChromePage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	err := p.run(ctx, timeout,
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, _, errorText, err := page.Navigate(url).Do(ctx)
			if err != nil {
				return err
			}
			if errorText != "" {
				return fmt.Errorf("page load error %s", errorText)
			}
			return nil
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (p *ChromePage) Evaluate(ctx context.Context, js string, out any) error {
	if err := p.run(ctx, 0, chromedp.Evaluate(js, out)); err != nil {
		return fmt.Errorf("chromedp evaluate: %w", err)
	}
	return nil
}

func (p *ChromePage) Wait(ctx context.Context, d time.Duration) error {
	return utils.Sleep(ctx, d)
}

func (p *ChromePage) CurrentURL(ctx context.Context) (string, error) {
	var loc string
	if err := p.run(ctx, 0, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("chromedp location: %w", err)
	}
	return loc, nil
}

// findChromeBinary locates Chrome/Chromium binary.
func findChromeBinary(configured string) string {
	if configured != "" {
		return configured
	}
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
