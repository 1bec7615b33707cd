package lidl

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"grocery-price-compare/config"
	"grocery-price-compare/utils"
)

// fakePage serves canned HTML per URL. failures makes the next n
// navigations to a URL fail.
type fakePage struct {
	mu        sync.Mutex
	pages     map[string]string
	failures  map[string]int
	navigated []string
	current   string
}

func newFakePage(pages map[string]string) *fakePage {
	return &fakePage{pages: pages, failures: make(map[string]int)}
}

func (p *fakePage) Navigate(ctx context.Context, url string, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	p.navigated = append(p.navigated, url)
	if p.failures[url] > 0 {
		p.failures[url]--
		return fmt.Errorf("navigate %s: timeout", url)
	}
	if _, ok := p.pages[url]; !ok {
		return fmt.Errorf("navigate %s: net::ERR_NAME_NOT_RESOLVED", url)
	}
	p.current = url
	return nil
}

func (p *fakePage) Evaluate(_ context.Context, _ string, out any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := out.(*string)
	if !ok {
		return fmt.Errorf("unexpected result type %T", out)
	}
	*s = p.pages[p.current]
	return nil
}

func (p *fakePage) Wait(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func (p *fakePage) CurrentURL(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, nil
}

func (p *fakePage) visits(url string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, u := range p.navigated {
		if u == url {
			n++
		}
	}
	return n
}

type fakeOpener struct {
	mu       sync.Mutex
	page     func() Page
	opened   int
	released int
	err      error
}

func (o *fakeOpener) Open(context.Context) (Page, func(), error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return nil, nil, o.err
	}
	o.opened++
	return o.page(), func() {
		o.mu.Lock()
		o.released++
		o.mu.Unlock()
	}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		MaxRetries:      2,
		RetryDelay:      time.Millisecond,
		MaxConcurrency:  2,
		NavTimeout:      time.Second,
		CategoryTimeout: time.Second,
		SitemapTimeout:  5 * time.Second,
	}
}

func testLogger() *utils.Logger { return utils.NewLoggerTo(io.Discard, "debug") }

func productHTML(name, price string) string {
	return `<html><body><h1>` + name + `</h1><span class="m-price__price">` + price + ` €</span>` +
		`<span class="m-price__unit">1 l</span></body></html>`
}
