package lidl

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/time/rate"

	"grocery-price-compare/utils"
)

// maxSitemapBytes caps how much of a sitemap body is read.
const maxSitemapBytes = 64 << 20

// SitemapClient fetches product sitemaps over plain HTTP.
type SitemapClient struct {
	client   *http.Client
	logger   *utils.Logger
	interval time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewSitemapClient creates a client whose requests time out after timeout
// and are spaced at least interval apart per host.
func NewSitemapClient(timeout, interval time.Duration, logger *utils.Logger) *SitemapClient {
	return &SitemapClient{
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
		interval: interval,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (c *SitemapClient) limiter(host string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[host]
	if !ok {
		limit := rate.Inf
		if c.interval > 0 {
			limit = rate.Every(c.interval)
		}
		l = rate.NewLimiter(limit, 1)
		c.limiters[host] = l
	}
	return l
}

// Fetch downloads rawURL and returns its decompressed body. Bodies that
// are not gzip are returned as they are. Non-2xx responses and anti-bot
// pages are errors.
func (c *SitemapClient) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("sitemap: parse url: %w", err)
	}
	if err := c.limiter(u.Host).Wait(ctx); err != nil {
		return nil, fmt.Errorf("sitemap: rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("sitemap: build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/xml, text/xml, */*")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sitemap: get %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSitemapBytes))
	if err != nil {
		return nil, fmt.Errorf("sitemap: read body: %w", err)
	}

	data := decompress(body)
	if blocked, kind := detectBlock(resp, data); blocked {
		return nil, fmt.Errorf("sitemap: blocked by %s", kind)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("sitemap: HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	c.logger.Debug("[sitemap] Fetched %s (%d bytes, %d decoded)", rawURL, len(body), len(data))
	return data, nil
}

// decompress gunzips body, falling back to the raw bytes when the body is
// not valid gzip.
func decompress(body []byte) []byte {
	zr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return body
	}
	defer zr.Close()

	out, err := io.ReadAll(io.LimitReader(zr, maxSitemapBytes))
	if err != nil {
		return body
	}
	return out
}

// detectBlock recognises challenge pages served in place of the sitemap.
func detectBlock(resp *http.Response, body []byte) (bool, string) {
	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusServiceUnavailable {
		if resp.Header.Get("cf-ray") != "" || resp.Header.Get("server") == "cloudflare" {
			return true, "cloudflare"
		}
	}

	head := body
	if len(head) > 4096 {
		head = head[:4096]
	}
	lower := strings.ToLower(string(head))
	if strings.Contains(lower, "<urlset") || strings.Contains(lower, "<sitemapindex") {
		return false, ""
	}
	switch {
	case strings.Contains(lower, "checking your browser"), strings.Contains(lower, "cf-browser-verification"):
		return true, "cloudflare"
	case strings.Contains(lower, "captcha"):
		return true, "captcha"
	}
	return false, ""
}

// ProductURLs streams the <loc> entries of a sitemap and returns, in
// document order, the first limit URLs on host that point at product
// pages. URLs collected before a parse error are returned with the error.
func ProductURLs(r io.Reader, host string, limit int) ([]string, error) {
	if limit < 1 {
		return nil, nil
	}
	decoder := xml.NewDecoder(r)
	decoder.Strict = false
	decoder.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, fmt.Errorf("xml: unsupported charset %q: %w", charset, err)
		}
		return enc.NewDecoder().Reader(input), nil
	}

	urls := make([]string, 0, limit)
	for len(urls) < limit {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return urls, fmt.Errorf("xml: read token: %w", err)
		}

		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "loc" {
			continue
		}

		var loc string
		if err := decoder.DecodeElement(&loc, &se); err != nil {
			return urls, fmt.Errorf("xml: decode loc: %w", err)
		}
		loc = strings.TrimSpace(loc)
		if isProductURL(loc) && strings.HasPrefix(loc, host) {
			urls = append(urls, loc)
		}
	}
	return urls, nil
}

// isProductURL reports whether u has a /p/ path segment.
func isProductURL(u string) bool {
	return strings.Contains(u, "/p/")
}
