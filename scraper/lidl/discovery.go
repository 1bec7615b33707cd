package lidl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"grocery-price-compare/config"
	"grocery-price-compare/utils"
)

// snapshotJS returns the rendered document as HTML.
const snapshotJS = `document.documentElement ? document.documentElement.outerHTML : ""`

// Discoverer finds candidate product URLs for a country: sitemap first,
// category pages second.
type Discoverer struct {
	cfg       *config.Config
	logger    *utils.Logger
	sitemap   *SitemapClient
	countries CountryTable
}

// NewDiscoverer creates a Discoverer over the given storefront table.
func NewDiscoverer(cfg *config.Config, countries CountryTable, sitemap *SitemapClient, logger *utils.Logger) *Discoverer {
	return &Discoverer{cfg: cfg, logger: logger, sitemap: sitemap, countries: countries}
}

// Discover returns up to limit product URLs for country. The page is only
// used when the sitemap fails.
func (d *Discoverer) Discover(ctx context.Context, page Page, country string, limit int) ([]string, error) {
	c, err := d.countries.Lookup(country)
	if err != nil {
		return nil, err
	}

	urls, sitemapErr := d.fromSitemap(ctx, c, limit)
	if sitemapErr == nil && len(urls) > 0 {
		d.logger.Info("[discovery] %s: %d product URLs from sitemap", c.Code, len(urls))
		return urls, nil
	}
	if sitemapErr == nil {
		sitemapErr = errors.New("sitemap contained no product URLs")
	}
	if len(urls) > 0 {
		d.logger.Warn("[discovery] %s: sitemap parse failed after %d URLs: %v", c.Code, len(urls), sitemapErr)
		return urls, nil
	}

	d.logger.Warn("[discovery] %s: sitemap failed (%v), falling back to category pages", c.Code, sitemapErr)
	urls, crawlErrs := d.fromCategories(ctx, page, c, limit)
	if len(urls) == 0 {
		return nil, &DiscoveryError{Country: c.Code, SitemapErr: sitemapErr, CrawlErrs: crawlErrs}
	}

	d.logger.Info("[discovery] %s: %d product URLs from category pages", c.Code, len(urls))
	return urls, nil
}

func (d *Discoverer) fromSitemap(ctx context.Context, c Country, limit int) ([]string, error) {
	body, err := d.sitemap.Fetch(ctx, c.SitemapURL())
	if err != nil {
		return nil, err
	}
	return ProductURLs(bytes.NewReader(body), c.Host, limit)
}

func (d *Discoverer) fromCategories(ctx context.Context, page Page, c Country, limit int) ([]string, []error) {
	seen := utils.NewURLSet()
	var urls []string
	var errs []error

	for i, path := range c.CategoryPaths {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if i > 0 {
			if err := page.Wait(ctx, d.cfg.SettleDelay); err != nil {
				errs = append(errs, err)
				break
			}
		}

		found, err := d.categoryLinks(ctx, page, c.Host+path)
		if err != nil {
			d.logger.Warn("[discovery] Category %s failed: %v", path, err)
			errs = append(errs, fmt.Errorf("category %s: %w", path, err))
			continue
		}
		for _, u := range found {
			if seen.Add(u) {
				urls = append(urls, u)
			}
		}
		d.logger.Debug("[discovery] Category %s: %d product links, %d unique so far", path, len(found), seen.Size())
		if len(urls) >= limit {
			return urls[:limit], errs
		}
	}
	return urls, errs
}

// categoryLinks renders a category page and returns the absolute URLs of
// its product anchors.
func (d *Discoverer) categoryLinks(ctx context.Context, page Page, categoryURL string) ([]string, error) {
	if err := page.Navigate(ctx, categoryURL, d.cfg.CategoryTimeout); err != nil {
		return nil, err
	}
	if err := page.Wait(ctx, d.cfg.SettleDelay); err != nil {
		return nil, err
	}
	var html string
	if err := page.Evaluate(ctx, snapshotJS, &html); err != nil {
		return nil, err
	}
	return ProductLinks(html, categoryURL)
}

// ProductLinks returns the product anchors of an HTML document resolved
// against baseURL, deduplicated, in document order.
func ProductLinks(html, baseURL string) ([]string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	seen := utils.NewURLSet()
	var links []string
	doc.Find(`a[href*="/p/"]`).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		abs.Fragment = ""
		if seen.Add(abs.String()) {
			links = append(links, abs.String())
		}
	})
	return links, nil
}
