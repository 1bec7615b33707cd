package lidl

import (
	"context"
	"fmt"
	"time"

	"grocery-price-compare/config"
	"grocery-price-compare/metrics"
	"grocery-price-compare/models"
	"grocery-price-compare/utils"
)

// BatchResult holds what one country's acquisition produced. Failures are
// reported next to the successes, never instead of them.
type BatchResult struct {
	Country    string
	Listings   []*models.RawListing
	Failures   []URLFailure
	Discovered int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Acquirer runs discovery and sequential fetching for a country on a page
// it opens and releases itself.
type Acquirer struct {
	cfg        *config.Config
	logger     *utils.Logger
	opener     PageOpener
	discoverer *Discoverer
	fetcher    *RetryingFetcher
	metrics    *metrics.Scrape
}

// New wires an Acquirer for the given storefront table.
func New(cfg *config.Config, countries CountryTable, opener PageOpener, m *metrics.Scrape, logger *utils.Logger) *Acquirer {
	sitemap := NewSitemapClient(cfg.SitemapTimeout, cfg.RequestDelay, logger)
	return &Acquirer{
		cfg:        cfg,
		logger:     logger,
		opener:     opener,
		discoverer: NewDiscoverer(cfg, countries, sitemap, logger),
		fetcher:    NewRetryingFetcher(cfg, NewExtractor(cfg, logger), logger),
		metrics:    m,
	}
}

// AcquireCountry discovers up to limit product URLs for country and fetches
// them one after another with cfg.RequestDelay between requests. It fails
// with *DiscoveryError when no URL is found and with *BatchError when every
// URL failed.
func (a *Acquirer) AcquireCountry(ctx context.Context, country string, limit int) (*BatchResult, error) {
	if limit < 1 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}
	log := a.logger.With("country", country)
	started := time.Now()
	defer func() { a.metrics.ObserveBatch(country, time.Since(started)) }()

	page, release, err := a.opener.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open page for %s: %w", country, err)
	}
	defer release()

	log.Info("[acquire] Starting %s, limit %d", models.CountryName(country), limit)
	urls, err := a.discoverer.Discover(ctx, page, country, limit)
	if err != nil {
		a.metrics.DiscoveryFailed(country)
		return nil, err
	}
	if len(urls) > limit {
		urls = urls[:limit]
	}

	result := &BatchResult{Country: country, Discovered: len(urls), StartedAt: started}
	for i, u := range urls {
		if i > 0 {
			if err := utils.Sleep(ctx, a.cfg.RequestDelay); err != nil {
				break
			}
		}

		res, err := a.fetcher.Fetch(ctx, page, u, country)
		a.metrics.ObserveAttempts(country, res.Attempts)
		if err != nil {
			a.metrics.URLFailed(country)
			result.Failures = append(result.Failures, URLFailure{URL: u, Attempts: res.Attempts, Err: err})
			if len(result.Failures) <= batchErrorSample {
				log.Warn("[acquire] Failed: %s - %v", u, err)
			}
			continue
		}
		a.metrics.URLSucceeded(country)
		result.Listings = append(result.Listings, res.Listing)

		if (i+1)%5 == 0 {
			log.Info("[acquire] Progress: %d/%d - %d products extracted", i+1, len(urls), len(result.Listings))
		}
	}
	result.FinishedAt = time.Now()

	log.Info("[acquire] Completed %s: %d products, %d errors",
		models.CountryName(country), len(result.Listings), len(result.Failures))

	if len(result.Listings) == 0 {
		if ctx.Err() != nil && len(result.Failures) == 0 {
			return nil, ctx.Err()
		}
		return nil, &BatchError{Country: country, Failures: result.Failures}
	}
	return result, nil
}

// CountryOutcome pairs a country with its batch result or error.
type CountryOutcome struct {
	Country string
	Result  *BatchResult
	Err     error
}

// AcquireAll acquires several countries concurrently, each on its own
// page, with at most cfg.MaxConcurrency in flight. Outcomes are returned in
// the order of countries.
func (a *Acquirer) AcquireAll(ctx context.Context, countries []string, limit int) []CountryOutcome {
	outcomes := make([]CountryOutcome, len(countries))
	for i, c := range countries {
		outcomes[i] = CountryOutcome{Country: c, Err: context.Canceled}
	}

	pool := utils.NewWorkerPool(ctx, a.cfg.MaxConcurrency, 0)
	for i, country := range countries {
		pool.Submit(func(ctx context.Context) {
			res, err := a.AcquireCountry(ctx, country, limit)
			if err != nil {
				a.logger.Error("[acquire] %s failed: %v", country, err)
			}
			outcomes[i] = CountryOutcome{Country: country, Result: res, Err: err}
		})
	}
	pool.Wait()
	return outcomes
}
