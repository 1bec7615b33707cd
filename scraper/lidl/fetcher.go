package lidl

import (
	"context"

	"grocery-price-compare/config"
	"grocery-price-compare/models"
	"grocery-price-compare/utils"
)

// FetchResult is the outcome of one successful URL fetch.
type FetchResult struct {
	Listing  *models.RawListing
	Attempts int
}

// RetryingFetcher retries navigation plus extraction of a single URL a
// bounded number of times with a fixed delay.
type RetryingFetcher struct {
	extractor *Extractor
	retry     *utils.RetryConfig
}

// NewRetryingFetcher creates a fetcher making 1 + cfg.MaxRetries attempts.
func NewRetryingFetcher(cfg *config.Config, extractor *Extractor, logger *utils.Logger) *RetryingFetcher {
	return &RetryingFetcher{
		extractor: extractor,
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries + 1,
			BaseDelay:   cfg.RetryDelay,
			Logger:      logger,
		},
	}
}

// Fetch extracts url on page. On failure the returned error wraps the last
// extraction error and the attempt count is still reported.
func (f *RetryingFetcher) Fetch(ctx context.Context, page Page, url, country string) (FetchResult, error) {
	var listing *models.RawListing
	attempts, err := f.retry.Do(ctx, "fetch "+url, func(ctx context.Context) error {
		l, err := f.extractor.ExtractFrom(ctx, page, url, country)
		if err != nil {
			return err
		}
		listing = l
		return nil
	})
	return FetchResult{Listing: listing, Attempts: attempts}, err
}
