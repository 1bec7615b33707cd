package lidl

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedCountry is returned for country codes missing from the table.
var ErrUnsupportedCountry = errors.New("unsupported country")

// DiscoveryError means neither the sitemap nor the category pages produced
// a single product URL for the country.
type DiscoveryError struct {
	Country    string
	SitemapErr error
	CrawlErrs  []error
}

func (e *DiscoveryError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "no product URLs found for %s", e.Country)
	if e.SitemapErr != nil {
		fmt.Fprintf(&b, " (sitemap: %v", e.SitemapErr)
		if len(e.CrawlErrs) > 0 {
			fmt.Fprintf(&b, "; categories: %v", errors.Join(e.CrawlErrs...))
		}
		b.WriteString(")")
	}
	return b.String()
}

func (e *DiscoveryError) Unwrap() []error {
	errs := make([]error, 0, len(e.CrawlErrs)+1)
	if e.SitemapErr != nil {
		errs = append(errs, e.SitemapErr)
	}
	return append(errs, e.CrawlErrs...)
}

// ExtractionError means a page yielded neither a name nor a price.
type ExtractionError struct {
	URL string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("no usable product data found at %s", e.URL)
}

// MissingPriceError means a page yielded a product name but no price.
type MissingPriceError struct {
	URL  string
	Name string
}

func (e *MissingPriceError) Error() string {
	return fmt.Sprintf("no price found for %q at %s", e.Name, e.URL)
}

// URLFailure records why a single product URL could not be acquired.
type URLFailure struct {
	URL      string `json:"url"`
	Attempts int    `json:"attempts"`
	Err      error  `json:"-"`
}

func (f URLFailure) Error() string {
	return fmt.Sprintf("%s: %v", f.URL, f.Err)
}

// batchErrorSample is how many failures a BatchError spells out.
const batchErrorSample = 3

// BatchError means no URL of a country's batch could be acquired.
type BatchError struct {
	Country  string
	Failures []URLFailure
}

func (e *BatchError) Error() string {
	n := min(len(e.Failures), batchErrorSample)
	msgs := make([]string, 0, n)
	for _, f := range e.Failures[:n] {
		msgs = append(msgs, fmt.Sprint(f.Err))
	}
	return fmt.Sprintf("no valid products extracted for %s (%d failures). First %d errors: %s",
		e.Country, len(e.Failures), n, strings.Join(msgs, "; "))
}

func (e *BatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}
