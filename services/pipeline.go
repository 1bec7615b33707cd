package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"grocery-price-compare/metrics"
	"grocery-price-compare/models"
	"grocery-price-compare/scraper/lidl"
	"grocery-price-compare/storage"
	"grocery-price-compare/utils"
)

// BatchAcquirer acquires raw listings for one country.
type BatchAcquirer interface {
	AcquireCountry(ctx context.Context, country string, limit int) (*lidl.BatchResult, error)
}

// FailureSummary describes one URL that could not be extracted.
type FailureSummary struct {
	URL      string `json:"url"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error"`
}

// RunSummary is the outcome of one acquire-normalize-persist run.
type RunSummary struct {
	Country    string           `json:"country"`
	SessionID  string           `json:"sessionId"`
	Discovered int              `json:"discovered"`
	Extracted  int              `json:"extracted"`
	Saved      int              `json:"saved"`
	ByTier     map[string]int   `json:"byTier"`
	Failures   []FailureSummary `json:"failures"`
	StartedAt  time.Time        `json:"startedAt"`
	FinishedAt time.Time        `json:"finishedAt"`
}

// Pipeline runs acquisition, cleaning, normalization and persistence for
// one country at a time.
type Pipeline struct {
	acquirer   BatchAcquirer
	store      storage.Store
	raw        storage.RawListingWriter
	cleaner    *Cleaner
	normalizer *Normalizer
	metrics    *metrics.Scrape
	logger     *utils.Logger
}

// NewPipeline wires a pipeline. raw may be nil to skip the raw export.
func NewPipeline(acquirer BatchAcquirer, store storage.Store, raw storage.RawListingWriter, m *metrics.Scrape, logger *utils.Logger) *Pipeline {
	return &Pipeline{
		acquirer:   acquirer,
		store:      store,
		raw:        raw,
		cleaner:    NewCleaner(logger),
		normalizer: NewNormalizer(logger),
		metrics:    m,
		logger:     logger,
	}
}

// Run acquires up to limit listings for country and persists their
// normalized records in one session. Per-URL failures are reported in the
// summary; only a failed batch or a failed persist returns an error.
func (p *Pipeline) Run(ctx context.Context, country string, limit int) (*RunSummary, error) {
	res, err := p.acquirer.AcquireCountry(ctx, country, limit)
	if err != nil {
		return nil, err
	}
	return p.Process(ctx, res)
}

// Process exports, cleans, normalizes and persists an acquired batch.
func (p *Pipeline) Process(ctx context.Context, res *lidl.BatchResult) (*RunSummary, error) {
	country := res.Country
	summary := &RunSummary{
		Country:    country,
		Discovered: res.Discovered,
		Extracted:  len(res.Listings),
		ByTier:     make(map[string]int),
		Failures:   summarizeFailures(res.Failures),
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
	}

	if p.raw != nil {
		if err := p.raw.WriteRaw(res.Listings); err != nil {
			p.logger.Warn("[pipeline] raw export for %s failed: %v", country, err)
		}
	}

	cleaned := p.cleaner.Clean(res.Listings)
	records := p.normalizer.NormalizeAll(cleaned, time.Time{})
	if len(records) == 0 {
		return summary, fmt.Errorf("pipeline %s: %w", country, errNothingToPersist)
	}

	persisted, err := storage.PersistBatch(ctx, p.store, country, records, p.metrics, p.logger)
	summary.SessionID = persisted.SessionID
	if err != nil {
		return summary, err
	}
	summary.Saved = persisted.Saved
	for tier, n := range persisted.ByTier {
		summary.ByTier[tier.String()] = n
	}
	return summary, nil
}

var errNothingToPersist = errors.New("no listings left after cleaning")

func summarizeFailures(failures []lidl.URLFailure) []FailureSummary {
	out := make([]FailureSummary, 0, len(failures))
	for _, f := range failures {
		out = append(out, FailureSummary{URL: f.URL, Attempts: f.Attempts, Error: fmt.Sprint(f.Err)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out
}

// Compare loads every record captured in the last window and aggregates
// them into comparison groups.
func Compare(ctx context.Context, store storage.Store, window time.Duration, now time.Time) ([]models.ComparisonGroup, error) {
	var since time.Time
	if window > 0 {
		since = now.Add(-window)
	}
	records, err := store.LoadRecords(ctx, since)
	if err != nil {
		return nil, err
	}
	return Aggregate(records), nil
}
