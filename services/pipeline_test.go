package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grocery-price-compare/models"
	"grocery-price-compare/scraper/lidl"
	"grocery-price-compare/storage"
)

type fakeAcquirer struct {
	results map[string]*lidl.BatchResult
	err     error
}

func (f *fakeAcquirer) AcquireCountry(_ context.Context, country string, _ int) (*lidl.BatchResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results[country], nil
}

type recordingWriter struct{ written int }

func (w *recordingWriter) WriteRaw(listings []*models.RawListing) error {
	w.written += len(listings)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func batch(country string, listings ...*models.RawListing) *lidl.BatchResult {
	for _, l := range listings {
		l.ScrapedAt = captured
	}
	return &lidl.BatchResult{
		Country:    country,
		Listings:   listings,
		Discovered: len(listings) + 1,
		Failures: []lidl.URLFailure{{
			URL: "https://www.lidl." + country + "/p/broken/p9", Attempts: 3, Err: errors.New("navigate: timeout"),
		}},
		StartedAt:  captured,
		FinishedAt: captured.Add(time.Minute),
	}
}

func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	st, err := storage.NewSQLite(context.Background(), filepath.Join(t.TempDir(), "prices.db"), newTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	return st
}

func TestPipelineRunAndCompare(t *testing.T) {
	acq := &fakeAcquirer{results: map[string]*lidl.BatchResult{
		"hr": batch("hr", milbonaMilk("hr", "Milbona Mlijeko 3.5% 1L", "1.09")),
		"de": batch("de", milbonaMilk("de", "Milbona Milch 3.5% 1L", "0.99")),
	}}
	st := newTestStore(t)
	raw := &recordingWriter{}
	p := NewPipeline(acq, st, raw, nil, newTestLogger())
	ctx := context.Background()

	hr, err := p.Run(ctx, "hr", 10)
	require.NoError(t, err)
	assert.Equal(t, 2, hr.Discovered)
	assert.Equal(t, 1, hr.Extracted)
	assert.Equal(t, 1, hr.Saved)
	assert.Equal(t, map[string]int{"semantic": 1}, hr.ByTier)
	assert.NotEmpty(t, hr.SessionID)
	require.Len(t, hr.Failures, 1)
	assert.Equal(t, 3, hr.Failures[0].Attempts)
	assert.Contains(t, hr.Failures[0].Error, "timeout")

	_, err = p.Run(ctx, "de", 10)
	require.NoError(t, err)
	assert.Equal(t, 2, raw.written)

	groups, err := Compare(ctx, st, 7*24*time.Hour, captured.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "type-milbona-milk-1l", groups[0].MatchKey)
	assert.Equal(t, []string{"de", "hr"}, groups[0].Countries())

	stale, err := Compare(ctx, st, time.Hour, captured.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, stale)
}

func TestPipelineRerunDoesNotDuplicate(t *testing.T) {
	acq := &fakeAcquirer{results: map[string]*lidl.BatchResult{
		"hr": batch("hr", milbonaMilk("hr", "Milbona Mlijeko 3.5% 1L", "1.09")),
	}}
	st := newTestStore(t)
	p := NewPipeline(acq, st, nil, nil, newTestLogger())

	for i := 0; i < 2; i++ {
		_, err := p.Run(context.Background(), "hr", 10)
		require.NoError(t, err)
	}

	records, err := st.LoadRecords(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestPipelinePropagatesBatchError(t *testing.T) {
	batchErr := &lidl.BatchError{Country: "si"}
	p := NewPipeline(&fakeAcquirer{err: batchErr}, newTestStore(t), nil, nil, newTestLogger())

	summary, err := p.Run(context.Background(), "si", 5)
	assert.Nil(t, summary)
	var target *lidl.BatchError
	assert.True(t, errors.As(err, &target))
}
