package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grocery-price-compare/metrics"
	"grocery-price-compare/models"
	"grocery-price-compare/scraper/lidl"
	"grocery-price-compare/services"
	"grocery-price-compare/utils"
)

var now = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

type fakeRunner struct {
	mu      sync.Mutex
	calls   []int
	err     error
	started chan struct{}
	release chan struct{}
}

func (f *fakeRunner) Run(ctx context.Context, country string, limit int) (*services.RunSummary, error) {
	f.mu.Lock()
	f.calls = append(f.calls, limit)
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	return &services.RunSummary{Country: country, Extracted: limit, Saved: limit, ByTier: map[string]int{"semantic": limit}}, nil
}

type fakeLoader struct {
	since   time.Time
	records []models.NormalizedRecord
	err     error
}

func (f *fakeLoader) LoadRecords(_ context.Context, since time.Time) ([]models.NormalizedRecord, error) {
	f.since = since
	return f.records, f.err
}

func newTestServer(runner ScrapeRunner, loader RecordLoader) *Server {
	return NewServer(Options{
		Runner:   runner,
		Records:  loader,
		Gatherer: prometheus.NewRegistry(),
		Logger:   utils.NewLoggerTo(io.Discard, "debug"),
		Now:      func() time.Time { return now },
	})
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apiError {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Error
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(&fakeRunner{}, &fakeLoader{}).Handler(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestScrapeSuccess(t *testing.T) {
	runner := &fakeRunner{}
	rec := do(t, newTestServer(runner, &fakeLoader{}).Handler(), http.MethodPost, "/api/scrape/HR", `{"limit": 25}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var summary services.RunSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, "hr", summary.Country)
	assert.Equal(t, 25, summary.Saved)
	assert.Equal(t, []int{25}, runner.calls)
}

func TestScrapeValidation(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"missing limit", `{}`, "limit"},
		{"zero limit", `{"limit": 0}`, "limit"},
		{"too large", `{"limit": 501}`, "limit"},
		{"unknown field", `{"limit": 5, "force": true}`, "body"},
		{"not json", `limit=5`, "body"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			runner := &fakeRunner{}
			rec := do(t, newTestServer(runner, &fakeLoader{}).Handler(), http.MethodPost, "/api/scrape/de", tc.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			apiErr := decodeError(t, rec)
			assert.Equal(t, codeValidation, apiErr.Code)
			assert.Contains(t, apiErr.Details, tc.field)
			assert.Empty(t, runner.calls)
		})
	}
}

func TestScrapeUnsupportedCountry(t *testing.T) {
	rec := do(t, newTestServer(&fakeRunner{}, &fakeLoader{}).Handler(), http.MethodPost, "/api/scrape/fr", `{"limit": 5}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, codeNotFound, decodeError(t, rec).Code)
}

func TestScrapeRejectsConcurrentRunForSameCountry(t *testing.T) {
	runner := &fakeRunner{started: make(chan struct{}), release: make(chan struct{})}
	h := newTestServer(runner, &fakeLoader{}).Handler()

	first := make(chan *httptest.ResponseRecorder)
	go func() { first <- do(t, h, http.MethodPost, "/api/scrape/at", `{"limit": 3}`) }()
	<-runner.started

	second := do(t, h, http.MethodPost, "/api/scrape/at", `{"limit": 3}`)
	assert.Equal(t, http.StatusConflict, second.Code)
	assert.Equal(t, codeConflict, decodeError(t, second).Code)

	close(runner.release)
	assert.Equal(t, http.StatusOK, (<-first).Code)

	runner.started = nil
	third := do(t, h, http.MethodPost, "/api/scrape/at", `{"limit": 3}`)
	assert.Equal(t, http.StatusOK, third.Code)
}

func TestScrapeStatusReportsRunningCountries(t *testing.T) {
	runner := &fakeRunner{started: make(chan struct{}), release: make(chan struct{})}
	h := newTestServer(runner, &fakeLoader{}).Handler()

	var status scrapeStatus
	rec := do(t, h, http.MethodGet, "/api/scrape/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.InProgress)
	assert.Empty(t, status.Running)
	assert.Empty(t, status.LastCompleted)

	first := make(chan *httptest.ResponseRecorder)
	go func() { first <- do(t, h, http.MethodPost, "/api/scrape/si", `{"limit": 2}`) }()
	<-runner.started

	rec = do(t, h, http.MethodGet, "/api/scrape/status", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.InProgress)
	assert.Equal(t, []string{"si"}, status.Running)

	close(runner.release)
	require.Equal(t, http.StatusOK, (<-first).Code)

	status = scrapeStatus{}
	rec = do(t, h, http.MethodGet, "/api/scrape/status", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.InProgress)
	assert.Empty(t, status.Running)
	assert.True(t, now.Equal(status.LastCompleted["si"]))
}

func TestScrapeInFlightIsPerServer(t *testing.T) {
	a := newTestServer(&fakeRunner{}, &fakeLoader{})
	b := newTestServer(&fakeRunner{}, &fakeLoader{})
	require.True(t, a.inFlight.start("hr"))
	assert.True(t, b.inFlight.start("hr"))
}

func TestScrapeErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"discovery", &lidl.DiscoveryError{Country: "si", SitemapErr: errors.New("HTTP 404")}, http.StatusBadGateway, codeDiscovery},
		{"batch", &lidl.BatchError{Country: "si", Failures: []lidl.URLFailure{
			{URL: "https://www.lidl.si/p/a/p1", Attempts: 3, Err: errors.New("timeout")},
		}}, http.StatusBadGateway, codeBatch},
		{"persist", errors.New("sqlite: commit"), http.StatusInternalServerError, codeInternal},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, newTestServer(&fakeRunner{err: tc.err}, &fakeLoader{}).Handler(),
				http.MethodPost, "/api/scrape/si", `{"limit": 2}`)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, decodeError(t, rec).Code)
		})
	}
}

func compareRecord(country, name, amount string) models.NormalizedRecord {
	q := 1.0
	return models.NormalizedRecord{
		MatchKey:    "type-milbona-milk-1l",
		MatchTier:   models.TierSemantic,
		Country:     country,
		Name:        name,
		Brand:       "Milbona",
		PriceAmount: decimal.RequireFromString(amount),
		Currency:    models.Currency,
		UnitBase:    models.UnitBase{Quantity: &q, Unit: models.UnitLiter},
		PriceType:   models.PriceRegular,
		Category:    "dairy",
		SourceURL:   "https://www.lidl." + country + "/p/milbona/p1",
		CapturedAt:  now.Add(-time.Hour),
	}
}

func TestCompareReturnsGroups(t *testing.T) {
	loader := &fakeLoader{records: []models.NormalizedRecord{
		compareRecord("hr", "Milbona Mlijeko 3.5% 1L", "1.09"),
		compareRecord("de", "Milbona Milch 3.5% 1L", "0.99"),
	}}
	rec := do(t, newTestServer(&fakeRunner{}, loader).Handler(), http.MethodGet, "/api/compare?days=3", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, now.Add(-72*time.Hour), loader.since)

	var groups []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &groups))
	require.Len(t, groups, 1)
	assert.Equal(t, "type-milbona-milk-1l", groups[0]["matchKey"])
	assert.Equal(t, "Milbona Milch 3.5% 1L", groups[0]["name"])
	countries := groups[0]["countries"].(map[string]any)
	assert.Contains(t, countries, "hr")
	assert.Contains(t, countries, "de")
}

func TestCompareDefaultsAndEmpty(t *testing.T) {
	loader := &fakeLoader{}
	rec := do(t, newTestServer(&fakeRunner{}, loader).Handler(), http.MethodGet, "/api/compare", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
	assert.Equal(t, now.Add(-7*24*time.Hour), loader.since)
}

func TestCompareRejectsBadDays(t *testing.T) {
	h := newTestServer(&fakeRunner{}, &fakeLoader{}).Handler()
	for _, q := range []string{"days=0", "days=366", "days=abc"} {
		rec := do(t, h, http.MethodGet, "/api/compare?"+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestCompareLoadFailure(t *testing.T) {
	rec := do(t, newTestServer(&fakeRunner{}, &fakeLoader{err: errors.New("db down")}).Handler(),
		http.MethodGet, "/api/compare", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewScrape(reg)
	m.URLSucceeded("hr")

	s := NewServer(Options{
		Runner:   &fakeRunner{},
		Records:  &fakeLoader{},
		Gatherer: reg,
		Logger:   utils.NewLoggerTo(io.Discard, "debug"),
	})
	rec := do(t, s.Handler(), http.MethodGet, "/metrics", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `scrape_urls_total{country="hr",outcome="success"} 1`)
}

func TestCountries(t *testing.T) {
	rec := do(t, newTestServer(&fakeRunner{}, &fakeLoader{}).Handler(), http.MethodGet, "/api/countries", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `["at","de","hr","si"]`, rec.Body.String())
}
