package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Scrape records acquisition and persistence activity per country. A nil
// *Scrape is valid and records nothing.
type Scrape struct {
	urls      *prometheus.CounterVec
	discovery *prometheus.CounterVec
	attempts  *prometheus.HistogramVec
	duration  *prometheus.HistogramVec
	persisted *prometheus.CounterVec
	sessions  *prometheus.CounterVec
}

// NewScrape registers the scrape metrics on the provided registerer.
func NewScrape(reg prometheus.Registerer) *Scrape {
	if reg == nil {
		return &Scrape{}
	}
	urls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scrape_urls_total",
		Help: "Product URLs processed, by outcome.",
	}, []string{"country", "outcome"})
	discovery := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scrape_discovery_failures_total",
		Help: "Countries for which no product URL could be discovered.",
	}, []string{"country"})
	attempts := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scrape_fetch_attempts",
		Help:    "Attempts needed per product URL.",
		Buckets: []float64{1, 2, 3, 4, 5},
	}, []string{"country"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scrape_batch_duration_seconds",
		Help:    "Duration of a country batch in seconds.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{"country"})
	persisted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scrape_records_persisted_total",
		Help: "Normalized records committed, by match tier.",
	}, []string{"country", "tier"})
	sessions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scrape_sessions_total",
		Help: "Persistence sessions, by outcome.",
	}, []string{"country", "outcome"})
	reg.MustRegister(urls, discovery, attempts, duration, persisted, sessions)
	return &Scrape{
		urls:      urls,
		discovery: discovery,
		attempts:  attempts,
		duration:  duration,
		persisted: persisted,
		sessions:  sessions,
	}
}

func (s *Scrape) URLSucceeded(country string) {
	if s == nil || s.urls == nil {
		return
	}
	s.urls.WithLabelValues(normalizeLabel(country), "success").Inc()
}

func (s *Scrape) URLFailed(country string) {
	if s == nil || s.urls == nil {
		return
	}
	s.urls.WithLabelValues(normalizeLabel(country), "failure").Inc()
}

func (s *Scrape) DiscoveryFailed(country string) {
	if s == nil || s.discovery == nil {
		return
	}
	s.discovery.WithLabelValues(normalizeLabel(country)).Inc()
}

// ObserveAttempts records how many attempts a URL took. Zero is ignored.
func (s *Scrape) ObserveAttempts(country string, attempts int) {
	if s == nil || s.attempts == nil || attempts < 1 {
		return
	}
	s.attempts.WithLabelValues(normalizeLabel(country)).Observe(float64(attempts))
}

func (s *Scrape) ObserveBatch(country string, d time.Duration) {
	if s == nil || s.duration == nil {
		return
	}
	s.duration.WithLabelValues(normalizeLabel(country)).Observe(d.Seconds())
}

// RecordsPersisted adds n committed records of the given tier.
func (s *Scrape) RecordsPersisted(country, tier string, n int) {
	if s == nil || s.persisted == nil || n <= 0 {
		return
	}
	s.persisted.WithLabelValues(normalizeLabel(country), normalizeLabel(tier)).Add(float64(n))
}

func (s *Scrape) SessionFinished(country, outcome string) {
	if s == nil || s.sessions == nil {
		return
	}
	s.sessions.WithLabelValues(normalizeLabel(country), normalizeLabel(outcome)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
