package api

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"grocery-price-compare/models"
	"grocery-price-compare/scraper/lidl"
	"grocery-price-compare/services"
	"grocery-price-compare/utils"
)

// ScrapeRunner runs one acquisition for a country.
type ScrapeRunner interface {
	Run(ctx context.Context, country string, limit int) (*services.RunSummary, error)
}

// RecordLoader reads persisted normalized records.
type RecordLoader interface {
	LoadRecords(ctx context.Context, since time.Time) ([]models.NormalizedRecord, error)
}

// Options wires the server's collaborators.
type Options struct {
	Runner    ScrapeRunner
	Records   RecordLoader
	Countries lidl.CountryTable
	Gatherer  prometheus.Gatherer
	Logger    *utils.Logger
	Now       func() time.Time
}

// Server exposes acquisition and comparison over HTTP.
type Server struct {
	runner    ScrapeRunner
	records   RecordLoader
	countries lidl.CountryTable
	gatherer  prometheus.Gatherer
	logger    *utils.Logger
	now       func() time.Time
	inFlight  *inFlight
}

// NewServer creates a Server. A nil Gatherer serves the default registry.
func NewServer(opts Options) *Server {
	s := &Server{
		runner:    opts.Runner,
		records:   opts.Records,
		countries: opts.Countries,
		gatherer:  opts.Gatherer,
		logger:    opts.Logger,
		now:       opts.Now,
		inFlight:  newInFlight(),
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.countries == nil {
		s.countries = lidl.DefaultCountries
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(
		chimw.RequestID,
		chimw.Recoverer,
		s.logRequests,
	)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/scrape/status", s.handleScrapeStatus)
		r.Post("/scrape/{country}", s.handleScrape)
		r.Get("/compare", s.handleCompare)
		r.Get("/countries", s.handleCountries)
	})
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("[api] listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
		defer cancel()
		s.logger.Info("[api] shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("[api] %s %s -> %d (%v) id=%s",
			r.Method, r.URL.Path, ww.Status(), time.Since(start), chimw.GetReqID(r.Context()))
	})
}

// inFlight tracks countries with a running acquisition on this server and
// when each last completed.
type inFlight struct {
	mu            sync.Mutex
	running       map[string]struct{}
	lastCompleted map[string]time.Time
}

func newInFlight() *inFlight {
	return &inFlight{running: make(map[string]struct{}), lastCompleted: make(map[string]time.Time)}
}

// start marks country as running; false means it already was.
func (f *inFlight) start(country string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.running[country]; ok {
		return false
	}
	f.running[country] = struct{}{}
	return true
}

func (f *inFlight) done(country string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.running, country)
}

func (f *inFlight) completed(country string, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastCompleted[country] = at
}

// snapshot returns the running countries in sorted order and a copy of the
// completion times.
func (f *inFlight) snapshot() ([]string, map[string]time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	running := make([]string, 0, len(f.running))
	for c := range f.running {
		running = append(running, c)
	}
	slices.Sort(running)
	last := make(map[string]time.Time, len(f.lastCompleted))
	for c, at := range f.lastCompleted {
		last[c] = at
	}
	return running, last
}
