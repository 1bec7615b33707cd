package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"grocery-price-compare/scraper/lidl"
	"grocery-price-compare/services"
)

const (
	defaultCompareDays = 7
	maxCompareDays     = 365
)

type scrapeRequest struct {
	Limit int `json:"limit" validate:"required,min=1,max=500"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCountries(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.countries.Codes())
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	country := strings.ToLower(chi.URLParam(r, "country"))
	if _, ok := s.countries[country]; !ok {
		writeError(w, http.StatusNotFound, codeNotFound, "unsupported country "+country, nil)
		return
	}

	var req scrapeRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeValidationError(w, err)
		return
	}

	if !s.inFlight.start(country) {
		writeError(w, http.StatusConflict, codeConflict, "a scrape for "+country+" is already running", nil)
		return
	}
	defer s.inFlight.done(country)

	logger := s.logger.With("country", country)
	logger.Info("[api] scrape requested (limit %d)", req.Limit)

	summary, err := s.runner.Run(r.Context(), country, req.Limit)
	if err != nil {
		logger.Error("[api] scrape failed: %v", err)
		s.writeScrapeError(w, err, summary)
		return
	}
	s.inFlight.completed(country, s.now())
	writeJSON(w, http.StatusOK, summary)
}

type scrapeStatus struct {
	InProgress    bool                 `json:"inProgress"`
	Running       []string             `json:"running"`
	LastCompleted map[string]time.Time `json:"lastCompleted"`
}

func (s *Server) handleScrapeStatus(w http.ResponseWriter, _ *http.Request) {
	running, last := s.inFlight.snapshot()
	writeJSON(w, http.StatusOK, scrapeStatus{InProgress: len(running) > 0, Running: running, LastCompleted: last})
}

func (s *Server) writeScrapeError(w http.ResponseWriter, err error, summary *services.RunSummary) {
	var (
		discoveryErr *lidl.DiscoveryError
		batchErr     *lidl.BatchError
	)
	switch {
	case errors.As(err, &discoveryErr):
		writeError(w, http.StatusBadGateway, codeDiscovery, err.Error(), nil)
	case errors.As(err, &batchErr):
		failures := make([]services.FailureSummary, 0, len(batchErr.Failures))
		for _, f := range batchErr.Failures {
			failures = append(failures, services.FailureSummary{URL: f.URL, Attempts: f.Attempts, Error: f.Error()})
		}
		writeError(w, http.StatusBadGateway, codeBatch, err.Error(), map[string]any{"failures": failures})
	default:
		var details any
		if summary != nil {
			details = summary
		}
		writeError(w, http.StatusInternalServerError, codeInternal, err.Error(), details)
	}
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	days, err := parseQueryInt(r, "days", defaultCompareDays, 1, maxCompareDays)
	if err != nil {
		writeValidationError(w, err)
		return
	}

	since := s.now().Add(-time.Duration(days) * 24 * time.Hour)
	records, err := s.records.LoadRecords(r.Context(), since)
	if err != nil {
		s.logger.Error("[api] load records: %v", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "could not load records", nil)
		return
	}
	writeJSON(w, http.StatusOK, services.Aggregate(records))
}
