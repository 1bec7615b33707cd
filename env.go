package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"grocery-price-compare/metrics"
	"grocery-price-compare/scraper/lidl"
	"grocery-price-compare/services"
	"grocery-price-compare/storage"
)

// environment holds the collaborators shared by the commands.
type environment struct {
	store    storage.Store
	csv      *storage.CSVWriter
	registry *prometheus.Registry
	metrics  *metrics.Scrape
	acquirer *lidl.Acquirer
	pipeline *services.Pipeline
}

func initStore(ctx context.Context) (storage.Store, error) {
	switch cfg.DBDriver {
	case "sqlite":
		return storage.NewSQLite(ctx, cfg.SQLitePath, logger)
	case "postgres":
		return storage.NewPostgres(ctx, cfg.DSN(), logger)
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.DBDriver)
	}
}

// initPipeline opens the store and wires the acquirer and pipeline. The raw
// CSV export is only opened when withCSV is set.
func initPipeline(ctx context.Context, withCSV bool) (*environment, error) {
	store, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	env := &environment{store: store, registry: prometheus.NewRegistry()}
	env.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	env.metrics = metrics.NewScrape(env.registry)

	var raw storage.RawListingWriter
	if withCSV {
		env.csv, err = storage.NewCSVWriter(cfg.CSVOutputPath)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		raw = env.csv
	}

	env.acquirer = lidl.New(cfg, lidl.DefaultCountries, lidl.NewChromeOpener(cfg, logger), env.metrics, logger)
	env.pipeline = services.NewPipeline(env.acquirer, store, raw, env.metrics, logger)
	return env, nil
}

func (e *environment) Close() {
	if e.csv != nil {
		if err := e.csv.Close(); err != nil {
			logger.Warn("[main] closing CSV: %v", err)
		}
	}
	if err := e.store.Close(); err != nil {
		logger.Warn("[main] closing store: %v", err)
	}
}
