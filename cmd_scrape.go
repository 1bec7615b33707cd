package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	scrapeLimit int
	scrapeNoCSV bool
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape [country...]",
	Short: "Acquire, normalize and persist listings for one or more countries",
	Long:  "Countries default to COUNTRIES. Countries are acquired concurrently, each on its own browser tab.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		countries := cfg.Countries
		if len(args) > 0 {
			countries = make([]string, 0, len(args))
			for _, a := range args {
				countries = append(countries, strings.ToLower(strings.TrimSpace(a)))
			}
		}
		limit := cfg.ScrapeLimit
		if cmd.Flags().Changed("limit") {
			limit = scrapeLimit
		}

		env, err := initPipeline(ctx, !scrapeNoCSV)
		if err != nil {
			return err
		}
		defer env.Close()

		logger.Info("=== Lidl price scrape starting ===")
		logger.Info("Countries: %s | limit: %d | concurrency: %d | delay: %v",
			strings.Join(countries, ","), limit, cfg.MaxConcurrency, cfg.RequestDelay)

		failed := 0
		for _, outcome := range env.acquirer.AcquireAll(ctx, countries, limit) {
			if outcome.Err != nil {
				logger.Error("[%s] acquisition failed: %v", outcome.Country, outcome.Err)
				failed++
				continue
			}
			summary, err := env.pipeline.Process(ctx, outcome.Result)
			if err != nil {
				logger.Error("[%s] persist failed: %v", outcome.Country, err)
				failed++
				continue
			}
			logger.Info("[%s] discovered %d | extracted %d | saved %d | failed URLs %d | session %s",
				summary.Country, summary.Discovered, summary.Extracted, summary.Saved,
				len(summary.Failures), summary.SessionID)
		}

		if !scrapeNoCSV {
			logger.Info("Raw listings saved to %s", cfg.CSVOutputPath)
		}
		if failed == len(countries) {
			return fmt.Errorf("all %d countries failed", failed)
		}
		return nil
	},
}

func init() {
	scrapeCmd.Flags().IntVarP(&scrapeLimit, "limit", "n", 0, "product URLs per country (default SCRAPE_LIMIT)")
	scrapeCmd.Flags().BoolVar(&scrapeNoCSV, "no-csv", false, "skip the raw CSV export")
	rootCmd.AddCommand(scrapeCmd)
}
