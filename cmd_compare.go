package main

import (
	"time"

	"github.com/spf13/cobra"

	"grocery-price-compare/services"
	"grocery-price-compare/storage"
)

var (
	compareDays int
	compareJSON string
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Aggregate stored prices into cross-country comparison groups",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		window := time.Duration(compareDays) * 24 * time.Hour
		groups, err := services.Compare(ctx, store, window, time.Now().UTC())
		if err != nil {
			return err
		}

		path := compareJSON
		if path == "" {
			path = cfg.JSONOutputPath
		}
		if err := storage.WriteGroupsJSON(path, groups); err != nil {
			return err
		}
		logger.Info("[compare] %d comparison groups written to %s", len(groups), path)

		insights := services.NewInsightService(logger)
		insights.Print(insights.Generate(groups))
		return nil
	},
}

func init() {
	compareCmd.Flags().IntVar(&compareDays, "days", 7, "only use prices captured in the last N days (0 = all)")
	compareCmd.Flags().StringVarP(&compareJSON, "out", "o", "", "JSON output path (default JSON_OUTPUT_PATH)")
	rootCmd.AddCommand(compareCmd)
}
