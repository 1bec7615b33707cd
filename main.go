package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"grocery-price-compare/config"
	"grocery-price-compare/utils"
)

var (
	cfg    *config.Config
	logger *utils.Logger
)

var rootCmd = &cobra.Command{
	Use:   "grocery-price-compare",
	Short: "Cross-country Lidl price comparison",
	Long: "Scrapes Lidl product pages for hr, si, at and de, normalizes them into match keys " +
		"and compares the same product across countries.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		logger = utils.NewLoggerFromEnv(cfg.LogFormat, cfg.LogLevel)
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
