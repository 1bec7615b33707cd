package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"grocery-price-compare/api"
	"grocery-price-compare/scraper/lidl"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		addr := serveAddr
		if addr == "" {
			addr = cfg.HTTPAddr
		}
		srv := api.NewServer(api.Options{
			Runner:    env.pipeline,
			Records:   env.store,
			Countries: lidl.DefaultCountries,
			Gatherer:  env.registry,
			Logger:    logger,
		})
		return srv.ListenAndServe(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default HTTP_ADDR)")
	rootCmd.AddCommand(serveCmd)
}
