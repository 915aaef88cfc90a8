package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"picktally/internal/api"
	"picktally/internal/config"
	"picktally/internal/observability"
	"picktally/internal/pipeline"
	"picktally/internal/search"
)

var servePort int

// serveCmd creates the "serve" subcommand.
func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Expose tally runs over HTTP.

POST /api/tally accepts a JSON body with the query, team synonym
lists, and optional results/days/allow/provider overrides, runs the
full pipeline, and returns the tally as JSON.`,
		RunE: runServe,
	}

	cmd.Flags().IntVarP(&servePort, "port", "p", 0, "listen port (default from config)")
	cmd.Flags().StringVar(&fetcherType, "fetcher", "", "page fetcher: http, browser")

	return cmd
}

// runServe executes the serve command.
func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if servePort > 0 {
		cfg.Server.Port = servePort
	}
	if fetcherType != "" {
		cfg.Fetcher.Type = fetcherType
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := setupLogger(&cfg.Logging)

	f, err := newFetcher(cfg, logger)
	if err != nil {
		return fmt.Errorf("create fetcher: %w", err)
	}
	defer f.Close()

	var opts []pipeline.Option
	if cfg.Metrics.Enabled {
		metrics := observability.NewMetrics(logger)
		if err := metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
			logger.Warn("failed to start metrics server", "error", err)
		}
		opts = append(opts, pipeline.WithMetrics(metrics))
	}

	// Each request may name its own provider; the fetcher and metrics
	// are shared across requests.
	factory := func(providerName string) (api.Runner, error) {
		runCfg := *cfg
		if providerName != "" {
			runCfg.Search.Provider = providerName
		}
		key, err := runCfg.ResolveAPIKey()
		if err != nil {
			return nil, err
		}
		provider, err := search.New(&runCfg.Search, key, logger)
		if err != nil {
			return nil, err
		}
		return pipeline.New(provider, f, cfg, logger, opts...), nil
	}

	srv := api.NewServer(&cfg.Server, factory, logger)
	return srv.Start()
}
