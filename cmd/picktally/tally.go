package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"picktally/internal/config"
	"picktally/internal/fetcher"
	"picktally/internal/observability"
	"picktally/internal/pipeline"
	"picktally/internal/report"
	"picktally/internal/search"
	"picktally/internal/types"
)

var (
	queryStr     string
	teamASpec    string
	teamBSpec    string
	results      int
	days         int
	allowDomains string
	denyDomains  string
	outPath      string
	mdPath       string
	providerName string
	fetcherType  string
)

// tallyCmd creates the "tally" subcommand.
func tallyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tally",
		Short: "Run one prediction tally",
		Long: `Search for prediction articles about a matchup, fetch and filter them,
and tally the predicted winners.

Team specs are comma-separated synonym lists; the first entry is the
display label:

  picktally tally --query "Texans vs 49ers prediction" \
    --team-a "Houston Texans,Texans,Houston" \
    --team-b "San Francisco 49ers,49ers,San Francisco,Niners" \
    --results 50 --days 5 --out predictions.csv`,
		RunE: runTally,
	}

	cmd.Flags().StringVarP(&queryStr, "query", "q", "", "search query (required)")
	cmd.Flags().StringVar(&teamASpec, "team-a", "", "team A synonyms, comma-separated (required)")
	cmd.Flags().StringVar(&teamBSpec, "team-b", "", "team B synonyms, comma-separated (required)")
	cmd.Flags().IntVarP(&results, "results", "n", 0, "search results to request (default from config)")
	cmd.Flags().IntVarP(&days, "days", "d", 0, "recency window in days (default from config)")
	cmd.Flags().StringVar(&allowDomains, "allow", "", "comma-separated domain allow list")
	cmd.Flags().StringVar(&denyDomains, "deny", "", "comma-separated domain deny list")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "CSV output path (default from config)")
	cmd.Flags().StringVar(&mdPath, "md", "", "optional Markdown summary path")
	cmd.Flags().StringVarP(&providerName, "provider", "p", "", "search provider: serper, serpapi")
	cmd.Flags().StringVar(&fetcherType, "fetcher", "", "page fetcher: http, browser")

	cmd.MarkFlagRequired("query")
	cmd.MarkFlagRequired("team-a")
	cmd.MarkFlagRequired("team-b")

	return cmd
}

// runTally executes the tally command.
func runTally(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cfg)
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := setupLogger(&cfg.Logging)

	teamA, err := types.ParseTeam(teamASpec)
	if err != nil {
		return fmt.Errorf("parse --team-a: %w", err)
	}
	teamB, err := types.ParseTeam(teamBSpec)
	if err != nil {
		return fmt.Errorf("parse --team-b: %w", err)
	}

	q := types.Query{
		Search:  queryStr,
		Matchup: types.Matchup{TeamA: teamA, TeamB: teamB},
		Results: cfg.Search.Results,
		Days:    cfg.Filter.Days,
		Allow:   cfg.Filter.Allow,
		Deny:    cfg.Filter.Deny,
	}
	if err := q.Validate(); err != nil {
		return fmt.Errorf("invalid query: %w", err)
	}

	// The API key check runs before anything touches the network.
	key, err := cfg.ResolveAPIKey()
	if err != nil {
		return err
	}

	provider, err := search.New(&cfg.Search, key, logger)
	if err != nil {
		return err
	}

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

	pipe := pipeline.New(provider, f, cfg, logger, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	tally, err := pipe.Run(ctx, q)
	if err != nil {
		return err
	}

	// The CSV is written even when no articles survived the filters,
	// so downstream consumers always find a well-formed file.
	if err := report.WriteCSVFile(cfg.Output.CSV, tally); err != nil {
		return err
	}
	if cfg.Output.Markdown != "" {
		if err := report.WriteMarkdownFile(cfg.Output.Markdown, tally); err != nil {
			return err
		}
	}

	if len(tally.Sources) == 0 {
		fmt.Printf("No eligible articles found in the last %d days (or filters too strict).\n", tally.Days)
	}
	fmt.Println()
	if err := report.WriteText(os.Stdout, tally); err != nil {
		return err
	}
	fmt.Printf("Sources saved to: %s\n", cfg.Output.CSV)
	if cfg.Output.Markdown != "" {
		fmt.Printf("Markdown summary: %s\n", cfg.Output.Markdown)
	}

	logger.Info("tally finished", "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

// newFetcher builds the configured page fetcher.
func newFetcher(cfg *config.Config, logger *slog.Logger) (fetcher.Fetcher, error) {
	switch cfg.Fetcher.Type {
	case "browser":
		var opts []fetcher.BrowserOption
		if cfg.Proxy.Enabled {
			opts = append(opts, fetcher.WithBrowserProxy(fetcher.NewProxyManager(&cfg.Proxy, logger)))
		}
		return fetcher.NewBrowserFetcher(cfg, logger, opts...)
	default:
		return fetcher.NewHTTPFetcher(cfg, logger)
	}
}

// applyCLIOverrides applies command-line flag values to the config.
func applyCLIOverrides(cfg *config.Config) {
	if providerName != "" {
		cfg.Search.Provider = strings.ToLower(providerName)
	}
	if fetcherType != "" {
		cfg.Fetcher.Type = strings.ToLower(fetcherType)
	}
	if results > 0 {
		cfg.Search.Results = results
	}
	if days > 0 {
		cfg.Filter.Days = days
	}
	if allowDomains != "" {
		cfg.Filter.Allow = splitList(allowDomains)
	}
	if denyDomains != "" {
		cfg.Filter.Deny = splitList(denyDomains)
	}
	if outPath != "" {
		cfg.Output.CSV = outPath
	}
	if mdPath != "" {
		cfg.Output.Markdown = mdPath
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
