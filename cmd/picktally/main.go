package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"picktally/internal/config"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "picktally",
		Short: "picktally — tally sports game predictions from the open web",
		Long: `picktally searches the web for articles predicting the outcome of a
sports matchup, fetches the results, keeps only articles published
within a recency window, extracts the predicted winner from each, and
tallies the votes.

Output is a CSV of per-article sources plus an optional Markdown
summary. The same run is available over HTTP via "picktally serve".`,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(tallyCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("picktally %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			fmt.Printf("Search:\n")
			fmt.Printf("  Provider:          %s\n", cfg.Search.Provider)
			fmt.Printf("  Results:           %d\n", cfg.Search.Results)
			fmt.Printf("  Timeout:           %s\n", cfg.Search.Timeout)
			fmt.Printf("\nFetcher:\n")
			fmt.Printf("  Type:              %s\n", cfg.Fetcher.Type)
			fmt.Printf("  Concurrency:       %d\n", cfg.Fetcher.Concurrency)
			fmt.Printf("  Request Timeout:   %s\n", cfg.Fetcher.RequestTimeout)
			fmt.Printf("  Politeness Delay:  %s\n", cfg.Fetcher.PolitenessDelay)
			fmt.Printf("  Max Body Size:     %d bytes\n", cfg.Fetcher.MaxBodySize)
			fmt.Printf("  User Agents:       %d configured\n", len(cfg.Fetcher.UserAgents))
			fmt.Printf("\nProxy:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.Proxy.Enabled)
			fmt.Printf("  Rotation:          %s\n", cfg.Proxy.Rotation)
			fmt.Printf("  Count:             %d\n", len(cfg.Proxy.URLs))
			fmt.Printf("\nFilter:\n")
			fmt.Printf("  Days:              %d\n", cfg.Filter.Days)
			fmt.Printf("  Allow:             %s\n", strings.Join(cfg.Filter.Allow, ", "))
			fmt.Printf("  Deny:              %s\n", strings.Join(cfg.Filter.Deny, ", "))
			fmt.Printf("\nOutput:\n")
			fmt.Printf("  CSV:               %s\n", cfg.Output.CSV)
			fmt.Printf("  Markdown:          %s\n", cfg.Output.Markdown)
			fmt.Printf("\nServer:\n")
			fmt.Printf("  Port:              %d\n", cfg.Server.Port)
			fmt.Printf("\nMetrics:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.Metrics.Enabled)
			fmt.Printf("  Port:              %d\n", cfg.Metrics.Port)
			return nil
		},
	}
}

// setupLogger creates a structured logger per the logging config. The
// --verbose flag forces debug level.
func setupLogger(cfg *config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	out := os.Stderr
	if strings.ToLower(cfg.Output) == "stdout" {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler)
}
