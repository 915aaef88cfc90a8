package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"picktally/internal/types"
)

// Load reads configuration from file, environment, and CLI flags.
// Priority (highest to lowest): CLI flags > env vars > config file > defaults.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	// Environment variable support
	v.SetEnvPrefix("PICKTALLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Load config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Search default locations
		v.SetConfigName("picktally")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".picktally"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is okay if not explicitly specified
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// ResolveAPIKey returns the API key for the configured provider,
// falling back to the provider's conventional environment variables
// (SERPER_API_KEY / SERPER_KEY for serper, SERPAPI_KEY for serpapi).
// A missing key is a ConfigError; callers must check it before any
// network call is made.
func (c *Config) ResolveAPIKey() (string, error) {
	if c.Search.APIKey != "" {
		return c.Search.APIKey, nil
	}

	var key string
	switch c.Search.Provider {
	case "serper":
		key = os.Getenv("SERPER_API_KEY")
		if key == "" {
			key = os.Getenv("SERPER_KEY")
		}
	case "serpapi":
		key = os.Getenv("SERPAPI_KEY")
	default:
		return "", &types.ConfigError{
			Field: "search.provider",
			Err:   fmt.Errorf("unknown provider %q", c.Search.Provider),
		}
	}

	if key == "" {
		return "", &types.ConfigError{
			Field: "search.api_key",
			Err:   fmt.Errorf("%w for provider %q", types.ErrMissingAPIKey, c.Search.Provider),
		}
	}
	return key, nil
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("search.provider", cfg.Search.Provider)
	v.SetDefault("search.results", cfg.Search.Results)
	v.SetDefault("search.timeout", cfg.Search.Timeout)

	v.SetDefault("fetcher.type", cfg.Fetcher.Type)
	v.SetDefault("fetcher.concurrency", cfg.Fetcher.Concurrency)
	v.SetDefault("fetcher.request_timeout", cfg.Fetcher.RequestTimeout)
	v.SetDefault("fetcher.politeness_delay", cfg.Fetcher.PolitenessDelay)
	v.SetDefault("fetcher.follow_redirects", cfg.Fetcher.FollowRedirects)
	v.SetDefault("fetcher.max_redirects", cfg.Fetcher.MaxRedirects)
	v.SetDefault("fetcher.max_body_size", cfg.Fetcher.MaxBodySize)
	v.SetDefault("fetcher.idle_conn_timeout", cfg.Fetcher.IdleConnTimeout)
	v.SetDefault("fetcher.max_idle_conns", cfg.Fetcher.MaxIdleConns)
	v.SetDefault("fetcher.user_agents", cfg.Fetcher.UserAgents)

	v.SetDefault("proxy.enabled", cfg.Proxy.Enabled)
	v.SetDefault("proxy.rotation", cfg.Proxy.Rotation)
	v.SetDefault("proxy.rotate_on_fail", cfg.Proxy.RotateOnFail)

	v.SetDefault("filter.days", cfg.Filter.Days)
	v.SetDefault("filter.deny", cfg.Filter.Deny)

	v.SetDefault("output.csv", cfg.Output.CSV)
	v.SetDefault("output.markdown", cfg.Output.Markdown)

	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.read_timeout", cfg.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", cfg.Server.WriteTimeout)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.output", cfg.Logging.Output)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.port", cfg.Metrics.Port)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}
