package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for picktally.
type Config struct {
	Search  SearchConfig  `mapstructure:"search"  yaml:"search"`
	Fetcher FetcherConfig `mapstructure:"fetcher" yaml:"fetcher"`
	Proxy   ProxyConfig   `mapstructure:"proxy"   yaml:"proxy"`
	Filter  FilterConfig  `mapstructure:"filter"  yaml:"filter"`
	Output  OutputConfig  `mapstructure:"output"  yaml:"output"`
	Server  ServerConfig  `mapstructure:"server"  yaml:"server"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// SearchConfig selects and configures the search provider. Provider
// choice is configuration, never a runtime branch on data.
type SearchConfig struct {
	Provider string        `mapstructure:"provider" yaml:"provider"` // serper, serpapi
	APIKey   string        `mapstructure:"api_key"  yaml:"api_key"`
	Results  int           `mapstructure:"results"  yaml:"results"`
	Timeout  time.Duration `mapstructure:"timeout"  yaml:"timeout"`
}

// FetcherConfig controls the page fetcher.
type FetcherConfig struct {
	Type            string        `mapstructure:"type"              yaml:"type"` // http, browser
	Concurrency     int           `mapstructure:"concurrency"       yaml:"concurrency"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"   yaml:"request_timeout"`
	PolitenessDelay time.Duration `mapstructure:"politeness_delay"  yaml:"politeness_delay"`
	FollowRedirects bool          `mapstructure:"follow_redirects"  yaml:"follow_redirects"`
	MaxRedirects    int           `mapstructure:"max_redirects"     yaml:"max_redirects"`
	MaxBodySize     int64         `mapstructure:"max_body_size"     yaml:"max_body_size"`
	TLSInsecure     bool          `mapstructure:"tls_insecure"      yaml:"tls_insecure"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    yaml:"max_idle_conns"`
	UserAgents      []string      `mapstructure:"user_agents"       yaml:"user_agents"`
}

// ProxyConfig controls proxy rotation.
type ProxyConfig struct {
	Enabled      bool     `mapstructure:"enabled"        yaml:"enabled"`
	Rotation     string   `mapstructure:"rotation"       yaml:"rotation"`
	URLs         []string `mapstructure:"urls"           yaml:"urls"`
	RotateOnFail bool     `mapstructure:"rotate_on_fail" yaml:"rotate_on_fail"`
}

// FilterConfig controls the recency cutoff and domain lists. Days is a
// strict filter: undated articles and articles older than the window
// are dropped, not down-ranked.
type FilterConfig struct {
	Days  int      `mapstructure:"days"  yaml:"days"`
	Allow []string `mapstructure:"allow" yaml:"allow"`
	Deny  []string `mapstructure:"deny"  yaml:"deny"`
}

// OutputConfig holds default output paths; CLI flags override them.
type OutputConfig struct {
	CSV      string `mapstructure:"csv"      yaml:"csv"`
	Markdown string `mapstructure:"markdown" yaml:"markdown"`
}

// ServerConfig controls the HTTP wrapper.
type ServerConfig struct {
	Port         int           `mapstructure:"port"          yaml:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"  yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// MetricsConfig controls the metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Search: SearchConfig{
			Provider: "serper",
			Results:  50,
			Timeout:  30 * time.Second,
		},
		Fetcher: FetcherConfig{
			Type:            "http",
			Concurrency:     4,
			RequestTimeout:  30 * time.Second,
			PolitenessDelay: 1 * time.Second,
			FollowRedirects: true,
			MaxRedirects:    10,
			MaxBodySize:     10 * 1024 * 1024, // 10MB
			IdleConnTimeout: 90 * time.Second,
			MaxIdleConns:    100,
			UserAgents: []string{
				"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0 Safari/537.36",
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			},
		},
		Proxy: ProxyConfig{
			Enabled:      false,
			Rotation:     "round_robin",
			RotateOnFail: true,
		},
		Filter: FilterConfig{
			Days: 5,
			Deny: []string{
				"reddit.com",
				"facebook.com",
				"youtube.com",
				"twitter.com",
				"x.com",
				"instagram.com",
			},
		},
		Output: OutputConfig{
			CSV: "predictions.csv",
		},
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 10 * time.Minute, // a tally run fetches many pages
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}
