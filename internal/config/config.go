package config

import (
	"fmt"
	"time"
)

type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Resolver  ResolverConfig  `mapstructure:"resolver"`
	Whois     WhoisConfig     `mapstructure:"whois"`
	Shodan    ShodanConfig    `mapstructure:"shodan"`
	Harvest   HarvestConfig   `mapstructure:"harvest"`
}

type LoggerConfig struct {
	Level       string   `mapstructure:"level"`
	Format      string   `mapstructure:"format"`
	OutputPaths []string `mapstructure:"output_paths"`
}

type TelemetryConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	ServiceName  string  `mapstructure:"service_name"`
	ExporterType string  `mapstructure:"exporter_type"`
	Endpoint     string  `mapstructure:"endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
}

// ResolverConfig selects how domains are turned into IPv4 addresses.
// An empty Nameserver means the system resolver.
type ResolverConfig struct {
	Nameserver string        `mapstructure:"nameserver"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// WhoisConfig overrides the WHOIS client. Zero values keep the library
// defaults (server discovery through IANA and its own timeout).
type WhoisConfig struct {
	Server  string        `mapstructure:"server"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type ShodanConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type HarvestConfig struct {
	SearchURL    string        `mapstructure:"search_url"`
	Results      int           `mapstructure:"results"`
	Language     string        `mapstructure:"language"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	MaxPageBytes int64         `mapstructure:"max_page_bytes"`
	Concurrency  int           `mapstructure:"concurrency"`
	AllowPrivate bool          `mapstructure:"allow_private"`
	UserAgent    string        `mapstructure:"user_agent"`
}

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

func (c *Config) Validate() error {
	switch c.Logger.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format %q (want json or console)", c.Logger.Format)
	}

	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return fmt.Errorf("telemetry sample rate must be between 0 and 1, got %v", c.Telemetry.SampleRate)
	}

	if c.Harvest.Results <= 0 {
		return fmt.Errorf("harvest results must be positive, got %d", c.Harvest.Results)
	}
	if c.Harvest.FetchTimeout <= 0 {
		return fmt.Errorf("harvest fetch timeout must be positive, got %s", c.Harvest.FetchTimeout)
	}
	if c.Harvest.Concurrency < 1 {
		return fmt.Errorf("harvest concurrency must be at least 1, got %d", c.Harvest.Concurrency)
	}

	return nil
}

// DefaultConfig mirrors the viper defaults registered in cmd/root.go.
// Tests and library callers use it directly.
func DefaultConfig() *Config {
	return &Config{
		Logger: LoggerConfig{
			Level:       "error",
			Format:      "console",
			OutputPaths: []string{"stderr"},
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			ServiceName:  "osintrecon",
			ExporterType: "otlp",
			Endpoint:     "localhost:4318",
			SampleRate:   1.0,
		},
		Resolver: ResolverConfig{
			Timeout: 5 * time.Second,
		},
		Shodan: ShodanConfig{
			BaseURL: "https://api.shodan.io",
			Timeout: 30 * time.Second,
		},
		Harvest: HarvestConfig{
			SearchURL:    "https://www.google.com/search",
			Results:      10,
			Language:     "en",
			FetchTimeout: 5 * time.Second,
			MaxPageBytes: 5 << 20,
			Concurrency:  1,
			UserAgent:    DefaultUserAgent,
		},
	}
}
