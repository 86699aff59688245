package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/CodeMonkeyCybersecurity/osintrecon/internal/config"
	"github.com/CodeMonkeyCybersecurity/osintrecon/internal/logger"
	"github.com/CodeMonkeyCybersecurity/osintrecon/internal/orchestrator"
	"github.com/CodeMonkeyCybersecurity/osintrecon/internal/telemetry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "OSINTRECON"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	var (
		cfg *config.Config
		log *logger.Logger
	)

	rootCmd := &cobra.Command{
		Use:   "osintrecon",
		Short: "Open-source intelligence reconnaissance for a single domain",
		Long: `osintrecon - OSINT reconnaissance for one domain

Prompts for a domain, then:
  1. resolves it to an IPv4 address
  2. queries its WHOIS registration record
  3. asks Shodan what it knows about the resolved address
  4. harvests email addresses of the domain from search engine results

and prints every section followed by a summary.

CONFIGURATION:
  Flags, OSINTRECON_* environment variables (e.g. OSINTRECON_HARVEST_RESULTS)
  and an optional config file. The Shodan key is read from SHODAN_API_KEY.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = loadConfig(v)
			if err != nil {
				return fmt.Errorf("failed to initialize config: %w", err)
			}

			log, err = logger.New(cfg.Logger)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			target, err := promptDomain(cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			for _, warning := range target.Warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", warning)
			}

			tel, err := telemetry.New(ctx, cfg.Telemetry)
			if err != nil {
				log.Warnw("Telemetry disabled", "error", err)
				tel = telemetry.Noop()
			}
			defer func() {
				if err := tel.Close(); err != nil {
					log.Warnw("Failed to flush telemetry", "error", err)
				}
			}()

			recon, err := orchestrator.NewReconFactory(cfg, tel, log, cmd.OutOrStdout()).Build(ctx)
			if err != nil {
				return err
			}

			recon.Run(ctx, target.Domain)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if log == nil {
				return
			}
			// Sync errors on stdout/stderr are expected on Linux and can be safely ignored
			if err := log.Sync(); err != nil && !strings.Contains(err.Error(), "invalid argument") &&
				!strings.Contains(err.Error(), "inappropriate ioctl") {
				fmt.Fprintf(os.Stderr, "Warning: failed to sync logger: %v\n", err)
			}
		},
	}
	rootCmd.SetContext(context.Background())

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (any format viper reads: yaml, toml, json, ...)")
	flags.String("log-level", "error", "log level (debug, info, warn, error)")
	flags.String("log-format", "console", "log format (json, console)")
	v.BindPFlag("config", flags.Lookup("config"))
	v.BindPFlag("logger.level", flags.Lookup("log-level"))
	v.BindPFlag("logger.format", flags.Lookup("log-format"))

	return rootCmd
}

// loadConfig merges defaults, the optional config file, environment and
// flags, in increasing precedence.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	setDefaults(v, config.DefaultConfig())

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// API keys (environment variables only, never flags)
	v.BindEnv("shodan.api_key", envPrefix+"_SHODAN_API_KEY", "SHODAN_API_KEY")
	v.BindEnv("logger.level", envPrefix+"_LOG_LEVEL", envPrefix+"_LOGGER_LEVEL")
	v.BindEnv("logger.format", envPrefix+"_LOG_FORMAT", envPrefix+"_LOGGER_FORMAT")
	v.BindEnv("telemetry.endpoint", envPrefix+"_TELEMETRY_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &config.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *config.Config) {
	v.SetDefault("logger.level", d.Logger.Level)
	v.SetDefault("logger.format", d.Logger.Format)
	v.SetDefault("logger.output_paths", d.Logger.OutputPaths)

	v.SetDefault("telemetry.enabled", d.Telemetry.Enabled)
	v.SetDefault("telemetry.service_name", d.Telemetry.ServiceName)
	v.SetDefault("telemetry.exporter_type", d.Telemetry.ExporterType)
	v.SetDefault("telemetry.endpoint", d.Telemetry.Endpoint)
	v.SetDefault("telemetry.sample_rate", d.Telemetry.SampleRate)

	v.SetDefault("resolver.nameserver", d.Resolver.Nameserver)
	v.SetDefault("resolver.timeout", d.Resolver.Timeout)

	v.SetDefault("whois.server", d.Whois.Server)
	v.SetDefault("whois.timeout", d.Whois.Timeout)

	v.SetDefault("shodan.api_key", d.Shodan.APIKey)
	v.SetDefault("shodan.base_url", d.Shodan.BaseURL)
	v.SetDefault("shodan.timeout", d.Shodan.Timeout)

	v.SetDefault("harvest.search_url", d.Harvest.SearchURL)
	v.SetDefault("harvest.results", d.Harvest.Results)
	v.SetDefault("harvest.language", d.Harvest.Language)
	v.SetDefault("harvest.fetch_timeout", d.Harvest.FetchTimeout)
	v.SetDefault("harvest.max_page_bytes", d.Harvest.MaxPageBytes)
	v.SetDefault("harvest.concurrency", d.Harvest.Concurrency)
	v.SetDefault("harvest.allow_private", d.Harvest.AllowPrivate)
	v.SetDefault("harvest.user_agent", d.Harvest.UserAgent)
}
