package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/CodeMonkeyCybersecurity/osintrecon/internal/validation"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "error", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.Equal(t, []string{"stderr"}, cfg.Logger.OutputPaths)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "https://api.shodan.io", cfg.Shodan.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Shodan.Timeout)
	assert.Equal(t, 10, cfg.Harvest.Results)
	assert.Equal(t, 5*time.Second, cfg.Harvest.FetchTimeout)
	assert.Equal(t, 1, cfg.Harvest.Concurrency)
}

func TestLoadConfigEnvironment(t *testing.T) {
	t.Setenv("SHODAN_API_KEY", "from-env")
	t.Setenv("OSINTRECON_HARVEST_RESULTS", "25")
	t.Setenv("OSINTRECON_HARVEST_FETCH_TIMEOUT", "2s")
	t.Setenv("OSINTRECON_RESOLVER_NAMESERVER", "9.9.9.9")
	t.Setenv("OSINTRECON_LOG_LEVEL", "debug")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4318")

	cfg, err := loadConfig(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Shodan.APIKey)
	assert.Equal(t, 25, cfg.Harvest.Results)
	assert.Equal(t, 2*time.Second, cfg.Harvest.FetchTimeout)
	assert.Equal(t, "9.9.9.9", cfg.Resolver.Nameserver)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "collector:4318", cfg.Telemetry.Endpoint)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "osintrecon.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
shodan:
  api_key: from-file
harvest:
  language: es
  concurrency: 3
`), 0o600))

	v := viper.New()
	v.Set("config", path)

	cfg, err := loadConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.Shodan.APIKey)
	assert.Equal(t, "es", cfg.Harvest.Language)
	assert.Equal(t, 3, cfg.Harvest.Concurrency)
	assert.Equal(t, 10, cfg.Harvest.Results, "unset keys keep their defaults")
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  string
		val  string
	}{
		{"log format", "OSINTRECON_LOG_FORMAT", "xml"},
		{"results", "OSINTRECON_HARVEST_RESULTS", "0"},
		{"concurrency", "OSINTRECON_HARVEST_CONCURRENCY", "0"},
		{"fetch timeout", "OSINTRECON_HARVEST_FETCH_TIMEOUT", "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.env, tt.val)
			_, err := loadConfig(viper.New())
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	v := viper.New()
	v.Set("config", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := loadConfig(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.yaml")
}

func TestRootCommandEmptyDomain(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetIn(strings.NewReader("\n"))
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{})

	err := root.Execute()

	require.ErrorIs(t, err, validation.ErrEmptyTarget)
	assert.Equal(t, promptText, out.String())
}

func TestRootCommandRejectsArguments(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"example.com"})

	assert.Error(t, root.Execute())
}

func TestRootCommandBadLogFormatFlag(t *testing.T) {
	root := newRootCmd()
	root.SetIn(strings.NewReader("example.com\n"))
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--log-format", "xml"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize config")
}
