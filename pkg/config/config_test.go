package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, "https://subscribestar.adult", cfg.Site.BaseURL)
	assert.NotEmpty(t, cfg.Site.Hosts)
	assert.NotEmpty(t, cfg.Site.UserAgent)

	assert.Equal(t, 30*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, 3, cfg.Fetch.MaxAttempts)

	assert.Equal(t, 15, cfg.Discovery.MaxLoadAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Discovery.PollInterval)

	assert.Equal(t, "./archive", cfg.Export.OutputDir)
	assert.True(t, cfg.Export.OnlyNew)
	assert.True(t, cfg.Export.NewestFirst)
	assert.Equal(t, 20, cfg.Export.Limit)

	assert.Equal(t, "info", cfg.Logging.Level)

	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SSARCHIVE_BASE_URL", "https://example.org")
	t.Setenv("SSARCHIVE_SESSION", "session=abc")
	t.Setenv("SSARCHIVE_OUTPUT_DIR", "/tmp/archive")
	t.Setenv("SSARCHIVE_LIMIT", "7")
	t.Setenv("SSARCHIVE_ONLY_NEW", "false")
	t.Setenv("SSARCHIVE_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "https://example.org", cfg.Site.BaseURL)
	assert.Equal(t, "session=abc", cfg.Site.Session)
	assert.Equal(t, "/tmp/archive", cfg.Export.OutputDir)
	assert.Equal(t, 7, cfg.Export.Limit)
	assert.False(t, cfg.Export.OnlyNew)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvIgnoresInvalidLimit(t *testing.T) {
	t.Setenv("SSARCHIVE_LIMIT", "not-a-number")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())
	assert.Equal(t, 20, cfg.Export.Limit, "invalid limit must keep the default")
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"output":       "/tmp/out",
		"limit":        5,
		"only-new":     false,
		"newest-first": false,
		"from":         "2024-01-01",
		"to":           "2024-06-30",
		"max-attempts": 9,
		"log-level":    "warn",
	})

	assert.Equal(t, "/tmp/out", cfg.Export.OutputDir)
	assert.Equal(t, 5, cfg.Export.Limit)
	assert.False(t, cfg.Export.OnlyNew)
	assert.False(t, cfg.Export.NewestFirst)
	assert.Equal(t, "2024-01-01", cfg.Filter.From)
	assert.Equal(t, "2024-06-30", cfg.Filter.To)
	assert.Equal(t, 9, cfg.Fetch.MaxAttempts)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("SSARCHIVE_OUTPUT_DIR", "/tmp/from-env")

	cfg, err := Load("", map[string]interface{}{"output": "/tmp/from-flag"})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-flag", cfg.Export.OutputDir, "flags must win over the environment")
}

func TestValidateFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing base URL", func(c *Config) { c.Site.BaseURL = "" }, "base URL"},
		{"non-http base URL", func(c *Config) { c.Site.BaseURL = "ftp://example.org" }, "http(s)"},
		{"no hosts", func(c *Config) { c.Site.Hosts = nil }, "host"},
		{"zero timeout", func(c *Config) { c.Fetch.Timeout = 0 }, "timeout"},
		{"zero attempts", func(c *Config) { c.Fetch.MaxAttempts = 0 }, "attempts"},
		{"zero poll interval", func(c *Config) { c.Discovery.PollInterval = 0 }, "poll interval"},
		{"missing output dir", func(c *Config) { c.Export.OutputDir = "" }, "output directory"},
		{"negative limit", func(c *Config) { c.Export.Limit = -1 }, "negative"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.Filter.From = "2024-01-01"
	cfg.Filter.To = "2024-06-30"
	cfg.Export.Limit = 50
	cfg.Export.OnlyNew = false
	cfg.Fetch.Timeout = 12 * time.Second
	cfg.Site.Session = "session=secret"

	require.NoError(t, cfg.Save(path))

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))

	assert.Equal(t, "2024-01-01", loaded.Filter.From)
	assert.Equal(t, "2024-06-30", loaded.Filter.To)
	assert.Equal(t, 50, loaded.Export.Limit)
	assert.False(t, loaded.Export.OnlyNew)
	assert.Equal(t, 12*time.Second, loaded.Fetch.Timeout)
}

func TestSaveNeverPersistsSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.Site.Session = "session=supersecret"
	require.NoError(t, cfg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(data), "supersecret"), "session cookie written to the config file")
}

func TestLoadMissingFileIsError(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err, "an explicitly named missing file must error")
}
