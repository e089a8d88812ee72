package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the archiver. It is also the
// persisted user-preferences store: filters, limits and toggles saved with
// Save survive across runs.
type Config struct {
	// Site describes the source feed and its allow-listed hosts
	Site SiteConfig `yaml:"site" json:"site"`

	// Fetch holds network timeout and retry configuration
	Fetch FetchConfig `yaml:"fetch" json:"fetch"`

	// Discovery holds infinite-scroll discovery configuration
	Discovery DiscoveryConfig `yaml:"discovery" json:"discovery"`

	// Export holds export output and pacing configuration
	Export ExportConfig `yaml:"export" json:"export"`

	// Filter holds the inclusive publication-date range
	Filter FilterConfig `yaml:"filter" json:"filter"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// SiteConfig describes the source site
type SiteConfig struct {
	BaseURL    string   `yaml:"base_url" json:"base_url"`
	Hosts      []string `yaml:"hosts" json:"hosts"`             // hosts whose /posts/{id} links count as posts
	AssetHosts []string `yaml:"asset_hosts" json:"asset_hosts"` // additional hosts assets/stylesheets may be fetched from
	UserAgent  string   `yaml:"user_agent" json:"user_agent"`
	Session    string   `yaml:"-" json:"-"` // session cookie, never persisted to disk
}

// FetchConfig holds network configuration
type FetchConfig struct {
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	RetryDelay  time.Duration `yaml:"retry_delay" json:"retry_delay"`
}

// DiscoveryConfig holds discovery loop configuration
type DiscoveryConfig struct {
	MaxLoadAttempts int           `yaml:"max_load_attempts" json:"max_load_attempts"`
	LoadMoreWindow  time.Duration `yaml:"load_more_window" json:"load_more_window"`
	ScrollWindow    time.Duration `yaml:"scroll_window" json:"scroll_window"`
	PollInterval    time.Duration `yaml:"poll_interval" json:"poll_interval"`
}

// ExportConfig holds export output configuration
type ExportConfig struct {
	OutputDir   string        `yaml:"output_dir" json:"output_dir"`
	FallbackDir string        `yaml:"fallback_dir" json:"fallback_dir"`
	OnlyNew     bool          `yaml:"only_new" json:"only_new"`
	NewestFirst bool          `yaml:"newest_first" json:"newest_first"`
	Limit       int           `yaml:"limit" json:"limit"`
	AssetDelay  time.Duration `yaml:"asset_delay" json:"asset_delay"`
	PostDelay   time.Duration `yaml:"post_delay" json:"post_delay"`
}

// FilterConfig holds the persisted date-range strings (YYYY-MM-DD)
type FilterConfig struct {
	From string `yaml:"from" json:"from"`
	To   string `yaml:"to" json:"to"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults. The
// timeouts and attempt caps match the source widget's tuning.
func DefaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			BaseURL: "https://subscribestar.adult",
			Hosts: []string{
				"subscribestar.adult",
				"www.subscribestar.adult",
				"subscribestar.com",
				"www.subscribestar.com",
			},
			AssetHosts: []string{
				"assets.subscribestar.com",
				"d3ts7pb9ldoin4.cloudfront.net",
				"ss-uploads-prod.b-cdn.net",
			},
			UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
		},
		Fetch: FetchConfig{
			Timeout:     30 * time.Second,
			MaxAttempts: 3,
			RetryDelay:  time.Second,
		},
		Discovery: DiscoveryConfig{
			MaxLoadAttempts: 15,
			LoadMoreWindow:  4 * time.Second,
			ScrollWindow:    2600 * time.Millisecond,
			PollInterval:    500 * time.Millisecond,
		},
		Export: ExportConfig{
			OutputDir:   "./archive",
			FallbackDir: "./downloads",
			OnlyNew:     true,
			NewestFirst: true,
			Limit:       20,
			AssetDelay:  80 * time.Millisecond,
			PostDelay:   100 * time.Millisecond,
		},
		Filter: FilterConfig{},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if base := os.Getenv("SSARCHIVE_BASE_URL"); base != "" {
		c.Site.BaseURL = base
	}
	if session := os.Getenv("SSARCHIVE_SESSION"); session != "" {
		c.Site.Session = session
	}
	if ua := os.Getenv("SSARCHIVE_USER_AGENT"); ua != "" {
		c.Site.UserAgent = ua
	}
	if out := os.Getenv("SSARCHIVE_OUTPUT_DIR"); out != "" {
		c.Export.OutputDir = out
	}
	if limit := os.Getenv("SSARCHIVE_LIMIT"); limit != "" {
		var val int
		fmt.Sscanf(limit, "%d", &val)
		if val > 0 {
			c.Export.Limit = val
		}
	}
	if onlyNew := os.Getenv("SSARCHIVE_ONLY_NEW"); onlyNew != "" {
		c.Export.OnlyNew = strings.ToLower(onlyNew) == "true"
	}
	if level := os.Getenv("SSARCHIVE_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		".ssarchive.yaml",
		".ssarchive.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "ssarchive", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "ssarchive", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".ssarchive.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Site.BaseURL == "" {
		errs = append(errs, errors.New("site base URL is required"))
	}
	if !strings.HasPrefix(c.Site.BaseURL, "http://") && !strings.HasPrefix(c.Site.BaseURL, "https://") {
		errs = append(errs, errors.New("site base URL must be http(s)"))
	}
	if len(c.Site.Hosts) == 0 {
		errs = append(errs, errors.New("at least one allowed host is required"))
	}

	if c.Fetch.Timeout <= 0 {
		errs = append(errs, errors.New("fetch timeout must be positive"))
	}
	if c.Fetch.MaxAttempts <= 0 {
		errs = append(errs, errors.New("fetch max attempts must be positive"))
	}

	if c.Discovery.MaxLoadAttempts <= 0 {
		errs = append(errs, errors.New("discovery max load attempts must be positive"))
	}
	if c.Discovery.PollInterval <= 0 {
		errs = append(errs, errors.New("discovery poll interval must be positive"))
	}

	if c.Export.OutputDir == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Export.Limit < 0 {
		errs = append(errs, errors.New("limit cannot be negative"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file. Used to persist user preferences
// (filters, limits, toggles) between runs.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if base, ok := flags["base-url"].(string); ok && base != "" {
		c.Site.BaseURL = base
	}
	if out, ok := flags["output"].(string); ok && out != "" {
		c.Export.OutputDir = out
	}
	if limit, ok := flags["limit"].(int); ok && limit > 0 {
		c.Export.Limit = limit
	}
	if onlyNew, ok := flags["only-new"].(bool); ok {
		c.Export.OnlyNew = onlyNew
	}
	if newestFirst, ok := flags["newest-first"].(bool); ok {
		c.Export.NewestFirst = newestFirst
	}
	if from, ok := flags["from"].(string); ok && from != "" {
		c.Filter.From = from
	}
	if to, ok := flags["to"].(string); ok && to != "" {
		c.Filter.To = to
	}
	if attempts, ok := flags["max-attempts"].(int); ok && attempts > 0 {
		c.Fetch.MaxAttempts = attempts
	}
	if level, ok := flags["log-level"].(string); ok && level != "" {
		c.Logging.Level = level
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".ssarchive.env"))

	// Start with defaults
	config := DefaultConfig()

	// Load from config file
	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Override with command line flags
	config.MergeCommandLineFlags(flags)

	// Validate final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
