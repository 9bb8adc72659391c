// Package config layers the discovery run configuration from built-in
// defaults, an optional JSON file, and YTGROWTH_* environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all application configuration for channel discovery runs.
type Config struct {
	// APIKey is the YouTube Data API v3 key. Required to talk to the API;
	// never shipped in source, always injected via flag, env, or file.
	APIKey string `json:"api_key"`
	// Region is the regionCode passed to video searches (default: "US")
	Region string `json:"region"`
	// SearchWindow bounds how far back the video search looks
	SearchWindow time.Duration `json:"search_window"`
	// MaxChannelAge is the creation-age cutoff for exported channels
	MaxChannelAge time.Duration `json:"max_channel_age"`
	// MinChannels stops the run once this many matching channels are found
	MinChannels int `json:"min_channels"`
	// MaxPages caps the number of search pages walked in one run
	MaxPages int `json:"max_pages"`
	// PageSize is the number of results per search page (1-50)
	PageSize int64 `json:"page_size"`
	// OutputPath is the spreadsheet the run writes
	OutputPath string `json:"output_path"`
	// LogLevel selects the logging verbosity (default: "info")
	LogLevel string `json:"log_level"`

	// MaxRetries caps how often a failed API call is repeated
	MaxRetries int `json:"max_retries"`
	// InitialBackoff is the delay after the first failed API call
	InitialBackoff time.Duration `json:"initial_backoff"`
	// MaxBackoff is the ceiling on the delay between retries
	MaxBackoff time.Duration `json:"max_backoff"`
	// BackoffMultiplier scales the delay after each failure (must be > 1)
	BackoffMultiplier float64 `json:"backoff_multiplier"`

	// EmptyPageRetries is how many times an empty search page is retried
	// before the feed is treated as exhausted
	EmptyPageRetries int `json:"empty_page_retries"`
	// EmptyPageDelay is the pause between empty-page retries
	EmptyPageDelay time.Duration `json:"empty_page_delay"`

	// RequestsPerSecond paces outgoing Data API calls
	RequestsPerSecond float64 `json:"requests_per_second"`
	// QuotaBudget is the estimated daily Data API quota in units
	QuotaBudget int `json:"quota_budget"`
	// QuotaReserve stops the run once estimated remaining quota drops below it
	QuotaReserve int `json:"quota_reserve"`
}

// DefaultConfig returns the values a run uses when nothing overrides them.
func DefaultConfig() *Config {
	return &Config{
		Region:            "US",
		SearchWindow:      90 * 24 * time.Hour,
		MaxChannelAge:     180 * 24 * time.Hour,
		MinChannels:       50,
		MaxPages:          100,
		PageSize:          50,
		OutputPath:        "new_youtube_channels.xlsx",
		LogLevel:          "info",
		MaxRetries:        5,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
		EmptyPageRetries:  3,
		EmptyPageDelay:    5 * time.Second,
		RequestsPerSecond: 2.0,
		QuotaBudget:       10000,
		QuotaReserve:      0,
	}
}

// Load assembles the configuration, with environment variables beating the
// config file and the config file beating defaults.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file path. An empty path falls back
// to the default search locations.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.loadFromFile(path); err != nil {
		// The file is optional unless explicitly named.
		if path != "" || !os.IsNotExist(err) {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile attempts to load config from the given path, or from
// ytgrowth.json in the current directory or home config directory.
func (c *Config) loadFromFile(path string) error {
	paths := []string{
		"ytgrowth.json",
		filepath.Join(os.Getenv("HOME"), ".config", "ytgrowth", "ytgrowth.json"),
	}
	if path != "" {
		paths = []string{path}
	}

	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			if os.IsNotExist(err) && path == "" {
				continue
			}
			return err
		}

		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse %s: %w", p, err)
		}
		return nil
	}

	return os.ErrNotExist
}

// loadFromEnv applies YTGROWTH_* variables over whatever the file set.
// Values that fail to parse are ignored.
func (c *Config) loadFromEnv() {
	if v := os.Getenv("YTGROWTH_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("YTGROWTH_REGION"); v != "" {
		c.Region = v
	}
	if v := os.Getenv("YTGROWTH_SEARCH_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.SearchWindow = d
		}
	}
	if v := os.Getenv("YTGROWTH_MAX_CHANNEL_AGE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.MaxChannelAge = d
		}
	}
	if v := os.Getenv("YTGROWTH_MIN_CHANNELS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MinChannels = n
		}
	}
	if v := os.Getenv("YTGROWTH_MAX_PAGES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxPages = n
		}
	}
	if v := os.Getenv("YTGROWTH_PAGE_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.PageSize = n
		}
	}
	if v := os.Getenv("YTGROWTH_OUTPUT"); v != "" {
		c.OutputPath = v
	}
	if v := os.Getenv("YTGROWTH_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("YTGROWTH_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxRetries = n
		}
	}
	if v := os.Getenv("YTGROWTH_INITIAL_BACKOFF"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.InitialBackoff = d
		}
	}
	if v := os.Getenv("YTGROWTH_MAX_BACKOFF"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.MaxBackoff = d
		}
	}
	if v := os.Getenv("YTGROWTH_EMPTY_PAGE_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.EmptyPageRetries = n
		}
	}
	if v := os.Getenv("YTGROWTH_EMPTY_PAGE_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.EmptyPageDelay = d
		}
	}
	if v := os.Getenv("YTGROWTH_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.RequestsPerSecond = f
		}
	}
	if v := os.Getenv("YTGROWTH_QUOTA_BUDGET"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.QuotaBudget = n
		}
	}
	if v := os.Getenv("YTGROWTH_QUOTA_RESERVE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.QuotaReserve = n
		}
	}
}

// Validate reports the first value that would break a run. The API key is
// deliberately not checked here so that config can be inspected without one;
// the client constructor rejects an empty key.
func (c *Config) Validate() error {
	if c.Region == "" {
		return fmt.Errorf("region must not be empty")
	}
	if c.SearchWindow <= 0 {
		return fmt.Errorf("search_window must be positive")
	}
	if c.MaxChannelAge <= 0 {
		return fmt.Errorf("max_channel_age must be positive")
	}
	if c.MinChannels <= 0 {
		return fmt.Errorf("min_channels must be positive")
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("max_pages must be positive")
	}
	if c.PageSize < 1 || c.PageSize > 50 {
		return fmt.Errorf("page_size must be between 1 and 50")
	}
	if c.OutputPath == "" {
		return fmt.Errorf("output_path must not be empty")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative")
	}
	if c.InitialBackoff <= 0 {
		return fmt.Errorf("initial_backoff must be positive")
	}
	if c.MaxBackoff <= 0 {
		return fmt.Errorf("max_backoff must be positive")
	}
	if c.MaxBackoff < c.InitialBackoff {
		return fmt.Errorf("max_backoff must be >= initial_backoff")
	}
	if c.BackoffMultiplier <= 1 {
		return fmt.Errorf("backoff_multiplier must be > 1")
	}
	if c.EmptyPageRetries < 0 {
		return fmt.Errorf("empty_page_retries must be non-negative")
	}
	if c.EmptyPageDelay < 0 {
		return fmt.Errorf("empty_page_delay must be non-negative")
	}
	if c.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests_per_second must be positive")
	}
	if c.QuotaBudget <= 0 {
		return fmt.Errorf("quota_budget must be positive")
	}
	if c.QuotaReserve < 0 || c.QuotaReserve >= c.QuotaBudget {
		return fmt.Errorf("quota_reserve must be in [0, quota_budget)")
	}
	return nil
}
