// Package config defines the moltguard configuration and its loading
// rules: JSON file, MOLTGUARD_* environment overrides, defaults.
package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/harun/moltguard/pkg/ratelimit"
)

// Config represents the main moltguard configuration
type Config struct {
	// Moltbook API access
	Moltbook MoltbookConfig `json:"moltbook" mapstructure:"moltbook"`

	// Learned classifier (layer 1)
	Classifier ClassifierConfig `json:"classifier" mapstructure:"classifier"`

	// Rule engine and scan cache (layer 2)
	Filter FilterConfig `json:"filter" mapstructure:"filter"`

	// Author reputation and blocklist (layer 0)
	Reputation ReputationConfig `json:"reputation" mapstructure:"reputation"`

	// Append-only audit trail
	Audit AuditConfig `json:"audit" mapstructure:"audit"`

	// Per-action write rate limits
	RateLimits map[string][]WindowConfig `json:"rate_limits" mapstructure:"rate_limits"`

	// Admin gateway (health, metrics, blocklist, audit tail)
	Gateway GatewayConfig `json:"gateway" mapstructure:"gateway"`

	// Scheduled platform-rules refresh
	PlatformRules PlatformRulesConfig `json:"platform_rules" mapstructure:"platform_rules"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// MoltbookConfig holds upstream API access configuration
type MoltbookConfig struct {
	BaseURL string `json:"base_url" mapstructure:"base_url"`
	APIKey  string `json:"api_key" mapstructure:"api_key"`
	Timeout int    `json:"timeout" mapstructure:"timeout"` // seconds
}

// ClassifierConfig holds learned-classifier configuration
type ClassifierConfig struct {
	Enabled   bool    `json:"enabled" mapstructure:"enabled"`
	Provider  string  `json:"provider" mapstructure:"provider"` // anthropic, openai
	Model     string  `json:"model" mapstructure:"model"`
	APIKey    string  `json:"api_key" mapstructure:"api_key"`
	Threshold float64 `json:"threshold" mapstructure:"threshold"`
	Timeout   int     `json:"timeout" mapstructure:"timeout"` // seconds
}

// FilterConfig holds rule engine and scan cache configuration
type FilterConfig struct {
	CacheCapacity int    `json:"cache_capacity" mapstructure:"cache_capacity"`
	RulePack      string `json:"rule_pack" mapstructure:"rule_pack"`   // optional extra rules, JSON
	WatchRules    bool   `json:"watch_rules" mapstructure:"watch_rules"` // hot-reload the pack on change
}

// ReputationConfig holds author blocklist configuration
type ReputationConfig struct {
	FlagThreshold int    `json:"flag_threshold" mapstructure:"flag_threshold"`
	BlockDuration int    `json:"block_duration" mapstructure:"block_duration"` // seconds, 0 = permanent
	BlocklistPath string `json:"blocklist_path" mapstructure:"blocklist_path"`
}

// AuditConfig holds audit trail configuration
type AuditConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// WindowConfig is one sliding rate-limit window
type WindowConfig struct {
	MaxCalls int `json:"max_calls" mapstructure:"max_calls"`
	Seconds  int `json:"seconds" mapstructure:"seconds"`
}

// GatewayConfig holds admin gateway server configuration
type GatewayConfig struct {
	Enabled      bool   `json:"enabled" mapstructure:"enabled"`
	Port         int    `json:"port" mapstructure:"port"`
	Host         string `json:"host" mapstructure:"host"`
	SharedSecret string `json:"shared_secret" mapstructure:"shared_secret"`
}

// PlatformRulesConfig holds the scheduled platform-rules fetch
type PlatformRulesConfig struct {
	Enabled   bool   `json:"enabled" mapstructure:"enabled"`
	URL       string `json:"url" mapstructure:"url"`
	Schedule  string `json:"schedule" mapstructure:"schedule"` // cron expression
	CachePath string `json:"cache_path" mapstructure:"cache_path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Moltbook: MoltbookConfig{
			BaseURL: "https://www.moltbook.com/api/v1",
			Timeout: 30,
		},
		Classifier: ClassifierConfig{
			Enabled:   false,
			Provider:  "anthropic",
			Threshold: 0.5,
			Timeout:   10,
		},
		Filter: FilterConfig{
			CacheCapacity: 512,
		},
		Reputation: ReputationConfig{
			FlagThreshold: 3,
			BlockDuration: 0,
		},
		RateLimits: map[string][]WindowConfig{
			"post":      {{MaxCalls: 1, Seconds: 1800}},
			"comment":   {{MaxCalls: 1, Seconds: 20}, {MaxCalls: 50, Seconds: 86400}},
			"vote":      {{MaxCalls: 30, Seconds: 60}},
			"subscribe": {{MaxCalls: 10, Seconds: 3600}},
		},
		Gateway: GatewayConfig{
			Enabled: false,
			Port:    8710,
			Host:    "127.0.0.1",
		},
		PlatformRules: PlatformRulesConfig{
			Enabled:  false,
			URL:      "https://www.moltbook.com",
			Schedule: "0 */4 * * *",
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
		DataDir: "",
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Windows converts the configured rate limits into limiter windows.
func (c *Config) Windows() map[string][]ratelimit.Window {
	out := make(map[string][]ratelimit.Window, len(c.RateLimits))
	for action, windows := range c.RateLimits {
		for _, w := range windows {
			out[action] = append(out[action], ratelimit.Window{
				MaxCalls: w.MaxCalls,
				Duration: time.Duration(w.Seconds) * time.Second,
			})
		}
	}
	return out
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	v := NewValidator()

	if c.Moltbook.BaseURL == "" {
		return fmt.Errorf("moltbook base_url is required")
	}
	if err := v.ValidateURL(c.Moltbook.BaseURL); err != nil {
		return fmt.Errorf("moltbook base_url: %w", err)
	}
	if c.Moltbook.Timeout <= 0 {
		return fmt.Errorf("moltbook timeout must be positive, got %d", c.Moltbook.Timeout)
	}

	if c.Classifier.Enabled {
		if err := v.ValidateProvider(c.Classifier.Provider); err != nil {
			return err
		}
		if err := v.ValidateAPIKey(c.Classifier.APIKey, c.Classifier.Provider); err != nil {
			return err
		}
		if err := v.ValidateThreshold(c.Classifier.Threshold); err != nil {
			return err
		}
	}

	if c.Filter.CacheCapacity < 0 {
		return fmt.Errorf("filter cache_capacity cannot be negative, got %d", c.Filter.CacheCapacity)
	}

	if c.Reputation.FlagThreshold < 1 {
		return fmt.Errorf("reputation flag_threshold must be at least 1, got %d", c.Reputation.FlagThreshold)
	}
	if c.Reputation.BlockDuration < 0 {
		return fmt.Errorf("reputation block_duration cannot be negative, got %d", c.Reputation.BlockDuration)
	}

	for action, windows := range c.RateLimits {
		if len(windows) == 0 {
			return fmt.Errorf("rate limit action %q has no windows", action)
		}
		for _, w := range windows {
			if w.MaxCalls < 1 {
				return fmt.Errorf("rate limit action %q: max_calls must be at least 1", action)
			}
			if w.Seconds < 1 {
				return fmt.Errorf("rate limit action %q: window must be at least one second", action)
			}
		}
	}

	if c.Gateway.Enabled {
		if c.Gateway.Port < 1 || c.Gateway.Port > 65535 {
			return fmt.Errorf("gateway port must be between 1 and 65535, got %d", c.Gateway.Port)
		}
	}

	if c.PlatformRules.Enabled {
		if err := v.ValidateURL(c.PlatformRules.URL); err != nil {
			return fmt.Errorf("platform_rules url: %w", err)
		}
		if c.PlatformRules.Schedule == "" {
			return fmt.Errorf("platform_rules schedule is required when enabled")
		}
	}

	if err := v.ValidateLogLevel(c.Logging.Level); err != nil {
		return err
	}

	return nil
}
