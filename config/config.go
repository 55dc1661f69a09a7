// Package config loads environment-driven configuration for the evaluator,
// its drivers, and the HTTP/MCP surfaces, adapted from config/config.go's
// envOr/envIntOr helper idiom (§6.4[FULL]).
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every tunable the engine reads from the environment.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Eval      EvalConfig
	Cache     CacheConfig
	Webhook   WebhookConfig
	Log       LogConfig
	LLM       LLMConfig
	RateLimit RateLimitConfig
	Auth      AuthConfig
}

// ServerConfig controls the HTTP API surface (cmd/drweb-server).
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8088
	Mode string // "debug"|"release"|"test"; default: "release"
}

// BrowserConfig controls the rod driver's browser instance (§6.4).
type BrowserConfig struct {
	Headless             bool // default: true, overridable by HEADLESS (§6.4)
	MaxPages             int  // default: 6
	DefaultProxy         string
	NoSandbox            bool
	BrowserBin           string
	Stealth              bool // default: true
	BlockedResourceTypes []string
}

// EvalConfig controls the evaluator's top-level policy (§4.9, §5).
type EvalConfig struct {
	DefaultTimeout      time.Duration // per-evaluation wall-clock budget, default 120s
	MaxTimeout          time.Duration // hard ceiling regardless of request, default 600s
	DefaultActionTimeout time.Duration // per-action default, default 10s
	HTTPFirstTimeout     time.Duration // how long the cheap driver gets before escalation, default 8s
	Strict               bool          // default false (§7's soft-fail-by-default)
}

// CacheConfig controls the evaluation result cache (cache/cache.go).
type CacheConfig struct {
	Enabled    bool
	MaxEntries int           // default: 500
	TTL        time.Duration // default: 10m
}

// WebhookConfig controls completion notification delivery (§4.9[FULL]).
type WebhookConfig struct {
	DefaultURL string
	Secret     string // HMAC-SHA256 signing secret; empty disables signing
	Timeout    time.Duration // default: 5s
	MaxRetries int           // default: 3
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json"|"text"; default: "json"
}

// LLMConfig controls the NaturalLanguageSelectStep plugin (§4.5[FULL]).
type LLMConfig struct {
	APIKey  string
	BaseURL string // default: "https://api.openai.com/v1"
	Model   string // default: "gpt-4o-mini"
	Timeout time.Duration
}

// RateLimitConfig controls per-key rate limiting on the HTTP surface.
type RateLimitConfig struct {
	RequestsPerSecond float64 // default: 5
	Burst             int     // default: 10
}

// AuthConfig controls API-key authentication on the HTTP surface.
type AuthConfig struct {
	Enabled bool
	APIKeys []string
}

// Load reads configuration from the environment with the defaults noted
// above. HEADLESS is the one environment input §6.4 names explicitly; every
// other variable is an addition the ambient stack needs to run a complete
// service (§6.4[FULL]).
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("DRWEB_HOST", "0.0.0.0"),
			Port: envIntOr("DRWEB_PORT", 8088),
			Mode: envOr("DRWEB_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:     envBoolOr("HEADLESS", true),
			MaxPages:     envIntOr("DRWEB_MAX_PAGES", 6),
			DefaultProxy: os.Getenv("DRWEB_PROXY"),
			NoSandbox:    envBoolOr("DRWEB_NO_SANDBOX", false),
			BrowserBin:   os.Getenv("DRWEB_BROWSER_BIN"),
			Stealth:      envBoolOr("DRWEB_STEALTH", true),
			BlockedResourceTypes: envSliceOr("DRWEB_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
		},
		Eval: EvalConfig{
			DefaultTimeout:       envDurationOr("DRWEB_DEFAULT_TIMEOUT", 120*time.Second),
			MaxTimeout:           envDurationOr("DRWEB_MAX_TIMEOUT", 600*time.Second),
			DefaultActionTimeout: envDurationOr("DRWEB_ACTION_TIMEOUT", 10*time.Second),
			HTTPFirstTimeout:     envDurationOr("DRWEB_HTTP_FIRST_TIMEOUT", 8*time.Second),
			Strict:               envBoolOr("DRWEB_STRICT", false),
		},
		Cache: CacheConfig{
			Enabled:    envBoolOr("DRWEB_CACHE_ENABLED", true),
			MaxEntries: envIntOr("DRWEB_CACHE_MAX_ENTRIES", 500),
			TTL:        envDurationOr("DRWEB_CACHE_TTL", 10*time.Minute),
		},
		Webhook: WebhookConfig{
			DefaultURL: os.Getenv("DRWEB_WEBHOOK_URL"),
			Secret:     os.Getenv("DRWEB_WEBHOOK_SECRET"),
			Timeout:    envDurationOr("DRWEB_WEBHOOK_TIMEOUT", 5*time.Second),
			MaxRetries: envIntOr("DRWEB_WEBHOOK_RETRIES", 3),
		},
		Log: LogConfig{
			Level:  envOr("DRWEB_LOG_LEVEL", "info"),
			Format: envOr("DRWEB_LOG_FORMAT", "json"),
		},
		LLM: LLMConfig{
			APIKey:  os.Getenv("DRWEB_LLM_API_KEY"),
			BaseURL: envOr("DRWEB_LLM_BASE_URL", "https://api.openai.com/v1"),
			Model:   envOr("DRWEB_LLM_MODEL", "gpt-4o-mini"),
			Timeout: envDurationOr("DRWEB_LLM_TIMEOUT", 20*time.Second),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("DRWEB_RATE_RPS", 5.0),
			Burst:             envIntOr("DRWEB_RATE_BURST", 10),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("DRWEB_AUTH_ENABLED", false),
			APIKeys: envSliceOr("DRWEB_API_KEYS", nil),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
