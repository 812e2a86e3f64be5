package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/use-agent/offerscout/models"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Driver    DriverConfig
	HTTP      HTTPConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Relay     RelayConfig
	Log       LogConfig

	// Sources is the ordered source catalogue. Filled by Load from
	// OFFERSCOUT_SOURCES_FILE or the built-in defaults.
	Sources []models.Source
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// DefaultProxy is the proxy URL for all tabs.
	DefaultProxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Stealth injects anti-bot-detection evasions into every tab.
	Stealth bool // default: true

	// AcceptLanguage is sent as an extra header on every tab.
	AcceptLanguage string // default: "en-IN,en;q=0.9"

	// BlockedResourceTypes lists resource types failed in every tab.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string

	// BlockDomains are ad and tracking hosts failed in every tab, subdomains
	// included. Sources add their own with block_domains.
	BlockDomains []string
}

// DefaultBlockDomains are the trackers and ad servers seen on the default
// shopping sources' result pages.
var DefaultBlockDomains = []string{
	"doubleclick.net",
	"googlesyndication.com",
	"googleadservices.com",
	"google-analytics.com",
	"googletagmanager.com",
	"facebook.net",
	"criteo.com",
	"criteo.net",
	"clarity.ms",
	"hotjar.com",
}

// DriverConfig controls Page Driver timing.
type DriverConfig struct {
	// SettleDelay is the wait after load-complete before extraction.
	SettleDelay time.Duration // default: 3s

	// SearchTimeout is the watchdog for the search navigation step.
	SearchTimeout time.Duration // default: 20s

	// DetailTimeout is the watchdog for the detail navigation step.
	DetailTimeout time.Duration // default: 15s

	// QueryTimeout bounds a whole query across all sources.
	QueryTimeout time.Duration // default: 90s
}

// HTTPConfig controls the plain HTTP engine.
type HTTPConfig struct {
	// Timeout is the per-request deadline.
	Timeout time.Duration // default: 10s

	// MaxBodyBytes caps the response body read.
	MaxBodyBytes int64 // default: 5 MiB
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 1

	// Burst is the maximum burst size per API key.
	Burst int // default: 3
}

// RelayConfig controls where per-source result messages go.
type RelayConfig struct {
	// BusBuffer is the per-subscriber channel capacity.
	BusBuffer int // default: 64

	// RedisAddr enables the redis stream sink when set.
	RedisAddr     string
	RedisPassword string
	RedisDB       int    // default: 0
	RedisStream   string // default: "offerscout:results"
	RedisMaxLen   int64  // default: 10000

	// WebhookURL enables the webhook sink when set.
	WebhookURL    string
	WebhookSecret string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults,
// then loads the source catalogue.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: envOr("OFFERSCOUT_HOST", "0.0.0.0"),
			Port: envIntOr("OFFERSCOUT_PORT", 8080),
			Mode: envOr("OFFERSCOUT_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:       envBoolOr("OFFERSCOUT_HEADLESS", true),
			DefaultProxy:   os.Getenv("OFFERSCOUT_PROXY"),
			NoSandbox:      envBoolOr("OFFERSCOUT_NO_SANDBOX", false),
			BrowserBin:     os.Getenv("OFFERSCOUT_BROWSER_BIN"),
			Stealth:        envBoolOr("OFFERSCOUT_STEALTH", true),
			AcceptLanguage: envOr("OFFERSCOUT_ACCEPT_LANGUAGE", "en-IN,en;q=0.9"),
			BlockedResourceTypes: envSliceOr("OFFERSCOUT_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
			BlockDomains: envSliceOr("OFFERSCOUT_BLOCK_DOMAINS", DefaultBlockDomains),
		},
		Driver: DriverConfig{
			SettleDelay:   envDurationOr("OFFERSCOUT_SETTLE_DELAY", 3*time.Second),
			SearchTimeout: envDurationOr("OFFERSCOUT_SEARCH_TIMEOUT", 20*time.Second),
			DetailTimeout: envDurationOr("OFFERSCOUT_DETAIL_TIMEOUT", 15*time.Second),
			QueryTimeout:  envDurationOr("OFFERSCOUT_QUERY_TIMEOUT", 90*time.Second),
		},
		HTTP: HTTPConfig{
			Timeout:      envDurationOr("OFFERSCOUT_HTTP_TIMEOUT", 10*time.Second),
			MaxBodyBytes: int64(envIntOr("OFFERSCOUT_HTTP_MAX_BODY", 5<<20)),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("OFFERSCOUT_AUTH_ENABLED", true),
			APIKeys: envSliceOr("OFFERSCOUT_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("OFFERSCOUT_RATE_RPS", 1.0),
			Burst:             envIntOr("OFFERSCOUT_RATE_BURST", 3),
		},
		Relay: RelayConfig{
			BusBuffer:     envIntOr("OFFERSCOUT_RELAY_BUFFER", 64),
			RedisAddr:     os.Getenv("OFFERSCOUT_REDIS_ADDR"),
			RedisPassword: os.Getenv("OFFERSCOUT_REDIS_PASSWORD"),
			RedisDB:       envIntOr("OFFERSCOUT_REDIS_DB", 0),
			RedisStream:   envOr("OFFERSCOUT_REDIS_STREAM", "offerscout:results"),
			RedisMaxLen:   int64(envIntOr("OFFERSCOUT_REDIS_MAXLEN", 10000)),
			WebhookURL:    os.Getenv("OFFERSCOUT_WEBHOOK_URL"),
			WebhookSecret: os.Getenv("OFFERSCOUT_WEBHOOK_SECRET"),
		},
		Log: LogConfig{
			Level:  envOr("OFFERSCOUT_LOG_LEVEL", "info"),
			Format: envOr("OFFERSCOUT_LOG_FORMAT", "json"),
		},
	}

	if err := validateResourceTypes("OFFERSCOUT_BLOCKED_RESOURCES", cfg.Browser.BlockedResourceTypes); err != nil {
		return nil, err
	}

	sources, err := LoadSources(os.Getenv("OFFERSCOUT_SOURCES_FILE"), envBoolOr("OFFERSCOUT_FACT_SOURCES", false))
	if err != nil {
		return nil, err
	}
	sources, err = FilterSources(sources, envSliceOr("OFFERSCOUT_SOURCES", nil))
	if err != nil {
		return nil, err
	}
	cfg.Sources = sources
	return cfg, nil
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
