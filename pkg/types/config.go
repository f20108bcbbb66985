package types

import "time"

// HTTPConfig holds shared HTTP settings used by source adapters.
type HTTPConfig struct {
	// Timeout is the per-attempt HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "litfinder/1.0 (mailto:team@example.org)").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// RetryConfig configures the retry policy shared by source adapters.
type RetryConfig struct {
	// MaxAttempts caps attempts per request, including the first (default 3).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts" mapstructure:"max_attempts"`

	// BaseDelay is the first exponential backoff delay (default 1s).
	BaseDelay time.Duration `json:"base_delay" yaml:"base_delay" mapstructure:"base_delay"`

	// MaxRetryAfter clamps provider-supplied Retry-After delays (default 60s).
	MaxRetryAfter time.Duration `json:"max_retry_after" yaml:"max_retry_after" mapstructure:"max_retry_after"`
}

// OpenAlexConfig holds settings for the OpenAlex source.
type OpenAlexConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// BaseURL overrides the API root (default https://api.openalex.org).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// Email is sent as the mailto parameter for polite pool access.
	Email string `json:"email,omitempty" yaml:"email,omitempty" mapstructure:"email"`

	// APIKey is an optional premium API key.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// RequestsPerSecond throttles outbound calls (default 10).
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// OAIConfig holds settings for the OAI-PMH (CyberLeninka) source.
type OAIConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// BaseURL overrides the OAI endpoint (default https://cyberleninka.ru/oai).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// MaxPages bounds resumption-token pages harvested per set (default 5).
	MaxPages int `json:"max_pages" yaml:"max_pages" mapstructure:"max_pages"`

	// RequestsPerSecond throttles outbound calls (default 2).
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// CacheBackendKind selects the result cache backend.
type CacheBackendKind string

const (
	CacheNone   CacheBackendKind = "none"
	CacheMemory CacheBackendKind = "memory"
	CacheRedis  CacheBackendKind = "redis"
	CacheSQLite CacheBackendKind = "sqlite"
)

// CacheConfig holds result cache settings.
type CacheConfig struct {
	// Backend selects none, memory, redis or sqlite (default sqlite for the CLI).
	Backend CacheBackendKind `json:"backend" yaml:"backend" mapstructure:"backend"`

	// RedisURL is a redis:// URL used by the redis backend.
	RedisURL string `json:"redis_url,omitempty" yaml:"redis_url,omitempty" mapstructure:"redis_url"`

	// SQLitePath is the database file used by the sqlite backend.
	SQLitePath string `json:"sqlite_path,omitempty" yaml:"sqlite_path,omitempty" mapstructure:"sqlite_path"`

	// SearchTTL bounds how long search results stay cached (default 30m).
	SearchTTL time.Duration `json:"search_ttl" yaml:"search_ttl" mapstructure:"search_ttl"`

	// ArticleTTL bounds how long single articles stay cached (default 24h).
	ArticleTTL time.Duration `json:"article_ttl" yaml:"article_ttl" mapstructure:"article_ttl"`

	// OpTimeout bounds every backend call so a slow cache never delays a search (default 250ms).
	OpTimeout time.Duration `json:"op_timeout" yaml:"op_timeout" mapstructure:"op_timeout"`
}

// Config groups all litfinder settings.
type Config struct {
	HTTP     HTTPConfig     `json:"http" yaml:"http" mapstructure:"http"`
	Retry    RetryConfig    `json:"retry" yaml:"retry" mapstructure:"retry"`
	OpenAlex OpenAlexConfig `json:"openalex" yaml:"openalex" mapstructure:"openalex"`
	OAI      OAIConfig      `json:"cyberleninka" yaml:"cyberleninka" mapstructure:"cyberleninka"`
	Cache    CacheConfig    `json:"cache" yaml:"cache" mapstructure:"cache"`

	// DefaultLimit applies when a query omits a limit (default 20).
	DefaultLimit int `json:"default_limit" yaml:"default_limit" mapstructure:"default_limit"`

	// SourceTimeout bounds one adapter call including its retries (default 2m).
	// Zero leaves adapters bounded only by their retry schedule.
	SourceTimeout time.Duration `json:"source_timeout" yaml:"source_timeout" mapstructure:"source_timeout"`
}

// DefaultConfig returns the settings used when no config file is present.
func DefaultConfig() Config {
	return Config{
		HTTP: HTTPConfig{
			Timeout:   30 * time.Second,
			UserAgent: "litfinder/1.0",
		},
		Retry: RetryConfig{
			MaxAttempts:   3,
			BaseDelay:     time.Second,
			MaxRetryAfter: 60 * time.Second,
		},
		OpenAlex: OpenAlexConfig{
			Enabled:           true,
			RequestsPerSecond: 10,
		},
		OAI: OAIConfig{
			Enabled:           true,
			MaxPages:          5,
			RequestsPerSecond: 2,
		},
		Cache: CacheConfig{
			Backend:    CacheSQLite,
			SQLitePath: "litfinder-cache.db",
			SearchTTL:  30 * time.Minute,
			ArticleTTL: 24 * time.Hour,
			OpTimeout:  250 * time.Millisecond,
		},
		DefaultLimit:  DefaultLimit,
		SourceTimeout: 2 * time.Minute,
	}
}
