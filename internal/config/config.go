// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package config

import (
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
	Store    StoreConfig    `koanf:"store"`
	Engine   EngineConfig   `koanf:"engine"`
	Analysis AnalysisConfig `koanf:"analysis"`
	Usage    UsageConfig    `koanf:"usage"`
	Purge    PurgeConfig    `koanf:"purge"`
	Events   EventsConfig   `koanf:"events"`
	Security SecurityConfig `koanf:"security"`
	Schedule ScheduleConfig `koanf:"schedule"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"` // development, staging, production
}

// LoggingConfig holds logging settings for zerolog.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: include caller file:line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// StoreConfig selects the record store backend.
//
// Environment Variables:
//   - STORE_BACKEND: badger, redis, memory (default: badger)
//   - STORE_PARTITION: partition key for report records (default: reports)
//   - BADGER_PATH, BADGER_IN_MEMORY, BADGER_SYNC_WRITES
//   - REDIS_ADDR, REDIS_PASSWORD, REDIS_DB, REDIS_KEY_PREFIX
type StoreConfig struct {
	Backend   string       `koanf:"backend"`
	Partition string       `koanf:"partition"`
	Badger    BadgerConfig `koanf:"badger"`
	Redis     RedisConfig  `koanf:"redis"`
}

// BadgerConfig configures the embedded store.
type BadgerConfig struct {
	Path        string  `koanf:"path"`
	InMemory    bool    `koanf:"in_memory"`
	SyncWrites  bool    `koanf:"sync_writes"`
	Compression bool    `koanf:"compression"`
	GCRatio     float64 `koanf:"gc_ratio"`
}

// RedisConfig configures the shared store.
type RedisConfig struct {
	Addr        string        `koanf:"addr"`
	Password    string        `koanf:"password"`
	DB          int           `koanf:"db"`
	KeyPrefix   string        `koanf:"key_prefix"`
	DialTimeout time.Duration `koanf:"dial_timeout"`
}

// EngineConfig controls the compute-once lifecycle of report fields.
type EngineConfig struct {
	// PollInterval is how often a waiter re-reads a Pending field.
	PollInterval time.Duration `koanf:"poll_interval"`

	// ShortDeadline bounds waits on the four rating categories, LongDeadline
	// bounds waits on Optimize.
	ShortDeadline time.Duration `koanf:"short_deadline"`
	LongDeadline  time.Duration `koanf:"long_deadline"`

	// ConditionalWrites claims a field with compare-and-swap when the
	// backend supports it.
	ConditionalWrites bool `koanf:"conditional_writes"`

	// LocalCoalescing merges same-process callers for one field.
	LocalCoalescing bool `koanf:"local_coalescing"`

	// Resolver is auto, scan or index.
	Resolver string `koanf:"resolver"`

	// DeckSize is the number of members every identity must have.
	DeckSize int `koanf:"deck_size"`
}

// BreakerConfig mirrors breaker.Config.
type BreakerConfig struct {
	MaxRequests  uint32        `koanf:"max_requests"`
	Interval     time.Duration `koanf:"interval"`
	Timeout      time.Duration `koanf:"timeout"`
	MinRequests  uint32        `koanf:"min_requests"`
	FailureRatio float64       `koanf:"failure_ratio"`
}

// AnalysisConfig configures the LLM-backed analyzer.
//
// Environment Variables:
//   - OPENAI_API_KEY: completion endpoint key (required)
//   - OPENAI_BASE_URL: endpoint base (default: https://api.openai.com)
//   - ANALYSIS_KNOWLEDGE_PATH: YAML card notes (optional)
//   - ANALYSIS_MODEL_OFFENSE ... ANALYSIS_MODEL_OPTIMIZE: per-category model overrides
type AnalysisConfig struct {
	BaseURL       string            `koanf:"base_url"`
	APIKey        string            `koanf:"api_key"`
	Timeout       time.Duration     `koanf:"timeout"`
	MaxTokens     int               `koanf:"max_tokens"`
	TopK          int               `koanf:"top_k"`
	KnowledgePath string            `koanf:"knowledge_path"`
	Models        map[string]string `koanf:"models"`
	Breaker       BreakerConfig     `koanf:"breaker"`
}

// UsageConfig configures the Clash Royale crawl and snapshot output.
//
// Environment Variables:
//   - CLASH_ROYALE_API_KEY: bearer key (required for refresh)
//   - CLASH_ROYALE_LOCATION_ID: location for the clan ranking (default: 57000006)
//   - USAGE_SNAPSHOT_DIR: directory receiving decks.csv
type UsageConfig struct {
	BaseURL       string        `koanf:"base_url"`
	APIKey        string        `koanf:"api_key"`
	LocationID    int           `koanf:"location_id"`
	TopClans      int           `koanf:"top_clans"`
	PlayerDelay   time.Duration `koanf:"player_delay"`
	RateLimitWait time.Duration `koanf:"rate_limit_wait"`
	MaxAttempts   int           `koanf:"max_attempts"`
	Concurrency   int           `koanf:"concurrency"`
	Timeout       time.Duration `koanf:"timeout"`
	SnapshotDir   string        `koanf:"snapshot_dir"`
	Breaker       BreakerConfig `koanf:"breaker"`
}

// PurgeConfig configures bulk deletion of report records.
type PurgeConfig struct {
	BatchSize int `koanf:"batch_size"`
}

// EventsConfig configures the domain event bus.
type EventsConfig struct {
	Enabled      bool   `koanf:"enabled"`
	Transport    string `koanf:"transport"` // gochannel or nats
	Topic        string `koanf:"topic"`
	NATSURL      string `koanf:"nats_url"`
	EmbeddedNATS bool   `koanf:"embedded_nats"`
	EmbeddedPort int    `koanf:"embedded_port"`
	Buffer       int64  `koanf:"buffer"`
	Audit        bool   `koanf:"audit"`
}

// SecurityConfig holds admin authentication and request limiting settings.
type SecurityConfig struct {
	// AuthMode is none or jwt. Only admin routes are protected.
	AuthMode          string        `koanf:"auth_mode"`
	JWTSecret         string        `koanf:"jwt_secret"`
	JWTIssuer         string        `koanf:"jwt_issuer"`
	TokenTTL          time.Duration `koanf:"token_ttl"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	Casbin            CasbinConfig  `koanf:"casbin"`
}

// CasbinConfig locates the RBAC model and policy. Empty paths use the
// embedded defaults.
type CasbinConfig struct {
	ModelPath  string `koanf:"model_path"`
	PolicyPath string `koanf:"policy_path"`
}

// ScheduleConfig sets the periodic maintenance jobs. Refresh and purge run
// on fixed days of the month at RunHour UTC, given as a list like
// "10,20,30"; "off" disables a job. A zero GC interval disables store GC.
type ScheduleConfig struct {
	UsageRefreshDays string        `koanf:"usage_refresh_days"`
	ReportPurgeDays  string        `koanf:"report_purge_days"`
	RunHour          int           `koanf:"run_hour"`
	StoreGCInterval  time.Duration `koanf:"store_gc_interval"`
}

// Load loads configuration from defaults, config file and environment.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
