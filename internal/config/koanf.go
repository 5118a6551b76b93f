// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/clashops/config.yaml",
	"/etc/clashops/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			Environment:     "development",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Store: StoreConfig{
			Backend:   "badger",
			Partition: "reports",
			Badger: BadgerConfig{
				Path:        "/data/reports",
				SyncWrites:  true,
				Compression: true,
				GCRatio:     0.5,
			},
			Redis: RedisConfig{
				Addr:        "127.0.0.1:6379",
				KeyPrefix:   "clashops:",
				DialTimeout: 5 * time.Second,
			},
		},
		Engine: EngineConfig{
			PollInterval:      time.Second,
			ShortDeadline:     120 * time.Second,
			LongDeadline:      300 * time.Second,
			ConditionalWrites: true,
			LocalCoalescing:   true,
			Resolver:          "auto",
			DeckSize:          8,
		},
		Analysis: AnalysisConfig{
			BaseURL:   "https://api.openai.com",
			Timeout:   180 * time.Second,
			MaxTokens: 6000,
			TopK:      5,
			Models:    map[string]string{},
			Breaker:   defaultBreaker(),
		},
		Usage: UsageConfig{
			BaseURL:       "https://api.clashroyale.com/v1",
			LocationID:    57000006,
			TopClans:      10,
			PlayerDelay:   200 * time.Millisecond,
			RateLimitWait: 5 * time.Second,
			MaxAttempts:   5,
			Concurrency:   2,
			Timeout:       30 * time.Second,
			SnapshotDir:   "/data/snapshots",
			Breaker:       defaultBreaker(),
		},
		Purge: PurgeConfig{
			BatchSize: 100,
		},
		Events: EventsConfig{
			Enabled:      true,
			Transport:    "gochannel",
			Topic:        "clashops.events",
			NATSURL:      "nats://127.0.0.1:4222",
			EmbeddedNATS: false,
			EmbeddedPort: -1,
			Buffer:       256,
			Audit:        true,
		},
		Security: SecurityConfig{
			AuthMode:        "jwt",
			JWTIssuer:       "clashops",
			TokenTTL:        24 * time.Hour,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Schedule: ScheduleConfig{
			UsageRefreshDays: "10,20,30",
			ReportPurgeDays:  "1",
			StoreGCInterval:  10 * time.Minute,
		},
	}
}

func defaultBreaker() BreakerConfig {
	return BreakerConfig{
		MaxRequests:  3,
		Interval:     time.Minute,
		Timeout:      2 * time.Minute,
		MinRequests:  10,
		FailureRatio: 0.6,
	}
}

// LoadWithKoanf loads configuration using the layered approach:
//  1. Defaults from struct
//  2. Config file (YAML), if one is found
//  3. Environment variables (highest priority)
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Environment variables
	// REDIS_ADDR -> store.redis.addr
	// ANALYSIS_MODEL_OPTIMIZE -> analysis.models.optimize
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns CONFIG_PATH if it exists, else the first existing
// default path, else "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are the koanf paths that accept comma-separated env values.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields converts comma-separated strings to slices for known slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		var parts []string
		for _, p := range strings.Split(strVal, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) == 0 {
			continue
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps lowercased environment variable names to koanf paths.
var envMappings = map[string]string{
	// Server
	"http_port":        "server.port",
	"http_host":        "server.host",
	"read_timeout":     "server.read_timeout",
	"shutdown_timeout": "server.shutdown_timeout",
	"environment":      "server.environment",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Store
	"store_backend":      "store.backend",
	"store_partition":    "store.partition",
	"badger_path":        "store.badger.path",
	"badger_in_memory":   "store.badger.in_memory",
	"badger_sync_writes": "store.badger.sync_writes",
	"badger_compression": "store.badger.compression",
	"badger_gc_ratio":    "store.badger.gc_ratio",
	"redis_addr":         "store.redis.addr",
	"redis_password":     "store.redis.password",
	"redis_db":           "store.redis.db",
	"redis_key_prefix":   "store.redis.key_prefix",
	"redis_dial_timeout": "store.redis.dial_timeout",

	// Engine
	"engine_poll_interval":      "engine.poll_interval",
	"engine_short_deadline":     "engine.short_deadline",
	"engine_long_deadline":      "engine.long_deadline",
	"engine_conditional_writes": "engine.conditional_writes",
	"engine_local_coalescing":   "engine.local_coalescing",
	"engine_resolver":           "engine.resolver",
	"deck_size":                 "engine.deck_size",

	// Analysis
	"openai_api_key":                "analysis.api_key",
	"openai_base_url":               "analysis.base_url",
	"analysis_timeout":              "analysis.timeout",
	"analysis_max_tokens":           "analysis.max_tokens",
	"analysis_top_k":                "analysis.top_k",
	"analysis_knowledge_path":       "analysis.knowledge_path",
	"analysis_model_offense":        "analysis.models.offense",
	"analysis_model_defense":        "analysis.models.defense",
	"analysis_model_synergy":        "analysis.models.synergy",
	"analysis_model_versatility":    "analysis.models.versatility",
	"analysis_model_optimize":       "analysis.models.optimize",
	"analysis_breaker_timeout":      "analysis.breaker.timeout",
	"analysis_breaker_min_requests": "analysis.breaker.min_requests",

	// Usage
	"clash_royale_api_key":     "usage.api_key",
	"clash_royale_base_url":    "usage.base_url",
	"clash_royale_location_id": "usage.location_id",
	"usage_top_clans":          "usage.top_clans",
	"usage_player_delay":       "usage.player_delay",
	"usage_rate_limit_wait":    "usage.rate_limit_wait",
	"usage_max_attempts":       "usage.max_attempts",
	"usage_concurrency":        "usage.concurrency",
	"usage_timeout":            "usage.timeout",
	"usage_snapshot_dir":       "usage.snapshot_dir",

	// Purge
	"purge_batch_size": "purge.batch_size",

	// Events
	"events_enabled":       "events.enabled",
	"events_transport":     "events.transport",
	"events_topic":         "events.topic",
	"nats_url":             "events.nats_url",
	"nats_embedded":        "events.embedded_nats",
	"nats_embedded_port":   "events.embedded_port",
	"events_buffer":        "events.buffer",
	"events_audit_enabled": "events.audit",

	// Security
	"auth_mode":          "security.auth_mode",
	"jwt_secret":         "security.jwt_secret",
	"jwt_issuer":         "security.jwt_issuer",
	"token_ttl":          "security.token_ttl",
	"rate_limit_reqs":    "security.rate_limit_reqs",
	"rate_limit_window":  "security.rate_limit_window",
	"disable_rate_limit": "security.rate_limit_disabled",
	"cors_origins":       "security.cors_origins",
	"casbin_model_path":  "security.casbin.model_path",
	"casbin_policy_path": "security.casbin.policy_path",

	// Schedule
	"usage_refresh_days": "schedule.usage_refresh_days",
	"report_purge_days":  "schedule.report_purge_days",
	"schedule_run_hour":  "schedule.run_hour",
	"store_gc_interval":  "schedule.store_gc_interval",
}

// envTransformFunc transforms environment variable names to koanf config paths.
// Unmapped variables return "" and are skipped.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
