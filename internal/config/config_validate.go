// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/clashops/internal/supervisor/services"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateLogging,
		c.validateStore,
		c.validateEngine,
		c.validateAnalysis,
		c.validateUsage,
		c.validatePurge,
		c.validateEvents,
		c.validateSecurity,
		c.validateSchedule,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

// validateServer validates server configuration
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive")
	}
	return nil
}

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

// validateLogging validates logging configuration
func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

// validateStore validates the record store backend and its settings
func (c *Config) validateStore() error {
	if strings.TrimSpace(c.Store.Partition) == "" {
		return fmt.Errorf("STORE_PARTITION must not be empty")
	}
	switch c.Store.Backend {
	case "badger":
		if !c.Store.Badger.InMemory && c.Store.Badger.Path == "" {
			return fmt.Errorf("BADGER_PATH is required unless BADGER_IN_MEMORY is set")
		}
		if c.Store.Badger.GCRatio <= 0 || c.Store.Badger.GCRatio >= 1 {
			return fmt.Errorf("BADGER_GC_RATIO must be between 0 and 1 (exclusive)")
		}
	case "redis":
		if c.Store.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR is required when STORE_BACKEND is redis")
		}
	case "memory":
	default:
		return fmt.Errorf("STORE_BACKEND must be one of: badger, redis, memory")
	}
	return nil
}

// validateEngine validates the polling and deadline settings
func (c *Config) validateEngine() error {
	e := c.Engine
	if e.PollInterval <= 0 {
		return fmt.Errorf("ENGINE_POLL_INTERVAL must be positive")
	}
	if e.ShortDeadline < e.PollInterval {
		return fmt.Errorf("ENGINE_SHORT_DEADLINE (%v) must be at least ENGINE_POLL_INTERVAL (%v)", e.ShortDeadline, e.PollInterval)
	}
	if e.LongDeadline < e.ShortDeadline {
		return fmt.Errorf("ENGINE_LONG_DEADLINE (%v) must be at least ENGINE_SHORT_DEADLINE (%v)", e.LongDeadline, e.ShortDeadline)
	}
	switch e.Resolver {
	case "auto", "scan", "index":
	default:
		return fmt.Errorf("ENGINE_RESOLVER must be one of: auto, scan, index")
	}
	if e.DeckSize < 1 {
		return fmt.Errorf("DECK_SIZE must be at least 1")
	}
	return nil
}

var analysisCategories = map[string]bool{
	"offense":     true,
	"defense":     true,
	"synergy":     true,
	"versatility": true,
	"optimize":    true,
}

// validateAnalysis validates the LLM settings. The API key itself is checked
// when the client is built so that tooling without analysis can still load.
func (c *Config) validateAnalysis() error {
	a := c.Analysis
	if a.Timeout <= 0 {
		return fmt.Errorf("ANALYSIS_TIMEOUT must be positive")
	}
	if a.MaxTokens < 1 {
		return fmt.Errorf("ANALYSIS_MAX_TOKENS must be at least 1")
	}
	if a.TopK < 1 {
		return fmt.Errorf("ANALYSIS_TOP_K must be at least 1")
	}
	for name := range a.Models {
		if !analysisCategories[strings.ToLower(name)] {
			return fmt.Errorf("analysis.models: unknown category %q", name)
		}
	}
	if a.APIKey != "" && containsPlaceholder(a.APIKey) {
		return fmt.Errorf("OPENAI_API_KEY contains a placeholder value")
	}
	return validateBreaker("analysis.breaker", a.Breaker)
}

// validateUsage validates crawl pacing and the snapshot destination
func (c *Config) validateUsage() error {
	u := c.Usage
	if u.TopClans < 1 {
		return fmt.Errorf("USAGE_TOP_CLANS must be at least 1")
	}
	if u.MaxAttempts < 1 {
		return fmt.Errorf("USAGE_MAX_ATTEMPTS must be at least 1")
	}
	if u.Concurrency < 1 {
		return fmt.Errorf("USAGE_CONCURRENCY must be at least 1")
	}
	if u.PlayerDelay < 0 || u.RateLimitWait < 0 {
		return fmt.Errorf("usage delays must not be negative")
	}
	if u.SnapshotDir == "" {
		return fmt.Errorf("USAGE_SNAPSHOT_DIR is required")
	}
	return validateBreaker("usage.breaker", u.Breaker)
}

func validateBreaker(section string, b BreakerConfig) error {
	if b.FailureRatio <= 0 || b.FailureRatio > 1 {
		return fmt.Errorf("%s.failure_ratio must be in (0, 1]", section)
	}
	if b.Timeout <= 0 {
		return fmt.Errorf("%s.timeout must be positive", section)
	}
	return nil
}

// validatePurge validates purge batching
func (c *Config) validatePurge() error {
	if c.Purge.BatchSize < 1 || c.Purge.BatchSize > 10000 {
		return fmt.Errorf("PURGE_BATCH_SIZE must be between 1 and 10000")
	}
	return nil
}

// validateEvents validates the event bus transport
func (c *Config) validateEvents() error {
	if !c.Events.Enabled {
		return nil
	}
	switch c.Events.Transport {
	case "gochannel":
	case "nats":
		if !c.Events.EmbeddedNATS && c.Events.NATSURL == "" {
			return fmt.Errorf("NATS_URL is required when EVENTS_TRANSPORT is nats without an embedded server")
		}
	default:
		return fmt.Errorf("EVENTS_TRANSPORT must be one of: gochannel, nats")
	}
	if c.Events.Topic == "" {
		return fmt.Errorf("EVENTS_TOPIC must not be empty")
	}
	return nil
}

// validateSecurity validates security configuration
func (c *Config) validateSecurity() error {
	switch c.Security.AuthMode {
	case "none":
	case "jwt":
		if err := c.validateJWTSecret(); err != nil {
			return err
		}
		if c.Security.TokenTTL <= 0 {
			return fmt.Errorf("TOKEN_TTL must be positive")
		}
	default:
		return fmt.Errorf("AUTH_MODE must be one of: none, jwt")
	}

	if err := c.validateCORS(); err != nil {
		return err
	}
	return c.validateRateLimits()
}

// validateJWTSecret validates the JWT secret configuration
func (c *Config) validateJWTSecret() error {
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when AUTH_MODE is jwt")
	}
	if len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters for security")
	}
	if containsPlaceholder(c.Security.JWTSecret) {
		return fmt.Errorf("JWT_SECRET contains a placeholder value - generate a secure secret with: openssl rand -base64 32")
	}
	return nil
}

// validateCORS rejects wildcard origins in production when admin auth is on.
func (c *Config) validateCORS() error {
	if c.Security.AuthMode != "none" && c.hasWildcardCORS() && c.IsProduction() {
		return fmt.Errorf("CORS_ORIGINS=* (wildcard) is not allowed in production with authentication enabled; " +
			"set specific origins, e.g. CORS_ORIGINS=https://yourdomain.com")
	}
	return nil
}

func (c *Config) hasWildcardCORS() bool {
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

// ShouldWarnAboutCORS returns true if CORS configuration has security concerns
// that should be logged at startup
func (c *Config) ShouldWarnAboutCORS() bool {
	return c.Security.AuthMode != "none" && c.hasWildcardCORS()
}

// Rate limit constants
const (
	minRateLimitRequests = 1
	maxRateLimitRequests = 100000
	minRateLimitWindow   = time.Second
	maxRateLimitWindow   = time.Hour
)

// validateRateLimits validates rate limiting configuration bounds.
func (c *Config) validateRateLimits() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < minRateLimitRequests || c.Security.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Security.RateLimitWindow < minRateLimitWindow || c.Security.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

// validateSchedule checks the day lists and the run hour.
func (c *Config) validateSchedule() error {
	s := c.Schedule
	if _, err := services.ParseMonthDays(s.UsageRefreshDays, s.RunHour); err != nil {
		return fmt.Errorf("USAGE_REFRESH_DAYS: %w", err)
	}
	if _, err := services.ParseMonthDays(s.ReportPurgeDays, s.RunHour); err != nil {
		return fmt.Errorf("REPORT_PURGE_DAYS: %w", err)
	}
	if s.StoreGCInterval < 0 {
		return fmt.Errorf("STORE_GC_INTERVAL must not be negative")
	}
	return nil
}

// IsProduction returns true if the application is running in production mode.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "production" || env == "prod"
}

// placeholderPatterns are common markers of a value nobody filled in.
var placeholderPatterns = []string{
	"REPLACE",
	"CHANGEME",
	"CHANGE_ME",
	"YOUR_SECRET",
	"YOUR_KEY",
	"PLACEHOLDER",
	"EXAMPLE",
}

func containsPlaceholder(value string) bool {
	upper := strings.ToUpper(value)
	for _, pattern := range placeholderPatterns {
		if strings.Contains(upper, pattern) {
			return true
		}
	}
	return false
}
