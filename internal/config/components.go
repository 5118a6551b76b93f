// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package config

import (
	"context"
	"os"
	"path/filepath"

	"github.com/tomtom215/clashops/internal/analysis"
	"github.com/tomtom215/clashops/internal/breaker"
	"github.com/tomtom215/clashops/internal/events"
	"github.com/tomtom215/clashops/internal/logging"
	"github.com/tomtom215/clashops/internal/report"
	"github.com/tomtom215/clashops/internal/store"
	"github.com/tomtom215/clashops/internal/supervisor/services"
	"github.com/tomtom215/clashops/internal/usage"
)

// LoggingConfig returns the logging package configuration.
func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{
		Level:     c.Logging.Level,
		Format:    c.Logging.Format,
		Caller:    c.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
	}
}

// StoreConfig returns the store.Open configuration.
func (c *Config) StoreConfig() store.Config {
	badger := store.DefaultBadgerConfig()
	badger.Path = c.Store.Badger.Path
	badger.InMemory = c.Store.Badger.InMemory
	badger.SyncWrites = c.Store.Badger.SyncWrites
	badger.Compression = c.Store.Badger.Compression
	badger.GCRatio = c.Store.Badger.GCRatio

	return store.Config{
		Backend: c.Store.Backend,
		Badger:  badger,
		Redis: store.RedisConfig{
			Addr:        c.Store.Redis.Addr,
			Password:    c.Store.Redis.Password,
			DB:          c.Store.Redis.DB,
			KeyPrefix:   c.Store.Redis.KeyPrefix,
			DialTimeout: c.Store.Redis.DialTimeout,
		},
	}
}

// EngineConfig returns the compute engine configuration.
func (c *Config) EngineConfig() report.EngineConfig {
	return report.EngineConfig{
		Partition:         c.Store.Partition,
		PollInterval:      c.Engine.PollInterval,
		ShortDeadline:     c.Engine.ShortDeadline,
		LongDeadline:      c.Engine.LongDeadline,
		ConditionalWrites: c.Engine.ConditionalWrites,
		LocalCoalescing:   c.Engine.LocalCoalescing,
	}
}

// ServiceConfig returns the report service configuration.
func (c *Config) ServiceConfig() report.ServiceConfig {
	return report.ServiceConfig{
		Partition: c.Store.Partition,
		DeckSize:  c.Engine.DeckSize,
	}
}

func (b BreakerConfig) toBreaker() breaker.Config {
	return breaker.Config{
		MaxRequests:  b.MaxRequests,
		Interval:     b.Interval,
		Timeout:      b.Timeout,
		MinRequests:  b.MinRequests,
		FailureRatio: b.FailureRatio,
	}
}

// ClientConfig returns the completion client configuration.
func (c *Config) ClientConfig() analysis.ClientConfig {
	return analysis.ClientConfig{
		BaseURL:   c.Analysis.BaseURL,
		APIKey:    c.Analysis.APIKey,
		Timeout:   c.Analysis.Timeout,
		MaxTokens: c.Analysis.MaxTokens,
		Breaker:   c.Analysis.Breaker.toBreaker(),
	}
}

// AnalyzerConfig returns the analyzer configuration. Model overrides with
// unknown category names were rejected by Validate.
func (c *Config) AnalyzerConfig() analysis.AnalyzerConfig {
	models := make(map[report.Field]string, len(c.Analysis.Models))
	for name, model := range c.Analysis.Models {
		if f, err := report.ParseField(name); err == nil && model != "" {
			models[f] = model
		}
	}
	return analysis.AnalyzerConfig{
		TopK:      c.Analysis.TopK,
		MaxTokens: c.Analysis.MaxTokens,
		Models:    models,
	}
}

// Analyzer builds the LLM analyzer. Without an API key the returned analyzer
// fails every computation; stored reports are still served.
func (c *Config) Analyzer() report.Analyzer {
	client, err := analysis.NewHTTPClient(c.ClientConfig())
	if err != nil {
		logging.Warn().Err(err).Msg("Analysis client not configured, new analyses will fail")
		return report.AnalyzerFunc(func(context.Context, report.Request) (string, error) {
			return "", err
		})
	}
	kb, kerr := analysis.LoadKnowledge(c.Analysis.KnowledgePath)
	if kerr != nil {
		logging.Warn().Err(kerr).Msg("Card knowledge not loaded, analyses run without retrieval")
		kb = analysis.NewKnowledgeBase(nil)
	}
	return analysis.NewAnalyzer(client, kb, c.AnalyzerConfig())
}

// CrawlerConfig returns the Clash Royale crawler configuration.
func (c *Config) CrawlerConfig() usage.CrawlerConfig {
	return usage.CrawlerConfig{
		BaseURL:       c.Usage.BaseURL,
		APIKey:        c.Usage.APIKey,
		LocationID:    c.Usage.LocationID,
		TopClans:      c.Usage.TopClans,
		PlayerDelay:   c.Usage.PlayerDelay,
		RateLimitWait: c.Usage.RateLimitWait,
		MaxAttempts:   c.Usage.MaxAttempts,
		Concurrency:   c.Usage.Concurrency,
		Timeout:       c.Usage.Timeout,
		Breaker:       c.Usage.Breaker.toBreaker(),
	}
}

// SnapshotPath is where the CSV snapshot is published.
func (c *Config) SnapshotPath() string {
	return filepath.Join(c.Usage.SnapshotDir, usage.SnapshotFile)
}

// EventsConfig returns the bus configuration.
func (c *Config) EventsConfig() events.Config {
	return events.Config{
		Transport:    c.Events.Transport,
		Topic:        c.Events.Topic,
		NATSURL:      c.Events.NATSURL,
		EmbeddedNATS: c.Events.EmbeddedNATS,
		EmbeddedPort: c.Events.EmbeddedPort,
		Buffer:       c.Events.Buffer,
	}
}

// UsageRefreshSchedule returns the snapshot refresh run days. Validate has
// already checked the list; a bad one disables the job.
func (c *Config) UsageRefreshSchedule() services.MonthDays {
	days, _ := services.ParseMonthDays(c.Schedule.UsageRefreshDays, c.Schedule.RunHour)
	return days
}

// ReportPurgeSchedule returns the report purge run days.
func (c *Config) ReportPurgeSchedule() services.MonthDays {
	days, _ := services.ParseMonthDays(c.Schedule.ReportPurgeDays, c.Schedule.RunHour)
	return days
}
