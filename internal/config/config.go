// Telemetria - Behavioral Telemetry Analytics and Session Replay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemetria

// Package config provides layered configuration for Telemetria.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all settings
//  2. Config File: Optional YAML config file (config.yaml)
//  3. Environment Variables: Override any setting (TELEMETRIA_ prefix)
//
// Config is immutable after Load() and safe for concurrent read access.
package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Queue     QueueConfig     `koanf:"queue"`
	Geo       GeoConfig       `koanf:"geo"`
	Analytics AnalyticsConfig `koanf:"analytics"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// MaxBatchBytes bounds the /ingest request body size.
	MaxBatchBytes int64 `koanf:"max_batch_bytes"`

	// RateLimitPerMinute is the per-IP request ceiling for data endpoints.
	// Health endpoints use a separate, more permissive limit.
	RateLimitPerMinute int `koanf:"rate_limit_per_minute"`

	// CORSOrigins lists allowed origins for browser clients.
	CORSOrigins []string `koanf:"cors_origins"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	// Path is the DuckDB file location. Empty string opens an
	// in-memory database (used by tests).
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	// Threads is the DuckDB worker thread count. 0 = runtime.NumCPU().
	Threads int `koanf:"threads"`
}

// QueueConfig holds NATS JetStream / Watermill settings for the durable
// batch queue.
type QueueConfig struct {
	// URL of the NATS server. Ignored when EmbeddedServer is true.
	URL string `koanf:"url"`

	// EmbeddedServer runs an in-process nats-server with JetStream.
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`

	StreamName string        `koanf:"stream_name"`
	Subject    string        `koanf:"subject"`
	MaxAge     time.Duration `koanf:"max_age"`
	MaxBytes   int64         `koanf:"max_bytes"`

	// DuplicateWindow is the JetStream deduplication window. Re-publishing
	// a batch with the same batch ID inside this window is a no-op.
	DuplicateWindow time.Duration `koanf:"duplicate_window"`

	// PublishTimeout bounds a single enqueue; a stuck backend fails fast
	// with a retryable error instead of hanging the ingest response.
	PublishTimeout time.Duration `koanf:"publish_timeout"`

	DurableName      string `koanf:"durable_name"`
	QueueGroup       string `koanf:"queue_group"`
	SubscribersCount int    `koanf:"subscribers_count"`

	// MaxDeliver is the JetStream redelivery ceiling for a failed job.
	// After MaxDeliver attempts the job is routed to the poison topic
	// and persisted to the failed_jobs table.
	MaxDeliver  int           `koanf:"max_deliver"`
	AckWait     time.Duration `koanf:"ack_wait"`
	PoisonTopic string        `koanf:"poison_topic"`

	// Watermill router retry middleware (within one delivery).
	RetryMaxRetries      int           `koanf:"retry_max_retries"`
	RetryInitialInterval time.Duration `koanf:"retry_initial_interval"`
	RetryMaxInterval     time.Duration `koanf:"retry_max_interval"`
	RetryMultiplier      float64       `koanf:"retry_multiplier"`

	CloseTimeout time.Duration `koanf:"close_timeout"`
}

// GeoConfig holds location resolver settings.
type GeoConfig struct {
	// SeedPath is an optional CSV file (network,country_code) loaded into
	// the geo_networks table at startup.
	SeedPath string `koanf:"seed_path"`

	// DefaultCountry is returned for every unresolvable address.
	DefaultCountry string `koanf:"default_country"`
}

// AnalyticsConfig holds read-side aggregation tunables.
type AnalyticsConfig struct {
	// RetentionIntervals is the default day-offset vector for cohort
	// retention queries.
	RetentionIntervals []int `koanf:"retention_intervals"`

	// RageClickThreshold is the maximum gap between clicks in one sequence.
	RageClickThreshold time.Duration `koanf:"rage_click_threshold"`

	// RageClickMinCount is the minimum run length for a qualifying
	// sequence in per-session counts.
	RageClickMinCount int `koanf:"rage_click_min_count"`

	// TopPagesLimit caps the top-pages result set.
	TopPagesLimit int `koanf:"top_pages_limit"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks configuration invariants after loading.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [1,65535], got %d", c.Server.Port)
	}
	if c.Server.MaxBatchBytes <= 0 {
		return fmt.Errorf("server.max_batch_bytes must be positive, got %d", c.Server.MaxBatchBytes)
	}
	if c.Queue.StreamName == "" {
		return fmt.Errorf("queue.stream_name must not be empty")
	}
	if c.Queue.Subject == "" {
		return fmt.Errorf("queue.subject must not be empty")
	}
	if c.Queue.PublishTimeout <= 0 {
		return fmt.Errorf("queue.publish_timeout must be positive, got %s", c.Queue.PublishTimeout)
	}
	if c.Queue.MaxDeliver < 1 {
		return fmt.Errorf("queue.max_deliver must be >= 1, got %d", c.Queue.MaxDeliver)
	}
	if c.Queue.SubscribersCount < 1 {
		return fmt.Errorf("queue.subscribers_count must be >= 1, got %d", c.Queue.SubscribersCount)
	}
	if len(c.Geo.DefaultCountry) != 2 {
		return fmt.Errorf("geo.default_country must be a 2-letter code, got %q", c.Geo.DefaultCountry)
	}
	if c.Analytics.RageClickMinCount < 2 {
		return fmt.Errorf("analytics.rage_click_min_count must be >= 2, got %d", c.Analytics.RageClickMinCount)
	}
	if c.Analytics.RageClickThreshold <= 0 {
		return fmt.Errorf("analytics.rage_click_threshold must be positive, got %s", c.Analytics.RageClickThreshold)
	}
	for _, offset := range c.Analytics.RetentionIntervals {
		if offset < 0 {
			return fmt.Errorf("analytics.retention_intervals must be non-negative, got %d", offset)
		}
	}
	return nil
}
