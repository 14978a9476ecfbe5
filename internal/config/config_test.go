// Telemetria - Behavioral Telemetry Analytics and Session Replay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemetria

package config

import (
	"testing"
	"time"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != 8420 {
		t.Errorf("expected default port 8420, got %d", cfg.Server.Port)
	}
	if cfg.Queue.StreamName != "TELEMETRY" {
		t.Errorf("expected stream TELEMETRY, got %q", cfg.Queue.StreamName)
	}
	if cfg.Queue.MaxDeliver != 5 {
		t.Errorf("expected max_deliver 5, got %d", cfg.Queue.MaxDeliver)
	}
	if cfg.Geo.DefaultCountry != "ZZ" {
		t.Errorf("expected default country ZZ, got %q", cfg.Geo.DefaultCountry)
	}
	expected := []int{0, 1, 3, 7, 14, 30}
	if len(cfg.Analytics.RetentionIntervals) != len(expected) {
		t.Fatalf("expected %d retention intervals, got %d", len(expected), len(cfg.Analytics.RetentionIntervals))
	}
	for i, offset := range expected {
		if cfg.Analytics.RetentionIntervals[i] != offset {
			t.Errorf("retention interval %d: expected %d, got %d", i, offset, cfg.Analytics.RetentionIntervals[i])
		}
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("TELEMETRIA_SERVER_PORT", "9999")
	t.Setenv("TELEMETRIA_GEO_DEFAULT_COUNTRY", "US")
	t.Setenv("TELEMETRIA_ANALYTICS_RETENTION_INTERVALS", "0,7,30")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("expected env-overridden port 9999, got %d", cfg.Server.Port)
	}
	if cfg.Geo.DefaultCountry != "US" {
		t.Errorf("expected env-overridden country US, got %q", cfg.Geo.DefaultCountry)
	}
	if len(cfg.Analytics.RetentionIntervals) != 3 {
		t.Fatalf("expected 3 retention intervals, got %v", cfg.Analytics.RetentionIntervals)
	}
	if cfg.Analytics.RetentionIntervals[2] != 30 {
		t.Errorf("expected last interval 30, got %d", cfg.Analytics.RetentionIntervals[2])
	}
}

func TestEnvTransformFunc(t *testing.T) {
	cases := map[string]string{
		"TELEMETRIA_SERVER_PORT":            "server.port",
		"TELEMETRIA_QUEUE_MAX_DELIVER":      "queue.max_deliver",
		"TELEMETRIA_QUEUE_PUBLISH_TIMEOUT":  "queue.publish_timeout",
		"TELEMETRIA_GEO_DEFAULT_COUNTRY":    "geo.default_country",
		"TELEMETRIA_DATABASE_PATH":          "database.path",
		"TELEMETRIA_LOGGING_LEVEL":          "logging.level",
		"TELEMETRIA_SERVER_MAX_BATCH_BYTES": "server.max_batch_bytes",
	}
	for input, expected := range cases {
		if got := envTransformFunc(input); got != expected {
			t.Errorf("envTransformFunc(%q) = %q, expected %q", input, got, expected)
		}
	}
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }},
		{"empty stream name", func(c *Config) { c.Queue.StreamName = "" }},
		{"empty subject", func(c *Config) { c.Queue.Subject = "" }},
		{"zero publish timeout", func(c *Config) { c.Queue.PublishTimeout = 0 }},
		{"zero max deliver", func(c *Config) { c.Queue.MaxDeliver = 0 }},
		{"zero subscribers", func(c *Config) { c.Queue.SubscribersCount = 0 }},
		{"bad country code", func(c *Config) { c.Geo.DefaultCountry = "ZZZ" }},
		{"rage min too small", func(c *Config) { c.Analytics.RageClickMinCount = 1 }},
		{"zero rage threshold", func(c *Config) { c.Analytics.RageClickThreshold = 0 }},
		{"negative retention offset", func(c *Config) { c.Analytics.RetentionIntervals = []int{0, -1} }},
		{"zero batch bytes", func(c *Config) { c.Server.MaxBatchBytes = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestQueueDefaults_RetryPolicy(t *testing.T) {
	cfg := defaultConfig()
	if cfg.Queue.RetryInitialInterval != 100*time.Millisecond {
		t.Errorf("expected 100ms initial retry interval, got %s", cfg.Queue.RetryInitialInterval)
	}
	if cfg.Queue.RetryMultiplier != 2.0 {
		t.Errorf("expected 2.0 retry multiplier, got %f", cfg.Queue.RetryMultiplier)
	}
	if cfg.Queue.PoisonTopic != "ingest.poison" {
		t.Errorf("expected poison topic ingest.poison, got %q", cfg.Queue.PoisonTopic)
	}
}
