// Telemetria - Behavioral Telemetry Analytics and Session Replay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemetria

/*
schema.go - Database Schema Management

Tables:
  - sessions: one row per browser session; created_at immutable,
    location/device refreshed by the latest-seen event
  - events: generic append-only event log, unique on event_id
  - replay_events: verbatim rrweb frames, unique on event_id
  - heatmap_buckets: 50x50 normalized click grid per (project, url)
  - user_identities: first-seen cohort assignment per (project, distinct_id)
  - user_daily_activity: one row per identity per UTC day
  - geo_networks: CIDR -> country seed data for address resolution
  - failed_jobs: dead-lettered batch jobs after retry exhaustion

Every conflict target backing an ON CONFLICT clause is declared here as a
primary key or unique constraint; DuckDB requires the constraint to exist
for the upsert to be atomic.
*/

//nolint:staticcheck // File documentation, not package doc
package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables creates the core database tables
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range tableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}

	return nil
}

// tableCreationQueries returns the table creation SQL statements
func tableCreationQueries() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			client_id TEXT NOT NULL,
			user_id TEXT DEFAULT '',
			location TEXT DEFAULT '',
			device TEXT DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);`,

		`CREATE TABLE IF NOT EXISTS events (
			event_id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			client_id TEXT NOT NULL,
			user_id TEXT DEFAULT '',
			type TEXT NOT NULL,
			timestamp TIMESTAMP NOT NULL,
			url TEXT NOT NULL,
			referrer TEXT DEFAULT ''
		);`,

		`CREATE TABLE IF NOT EXISTS replay_events (
			event_id TEXT PRIMARY KEY,
			replay_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			project_id TEXT NOT NULL,
			timestamp TIMESTAMP NOT NULL,
			schema_version INTEGER NOT NULL DEFAULT 1,
			payload TEXT NOT NULL
		);`,

		`CREATE TABLE IF NOT EXISTS heatmap_buckets (
			project_id TEXT NOT NULL,
			url TEXT NOT NULL,
			grid_x INTEGER NOT NULL,
			grid_y INTEGER NOT NULL,
			count BIGINT NOT NULL DEFAULT 1,
			last_click_at TIMESTAMP NOT NULL,
			selector TEXT DEFAULT '',
			tag TEXT DEFAULT '',
			page_width INTEGER DEFAULT 0,
			page_height INTEGER DEFAULT 0,
			view_width INTEGER DEFAULT 0,
			view_height INTEGER DEFAULT 0,
			PRIMARY KEY (project_id, url, grid_x, grid_y)
		);`,

		`CREATE TABLE IF NOT EXISTS user_identities (
			project_id TEXT NOT NULL,
			distinct_id TEXT NOT NULL,
			first_seen_at TIMESTAMP NOT NULL,
			country TEXT NOT NULL DEFAULT 'ZZ',
			PRIMARY KEY (project_id, distinct_id)
		);`,

		`CREATE TABLE IF NOT EXISTS user_daily_activity (
			project_id TEXT NOT NULL,
			distinct_id TEXT NOT NULL,
			activity_date DATE NOT NULL,
			last_activity_at TIMESTAMP NOT NULL,
			PRIMARY KEY (project_id, distinct_id, activity_date)
		);`,

		`CREATE TABLE IF NOT EXISTS geo_networks (
			network TEXT PRIMARY KEY,
			country_code TEXT NOT NULL,
			ip_start TEXT NOT NULL,
			ip_end TEXT NOT NULL,
			prefix_len INTEGER NOT NULL
		);`,

		`CREATE TABLE IF NOT EXISTS failed_jobs (
			job_id TEXT PRIMARY KEY,
			topic TEXT NOT NULL,
			payload BLOB NOT NULL,
			error TEXT NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 0,
			failed_at TIMESTAMP NOT NULL
		);`,
	}
}

// createIndexes creates database indexes for query optimization
func (db *DB) createIndexes() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range indexQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute index query: %s: %w", query, err)
		}
	}

	return nil
}

// indexQueries returns index creation SQL statements
func indexQueries() []string {
	return []string{
		// Session list and traffic distributions
		`CREATE INDEX IF NOT EXISTS idx_sessions_project_created ON sessions(project_id, created_at DESC);`,

		// Event-log range scans (traffic, overview, top-pages)
		`CREATE INDEX IF NOT EXISTS idx_events_project_ts ON events(project_id, timestamp);`,
		`CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id);`,
		`CREATE INDEX IF NOT EXISTS idx_events_project_type_ts ON events(project_id, type, timestamp);`,

		// Replay reads are keyed by replay or session, ordered by timestamp
		`CREATE INDEX IF NOT EXISTS idx_replay_events_replay ON replay_events(replay_id, timestamp);`,
		`CREATE INDEX IF NOT EXISTS idx_replay_events_session ON replay_events(session_id, timestamp);`,

		// Retention cohort assignment and activity joins
		`CREATE INDEX IF NOT EXISTS idx_identities_project_first_seen ON user_identities(project_id, first_seen_at);`,
		`CREATE INDEX IF NOT EXISTS idx_daily_activity_project_date ON user_daily_activity(project_id, activity_date);`,

		// Geo longest-prefix lookup
		`CREATE INDEX IF NOT EXISTS idx_geo_networks_range ON geo_networks(ip_start, ip_end);`,

		`CREATE INDEX IF NOT EXISTS idx_failed_jobs_failed_at ON failed_jobs(failed_at DESC);`,
	}
}
