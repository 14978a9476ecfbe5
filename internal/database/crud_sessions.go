// Telemetria - Behavioral Telemetry Analytics and Session Replay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemetria

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/telemetria/internal/metrics"
	"github.com/tomtom215/telemetria/internal/models"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// UpsertSession inserts a session row or refreshes its last-seen fields.
// created_at is written once and never updated. The DO UPDATE branch is
// guarded on event time so an out-of-order or redelivered event cannot
// regress updated_at or overwrite newer location/device attribution.
func (db *DB) UpsertSession(ctx context.Context, s *models.Session) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO sessions (id, project_id, client_id, user_id, location, device, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			user_id = CASE WHEN EXCLUDED.user_id != '' THEN EXCLUDED.user_id ELSE sessions.user_id END,
			location = EXCLUDED.location,
			device = EXCLUDED.device,
			updated_at = EXCLUDED.updated_at
		WHERE EXCLUDED.updated_at >= sessions.updated_at`,
		s.ID, s.ProjectID, s.ClientID, s.UserID, s.Location, s.Device, s.CreatedAt, s.UpdatedAt)
	metrics.RecordDBQuery("upsert", "sessions", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to upsert session %s: %w", s.ID, err)
	}
	return nil
}

// GetSession returns one session by ID.
func (db *DB) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	var s models.Session
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, project_id, client_id, user_id, location, device, created_at, updated_at
		FROM sessions WHERE id = ?`, sessionID).
		Scan(&s.ID, &s.ProjectID, &s.ClientID, &s.UserID, &s.Location, &s.Device, &s.CreatedAt, &s.UpdatedAt)
	metrics.RecordDBQuery("select", "sessions", time.Since(start), err)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session %s: %w", sessionID, err)
	}
	return &s, nil
}

// ListProjectSessions returns all sessions for a project, newest first,
// enriched with per-session event counts. Rage-click counts are attached
// by the caller from the detector output.
func (db *DB) ListProjectSessions(ctx context.Context, projectID string) ([]models.SessionSummary, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, `
		SELECT s.id, s.project_id, s.client_id, s.user_id, s.location, s.device,
		       s.created_at, s.updated_at, COUNT(e.event_id)
		FROM sessions s
		LEFT JOIN events e ON e.session_id = s.id
		WHERE s.project_id = ?
		GROUP BY s.id, s.project_id, s.client_id, s.user_id, s.location, s.device, s.created_at, s.updated_at
		ORDER BY s.created_at DESC`, projectID)
	metrics.RecordDBQuery("select", "sessions", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions for project %s: %w", projectID, err)
	}
	defer closeRows(rows)

	summaries := []models.SessionSummary{}
	for rows.Next() {
		var s models.SessionSummary
		if err := rows.Scan(&s.ID, &s.ProjectID, &s.ClientID, &s.UserID, &s.Location, &s.Device,
			&s.CreatedAt, &s.UpdatedAt, &s.EventsCount); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}
