// Telemetria - Behavioral Telemetry Analytics and Session Replay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemetria

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/telemetria/internal/metrics"
	"github.com/tomtom215/telemetria/internal/models"
)

const insertEventSQL = `
	INSERT INTO events (event_id, project_id, session_id, client_id, user_id, type, timestamp, url, referrer)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (event_id) DO NOTHING`

// InsertEvent appends one row to the generic event log. The insert is
// idempotent on event_id; the returned bool reports whether a new row was
// actually written. Click events go through InsertClickEvent instead so
// the heatmap increment commits atomically with the row.
func (db *DB) InsertEvent(ctx context.Context, e *models.StoredEvent) (bool, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	res, err := db.conn.ExecContext(ctx, insertEventSQL,
		e.EventID, e.ProjectID, e.SessionID, e.ClientID, e.UserID, e.Type, e.Timestamp, e.URL, e.Referrer)
	metrics.RecordDBQuery("insert", "events", time.Since(start), err)
	if err != nil {
		return false, fmt.Errorf("failed to insert event %s: %w", e.EventID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected for event %s: %w", e.EventID, err)
	}
	return affected > 0, nil
}

// CountSessionEvents returns the event-log row count for one session.
func (db *DB) CountSessionEvents(ctx context.Context, sessionID string) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	var count int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events WHERE session_id = ?`, sessionID).Scan(&count)
	metrics.RecordDBQuery("select", "events", time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("failed to count events for session %s: %w", sessionID, err)
	}
	return count, nil
}
