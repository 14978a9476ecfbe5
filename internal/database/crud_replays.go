// Telemetria - Behavioral Telemetry Analytics and Session Replay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemetria

package database

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/telemetria/internal/metrics"
	"github.com/tomtom215/telemetria/internal/models"
)

// InsertReplayFrame stores one rrweb frame verbatim. Idempotent on
// event_id: a redelivered frame is silently absorbed. Ordering within a
// replay is restored by timestamp at read time, not enforced on write.
func (db *DB) InsertReplayFrame(ctx context.Context, f *models.ReplayFrame) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO replay_events (event_id, replay_id, session_id, project_id, timestamp, schema_version, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (event_id) DO NOTHING`,
		f.EventID, f.ReplayID, f.SessionID, f.ProjectID, f.Timestamp, f.SchemaVersion, string(f.Payload))
	metrics.RecordDBQuery("insert", "replay_events", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to insert replay frame %s: %w", f.EventID, err)
	}
	return nil
}

// GetReplay returns one replay's frames ordered by timestamp.
func (db *DB) GetReplay(ctx context.Context, replayID string) (*models.Replay, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	frames, err := db.queryReplayFrames(ctx, `
		SELECT event_id, replay_id, session_id, project_id, timestamp, schema_version, payload
		FROM replay_events WHERE replay_id = ? ORDER BY timestamp ASC`, replayID)
	if err != nil {
		return nil, fmt.Errorf("failed to get replay %s: %w", replayID, err)
	}
	if len(frames) == 0 {
		return nil, ErrNotFound
	}

	return &models.Replay{
		ReplayID:  replayID,
		SessionID: frames[0].SessionID,
		StartedAt: frames[0].Timestamp,
		EndedAt:   frames[len(frames)-1].Timestamp,
		Frames:    frames,
	}, nil
}

// GetSessionReplays returns all replays recorded within a session,
// grouped by replay ID and ordered by start time. A session can hold
// several replays (one per tab).
func (db *DB) GetSessionReplays(ctx context.Context, sessionID string) ([]models.Replay, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	frames, err := db.queryReplayFrames(ctx, `
		SELECT event_id, replay_id, session_id, project_id, timestamp, schema_version, payload
		FROM replay_events WHERE session_id = ? ORDER BY timestamp ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get replays for session %s: %w", sessionID, err)
	}

	byReplay := map[string]*models.Replay{}
	for _, f := range frames {
		r, ok := byReplay[f.ReplayID]
		if !ok {
			r = &models.Replay{
				ReplayID:  f.ReplayID,
				SessionID: f.SessionID,
				StartedAt: f.Timestamp,
			}
			byReplay[f.ReplayID] = r
		}
		r.EndedAt = f.Timestamp
		r.Frames = append(r.Frames, f)
	}

	replays := make([]models.Replay, 0, len(byReplay))
	for _, r := range byReplay {
		replays = append(replays, *r)
	}
	sort.Slice(replays, func(i, j int) bool {
		if replays[i].StartedAt.Equal(replays[j].StartedAt) {
			return replays[i].ReplayID < replays[j].ReplayID
		}
		return replays[i].StartedAt.Before(replays[j].StartedAt)
	})
	return replays, nil
}

func (db *DB) queryReplayFrames(ctx context.Context, query string, args ...interface{}) ([]models.ReplayFrame, error) {
	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, args...)
	metrics.RecordDBQuery("select", "replay_events", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	var frames []models.ReplayFrame
	for rows.Next() {
		var f models.ReplayFrame
		var payload string
		if err := rows.Scan(&f.EventID, &f.ReplayID, &f.SessionID, &f.ProjectID,
			&f.Timestamp, &f.SchemaVersion, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan replay frame: %w", err)
		}
		f.Payload = json.RawMessage(payload)
		frames = append(frames, f)
	}
	return frames, rows.Err()
}
