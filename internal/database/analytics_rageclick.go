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

// Click is one click event projected for rage-sequence grouping.
type Click struct {
	SessionID string
	ClientID  string
	URL       string
	Timestamp time.Time
}

// GroupRageSequences assigns clicks to sequences with a single sorted
// pass: within each (clientId, url) group a new sequence starts whenever
// the gap to the previous click exceeds threshold. Sequences shorter than
// minCount are discarded. Input must already be ordered by
// (clientId, url, timestamp); the fetch queries guarantee that.
func GroupRageSequences(clicks []Click, threshold time.Duration, minCount int) []models.RageClickSequence {
	sequences := []models.RageClickSequence{}
	var current *models.RageClickSequence

	flush := func() {
		if current != nil && current.ClickCount >= minCount {
			sequences = append(sequences, *current)
		}
		current = nil
	}

	for i, c := range clicks {
		sameGroup := i > 0 && clicks[i-1].ClientID == c.ClientID && clicks[i-1].URL == c.URL
		if !sameGroup || c.Timestamp.Sub(clicks[i-1].Timestamp) > threshold {
			flush()
			current = &models.RageClickSequence{
				ClientID:   c.ClientID,
				URL:        c.URL,
				ClickCount: 0,
				StartedAt:  c.Timestamp,
			}
		}
		current.ClickCount++
		current.EndedAt = c.Timestamp
	}
	flush()

	return sequences
}

// GetRageClickSequences returns qualifying rapid-click bursts for one
// session, for diagnostic display.
func (db *DB) GetRageClickSequences(ctx context.Context, sessionID string, threshold time.Duration, minCount int) ([]models.RageClickSequence, error) {
	clicks, err := db.fetchClicks(ctx, `
		SELECT session_id, client_id, url, timestamp FROM events
		WHERE session_id = ? AND type = 'click'
		ORDER BY client_id, url, timestamp`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch clicks for session %s: %w", sessionID, err)
	}
	return GroupRageSequences(clicks, threshold, minCount), nil
}

// CountRageClicksBySession returns the qualifying-sequence count per
// session across a whole project in one pass, for the session list.
func (db *DB) CountRageClicksBySession(ctx context.Context, projectID string, threshold time.Duration, minCount int) (map[string]int, error) {
	clicks, err := db.fetchClicks(ctx, `
		SELECT session_id, client_id, url, timestamp FROM events
		WHERE project_id = ? AND type = 'click'
		ORDER BY session_id, client_id, url, timestamp`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch clicks for project %s: %w", projectID, err)
	}

	counts := map[string]int{}
	for start := 0; start < len(clicks); {
		end := start
		for end < len(clicks) && clicks[end].SessionID == clicks[start].SessionID {
			end++
		}
		sequences := GroupRageSequences(clicks[start:end], threshold, minCount)
		if len(sequences) > 0 {
			counts[clicks[start].SessionID] = len(sequences)
		}
		start = end
	}
	return counts, nil
}

func (db *DB) fetchClicks(ctx context.Context, query string, args ...interface{}) ([]Click, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, args...)
	metrics.RecordDBQuery("select", "events", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	var clicks []Click
	for rows.Next() {
		var c Click
		if err := rows.Scan(&c.SessionID, &c.ClientID, &c.URL, &c.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan click row: %w", err)
		}
		clicks = append(clicks, c)
	}
	return clicks, rows.Err()
}
