// Telemetria - Behavioral Telemetry Analytics and Session Replay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemetria

package database

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/tomtom215/telemetria/internal/metrics"
	"github.com/tomtom215/telemetria/internal/models"
)

// GetTopPages ranks paths by page-view count with average time-on-page.
// Dwell is the gap to the next page view in the same session (LEAD over
// the session's ordered page views); the last page view of a session has
// no next timestamp and contributes a view but no dwell sample.
func (db *DB) GetTopPages(ctx context.Context, projectID string, startDate, endDate time.Time, limit int) ([]models.TopPage, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 10
	}

	qStart := time.Now()
	rows, err := db.conn.QueryContext(ctx, `
		WITH page_views AS (
			SELECT url, timestamp,
			       LEAD(timestamp) OVER (PARTITION BY session_id ORDER BY timestamp) AS next_ts
			FROM events
			WHERE project_id = ? AND type = 'page_view'
			  AND timestamp >= ? AND timestamp < ?
		)
		SELECT url,
		       COUNT(*) AS views,
		       COALESCE(AVG(date_diff('millisecond', timestamp, next_ts)) FILTER (WHERE next_ts IS NOT NULL), 0),
		       COUNT(next_ts)
		FROM page_views
		GROUP BY url
		ORDER BY views DESC, url
		LIMIT ?`,
		projectID, startDate, endDate.AddDate(0, 0, 1), limit)
	metrics.RecordDBQuery("select", "events", time.Since(qStart), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query top pages: %w", err)
	}
	defer closeRows(rows)

	pages := []models.TopPage{}
	for rows.Next() {
		var p models.TopPage
		var dwellMillis float64
		if err := rows.Scan(&p.Path, &p.Views, &dwellMillis, &p.DwellSamples); err != nil {
			return nil, fmt.Errorf("failed to scan top page: %w", err)
		}
		p.AvgTimeOnPageSec = math.Round(dwellMillis/1000*100) / 100
		pages = append(pages, p)
	}
	return pages, rows.Err()
}
