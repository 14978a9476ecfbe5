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

// GetHeatmap returns all grid buckets for one page URL plus the aggregates
// consumers need for rendering: total click count and the maximum bucket
// count. MaxCount is floored to 1 so an empty heatmap never divides by
// zero when normalizing intensity.
func (db *DB) GetHeatmap(ctx context.Context, projectID, url string) (*models.Heatmap, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, `
		SELECT project_id, url, grid_x, grid_y, count, last_click_at,
		       selector, tag, page_width, page_height, view_width, view_height
		FROM heatmap_buckets
		WHERE project_id = ? AND url = ?
		ORDER BY grid_y, grid_x`, projectID, url)
	metrics.RecordDBQuery("select", "heatmap_buckets", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query heatmap for %s %s: %w", projectID, url, err)
	}
	defer closeRows(rows)

	heatmap := &models.Heatmap{
		ProjectID: projectID,
		URL:       url,
		GridSize:  models.HeatmapGridSize,
		MaxCount:  1,
		Buckets:   []models.HeatmapBucket{},
	}

	for rows.Next() {
		var b models.HeatmapBucket
		if err := rows.Scan(&b.ProjectID, &b.URL, &b.GridX, &b.GridY, &b.Count, &b.LastClickAt,
			&b.Selector, &b.Tag, &b.PageWidth, &b.PageHeight, &b.ViewWidth, &b.ViewHeight); err != nil {
			return nil, fmt.Errorf("failed to scan heatmap bucket: %w", err)
		}
		heatmap.ClickCount += b.Count
		if b.Count > heatmap.MaxCount {
			heatmap.MaxCount = b.Count
		}
		heatmap.Buckets = append(heatmap.Buckets, b)
	}
	return heatmap, rows.Err()
}
