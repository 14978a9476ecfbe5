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

// GridCell maps a normalized coordinate pair to a heatmap cell:
// floor(norm * 50), clamped to [0,49]. Coordinates exactly at 1.0 land in
// the last cell rather than off the grid.
func GridCell(xNorm, yNorm float64) (int, int) {
	return clampCell(int(math.Floor(xNorm * models.HeatmapGridSize))),
		clampCell(int(math.Floor(yNorm * models.HeatmapGridSize)))
}

func clampCell(c int) int {
	if c < 0 {
		return 0
	}
	if c >= models.HeatmapGridSize {
		return models.HeatmapGridSize - 1
	}
	return c
}

const upsertBucketSQL = `
	INSERT INTO heatmap_buckets (
		project_id, url, grid_x, grid_y, count, last_click_at,
		selector, tag, page_width, page_height, view_width, view_height
	) VALUES (?, ?, ?, ?, 1, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (project_id, url, grid_x, grid_y) DO UPDATE SET
		count = heatmap_buckets.count + 1,
		last_click_at = EXCLUDED.last_click_at,
		selector = EXCLUDED.selector,
		tag = EXCLUDED.tag,
		page_width = EXCLUDED.page_width,
		page_height = EXCLUDED.page_height,
		view_width = EXCLUDED.view_width,
		view_height = EXCLUDED.view_height`

// RecordClick increments one heatmap bucket atomically: insert with
// count=1, or increment the existing count and overwrite the denormalized
// metadata with this click's. Concurrent writers for the same cell
// converge; the caller is responsible for invoking this at most once per
// logical click. The processing pipeline uses InsertClickEvent, which
// ties the increment to the event-log insert.
func (db *DB) RecordClick(ctx context.Context, b *models.HeatmapBucket) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	_, err := db.conn.ExecContext(ctx, upsertBucketSQL,
		b.ProjectID, b.URL, b.GridX, b.GridY, b.LastClickAt,
		b.Selector, b.Tag, b.PageWidth, b.PageHeight, b.ViewWidth, b.ViewHeight)
	metrics.RecordDBQuery("upsert", "heatmap_buckets", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to record click for %s %s (%d,%d): %w",
			b.ProjectID, b.URL, b.GridX, b.GridY, err)
	}
	return nil
}

// InsertClickEvent writes a click's event-log row and heatmap bucket
// increment in one transaction. The increment is not idempotent on its
// own; committing it with the insert makes the pair idempotent on
// event_id, so a crash can never strand an event row without its count
// and a redelivered click never counts twice. Returns whether the event
// row was new.
func (db *DB) InsertClickEvent(ctx context.Context, e *models.StoredEvent, b *models.HeatmapBucket) (bool, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	inserted, err := db.insertClickEventTx(ctx, e, b)
	metrics.RecordDBQuery("upsert", "heatmap_buckets", time.Since(start), err)
	if err != nil {
		return false, fmt.Errorf("failed to insert click event %s: %w", e.EventID, err)
	}
	return inserted, nil
}

func (db *DB) insertClickEventTx(ctx context.Context, e *models.StoredEvent, b *models.HeatmapBucket) (bool, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, insertEventSQL,
		e.EventID, e.ProjectID, e.SessionID, e.ClientID, e.UserID, e.Type, e.Timestamp, e.URL, e.Referrer)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		// Replayed click: the row and its increment committed together
		// on the earlier delivery.
		return false, tx.Commit()
	}

	if _, err := tx.ExecContext(ctx, upsertBucketSQL,
		b.ProjectID, b.URL, b.GridX, b.GridY, b.LastClickAt,
		b.Selector, b.Tag, b.PageWidth, b.PageHeight, b.ViewWidth, b.ViewHeight); err != nil {
		return false, err
	}
	return true, tx.Commit()
}
