// Telemetria - Behavioral Telemetry Analytics and Session Replay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemetria

// Retention cohorts: a cohort is every identity first seen on one UTC
// date; day-N retention is the fraction of the cohort with a daily
// activity row N days later. The whole matrix is assembled from two
// grouped queries (cohort sizes, per-offset activity counts) so query
// count stays linear in the date range, not range x offsets.

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/telemetria/internal/metrics"
	"github.com/tomtom215/telemetria/internal/models"
)

const dateLayout = "2006-01-02"

// GetRetentionMatrix computes cohort sizes and retention vectors for every
// cohort date in [startDate, endDate]. Day-0 retention is 1.0 by
// definition; an empty cohort has 0.0 at every offset.
func (db *DB) GetRetentionMatrix(ctx context.Context, projectID string, startDate, endDate time.Time, offsets []int) (*models.RetentionMatrix, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rangeEnd := endDate.AddDate(0, 0, 1)

	sizes, err := db.cohortSizes(ctx, projectID, startDate, rangeEnd)
	if err != nil {
		return nil, err
	}

	retained, err := db.cohortRetention(ctx, projectID, startDate, rangeEnd)
	if err != nil {
		return nil, err
	}

	matrix := &models.RetentionMatrix{
		ProjectID: projectID,
		StartDate: startDate.Format(dateLayout),
		EndDate:   endDate.Format(dateLayout),
		Offsets:   offsets,
		Cohorts:   []models.RetentionCohort{},
	}

	for d := startDate; d.Before(rangeEnd); d = d.AddDate(0, 0, 1) {
		date := d.Format(dateLayout)
		size := sizes[date]

		cohort := models.RetentionCohort{
			CohortDate:  date,
			CohortSize:  size,
			Offsets:     offsets,
			Retained:    make([]int64, len(offsets)),
			Percentages: make([]float64, len(offsets)),
		}
		for i, offset := range offsets {
			count := retained[date][offset]
			if offset == 0 {
				// Every cohort member was active on their first day.
				count = size
			}
			cohort.Retained[i] = count
			if size > 0 {
				cohort.Percentages[i] = float64(count) / float64(size)
			}
		}
		matrix.Cohorts = append(matrix.Cohorts, cohort)
	}

	return matrix, nil
}

// cohortSizes returns the identity count per cohort date in the range.
func (db *DB) cohortSizes(ctx context.Context, projectID string, start, end time.Time) (map[string]int64, error) {
	qStart := time.Now()
	rows, err := db.conn.QueryContext(ctx, `
		SELECT CAST(first_seen_at AS DATE), COUNT(*)
		FROM user_identities
		WHERE project_id = ? AND first_seen_at >= ? AND first_seen_at < ?
		GROUP BY 1`, projectID, start, end)
	metrics.RecordDBQuery("select", "user_identities", time.Since(qStart), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query cohort sizes: %w", err)
	}
	defer closeRows(rows)

	sizes := map[string]int64{}
	for rows.Next() {
		var date time.Time
		var count int64
		if err := rows.Scan(&date, &count); err != nil {
			return nil, fmt.Errorf("failed to scan cohort size: %w", err)
		}
		sizes[date.UTC().Format(dateLayout)] = count
	}
	return sizes, rows.Err()
}

// cohortRetention returns, per cohort date, the distinct-identity count
// active at each day offset from that date.
func (db *DB) cohortRetention(ctx context.Context, projectID string, start, end time.Time) (map[string]map[int]int64, error) {
	qStart := time.Now()
	rows, err := db.conn.QueryContext(ctx, `
		WITH cohorts AS (
			SELECT distinct_id, CAST(first_seen_at AS DATE) AS cohort_date
			FROM user_identities
			WHERE project_id = ? AND first_seen_at >= ? AND first_seen_at < ?
		)
		SELECT c.cohort_date,
		       date_diff('day', c.cohort_date, a.activity_date),
		       COUNT(DISTINCT c.distinct_id)
		FROM cohorts c
		JOIN user_daily_activity a
		  ON a.project_id = ? AND a.distinct_id = c.distinct_id
		WHERE a.activity_date >= c.cohort_date
		GROUP BY 1, 2`, projectID, start, end, projectID)
	metrics.RecordDBQuery("select", "user_daily_activity", time.Since(qStart), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query cohort retention: %w", err)
	}
	defer closeRows(rows)

	retained := map[string]map[int]int64{}
	for rows.Next() {
		var date time.Time
		var offset int
		var count int64
		if err := rows.Scan(&date, &offset, &count); err != nil {
			return nil, fmt.Errorf("failed to scan retention row: %w", err)
		}
		key := date.UTC().Format(dateLayout)
		if retained[key] == nil {
			retained[key] = map[int]int64{}
		}
		retained[key][offset] = count
	}
	return retained, rows.Err()
}
