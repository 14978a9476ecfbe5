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

// UpsertUserIdentity records an identity's first sighting. Insert-or-ignore:
// first_seen_at and country are written exactly once and frozen, which
// keeps cohort assignment stable under redelivery and out-of-order events.
func (db *DB) UpsertUserIdentity(ctx context.Context, id *models.UserIdentity) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO user_identities (project_id, distinct_id, first_seen_at, country)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (project_id, distinct_id) DO NOTHING`,
		id.ProjectID, id.DistinctID, id.FirstSeenAt, id.Country)
	metrics.RecordDBQuery("upsert", "user_identities", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to upsert identity %s/%s: %w", id.ProjectID, id.DistinctID, err)
	}
	return nil
}

// UpsertDailyActivity records that an identity was active on a UTC day,
// keeping the max event time seen for that day. The GREATEST upsert makes
// concurrent writers for the same (identity, day) converge on the latest
// activity regardless of arrival order.
func (db *DB) UpsertDailyActivity(ctx context.Context, a *models.UserDailyActivity) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO user_daily_activity (project_id, distinct_id, activity_date, last_activity_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (project_id, distinct_id, activity_date) DO UPDATE SET
			last_activity_at = GREATEST(user_daily_activity.last_activity_at, EXCLUDED.last_activity_at)`,
		a.ProjectID, a.DistinctID, a.ActivityDate, a.LastActivityAt)
	metrics.RecordDBQuery("upsert", "user_daily_activity", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to upsert daily activity %s/%s: %w", a.ProjectID, a.DistinctID, err)
	}
	return nil
}
