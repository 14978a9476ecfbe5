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

// InsertFailedJob persists a dead-lettered batch for diagnostics after the
// queue's delivery ceiling was exhausted. Idempotent on job_id so the
// poison handler itself can be redelivered safely.
func (db *DB) InsertFailedJob(ctx context.Context, job *models.FailedJob) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO failed_jobs (job_id, topic, payload, error, attempts, failed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (job_id) DO NOTHING`,
		job.JobID, job.Topic, job.Payload, job.Error, job.Attempts, job.FailedAt)
	metrics.RecordDBQuery("insert", "failed_jobs", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to insert failed job %s: %w", job.JobID, err)
	}
	metrics.DLQEntriesAdded.Inc()
	return nil
}

// ListFailedJobs returns dead-lettered jobs, newest first, capped at limit.
func (db *DB) ListFailedJobs(ctx context.Context, limit int) ([]models.FailedJob, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, `
		SELECT job_id, topic, payload, error, attempts, failed_at
		FROM failed_jobs ORDER BY failed_at DESC LIMIT ?`, limit)
	metrics.RecordDBQuery("select", "failed_jobs", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to list failed jobs: %w", err)
	}
	defer closeRows(rows)

	jobs := []models.FailedJob{}
	for rows.Next() {
		var j models.FailedJob
		if err := rows.Scan(&j.JobID, &j.Topic, &j.Payload, &j.Error, &j.Attempts, &j.FailedAt); err != nil {
			return nil, fmt.Errorf("failed to scan failed job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// CountFailedJobs returns the dead-letter row count for health reporting.
func (db *DB) CountFailedJobs(ctx context.Context) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	var count int64
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM failed_jobs`).Scan(&count)
	metrics.RecordDBQuery("select", "failed_jobs", time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("failed to count failed jobs: %w", err)
	}
	return count, nil
}
