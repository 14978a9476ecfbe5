// Telemetria - Behavioral Telemetry Analytics and Session Replay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemetria

package queue

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/tomtom215/telemetria/internal/models"
)

func TestStatsCounts(t *testing.T) {
	db := setupDLQTestDB(t)
	stats := NewStats(nil, db)

	stats.BatchStarted()
	stats.BatchStarted()
	stats.BatchFinished(true)

	consumer := NewDLQConsumer(db, testQueueConfig(), watermill.NopLogger{})
	if err := consumer.Handle(poisonedMessage("batch-failed", "boom")); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	got := stats.Counts(context.Background())
	want := models.QueueCounts{Active: 1, Waiting: 0, Completed: 1, Failed: 1}
	if got != want {
		t.Errorf("Counts = %+v, want %+v", got, want)
	}
}

func TestStatsFailedBatchNotCompleted(t *testing.T) {
	t.Parallel()

	stats := NewStats(nil, nil)
	stats.BatchStarted()
	stats.BatchFinished(false)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got := stats.Counts(ctx)
	if got.Active != 0 {
		t.Errorf("Active = %d, want 0", got.Active)
	}
	if got.Completed != 0 {
		t.Errorf("Completed = %d, want 0", got.Completed)
	}
}
