// Telemetria - Behavioral Telemetry Analytics and Session Replay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemetria

package queue

import (
	"context"
	"sync/atomic"

	"github.com/tomtom215/telemetria/internal/database"
	"github.com/tomtom215/telemetria/internal/models"
)

// Stats tracks queue throughput for the health endpoint. In-process
// counters cover this instance; waiting and failed counts come from the
// stream and the dead letter store, which are shared.
type Stats struct {
	active    atomic.Int64
	completed atomic.Int64

	streams *StreamManager
	db      *database.DB
}

// NewStats creates a stats collector. streams may be nil when the queue
// backend is down; waiting then reports zero.
func NewStats(streams *StreamManager, db *database.DB) *Stats {
	return &Stats{
		streams: streams,
		db:      db,
	}
}

// BatchStarted marks a batch as in-flight.
func (s *Stats) BatchStarted() {
	s.active.Add(1)
}

// BatchFinished marks an in-flight batch as done. completed is only
// incremented for successful batches; failures either retry (still
// waiting) or land in the dead letter store (failed).
func (s *Stats) BatchFinished(success bool) {
	s.active.Add(-1)
	if success {
		s.completed.Add(1)
	}
}

// Counts assembles the queue state snapshot. Errors from the stream or
// store degrade to zero counts; health reporting never fails hard.
func (s *Stats) Counts(ctx context.Context) models.QueueCounts {
	counts := models.QueueCounts{
		Active:    s.active.Load(),
		Completed: s.completed.Load(),
	}

	if s.streams != nil {
		if info, err := s.streams.StreamInfo(ctx); err == nil {
			counts.Waiting = int64(info.State.Msgs)
		}
	}

	if s.db != nil {
		if failed, err := s.db.CountFailedJobs(ctx); err == nil {
			counts.Failed = failed
		}
	}

	return counts
}
