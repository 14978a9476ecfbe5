// Telemetria - Behavioral Telemetry Analytics and Session Replay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemetria

package api

import (
	"context"
	"time"

	"github.com/tomtom215/telemetria/internal/config"
	"github.com/tomtom215/telemetria/internal/database"
	"github.com/tomtom215/telemetria/internal/geo"
	"github.com/tomtom215/telemetria/internal/models"
)

// BatchEnqueuer is the gateway's view of the durable queue.
type BatchEnqueuer interface {
	EnqueueBatch(ctx context.Context, batch *models.Batch) error
}

// QueueReporter supplies queue depth for the health endpoint.
type QueueReporter interface {
	Counts(ctx context.Context) models.QueueCounts
}

// Handler holds the dependencies shared by all endpoints.
type Handler struct {
	db        *database.DB
	enqueuer  BatchEnqueuer
	resolver  *geo.Resolver
	queue     QueueReporter
	cfg       *config.Config
	startTime time.Time
}

// NewHandler creates the endpoint handler. queue may be nil; /health then
// reports zero counts.
func NewHandler(db *database.DB, enqueuer BatchEnqueuer, resolver *geo.Resolver, queue QueueReporter, cfg *config.Config) *Handler {
	return &Handler{
		db:        db,
		enqueuer:  enqueuer,
		resolver:  resolver,
		queue:     queue,
		cfg:       cfg,
		startTime: time.Now(),
	}
}
