// Telemetria - Behavioral Telemetry Analytics and Session Replay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemetria

// Package worker consumes batch jobs from the durable queue and fans each
// batch out through per-event processors. Every write it performs is
// idempotent on a natural key, so a redelivered batch converges to the
// same stored state as a single delivery.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/telemetria/internal/database"
	"github.com/tomtom215/telemetria/internal/logging"
	"github.com/tomtom215/telemetria/internal/metrics"
	"github.com/tomtom215/telemetria/internal/models"
	"github.com/tomtom215/telemetria/internal/queue"
)

// ErrUnknownEventType marks an event whose type tag is outside the known
// set. Validation rejects these at ingest, so seeing one here means a
// producer bypassed the gateway or a version skew; the job fails so the
// batch surfaces in the dead letter store instead of silently dropping.
var ErrUnknownEventType = errors.New("unknown event type")

// Worker processes batch jobs from the ingest subject.
type Worker struct {
	db         *database.DB
	serializer *queue.Serializer
	stats      *queue.Stats
}

// New creates a worker over the store. stats may be nil.
func New(db *database.DB, stats *queue.Stats) *Worker {
	return &Worker{
		db:         db,
		serializer: queue.NewSerializer(),
		stats:      stats,
	}
}

// Register attaches the batch handler to the router on the given topic.
func (w *Worker) Register(router *queue.Router, topic string, subscriber message.Subscriber) {
	router.AddConsumerHandler("batch-processor", topic, subscriber, w.Handle)
}

// Handle processes one batch job. A malformed payload is a permanent
// error: retrying cannot fix it, so the error propagates immediately and
// the retry/poison chain routes it to the dead letter store. Event-level
// failures are isolated: remaining events still run, and the job errors
// at the end so the whole batch is redelivered. Events that persisted on
// the earlier attempt are absorbed by per-write idempotency.
func (w *Worker) Handle(msg *message.Message) error {
	start := time.Now()
	metrics.QueueMessagesConsumed.Inc()
	if w.stats != nil {
		w.stats.BatchStarted()
	}

	success := false
	defer func() {
		if w.stats != nil {
			w.stats.BatchFinished(success)
		}
	}()

	batch, err := w.serializer.Unmarshal(msg.Payload)
	if err != nil {
		logging.Warn().
			Str("message_uuid", msg.UUID).
			Err(err).
			Msg("Malformed batch payload")
		return fmt.Errorf("unmarshal batch: %w", err)
	}

	ctx := msg.Context()
	var failed int
	for i := range batch.Events {
		e := &batch.Events[i]
		if err := w.processEvent(ctx, batch, e); err != nil {
			failed++
			logging.Warn().
				Str("batch_id", batch.BatchID).
				Str("event_id", e.EventID).
				Str("event_type", e.Type).
				Err(err).
				Msg("Event processing failed")
		}
	}

	if failed > 0 {
		return fmt.Errorf("batch %s: %d of %d events failed", batch.BatchID, failed, len(batch.Events))
	}

	success = true
	metrics.RecordBatchProcessed(time.Since(start))
	return nil
}

// processEvent runs the shared base step, then the type-specific
// persistence. Every write in both steps is idempotent on a natural key
// (clicks commit their heatmap increment atomically with the event row),
// which is what keeps replayed batches from inflating counts.
func (w *Worker) processEvent(ctx context.Context, batch *models.Batch, e *models.Event) error {
	if !models.IsKnownEventType(e.Type) {
		metrics.RecordEvent(e.Type, "unknown_type")
		return fmt.Errorf("%w: %q", ErrUnknownEventType, e.Type)
	}

	inserted, err := w.processBase(ctx, batch, e)
	if err != nil {
		metrics.RecordEvent(e.Type, "failed")
		return err
	}

	if err := w.processTyped(ctx, e); err != nil {
		metrics.RecordEvent(e.Type, "failed")
		return err
	}

	if inserted {
		metrics.RecordEvent(e.Type, "stored")
	} else {
		metrics.RecordEvent(e.Type, "duplicate")
	}
	return nil
}

// processBase performs the writes every event type shares: session upsert,
// event-log insert, identity first-seen, daily activity. Returns whether
// the event-log row was newly inserted.
func (w *Worker) processBase(ctx context.Context, batch *models.Batch, e *models.Event) (bool, error) {
	eventTime := e.Time()

	session := &models.Session{
		ID:        e.SessionID,
		ProjectID: e.ProjectID,
		ClientID:  e.ClientID,
		UserID:    e.UserID,
		Location:  batch.Country,
		Device:    e.DeviceClass(),
		CreatedAt: eventTime,
		UpdatedAt: eventTime,
	}
	if err := w.db.UpsertSession(ctx, session); err != nil {
		return false, fmt.Errorf("upsert session: %w", err)
	}

	stored := &models.StoredEvent{
		EventID:   e.EventID,
		ProjectID: e.ProjectID,
		SessionID: e.SessionID,
		ClientID:  e.ClientID,
		UserID:    e.UserID,
		Type:      e.Type,
		Timestamp: eventTime,
		URL:       e.URL,
		Referrer:  e.Referrer,
	}
	var inserted bool
	var err error
	if e.Type == models.EventTypeClick {
		inserted, err = w.insertClick(ctx, e, stored)
	} else {
		inserted, err = w.db.InsertEvent(ctx, stored)
	}
	if err != nil {
		return false, fmt.Errorf("insert event: %w", err)
	}

	if err := w.db.UpsertUserIdentity(ctx, &models.UserIdentity{
		ProjectID:   e.ProjectID,
		DistinctID:  e.DistinctID(),
		FirstSeenAt: eventTime,
		Country:     batch.Country,
	}); err != nil {
		return false, fmt.Errorf("upsert identity: %w", err)
	}

	if err := w.db.UpsertDailyActivity(ctx, &models.UserDailyActivity{
		ProjectID:      e.ProjectID,
		DistinctID:     e.DistinctID(),
		ActivityDate:   e.ActivityDate(),
		LastActivityAt: eventTime,
	}); err != nil {
		return false, fmt.Errorf("upsert daily activity: %w", err)
	}

	return inserted, nil
}

func (w *Worker) processTyped(ctx context.Context, e *models.Event) error {
	switch e.Type {
	case models.EventTypeReplay:
		return w.processReplay(ctx, e)
	case models.EventTypeClick, models.EventTypePageView, models.EventTypeInput, models.EventTypeCustom, models.EventTypeRoute:
		// Fully persisted by the base step (clicks include their
		// heatmap increment there).
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEventType, e.Type)
	}
}

// processReplay stores the rrweb frame verbatim. The insert is keyed on
// event_id, so redelivery is a no-op.
func (w *Worker) processReplay(ctx context.Context, e *models.Event) error {
	if e.ReplayID == "" {
		return errors.New("replay event without replayId")
	}
	return w.db.InsertReplayFrame(ctx, &models.ReplayFrame{
		EventID:       e.EventID,
		ReplayID:      e.ReplayID,
		SessionID:     e.SessionID,
		ProjectID:     e.ProjectID,
		Timestamp:     e.Time(),
		SchemaVersion: e.EffectiveSchemaVersion(),
		Payload:       e.Payload,
	})
}

// insertClick writes the click's event-log row together with its heatmap
// bucket increment in one transaction, so the two can never diverge: a
// failed delivery leaves neither, and a redelivery replays both or
// neither.
func (w *Worker) insertClick(ctx context.Context, e *models.Event, stored *models.StoredEvent) (bool, error) {
	if e.XNorm == nil || e.YNorm == nil {
		return false, errors.New("click event without normalized coordinates")
	}

	gridX, gridY := database.GridCell(*e.XNorm, *e.YNorm)
	return w.db.InsertClickEvent(ctx, stored, &models.HeatmapBucket{
		ProjectID:   e.ProjectID,
		URL:         e.URL,
		GridX:       gridX,
		GridY:       gridY,
		LastClickAt: e.Time(),
		Selector:    e.Selector,
		Tag:         e.Tag,
		PageWidth:   e.PageDimensions.Width,
		PageHeight:  e.PageDimensions.Height,
		ViewWidth:   e.Viewport.Width,
		ViewHeight:  e.Viewport.Height,
	})
}
