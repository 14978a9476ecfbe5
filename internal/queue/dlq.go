// Telemetria - Behavioral Telemetry Analytics and Session Replay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemetria

package queue

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/tomtom215/telemetria/internal/config"
	"github.com/tomtom215/telemetria/internal/database"
	"github.com/tomtom215/telemetria/internal/metrics"
	"github.com/tomtom215/telemetria/internal/models"
)

// DLQConsumer drains the poison topic into the failed_jobs table so
// exhausted batches survive restarts and stay inspectable over HTTP.
type DLQConsumer struct {
	db     *database.DB
	cfg    config.QueueConfig
	logger watermill.LoggerAdapter
}

// NewDLQConsumer creates a consumer for the poison topic.
func NewDLQConsumer(db *database.DB, cfg *config.QueueConfig, logger watermill.LoggerAdapter) *DLQConsumer {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}
	return &DLQConsumer{
		db:     db,
		cfg:    *cfg,
		logger: logger,
	}
}

// Register attaches the poison handler to the router.
func (c *DLQConsumer) Register(router *Router, subscriber message.Subscriber) {
	router.AddConsumerHandler(
		"dlq-persist",
		c.cfg.PoisonTopic,
		subscriber,
		c.Handle,
	)
}

// Handle persists a poisoned batch. The insert is keyed on the batch ID
// (carried in metadata by PoisonPublisher), so a redelivered poison
// message is a no-op. The row always wins over losing the payload:
// persistence errors are returned so the message is redelivered rather
// than dropped.
func (c *DLQConsumer) Handle(msg *message.Message) error {
	jobID := msg.Metadata.Get(batchIDMetadataKey)
	if jobID == "" {
		jobID = msg.UUID
	}
	reason := msg.Metadata.Get(middleware.ReasonForPoisonedKey)
	if reason == "" {
		reason = "unknown"
	}
	sourceTopic := msg.Metadata.Get(middleware.PoisonedTopicKey)
	if sourceTopic == "" {
		sourceTopic = c.cfg.Subject
	}

	job := &models.FailedJob{
		JobID:   jobID,
		Topic:   sourceTopic,
		Payload: msg.Payload,
		Error:   reason,
		// In-process attempts within the delivery that dead-lettered
		// the job; JetStream redeliveries are not visible here.
		Attempts: c.cfg.RetryMaxRetries + 1,
		FailedAt: time.Now().UTC(),
	}

	if err := c.db.InsertFailedJob(msg.Context(), job); err != nil {
		return fmt.Errorf("persist failed job %s: %w", jobID, err)
	}

	metrics.QueueMessagesPoisoned.Inc()
	c.logger.Info("Batch dead-lettered", watermill.LogFields{
		"job_id": jobID,
		"reason": reason,
	})
	return nil
}
