// Telemetria - Behavioral Telemetry Analytics and Session Replay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemetria

package queue

import (
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
)

const (
	// poisonMsgIDSuffix makes a dead-letter publish distinct from the
	// batch's original enqueue under JetStream Msg-Id deduplication.
	poisonMsgIDSuffix = "-poison"

	// batchIDMetadataKey carries the originating batch ID on dead-letter
	// messages, whose message UUID no longer matches it.
	batchIDMetadataKey = "batch_id"
)

// PoisonPublisher rewrites message IDs on dead-letter publishes.
//
// Msg-Id deduplication is stream-wide and the poison topic lives in the
// same stream as the ingest subject, so republishing a failed batch
// under its original ID inside the duplicate window is dropped
// server-side as a duplicate of the enqueue. The middleware would then
// ack a batch that never reached the dead letter store. Publishing under
// <batchID>-poison keeps the dead-letter copy outside the enqueue's
// dedup shadow while staying idempotent across poison redeliveries.
type PoisonPublisher struct {
	inner message.Publisher
}

// NewPoisonPublisher wraps a publisher for dead-letter use.
func NewPoisonPublisher(inner message.Publisher) *PoisonPublisher {
	return &PoisonPublisher{inner: inner}
}

// Publish republishes each message under a poison-suffixed ID, keeping
// the original ID in the batch_id metadata for the DLQ consumer.
func (p *PoisonPublisher) Publish(topic string, messages ...*message.Message) error {
	rewritten := make([]*message.Message, len(messages))
	for i, msg := range messages {
		out := message.NewMessage(msg.UUID+poisonMsgIDSuffix, msg.Payload)
		for k, v := range msg.Metadata {
			out.Metadata.Set(k, v)
		}
		out.Metadata.Set(batchIDMetadataKey, msg.UUID)
		out.Metadata.Set(natsgo.MsgIdHdr, out.UUID)
		rewritten[i] = out
	}
	return p.inner.Publish(topic, rewritten...)
}

// Close closes the wrapped publisher.
func (p *PoisonPublisher) Close() error {
	return p.inner.Close()
}
