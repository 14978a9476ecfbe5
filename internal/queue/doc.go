// Telemetria - Behavioral Telemetry Analytics and Session Replay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemetria

// Package queue provides the durable batch queue between the ingest
// gateway and the processing worker, built on Watermill over NATS
// JetStream.
//
// Enqueue is idempotent on batch ID: the batch ID is set as the
// Nats-Msg-Id header and JetStream's duplicate window absorbs
// re-publishes of the same batch, so a client retrying a timed-out
// ingest cannot create a second job. Delivery to the worker is
// at-least-once with a bounded redelivery ceiling; messages that exhaust
// in-process retries are routed to a poison topic and persisted for
// diagnostics.
package queue
