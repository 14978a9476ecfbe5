// Telemetria - Behavioral Telemetry Analytics and Session Replay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemetria

package queue

import "errors"

var (
	// ErrEnqueueTimeout indicates the queue backend did not accept a batch
	// within the publish timeout. Retryable: enqueue is idempotent on
	// batch ID, so the caller may safely resubmit the whole batch.
	ErrEnqueueTimeout = errors.New("enqueue timed out")

	// ErrPublisherClosed indicates a publish after Close.
	ErrPublisherClosed = errors.New("publisher is closed")
)
