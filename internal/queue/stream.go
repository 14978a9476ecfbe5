// Telemetria - Behavioral Telemetry Analytics and Session Replay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemetria

package queue

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/telemetria/internal/config"
)

// StreamManager handles JetStream stream lifecycle for the batch queue.
type StreamManager struct {
	js  jetstream.JetStream
	cfg config.QueueConfig
}

// NewStreamManager creates a stream manager over an established NATS
// connection.
func NewStreamManager(nc *nats.Conn, cfg *config.QueueConfig) (*StreamManager, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	return &StreamManager{
		js:  js,
		cfg: *cfg,
	}, nil
}

// EnsureStream creates or updates the batch stream. The stream covers both
// the ingest subject and the poison topic so dead-lettered batches share
// the same durability guarantees as live ones. The Duplicates window is
// what makes enqueue idempotent on batch ID.
func (m *StreamManager) EnsureStream(ctx context.Context) (jetstream.Stream, error) {
	streamCfg := jetstream.StreamConfig{
		Name:       m.cfg.StreamName,
		Subjects:   []string{m.cfg.Subject, m.cfg.PoisonTopic},
		Retention:  jetstream.LimitsPolicy,
		MaxAge:     m.cfg.MaxAge,
		MaxBytes:   m.cfg.MaxBytes,
		Duplicates: m.cfg.DuplicateWindow,
		Storage:    jetstream.FileStorage,
		Discard:    jetstream.DiscardOld,
	}

	if _, err := m.js.Stream(ctx, m.cfg.StreamName); err == nil {
		stream, err := m.js.UpdateStream(ctx, streamCfg)
		if err != nil {
			return nil, fmt.Errorf("update stream: %w", err)
		}
		return stream, nil
	}

	stream, err := m.js.CreateStream(ctx, streamCfg)
	if err != nil {
		return nil, fmt.Errorf("create stream: %w", err)
	}
	return stream, nil
}

// StreamInfo returns current stream state, including pending message
// counts used for queue-depth reporting.
func (m *StreamManager) StreamInfo(ctx context.Context) (*jetstream.StreamInfo, error) {
	stream, err := m.js.Stream(ctx, m.cfg.StreamName)
	if err != nil {
		return nil, fmt.Errorf("get stream: %w", err)
	}
	return stream.Info(ctx)
}
