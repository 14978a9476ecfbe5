// Telemetria - Behavioral Telemetry Analytics and Session Replay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemetria

package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/telemetria/internal/config"
	"github.com/tomtom215/telemetria/internal/metrics"
	"github.com/tomtom215/telemetria/internal/models"
)

const (
	publisherReconnectWait   = 2 * time.Second
	publisherReconnectBuffer = 8 * 1024 * 1024
)

// Publisher wraps a Watermill NATS publisher with circuit breaker
// protection. Every batch is published with Nats-Msg-Id set to its batch
// ID, so re-publishing the same batch inside the stream's duplicate
// window is absorbed server-side.
type Publisher struct {
	publisher      message.Publisher
	circuitBreaker *gobreaker.CircuitBreaker[interface{}]
	subject        string
	publishTimeout time.Duration
	serializer     *Serializer

	mu     sync.RWMutex
	closed bool
	logger watermill.LoggerAdapter
}

// NewPublisher creates a JetStream publisher for the batch subject.
// The stream must already exist; AutoProvision is off so a wildcard or
// misconfigured subject fails loudly at startup instead of creating a
// stray stream.
func NewPublisher(cfg *config.QueueConfig, url string, logger watermill.LoggerAdapter) (*Publisher, error) {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(publisherReconnectWait),
		natsgo.ReconnectBufSize(publisherReconnectBuffer),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}

	wmConfig := wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: false,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}

	pub, err := wmNats.NewPublisher(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	return &Publisher{
		publisher:      pub,
		subject:        cfg.Subject,
		publishTimeout: cfg.PublishTimeout,
		serializer:     NewSerializer(),
		logger:         logger,
	}, nil
}

// SetCircuitBreaker configures the circuit breaker for publish operations.
func (p *Publisher) SetCircuitBreaker(cb *gobreaker.CircuitBreaker[interface{}]) {
	p.circuitBreaker = cb
}

// EnqueueBatch serializes a validated batch and publishes it to the batch
// subject. The batch ID doubles as the JetStream message ID, making the
// enqueue idempotent: a client retrying a whole batch after a lost
// response does not double-process it.
//
// A publish that exceeds the configured timeout returns ErrEnqueueTimeout
// so the HTTP layer can answer 503 and the client can retry.
func (p *Publisher) EnqueueBatch(ctx context.Context, batch *models.Batch) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrPublisherClosed
	}
	p.mu.RUnlock()

	data, err := p.serializer.Marshal(batch)
	if err != nil {
		return fmt.Errorf("serialize batch: %w", err)
	}

	msg := message.NewMessage(batch.BatchID, data)
	msg.Metadata.Set(natsgo.MsgIdHdr, batch.BatchID)
	msg.Metadata.Set("event_count", fmt.Sprintf("%d", len(batch.Events)))

	err = p.publishWithTimeout(ctx, msg)
	metrics.RecordQueuePublish(err)

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: batch %s", ErrEnqueueTimeout, batch.BatchID)
	}
	return err
}

// publishWithTimeout runs the (blocking) JetStream publish in a goroutine
// so a wedged backend cannot hold the caller past the deadline. The
// orphaned publish either lands inside the duplicate window on retry or
// fails with the connection.
func (p *Publisher) publishWithTimeout(ctx context.Context, msg *message.Message) error {
	timeout := p.publishTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- p.publish(msg)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Publisher) publish(msg *message.Message) error {
	if p.circuitBreaker != nil {
		_, err := p.circuitBreaker.Execute(func() (interface{}, error) {
			return nil, p.publisher.Publish(p.subject, msg)
		})
		return err
	}
	return p.publisher.Publish(p.subject, msg)
}

// Close gracefully shuts down the publisher.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	return p.publisher.Close()
}

// WatermillPublisher returns the underlying Watermill publisher for
// components that need the native interface (poison queue middleware).
func (p *Publisher) WatermillPublisher() message.Publisher {
	return p.publisher
}
