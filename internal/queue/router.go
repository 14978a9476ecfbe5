// Telemetria - Behavioral Telemetry Analytics and Session Replay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemetria

package queue

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/tomtom215/telemetria/internal/config"
)

// Router wraps the Watermill router with the middleware chain used for
// batch processing: panic recovery, in-delivery retry with exponential
// backoff, and poison-queue routing once retries are exhausted. JetStream
// redelivery (MaxDeliver) sits outside this chain, so a batch gets
// MaxDeliver deliveries of RetryMaxRetries attempts each before it is
// dead-lettered.
type Router struct {
	router    *message.Router
	logger    watermill.LoggerAdapter
	poisonPub message.Publisher
	running   bool
}

// NewRouter creates a router with the standard middleware chain.
// poisonPublisher may be nil to disable dead-lettering (tests).
func NewRouter(cfg *config.QueueConfig, poisonPublisher message.Publisher, logger watermill.LoggerAdapter) (*Router, error) {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}

	wmRouter, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: cfg.CloseTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	wmRouter.AddMiddleware(middleware.Recoverer)

	retryMiddleware := middleware.Retry{
		MaxRetries:      cfg.RetryMaxRetries,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
		Multiplier:      cfg.RetryMultiplier,
		Logger:          logger,
	}
	wmRouter.AddMiddleware(retryMiddleware.Middleware)

	var poisonPub message.Publisher
	if poisonPublisher != nil && cfg.PoisonTopic != "" {
		// The ID rewrite is what keeps the dead-letter publish out of
		// the original enqueue's duplicate window; see PoisonPublisher.
		poisonPub = NewPoisonPublisher(poisonPublisher)
		poisonQueue, err := middleware.PoisonQueue(poisonPub, cfg.PoisonTopic)
		if err != nil {
			return nil, fmt.Errorf("create poison queue middleware: %w", err)
		}
		wmRouter.AddMiddleware(poisonQueue)
	}

	return &Router{
		router:    wmRouter,
		logger:    logger,
		poisonPub: poisonPub,
	}, nil
}

// AddConsumerHandler registers a handler that consumes without producing
// output messages.
func (r *Router) AddConsumerHandler(
	name string,
	subscribeTopic string,
	subscriber message.Subscriber,
	handler message.NoPublishHandlerFunc,
) *message.Handler {
	return r.router.AddConsumerHandler(name, subscribeTopic, subscriber, handler)
}

// Run starts the router and blocks until context cancellation or Close.
func (r *Router) Run(ctx context.Context) error {
	r.running = true
	defer func() { r.running = false }()
	return r.router.Run(ctx)
}

// RunAsync starts the router in the background and returns a channel
// that closes once all handlers are running.
func (r *Router) RunAsync(ctx context.Context) <-chan struct{} {
	running := make(chan struct{})

	go func() {
		go func() {
			r.running = true
			defer func() { r.running = false }()
			if err := r.router.Run(ctx); err != nil {
				r.logger.Error("Router error", err, nil)
			}
		}()

		<-r.router.Running()
		close(running)
	}()

	return running
}

// Running returns a channel that closes when the router is running.
func (r *Router) Running() <-chan struct{} {
	return r.router.Running()
}

// IsRunning reports whether the router is processing messages.
func (r *Router) IsRunning() bool {
	return r.running
}

// Close gracefully stops the router, waiting up to CloseTimeout for
// in-flight batches.
func (r *Router) Close() error {
	return r.router.Close()
}
