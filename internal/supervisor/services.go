// Telemetria - Behavioral Telemetry Analytics and Session Replay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemetria

package supervisor

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/telemetria/internal/logging"
)

var (
	_ suture.Service = (*HTTPService)(nil)
	_ suture.Service = (*RunnerService)(nil)
	_ suture.Service = (*CheckpointService)(nil)
)

// HTTPService runs an http.Server under supervision. Serve blocks until
// the context is canceled, then shuts the server down gracefully within
// ShutdownTimeout.
type HTTPService struct {
	Server          *http.Server
	ShutdownTimeout time.Duration
}

// Serve implements suture.Service.
func (s *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		timeout := s.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := s.Server.Shutdown(shutdownCtx); err != nil {
			logging.Warn().Err(err).Msg("HTTP server shutdown incomplete")
		}
		<-errCh
		return ctx.Err()
	}
}

func (s *HTTPService) String() string { return "http-server" }

// RunnerService adapts a blocking Run(ctx) component (the Watermill
// router) to suture.Service.
type RunnerService struct {
	Name   string
	Runner interface {
		Run(ctx context.Context) error
	}
}

// Serve implements suture.Service.
func (s *RunnerService) Serve(ctx context.Context) error {
	err := s.Runner.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return err
	}
	if err != nil {
		logging.Error().Str("service", s.Name).Err(err).Msg("Supervised runner exited")
	}
	return err
}

func (s *RunnerService) String() string { return s.Name }

// CheckpointService periodically checkpoints the store so the WAL stays
// bounded and a crash loses at most one interval of buffered state.
type CheckpointService struct {
	DB interface {
		Checkpoint(ctx context.Context) error
	}
	Interval time.Duration
}

// Serve implements suture.Service.
func (s *CheckpointService) Serve(ctx context.Context) error {
	interval := s.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.DB.Checkpoint(ctx); err != nil {
				logging.Warn().Err(err).Msg("Periodic checkpoint failed")
			}
		}
	}
}

func (s *CheckpointService) String() string { return "store-checkpointer" }
