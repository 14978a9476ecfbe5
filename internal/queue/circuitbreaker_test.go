// Telemetria - Behavioral Telemetry Analytics and Session Replay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemetria

package queue

import (
	"errors"
	"testing"

	gobreaker "github.com/sony/gobreaker/v2"
)

func TestCircuitBreakerTripsAfterThreshold(t *testing.T) {
	t.Parallel()

	cfg := DefaultCircuitBreakerConfig()
	cfg.FailureThreshold = 3
	cb := NewCircuitBreaker(cfg)

	failing := func() (interface{}, error) {
		return nil, errors.New("backend down")
	}

	for i := range 3 {
		if _, err := cb.Execute(failing); err == nil {
			t.Fatalf("attempt %d should fail", i)
		}
	}

	if cb.State() != gobreaker.StateOpen {
		t.Errorf("state = %v, want open after %d consecutive failures", cb.State(), cfg.FailureThreshold)
	}

	if _, err := cb.Execute(failing); !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("err = %v, want ErrOpenState", err)
	}
}

func TestCircuitBreakerStaysClosedOnSuccess(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig())

	for range 10 {
		if _, err := cb.Execute(func() (interface{}, error) { return nil, nil }); err != nil {
			t.Fatalf("Execute: %v", err)
		}
	}

	if cb.State() != gobreaker.StateClosed {
		t.Errorf("state = %v, want closed", cb.State())
	}
}
