// Telemetria - Behavioral Telemetry Analytics and Session Replay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemetria

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/telemetria/internal/models"
)

// Health reports store connectivity and queue depth. Status degrades to
// "degraded" when the store does not answer; the endpoint itself still
// returns 200 so probes can read the detail.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	ctx := r.Context()

	status := "ok"
	dbStatus := "ok"
	if err := h.db.Ping(ctx); err != nil {
		status = "degraded"
		dbStatus = "unreachable"
	}

	var counts models.QueueCounts
	if h.queue != nil {
		counts = h.queue.Counts(ctx)
	}

	rw.Success(models.HealthStatus{
		Status:   status,
		Database: dbStatus,
		Queue:    counts,
		Uptime:   time.Since(h.startTime).Round(time.Second).String(),
	})
}

// HealthLive is the liveness probe: the process is up.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]string{"status": "alive"})
}

// HealthReady is the readiness probe: 503 until the store answers.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if err := h.db.Ping(r.Context()); err != nil {
		rw.Error(http.StatusServiceUnavailable, ErrCodeDatabase, "store not ready")
		return
	}

	rw.Success(map[string]string{"status": "ready"})
}
