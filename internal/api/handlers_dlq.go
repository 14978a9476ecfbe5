// Telemetria - Behavioral Telemetry Analytics and Session Replay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemetria

package api

import (
	"net/http"
)

// ListFailedJobs returns dead-lettered batches for diagnostics, newest
// first.
func (h *Handler) ListFailedJobs(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	limit, err := parseLimit(r.URL.Query().Get("limit"), 100)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	jobs, err := h.db.ListFailedJobs(r.Context(), limit)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.Success(jobs)
}
