// Telemetria - Behavioral Telemetry Analytics and Session Replay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemetria

package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/tomtom215/telemetria/internal/logging"
	"github.com/tomtom215/telemetria/internal/metrics"
	"github.com/tomtom215/telemetria/internal/models"
	"github.com/tomtom215/telemetria/internal/queue"
	"github.com/tomtom215/telemetria/internal/validation"
)

// Ingest accepts a batch of events: validate, resolve the client country,
// enqueue, acknowledge with 202. Persistence happens asynchronously; the
// response only promises the batch is durably queued. JobID equals
// BatchID so clients can correlate a retried submission with its original
// acknowledgment.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.cfg.Server.MaxBatchBytes))
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			metrics.RecordIngestRejection("too_large")
			rw.Error(http.StatusRequestEntityTooLarge, ErrCodeValidation, "request body exceeds limit")
			return
		}
		metrics.RecordIngestRejection("read_error")
		rw.BadRequest("failed to read request body")
		return
	}

	batch, verr := validation.ValidateBatch(body)
	if verr != nil {
		metrics.RecordIngestRejection("validation")
		rw.WriteAPIError(http.StatusBadRequest, verr.ToAPIError())
		return
	}

	batch.Country = h.resolveCountry(r)

	if err := h.enqueuer.EnqueueBatch(r.Context(), batch); err != nil {
		if errors.Is(err, queue.ErrEnqueueTimeout) {
			logging.Ctx(r.Context()).Warn().
				Str("batch_id", batch.BatchID).
				Msg("Enqueue timed out")
			rw.EnqueueTimeout("queue backend unavailable, retry the batch")
			return
		}
		logging.Ctx(r.Context()).Error().
			Str("batch_id", batch.BatchID).
			Err(err).
			Msg("Enqueue failed")
		rw.EnqueueTimeout("queue backend unavailable, retry the batch")
		return
	}

	metrics.RecordIngest(len(batch.Events), len(body))
	rw.Accepted(models.IngestAccepted{
		Success: true,
		BatchID: batch.BatchID,
		JobID:   batch.BatchID,
	})
}

// resolveCountry attributes the batch to a country from the forwarding
// chain, falling back to the transport address. Resolution never fails;
// unresolvable clients get the configured default.
func (h *Handler) resolveCountry(r *http.Request) string {
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded == "" {
		forwarded = r.RemoteAddr
	}
	return h.resolver.Resolve(r.Context(), forwarded)
}
