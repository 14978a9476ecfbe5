// Telemetria - Behavioral Telemetry Analytics and Session Replay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemetria

// Package api provides the HTTP surface: ingest gateway, read-side
// analytics endpoints, and operational endpoints, routed with Chi.
package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/telemetria/internal/logging"
	"github.com/tomtom215/telemetria/internal/models"
)

// Error codes for API responses.
const (
	ErrCodeValidation     = "VALIDATION_ERROR"
	ErrCodeEnqueueTimeout = "ENQUEUE_TIMEOUT"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeDatabase       = "DATABASE_ERROR"
	ErrCodeRateLimit      = "RATE_LIMIT_EXCEEDED"
)

// ResponseWriter writes the uniform response envelope. Query time is
// measured from construction, so handlers create one first thing.
type ResponseWriter struct {
	w         http.ResponseWriter
	r         *http.Request
	startTime time.Time
}

// NewResponseWriter creates a response writer for one request.
func NewResponseWriter(w http.ResponseWriter, r *http.Request) *ResponseWriter {
	return &ResponseWriter{
		w:         w,
		r:         r,
		startTime: time.Now(),
	}
}

// Success writes a 200 envelope with data.
func (rw *ResponseWriter) Success(data interface{}) {
	rw.SuccessWithStatus(http.StatusOK, data)
}

// Accepted writes a 202 envelope, the ingest acknowledgment.
func (rw *ResponseWriter) Accepted(data interface{}) {
	rw.SuccessWithStatus(http.StatusAccepted, data)
}

// SuccessWithStatus writes a success envelope with an explicit status.
func (rw *ResponseWriter) SuccessWithStatus(status int, data interface{}) {
	rw.writeJSON(status, models.APIResponse{
		Status: "ok",
		Data:   data,
		Metadata: models.Metadata{
			Timestamp:   time.Now().UTC(),
			QueryTimeMS: time.Since(rw.startTime).Milliseconds(),
		},
	})
}

// Error writes an error envelope with the given status and code.
func (rw *ResponseWriter) Error(status int, code, message string) {
	rw.WriteAPIError(status, &models.APIError{Code: code, Message: message})
}

// WriteAPIError writes a pre-built structured error, used for validation
// failures that carry field details.
func (rw *ResponseWriter) WriteAPIError(status int, apiErr *models.APIError) {
	rw.writeJSON(status, models.APIResponse{
		Status: "error",
		Error:  apiErr,
		Metadata: models.Metadata{
			Timestamp:   time.Now().UTC(),
			QueryTimeMS: time.Since(rw.startTime).Milliseconds(),
		},
	})
}

// BadRequest writes a 400 validation error.
func (rw *ResponseWriter) BadRequest(message string) {
	rw.Error(http.StatusBadRequest, ErrCodeValidation, message)
}

// NotFound writes a 404 error.
func (rw *ResponseWriter) NotFound(message string) {
	rw.Error(http.StatusNotFound, ErrCodeNotFound, message)
}

// DatabaseError logs the failure and writes a 500 without leaking query
// internals to the client.
func (rw *ResponseWriter) DatabaseError(err error) {
	logging.Ctx(rw.r.Context()).Error().Err(err).Msg("Query failed")
	rw.Error(http.StatusInternalServerError, ErrCodeDatabase, "query failed")
}

// EnqueueTimeout writes the retryable 503: the batch was not accepted,
// and re-submission with the same batch ID is safe.
func (rw *ResponseWriter) EnqueueTimeout(message string) {
	rw.w.Header().Set("Retry-After", "1")
	rw.Error(http.StatusServiceUnavailable, ErrCodeEnqueueTimeout, message)
}

func (rw *ResponseWriter) writeJSON(status int, body models.APIResponse) {
	rw.w.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.w.WriteHeader(status)

	if err := json.NewEncoder(rw.w).Encode(body); err != nil {
		logging.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
