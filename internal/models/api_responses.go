// Telemetria - Behavioral Telemetry Analytics and Session Replay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemetria

package models

import "time"

// APIResponse is the uniform response envelope for all endpoints.
//
// Success:
//
//	{"status":"ok","data":{...},"metadata":{"timestamp":"..."}}
//
// Error:
//
//	{"status":"error","error":{"code":"VALIDATION_ERROR","message":"...",
//	 "details":{"field":"events[2].xNorm"}},"metadata":{...}}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata for observability.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
}

// APIError is a structured error payload.
//
// Error codes used by this service:
//   - VALIDATION_ERROR: malformed or out-of-range batch/request (4xx, never retried)
//   - ENQUEUE_TIMEOUT: queue backend unresponsive (5xx, safe to retry the batch)
//   - NOT_FOUND: resource does not exist
//   - DATABASE_ERROR: query execution failure
//   - RATE_LIMIT_EXCEEDED: too many requests
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
