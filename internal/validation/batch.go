// Telemetria - Behavioral Telemetry Analytics and Session Replay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemetria

package validation

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/telemetria/internal/models"
)

// ValidateBatch decodes and validates an inbound batch payload against the
// structural contract: at least one event, every event matching one of the
// known type-tagged shapes with required fields present and coordinates in
// range. It has no side effects; on failure the caller must not enqueue.
func ValidateBatch(raw []byte) (*models.Batch, *RequestValidationError) {
	var batch models.Batch
	if err := json.Unmarshal(raw, &batch); err != nil {
		return nil, &RequestValidationError{errors: []FieldError{
			newFieldError("batch", "json", fmt.Sprintf("body is not a valid batch: %v", err)),
		}}
	}

	if verr := ValidateStruct(&batch); verr != nil {
		return nil, verr
	}

	// Per-type shape requirements that struct tags cannot express.
	var fieldErrors []FieldError
	for i := range batch.Events {
		fieldErrors = append(fieldErrors, validateEventShape(i, &batch.Events[i])...)
	}
	if len(fieldErrors) > 0 {
		return nil, &RequestValidationError{errors: fieldErrors}
	}

	return &batch, nil
}

// validateEventShape enforces the type-specific required fields for one
// event. Field paths use the events[i] index so clients can locate the
// offending entry.
func validateEventShape(i int, e *models.Event) []FieldError {
	path := func(field string) string {
		return fmt.Sprintf("events[%d].%s", i, field)
	}

	var errs []FieldError
	switch e.Type {
	case models.EventTypeReplay:
		if e.ReplayID == "" {
			errs = append(errs, newFieldError(path("replayId"), "required",
				path("replayId")+" is required for rrweb events"))
		}
		if len(e.Payload) == 0 {
			errs = append(errs, newFieldError(path("payload"), "required",
				path("payload")+" is required for rrweb events"))
		}

	case models.EventTypeClick:
		if e.XNorm == nil {
			errs = append(errs, newFieldError(path("xNorm"), "required",
				path("xNorm")+" is required for click events"))
		}
		if e.YNorm == nil {
			errs = append(errs, newFieldError(path("yNorm"), "required",
				path("yNorm")+" is required for click events"))
		}

	default:
		// Base shape only; struct tags already enforced required fields
		// and rejected unknown type tags.
	}

	return errs
}
