// Telemetria - Behavioral Telemetry Analytics and Session Replay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemetria

// Package models defines the data model shared across the ingestion
// pipeline, persistence layer, and HTTP surface.
package models

import (
	"time"

	"github.com/goccy/go-json"
)

// SchemaVersion is the current replay event schema version.
const SchemaVersion = 1

// Event type tags sent by browser clients.
const (
	// EventTypeReplay carries one rrweb DOM-mutation frame.
	EventTypeReplay = "rrweb"
	// EventTypeClick is a pointer click with normalized coordinates.
	EventTypeClick = "click"
	// EventTypePageView marks a navigation to a URL.
	EventTypePageView = "page_view"
	// EventTypeInput is a form interaction (no type-specific persistence).
	EventTypeInput = "input"
	// EventTypeCustom is a client-defined interaction event.
	EventTypeCustom = "custom"
	// EventTypeRoute is a client-side route change.
	EventTypeRoute = "route"
)

// Screen class labels for click events and session device attribution.
const (
	ScreenClassMobile  = "mobile"
	ScreenClassTablet  = "tablet"
	ScreenClassDesktop = "desktop"
)

// Viewport width breakpoints for deriving a screen class when the client
// did not send one.
const (
	mobileMaxWidth = 768
	tabletMaxWidth = 1024
)

// Batch is a client-submitted group of events sharing one idempotency key.
// BatchID is the queue enqueue dedup key: re-submitting the same batch must
// not create a second job.
type Batch struct {
	BatchID   string  `json:"batchId" validate:"required"`
	Timestamp int64   `json:"timestamp" validate:"required,gt=0"`
	Events    []Event `json:"events" validate:"required,min=1,dive"`

	// Country is resolved by the gateway from the client address before
	// the batch is enqueued. Never set by clients.
	Country string `json:"country,omitempty"`
}

// Dimensions is a width/height pair in CSS pixels.
type Dimensions struct {
	Width  int `json:"width" validate:"min=0"`
	Height int `json:"height" validate:"min=0"`
}

// Event is the tagged union over all client event shapes. Type selects
// which optional field group is meaningful; ValidateBatch enforces the
// per-type shape before anything is enqueued.
//
// EventID is globally unique and is the dedup key for every downstream
// write: clients deliver at-least-once and duplicates are absorbed at the
// store layer.
type Event struct {
	EventID   string `json:"eventId" validate:"required"`
	ProjectID string `json:"projectId" validate:"required"`
	SessionID string `json:"sessionId" validate:"required"`
	ClientID  string `json:"clientId" validate:"required"`
	UserID    string `json:"userId,omitempty"`
	Type      string `json:"type" validate:"required,event_type"`
	Timestamp int64  `json:"timestamp" validate:"required,gt=0"`
	URL       string `json:"url" validate:"required"`
	Referrer  string `json:"referrer,omitempty"`

	PageDimensions Dimensions `json:"pageDimensions"`
	Viewport       Dimensions `json:"viewport"`

	// Replay fields (type=rrweb). Payload is stored verbatim; ordering
	// within a replay is restored by timestamp on read, not on write.
	ReplayID      string          `json:"replayId,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	SchemaVersion int             `json:"schemaVersion,omitempty"`

	// Click fields (type=click). Normalized coordinates are pointers so
	// that 0.0 is distinguishable from absent.
	XNorm       *float64 `json:"xNorm,omitempty" validate:"omitempty,norm_coord"`
	YNorm       *float64 `json:"yNorm,omitempty" validate:"omitempty,norm_coord"`
	PageX       int      `json:"pageX,omitempty"`
	PageY       int      `json:"pageY,omitempty"`
	Selector    string   `json:"selector,omitempty"`
	Tag         string   `json:"tag,omitempty"`
	LayoutHash  string   `json:"layoutHash,omitempty"`
	ScreenClass string   `json:"screenClass,omitempty"`
}

// knownEventTypes is the closed set of accepted type tags. Anything else is
// a validation failure at ingest and a distinct processing error if it ever
// reaches the worker.
var knownEventTypes = map[string]struct{}{
	EventTypeReplay:   {},
	EventTypeClick:    {},
	EventTypePageView: {},
	EventTypeInput:    {},
	EventTypeCustom:   {},
	EventTypeRoute:    {},
}

// IsKnownEventType reports whether t is an accepted event type tag.
func IsKnownEventType(t string) bool {
	_, ok := knownEventTypes[t]
	return ok
}

// IsInteraction reports whether the event counts against bounce
// classification (a bounced session has one page view and zero of these).
func (e *Event) IsInteraction() bool {
	switch e.Type {
	case EventTypeClick, EventTypeInput, EventTypeCustom, EventTypeRoute:
		return true
	default:
		return false
	}
}

// DistinctID returns the retention identity: userId when known, else
// clientId.
func (e *Event) DistinctID() string {
	if e.UserID != "" {
		return e.UserID
	}
	return e.ClientID
}

// Time converts the epoch-millisecond wire timestamp to UTC.
func (e *Event) Time() time.Time {
	return TimeFromMillis(e.Timestamp)
}

// ActivityDate returns the UTC calendar date of the event, the
// UserDailyActivity key component.
func (e *Event) ActivityDate() time.Time {
	t := e.Time()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DeviceClass returns the client-reported screen class, or derives one from
// the viewport width when absent.
func (e *Event) DeviceClass() string {
	if e.ScreenClass != "" {
		return e.ScreenClass
	}
	switch {
	case e.Viewport.Width > 0 && e.Viewport.Width < mobileMaxWidth:
		return ScreenClassMobile
	case e.Viewport.Width > 0 && e.Viewport.Width < tabletMaxWidth:
		return ScreenClassTablet
	default:
		return ScreenClassDesktop
	}
}

// EffectiveSchemaVersion returns the replay schema version, defaulting to 1
// for events recorded before the field existed.
func (e *Event) EffectiveSchemaVersion() int {
	if e.SchemaVersion == 0 {
		return SchemaVersion
	}
	return e.SchemaVersion
}

// TimeFromMillis converts an epoch-millisecond timestamp to UTC time.
func TimeFromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
