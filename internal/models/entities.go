// Telemetria - Behavioral Telemetry Analytics and Session Replay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemetria

package models

import (
	"time"

	"github.com/goccy/go-json"
)

// Session is one browser session. CreatedAt is immutable; Location and
// Device are refreshed by every event (last-seen wins).
type Session struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	ClientID  string    `json:"clientId"`
	UserID    string    `json:"userId,omitempty"`
	Location  string    `json:"location"`
	Device    string    `json:"device"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StoredEvent is one row of the generic event log, keyed by EventID.
type StoredEvent struct {
	EventID   string    `json:"eventId"`
	ProjectID string    `json:"projectId"`
	SessionID string    `json:"sessionId"`
	ClientID  string    `json:"clientId"`
	UserID    string    `json:"userId,omitempty"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	URL       string    `json:"url"`
	Referrer  string    `json:"referrer,omitempty"`
}

// ReplayFrame is one verbatim rrweb frame within a replay.
type ReplayFrame struct {
	EventID       string          `json:"eventId"`
	ReplayID      string          `json:"replayId"`
	SessionID     string          `json:"sessionId"`
	ProjectID     string          `json:"projectId"`
	Timestamp     time.Time       `json:"timestamp"`
	SchemaVersion int             `json:"schemaVersion"`
	Payload       json.RawMessage `json:"payload"`
}

// Replay groups the frames of one tab-scoped recording, ordered by
// timestamp.
type Replay struct {
	ReplayID  string        `json:"replayId"`
	SessionID string        `json:"sessionId"`
	StartedAt time.Time     `json:"startedAt"`
	EndedAt   time.Time     `json:"endedAt"`
	Frames    []ReplayFrame `json:"frames"`
}

// HeatmapBucket is one cell of the fixed 50x50 normalized click grid for
// one page URL. Metadata fields are denormalized from the most recent
// contributing click.
type HeatmapBucket struct {
	ProjectID   string    `json:"projectId"`
	URL         string    `json:"url"`
	GridX       int       `json:"gridX"`
	GridY       int       `json:"gridY"`
	Count       int64     `json:"count"`
	LastClickAt time.Time `json:"lastClickAt"`
	Selector    string    `json:"selector,omitempty"`
	Tag         string    `json:"tag,omitempty"`
	PageWidth   int       `json:"pageWidth,omitempty"`
	PageHeight  int       `json:"pageHeight,omitempty"`
	ViewWidth   int       `json:"viewWidth,omitempty"`
	ViewHeight  int       `json:"viewHeight,omitempty"`
}

// UserIdentity is the cohort-assignment record, keyed by
// (projectId, distinctId). FirstSeenAt and Country are set exactly once on
// first sight and never change.
type UserIdentity struct {
	ProjectID   string    `json:"projectId"`
	DistinctID  string    `json:"distinctId"`
	FirstSeenAt time.Time `json:"firstSeenAt"`
	Country     string    `json:"country"`
}

// UserDailyActivity is one row per identity per UTC day, a write-heavy
// denormalization that keeps retention queries O(days) instead of
// O(events).
type UserDailyActivity struct {
	ProjectID      string    `json:"projectId"`
	DistinctID     string    `json:"distinctId"`
	ActivityDate   time.Time `json:"activityDate"`
	LastActivityAt time.Time `json:"lastActivityAt"`
}

// FailedJob is a dead-lettered batch job persisted for diagnostics after
// the queue's delivery ceiling was exhausted.
type FailedJob struct {
	JobID   string `json:"jobId"`
	Topic   string `json:"topic"`
	Payload []byte `json:"payload"`
	Error   string `json:"error"`
	// Attempts counts the in-process processing attempts within the
	// delivery that dead-lettered the job.
	Attempts int       `json:"attempts"`
	FailedAt time.Time `json:"failedAt"`
}
