// Telemetria - Behavioral Telemetry Analytics and Session Replay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemetria

package models

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestEvent_DistinctID(t *testing.T) {
	t.Run("userId wins when present", func(t *testing.T) {
		e := &Event{UserID: "user-1", ClientID: "client-1"}
		if got := e.DistinctID(); got != "user-1" {
			t.Errorf("DistinctID() = %q, expected user-1", got)
		}
	})

	t.Run("falls back to clientId", func(t *testing.T) {
		e := &Event{ClientID: "client-1"}
		if got := e.DistinctID(); got != "client-1" {
			t.Errorf("DistinctID() = %q, expected client-1", got)
		}
	})
}

func TestEvent_ActivityDate(t *testing.T) {
	// 2025-03-01T23:59:59.500Z
	ms := time.Date(2025, 3, 1, 23, 59, 59, 500e6, time.UTC).UnixMilli()
	e := &Event{Timestamp: ms}

	got := e.ActivityDate()
	expected := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(expected) {
		t.Errorf("ActivityDate() = %v, expected %v", got, expected)
	}
	if got.Location() != time.UTC {
		t.Errorf("ActivityDate() must be UTC, got %v", got.Location())
	}
}

func TestEvent_DeviceClass(t *testing.T) {
	cases := []struct {
		name     string
		event    Event
		expected string
	}{
		{"explicit screen class wins", Event{ScreenClass: "tablet", Viewport: Dimensions{Width: 320}}, "tablet"},
		{"narrow viewport is mobile", Event{Viewport: Dimensions{Width: 375}}, ScreenClassMobile},
		{"medium viewport is tablet", Event{Viewport: Dimensions{Width: 800}}, ScreenClassTablet},
		{"wide viewport is desktop", Event{Viewport: Dimensions{Width: 1920}}, ScreenClassDesktop},
		{"boundary 768 is tablet", Event{Viewport: Dimensions{Width: 768}}, ScreenClassTablet},
		{"boundary 1024 is desktop", Event{Viewport: Dimensions{Width: 1024}}, ScreenClassDesktop},
		{"zero viewport is desktop", Event{}, ScreenClassDesktop},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.event.DeviceClass(); got != tc.expected {
				t.Errorf("DeviceClass() = %q, expected %q", got, tc.expected)
			}
		})
	}
}

func TestEvent_IsInteraction(t *testing.T) {
	interactions := []string{EventTypeClick, EventTypeInput, EventTypeCustom, EventTypeRoute}
	for _, typ := range interactions {
		if !(&Event{Type: typ}).IsInteraction() {
			t.Errorf("expected %s to count as interaction", typ)
		}
	}
	for _, typ := range []string{EventTypePageView, EventTypeReplay} {
		if (&Event{Type: typ}).IsInteraction() {
			t.Errorf("expected %s not to count as interaction", typ)
		}
	}
}

func TestIsKnownEventType(t *testing.T) {
	for _, typ := range []string{"rrweb", "click", "page_view", "input", "custom", "route"} {
		if !IsKnownEventType(typ) {
			t.Errorf("expected %s to be known", typ)
		}
	}
	if IsKnownEventType("scroll") {
		t.Error("expected scroll to be unknown")
	}
	if IsKnownEventType("") {
		t.Error("expected empty type to be unknown")
	}
}

func TestEvent_EffectiveSchemaVersion(t *testing.T) {
	if got := (&Event{}).EffectiveSchemaVersion(); got != 1 {
		t.Errorf("expected default schema version 1, got %d", got)
	}
	if got := (&Event{SchemaVersion: 3}).EffectiveSchemaVersion(); got != 3 {
		t.Errorf("expected schema version 3, got %d", got)
	}
}

func TestBatch_JSONRoundTrip(t *testing.T) {
	x := 0.42
	y := 0.13
	batch := &Batch{
		BatchID:   "batch-1",
		Timestamp: 1740000000000,
		Events: []Event{
			{
				EventID:   "evt-1",
				ProjectID: "proj-1",
				SessionID: "sess-1",
				ClientID:  "client-1",
				Type:      EventTypeClick,
				Timestamp: 1740000000100,
				URL:       "https://example.com/pricing",
				XNorm:     &x,
				YNorm:     &y,
				Selector:  "#buy-now",
				Tag:       "button",
			},
		},
	}

	data, err := json.Marshal(batch)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded Batch
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded.BatchID != "batch-1" {
		t.Errorf("expected batchId batch-1, got %q", decoded.BatchID)
	}
	if len(decoded.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(decoded.Events))
	}
	if decoded.Events[0].XNorm == nil || *decoded.Events[0].XNorm != 0.42 {
		t.Errorf("expected xNorm 0.42, got %v", decoded.Events[0].XNorm)
	}

	// camelCase wire contract
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if _, ok := raw["batchId"]; !ok {
		t.Error("expected batchId key on the wire")
	}
}
