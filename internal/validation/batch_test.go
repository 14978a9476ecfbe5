// Telemetria - Behavioral Telemetry Analytics and Session Replay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemetria

package validation

import (
	"strings"
	"testing"
)

const validClickBatch = `{
	"batchId": "batch-1",
	"timestamp": 1740000000000,
	"events": [{
		"eventId": "evt-1",
		"projectId": "proj-1",
		"sessionId": "sess-1",
		"clientId": "client-1",
		"type": "click",
		"timestamp": 1740000000100,
		"url": "https://example.com/",
		"pageDimensions": {"width": 1280, "height": 4000},
		"viewport": {"width": 1280, "height": 720},
		"xNorm": 0.5,
		"yNorm": 0.25,
		"selector": "#cta",
		"tag": "button"
	}]
}`

func TestValidateBatch_Valid(t *testing.T) {
	batch, verr := ValidateBatch([]byte(validClickBatch))
	if verr != nil {
		t.Fatalf("unexpected validation error: %v", verr)
	}
	if batch.BatchID != "batch-1" {
		t.Errorf("expected batchId batch-1, got %q", batch.BatchID)
	}
	if len(batch.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(batch.Events))
	}
	if batch.Events[0].XNorm == nil || *batch.Events[0].XNorm != 0.5 {
		t.Errorf("expected xNorm 0.5, got %v", batch.Events[0].XNorm)
	}
}

func TestValidateBatch_MalformedJSON(t *testing.T) {
	_, verr := ValidateBatch([]byte(`{"batchId": `))
	if verr == nil {
		t.Fatal("expected validation error for malformed JSON")
	}
	if verr.Errors()[0].Tag() != "json" {
		t.Errorf("expected json tag, got %q", verr.Errors()[0].Tag())
	}
}

func TestValidateBatch_EmptyEvents(t *testing.T) {
	_, verr := ValidateBatch([]byte(`{"batchId":"b","timestamp":1,"events":[]}`))
	if verr == nil {
		t.Fatal("expected validation error for empty events")
	}
	if !strings.Contains(verr.Error(), "Events") {
		t.Errorf("expected error to mention Events, got %q", verr.Error())
	}
}

func TestValidateBatch_UnknownEventType(t *testing.T) {
	payload := strings.Replace(validClickBatch, `"type": "click"`, `"type": "scroll"`, 1)
	_, verr := ValidateBatch([]byte(payload))
	if verr == nil {
		t.Fatal("expected validation error for unknown type")
	}
	found := false
	for _, fe := range verr.Errors() {
		if fe.Tag() == "event_type" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected event_type failure, got %v", verr)
	}
}

func TestValidateBatch_CoordinateRange(t *testing.T) {
	t.Run("xNorm above 1 rejected", func(t *testing.T) {
		payload := strings.Replace(validClickBatch, `"xNorm": 0.5`, `"xNorm": 1.5`, 1)
		_, verr := ValidateBatch([]byte(payload))
		if verr == nil {
			t.Fatal("expected validation error for out-of-range xNorm")
		}
	})

	t.Run("negative yNorm rejected", func(t *testing.T) {
		payload := strings.Replace(validClickBatch, `"yNorm": 0.25`, `"yNorm": -0.1`, 1)
		_, verr := ValidateBatch([]byte(payload))
		if verr == nil {
			t.Fatal("expected validation error for negative yNorm")
		}
	})

	t.Run("boundary values accepted", func(t *testing.T) {
		payload := strings.Replace(validClickBatch, `"xNorm": 0.5`, `"xNorm": 1.0`, 1)
		payload = strings.Replace(payload, `"yNorm": 0.25`, `"yNorm": 0.0`, 1)
		if _, verr := ValidateBatch([]byte(payload)); verr != nil {
			t.Fatalf("expected 0.0 and 1.0 to validate, got %v", verr)
		}
	})
}

func TestValidateBatch_ClickMissingCoordinates(t *testing.T) {
	payload := strings.Replace(validClickBatch, `"xNorm": 0.5,`, ``, 1)
	_, verr := ValidateBatch([]byte(payload))
	if verr == nil {
		t.Fatal("expected validation error for click without xNorm")
	}
	if !strings.Contains(verr.Error(), "events[0].xNorm") {
		t.Errorf("expected field path events[0].xNorm, got %q", verr.Error())
	}
}

func TestValidateBatch_ReplayShape(t *testing.T) {
	replay := `{
		"batchId": "batch-2",
		"timestamp": 1740000000000,
		"events": [{
			"eventId": "evt-2",
			"projectId": "proj-1",
			"sessionId": "sess-1",
			"clientId": "client-1",
			"type": "rrweb",
			"timestamp": 1740000000100,
			"url": "https://example.com/",
			"replayId": "rp-1",
			"payload": {"type": 2, "data": {}},
			"schemaVersion": 1
		}]
	}`

	t.Run("valid replay accepted", func(t *testing.T) {
		batch, verr := ValidateBatch([]byte(replay))
		if verr != nil {
			t.Fatalf("unexpected error: %v", verr)
		}
		if batch.Events[0].ReplayID != "rp-1" {
			t.Errorf("expected replayId rp-1, got %q", batch.Events[0].ReplayID)
		}
	})

	t.Run("missing replayId rejected", func(t *testing.T) {
		payload := strings.Replace(replay, `"replayId": "rp-1",`, ``, 1)
		_, verr := ValidateBatch([]byte(payload))
		if verr == nil {
			t.Fatal("expected validation error for replay without replayId")
		}
		if !strings.Contains(verr.Error(), "events[0].replayId") {
			t.Errorf("expected field path events[0].replayId, got %q", verr.Error())
		}
	})

	t.Run("missing payload rejected", func(t *testing.T) {
		payload := strings.Replace(replay, `"payload": {"type": 2, "data": {}},`, ``, 1)
		_, verr := ValidateBatch([]byte(payload))
		if verr == nil {
			t.Fatal("expected validation error for replay without payload")
		}
	})
}

func TestValidateBatch_MissingRequiredBaseFields(t *testing.T) {
	payload := strings.Replace(validClickBatch, `"sessionId": "sess-1",`, ``, 1)
	_, verr := ValidateBatch([]byte(payload))
	if verr == nil {
		t.Fatal("expected validation error for missing sessionId")
	}
}

func TestToAPIError(t *testing.T) {
	_, verr := ValidateBatch([]byte(`{"batchId":"b","timestamp":1,"events":[]}`))
	if verr == nil {
		t.Fatal("expected error")
	}
	apiErr := verr.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR, got %q", apiErr.Code)
	}
	if apiErr.Message == "" {
		t.Error("expected non-empty message")
	}
}
