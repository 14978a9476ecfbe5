// Telemetria - Behavioral Telemetry Analytics and Session Replay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemetria

package queue

import (
	"testing"

	"github.com/tomtom215/telemetria/internal/models"
)

func TestSerializerRoundTrip(t *testing.T) {
	t.Parallel()

	batch := &models.Batch{
		BatchID:   "batch-1",
		Timestamp: 1756600000000,
		Country:   "SE",
		Events: []models.Event{
			{
				EventID:   "evt-1",
				ProjectID: "proj-1",
				ClientID:  "client-1",
				SessionID: "sess-1",
				Type:      "page_view",
				Timestamp: 1756600000000,
				URL:       "/home",
			},
			{
				EventID:   "evt-2",
				ProjectID: "proj-1",
				ClientID:  "client-1",
				SessionID: "sess-1",
				Type:      "click",
				Timestamp: 1756600001000,
				URL:       "/home",
			},
		},
	}

	s := NewSerializer()
	data, err := s.Marshal(batch)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	got, err := s.Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if got.BatchID != batch.BatchID {
		t.Errorf("BatchID = %q, want %q", got.BatchID, batch.BatchID)
	}
	if got.Country != "SE" {
		t.Errorf("Country = %q, want SE", got.Country)
	}
	if len(got.Events) != 2 {
		t.Fatalf("len(Events) = %d, want 2", len(got.Events))
	}
	if got.Events[1].Type != "click" {
		t.Errorf("Events[1].Type = %q, want click", got.Events[1].Type)
	}
}

func TestSerializerRejectsEmptyBatchID(t *testing.T) {
	t.Parallel()

	s := NewSerializer()

	if _, err := s.Marshal(&models.Batch{Timestamp: 1}); err == nil {
		t.Error("Marshal of batch without ID should fail")
	}

	if _, err := s.Unmarshal([]byte(`{"timestamp":1,"events":[]}`)); err == nil {
		t.Error("Unmarshal of batch without ID should fail")
	}
}

func TestDeserializeBatchInvalidJSON(t *testing.T) {
	t.Parallel()

	if _, err := DeserializeBatch([]byte("{not json")); err == nil {
		t.Error("DeserializeBatch should fail on malformed payload")
	}
}
