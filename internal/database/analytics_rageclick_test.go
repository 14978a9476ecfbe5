// Telemetria - Behavioral Telemetry Analytics and Session Replay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemetria

package database

import (
	"testing"
	"time"
)

func clickAt(client, url string, ms int) Click {
	return Click{
		SessionID: "sess-1",
		ClientID:  client,
		URL:       url,
		Timestamp: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(ms) * time.Millisecond),
	}
}

func TestGroupRageSequences(t *testing.T) {
	threshold := 500 * time.Millisecond

	t.Run("single burst followed by a short tail", func(t *testing.T) {
		// Gaps: 100,100,100 then 1700 (new sequence), then 100.
		clicks := []Click{
			clickAt("c1", "/a", 0),
			clickAt("c1", "/a", 100),
			clickAt("c1", "/a", 200),
			clickAt("c1", "/a", 300),
			clickAt("c1", "/a", 2000),
			clickAt("c1", "/a", 2100),
		}

		sequences := GroupRageSequences(clicks, threshold, 3)
		if len(sequences) != 1 {
			t.Fatalf("expected exactly one qualifying sequence, got %d: %+v", len(sequences), sequences)
		}
		seq := sequences[0]
		if seq.ClickCount != 4 {
			t.Errorf("expected sequence of length 4, got %d", seq.ClickCount)
		}
		if !seq.StartedAt.Equal(clickAt("c1", "/a", 0).Timestamp) ||
			!seq.EndedAt.Equal(clickAt("c1", "/a", 300).Timestamp) {
			t.Errorf("unexpected sequence bounds: %v .. %v", seq.StartedAt, seq.EndedAt)
		}
	})

	t.Run("url change splits a run", func(t *testing.T) {
		clicks := []Click{
			clickAt("c1", "/a", 0),
			clickAt("c1", "/a", 100),
			clickAt("c1", "/b", 200),
			clickAt("c1", "/b", 300),
		}
		if got := GroupRageSequences(clicks, threshold, 2); len(got) != 2 {
			t.Errorf("expected two sequences across urls, got %d", len(got))
		}
	})

	t.Run("client change splits a run", func(t *testing.T) {
		clicks := []Click{
			clickAt("c1", "/a", 0),
			clickAt("c1", "/a", 100),
			clickAt("c2", "/a", 200),
		}
		sequences := GroupRageSequences(clicks, threshold, 2)
		if len(sequences) != 1 || sequences[0].ClientID != "c1" {
			t.Errorf("expected only c1's pair to qualify, got %+v", sequences)
		}
	})

	t.Run("below min count yields nothing", func(t *testing.T) {
		clicks := []Click{
			clickAt("c1", "/a", 0),
			clickAt("c1", "/a", 100),
		}
		if got := GroupRageSequences(clicks, threshold, 5); len(got) != 0 {
			t.Errorf("expected no sequences, got %+v", got)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		if got := GroupRageSequences(nil, threshold, 3); len(got) != 0 {
			t.Errorf("expected no sequences, got %+v", got)
		}
	})

	t.Run("gap exactly at threshold stays in sequence", func(t *testing.T) {
		clicks := []Click{
			clickAt("c1", "/a", 0),
			clickAt("c1", "/a", 500),
			clickAt("c1", "/a", 1000),
		}
		sequences := GroupRageSequences(clicks, threshold, 3)
		if len(sequences) != 1 || sequences[0].ClickCount != 3 {
			t.Errorf("expected one sequence of 3, got %+v", sequences)
		}
	})
}

func TestRageClickDetectionFromStore(t *testing.T) {
	db := setupTestDB(t)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	times := []int{0, 100, 200, 300, 400, 5000}
	for i, ms := range times {
		insertTestEvent(t, db, "click-"+string(rune('a'+i)), "sess-1", "click",
			base.Add(time.Duration(ms)*time.Millisecond))
	}

	sequences, err := db.GetRageClickSequences(nil, "sess-1", 550*time.Millisecond, 5)
	if err != nil {
		t.Fatalf("GetRageClickSequences: %v", err)
	}
	if len(sequences) != 1 {
		t.Fatalf("expected one qualifying burst, got %d", len(sequences))
	}
	if sequences[0].ClickCount != 5 {
		t.Errorf("expected burst of 5 clicks, got %d", sequences[0].ClickCount)
	}

	counts, err := db.CountRageClicksBySession(nil, "proj-1", 550*time.Millisecond, 5)
	if err != nil {
		t.Fatalf("CountRageClicksBySession: %v", err)
	}
	if counts["sess-1"] != 1 {
		t.Errorf("expected 1 burst for sess-1, got %d", counts["sess-1"])
	}
}
