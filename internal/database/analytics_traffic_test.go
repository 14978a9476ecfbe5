// Telemetria - Behavioral Telemetry Analytics and Session Replay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemetria

package database

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/telemetria/internal/models"
)

func TestChangePct(t *testing.T) {
	tests := []struct {
		name               string
		current, previous  float64
		want               float64
	}{
		{"both zero", 0, 0, 0},
		{"from zero to something", 42, 0, 100},
		{"doubled", 20, 10, 100},
		{"halved", 5, 10, -50},
		{"unchanged", 10, 10, 0},
		{"rounded to 2 decimals", 1, 3, -66.67},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ChangePct(tt.current, tt.previous); got != tt.want {
				t.Errorf("ChangePct(%v, %v) = %v, want %v", tt.current, tt.previous, got, tt.want)
			}
		})
	}
}

func TestComparisonWindows(t *testing.T) {
	start := day(7)
	end := day(13) // 7-day range

	curStart, curEnd, prevStart, prevEnd := comparisonWindows(start, end)
	if !curStart.Equal(day(7)) || !curEnd.Equal(day(14)) {
		t.Errorf("unexpected current window: %v .. %v", curStart, curEnd)
	}
	if !prevStart.Equal(day(0)) || !prevEnd.Equal(day(7)) {
		t.Errorf("expected the preceding 7 days, got %v .. %v", prevStart, prevEnd)
	}
}

// seedTrafficSession creates one session and its event-log rows.
func seedTrafficSession(t *testing.T, db *DB, sessionID, clientID, device string, created time.Time, eventTypes ...string) {
	t.Helper()
	ctx := context.Background()

	duration := time.Duration(len(eventTypes)) * 30 * time.Second
	if err := db.UpsertSession(ctx, &models.Session{
		ID:        sessionID,
		ProjectID: "proj-1",
		ClientID:  clientID,
		Location:  "US",
		Device:    device,
		CreatedAt: created,
		UpdatedAt: created.Add(duration),
	}); err != nil {
		t.Fatalf("UpsertSession(%s): %v", sessionID, err)
	}

	for i, et := range eventTypes {
		inserted, err := db.InsertEvent(ctx, &models.StoredEvent{
			EventID:   sessionID + "-" + et + "-" + string(rune('a'+i)),
			ProjectID: "proj-1",
			SessionID: sessionID,
			ClientID:  clientID,
			Type:      et,
			Timestamp: created.Add(time.Duration(i) * 30 * time.Second),
			URL:       "/home",
		})
		if err != nil || !inserted {
			t.Fatalf("InsertEvent(%s %s): inserted=%v err=%v", sessionID, et, inserted, err)
		}
	}
}

func TestGetTrafficSummary(t *testing.T) {
	db := setupTestDB(t)

	// Current week: a bounced session, an engaged session, and a
	// multi-pageview session.
	seedTrafficSession(t, db, "cur-1", "c1", "desktop", day(7).Add(10*time.Hour), "page_view")
	seedTrafficSession(t, db, "cur-2", "c2", "mobile", day(8).Add(10*time.Hour), "page_view", "click")
	seedTrafficSession(t, db, "cur-3", "c3", "desktop", day(9).Add(10*time.Hour), "page_view", "page_view")
	// Previous week: one session.
	seedTrafficSession(t, db, "prev-1", "c1", "desktop", day(1).Add(10*time.Hour), "page_view")

	summary, err := db.GetTrafficSummary(context.Background(), "proj-1", day(7), day(13))
	if err != nil {
		t.Fatalf("GetTrafficSummary: %v", err)
	}

	if summary.ActiveUsers.Current != 3 || summary.ActiveUsers.Previous != 1 {
		t.Errorf("unexpected active users: %+v", summary.ActiveUsers)
	}
	if summary.ActiveUsers.ChangePct != 200 {
		t.Errorf("expected +200%% active users, got %v", summary.ActiveUsers.ChangePct)
	}
	if summary.TotalVisits.Current != 3 {
		t.Errorf("expected 3 visits, got %v", summary.TotalVisits.Current)
	}
	if summary.TotalClicks.Current != 1 {
		t.Errorf("expected 1 click, got %v", summary.TotalClicks.Current)
	}

	t.Run("bounce classification", func(t *testing.T) {
		// cur-1 bounced (1 pageview, 0 interactions); cur-2 did not
		// (1 pageview + 1 click); cur-3 did not (2 pageviews).
		if summary.BounceRate.Current != 33.33 {
			t.Errorf("expected bounce rate 33.33, got %v", summary.BounceRate.Current)
		}
		// previous period's only session bounced
		if summary.BounceRate.Previous != 100 {
			t.Errorf("expected previous bounce rate 100, got %v", summary.BounceRate.Previous)
		}
	})

	t.Run("visitor growth series", func(t *testing.T) {
		if len(summary.VisitorGrowth) != 7 {
			t.Fatalf("expected one entry per day, got %d", len(summary.VisitorGrowth))
		}
		first := summary.VisitorGrowth[0]
		if first.Date != "2026-08-08" || first.Visitors != 1 || first.Views != 1 {
			t.Errorf("unexpected first day: %+v", first)
		}
		// day without events is zero-filled
		last := summary.VisitorGrowth[6]
		if last.Visitors != 0 || last.Visits != 0 || last.Views != 0 {
			t.Errorf("expected zero-filled day, got %+v", last)
		}
	})

	t.Run("distributions", func(t *testing.T) {
		if len(summary.Devices) != 2 || summary.Devices[0].Dimension != "desktop" || summary.Devices[0].Count != 2 {
			t.Errorf("unexpected device distribution: %+v", summary.Devices)
		}
		if len(summary.Countries) != 1 || summary.Countries[0].Dimension != "US" || summary.Countries[0].Count != 3 {
			t.Errorf("unexpected country distribution: %+v", summary.Countries)
		}
	})
}

func TestGetOverviewSummary(t *testing.T) {
	db := setupTestDB(t)

	seedTrafficSession(t, db, "s-1", "c1", "desktop", day(7).Add(10*time.Hour), "page_view", "click")

	overview, err := db.GetOverviewSummary(context.Background(), "proj-1", day(7), day(13))
	if err != nil {
		t.Fatalf("GetOverviewSummary: %v", err)
	}

	if overview.Visits.Current != 1 || overview.Visits.Previous != 0 {
		t.Errorf("unexpected visits: %+v", overview.Visits)
	}
	if overview.Visits.ChangePct != 100 {
		t.Errorf("previous=0, current>0 must report +100, got %v", overview.Visits.ChangePct)
	}
	if overview.AvgSessionDuration.Current != 60 {
		t.Errorf("expected 60s average duration, got %v", overview.AvgSessionDuration.Current)
	}
	if len(overview.DailyTraffic) != 7 {
		t.Errorf("expected 7 daily rows, got %d", len(overview.DailyTraffic))
	}
}
