// Telemetria - Behavioral Telemetry Analytics and Session Replay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemetria

package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// defaultRangeDays is the analytics window applied when the request
// carries no explicit dates.
const defaultRangeDays = 7

// analyticsParams is the parsed common query surface of the /analytics
// endpoints.
type analyticsParams struct {
	ProjectID string
	StartDate time.Time
	EndDate   time.Time
}

// parseAnalyticsParams extracts projectId and the date range. Dates are
// calendar days (UTC); an omitted range defaults to the trailing week
// ending today.
func parseAnalyticsParams(r *http.Request) (*analyticsParams, error) {
	projectID := r.URL.Query().Get("projectId")
	if projectID == "" {
		return nil, fmt.Errorf("projectId is required")
	}

	now := time.Now().UTC()
	endDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	startDate := endDate.AddDate(0, 0, -(defaultRangeDays - 1))

	var err error
	if raw := r.URL.Query().Get("startDate"); raw != "" {
		if startDate, err = time.ParseInLocation(dateLayout, raw, time.UTC); err != nil {
			return nil, fmt.Errorf("startDate must be YYYY-MM-DD, got %q", raw)
		}
	}
	if raw := r.URL.Query().Get("endDate"); raw != "" {
		if endDate, err = time.ParseInLocation(dateLayout, raw, time.UTC); err != nil {
			return nil, fmt.Errorf("endDate must be YYYY-MM-DD, got %q", raw)
		}
	}

	if endDate.Before(startDate) {
		return nil, fmt.Errorf("endDate %s precedes startDate %s",
			endDate.Format(dateLayout), startDate.Format(dateLayout))
	}

	return &analyticsParams{
		ProjectID: projectID,
		StartDate: startDate,
		EndDate:   endDate,
	}, nil
}

// parseIntervals parses the comma-separated day-offset list for
// retention queries, e.g. "0,1,7,30".
func parseIntervals(raw string) ([]int, error) {
	parts := strings.Split(raw, ",")
	offsets := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("intervals must be non-negative integers, got %q", p)
		}
		offsets = append(offsets, n)
	}
	if len(offsets) == 0 {
		return nil, fmt.Errorf("intervals must name at least one offset")
	}
	return offsets, nil
}

// parseLimit parses a positive limit parameter, returning fallback when
// absent.
func parseLimit(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("limit must be a positive integer, got %q", raw)
	}
	return n, nil
}
