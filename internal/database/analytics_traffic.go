// Telemetria - Behavioral Telemetry Analytics and Session Replay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemetria

// Traffic analytics compare a requested [startDate, endDate] range
// against the same-length period immediately preceding it. Each headline
// metric is computed independently for both windows; daily series and
// dimension distributions cover the current window only.

package database

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/tomtom215/telemetria/internal/metrics"
	"github.com/tomtom215/telemetria/internal/models"
)

// interactionTypes mirrors models.Event.IsInteraction for SQL filters.
const interactionTypes = `('click', 'input', 'custom', 'route')`

// ChangePct computes the percentage change between two period values with
// fixed edge cases: 0 -> 0 is 0%, 0 -> anything is +100%, otherwise the
// relative change rounded to 2 decimals.
func ChangePct(current, previous float64) float64 {
	switch {
	case previous == 0 && current == 0:
		return 0
	case previous == 0:
		return 100
	default:
		return math.Round((current-previous)/previous*100*100) / 100
	}
}

func card(current, previous float64) models.MetricCard {
	return models.MetricCard{
		Current:   current,
		Previous:  previous,
		ChangePct: ChangePct(current, previous),
	}
}

// periodMetrics holds one window's headline values.
type periodMetrics struct {
	ActiveUsers        float64
	AvgSessionDuration float64
	TotalClicks        float64
	TotalVisits        float64
	BounceRate         float64
}

// GetTrafficSummary computes the full traffic payload: headline cards with
// period comparison, the daily visitor series, and device/country
// distributions.
func (db *DB) GetTrafficSummary(ctx context.Context, projectID string, startDate, endDate time.Time) (*models.TrafficSummary, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	curStart, curEnd, prevStart, prevEnd := comparisonWindows(startDate, endDate)

	current, err := db.periodMetrics(ctx, projectID, curStart, curEnd)
	if err != nil {
		return nil, err
	}
	previous, err := db.periodMetrics(ctx, projectID, prevStart, prevEnd)
	if err != nil {
		return nil, err
	}

	growth, err := db.dailyTraffic(ctx, projectID, startDate, endDate)
	if err != nil {
		return nil, err
	}

	devices, err := db.dimensionCounts(ctx, projectID, "device", curStart, curEnd)
	if err != nil {
		return nil, err
	}
	countries, err := db.dimensionCounts(ctx, projectID, "location", curStart, curEnd)
	if err != nil {
		return nil, err
	}

	return &models.TrafficSummary{
		ProjectID:          projectID,
		StartDate:          startDate.Format(dateLayout),
		EndDate:            endDate.Format(dateLayout),
		ActiveUsers:        card(current.ActiveUsers, previous.ActiveUsers),
		AvgSessionDuration: card(current.AvgSessionDuration, previous.AvgSessionDuration),
		TotalClicks:        card(current.TotalClicks, previous.TotalClicks),
		TotalVisits:        card(current.TotalVisits, previous.TotalVisits),
		BounceRate:         card(current.BounceRate, previous.BounceRate),
		VisitorGrowth:      growth,
		Devices:            devices,
		Countries:          countries,
	}, nil
}

// GetOverviewSummary computes the condensed overview payload.
func (db *DB) GetOverviewSummary(ctx context.Context, projectID string, startDate, endDate time.Time) (*models.OverviewSummary, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	curStart, curEnd, prevStart, prevEnd := comparisonWindows(startDate, endDate)

	current, err := db.periodMetrics(ctx, projectID, curStart, curEnd)
	if err != nil {
		return nil, err
	}
	previous, err := db.periodMetrics(ctx, projectID, prevStart, prevEnd)
	if err != nil {
		return nil, err
	}

	daily, err := db.dailyTraffic(ctx, projectID, startDate, endDate)
	if err != nil {
		return nil, err
	}

	return &models.OverviewSummary{
		ProjectID:          projectID,
		StartDate:          startDate.Format(dateLayout),
		EndDate:            endDate.Format(dateLayout),
		Visits:             card(current.TotalVisits, previous.TotalVisits),
		AvgSessionDuration: card(current.AvgSessionDuration, previous.AvgSessionDuration),
		BounceRate:         card(current.BounceRate, previous.BounceRate),
		DailyTraffic:       daily,
	}, nil
}

// comparisonWindows derives the half-open query windows for the requested
// range and the equal-length period immediately before it.
func comparisonWindows(startDate, endDate time.Time) (curStart, curEnd, prevStart, prevEnd time.Time) {
	curStart = startDate
	curEnd = endDate.AddDate(0, 0, 1)
	length := curEnd.Sub(curStart)
	prevEnd = curStart
	prevStart = curStart.Add(-length)
	return
}

// periodMetrics computes one window's headline values. Session duration is
// in seconds; bounce rate is a percentage of sessions active in the window
// that had exactly one page view and no interaction events.
func (db *DB) periodMetrics(ctx context.Context, projectID string, start, end time.Time) (*periodMetrics, error) {
	m := &periodMetrics{}

	qStart := time.Now()
	err := db.conn.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT client_id),
		       COUNT(DISTINCT session_id),
		       COUNT(*) FILTER (WHERE type = 'click')
		FROM events
		WHERE project_id = ? AND timestamp >= ? AND timestamp < ?`,
		projectID, start, end).
		Scan(&m.ActiveUsers, &m.TotalVisits, &m.TotalClicks)
	metrics.RecordDBQuery("select", "events", time.Since(qStart), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query period totals: %w", err)
	}

	qStart = time.Now()
	err = db.conn.QueryRowContext(ctx, `
		SELECT COALESCE(AVG(date_diff('millisecond', created_at, updated_at)) / 1000.0, 0)
		FROM sessions
		WHERE project_id = ? AND created_at >= ? AND created_at < ?`,
		projectID, start, end).
		Scan(&m.AvgSessionDuration)
	metrics.RecordDBQuery("select", "sessions", time.Since(qStart), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query session duration: %w", err)
	}

	qStart = time.Now()
	var total, bounced float64
	err = db.conn.QueryRowContext(ctx, `
		WITH per_session AS (
			SELECT session_id,
			       COUNT(*) FILTER (WHERE type = 'page_view') AS page_views,
			       COUNT(*) FILTER (WHERE type IN `+interactionTypes+`) AS interactions
			FROM events
			WHERE project_id = ? AND timestamp >= ? AND timestamp < ?
			GROUP BY session_id
		)
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE page_views = 1 AND interactions = 0)
		FROM per_session`,
		projectID, start, end).
		Scan(&total, &bounced)
	metrics.RecordDBQuery("select", "events", time.Since(qStart), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query bounce rate: %w", err)
	}
	if total > 0 {
		m.BounceRate = math.Round(bounced/total*100*100) / 100
	}

	return m, nil
}

// dailyTraffic returns one row per calendar day in the range, zero-filled
// for days without events.
func (db *DB) dailyTraffic(ctx context.Context, projectID string, startDate, endDate time.Time) ([]models.DailyTraffic, error) {
	qStart := time.Now()
	rows, err := db.conn.QueryContext(ctx, `
		SELECT CAST(timestamp AS DATE) AS day,
		       COUNT(DISTINCT client_id),
		       COUNT(DISTINCT session_id),
		       COUNT(*) FILTER (WHERE type = 'page_view')
		FROM events
		WHERE project_id = ? AND timestamp >= ? AND timestamp < ?
		GROUP BY day ORDER BY day`,
		projectID, startDate, endDate.AddDate(0, 0, 1))
	metrics.RecordDBQuery("select", "events", time.Since(qStart), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily traffic: %w", err)
	}
	defer closeRows(rows)

	byDay := map[string]models.DailyTraffic{}
	for rows.Next() {
		var day time.Time
		var dt models.DailyTraffic
		if err := rows.Scan(&day, &dt.Visitors, &dt.Visits, &dt.Views); err != nil {
			return nil, fmt.Errorf("failed to scan daily traffic: %w", err)
		}
		dt.Date = day.UTC().Format(dateLayout)
		byDay[dt.Date] = dt
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	series := []models.DailyTraffic{}
	for d := startDate; !d.After(endDate); d = d.AddDate(0, 0, 1) {
		date := d.Format(dateLayout)
		if dt, ok := byDay[date]; ok {
			series = append(series, dt)
		} else {
			series = append(series, models.DailyTraffic{Date: date})
		}
	}
	return series, nil
}

// dimensionCounts returns the session distribution over one sessions
// column ("device" or "location"), largest first.
func (db *DB) dimensionCounts(ctx context.Context, projectID, column string, start, end time.Time) ([]models.DimensionCount, error) {
	// column comes from a fixed caller-side set, never user input
	query := fmt.Sprintf(`
		SELECT %s, COUNT(*) FROM sessions
		WHERE project_id = ? AND created_at >= ? AND created_at < ?
		GROUP BY 1 ORDER BY 2 DESC, 1`, column)

	qStart := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, projectID, start, end)
	metrics.RecordDBQuery("select", "sessions", time.Since(qStart), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s distribution: %w", column, err)
	}
	defer closeRows(rows)

	counts := []models.DimensionCount{}
	for rows.Next() {
		var dc models.DimensionCount
		if err := rows.Scan(&dc.Dimension, &dc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan %s distribution: %w", column, err)
		}
		counts = append(counts, dc)
	}
	return counts, rows.Err()
}
