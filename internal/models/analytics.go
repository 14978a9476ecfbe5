// Telemetria - Behavioral Telemetry Analytics and Session Replay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemetria

package models

import "time"

// HeatmapGridSize is the fixed per-axis cell count of the click grid.
const HeatmapGridSize = 50

// Heatmap is the read-side aggregate for one page URL. MaxCount is floored
// to 1 so consumers can divide by it when normalizing intensity.
type Heatmap struct {
	ProjectID  string          `json:"projectId"`
	URL        string          `json:"url"`
	GridSize   int             `json:"gridSize"`
	ClickCount int64           `json:"clickCount"`
	MaxCount   int64           `json:"maxCount"`
	Buckets    []HeatmapBucket `json:"buckets"`
}

// RetentionCohort is one row of the retention matrix: all identities first
// seen on CohortDate, with the retained fraction at each requested day
// offset.
type RetentionCohort struct {
	CohortDate string  `json:"cohortDate"`
	CohortSize int64   `json:"cohortSize"`
	Offsets    []int   `json:"offsets"`
	Retained   []int64 `json:"retained"`
	// Percentages[i] is Retained[i]/CohortSize in [0,1];
	// all zeros when CohortSize is 0.
	Percentages []float64 `json:"percentages"`
}

// RetentionMatrix is the full cohort list for a requested date range.
type RetentionMatrix struct {
	ProjectID string            `json:"projectId"`
	StartDate string            `json:"startDate"`
	EndDate   string            `json:"endDate"`
	Offsets   []int             `json:"offsets"`
	Cohorts   []RetentionCohort `json:"cohorts"`
}

// RageClickSequence is one qualifying burst of rapid clicks for diagnostic
// display.
type RageClickSequence struct {
	ClientID   string    `json:"clientId"`
	URL        string    `json:"url"`
	ClickCount int       `json:"clickCount"`
	StartedAt  time.Time `json:"startedAt"`
	EndedAt    time.Time `json:"endedAt"`
}

// SessionSummary enriches a session with per-session aggregates for the
// project session list.
type SessionSummary struct {
	Session
	EventsCount int64 `json:"eventsCount"`
	RageClicks  int   `json:"rageClicks"`
}

// SessionDetail is the single-session view: metadata plus replays grouped
// by replay ID, frames ordered by timestamp.
type SessionDetail struct {
	Session
	EventsCount int64    `json:"eventsCount"`
	RageClicks  int      `json:"rageClicks"`
	Replays     []Replay `json:"replays"`
}

// MetricCard is one headline metric with its comparison-period counterpart.
// ChangePct follows the fixed edge-case rules: previous=0 && current>0 is
// +100; previous=0 && current=0 is 0; otherwise (current-previous)/previous
// *100 rounded to 2 decimals.
type MetricCard struct {
	Current   float64 `json:"current"`
	Previous  float64 `json:"previous"`
	ChangePct float64 `json:"changePct"`
}

// DimensionCount is one slice of a device or country distribution.
type DimensionCount struct {
	Dimension string `json:"dimension"`
	Count     int64  `json:"count"`
}

// DailyTraffic is one calendar day of the visitor series.
type DailyTraffic struct {
	Date     string `json:"date"`
	Visitors int64  `json:"visitors"`
	Visits   int64  `json:"visits"`
	Views    int64  `json:"pageViews"`
}

// TrafficSummary is the /analytics/traffic payload: headline cards,
// visitor-growth series, and device/country distributions.
type TrafficSummary struct {
	ProjectID          string           `json:"projectId"`
	StartDate          string           `json:"startDate"`
	EndDate            string           `json:"endDate"`
	ActiveUsers        MetricCard       `json:"activeUsers"`
	AvgSessionDuration MetricCard       `json:"avgSessionDuration"`
	TotalClicks        MetricCard       `json:"totalClicks"`
	TotalVisits        MetricCard       `json:"totalVisits"`
	BounceRate         MetricCard       `json:"bounceRate"`
	VisitorGrowth      []DailyTraffic   `json:"visitorGrowth"`
	Devices            []DimensionCount `json:"devices"`
	Countries          []DimensionCount `json:"countries"`
}

// OverviewSummary is the /analytics/overview payload.
type OverviewSummary struct {
	ProjectID          string         `json:"projectId"`
	StartDate          string         `json:"startDate"`
	EndDate            string         `json:"endDate"`
	Visits             MetricCard     `json:"visits"`
	AvgSessionDuration MetricCard     `json:"avgSessionDuration"`
	BounceRate         MetricCard     `json:"bounceRate"`
	DailyTraffic       []DailyTraffic `json:"dailyTraffic"`
}

// TopPage is one path ranked by view count with its average time-on-page.
// Dwell is measured by the gap to the next page view in the same session;
// a session's last page view contributes no dwell sample.
type TopPage struct {
	Path  string `json:"path"`
	Views int64  `json:"views"`
	// AvgTimeOnPageSec is the mean dwell in seconds over bounded views.
	AvgTimeOnPageSec float64 `json:"avgTimeOnPageSec"`
	// DwellSamples is how many views had a following page view.
	DwellSamples int64 `json:"dwellSamples"`
}

// QueueCounts reports durable queue state for the health endpoint.
type QueueCounts struct {
	Active    int64 `json:"active"`
	Waiting   int64 `json:"waiting"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// HealthStatus is the /health payload.
type HealthStatus struct {
	Status   string      `json:"status"`
	Database string      `json:"database"`
	Queue    QueueCounts `json:"queue"`
	Uptime   string      `json:"uptime"`
}

// IngestAccepted is the 202 response body for an accepted batch.
type IngestAccepted struct {
	Success bool   `json:"success"`
	BatchID string `json:"batchId"`
	JobID   string `json:"jobId"`
}
