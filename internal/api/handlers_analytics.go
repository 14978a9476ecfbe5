// Telemetria - Behavioral Telemetry Analytics and Session Replay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemetria

package api

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
)

// GetHeatmap returns the 50x50 click grid for one page URL. The URL
// arrives path-escaped; it is unescaped before the lookup so keys match
// what the worker stored.
func (h *Handler) GetHeatmap(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	projectID := chi.URLParam(r, "projectID")

	pageURL, err := url.PathUnescape(chi.URLParam(r, "url"))
	if err != nil {
		rw.BadRequest("url must be path-escaped")
		return
	}

	heatmap, err := h.db.GetHeatmap(r.Context(), projectID, pageURL)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.Success(heatmap)
}

// GetRetention returns the cohort retention matrix for a date range.
func (h *Handler) GetRetention(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	params, err := parseAnalyticsParams(r)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	offsets := h.cfg.Analytics.RetentionIntervals
	if raw := r.URL.Query().Get("intervals"); raw != "" {
		if offsets, err = parseIntervals(raw); err != nil {
			rw.BadRequest(err.Error())
			return
		}
	}

	matrix, err := h.db.GetRetentionMatrix(r.Context(), params.ProjectID,
		params.StartDate, params.EndDate, offsets)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.Success(matrix)
}

// GetTraffic returns headline metric cards with period comparison, the
// visitor growth series, and device/country distributions.
func (h *Handler) GetTraffic(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	params, err := parseAnalyticsParams(r)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	summary, err := h.db.GetTrafficSummary(r.Context(), params.ProjectID,
		params.StartDate, params.EndDate)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.Success(summary)
}

// GetOverview returns the condensed dashboard summary.
func (h *Handler) GetOverview(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	params, err := parseAnalyticsParams(r)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	summary, err := h.db.GetOverviewSummary(r.Context(), params.ProjectID,
		params.StartDate, params.EndDate)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.Success(summary)
}

// GetTopPages returns paths ranked by views with average time on page.
func (h *Handler) GetTopPages(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	params, err := parseAnalyticsParams(r)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	limit, err := parseLimit(r.URL.Query().Get("limit"), h.cfg.Analytics.TopPagesLimit)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	pages, err := h.db.GetTopPages(r.Context(), params.ProjectID,
		params.StartDate, params.EndDate, limit)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.Success(pages)
}
