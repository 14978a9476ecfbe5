// Telemetria - Behavioral Telemetry Analytics and Session Replay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemetria

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/telemetria/internal/database"
	"github.com/tomtom215/telemetria/internal/models"
)

// rageDetailMinCount is the qualifying run length for the single-session
// diagnostic view. It is lower than the configured project-list minimum
// so shorter bursts stay visible when inspecting one session.
const rageDetailMinCount = 3

// GetSession returns one session with its replays (grouped by replay ID,
// frames ordered by timestamp), event count, and rage click count.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	sessionID := chi.URLParam(r, "sessionID")
	ctx := r.Context()

	session, err := h.db.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			rw.NotFound("session not found")
			return
		}
		rw.DatabaseError(err)
		return
	}

	replays, err := h.db.GetSessionReplays(ctx, sessionID)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	eventsCount, err := h.db.CountSessionEvents(ctx, sessionID)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	sequences, err := h.db.GetRageClickSequences(ctx, sessionID,
		h.cfg.Analytics.RageClickThreshold, rageDetailMinCount)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.Success(models.SessionDetail{
		Session:     *session,
		EventsCount: eventsCount,
		RageClicks:  len(sequences),
		Replays:     replays,
	})
}

// ListProjectSessions returns a project's sessions, newest first, each
// enriched with its event count and rage click count.
func (h *Handler) ListProjectSessions(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	projectID := chi.URLParam(r, "projectID")
	ctx := r.Context()

	sessions, err := h.db.ListProjectSessions(ctx, projectID)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rage, err := h.db.CountRageClicksBySession(ctx, projectID,
		h.cfg.Analytics.RageClickThreshold, h.cfg.Analytics.RageClickMinCount)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	for i := range sessions {
		sessions[i].RageClicks = rage[sessions[i].ID]
	}

	rw.Success(sessions)
}

// GetReplay returns one replay's ordered frame list.
func (h *Handler) GetReplay(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	replay, err := h.db.GetReplay(r.Context(), chi.URLParam(r, "replayID"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			rw.NotFound("replay not found")
			return
		}
		rw.DatabaseError(err)
		return
	}

	rw.Success(replay)
}
