// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/trafikinfo/trafikinfo/internal/database"
	"github.com/trafikinfo/trafikinfo/internal/models"
)

// Events handles GET /api/events.
//
// Query parameters:
//   - counties: comma-separated county numbers
//   - hours: only rows updated within the last N hours
//   - date: local calendar date (YYYY-MM-DD) matched against the start time
//   - type: "realtid" or "planned"
//   - limit, offset: paging
func (router *Router) Events(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	counties, err := parseCountiesParam(r.URL.Query().Get("counties"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	eventType := r.URL.Query().Get("type")
	switch eventType {
	case "", models.EventTypeRealtid, models.EventTypePlanned:
	default:
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "type must be realtid or planned", nil)
		return
	}

	limit, offset := router.paging(r)
	filter := database.IncidentFilter{
		Counties:  counties,
		EventType: eventType,
		Hours:     getIntParam(r, "hours", 0),
		Date:      r.URL.Query().Get("date"),
		Limit:     limit,
		Offset:    offset,
	}

	incidents, err := router.db.GetIncidents(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), err)
		return
	}

	respondData(w, incidents, start)
}

// EventHistory handles GET /api/events/{external_id}/history. The versions
// are returned newest first; an unknown external ID yields an empty list
// rather than a 404 so a freshly deleted incident is not an error.
func (router *Router) EventHistory(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	externalID := chi.URLParam(r, "external_id")
	if externalID == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "external_id is required", nil)
		return
	}

	limit, _ := router.paging(r)
	versions, err := router.db.GetIncidentHistory(r.Context(), externalID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to read incident history", err)
		return
	}

	respondData(w, versions, start)
}

// RoadConditions handles GET /api/road-conditions. Filters mirror Events
// where they apply; road conditions have no event type or calendar date.
func (router *Router) RoadConditions(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	counties, err := parseCountiesParam(r.URL.Query().Get("counties"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	limit, offset := router.paging(r)
	filter := database.RoadConditionFilter{
		Counties: counties,
		Hours:    getIntParam(r, "hours", 0),
		Limit:    limit,
		Offset:   offset,
	}

	conditions, err := router.db.GetRoadConditions(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to read road conditions", err)
		return
	}

	respondData(w, conditions, start)
}
