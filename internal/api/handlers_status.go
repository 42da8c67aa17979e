// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package api

import (
	"net/http"
	"time"

	"github.com/trafikinfo/trafikinfo/internal/logging"
	"github.com/trafikinfo/trafikinfo/internal/models"
)

// Status handles GET /api/status, the liveness view the UI polls: upstream
// stream state, broker state, whether setup is still required and how many
// SSE viewers are connected.
func (router *Router) Status(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	upstream := router.upstream.Status()
	status := models.SystemStatus{
		Trafikverket: models.StreamStatus{
			Connected: upstream.Connected,
			LastError: upstream.LastError,
		},
		MQTT:           router.broker.Status(),
		Version:        router.version,
		SetupRequired:  router.workers.SetupRequired(),
		ActiveCounties: router.workers.ActiveCounties(),
		SSEClients:     router.hub.Count(),
	}

	respondData(w, status, start)
}

// Stats handles GET /api/stats.
func (router *Router) Stats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	stats, err := router.db.GetStats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to compute stats", err)
		return
	}

	respondData(w, stats, start)
}

// Reset handles POST /api/reset (admin). All event data and snapshot files
// are deleted; cameras, weather stations, settings and subscriptions stay.
func (router *Router) Reset(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if err := router.db.ResetData(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to reset data", err)
		return
	}
	if err := router.snaps.RemoveAll(); err != nil {
		logging.Warn().Err(err).Str("component", "api").Msg("Failed to remove snapshot files during reset")
	}

	logging.Info().Str("component", "api").Msg("Event data reset")
	respondData(w, map[string]bool{"reset": true}, start)
}
