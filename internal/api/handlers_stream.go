// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package api

import (
	"net/http"
	"time"

	"github.com/trafikinfo/trafikinfo/internal/logging"
)

// Stream handles GET /api/stream, the SSE feed of entity changes. Each
// viewer gets a bounded queue from the hub; when the client cannot keep up
// the oldest queued events are dropped so the feed stays current. A comment
// heartbeat keeps intermediaries from timing out idle connections.
func (router *Router) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "STREAMING_UNSUPPORTED", "Streaming is not supported", nil)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	// An immediate comment completes the EventSource handshake before the
	// first real event arrives.
	if _, err := w.Write([]byte(": connected\n\n")); err != nil {
		return
	}
	flusher.Flush()

	viewer := router.hub.Register()
	defer router.hub.Unregister(viewer.ID)

	heartbeatEvery := router.cfg.SSE.HeartbeatInterval
	if heartbeatEvery <= 0 {
		heartbeatEvery = 30 * time.Second
	}
	heartbeat := time.NewTicker(heartbeatEvery)
	defer heartbeat.Stop()

	logging.Debug().Str("component", "api").Str("viewer_id", viewer.ID).Msg("SSE viewer connected")

	for {
		select {
		case <-r.Context().Done():
			return
		case frame, ok := <-viewer.Events():
			if !ok {
				return
			}
			if _, err := w.Write(frame); err != nil {
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := w.Write([]byte(": heartbeat\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
