// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package broadcast

import (
	"sync"

	"github.com/google/uuid"

	"github.com/trafikinfo/trafikinfo/internal/config"
	"github.com/trafikinfo/trafikinfo/internal/logging"
	"github.com/trafikinfo/trafikinfo/internal/metrics"
)

// Hub tracks connected SSE viewers. Every viewer owns a bounded queue of
// pre-framed events; when a viewer falls behind, the oldest queued event is
// dropped so the newest always fits. Delivery is unfiltered, viewers filter
// by county client-side.
type Hub struct {
	queueSize int

	mu      sync.RWMutex
	viewers map[string]*Viewer
}

// Viewer is one connected SSE client. The queue is written only by the hub
// and read only by the owning connection handler.
type Viewer struct {
	ID    string
	queue chan []byte
}

// Events is the viewer's receive side.
func (v *Viewer) Events() <-chan []byte {
	return v.queue
}

// NewHub creates a hub with per-viewer queues sized from config.
func NewHub(cfg *config.SSEConfig) *Hub {
	size := cfg.QueueSize
	if size <= 0 {
		size = 64
	}
	return &Hub{
		queueSize: size,
		viewers:   make(map[string]*Viewer),
	}
}

// Register adds a new viewer and returns it.
func (h *Hub) Register() *Viewer {
	v := &Viewer{
		ID:    uuid.NewString(),
		queue: make(chan []byte, h.queueSize),
	}

	h.mu.Lock()
	h.viewers[v.ID] = v
	count := len(h.viewers)
	h.mu.Unlock()

	metrics.UpdateSSEClients(count)
	logging.Debug().Str("component", "sse").Str("viewer", v.ID).Int("viewers", count).Msg("Viewer connected")
	return v
}

// Unregister removes a viewer. Its queue is left to the garbage collector;
// closing it would race the broadcaster's sends.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	delete(h.viewers, id)
	count := len(h.viewers)
	h.mu.Unlock()

	metrics.UpdateSSEClients(count)
	logging.Debug().Str("component", "sse").Str("viewer", id).Int("viewers", count).Msg("Viewer disconnected")
}

// Count returns the number of connected viewers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.viewers)
}

// Broadcast frames the event once and enqueues it for every viewer,
// dropping each full viewer's oldest event first (newest wins).
func (h *Hub) Broadcast(event string, data []byte) {
	frame := frameEvent(event, data)

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, v := range h.viewers {
		select {
		case v.queue <- frame:
			metrics.RecordSSESend()
			continue
		default:
		}

		// Full: evict the oldest, then retry once. A concurrent reader
		// may have drained in between; losing that race just means the
		// event is dropped.
		select {
		case <-v.queue:
			metrics.RecordSSEDrop()
		default:
		}
		select {
		case v.queue <- frame:
			metrics.RecordSSESend()
		default:
			metrics.RecordSSEDrop()
		}
	}
}

// frameEvent renders one SSE frame.
func frameEvent(event string, data []byte) []byte {
	frame := make([]byte, 0, len(event)+len(data)+16)
	frame = append(frame, "event: "...)
	frame = append(frame, event...)
	frame = append(frame, "\ndata: "...)
	frame = append(frame, data...)
	return append(frame, "\n\n"...)
}
