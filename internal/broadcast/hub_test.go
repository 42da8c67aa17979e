// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package broadcast

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/trafikinfo/trafikinfo/internal/config"
	"github.com/trafikinfo/trafikinfo/internal/logging"
)

func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

func TestHubBroadcastFrames(t *testing.T) {
	hub := NewHub(&config.SSEConfig{QueueSize: 8})
	v := hub.Register()
	defer hub.Unregister(v.ID)

	hub.Broadcast("incident", []byte(`{"external_id":"S1"}`))

	frame := string(<-v.Events())
	want := "event: incident\ndata: {\"external_id\":\"S1\"}\n\n"
	if frame != want {
		t.Errorf("frame = %q, want %q", frame, want)
	}
}

func TestHubDropsOldestWhenFull(t *testing.T) {
	hub := NewHub(&config.SSEConfig{QueueSize: 4})
	v := hub.Register()
	defer hub.Unregister(v.ID)

	for i := 0; i < 6; i++ {
		hub.Broadcast("incident", []byte(fmt.Sprintf(`{"n":%d}`, i)))
	}

	// Events 0 and 1 were evicted to make room; the queue holds 2..5.
	var got []string
	for i := 0; i < 4; i++ {
		got = append(got, string(<-v.Events()))
	}

	for i, frame := range got {
		want := fmt.Sprintf(`{"n":%d}`, i+2)
		if !strings.Contains(frame, want) {
			t.Errorf("frame[%d] = %q, want data %q", i, frame, want)
		}
	}

	select {
	case frame := <-v.Events():
		t.Errorf("unexpected extra frame %q", frame)
	default:
	}
}

func TestHubDefaultQueueSize(t *testing.T) {
	hub := NewHub(&config.SSEConfig{})
	if hub.queueSize != 64 {
		t.Errorf("queueSize = %d, want 64", hub.queueSize)
	}
}

func TestHubRegisterUnregisterCount(t *testing.T) {
	hub := NewHub(&config.SSEConfig{QueueSize: 4})
	a := hub.Register()
	b := hub.Register()
	if hub.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", hub.Count())
	}
	if a.ID == b.ID {
		t.Error("viewer ids collide")
	}

	hub.Unregister(a.ID)
	if hub.Count() != 1 {
		t.Errorf("Count() = %d after unregister, want 1", hub.Count())
	}

	// A slow, removed viewer no longer receives broadcasts.
	hub.Broadcast("incident", []byte(`{}`))
	select {
	case <-a.Events():
		t.Error("unregistered viewer received a frame")
	default:
	}
	if len(b.Events()) != 1 {
		t.Errorf("registered viewer queued %d frames, want 1", len(b.Events()))
	}
}
