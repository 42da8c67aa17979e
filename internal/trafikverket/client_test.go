// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package trafikverket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/trafikinfo/trafikinfo/internal/config"
	"github.com/trafikinfo/trafikinfo/internal/logging"
)

func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

func testConfig(url string) *config.TrafikverketConfig {
	return &config.TrafikverketConfig{
		URL:                  url,
		StreamReconnectDelay: 10 * time.Millisecond,
		QueryRetryDelay:      10 * time.Millisecond,
		RequestTimeout:       2 * time.Second,
	}
}

func staticKey(key string) KeyFunc {
	return func(context.Context) (string, error) { return key, nil }
}

func TestClientStreamsBatches(t *testing.T) {
	// One mux serves both the query endpoint and the stream it points at.
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/stream", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, ": keepalive\n")
		fmt.Fprint(w, "data: {\"RESPONSE\":{\"RESULT\":[{\"Situation\":[]}]}}\n")
		fmt.Fprint(w, "\n")
		fmt.Fprint(w, "data: {\"second\":true}\n")
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if r.Method != http.MethodPost {
			t.Errorf("query method = %s", r.Method)
		}
		if !containsAll(string(body), "sseurl='true'", "authenticationkey='k1'") {
			t.Errorf("unexpected query body: %s", body)
		}
		fmt.Fprintf(w, `{"RESPONSE":{"RESULT":[{"INFO":{"SSEURL":"%s/stream"}}]}}`, srv.URL)
	})

	client := New(testConfig(srv.URL), staticKey("k1"))
	defer client.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	batches, err := client.Start(ctx, ObjectSituation, []int{1})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	first := <-batches
	if first.ObjectType != ObjectSituation {
		t.Errorf("ObjectType = %q", first.ObjectType)
	}
	if string(first.Data) != `{"RESPONSE":{"RESULT":[{"Situation":[]}]}}` {
		t.Errorf("first batch = %s", first.Data)
	}
	second := <-batches
	if string(second.Data) != `{"second":true}` {
		t.Errorf("second batch = %s", second.Data)
	}
}

func TestClientReconnectsAfterStreamEnd(t *testing.T) {
	var streamHits atomic.Int32
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/stream", func(w http.ResponseWriter, r *http.Request) {
		n := streamHits.Add(1)
		fmt.Fprintf(w, "data: {\"connection\":%d}\n", n)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"RESPONSE":{"RESULT":[{"INFO":{"SSEURL":"%s/stream"}}]}}`, srv.URL)
	})

	client := New(testConfig(srv.URL), staticKey("k1"))
	defer client.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	batches, err := client.Start(ctx, ObjectRoadCondition, nil)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if got := string((<-batches).Data); got != `{"connection":1}` {
		t.Errorf("first connection batch = %s", got)
	}
	// The stream handler returned, so the client must re-query and reconnect.
	if got := string((<-batches).Data); got != `{"connection":2}` {
		t.Errorf("second connection batch = %s", got)
	}
}

func TestClientRetriesFailedQuery(t *testing.T) {
	var queryHits atomic.Int32
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/stream", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"ok\":true}\n")
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		// Hold the stream open so connection state stays observable.
		<-r.Context().Done()
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if queryHits.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, `{"RESPONSE":{"RESULT":[{"INFO":{"SSEURL":"%s/stream"}}]}}`, srv.URL)
	})

	client := New(testConfig(srv.URL), staticKey("k1"))
	defer client.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	batches, err := client.Start(ctx, ObjectSituation, nil)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if got := string((<-batches).Data); got != `{"ok":true}` {
		t.Errorf("batch after query retry = %s", got)
	}
	if queryHits.Load() < 2 {
		t.Errorf("query hits = %d, want at least 2", queryHits.Load())
	}

	status := client.Status()
	if !status.Connected {
		t.Errorf("Status().Connected = false after successful connect")
	}
}

func TestClientStopClosesChannel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := New(testConfig(srv.URL), staticKey("k1"))
	batches, err := client.Start(context.Background(), ObjectSituation, nil)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	client.Stop()

	select {
	case _, open := <-batches:
		if open {
			t.Error("expected closed channel after Stop")
		}
	case <-time.After(2 * time.Second):
		t.Error("channel not closed after Stop")
	}
}

func TestClientMissingAPIKey(t *testing.T) {
	client := New(testConfig("http://127.0.0.1:0"), staticKey(""))
	if _, err := client.FetchCameras(context.Background()); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("FetchCameras() error = %v, want ErrMissingAPIKey", err)
	}
}

func TestClientUnknownObjectType(t *testing.T) {
	client := New(testConfig("http://127.0.0.1:0"), staticKey("k"))
	if _, err := client.Start(context.Background(), "Ferry", nil); err == nil {
		t.Error("Start() accepted unknown object type")
	}
}

func TestFetchWeatherStations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if !containsAll(string(body), "objecttype='WeatherMeasurepoint'", `value="14"`) {
			t.Errorf("unexpected query body: %s", body)
		}
		fmt.Fprint(w, `{"RESPONSE":{"RESULT":[{"WeatherMeasurepoint":[]}]}}`)
	}))
	defer srv.Close()

	client := New(testConfig(srv.URL), staticKey("k1"))
	data, err := client.FetchWeatherStations(context.Background(), []int{14})
	if err != nil {
		t.Fatalf("FetchWeatherStations() error = %v", err)
	}
	if string(data) != `{"RESPONSE":{"RESULT":[{"WeatherMeasurepoint":[]}]}}` {
		t.Errorf("data = %s", data)
	}
}

func TestFetchBreakerOpensAfterFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := New(testConfig(srv.URL), staticKey("k1"))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := client.FetchIcons(ctx); err == nil {
			t.Fatal("FetchIcons() succeeded against failing upstream")
		}
	}
	before := hits.Load()

	// Breaker is open now; the upstream must not be hit again.
	if _, err := client.FetchIcons(ctx); err == nil {
		t.Fatal("FetchIcons() succeeded with open breaker")
	}
	if hits.Load() != before {
		t.Errorf("upstream hit with open breaker: %d -> %d", before, hits.Load())
	}
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
