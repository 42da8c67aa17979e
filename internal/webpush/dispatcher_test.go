// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package webpush

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/trafikinfo/trafikinfo/internal/config"
	"github.com/trafikinfo/trafikinfo/internal/models"
)

func testPushConfig() *config.PushConfig {
	return &config.PushConfig{
		VAPIDSubject:    "mailto:ops@example.com",
		DeliveryTimeout: 2 * time.Second,
		RatePerSecond:   1000,
		Burst:           100,
	}
}

func testSub(t *testing.T, endpoint string) *models.PushSubscription {
	t.Helper()
	_, p256dh, auth, _ := testSubscription(t)
	return &models.PushSubscription{
		Endpoint: endpoint,
		P256dh:   p256dh,
		Auth:     auth,
	}
}

func TestDispatcherSend(t *testing.T) {
	var gotReq *http.Request
	var gotLen int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReq = r.Clone(context.Background())
		body, _ := io.ReadAll(r.Body)
		gotLen = len(body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	d := New(testPushConfig(), newFakeSettings())
	err := d.Send(context.Background(), testSub(t, srv.URL+"/send/abc"), []byte(`{"title":"x"}`))
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if gotReq == nil {
		t.Fatal("no request reached the push service")
	}
	if !strings.HasPrefix(gotReq.Header.Get("Authorization"), "vapid t=") {
		t.Errorf("Authorization = %q", gotReq.Header.Get("Authorization"))
	}
	if gotReq.Header.Get("Content-Encoding") != "aes128gcm" {
		t.Errorf("Content-Encoding = %q", gotReq.Header.Get("Content-Encoding"))
	}
	if gotReq.Header.Get("TTL") != pushTTL {
		t.Errorf("TTL = %q", gotReq.Header.Get("TTL"))
	}
	// Header (86) + tag (16) + delimiter, at minimum.
	if gotLen < 103 {
		t.Errorf("body = %d bytes, too short for an encrypted record", gotLen)
	}
}

func TestDispatcherGoneEndpoint(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusGone} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		d := New(testPushConfig(), newFakeSettings())
		err := d.Send(context.Background(), testSub(t, srv.URL), []byte("x"))
		if !errors.Is(err, ErrSubscriptionGone) {
			t.Errorf("status %d: error = %v, want ErrSubscriptionGone", status, err)
		}
		srv.Close()
	}
}

func TestDispatcherTransientFailureIsNotGone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	d := New(testPushConfig(), newFakeSettings())
	err := d.Send(context.Background(), testSub(t, srv.URL), []byte("x"))
	if err == nil {
		t.Fatal("Send() succeeded against 503")
	}
	if errors.Is(err, ErrSubscriptionGone) {
		t.Error("transient 503 classified as gone")
	}
}

func TestDispatcherBadClientKeysAreGone(t *testing.T) {
	var hit bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
	}))
	defer srv.Close()

	d := New(testPushConfig(), newFakeSettings())
	sub := &models.PushSubscription{Endpoint: srv.URL, P256dh: "!!!", Auth: "!!!"}
	err := d.Send(context.Background(), sub, []byte("x"))
	if !errors.Is(err, ErrSubscriptionGone) {
		t.Errorf("error = %v, want ErrSubscriptionGone for undecodable keys", err)
	}
	if hit {
		t.Error("push service was contacted despite bad keys")
	}
}

func TestDispatcherPublicKeyStable(t *testing.T) {
	store := newFakeSettings()
	d := New(testPushConfig(), store)

	first, err := d.PublicKey(context.Background())
	if err != nil {
		t.Fatalf("PublicKey() error = %v", err)
	}

	// A new dispatcher over the same settings must serve the same key.
	second, err := New(testPushConfig(), store).PublicKey(context.Background())
	if err != nil {
		t.Fatalf("PublicKey() error = %v", err)
	}
	if first != second {
		t.Error("public key changed across dispatchers sharing settings")
	}
}
