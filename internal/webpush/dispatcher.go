// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package webpush

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/trafikinfo/trafikinfo/internal/config"
	"github.com/trafikinfo/trafikinfo/internal/metrics"
	"github.com/trafikinfo/trafikinfo/internal/models"
)

// ErrSubscriptionGone marks a subscription the push service has forgotten
// (404/410) or whose stored keys no longer decode. The caller deletes the
// row and moves on.
var ErrSubscriptionGone = errors.New("push subscription gone")

// pushTTL is the Web Push TTL header: how long the service may hold an
// undelivered message. Traffic events age out within a day.
const pushTTL = "86400"

// Dispatcher signs, encrypts and posts push messages, pacing deliveries
// across all endpoints with a shared token bucket.
type Dispatcher struct {
	cfg     *config.PushConfig
	store   SettingsStore
	client  *http.Client
	limiter *rate.Limiter

	mu   sync.Mutex
	keys *vapidKeys
}

// New creates a dispatcher. The VAPID pair is loaded lazily on first use so
// a fresh install does not generate keys before anyone subscribes.
func New(cfg *config.PushConfig, store SettingsStore) *Dispatcher {
	return &Dispatcher{
		cfg:     cfg,
		store:   store,
		client:  &http.Client{Timeout: cfg.DeliveryTimeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
	}
}

// PublicKey returns the URL-safe base64 VAPID public key for subscribing
// browsers, generating the pair if none exists yet.
func (d *Dispatcher) PublicKey(ctx context.Context) (string, error) {
	keys, err := d.vapid(ctx)
	if err != nil {
		return "", err
	}
	return keys.publicB64, nil
}

// Send delivers one payload to one subscription. A returned
// ErrSubscriptionGone means the subscription should be deleted; any other
// error is transient and the message is simply lost.
func (d *Dispatcher) Send(ctx context.Context, sub *models.PushSubscription, payload []byte) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("push pacing aborted: %w", err)
	}

	keys, err := d.vapid(ctx)
	if err != nil {
		return err
	}

	start := time.Now()

	body, err := encrypt(sub.P256dh, sub.Auth, payload)
	if err != nil {
		// Undecodable client keys never recover; treat like a gone
		// endpoint so the row is cleaned up.
		metrics.RecordPushDelivery(time.Since(start), "bad_keys")
		return fmt.Errorf("%w: %v", ErrSubscriptionGone, err)
	}

	authHeader, err := keys.authorization(sub.Endpoint, d.cfg.VAPIDSubject)
	if err != nil {
		metrics.RecordPushDelivery(time.Since(start), "bad_endpoint")
		return fmt.Errorf("%w: %v", ErrSubscriptionGone, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.Endpoint, bytes.NewReader(body))
	if err != nil {
		metrics.RecordPushDelivery(time.Since(start), "bad_endpoint")
		return fmt.Errorf("%w: %v", ErrSubscriptionGone, err)
	}
	req.Header.Set("Authorization", authHeader)
	req.Header.Set("Content-Encoding", "aes128gcm")
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("TTL", pushTTL)
	req.Header.Set("Urgency", "normal")

	resp, err := d.client.Do(req)
	if err != nil {
		metrics.RecordPushDelivery(time.Since(start), "network_error")
		return fmt.Errorf("push delivery failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		metrics.RecordPushDelivery(time.Since(start), "gone")
		return fmt.Errorf("%w: endpoint returned %d", ErrSubscriptionGone, resp.StatusCode)
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		metrics.RecordPushDelivery(time.Since(start), "success")
		return nil
	default:
		metrics.RecordPushDelivery(time.Since(start), "rejected")
		return fmt.Errorf("push endpoint returned status %d", resp.StatusCode)
	}
}

// vapid returns the cached key pair, loading or generating it once.
func (d *Dispatcher) vapid(ctx context.Context) (*vapidKeys, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.keys != nil {
		return d.keys, nil
	}
	keys, err := loadOrCreateKeys(ctx, d.store)
	if err != nil {
		return nil, err
	}
	d.keys = keys
	return keys, nil
}
