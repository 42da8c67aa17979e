// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package api

import (
	"net/http"
	"time"

	"github.com/trafikinfo/trafikinfo/internal/logging"
	"github.com/trafikinfo/trafikinfo/internal/metrics"
	"github.com/trafikinfo/trafikinfo/internal/models"
)

// SubscribeRequest is the POST /api/push/subscribe body. Endpoint and keys
// come straight from the browser's PushSubscription object; the rest are
// user-chosen filters.
type SubscribeRequest struct {
	Endpoint string `json:"endpoint" validate:"required,url"`
	Keys     struct {
		P256dh string `json:"p256dh" validate:"required"`
		Auth   string `json:"auth" validate:"required"`
	} `json:"keys"`

	Counties           []int `json:"counties" validate:"omitempty,dive,county"`
	MinSeverity        int   `json:"min_severity" validate:"min=0,max=5"`
	TopicRealtid       bool  `json:"topic_realtid"`
	TopicRoadCondition bool  `json:"topic_road_condition"`
	SoundEnabled       bool  `json:"sound_enabled"`
}

// UnsubscribeRequest is the POST /api/push/unsubscribe body.
type UnsubscribeRequest struct {
	Endpoint string `json:"endpoint" validate:"required,url"`
}

// VAPIDPublicKey handles GET /api/push/vapid-public-key. The key pair is
// generated and persisted on first use.
func (router *Router) VAPIDPublicKey(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	key, err := router.push.PublicKey(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "PUSH_ERROR", "Failed to load VAPID key", err)
		return
	}

	respondData(w, map[string]string{"public_key": key}, start)
}

// PushSubscribe handles POST /api/push/subscribe. Subscribing an existing
// endpoint replaces its filters, so the UI can re-post on every change.
func (router *Router) PushSubscribe(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req SubscribeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !req.TopicRealtid && !req.TopicRoadCondition {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "at least one topic must be enabled", nil)
		return
	}

	sub := &models.PushSubscription{
		Endpoint:           req.Endpoint,
		P256dh:             req.Keys.P256dh,
		Auth:               req.Keys.Auth,
		Counties:           req.Counties,
		MinSeverity:        req.MinSeverity,
		TopicRealtid:       req.TopicRealtid,
		TopicRoadCondition: req.TopicRoadCondition,
		SoundEnabled:       req.SoundEnabled,
	}
	if err := router.db.SavePushSubscription(r.Context(), sub); err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to save subscription", err)
		return
	}

	router.updateSubscriptionGauge(r)
	logging.Info().Str("component", "api").Int64("subscription_id", sub.ID).Msg("Push subscription saved")
	respondData(w, sub, start)
}

// PushUnsubscribe handles POST /api/push/unsubscribe. Removing an unknown
// endpoint succeeds; the browser may race its own expiry.
func (router *Router) PushUnsubscribe(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req UnsubscribeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	removed, err := router.db.DeletePushSubscriptionByEndpoint(r.Context(), req.Endpoint)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to remove subscription", err)
		return
	}

	router.updateSubscriptionGauge(r)
	respondData(w, map[string]bool{"removed": removed}, start)
}

func (router *Router) updateSubscriptionGauge(r *http.Request) {
	if count, err := router.db.CountPushSubscriptions(r.Context()); err == nil {
		metrics.UpdatePushSubscriptions(count)
	}
}
