// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trafikinfo/trafikinfo/internal/broadcast"
	"github.com/trafikinfo/trafikinfo/internal/config"
	"github.com/trafikinfo/trafikinfo/internal/database"
	"github.com/trafikinfo/trafikinfo/internal/imagecache"
	"github.com/trafikinfo/trafikinfo/internal/middleware"
	"github.com/trafikinfo/trafikinfo/internal/models"
	"github.com/trafikinfo/trafikinfo/internal/trafikverket"
)

// Upstream reports the stream consumer state for /api/status.
type Upstream interface {
	Status() trafikverket.Status
}

// Broker is the MQTT manager surface the API drives: status for
// /api/status and reconfiguration after settings writes.
type Broker interface {
	Status() models.BrokerStatus
	Configure(ctx context.Context) error
}

// PushKeys exposes the VAPID public key for new subscriptions.
type PushKeys interface {
	PublicKey(ctx context.Context) (string, error)
}

// Workers reports worker manager state for /api/status.
type Workers interface {
	SetupRequired() bool
	ActiveCounties() []int
}

// Snapshots is the snapshot store surface used for static serving and reset.
type Snapshots interface {
	Root() string
	RemoveAll() error
}

// Router assembles the HTTP surface. Construct with New and mount the
// handler returned by Setup.
type Router struct {
	cfg      *config.Config
	db       *database.DB
	hub      *broadcast.Hub
	upstream Upstream
	broker   Broker
	push     PushKeys
	workers  Workers
	snaps    Snapshots
	images   *imagecache.Cache

	// proxy fetches upstream camera images on cache misses.
	proxy *http.Client

	version string
	mw      *ChiMiddleware
}

// New creates a Router over the given collaborators.
func New(cfg *config.Config, db *database.DB, hub *broadcast.Hub, upstream Upstream, broker Broker, push PushKeys, workers Workers, snaps Snapshots, images *imagecache.Cache, version string) *Router {
	timeout := cfg.Trafikverket.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Router{
		cfg:      cfg,
		db:       db,
		hub:      hub,
		upstream: upstream,
		broker:   broker,
		push:     push,
		workers:  workers,
		snaps:    snaps,
		images:   images,
		proxy:    &http.Client{Timeout: timeout},
		version:  version,
		mw:       NewChiMiddleware(&cfg.Security),
	}
}

// chiMiddleware adapts http.HandlerFunc middleware to Chi's
// func(http.Handler) http.Handler so the middleware package works with r.Use.
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// Setup configures all HTTP routes and returns the root handler.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	// Applied to ALL routes in order
	r.Use(RequestIDWithLogging())  // Add X-Request-ID header with logging context
	r.Use(chimiddleware.RealIP)    // Extract real IP from X-Forwarded-For
	r.Use(chimiddleware.Recoverer) // Recover from panics
	r.Use(router.mw.CORS())        // CORS must be global to handle OPTIONS preflight

	// ========================
	// JSON Read Endpoints
	// ========================
	r.Route("/api", func(r chi.Router) {
		r.Use(router.mw.RateLimit())
		r.Use(chiMiddleware(middleware.PrometheusMetrics))
		r.Use(chiMiddleware(middleware.Compression))

		r.Get("/events", router.Events)
		r.Get("/events/{external_id}/history", router.EventHistory)
		r.Get("/road-conditions", router.RoadConditions)
		r.Get("/cameras", router.Cameras)
		r.Get("/settings", router.Settings)
		r.Get("/status", router.Status)
		r.Get("/stats", router.Stats)
		r.Get("/push/vapid-public-key", router.VAPIDPublicKey)

		// Client-driven writes; rate limited with the read class since
		// every page load refreshes its interest row.
		r.Post("/client/interest", router.ClientInterest)
		r.Post("/push/subscribe", router.PushSubscribe)
		r.Post("/push/unsubscribe", router.PushUnsubscribe)
		r.Post("/report-base-url", router.ReportBaseURL)
	})

	// ========================
	// Image and Stream Endpoints
	// ========================
	// Permissive rate limiting: a camera wall loads dozens of images at
	// once and SSE reconnects must never be throttled away.
	r.Group(func(r chi.Router) {
		r.Use(router.mw.RateLimitMedia())

		r.Get("/api/cameras/{id}/image", router.CameraImage)
		r.Get("/api/icons/{id}", router.Icon)
		r.Get("/api/snapshots/*", router.Snapshot)
		r.Get("/api/stream", router.Stream)
	})

	// ========================
	// Admin Endpoints
	// ========================
	// Strict rate limiting plus the admin password check.
	r.Group(func(r chi.Router) {
		r.Use(router.mw.RateLimitAdmin())
		r.Use(chiMiddleware(middleware.PrometheusMetrics))
		r.Use(router.RequireAdmin)

		r.Post("/api/settings", router.UpdateSettings)
		r.Post("/api/cameras/{id}/toggle-favorite", router.ToggleCameraFavorite)
		r.Post("/api/reset", router.Reset)
	})

	// ========================
	// Observability
	// ========================
	r.Handle("/metrics", promhttp.Handler())

	return r
}
