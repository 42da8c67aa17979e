// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package api

import (
	"crypto/subtle"
	"net/http"
	"os"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/trafikinfo/trafikinfo/internal/config"
	"github.com/trafikinfo/trafikinfo/internal/logging"
	"github.com/trafikinfo/trafikinfo/internal/models"
)

// RateLimitConfig defines rate limit parameters for one route class.
type RateLimitConfig struct {
	// Requests is the number of requests allowed in the window
	Requests int
	// Window is the time window for rate limiting
	Window time.Duration
}

// Route-class rate limits. The default class covers JSON reads and
// client-driven writes; media covers images and the SSE stream where a
// single page legitimately fires many requests; admin covers mutations
// guarded by the password check.
var (
	RateLimitDefault = RateLimitConfig{Requests: 100, Window: time.Minute}
	RateLimitMedia   = RateLimitConfig{Requests: 1000, Window: time.Minute}
	RateLimitAdmin   = RateLimitConfig{Requests: 10, Window: time.Minute}
)

// ChiMiddleware provides Chi-compatible middleware factories built from the
// static security configuration.
type ChiMiddleware struct {
	cfg  *config.SecurityConfig
	cors func(http.Handler) http.Handler
}

// NewChiMiddleware creates the middleware factory for the given security
// configuration.
func NewChiMiddleware(cfg *config.SecurityConfig) *ChiMiddleware {
	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Admin-Password", "Last-Event-ID"},
		MaxAge:         86400,
	})

	return &ChiMiddleware{cfg: cfg, cors: corsHandler}
}

// CORS returns the go-chi/cors middleware for the configured origins.
func (m *ChiMiddleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// RateLimit returns the default per-IP rate limiter. The request budget can
// be overridden in configuration; the route-class default is 100/min.
func (m *ChiMiddleware) RateLimit() func(http.Handler) http.Handler {
	limit := RateLimitDefault
	if m.cfg.RateLimitReqs > 0 {
		limit.Requests = m.cfg.RateLimitReqs
	}
	if m.cfg.RateLimitWindow > 0 {
		limit.Window = m.cfg.RateLimitWindow
	}
	return m.custom(limit)
}

// RateLimitMedia returns the permissive limiter for image and stream routes.
func (m *ChiMiddleware) RateLimitMedia() func(http.Handler) http.Handler {
	return m.custom(RateLimitMedia)
}

// RateLimitAdmin returns the strict limiter for admin mutations. Combined
// with the password check it bounds brute-force attempts per IP.
func (m *ChiMiddleware) RateLimitAdmin() func(http.Handler) http.Handler {
	return m.custom(RateLimitAdmin)
}

func (m *ChiMiddleware) custom(limit RateLimitConfig) func(http.Handler) http.Handler {
	if m.cfg.RateLimitDisabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	return httprate.LimitByIP(limit.Requests, limit.Window)
}

// RequestIDWithLogging returns a middleware that adds a request ID to the
// context and integrates with the logging package for request tracing. It
// wraps chi's RequestID middleware so the same ID appears in the
// X-Request-ID header, the chi request context and every log line.
func RequestIDWithLogging() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		chiRequestID := chimiddleware.RequestID(next)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				// chi would generate its own counter-based ID; generate
				// ours first so the logging context sees the same value.
				requestID = logging.GenerateRequestID()
				r.Header.Set("X-Request-ID", requestID)
			}
			w.Header().Set("X-Request-ID", requestID)

			ctx := logging.ContextWithRequestID(r.Context(), requestID)
			chiRequestID.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin guards a route with the admin password. The ADMIN_PASSWORD
// environment variable takes precedence over the admin_password setting.
// While neither is configured the check passes, so the first-boot setup
// wizard can store the initial configuration.
func (router *Router) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		expected := os.Getenv("ADMIN_PASSWORD")
		if expected == "" {
			stored, err := router.db.GetSetting(r.Context(), models.SettingAdminPassword)
			if err != nil {
				respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to read admin password", err)
				return
			}
			expected = stored
		}
		if expected == "" {
			next.ServeHTTP(w, r)
			return
		}

		given := r.Header.Get("X-Admin-Password")
		if subtle.ConstantTimeCompare([]byte(given), []byte(expected)) != 1 {
			logging.Warn().
				Str("component", "api").
				Str("path", r.URL.Path).
				Msg("Rejected admin request with wrong password")
			respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "Invalid admin password", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}
