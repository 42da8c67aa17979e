// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/trafikinfo/trafikinfo/internal/database"
	"github.com/trafikinfo/trafikinfo/internal/logging"
)

// maxProxiedImageBytes bounds one proxied camera image. Upstream full-size
// photos are a few hundred KB; anything bigger is a misbehaving origin.
const maxProxiedImageBytes = 8 << 20

// Cameras handles GET /api/cameras.
//
// Query parameters:
//   - counties: comma-separated county numbers
//   - favorites: "true" restricts to favorited cameras
func (router *Router) Cameras(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	counties, err := parseCountiesParam(r.URL.Query().Get("counties"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	filter := database.CameraFilter{
		Counties:      counties,
		OnlyFavorites: r.URL.Query().Get("favorites") == "true",
	}

	cameras, err := router.db.GetCameras(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to read cameras", err)
		return
	}

	respondData(w, cameras, start)
}

// ToggleCameraFavorite handles POST /api/cameras/{id}/toggle-favorite.
// Favorites survive camera syncs; the handler returns the new state.
func (router *Router) ToggleCameraFavorite(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id := chi.URLParam(r, "id")
	favorite, err := router.db.ToggleCameraFavorite(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Unknown camera", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to toggle favorite", err)
		return
	}

	respondData(w, map[string]interface{}{"id": id, "is_favorite": favorite}, start)
}

// CameraImage handles GET /api/cameras/{id}/image. Images are proxied from
// the upstream photo URL through a short-TTL cache so a camera wall does not
// hammer Trafikverket, and so browser clients never see upstream URLs.
func (router *Router) CameraImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	cam, err := router.db.GetCameraByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Unknown camera", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to read camera", err)
		return
	}
	if cam.PhotoURL == "" {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Camera has no photo", nil)
		return
	}

	if body, contentType, ok := router.images.Get(id); ok {
		serveImage(w, contentType, body)
		return
	}

	body, contentType, err := router.fetchImage(r, cam.PhotoURL)
	if err != nil {
		respondError(w, http.StatusBadGateway, "UPSTREAM_ERROR", "Failed to fetch camera image", err)
		return
	}

	if err := router.images.Set(id, contentType, body); err != nil {
		logging.Warn().Err(err).Str("camera_id", sanitizeLogValue(id)).Msg("Failed to cache camera image")
	}
	serveImage(w, contentType, body)
}

func (router *Router) fetchImage(r *http.Request, url string) (body []byte, contentType string, err error) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := router.proxy.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, "", errors.New("upstream returned " + resp.Status)
	}

	body, err = io.ReadAll(io.LimitReader(resp.Body, maxProxiedImageBytes))
	if err != nil {
		return nil, "", err
	}

	contentType = resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return body, contentType, nil
}

func serveImage(w http.ResponseWriter, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=60")
	if _, err := w.Write(body); err != nil {
		logging.Error().Err(err).Msg("Failed to write image response")
	}
}
