// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/trafikinfo/trafikinfo/internal/snapshots"
)

// Icon handles GET /api/icons/{id}, serving PNGs downloaded by the icon
// sync loop. The ID is sanitized the same way the sync writes it, so a
// crafted ID can never escape the icon directory.
func (router *Router) Icon(w http.ResponseWriter, r *http.Request) {
	id := snapshots.SanitizeID(chi.URLParam(r, "id"))
	if id == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "icon id is required", nil)
		return
	}

	path := filepath.Join(router.cfg.Storage.IconDir, id+".png")
	if _, err := os.Stat(path); err != nil {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Unknown icon", nil)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeFile(w, r, path)
}

// Snapshot handles GET /api/snapshots/<county>/<file>, serving the
// county-partitioned snapshot tree written by the enrichment stage.
func (router *Router) Snapshot(w http.ResponseWriter, r *http.Request) {
	rel := chi.URLParam(r, "*")
	if rel == "" || strings.Contains(rel, "..") || strings.HasPrefix(rel, "/") {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid snapshot path", nil)
		return
	}

	path := filepath.Join(router.snaps.Root(), filepath.FromSlash(rel))
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Unknown snapshot", nil)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeFile(w, r, path)
}
