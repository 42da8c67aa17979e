// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// InterestRequest is the POST /api/client/interest body. A missing client ID
// gets one assigned; the client stores it and repeats it on every refresh so
// its row is updated rather than multiplied.
type InterestRequest struct {
	ClientID string `json:"client_id" validate:"omitempty,uuid4"`
	Counties []int  `json:"counties" validate:"required,min=1,dive,county"`
}

// ClientInterest handles POST /api/client/interest. Rows expire when not
// refreshed within the interest TTL; the worker manager unions the active
// rows into the county set it streams.
func (router *Router) ClientInterest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req InterestRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.ClientID == "" {
		req.ClientID = uuid.New().String()
	}

	if err := router.db.UpsertClientInterest(r.Context(), req.ClientID, req.Counties); err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to record interest", err)
		return
	}

	respondData(w, map[string]interface{}{
		"client_id": req.ClientID,
		"counties":  req.Counties,
	}, start)
}
