// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/trafikinfo/trafikinfo/internal/config"
	"github.com/trafikinfo/trafikinfo/internal/logging"
	"github.com/trafikinfo/trafikinfo/internal/models"
)

// adminPasswordPolicy gates admin_password writes; the password protects
// settings writes and database reset.
var adminPasswordPolicy = config.AdminPasswordPolicy()

// ReportBaseURLRequest is the POST /api/report-base-url body.
type ReportBaseURLRequest struct {
	BaseURL string `json:"base_url" validate:"required,url"`
}

// Settings handles GET /api/settings. Secret values are masked.
func (router *Router) Settings(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	settings, err := router.db.GetAllSettings(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to read settings", err)
		return
	}

	for key, value := range settings {
		if models.SecretSettings[key] {
			settings[key] = config.MaskSecret(value)
		}
	}

	respondData(w, settings, start)
}

// UpdateSettings handles POST /api/settings (admin). The body is a partial
// key→value map; unknown keys are rejected so typos do not silently create
// dead rows. When any mqtt_* key changes the broker connection is
// reconfigured in place.
func (router *Router) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	// The body is a plain map, so struct validation does not apply; key
	// checking below is the validation.
	var req map[string]string
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid JSON body", err)
		return
	}
	if len(req) == 0 {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "no settings given", nil)
		return
	}

	updates := make(map[string]string, len(req))
	mqttChanged := false
	for key, value := range req {
		if _, known := models.DefaultSettings[key]; !known {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "unknown setting key: "+sanitizeLogValue(key), ErrUnknownSettingKey)
			return
		}
		if models.SecretSettings[key] && value == config.MaskedSecret {
			continue
		}
		// An empty value clears the password and reopens the install.
		if key == models.SettingAdminPassword && value != "" {
			if err := adminPasswordPolicy.ValidateWithError(value); err != nil {
				respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
				return
			}
		}
		if strings.HasPrefix(key, "mqtt_") {
			mqttChanged = true
		}
		updates[key] = value
	}

	if len(updates) > 0 {
		if err := router.db.SetSettings(r.Context(), updates); err != nil {
			respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to save settings", err)
			return
		}
	}

	if mqttChanged {
		if err := router.broker.Configure(r.Context()); err != nil {
			// The settings are saved; the broker retries on the next
			// publish. Surface the problem without failing the write.
			logging.Warn().Err(err).Str("component", "api").Msg("Broker reconfiguration failed after settings update")
		}
	}

	keys := make([]string, 0, len(updates))
	for key := range updates {
		keys = append(keys, key)
	}
	logging.Info().Str("component", "api").Strs("keys", keys).Msg("Settings updated")

	respondData(w, map[string]int{"updated": len(updates)}, start)
}

// ReportBaseURL handles POST /api/report-base-url. The UI reports its own
// origin once so outbound payloads (MQTT, push) can carry absolute links
// without static configuration. An explicitly configured base_url wins.
func (router *Router) ReportBaseURL(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req ReportBaseURLRequest
	if !decodeBody(w, r, &req) {
		return
	}

	current, err := router.db.GetSetting(r.Context(), models.SettingBaseURL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to read base URL", err)
		return
	}

	reported := strings.TrimRight(req.BaseURL, "/")
	if current == "" && router.cfg.Server.BaseURL == "" {
		if err := router.db.SetSetting(r.Context(), models.SettingBaseURL, reported); err != nil {
			respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to save base URL", err)
			return
		}
		logging.Info().Str("component", "api").Str("base_url", sanitizeLogValue(reported)).Msg("Recorded reported base URL")
	}

	respondData(w, map[string]bool{"recorded": current == "" && router.cfg.Server.BaseURL == ""}, start)
}
