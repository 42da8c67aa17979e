// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package api

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/trafikinfo/trafikinfo/internal/config"
	"github.com/trafikinfo/trafikinfo/internal/models"
)

func TestSettingsMasksSecrets(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.db.SetSettings(ctx, map[string]string{
		models.SettingAPIKey:        "real-api-key",
		models.SettingMQTTHost:      "broker.local",
		models.SettingAdminPassword: "",
	}); err != nil {
		t.Fatalf("failed to seed settings: %v", err)
	}

	rec, resp := env.do(t, http.MethodGet, "/api/settings", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var settings map[string]string
	decodeData(t, resp, &settings)

	if settings[models.SettingAPIKey] != config.MaskedSecret {
		t.Fatalf("expected masked api_key, got %q", settings[models.SettingAPIKey])
	}
	if settings[models.SettingMQTTHost] != "broker.local" {
		t.Fatalf("expected plain mqtt_host, got %q", settings[models.SettingMQTTHost])
	}
	// Empty secrets stay empty so the UI can tell "unset" from "set".
	if settings[models.SettingAdminPassword] != "" {
		t.Fatalf("expected empty admin_password, got %q", settings[models.SettingAdminPassword])
	}
}

func TestUpdateSettings(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("writes known keys", func(t *testing.T) {
		rec, resp := env.do(t, http.MethodPost, "/api/settings",
			strings.NewReader(`{"retention_days": "14", "camera_radius_km": "12.5"}`), nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var data map[string]int
		decodeData(t, resp, &data)
		if data["updated"] != 2 {
			t.Fatalf("expected 2 updates, got %d", data["updated"])
		}

		value, err := env.db.GetSetting(ctx, models.SettingRetentionDays)
		if err != nil {
			t.Fatalf("failed to read setting: %v", err)
		}
		if value != "14" {
			t.Fatalf("expected retention_days=14, got %q", value)
		}
	})

	t.Run("rejects unknown keys", func(t *testing.T) {
		rec, resp := env.do(t, http.MethodPost, "/api/settings",
			strings.NewReader(`{"retention_dayz": "14"}`), nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		if resp.Error == nil || resp.Error.Code != "VALIDATION_ERROR" {
			t.Fatalf("expected VALIDATION_ERROR, got %+v", resp.Error)
		}
	})

	t.Run("rejects empty body", func(t *testing.T) {
		rec, _ := env.do(t, http.MethodPost, "/api/settings", strings.NewReader(`{}`), nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("masked secret leaves stored value alone", func(t *testing.T) {
		if err := env.db.SetSetting(ctx, models.SettingAPIKey, "real-api-key"); err != nil {
			t.Fatalf("failed to seed api key: %v", err)
		}
		rec, resp := env.do(t, http.MethodPost, "/api/settings",
			strings.NewReader(`{"api_key": "`+config.MaskedSecret+`", "retention_days": "7"}`), nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var data map[string]int
		decodeData(t, resp, &data)
		if data["updated"] != 1 {
			t.Fatalf("expected the masked key to be skipped, got %d updates", data["updated"])
		}

		value, err := env.db.GetSetting(ctx, models.SettingAPIKey)
		if err != nil {
			t.Fatalf("failed to read api key: %v", err)
		}
		if value != "real-api-key" {
			t.Fatalf("stored secret was overwritten: %q", value)
		}
	})

	t.Run("mqtt change reconfigures broker", func(t *testing.T) {
		before := env.broker.configureCalls()
		rec, _ := env.do(t, http.MethodPost, "/api/settings",
			strings.NewReader(`{"mqtt_host": "broker.local", "mqtt_port": "1884"}`), nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if got := env.broker.configureCalls(); got != before+1 {
			t.Fatalf("expected one Configure call, got %d", got-before)
		}
	})

	t.Run("weak admin password rejected", func(t *testing.T) {
		cases := []struct {
			name     string
			password string
		}{
			{"too short", "Kort1"},
			{"no digit", "Sommarregnet"},
			{"common word", "trafikverket"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				rec, resp := env.do(t, http.MethodPost, "/api/settings",
					strings.NewReader(`{"admin_password": "`+tc.password+`"}`), nil)
				if rec.Code != http.StatusBadRequest {
					t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
				}
				if resp.Error == nil || resp.Error.Code != "VALIDATION_ERROR" {
					t.Fatalf("expected VALIDATION_ERROR, got %+v", resp.Error)
				}
			})
		}

		value, err := env.db.GetSetting(ctx, models.SettingAdminPassword)
		if err != nil || value != "" {
			t.Fatalf("weak password was stored: %q, %v", value, err)
		}
	})

	t.Run("non-mqtt change leaves broker alone", func(t *testing.T) {
		before := env.broker.configureCalls()
		rec, _ := env.do(t, http.MethodPost, "/api/settings",
			strings.NewReader(`{"retention_days": "30"}`), nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if got := env.broker.configureCalls(); got != before {
			t.Fatalf("unexpected Configure call")
		}
	})
}

func TestAdminPasswordGuard(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Unconfigured install: writes pass so the setup wizard can run.
	rec, _ := env.do(t, http.MethodPost, "/api/settings",
		strings.NewReader(`{"admin_password": "Vinterdack26"}`), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 before password is set, got %d", rec.Code)
	}
	value, err := env.db.GetSetting(ctx, models.SettingAdminPassword)
	if err != nil || value != "Vinterdack26" {
		t.Fatalf("password was not stored: %q, %v", value, err)
	}

	t.Run("missing password rejected", func(t *testing.T) {
		rec, resp := env.do(t, http.MethodPost, "/api/settings",
			strings.NewReader(`{"retention_days": "7"}`), nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		if resp.Error == nil || resp.Error.Code != "AUTHENTICATION_ERROR" {
			t.Fatalf("expected AUTHENTICATION_ERROR, got %+v", resp.Error)
		}
	})

	t.Run("wrong password rejected", func(t *testing.T) {
		rec, _ := env.do(t, http.MethodPost, "/api/settings",
			strings.NewReader(`{"retention_days": "7"}`),
			map[string]string{"X-Admin-Password": "fel"})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("correct password accepted", func(t *testing.T) {
		rec, _ := env.do(t, http.MethodPost, "/api/settings",
			strings.NewReader(`{"retention_days": "7"}`),
			map[string]string{"X-Admin-Password": "Vinterdack26"})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("guard covers reset", func(t *testing.T) {
		rec, _ := env.do(t, http.MethodPost, "/api/reset", nil, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("reads stay open", func(t *testing.T) {
		rec, _ := env.do(t, http.MethodGet, "/api/settings", nil, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})
}

func TestAdminPasswordEnvOverride(t *testing.T) {
	env := newTestEnv(t)
	t.Setenv("ADMIN_PASSWORD", "env-secret")

	if err := env.db.SetSetting(context.Background(), models.SettingAdminPassword, "db-secret"); err != nil {
		t.Fatalf("failed to seed setting: %v", err)
	}

	rec, _ := env.do(t, http.MethodPost, "/api/settings",
		strings.NewReader(`{"retention_days": "7"}`),
		map[string]string{"X-Admin-Password": "db-secret"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected env password to win, got %d", rec.Code)
	}

	rec, _ = env.do(t, http.MethodPost, "/api/settings",
		strings.NewReader(`{"retention_days": "7"}`),
		map[string]string{"X-Admin-Password": "env-secret"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with env password, got %d", rec.Code)
	}
}

func TestReportBaseURL(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec, resp := env.do(t, http.MethodPost, "/api/report-base-url",
		strings.NewReader(`{"base_url": "https://trafik.example.com/"}`), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var data map[string]bool
	decodeData(t, resp, &data)
	if !data["recorded"] {
		t.Fatal("expected the first report to be recorded")
	}

	value, err := env.db.GetSetting(ctx, models.SettingBaseURL)
	if err != nil {
		t.Fatalf("failed to read base URL: %v", err)
	}
	if value != "https://trafik.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", value)
	}

	// A second report does not overwrite the recorded value.
	rec, resp = env.do(t, http.MethodPost, "/api/report-base-url",
		strings.NewReader(`{"base_url": "https://other.example.com"}`), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	decodeData(t, resp, &data)
	if data["recorded"] {
		t.Fatal("expected the second report to be ignored")
	}

	value, err = env.db.GetSetting(ctx, models.SettingBaseURL)
	if err != nil || value != "https://trafik.example.com" {
		t.Fatalf("recorded base URL changed: %q, %v", value, err)
	}
}
