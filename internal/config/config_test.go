// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package config

import (
	"strings"
	"testing"
)

// validTestConfig returns a configuration that passes Validate(), for use
// as the base of mutation tests.
func validTestConfig() *Config {
	return defaultConfig()
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := validTestConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() on defaults returned error: %v", err)
	}
}

func TestValidateServer(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "port zero",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "HTTP_PORT",
		},
		{
			name:    "port too high",
			mutate:  func(c *Config) { c.Server.Port = 65536 },
			wantErr: "HTTP_PORT",
		},
		{
			name:    "zero timeout",
			mutate:  func(c *Config) { c.Server.Timeout = 0 },
			wantErr: "HTTP_TIMEOUT",
		},
		{
			name:    "unknown environment",
			mutate:  func(c *Config) { c.Server.Environment = "staging" },
			wantErr: "ENVIRONMENT",
		},
		{
			name:    "base URL without scheme",
			mutate:  func(c *Config) { c.Server.BaseURL = "trafik.example.org" },
			wantErr: "BASE_URL",
		},
		{
			name:    "base URL with query",
			mutate:  func(c *Config) { c.Server.BaseURL = "https://trafik.example.org/?a=1" },
			wantErr: "BASE_URL",
		},
		{
			name:   "base URL with path is allowed",
			mutate: func(c *Config) { c.Server.BaseURL = "https://example.org/trafik" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to mention %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateTrafikverket(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "empty URL",
			mutate:  func(c *Config) { c.Trafikverket.URL = "" },
			wantErr: "TRAFIKVERKET_URL",
		},
		{
			name:    "non-http scheme",
			mutate:  func(c *Config) { c.Trafikverket.URL = "ftp://api.trafikverket.se" },
			wantErr: "TRAFIKVERKET_URL",
		},
		{
			name:    "zero reconnect delay",
			mutate:  func(c *Config) { c.Trafikverket.StreamReconnectDelay = 0 },
			wantErr: "STREAM_RECONNECT_DELAY",
		},
		{
			name:    "zero query retry delay",
			mutate:  func(c *Config) { c.Trafikverket.QueryRetryDelay = 0 },
			wantErr: "QUERY_RETRY_DELAY",
		},
		{
			name:   "URL with path is valid",
			mutate: func(c *Config) { c.Trafikverket.URL = "https://api.trafikverket.se/v2/query.json" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateWorker(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "zero interest interval",
			mutate:  func(c *Config) { c.Worker.InterestInterval = 0 },
			wantErr: "INTEREST_INTERVAL",
		},
		{
			name:    "zero camera sync interval",
			mutate:  func(c *Config) { c.Worker.CameraSyncInterval = 0 },
			wantErr: "CAMERA_SYNC_INTERVAL",
		},
		{
			name:    "pipeline buffer below one",
			mutate:  func(c *Config) { c.Worker.PipelineBuffer = 0 },
			wantErr: "PIPELINE_BUFFER",
		},
		{
			name:    "zero shutdown timeout",
			mutate:  func(c *Config) { c.Worker.ShutdownTimeout = 0 },
			wantErr: "SHUTDOWN_TIMEOUT",
		},
		{
			name:    "sse queue below one",
			mutate:  func(c *Config) { c.SSE.QueueSize = 0 },
			wantErr: "SSE_QUEUE_SIZE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidatePush(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "empty subject",
			mutate:  func(c *Config) { c.Push.VAPIDSubject = "" },
			wantErr: "VAPID_SUBJECT",
		},
		{
			name:    "subject with bad scheme",
			mutate:  func(c *Config) { c.Push.VAPIDSubject = "http://example.org" },
			wantErr: "VAPID_SUBJECT",
		},
		{
			name:   "mailto subject",
			mutate: func(c *Config) { c.Push.VAPIDSubject = "mailto:ops@example.org" },
		},
		{
			name:   "https subject",
			mutate: func(c *Config) { c.Push.VAPIDSubject = "https://trafik.example.org" },
		},
		{
			name:    "zero rate",
			mutate:  func(c *Config) { c.Push.RatePerSecond = 0 },
			wantErr: "PUSH_RATE_PER_SECOND",
		},
		{
			name:    "zero burst",
			mutate:  func(c *Config) { c.Push.Burst = 0 },
			wantErr: "PUSH_BURST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateSecurity(t *testing.T) {
	t.Run("rate limit zero rejected when enabled", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Security.RateLimitReqs = 0
		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), "RATE_LIMIT_REQUESTS") {
			t.Errorf("Validate() error = %v, want RATE_LIMIT_REQUESTS", err)
		}
	})

	t.Run("rate limit zero ignored when disabled", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Security.RateLimitReqs = 0
		cfg.Security.RateLimitDisabled = true
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() unexpected error: %v", err)
		}
	})

	t.Run("production without admin password rejected", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Server.Environment = "production"
		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), "ADMIN_PASSWORD") {
			t.Errorf("Validate() error = %v, want ADMIN_PASSWORD", err)
		}
	})

	t.Run("development without admin password allowed", func(t *testing.T) {
		cfg := validTestConfig()
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() unexpected error: %v", err)
		}
	})
}

func TestValidateHTTPURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"https URL", "https://api.trafikverket.se/v2/query.json", false},
		{"http URL", "http://localhost:8080", false},
		{"missing scheme", "api.trafikverket.se", true},
		{"unsupported scheme", "ftp://api.trafikverket.se", true},
		{"missing host", "https://", true},
		{"garbage", "://nope", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateHTTPURL(tt.url, "TEST_URL")
			if tt.wantErr && err == nil {
				t.Errorf("validateHTTPURL(%q) expected error, got nil", tt.url)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("validateHTTPURL(%q) unexpected error: %v", tt.url, err)
			}
		})
	}
}
