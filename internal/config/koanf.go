// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order
// of priority. The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/trafikinfo/config.yaml",
	"/etc/trafikinfo/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8000,
			Host:        "0.0.0.0",
			Timeout:     30 * time.Second,
			BaseURL:     "",
			Environment: "development",
		},
		Database: DatabaseConfig{
			Path:        "data/trafikinfo.db",
			BusyTimeout: 5 * time.Second,
		},
		Storage: StorageConfig{
			SnapshotDir:   "data/snapshots",
			IconDir:       "data/icons",
			ImageCacheTTL: 60 * time.Second,
		},
		Trafikverket: TrafikverketConfig{
			URL:                  "https://api.trafikverket.se/v2/query.json",
			StreamReconnectDelay: 5 * time.Second,
			QueryRetryDelay:      10 * time.Second,
			RequestTimeout:       30 * time.Second,
		},
		Worker: WorkerConfig{
			InterestInterval:    60 * time.Second,
			InterestTTL:         5 * time.Minute,
			CameraSyncInterval:  24 * time.Hour,
			WeatherSyncInterval: 15 * time.Minute,
			IconSyncInterval:    24 * time.Hour,
			RetentionInterval:   1 * time.Hour,
			PipelineBuffer:      100,
			ShutdownTimeout:     3 * time.Second,
		},
		SSE: SSEConfig{
			QueueSize:         64,
			HeartbeatInterval: 30 * time.Second,
		},
		Push: PushConfig{
			VAPIDSubject:    "mailto:admin@localhost",
			DeliveryTimeout: 10 * time.Second,
			RatePerSecond:   20,
			Burst:           50,
		},
		Security: SecurityConfig{
			AdminPassword:     "",
			SettingsSecret:    "",
			DebugMode:         false,
			RateLimitReqs:     100,
			RateLimitWindow:   1 * time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
			TrustedProxies:    []string{},
		},
		API: APIConfig{
			DefaultPageSize: 50,
			MaxPageSize:     500,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
//
// This function is the preferred way to load configuration and provides:
//   - Type-safe configuration unmarshaling
//   - Clear precedence: ENV > File > Defaults
//   - Support for nested configuration via koanf struct tags
//   - Backward compatibility with existing environment variables
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// Transform environment variable names to koanf paths:
	// HTTP_PORT -> server.port
	// SNAPSHOT_DIR -> storage.snapshot_dir
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Post-process slice fields from comma-separated strings
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	// Unmarshal into Config struct
	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	// Check environment variable first
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	// Search default paths
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices.
var sliceConfigPaths = []string{
	"security.cors_origins",
	"security.trusted_proxies",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// This is necessary because env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// If it's already a slice (from YAML file), skip
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		// If it's a string, split by comma
		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envTransformFunc transforms environment variable names to koanf config paths.
// It maps flat legacy environment variable names onto the nested configuration
// structure.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - DATABASE_PATH -> database.path
//   - SNAPSHOT_DIR -> storage.snapshot_dir
//   - ADMIN_PASSWORD -> security.admin_password
//   - DEBUG_MODE -> security.debug_mode
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server mappings
		"http_port":    "server.port",
		"http_host":    "server.host",
		"http_timeout": "server.timeout",
		"base_url":     "server.base_url",
		"environment":  "server.environment",

		// Database mappings
		"database_path":         "database.path",
		"database_busy_timeout": "database.busy_timeout",

		// Storage mappings
		"snapshot_dir":    "storage.snapshot_dir",
		"icon_dir":        "storage.icon_dir",
		"image_cache_ttl": "storage.image_cache_ttl",

		// Upstream mappings
		"trafikverket_url":             "trafikverket.url",
		"stream_reconnect_delay":       "trafikverket.stream_reconnect_delay",
		"query_retry_delay":            "trafikverket.query_retry_delay",
		"trafikverket_request_timeout": "trafikverket.request_timeout",

		// Worker mappings
		"interest_interval":     "worker.interest_interval",
		"interest_ttl":          "worker.interest_ttl",
		"camera_sync_interval":  "worker.camera_sync_interval",
		"weather_sync_interval": "worker.weather_sync_interval",
		"icon_sync_interval":    "worker.icon_sync_interval",
		"retention_interval":    "worker.retention_interval",
		"pipeline_buffer":       "worker.pipeline_buffer",
		"shutdown_timeout":      "worker.shutdown_timeout",

		// SSE mappings
		"sse_queue_size":         "sse.queue_size",
		"sse_heartbeat_interval": "sse.heartbeat_interval",

		// Push mappings
		"vapid_subject":         "push.vapid_subject",
		"push_delivery_timeout": "push.delivery_timeout",
		"push_rate_per_second":  "push.rate_per_second",
		"push_burst":            "push.burst",

		// Security mappings
		"admin_password":      "security.admin_password",
		"settings_secret":     "security.settings_secret",
		"debug_mode":          "security.debug_mode",
		"rate_limit_requests": "security.rate_limit_reqs",
		"rate_limit_window":   "security.rate_limit_window",
		"disable_rate_limit":  "security.rate_limit_disabled",
		"cors_origins":        "security.cors_origins",
		"trusted_proxies":     "security.trusted_proxies",

		// API mappings
		"api_default_page_size": "api.default_page_size",
		"api_max_page_size":     "api.max_page_size",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// For unmapped keys, return empty string to skip them
	// This prevents random environment variables from polluting config
	return ""
}
