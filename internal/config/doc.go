// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

/*
Package config provides centralized configuration management for Trafikinfo.

This package handles loading, validation, and parsing of configuration for
all application components. Configuration is layered with koanf: baked-in
defaults first, then an optional YAML file, then environment variables.
Later layers win.

# Configuration Sources

The package reads configuration from:
  - Built-in defaults (always present)
  - YAML file (config.yaml, config.yml, /etc/trafikinfo/config.yaml, or CONFIG_PATH)
  - Environment variables (highest precedence)

# Static Configuration vs Runtime Settings

Two kinds of configuration exist and must not be confused:

  - Static configuration (this package): process-level knobs such as the
    listen port, database path, worker intervals, and logging. Loaded once
    at startup and immutable afterwards.
  - Runtime settings (settings table, internal/database): operator-editable
    values such as the Trafikverket API key, selected counties, and MQTT
    broker details. Changed through the API without a restart.

SeedSettingsFromEnv bridges the two: well-known environment variables
(TRAFIKVERKET_API_KEY, SELECTED_COUNTIES, MQTT_HOST, ...) pre-populate
runtime settings that have never been written, so containerized
deployments work without a manual setup step.

# Configuration Structure

The package organizes static configuration into logical groups:

  - ServerConfig: HTTP server settings (host, port, timeouts, base URL)
  - DatabaseConfig: SQLite path and busy timeout
  - StorageConfig: snapshot/icon directories and image cache TTL
  - TrafikverketConfig: upstream API endpoint and retry cadence
  - WorkerConfig: background loop intervals and shutdown budget
  - SSEConfig: per-client queue size and heartbeat interval
  - PushConfig: Web Push VAPID subject and delivery pacing
  - SecurityConfig: admin password, rate limiting, CORS, proxies
  - APIConfig: pagination bounds
  - LoggingConfig: level, format, caller reporting

# Environment Variables

Selected variables by component (see envTransformFunc for the full map):

HTTP Server (ServerConfig):
  - HTTP_HOST: Bind address (default: 0.0.0.0)
  - HTTP_PORT: Listen port (default: 8000)
  - HTTP_TIMEOUT: Read/write timeout (default: 30s)
  - BASE_URL: Public URL used in outbound links
  - ENVIRONMENT: development or production

Database (DatabaseConfig):
  - DATABASE_PATH: SQLite file path (default: data/trafikinfo.db)
  - DATABASE_BUSY_TIMEOUT: SQLite busy timeout (default: 5s)

Trafikverket (TrafikverketConfig):
  - TRAFIKVERKET_URL: Query endpoint (default: https://api.trafikverket.se/v2/query.json)
  - STREAM_RECONNECT_DELAY: Sleep before stream reconnect (default: 5s)
  - QUERY_RETRY_DELAY: Sleep before query retry (default: 10s)

Workers (WorkerConfig):
  - INTEREST_INTERVAL: Interest evaluation cadence (default: 60s)
  - CAMERA_SYNC_INTERVAL: Camera metadata refresh (default: 24h)
  - WEATHER_SYNC_INTERVAL: Weather refresh (default: 15m)
  - ICON_SYNC_INTERVAL: Icon refresh (default: 24h)
  - SHUTDOWN_TIMEOUT: Bounded worker shutdown (default: 3s)

Security (SecurityConfig):
  - ADMIN_PASSWORD: Admin password (required in production)
  - SETTINGS_SECRET: Enables encryption-at-rest for secret settings
  - DEBUG_MODE: Exposes debug endpoints (default: false)
  - RATE_LIMIT_REQUESTS / RATE_LIMIT_WINDOW: API rate limit
  - CORS_ORIGINS: Comma-separated allowed origins

Logging (LoggingConfig):
  - LOG_LEVEL: trace|debug|info|warn|error (default: info)
  - LOG_FORMAT: json or console (default: json)

# Usage Example

Basic configuration loading:

	import "github.com/trafikinfo/trafikinfo/internal/config"

	// Load configuration: defaults, then YAML, then environment
	cfg, err := config.LoadWithKoanf()
	if err != nil {
	    log.Fatalf("Failed to load config: %v", err)
	}

	fmt.Printf("Starting server on %s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("Database: %s\n", cfg.Database.Path)

# Validation

The package performs comprehensive validation:

  - Numeric ranges: HTTP_PORT (1-65535), PIPELINE_BUFFER >= 1
  - Duration sanity: all worker intervals and timeouts must be positive
  - URL formats: TRAFIKVERKET_URL and BASE_URL must be valid HTTP(S) URLs
  - Enumerations: ENVIRONMENT and LOG_FORMAT accept a fixed set of values
  - Production guard: ADMIN_PASSWORD is required when ENVIRONMENT=production

# Settings Encryption

When SETTINGS_SECRET is set, secret runtime settings (API key, MQTT
password, admin password, VAPID private key) are stored AES-256-GCM
encrypted. The key is derived from the secret with HKDF-SHA256, so moving
the database file to another instance renders the ciphertexts useless.
See SettingsEncryptor.

# Docker Deployment

For Docker deployments, use environment variables or docker-compose.yml:

	services:
	  trafikinfo:
	    image: ghcr.io/trafikinfo/trafikinfo:latest
	    environment:
	      TRAFIKVERKET_API_KEY: ${TRAFIKVERKET_API_KEY}
	      SELECTED_COUNTIES: "14,17"
	      BASE_URL: https://trafik.example.org
	      ADMIN_PASSWORD: ${ADMIN_PASSWORD}
	      ENVIRONMENT: production
	    ports:
	      - "8000:8000"

# Thread Safety

The Config struct is immutable after LoadWithKoanf() returns, making it
safe for concurrent access from multiple goroutines without
synchronization.
*/
package config
