// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package config

import (
	"time"
)

// Config is the root configuration for the Trafikinfo server.
//
// Configuration is layered: built-in defaults, then an optional YAML file,
// then environment variables (highest priority). Runtime-mutable settings
// (API key, MQTT broker, selected counties, VAPID keys) live in the database
// settings table instead and are managed via the admin settings endpoint;
// this struct only covers process-level configuration that requires a
// restart to change.
type Config struct {
	Server       ServerConfig       `koanf:"server"`
	Database     DatabaseConfig     `koanf:"database"`
	Storage      StorageConfig      `koanf:"storage"`
	Trafikverket TrafikverketConfig `koanf:"trafikverket"`
	Worker       WorkerConfig       `koanf:"worker"`
	SSE          SSEConfig          `koanf:"sse"`
	Push         PushConfig         `koanf:"push"`
	Security     SecurityConfig     `koanf:"security"`
	API          APIConfig          `koanf:"api"`
	Logging      LoggingConfig      `koanf:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	// Port is the HTTP listen port.
	Port int `koanf:"port"`

	// Host is the HTTP listen address.
	Host string `koanf:"host"`

	// Timeout is the read/write timeout for non-streaming requests.
	Timeout time.Duration `koanf:"timeout"`

	// BaseURL is the canonical external URL used to rewrite icon and
	// snapshot URLs in outbound payloads. May also be recorded at runtime
	// via POST /api/report-base-url; the settings value wins when set.
	BaseURL string `koanf:"base_url"`

	// Environment is "development" or "production".
	Environment string `koanf:"environment"`
}

// DatabaseConfig holds SQLite configuration.
type DatabaseConfig struct {
	// Path is the SQLite database file. ":memory:" is accepted for tests.
	Path string `koanf:"path"`

	// BusyTimeout is how long a locked database blocks a writer before
	// returning SQLITE_BUSY.
	BusyTimeout time.Duration `koanf:"busy_timeout"`
}

// StorageConfig holds on-disk storage locations.
type StorageConfig struct {
	// SnapshotDir is the root of the county-partitioned snapshot tree.
	SnapshotDir string `koanf:"snapshot_dir"`

	// IconDir is where upstream icon PNGs are cached.
	IconDir string `koanf:"icon_dir"`

	// ImageCacheTTL bounds how long proxied camera images are served from
	// the in-memory cache before being re-fetched.
	ImageCacheTTL time.Duration `koanf:"image_cache_ttl"`
}

// TrafikverketConfig holds upstream API configuration. The API key itself is
// a runtime setting, not static config.
type TrafikverketConfig struct {
	// URL is the query endpoint that returns stream URLs and one-shot data.
	URL string `koanf:"url"`

	// StreamReconnectDelay is the sleep after a dropped stream before a
	// fresh stream URL is requested.
	StreamReconnectDelay time.Duration `koanf:"stream_reconnect_delay"`

	// QueryRetryDelay is the sleep after a failed stream-URL query.
	QueryRetryDelay time.Duration `koanf:"query_retry_delay"`

	// RequestTimeout bounds one-shot fetches (cameras, weather, icons).
	// The stream GET itself runs with no read timeout.
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

// WorkerConfig holds background loop cadences and pipeline sizing.
type WorkerConfig struct {
	// InterestInterval is the cadence of the interest-set control loop.
	InterestInterval time.Duration `koanf:"interest_interval"`

	// InterestTTL is how long a ClientInterest row counts as active after
	// its last refresh.
	InterestTTL time.Duration `koanf:"interest_ttl"`

	// CameraSyncInterval is the camera metadata refresh cadence.
	CameraSyncInterval time.Duration `koanf:"camera_sync_interval"`

	// WeatherSyncInterval is the weather station refresh cadence.
	WeatherSyncInterval time.Duration `koanf:"weather_sync_interval"`

	// IconSyncInterval is the icon download cadence.
	IconSyncInterval time.Duration `koanf:"icon_sync_interval"`

	// RetentionInterval is the cadence of the retention sweep that prunes
	// rows older than the retention_days setting.
	RetentionInterval time.Duration `koanf:"retention_interval"`

	// PipelineBuffer is the capacity of each stream's pipeline channel.
	PipelineBuffer int `koanf:"pipeline_buffer"`

	// ShutdownTimeout bounds the wait for pipeline tasks to drain when the
	// interest set changes or the process stops.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// SSEConfig holds per-viewer stream queue configuration.
type SSEConfig struct {
	// QueueSize is the per-viewer bounded queue capacity. When full, the
	// oldest item is dropped (newest wins).
	QueueSize int `koanf:"queue_size"`

	// HeartbeatInterval is the keep-alive comment cadence.
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval"`
}

// PushConfig holds Web Push delivery configuration. The VAPID key pair is
// generated on first use and persisted in settings.
type PushConfig struct {
	// VAPIDSubject is the contact claim in the VAPID JWT, a mailto: or
	// https: URL identifying the operator.
	VAPIDSubject string `koanf:"vapid_subject"`

	// DeliveryTimeout bounds one push POST.
	DeliveryTimeout time.Duration `koanf:"delivery_timeout"`

	// RatePerSecond paces outbound deliveries across all endpoints.
	RatePerSecond float64 `koanf:"rate_per_second"`

	// Burst is the token bucket burst for delivery pacing.
	Burst int `koanf:"burst"`
}

// SecurityConfig holds admin auth and HTTP protection configuration.
type SecurityConfig struct {
	// AdminPassword guards settings writes, camera favorites and reset.
	// The ADMIN_PASSWORD environment variable overrides the stored setting.
	AdminPassword string `koanf:"admin_password"`

	// SettingsSecret, when set, enables AES-256-GCM encryption of secret
	// settings values (API key, MQTT password, VAPID private key) at rest.
	SettingsSecret string `koanf:"settings_secret"`

	// DebugMode forces debug-level logging. DEBUG_MODE env overrides.
	DebugMode bool `koanf:"debug_mode"`

	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	CORSOrigins    []string `koanf:"cors_origins"`
	TrustedProxies []string `koanf:"trusted_proxies"`
}

// APIConfig holds read-endpoint paging limits.
type APIConfig struct {
	DefaultPageSize int `koanf:"default_page_size"`
	MaxPageSize     int `koanf:"max_page_size"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}
