// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package config

import (
	"fmt"
	"strings"
)

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateDatabase(); err != nil {
		return err
	}

	if err := c.validateStorage(); err != nil {
		return err
	}

	if err := c.validateTrafikverket(); err != nil {
		return err
	}

	if err := c.validateWorker(); err != nil {
		return err
	}

	if err := c.validatePush(); err != nil {
		return err
	}

	if err := c.validateSecurity(); err != nil {
		return err
	}

	return c.validateLogging()
}

// validateServer validates HTTP server configuration.
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got: %d", c.Server.Port)
	}

	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got: %v", c.Server.Timeout)
	}

	if c.Server.BaseURL != "" {
		if err := validateBaseURL(c.Server.BaseURL, "BASE_URL"); err != nil {
			return err
		}
	}

	env := strings.ToLower(c.Server.Environment)
	if env != "development" && env != "production" {
		return fmt.Errorf("ENVIRONMENT must be development or production, got: %s", c.Server.Environment)
	}

	return nil
}

// validateDatabase validates SQLite configuration.
func (c *Config) validateDatabase() error {
	if c.Database.Path == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}

	if c.Database.BusyTimeout < 0 {
		return fmt.Errorf("DATABASE_BUSY_TIMEOUT must not be negative, got: %v", c.Database.BusyTimeout)
	}

	return nil
}

// validateStorage validates on-disk storage configuration.
func (c *Config) validateStorage() error {
	if c.Storage.SnapshotDir == "" {
		return fmt.Errorf("SNAPSHOT_DIR is required")
	}

	if c.Storage.IconDir == "" {
		return fmt.Errorf("ICON_DIR is required")
	}

	if c.Storage.ImageCacheTTL < 0 {
		return fmt.Errorf("IMAGE_CACHE_TTL must not be negative, got: %v", c.Storage.ImageCacheTTL)
	}

	return nil
}

// validateTrafikverket validates upstream API configuration.
func (c *Config) validateTrafikverket() error {
	if c.Trafikverket.URL == "" {
		return fmt.Errorf("TRAFIKVERKET_URL is required")
	}

	if err := validateHTTPURL(c.Trafikverket.URL, "TRAFIKVERKET_URL"); err != nil {
		return err
	}

	if c.Trafikverket.StreamReconnectDelay <= 0 {
		return fmt.Errorf("STREAM_RECONNECT_DELAY must be positive, got: %v", c.Trafikverket.StreamReconnectDelay)
	}

	if c.Trafikverket.QueryRetryDelay <= 0 {
		return fmt.Errorf("QUERY_RETRY_DELAY must be positive, got: %v", c.Trafikverket.QueryRetryDelay)
	}

	if c.Trafikverket.RequestTimeout <= 0 {
		return fmt.Errorf("TRAFIKVERKET_REQUEST_TIMEOUT must be positive, got: %v", c.Trafikverket.RequestTimeout)
	}

	return nil
}

// validateWorker validates background loop configuration.
func (c *Config) validateWorker() error {
	if c.Worker.InterestInterval <= 0 {
		return fmt.Errorf("INTEREST_INTERVAL must be positive, got: %v", c.Worker.InterestInterval)
	}

	if c.Worker.InterestTTL <= 0 {
		return fmt.Errorf("INTEREST_TTL must be positive, got: %v", c.Worker.InterestTTL)
	}

	if c.Worker.CameraSyncInterval <= 0 {
		return fmt.Errorf("CAMERA_SYNC_INTERVAL must be positive, got: %v", c.Worker.CameraSyncInterval)
	}

	if c.Worker.WeatherSyncInterval <= 0 {
		return fmt.Errorf("WEATHER_SYNC_INTERVAL must be positive, got: %v", c.Worker.WeatherSyncInterval)
	}

	if c.Worker.IconSyncInterval <= 0 {
		return fmt.Errorf("ICON_SYNC_INTERVAL must be positive, got: %v", c.Worker.IconSyncInterval)
	}

	if c.Worker.PipelineBuffer < 1 {
		return fmt.Errorf("PIPELINE_BUFFER must be at least 1, got: %d", c.Worker.PipelineBuffer)
	}

	if c.Worker.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive, got: %v", c.Worker.ShutdownTimeout)
	}

	if c.SSE.QueueSize < 1 {
		return fmt.Errorf("SSE_QUEUE_SIZE must be at least 1, got: %d", c.SSE.QueueSize)
	}

	return nil
}

// validatePush validates Web Push configuration.
func (c *Config) validatePush() error {
	if c.Push.VAPIDSubject == "" {
		return fmt.Errorf("VAPID_SUBJECT is required")
	}

	if err := validateVAPIDSubject(c.Push.VAPIDSubject); err != nil {
		return err
	}

	if c.Push.DeliveryTimeout <= 0 {
		return fmt.Errorf("PUSH_DELIVERY_TIMEOUT must be positive, got: %v", c.Push.DeliveryTimeout)
	}

	if c.Push.RatePerSecond <= 0 {
		return fmt.Errorf("PUSH_RATE_PER_SECOND must be positive, got: %v", c.Push.RatePerSecond)
	}

	if c.Push.Burst < 1 {
		return fmt.Errorf("PUSH_BURST must be at least 1, got: %d", c.Push.Burst)
	}

	return nil
}

// validateSecurity validates admin auth and rate limit configuration.
func (c *Config) validateSecurity() error {
	if !c.Security.RateLimitDisabled {
		if c.Security.RateLimitReqs < 1 {
			return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1, got: %d", c.Security.RateLimitReqs)
		}
		if c.Security.RateLimitWindow <= 0 {
			return fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got: %v", c.Security.RateLimitWindow)
		}
	}

	// Production should not run with a wildcard CORS origin and no admin password.
	if strings.ToLower(c.Server.Environment) == "production" {
		if c.Security.AdminPassword == "" {
			return fmt.Errorf("ADMIN_PASSWORD is required when ENVIRONMENT=production")
		}
	}

	return nil
}

// validateLogging validates logging configuration.
func (c *Config) validateLogging() error {
	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, fatal, got: %s", c.Logging.Level)
	}

	format := strings.ToLower(c.Logging.Format)
	if format != "json" && format != "console" {
		return fmt.Errorf("LOG_FORMAT must be json or console, got: %s", c.Logging.Format)
	}

	return nil
}
