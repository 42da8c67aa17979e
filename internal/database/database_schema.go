// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

/*
database_schema.go - Database Schema Management

This file manages the SQLite database schema including table creation
and index management.

Tables:
  - incidents: Current state of every traffic incident, one row per upstream
    situation (external_id unique)
  - incident_versions: Append-only pre-change snapshots of incident fields,
    one row per significant change
  - road_conditions: Current road-surface advisories, deduplicated against
    (road_number, condition_code, county_no, start_time)
  - cameras: Road camera metadata refreshed by the 24 h sync loop
  - weather_stations: Weather measure points refreshed by the 15 min sync loop
  - push_subscriptions: Web Push endpoints with per-device filters
  - client_interests: Live viewer county interests driving the worker manager
  - settings: Runtime key/value configuration mutable via the admin API
  - schema_migrations: Versioned migration tracking (see migrations.go)

Schema Strategy:
All columns are defined in the initial CREATE TABLE statements. Post-release
schema changes go through versioned migrations in migrations.go; the initial
schema itself is never edited once databases exist in the field.

Index Strategy:
Indexes cover the hot read paths: county and recency filters on both entity
tables, the version-history lookup by external_id, and the road-condition
dedup key used on every upsert whose upstream id is unknown.
*/

//nolint:staticcheck // File documentation, not package doc
package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables creates the core database tables
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range db.getTableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}

	return nil
}

// getTableCreationQueries returns the table creation SQL statements
func (db *DB) getTableCreationQueries() []string {
	return []string{
		// Incidents table - current state per upstream situation.
		// extra_cameras and weather are JSON documents; they never
		// participate in change detection.
		`CREATE TABLE IF NOT EXISTS incidents (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			external_id TEXT NOT NULL UNIQUE,
			event_type TEXT NOT NULL DEFAULT 'realtid',
			title TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			location TEXT NOT NULL DEFAULT '',
			icon_id TEXT NOT NULL DEFAULT '',
			message_type TEXT NOT NULL DEFAULT '',
			severity_code INTEGER NOT NULL DEFAULT 1,
			severity_text TEXT NOT NULL DEFAULT '',
			road_number TEXT NOT NULL DEFAULT '',
			start_time TIMESTAMP,
			end_time TIMESTAMP,
			latitude REAL,
			longitude REAL,
			county_no INTEGER NOT NULL DEFAULT 0,
			temporary_limit TEXT NOT NULL DEFAULT '',
			traffic_restriction_type TEXT NOT NULL DEFAULT '',
			camera_id TEXT NOT NULL DEFAULT '',
			camera_name TEXT NOT NULL DEFAULT '',
			snapshot_path TEXT,
			extra_cameras TEXT,
			weather TEXT,
			external_camera_url TEXT NOT NULL DEFAULT '',
			published_to_broker BOOLEAN NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,

		// Incident versions table - pre-change snapshots of the fields a
		// user can see change. Enrichment is deliberately excluded so the
		// history stays meaningful (a re-downloaded snapshot is not a new
		// version of the incident).
		`CREATE TABLE IF NOT EXISTS incident_versions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			external_id TEXT NOT NULL,
			version_timestamp TIMESTAMP NOT NULL,
			event_type TEXT NOT NULL DEFAULT 'realtid',
			title TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			location TEXT NOT NULL DEFAULT '',
			icon_id TEXT NOT NULL DEFAULT '',
			message_type TEXT NOT NULL DEFAULT '',
			severity_code INTEGER NOT NULL DEFAULT 1,
			severity_text TEXT NOT NULL DEFAULT '',
			road_number TEXT NOT NULL DEFAULT '',
			start_time TIMESTAMP,
			end_time TIMESTAMP,
			latitude REAL,
			longitude REAL,
			county_no INTEGER NOT NULL DEFAULT 0,
			temporary_limit TEXT NOT NULL DEFAULT '',
			traffic_restriction_type TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,

		// Road conditions table - condition_id is the rotating upstream
		// identifier; the real identity is the dedup key indexed below.
		`CREATE TABLE IF NOT EXISTS road_conditions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			condition_id TEXT NOT NULL UNIQUE,
			road_number TEXT NOT NULL DEFAULT '',
			county_no INTEGER NOT NULL DEFAULT 0,
			condition_code INTEGER NOT NULL DEFAULT 1,
			condition_text TEXT NOT NULL DEFAULT '',
			measure TEXT NOT NULL DEFAULT '',
			warning TEXT NOT NULL DEFAULT '',
			cause TEXT NOT NULL DEFAULT '',
			location_text TEXT NOT NULL DEFAULT '',
			start_time TIMESTAMP,
			end_time TIMESTAMP,
			upstream_timestamp TIMESTAMP,
			latitude REAL,
			longitude REAL,
			camera_id TEXT NOT NULL DEFAULT '',
			camera_name TEXT NOT NULL DEFAULT '',
			snapshot_path TEXT,
			extra_cameras TEXT,
			weather TEXT,
			external_camera_url TEXT NOT NULL DEFAULT '',
			published_to_broker BOOLEAN NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,

		// Cameras table - is_favorite is owned by the UI and preserved
		// across sync refreshes.
		`CREATE TABLE IF NOT EXISTS cameras (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL DEFAULT '',
			photo_url TEXT NOT NULL DEFAULT '',
			fullsize_url TEXT NOT NULL DEFAULT '',
			photo_time TIMESTAMP,
			latitude REAL NOT NULL DEFAULT 0,
			longitude REAL NOT NULL DEFAULT 0,
			county_no INTEGER NOT NULL DEFAULT 0,
			is_favorite BOOLEAN NOT NULL DEFAULT 0
		)`,

		// Weather stations table
		`CREATE TABLE IF NOT EXISTS weather_stations (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			latitude REAL NOT NULL DEFAULT 0,
			longitude REAL NOT NULL DEFAULT 0,
			county_no INTEGER NOT NULL DEFAULT 0,
			air_temperature REAL,
			wind_speed REAL,
			wind_direction TEXT NOT NULL DEFAULT '',
			last_updated TIMESTAMP
		)`,

		// Push subscriptions table - counties is a CSV of county numbers,
		// empty meaning "all counties".
		`CREATE TABLE IF NOT EXISTS push_subscriptions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			endpoint TEXT NOT NULL UNIQUE,
			p256dh TEXT NOT NULL,
			auth TEXT NOT NULL,
			counties TEXT NOT NULL DEFAULT '',
			min_severity INTEGER NOT NULL DEFAULT 1,
			topic_realtid BOOLEAN NOT NULL DEFAULT 1,
			topic_road_condition BOOLEAN NOT NULL DEFAULT 0,
			sound_enabled BOOLEAN NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		)`,

		// Client interests table - rows expire by last_active TTL.
		`CREATE TABLE IF NOT EXISTS client_interests (
			client_id TEXT PRIMARY KEY,
			counties TEXT NOT NULL DEFAULT '',
			last_active TIMESTAMP NOT NULL
		)`,

		// Settings table - runtime configuration, see settings.go.
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}
}

// createIndexes creates indexes for the hot query paths
func (db *DB) createIndexes() error {
	ctx, cancel := schemaContext()
	defer cancel()

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_incidents_county ON incidents(county_no)`,
		`CREATE INDEX IF NOT EXISTS idx_incidents_updated ON incidents(updated_at)`,
		`CREATE INDEX IF NOT EXISTS idx_incidents_event_type ON incidents(event_type)`,
		`CREATE INDEX IF NOT EXISTS idx_incident_versions_external ON incident_versions(external_id, version_timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_road_conditions_dedup ON road_conditions(road_number, condition_code, county_no, start_time)`,
		`CREATE INDEX IF NOT EXISTS idx_road_conditions_county ON road_conditions(county_no)`,
		`CREATE INDEX IF NOT EXISTS idx_road_conditions_updated ON road_conditions(updated_at)`,
		`CREATE INDEX IF NOT EXISTS idx_cameras_county ON cameras(county_no)`,
		`CREATE INDEX IF NOT EXISTS idx_weather_stations_county ON weather_stations(county_no)`,
		`CREATE INDEX IF NOT EXISTS idx_client_interests_active ON client_interests(last_active)`,
	}

	for _, index := range indexes {
		if _, err := db.conn.ExecContext(ctx, index); err != nil {
			return fmt.Errorf("failed to create index: %s: %w", index, err)
		}
	}

	return nil
}
