// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

/*
Package database provides SQLite-backed persistence for traffic events,
road conditions, cameras, weather stations, push subscriptions, client
interests and runtime settings.

# Overview

The package wraps a single *sql.DB (mattn/go-sqlite3) opened in WAL mode
with a busy timeout, runs versioned migrations at startup, and exposes typed
CRUD methods. All methods accept a context and apply a default timeout when
the caller's context carries no deadline.

# Change Detection

The upserts are the heart of the store. UpsertIncident and
UpsertRoadCondition classify every write against the stored row:

	Created    new row inserted
	Updated    a significant field changed (incidents: version row appended)
	Refreshed  only coordinates/enrichment/rotated ids changed
	Unchanged  stored state already matches

The returned ChangeKind drives the broadcaster's fan-out policy: Created and
Updated reach every sink, Refreshed only updates maps, Unchanged is dropped.
Incidents additionally archive the pre-update row into incident_versions on
every significant change, which backs the event history endpoint.

Road conditions deduplicate across upstream id rotation with a two-stage
lookup (condition_id first, then road/code/county/start_time), so a rotated
id refreshes the stored row instead of creating a duplicate.

# Settings

Runtime settings live in a key/value table read through on every use.
Secret values are encrypted at rest with AES-256-GCM when a settings secret
is configured; see settings.go.

# Concurrency

SQLite serializes writers. The connection pool is capped accordingly and
write transactions are short. Statement caching keeps the hot read paths
(settings, incident lookup) prepared.
*/
package database
