// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

/*
Package metrics provides Prometheus metrics collection and export for observability.

This package implements application instrumentation using the Prometheus client
library, exposing metrics for monitoring performance, errors, and system health.

# Overview

The package provides metrics for:
  - Trafikverket push stream health and query performance
  - Event pipeline throughput and change classification
  - Database query performance (SQLite)
  - API endpoint latency and throughput
  - SSE, MQTT and Web Push delivery
  - Camera snapshot downloads and image cache efficiency
  - Background worker sync runs and retention sweeps

# Metrics Endpoint

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:8000/metrics

# Available Metrics

Upstream Metrics:
  - trafikverket_stream_connected: push stream connection state (gauge)
    Labels: object_type (Situation, RoadCondition)
  - trafikverket_stream_events_total: events received on the stream (counter)
  - trafikverket_stream_reconnects_total: reconnects with reason (counter)
  - trafikverket_request_duration_seconds: one-shot query latency (histogram)
    Labels: object_type (Camera, WeatherMeasurepoint, Icon)

Pipeline Metrics:
  - pipeline_changes_total: classified entity changes (counter)
    Labels: entity (incident, road_condition), kind (created, updated, refreshed, unchanged)
  - pipeline_queue_depth: raw events waiting in the ingest queue (gauge)
  - pipeline_processing_duration_seconds: normalize+enrich+store latency (histogram)

Delivery Metrics:
  - sse_clients: connected SSE clients (gauge)
  - sse_events_dropped_total: events dropped on full client queues (counter)
  - mqtt_connected: broker connection state (gauge)
  - mqtt_messages_published_total: broker publishes (counter)
    Labels: topic_kind (traffic, road_condition)
  - push_notifications_sent_total / push_delivery_failures_total: Web Push outcomes
  - push_subscriptions_evicted_total: subscriptions removed after 404/410

Database Metrics:
  - sqlite_query_duration_seconds: query execution time (histogram)
    Labels: operation, table
  - sqlite_query_errors_total: failed queries (counter)

Worker Metrics:
  - worker_sync_duration_seconds: background sync run time (histogram)
    Labels: worker (camera, weather, icon, retention)
  - worker_last_success_timestamp: last successful run per worker (gauge)
  - active_counties: counties with active client interest (gauge)

# Usage Example

Recording metrics from application code:

	import "github.com/trafikinfo/trafikinfo/internal/metrics"

	start := time.Now()
	rows, err := db.Query(...)
	metrics.RecordDBQuery("select", "incidents", time.Since(start), err)

	metrics.RecordChange("incident", change.Kind.String())

# Design Notes

All collectors are registered with promauto at package init, so importing the
package is enough to expose them. Helper functions (Record*, Update*, Set*)
keep label cardinality under control: error strings are truncated to 50
characters before being used as label values.
*/
package metrics
