// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus Metrics Integration for Production Observability
// This package provides comprehensive instrumentation for:
// - Trafikverket stream and query performance
// - Event pipeline throughput and change classification
// - Database query performance (SQLite)
// - API endpoint latency and throughput
// - SSE, MQTT and Web Push delivery
// - Camera snapshot downloads and image cache efficiency

var (
	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlite_query_duration_seconds",
			Help:    "Duration of SQLite queries in seconds",
			Buckets: prometheus.DefBuckets, // 0.005s, 0.01s, 0.025s, 0.05s, 0.1s, 0.25s, 0.5s, 1s, 2.5s, 5s, 10s
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlite_query_errors_total",
			Help: "Total number of SQLite query errors",
		},
		[]string{"operation", "table", "error_type"},
	)

	// Upstream Stream Metrics
	StreamConnected = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trafikverket_stream_connected",
			Help: "Whether the Trafikverket push stream is connected (1) or not (0)",
		},
		[]string{"object_type"}, // "Situation", "RoadCondition"
	)

	StreamEventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trafikverket_stream_events_total",
			Help: "Total number of events received on the push stream",
		},
		[]string{"object_type"},
	)

	StreamReconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trafikverket_stream_reconnects_total",
			Help: "Total number of push stream reconnects",
		},
		[]string{"object_type", "reason"}, // reason: "eof", "error", "query_failed"
	)

	StreamParseFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trafikverket_stream_parse_failures_total",
			Help: "Total number of stream payloads that failed to parse",
		},
		[]string{"object_type"},
	)

	StreamLastEvent = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trafikverket_stream_last_event_timestamp",
			Help: "Unix timestamp of the last event received on the push stream",
		},
		[]string{"object_type"},
	)

	// Upstream Query Metrics (one-shot fetches: cameras, weather, icons, SSE URL)
	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trafikverket_request_duration_seconds",
			Help:    "Duration of one-shot Trafikverket API queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"object_type"},
	)

	UpstreamRequestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trafikverket_request_errors_total",
			Help: "Total number of failed Trafikverket API queries",
		},
		[]string{"object_type", "error_type"},
	)

	// Pipeline Metrics
	PipelineChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_changes_total",
			Help: "Total number of entity changes classified by the event store",
		},
		[]string{"entity", "kind"}, // entity: "incident", "road_condition"; kind: "created", "updated", "refreshed", "unchanged"
	)

	PipelineQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_queue_depth",
			Help: "Current number of raw events waiting in the ingest queue",
		},
	)

	PipelineProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_processing_duration_seconds",
			Help:    "Duration of normalize+enrich+store per raw event in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"entity"},
	)

	PipelineDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_dropped_total",
			Help: "Total number of raw events dropped because the ingest queue was full",
		},
		[]string{"entity"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}, // Optimized for API latency
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// SSE Broadcast Metrics
	SSEClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_clients",
			Help: "Current number of connected SSE clients",
		},
	)

	SSEEventsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sse_events_sent_total",
			Help: "Total number of events written to SSE clients",
		},
	)

	SSEEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sse_events_dropped_total",
			Help: "Total number of events dropped because a client queue was full",
		},
	)

	// MQTT Metrics
	MQTTConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mqtt_connected",
			Help: "Whether the MQTT broker connection is up (1) or not (0)",
		},
	)

	MQTTMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mqtt_messages_published_total",
			Help: "Total number of messages published to the MQTT broker",
		},
		[]string{"topic_kind"}, // "traffic", "road_condition"
	)

	MQTTPublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mqtt_publish_errors_total",
			Help: "Total number of failed MQTT publishes",
		},
		[]string{"topic_kind"},
	)

	// Web Push Metrics
	PushSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "push_subscriptions",
			Help: "Current number of stored Web Push subscriptions",
		},
	)

	PushNotificationsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "push_notifications_sent_total",
			Help: "Total number of Web Push notifications delivered",
		},
	)

	PushDeliveryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_delivery_failures_total",
			Help: "Total number of failed Web Push deliveries",
		},
		[]string{"reason"}, // "gone", "encrypt", "http", "timeout"
	)

	PushSubscriptionsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "push_subscriptions_evicted_total",
			Help: "Total number of subscriptions deleted after the push service reported them gone",
		},
	)

	PushDeliveryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "push_delivery_duration_seconds",
			Help:    "Duration of Web Push endpoint deliveries in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Snapshot Metrics
	SnapshotDownloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshot_downloads_total",
			Help: "Total number of camera snapshot download attempts",
		},
		[]string{"result"}, // "ok", "suspect", "too_small", "error"
	)

	SnapshotDownloadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "snapshot_download_duration_seconds",
			Help:    "Duration of camera snapshot downloads in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	SnapshotBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "snapshot_bytes",
			Help:    "Size of downloaded camera snapshots in bytes",
			Buckets: []float64{1500, 5000, 10000, 25000, 50000, 100000, 250000, 500000, 1000000},
		},
	)

	// Image Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"}, // "image", "icon"
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Total number of cache evictions (TTL expiry)",
		},
		[]string{"cache_type"},
	)

	// Worker Metrics
	WorkerSyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "worker_sync_duration_seconds",
			Help:    "Duration of background sync operations in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"worker"}, // "camera", "weather", "icon", "retention"
	)

	WorkerSyncErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_sync_errors_total",
			Help: "Total number of background sync errors",
		},
		[]string{"worker", "error_type"},
	)

	WorkerLastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_last_success_timestamp",
			Help: "Unix timestamp of the last successful sync per worker",
		},
		[]string{"worker"},
	)

	ActiveCounties = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_counties",
			Help: "Current number of counties with active client interest",
		},
	)

	RetentionRowsDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retention_rows_deleted_total",
			Help: "Total number of rows removed by the retention sweep",
		},
		[]string{"table"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		errorType := err.Error()
		// Truncate long error messages
		if len(errorType) > 50 {
			errorType = errorType[:50]
		}
		DBQueryErrors.WithLabelValues(operation, table, errorType).Inc()
	}
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// SetStreamConnected flips the per-object-type stream connection gauge.
func SetStreamConnected(objectType string, connected bool) {
	v := 0.0
	if connected {
		v = 1.0
	}
	StreamConnected.WithLabelValues(objectType).Set(v)
}

// RecordStreamEvent records one event received on the push stream.
func RecordStreamEvent(objectType string) {
	StreamEventsReceived.WithLabelValues(objectType).Inc()
	StreamLastEvent.WithLabelValues(objectType).Set(float64(time.Now().Unix()))
}

// RecordStreamReconnect records a stream reconnect and its reason.
func RecordStreamReconnect(objectType, reason string) {
	StreamReconnects.WithLabelValues(objectType, reason).Inc()
}

// RecordStreamParseFailure records a stream payload that failed to parse.
func RecordStreamParseFailure(objectType string) {
	StreamParseFailures.WithLabelValues(objectType).Inc()
}

// RecordUpstreamRequest records a one-shot Trafikverket query.
func RecordUpstreamRequest(objectType string, duration time.Duration, err error) {
	UpstreamRequestDuration.WithLabelValues(objectType).Observe(duration.Seconds())
	if err != nil {
		errorType := err.Error()
		if len(errorType) > 50 {
			errorType = errorType[:50]
		}
		UpstreamRequestErrors.WithLabelValues(objectType, errorType).Inc()
	}
}

// RecordChange records one classified entity change flowing out of the store.
func RecordChange(entity, kind string) {
	PipelineChanges.WithLabelValues(entity, kind).Inc()
}

// RecordPipelineProcessing records the handling time of one raw event.
func RecordPipelineProcessing(entity string, duration time.Duration) {
	PipelineProcessingDuration.WithLabelValues(entity).Observe(duration.Seconds())
}

// RecordPipelineDrop records a raw event dropped on ingest overflow.
func RecordPipelineDrop(entity string) {
	PipelineDropped.WithLabelValues(entity).Inc()
}

// UpdatePipelineQueueDepth updates the ingest queue depth gauge.
func UpdatePipelineQueueDepth(depth int) {
	PipelineQueueDepth.Set(float64(depth))
}

// UpdateSSEClients updates the connected SSE client gauge.
func UpdateSSEClients(count int) {
	SSEClients.Set(float64(count))
}

// RecordSSESend records an event written to one SSE client.
func RecordSSESend() {
	SSEEventsSent.Inc()
}

// RecordSSEDrop records an event dropped because a client queue was full.
func RecordSSEDrop() {
	SSEEventsDropped.Inc()
}

// SetMQTTConnected flips the broker connection gauge.
func SetMQTTConnected(connected bool) {
	if connected {
		MQTTConnected.Set(1)
	} else {
		MQTTConnected.Set(0)
	}
}

// RecordMQTTPublish records one broker publish and its outcome.
func RecordMQTTPublish(topicKind string, err error) {
	if err != nil {
		MQTTPublishErrors.WithLabelValues(topicKind).Inc()
		return
	}
	MQTTMessagesPublished.WithLabelValues(topicKind).Inc()
}

// RecordPushDelivery records one Web Push delivery attempt.
func RecordPushDelivery(duration time.Duration, reason string) {
	PushDeliveryDuration.Observe(duration.Seconds())
	if reason == "" {
		PushNotificationsSent.Inc()
		return
	}
	PushDeliveryFailures.WithLabelValues(reason).Inc()
}

// RecordPushEviction records a subscription deleted after a 404/410 response.
func RecordPushEviction() {
	PushSubscriptionsEvicted.Inc()
}

// UpdatePushSubscriptions updates the stored subscription gauge.
func UpdatePushSubscriptions(count int) {
	PushSubscriptions.Set(float64(count))
}

// RecordSnapshotDownload records a snapshot download attempt.
func RecordSnapshotDownload(result string, duration time.Duration, bytes int) {
	SnapshotDownloads.WithLabelValues(result).Inc()
	SnapshotDownloadDuration.Observe(duration.Seconds())
	if bytes > 0 {
		SnapshotBytes.Observe(float64(bytes))
	}
}

// RecordCacheHit records a cache hit for the given cache type.
func RecordCacheHit(cacheType string) {
	CacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss for the given cache type.
func RecordCacheMiss(cacheType string) {
	CacheMisses.WithLabelValues(cacheType).Inc()
}

// RecordCacheEviction records a TTL eviction for the given cache type.
func RecordCacheEviction(cacheType string) {
	CacheEvictions.WithLabelValues(cacheType).Inc()
}

// RecordWorkerSync records one background sync run.
func RecordWorkerSync(worker string, duration time.Duration, err error) {
	WorkerSyncDuration.WithLabelValues(worker).Observe(duration.Seconds())
	if err != nil {
		errorType := err.Error()
		if len(errorType) > 50 {
			errorType = errorType[:50]
		}
		WorkerSyncErrors.WithLabelValues(worker, errorType).Inc()
		return
	}
	WorkerLastSuccess.WithLabelValues(worker).Set(float64(time.Now().Unix()))
}

// UpdateActiveCounties updates the active county gauge.
func UpdateActiveCounties(count int) {
	ActiveCounties.Set(float64(count))
}

// RecordRetentionDelete records rows removed by the retention sweep.
func RecordRetentionDelete(table string, rows int64) {
	if rows > 0 {
		RetentionRowsDeleted.WithLabelValues(table).Add(float64(rows))
	}
}
