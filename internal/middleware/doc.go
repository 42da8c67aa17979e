// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

/*
Package middleware provides HTTP middleware shared by the API router.

The components here are plain http.HandlerFunc wrappers, bridged into chi
with a small adapter in the api package:

  - RequestID: X-Request-ID assignment and logging correlation
  - PrometheusMetrics: request count, duration and in-flight instrumentation
  - Compression: gzip for JSON list endpoints, skipped for event streams

Chi-ecosystem middleware (CORS, rate limiting, RealIP, Recoverer) is
configured directly in the api package; this package only holds middleware
that carries application logic of its own.
*/
package middleware
