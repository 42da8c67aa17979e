// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

// Package pipeline turns raw upstream batches into committed entity changes.
// Batches enter through Ingest onto a bounded queue and a single processor
// goroutine normalizes, enriches, stores and publishes them in arrival order,
// so per-entity writes are naturally serialized. When the queue is full the
// incoming batch is dropped and counted; the upstream resends full state on
// the next cycle, so a dropped batch costs latency, not data.
package pipeline
