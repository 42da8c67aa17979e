// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

// Package worker drives the background side of the service. The Manager
// recomputes the wanted county set on a fixed cadence from live viewer
// interests and push subscriptions; when the set changes it tears down the
// whole ingest group (stream consumers, pipeline, sync loops) with a bounded
// wait and starts a fresh one under its own child supervisor. An empty set,
// or a missing API key, leaves the system idle.
//
// The retention sweep runs independently of the ingest group, so old rows
// are still pruned while nobody is watching.
package worker
