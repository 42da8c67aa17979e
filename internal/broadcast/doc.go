// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

// Package broadcast fans committed entity changes out to the three live
// sinks: SSE viewers, the MQTT broker and Web Push subscriptions. Changes
// enter through Publish strictly after the store commit and travel over an
// in-process Watermill pub/sub with one handler per sink, so a slow sink
// never blocks the others.
//
// Creations and significant updates reach every sink; enrichment-only
// refreshes reach only the SSE viewers.
package broadcast
