// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

// Package enrich attaches camera snapshots and weather observations to
// normalized entities before they reach the store. Camera enrichment is
// skipped when the prior row already carries complete camera data for the
// same coordinates; weather enrichment runs on every pass and never fails
// the entity.
package enrich
