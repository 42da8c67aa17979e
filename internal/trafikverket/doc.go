// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

// Package trafikverket talks to the Trafikverket open data API. It resolves
// SSE stream URLs through the XML query endpoint, consumes the push streams
// as raw JSON batches, and performs one-shot fetches for cameras, weather
// measure points and icons behind a circuit breaker.
//
// The package never interprets batch payloads beyond the query envelope;
// decoding upstream objects is the normalize package's job.
package trafikverket
