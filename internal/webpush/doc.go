// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

// Package webpush delivers Web Push messages. It owns the VAPID key pair
// (generated on first use and persisted in settings), encrypts payloads per
// RFC 8291 (aes128gcm) and signs requests per RFC 8292 (ES256 JWT).
//
// Delivery failures are classified: endpoints answering 404 or 410, and
// subscriptions whose stored keys no longer decode, surface as
// ErrSubscriptionGone so the caller can drop the row and continue.
package webpush
