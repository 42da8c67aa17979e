// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

// Package imagecache is a short-TTL in-memory cache for proxied camera
// images. Many viewers watching the same camera would otherwise turn every
// poll into an upstream fetch; entries expire after roughly one camera
// refresh interval instead.
package imagecache
