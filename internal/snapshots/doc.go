// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

/*
Package snapshots downloads camera images and stores them in the
county-partitioned snapshot tree on disk.

# Layout

Files are written to {root}/{county_no}/{entity_id}_{unix_ts}.jpg and the
store returns the relative path {county_no}/{filename}. The per-county
directory is created on demand. The HTTP layer serves the tree under
/api/snapshots/.

# Download strategy

The upstream offers a small thumbnail at the camera's photo URL and,
usually, a full-resolution variant. The store tries the fullsize URL first
(the explicit one when the camera metadata carries it, otherwise guessed by
the _fullsize.jpg naming convention on api.trafikinfo.trafikverket.se
hosts). A fullsize response counts as valid only when it is 200 OK and at
least 5000 bytes; the upstream serves tiny placeholder JPEGs for cameras
whose fullsize variant is temporarily missing. On an invalid fullsize
response the store falls back to the base URL.

Whatever URL wins, a final body under 1500 bytes is rejected as corrupt and
bodies between 1500 and 4999 bytes are stored with a warning.

A failed download is an enrichment miss, not an error: the entity keeps a
null snapshot path and the enricher retries on the next significant update.
*/
package snapshots
