// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

/*
Package api provides the HTTP surface of the server using the Chi router.

Route map:

	GET  /api/events                        incident list with county/time/type filters
	GET  /api/events/{external_id}/history  version rows for one incident
	GET  /api/road-conditions               road condition list
	GET  /api/cameras                       camera list
	POST /api/cameras/{id}/toggle-favorite  flip is_favorite (admin)
	GET  /api/cameras/{id}/image            cached upstream image proxy
	GET  /api/icons/{id}                    cached icon PNGs
	GET  /api/snapshots/*                   county-partitioned snapshot files
	GET  /api/stream                        SSE feed of entity changes
	POST /api/client/interest               register or refresh a client interest
	GET  /api/push/vapid-public-key         VAPID public key for subscription
	POST /api/push/subscribe                create or replace a push subscription
	POST /api/push/unsubscribe              remove a push subscription
	GET  /api/settings                      runtime settings (secrets masked)
	POST /api/settings                      update runtime settings (admin)
	POST /api/report-base-url               record the canonical external URL
	GET  /api/status                        stream, broker and setup state
	GET  /api/stats                         stored-data statistics
	POST /api/reset                         delete all event data (admin)
	GET  /metrics                           Prometheus metrics

Middleware: every route passes through request-ID assignment, RealIP,
Recoverer and CORS. Rate limits are applied per route class: the default
100/min for JSON reads and writes, a permissive class for images and the
event stream, and a strict class for admin mutations.

Admin authentication is a constant-time comparison of the X-Admin-Password
header against the admin_password setting; the ADMIN_PASSWORD environment
variable, when set, takes precedence over the stored value. While neither is
configured the admin endpoints are open, which is what lets the first-boot
setup wizard store the initial configuration.

All JSON responses use the models.APIResponse envelope.
*/
package api
