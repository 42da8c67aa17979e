// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

/*
Package services provides suture.Service wrappers for application components.

This package adapts components whose native lifecycle is not context-driven
to the suture v4 supervision model. Each wrapper implements:

	type Service interface {
	    Serve(ctx context.Context) error
	}

# Available Services

HTTP Server (HTTPServerService):
  - Wraps *http.Server with graceful shutdown
  - Converts the blocking ListenAndServe pattern to Serve
  - Configurable shutdown timeout for draining connections

Components that already expose Serve(ctx) error (the broadcaster, the worker
manager, the ingest pipeline) are added to the tree directly and need no
wrapper here.

# Design Principles

1. Wrappers are thin: no business logic, only lifecycle translation.
2. Graceful shutdown: context cancellation triggers orderly teardown.
3. Error semantics follow suture: return an error to be restarted, return
   nil to stop for good.

# Thread Safety

Service wrappers are safe for concurrent use, but multiple concurrent Serve
calls on one wrapper are not supported.
*/
package services
