// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

/*
Package supervisor provides process supervision using suture v4.

This package implements a hierarchical supervisor tree that manages the
lifecycle of all long-running services in the application. It provides
Erlang/OTP-style supervision with automatic restart, failure isolation, and
graceful shutdown.

# Overview

The supervisor tree organizes services into three layers for failure
isolation:

	RootSupervisor ("trafikinfo")
	├── DataSupervisor ("data-layer")
	│   └── Broadcaster (Watermill router feeding SSE/MQTT/push sinks)
	├── IngestSupervisor ("ingest-layer")
	│   └── WorkerManager (owns a dynamic child supervisor per interest set:
	│       stream consumers, pipeline, sync loops)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

This hierarchy ensures that:
  - A crash on the ingest side never interrupts connected SSE viewers
  - Broadcast sink failures don't impact API availability
  - Each layer can restart independently

The WorkerManager deliberately does NOT register its per-interest-set group
here: the group's lifetime is bound to the current county set, not to the
process, so the manager composes its own suture.Supervisor and restarts it
whenever the set changes.

# Usage Example

Basic setup in main.go:

	logger := slog.Default()
	tree, err := supervisor.NewTree(logger, supervisor.DefaultTreeConfig())
	if err != nil {
	    log.Fatal(err)
	}

	tree.AddDataService(broadcaster)
	tree.AddIngestService(workerManager)
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	if err := tree.Serve(ctx); err != nil {
	    log.Printf("Supervisor stopped: %v", err)
	}

# Configuration

The TreeConfig controls restart behavior:

	config := supervisor.TreeConfig{
	    FailureThreshold: 5.0,              // Failures before backoff
	    FailureDecay:     30.0,             // Seconds for failures to decay
	    FailureBackoff:   15 * time.Second, // Backoff duration
	    ShutdownTimeout:  10 * time.Second, // Per-service shutdown timeout
	}

Default values match suture's production-ready defaults.

# Service Interface

All services must implement suture.Service:

	type Service interface {
	    Serve(ctx context.Context) error
	}

Return behavior:
  - Return nil: Service stopped cleanly, will not be restarted
  - Return error: Service crashed, will be restarted
  - Context canceled: Shutdown requested, return promptly

# What Is NOT Supervised

SQLite is intentionally not supervised:
  - It's an embedded library, not a long-running service
  - Connections are managed by the database package

The upstream Trafikverket streams reconnect inside the client's own consume
loop; the supervisor only sees the wrapping stream service.

# Debugging Shutdown Issues

If services don't stop within the timeout:

	report, err := tree.UnstoppedServiceReport()
	for _, svc := range report {
	    log.Printf("Service didn't stop: %v", svc)
	}

Common causes:
  - Goroutines not respecting context cancellation
  - Blocked network I/O without deadlines
*/
package supervisor
