// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

/*
Package main is the entry point for the Trafikinfo server.

Trafikinfo aggregates Trafikverket's push streams for traffic situations and
road conditions into a local SQLite store, enriches events with nearby
cameras and weather, and fans committed changes out to SSE viewers, an MQTT
broker and Web Push subscribers.

# Application Architecture

The server runs a layered architecture under Suture v4 process supervision:

	RootSupervisor ("trafikinfo")
	├── DataSupervisor ("data-layer")
	│   └── Broadcaster (Watermill router feeding SSE/MQTT/push sinks)
	├── IngestSupervisor ("ingest-layer")
	│   └── WorkerManager (dynamic per-interest-set group: stream
	│       consumers, pipeline, camera/weather/icon sync loops)
	└── APISupervisor ("api-layer")
	    └── HTTP Server (Chi router)

Component initialization order:

 1. Configuration: Koanf v2 with environment variables and config files
 2. Logging: zerolog with JSON/console output modes
 3. Database: SQLite with WAL mode, migrations, optional settings encryption
 4. Setting seeds: environment overrides applied once to unset settings
 5. Spatial index: warmed from the stored camera and station sets
 6. Sinks: SSE hub, MQTT manager, Web Push dispatcher
 7. Worker manager: interest-driven upstream consumption
 8. Supervisor tree and HTTP server

# Configuration

Configuration is loaded via Koanf v2 with layered sources (highest priority
wins):

	Priority: Environment variables > Config file > Defaults

Core environment variables:

	# Server
	HTTP_PORT=8080               # HTTP listen port
	LOG_LEVEL=info               # trace, debug, info, warn, error
	LOG_FORMAT=json              # json or console

	# Storage
	DATABASE_PATH=/data/trafikinfo.db
	SNAPSHOT_DIR=/data/snapshots
	ICON_DIR=/data/icons

	# Runtime setting seeds (applied once, then owned by the settings API)
	TRAFIKVERKET_API_KEY=<api-key>
	SELECTED_COUNTIES=1,14
	MQTT_ENABLED=true MQTT_HOST=broker MQTT_PORT=1883
	ADMIN_PASSWORD=<password>

An instance started without an API key idles in setup mode: the API serves
stored data and the settings endpoint, and ingest starts as soon as a key is
saved.

# Signal Handling

The server shuts down gracefully on SIGINT and SIGTERM:

 1. Stops accepting new HTTP connections and closes SSE streams
 2. Stops the upstream consumers and drains the ingest queue
 3. Flushes the broadcast router and disconnects from MQTT
 4. Closes the database
 5. Reports any services that failed to stop within the timeout

# Usage Examples

Development:

	export LOG_FORMAT=console
	export TRAFIKVERKET_API_KEY=xxx SELECTED_COUNTIES=14
	go run ./cmd/server

Docker:

	docker run -d \
	  -e TRAFIKVERKET_API_KEY=xxx \
	  -e SELECTED_COUNTIES=1,14 \
	  -v trafikinfo-data:/data \
	  -p 8080:8080 \
	  ghcr.io/trafikinfo/trafikinfo

# See Also

  - internal/config: Configuration management
  - internal/supervisor: Process supervision
  - internal/worker: Interest-driven upstream consumption
  - internal/api: HTTP handlers and routing
*/
package main
