// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/trafikinfo/trafikinfo/internal/api"
	"github.com/trafikinfo/trafikinfo/internal/broadcast"
	"github.com/trafikinfo/trafikinfo/internal/config"
	"github.com/trafikinfo/trafikinfo/internal/database"
	"github.com/trafikinfo/trafikinfo/internal/enrich"
	"github.com/trafikinfo/trafikinfo/internal/imagecache"
	"github.com/trafikinfo/trafikinfo/internal/logging"
	"github.com/trafikinfo/trafikinfo/internal/models"
	"github.com/trafikinfo/trafikinfo/internal/mqtt"
	"github.com/trafikinfo/trafikinfo/internal/pipeline"
	"github.com/trafikinfo/trafikinfo/internal/snapshots"
	"github.com/trafikinfo/trafikinfo/internal/spatial"
	"github.com/trafikinfo/trafikinfo/internal/supervisor"
	"github.com/trafikinfo/trafikinfo/internal/supervisor/services"
	"github.com/trafikinfo/trafikinfo/internal/trafikverket"
	"github.com/trafikinfo/trafikinfo/internal/webpush"
	"github.com/trafikinfo/trafikinfo/internal/worker"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Str("version", version).Msg("Starting Trafikinfo")

	var enc *config.SettingsEncryptor
	if cfg.Security.SettingsSecret != "" {
		enc, err = config.NewSettingsEncryptor(cfg.Security.SettingsSecret)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize settings encryption")
		}
		logging.Info().Msg("Settings encryption enabled")
	} else {
		logging.Warn().Msg("SETTINGS_SECRET not set, secret settings are stored in plaintext")
	}

	db, err := database.New(&cfg.Database, enc)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Str("path", cfg.Database.Path).Msg("Database initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Environment seeds only fill settings that were never written through
	// the API, so a container restart cannot clobber operator edits.
	if seeds := config.SeedSettingsFromEnv(); len(seeds) > 0 {
		applied, err := db.SeedSettings(ctx, seeds)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to seed settings from environment")
		}
		if applied > 0 {
			logging.Info().Int("applied", applied).Msg("Seeded settings from environment")
		}
	}

	snaps, err := snapshots.NewStore(cfg.Storage.SnapshotDir, cfg.Trafikverket.RequestTimeout)
	if err != nil {
		logging.Fatal().Err(err).Str("dir", cfg.Storage.SnapshotDir).Msg("Failed to open snapshot store")
	}

	images, err := imagecache.New(cfg.Storage.ImageCacheTTL)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize image cache")
	}
	defer func() {
		if err := images.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing image cache")
		}
	}()

	// Warm the spatial index from the stored camera and station sets so
	// enrichment works before the first sync completes.
	index := spatial.NewIndex()
	if cams, err := db.GetCameras(ctx, database.CameraFilter{}); err != nil {
		logging.Warn().Err(err).Msg("Failed to warm camera index")
	} else {
		index.SetCameras(cams)
	}
	if stations, err := db.GetWeatherStations(ctx, nil); err != nil {
		logging.Warn().Err(err).Msg("Failed to warm weather station index")
	} else {
		index.SetStations(stations)
	}
	logging.Info().
		Int("cameras", index.CameraCount()).
		Int("stations", index.StationCount()).
		Msg("Spatial index warmed")

	hub := broadcast.NewHub(&cfg.SSE)
	push := webpush.New(&cfg.Push, db)

	broker := mqtt.NewManager(db)
	defer broker.Close()
	if err := broker.Configure(ctx); err != nil {
		logging.Warn().Err(err).Msg("MQTT broker not connected at startup (will retry on publish)")
	}

	broadcaster, err := broadcast.New(hub, db, broker, push)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize broadcast router")
	}
	defer func() {
		if err := broadcaster.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing broadcast router")
		}
	}()

	enricher := enrich.New(db, index, snaps)

	source := trafikverket.New(&cfg.Trafikverket, func(ctx context.Context) (string, error) {
		return db.GetSetting(ctx, models.SettingAPIKey)
	})

	manager := worker.New(&cfg.Worker, cfg.Storage.IconDir, db, source, index, snaps, func() worker.Pipeline {
		// A fresh pipeline per interest set: no batches from a previous
		// county selection survive a group restart.
		return pipeline.New(&cfg.Worker, db, enricher, broadcaster)
	})

	router := api.New(cfg, db, hub, source, broker, push, manager, snaps, images, version)

	server := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     router.Setup(),
		ReadTimeout: cfg.Server.Timeout,
		// WriteTimeout stays unset: the SSE stream holds its response open
		// for the lifetime of the client.
		IdleTimeout: 60 * time.Second,
	}

	tree, err := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tree.AddDataService(broadcaster)
	tree.AddIngestService(manager)
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("Services added to supervisor tree")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Application stopped gracefully")
}
