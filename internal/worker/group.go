// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/trafikinfo/trafikinfo/internal/logging"
	"github.com/trafikinfo/trafikinfo/internal/metrics"
	"github.com/trafikinfo/trafikinfo/internal/normalize"
	"github.com/trafikinfo/trafikinfo/internal/trafikverket"
)

// group is one running ingest generation: a fresh pipeline, both stream
// consumers and the sync loops, all under a dedicated child supervisor.
type group struct {
	manager  *Manager
	counties []int

	sup    *suture.Supervisor
	cancel context.CancelFunc
	done   <-chan error
}

func newGroup(m *Manager, counties []int) *group {
	g := &group{
		manager:  m,
		counties: counties,
		sup:      suture.New("ingest-group", groupSpec(m.cfg.ShutdownTimeout)),
	}

	p := m.pipeline()
	g.sup.Add(p)
	g.sup.Add(&streamService{source: m.source, pipeline: p, objectType: trafikverket.ObjectSituation, counties: counties})
	g.sup.Add(&streamService{source: m.source, pipeline: p, objectType: trafikverket.ObjectRoadCondition, counties: counties})

	g.sup.Add(&syncLoop{name: "cameras", interval: defaultInterval(m.cfg.CameraSyncInterval, 24*time.Hour), run: g.syncCameras})
	g.sup.Add(&syncLoop{name: "weather", interval: defaultInterval(m.cfg.WeatherSyncInterval, 15*time.Minute), run: g.syncWeather})
	g.sup.Add(&syncLoop{name: "icons", interval: defaultInterval(m.cfg.IconSyncInterval, 24*time.Hour), run: g.syncIcons})

	return g
}

func (g *group) start() {
	ctx, cancel := context.WithCancel(context.Background())
	g.cancel = cancel
	g.done = g.sup.ServeBackground(ctx)
}

// stop cancels the group and waits, bounded, for the supervisor to finish.
func (g *group) stop(timeout time.Duration) {
	g.cancel()
	select {
	case <-g.done:
	case <-time.After(timeout):
		logging.Warn().
			Str("component", "worker").
			Dur("timeout", timeout).
			Msg("Ingest group did not stop within the shutdown timeout")
	}
}

// syncCameras refreshes camera metadata and rebuilds the spatial index.
// Favorites are preserved by the store sync.
func (g *group) syncCameras(ctx context.Context) error {
	data, err := g.manager.source.FetchCameras(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch cameras: %w", err)
	}
	cams, err := normalize.Cameras(data)
	if err != nil {
		return fmt.Errorf("failed to parse cameras: %w", err)
	}

	stored, err := g.manager.store.SyncCameras(ctx, g.counties, cams)
	if err != nil {
		return err
	}
	g.manager.index.SetCameras(cams)

	logging.Info().
		Str("component", "worker").
		Int("fetched", len(cams)).
		Int("stored", stored).
		Msg("Camera sync complete")
	return nil
}

// syncWeather refreshes weather stations for the active counties.
func (g *group) syncWeather(ctx context.Context) error {
	data, err := g.manager.source.FetchWeatherStations(ctx, g.counties)
	if err != nil {
		return fmt.Errorf("failed to fetch weather stations: %w", err)
	}
	stations, err := normalize.WeatherStations(data)
	if err != nil {
		return fmt.Errorf("failed to parse weather stations: %w", err)
	}

	if _, err := g.manager.store.UpsertWeatherStations(ctx, stations); err != nil {
		return err
	}
	g.manager.index.SetStations(stations)
	return nil
}

// syncIcons downloads icons the icon directory does not have yet.
func (g *group) syncIcons(ctx context.Context) error {
	dir := g.manager.iconDir
	if dir == "" {
		return nil
	}
	data, err := g.manager.source.FetchIcons(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch icons: %w", err)
	}
	icons, err := normalize.Icons(data)
	if err != nil {
		return fmt.Errorf("failed to parse icons: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create icon directory: %w", err)
	}

	written := 0
	for _, icon := range icons {
		path := filepath.Join(dir, icon.ID+".png")
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, icon.PNG, 0o644); err != nil {
			logging.Warn().Err(err).Str("icon_id", icon.ID).Msg("Failed to write icon")
			continue
		}
		written++
	}
	if written > 0 {
		logging.Info().Str("component", "worker").Int("written", written).Msg("Downloaded new icons")
	}
	return nil
}

// streamService opens one upstream push stream and feeds the pipeline.
type streamService struct {
	source     Source
	pipeline   Pipeline
	objectType string
	counties   []int
}

func (s *streamService) Serve(ctx context.Context) error {
	batches, err := s.source.Start(ctx, s.objectType, s.counties)
	if err != nil {
		if errors.Is(err, trafikverket.ErrMissingAPIKey) {
			// The next interest evaluation will idle the group.
			return suture.ErrDoNotRestart
		}
		return err
	}
	s.pipeline.Consume(ctx, batches)
	return ctx.Err()
}

func (s *streamService) String() string {
	return "stream-" + s.objectType
}

// syncLoop runs one sync function immediately and then on its cadence.
// Failures are recorded and retried next tick; they never kill the loop.
type syncLoop struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context) error
}

func (l *syncLoop) Serve(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

func (l *syncLoop) tick(ctx context.Context) {
	start := time.Now()
	err := l.run(ctx)
	metrics.RecordWorkerSync(l.name, time.Since(start), err)
	if err != nil && ctx.Err() == nil {
		logging.Warn().
			Err(err).
			Str("component", "worker").
			Str("loop", l.name).
			Msg("Sync loop iteration failed")
	}
}

func (l *syncLoop) String() string {
	return "sync-" + l.name
}

func defaultInterval(configured, fallback time.Duration) time.Duration {
	if configured > 0 {
		return configured
	}
	return fallback
}
