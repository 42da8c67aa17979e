// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package worker

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/trafikinfo/trafikinfo/internal/config"
	"github.com/trafikinfo/trafikinfo/internal/logging"
	"github.com/trafikinfo/trafikinfo/internal/metrics"
	"github.com/trafikinfo/trafikinfo/internal/models"
	"github.com/trafikinfo/trafikinfo/internal/trafikverket"
)

// Source is the upstream client surface the manager drives.
type Source interface {
	Start(ctx context.Context, objectType string, counties []int) (<-chan trafikverket.RawBatch, error)
	Stop()
	FetchCameras(ctx context.Context) ([]byte, error)
	FetchWeatherStations(ctx context.Context, counties []int) ([]byte, error)
	FetchIcons(ctx context.Context) ([]byte, error)
}

// Store is the database surface the manager and its sync loops use.
type Store interface {
	GetSetting(ctx context.Context, key string) (string, error)
	InterestCounties(ctx context.Context, clientTTL time.Duration) ([]int, error)
	DeleteExpiredClientInterests(ctx context.Context, ttl time.Duration) (int64, error)
	SyncCameras(ctx context.Context, counties []int, cams []models.Camera) (int, error)
	UpsertWeatherStations(ctx context.Context, stations []models.WeatherStation) (int, error)
	DeleteIncidentsOlderThan(ctx context.Context, cutoff time.Time) (int64, []string, error)
}

// Pipeline is the per-group ingest pipeline. A fresh one is built for every
// interest set so no stale batches survive a restart.
type Pipeline interface {
	Serve(ctx context.Context) error
	Consume(ctx context.Context, batches <-chan trafikverket.RawBatch)
}

// Snapshots removes snapshot files freed by the retention sweep.
type Snapshots interface {
	Remove(relPath string) error
}

// SpatialIndex receives the synced camera and station sets.
type SpatialIndex interface {
	SetCameras(cams []models.Camera)
	SetStations(stations []models.WeatherStation)
}

// Manager owns the interest control loop and the dynamic ingest group.
type Manager struct {
	cfg      *config.WorkerConfig
	iconDir  string
	store    Store
	source   Source
	index    SpatialIndex
	snaps    Snapshots
	pipeline func() Pipeline

	mu            sync.Mutex
	counties      []int
	setupRequired bool
	group         *group
}

// New assembles a manager. pipeline is called once per started group.
func New(cfg *config.WorkerConfig, iconDir string, store Store, source Source, index SpatialIndex, snaps Snapshots, pipeline func() Pipeline) *Manager {
	return &Manager{
		cfg:      cfg,
		iconDir:  iconDir,
		store:    store,
		source:   source,
		index:    index,
		snaps:    snaps,
		pipeline: pipeline,
	}
}

// Serve implements suture.Service. It evaluates the interest set once at
// startup and then on every tick, and runs the retention sweep on its own
// slower cadence.
func (m *Manager) Serve(ctx context.Context) error {
	interestEvery := m.cfg.InterestInterval
	if interestEvery <= 0 {
		interestEvery = time.Minute
	}
	retentionEvery := m.cfg.RetentionInterval
	if retentionEvery <= 0 {
		retentionEvery = time.Hour
	}

	interest := time.NewTicker(interestEvery)
	defer interest.Stop()
	retention := time.NewTicker(retentionEvery)
	defer retention.Stop()

	m.evaluate(ctx)
	m.sweepRetention(ctx)

	for {
		select {
		case <-ctx.Done():
			m.stopGroup()
			return ctx.Err()
		case <-interest.C:
			m.evaluate(ctx)
		case <-retention.C:
			m.sweepRetention(ctx)
		}
	}
}

// SetupRequired reports whether the system is idle for lack of an API key.
func (m *Manager) SetupRequired() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setupRequired
}

// ActiveCounties returns the county set the current ingest group serves.
func (m *Manager) ActiveCounties() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.counties...)
}

// evaluate recomputes the wanted county set and restarts the ingest group
// when it changed. All failures are logged and retried next tick.
func (m *Manager) evaluate(ctx context.Context) {
	apiKey, err := m.store.GetSetting(ctx, models.SettingAPIKey)
	if err != nil {
		logging.Warn().Err(err).Str("component", "worker").Msg("Failed to read api key setting")
		return
	}
	if apiKey == "" {
		m.goIdle(true)
		return
	}

	if _, err := m.store.DeleteExpiredClientInterests(ctx, m.interestTTL()); err != nil {
		logging.Warn().Err(err).Str("component", "worker").Msg("Failed to prune expired client interests")
	}

	counties, err := m.store.InterestCounties(ctx, m.interestTTL())
	if err != nil {
		logging.Warn().Err(err).Str("component", "worker").Msg("Failed to compute interest counties")
		return
	}

	m.mu.Lock()
	m.setupRequired = false
	changed := !equalCounties(m.counties, counties)
	m.mu.Unlock()

	if !changed {
		return
	}

	logging.Info().
		Str("component", "worker").
		Ints("counties", counties).
		Msg("Interest set changed, restarting ingest group")

	m.stopGroup()
	if len(counties) > 0 {
		m.startGroup(counties)
	}

	m.mu.Lock()
	m.counties = counties
	m.mu.Unlock()
	metrics.UpdateActiveCounties(len(counties))
}

// goIdle stops the group without starting a new one.
func (m *Manager) goIdle(setupRequired bool) {
	m.stopGroup()
	m.mu.Lock()
	m.counties = nil
	m.setupRequired = setupRequired
	m.mu.Unlock()
	metrics.UpdateActiveCounties(0)
}

func (m *Manager) startGroup(counties []int) {
	g := newGroup(m, counties)
	g.start()
	m.mu.Lock()
	m.group = g
	m.mu.Unlock()
}

// stopGroup cancels the current group and waits, bounded, for it to drain.
func (m *Manager) stopGroup() {
	m.mu.Lock()
	g := m.group
	m.group = nil
	m.mu.Unlock()
	if g == nil {
		return
	}

	timeout := m.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	g.stop(timeout)
	m.source.Stop()
}

// sweepRetention deletes incidents older than the retention_days setting and
// removes their snapshot files. retention_days <= 0 disables the sweep.
func (m *Manager) sweepRetention(ctx context.Context) {
	raw, err := m.store.GetSetting(ctx, models.SettingRetentionDays)
	if err != nil {
		logging.Warn().Err(err).Str("component", "worker").Msg("Failed to read retention setting")
		return
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days <= 0 {
		return
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	deleted, paths, err := m.store.DeleteIncidentsOlderThan(ctx, cutoff)
	if err != nil {
		logging.Error().Err(err).Str("component", "worker").Msg("Retention sweep failed")
		return
	}
	for _, path := range paths {
		if err := m.snaps.Remove(path); err != nil {
			logging.Warn().Err(err).Str("path", path).Msg("Failed to remove expired snapshot")
		}
	}
	if deleted > 0 {
		logging.Info().
			Str("component", "worker").
			Int64("incidents", deleted).
			Int("snapshots", len(paths)).
			Msg("Retention sweep removed expired rows")
	}
}

func (m *Manager) interestTTL() time.Duration {
	if m.cfg.InterestTTL > 0 {
		return m.cfg.InterestTTL
	}
	return 5 * time.Minute
}

func equalCounties(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// suture spec for the dynamic group; the shutdown timeout bounds how long a
// stuck service can delay an interest-set restart.
func groupSpec(timeout time.Duration) suture.Spec {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return suture.Spec{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		Timeout:          timeout,
	}
}
