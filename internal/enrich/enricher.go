// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package enrich

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/trafikinfo/trafikinfo/internal/database"
	"github.com/trafikinfo/trafikinfo/internal/logging"
	"github.com/trafikinfo/trafikinfo/internal/models"
	"github.com/trafikinfo/trafikinfo/internal/snapshots"
	"github.com/trafikinfo/trafikinfo/internal/spatial"
)

const (
	// cameraLimit bounds the primary + extra cameras attached per entity.
	cameraLimit = 5

	// weatherMaxKM is the search radius for the nearest weather station.
	weatherMaxKM = 20.0

	// defaultRadiusKM is used when the camera_radius_km setting is absent
	// or unparseable.
	defaultRadiusKM = 8.0
)

// Store is the prior-state and settings surface the enricher reads. It never
// writes; persisting enrichment is the event store's job.
type Store interface {
	GetIncidentByExternalID(ctx context.Context, externalID string) (*models.Incident, error)
	FindRoadCondition(ctx context.Context, rc *models.RoadCondition) (*models.RoadCondition, error)
	GetSetting(ctx context.Context, key string) (string, error)
}

// Enricher attaches camera and weather data to entities in place.
type Enricher struct {
	store Store
	index *spatial.Index
	snaps *snapshots.Store
}

// New creates an enricher over the given prior-state store, spatial index
// and snapshot store.
func New(store Store, index *spatial.Index, snaps *snapshots.Store) *Enricher {
	return &Enricher{store: store, index: index, snaps: snaps}
}

// Enrich mutates the entity with camera and weather enrichment. The returned
// bool reports whether a camera sync (snapshot downloads) happened. Entities
// without coordinates pass through untouched. Errors are reserved for prior-
// state lookups; enrichment misses are not errors.
func (e *Enricher) Enrich(ctx context.Context, entity models.Entity) (bool, error) {
	lat, lon, ok := entity.Coordinates()
	if !ok {
		return false, nil
	}

	prior, err := e.priorState(ctx, entity)
	if err != nil {
		return false, err
	}

	synced := false
	if needsCameraSync(prior) {
		e.syncCameras(ctx, entity, lat, lon)
		synced = true
	} else if prior != nil {
		// Carry the complete prior camera enrichment forward so the
		// broadcaster sees it on this pass.
		*enrichmentOf(entity) = *prior
	}

	e.attachWeather(entity, lat, lon)
	return synced, nil
}

// priorState returns the stored enrichment the entity maps to, or nil for a
// new entity.
func (e *Enricher) priorState(ctx context.Context, entity models.Entity) (*models.Enrichment, error) {
	switch v := entity.(type) {
	case *models.Incident:
		prior, err := e.store.GetIncidentByExternalID(ctx, v.ExternalID)
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load prior incident state: %w", err)
		}
		if !coordinatesMatch(prior.Latitude, prior.Longitude, entity) {
			return nil, nil
		}
		return &prior.Enrichment, nil
	case *models.RoadCondition:
		prior, err := e.store.FindRoadCondition(ctx, v)
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load prior road condition state: %w", err)
		}
		if !coordinatesMatch(prior.Latitude, prior.Longitude, entity) {
			return nil, nil
		}
		return &prior.Enrichment, nil
	default:
		return nil, fmt.Errorf("unknown entity kind %q", entity.Kind())
	}
}

// needsCameraSync implements the sync decision: new entity, no extra cameras
// recorded, any extra camera missing its snapshot, or moved coordinates.
// A nil prior covers both the new-entity and the moved-coordinates case.
func needsCameraSync(prior *models.Enrichment) bool {
	if prior == nil {
		return true
	}
	if len(prior.ExtraCameras) == 0 {
		return true
	}
	for _, cam := range prior.ExtraCameras {
		if cam.SnapshotPath == nil {
			return true
		}
	}
	return false
}

// syncCameras queries the spatial index and downloads snapshots for the
// primary and each extra camera. Snapshot misses keep the camera metadata
// with a null path for retry on the next significant update.
func (e *Enricher) syncCameras(ctx context.Context, entity models.Entity, lat, lon float64) {
	enr := enrichmentOf(entity)
	*enr = models.Enrichment{}

	radius := e.cameraRadius(ctx)
	cams := e.index.NearbyCameras(lat, lon, roadNumberOf(entity), radius, cameraLimit)
	if len(cams) == 0 {
		logging.Debug().
			Str("component", "enrich").
			Str("key", entity.Key()).
			Float64("radius_km", radius).
			Msg("No cameras within radius")
		return
	}

	entityID := snapshots.SanitizeID(entity.Key())

	primary := cams[0]
	enr.CameraID = primary.ID
	enr.CameraName = primary.Name
	enr.ExternalCameraURL = primary.PhotoURL
	if path, ok := e.snaps.Save(ctx, primary.PhotoURL, primary.FullsizeURL, entityID, entity.County()); ok {
		enr.SnapshotPath = &path
	}

	for _, cam := range cams[1:] {
		extra := models.ExtraCamera{ID: cam.ID, Name: cam.Name}
		extraID := entityID + "_" + snapshots.SanitizeID(cam.ID)
		if path, ok := e.snaps.Save(ctx, cam.PhotoURL, cam.FullsizeURL, extraID, entity.County()); ok {
			extra.SnapshotPath = &path
		}
		enr.ExtraCameras = append(enr.ExtraCameras, extra)
	}
}

// attachWeather attaches the nearest station's observation, if any.
func (e *Enricher) attachWeather(entity models.Entity, lat, lon float64) {
	station := e.index.NearestStation(lat, lon, weatherMaxKM)
	if station == nil {
		return
	}
	enrichmentOf(entity).Weather = &models.WeatherObservation{
		Temp:      station.AirTemperature,
		WindSpeed: station.WindSpeed,
		WindDir:   station.WindDirection,
	}
}

// cameraRadius reads camera_radius_km through the settings table per use.
func (e *Enricher) cameraRadius(ctx context.Context) float64 {
	value, err := e.store.GetSetting(ctx, models.SettingCameraRadiusKM)
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to read camera radius setting")
		return defaultRadiusKM
	}
	radius, err := strconv.ParseFloat(value, 64)
	if err != nil || radius <= 0 {
		return defaultRadiusKM
	}
	return radius
}

func enrichmentOf(entity models.Entity) *models.Enrichment {
	switch v := entity.(type) {
	case *models.Incident:
		return &v.Enrichment
	case *models.RoadCondition:
		return &v.Enrichment
	default:
		return &models.Enrichment{}
	}
}

func roadNumberOf(entity models.Entity) string {
	switch v := entity.(type) {
	case *models.Incident:
		return v.RoadNumber
	case *models.RoadCondition:
		return v.RoadNumber
	default:
		return ""
	}
}

// coordinatesMatch reports whether the prior row's coordinates equal the
// incoming entity's. A prior without coordinates never matches (the entity
// reaching the enricher always has them).
func coordinatesMatch(priorLat, priorLon *float64, entity models.Entity) bool {
	lat, lon, _ := entity.Coordinates()
	return priorLat != nil && priorLon != nil && *priorLat == lat && *priorLon == lon
}
