// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package models

// EntityKind discriminates the two entity variants flowing through the
// ingest pipeline: traffic incidents and road-surface conditions.
type EntityKind string

const (
	// KindIncident identifies a traffic incident entity.
	KindIncident EntityKind = "incident"

	// KindRoadCondition identifies a road-surface condition entity.
	KindRoadCondition EntityKind = "road_condition"
)

// Entity is the tagged union of pipeline entities. The store, the enricher
// and the broadcaster dispatch on Kind; Key identifies the upstream row the
// entity maps to (external_id for incidents, id for road conditions).
type Entity interface {
	Kind() EntityKind
	Key() string
	County() int
	Coordinates() (lat, lon float64, ok bool)
}

// Enrichment carries the camera and weather data attached to an entity after
// normalization. Enrichment fields never participate in change detection and
// never produce version rows.
type Enrichment struct {
	CameraID     string              `json:"camera_id,omitempty"`
	CameraName   string              `json:"camera_name,omitempty"`
	SnapshotPath *string             `json:"snapshot_path"`
	ExtraCameras []ExtraCamera       `json:"extra_cameras,omitempty"`
	Weather      *WeatherObservation `json:"weather,omitempty"`

	// ExternalCameraURL preserves the upstream image URL for the local
	// image proxy. It is never serialized into outbound payloads.
	ExternalCameraURL string `json:"-"`
}

// ExtraCamera is a secondary camera attached to an entity during enrichment,
// ordered by distance. The primary camera is never repeated here.
type ExtraCamera struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	SnapshotPath *string `json:"snapshot_path"`
}

// WeatherObservation is the weather snapshot attached during enrichment.
// Temp is in degrees Celsius, WindSpeed in m/s, WindDir a 16-point compass
// direction ("N", "NNE", ...).
type WeatherObservation struct {
	Temp      *float64 `json:"temp"`
	WindSpeed *float64 `json:"wind_speed"`
	WindDir   string   `json:"wind_dir,omitempty"`
}

// ChangeKind classifies the outcome of one store write. The broadcaster uses
// it to decide which sinks see the entity: creations and significant updates
// fan out everywhere, non-significant refreshes reach only the SSE viewers,
// and unchanged writes reach nobody.
type ChangeKind int

const (
	// ChangeUnchanged means the incoming entity matched the stored row
	// exactly; nothing was written.
	ChangeUnchanged ChangeKind = iota

	// ChangeCreated means a new row was inserted.
	ChangeCreated

	// ChangeUpdated means a significant field changed; a version row was
	// appended and updated_at was bumped.
	ChangeUpdated

	// ChangeRefreshed means only non-significant fields (coordinates,
	// enrichment) were written through; no version row, no updated_at bump.
	ChangeRefreshed
)

// String returns the change kind as a lowercase label for logs and metrics.
func (k ChangeKind) String() string {
	switch k {
	case ChangeCreated:
		return "created"
	case ChangeUpdated:
		return "updated"
	case ChangeRefreshed:
		return "refreshed"
	default:
		return "unchanged"
	}
}

// EntityChange describes a committed store write. It is emitted post-commit,
// so any version row is already durable when downstream sinks see the change.
type EntityChange struct {
	Kind   ChangeKind
	Entity Entity
}
