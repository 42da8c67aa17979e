// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

/*
crud_incidents.go - Incident Persistence and Change Detection

The upsert implements the change-detection rule the whole fan-out pipeline
hangs off:

 1. Lookup by external_id.
 2. No row: insert, created_at = updated_at = now -> Created.
 3. Row exists and any significant field differs (title, description,
    location, severity_code, message_type, temporary_limit,
    traffic_restriction_type, start_time, end_time): append the full
    pre-update row to incident_versions, update in place, bump updated_at
    -> Updated.
 4. Otherwise write coordinates and enrichment through without bumping
    updated_at and without a version row -> Refreshed, or Unchanged when
    they too are identical.

The significance decision never reads enrichment fields; a re-downloaded
snapshot must not fabricate history. One entity write is one transaction, so
the version row is durable before any sink sees the change.

Incoming entities that carry no coordinates or no enrichment inherit the
stored values, keeping the emitted entity complete regardless of what the
enricher attached this round.
*/

//nolint:staticcheck // File documentation, not package doc
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/trafikinfo/trafikinfo/internal/metrics"
	"github.com/trafikinfo/trafikinfo/internal/models"
)

// incidentColumns is the canonical column list shared by every incident
// SELECT; scanIncident consumes columns in exactly this order.
const incidentColumns = `id, external_id, event_type, title, description, location,
	icon_id, message_type, severity_code, severity_text, road_number,
	start_time, end_time, latitude, longitude, county_no,
	temporary_limit, traffic_restriction_type,
	camera_id, camera_name, snapshot_path, extra_cameras, weather, external_camera_url,
	published_to_broker, created_at, updated_at`

// scanner abstracts *sql.Row and *sql.Rows for the scan helpers.
type scanner interface {
	Scan(dest ...any) error
}

// UpsertIncident writes one normalized incident and reports how the stored
// state changed. The returned kind drives the broadcaster's fan-out policy.
// On return the incident carries its row id, authoritative timestamps, and
// any stored fields it arrived without.
func (db *DB) UpsertIncident(ctx context.Context, inc *models.Incident) (models.ChangeKind, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	kind := models.ChangeUnchanged
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var txErr error
		kind, txErr = upsertIncidentTx(ctx, tx, inc)
		return txErr
	})
	metrics.RecordDBQuery("upsert", "incidents", time.Since(start), err)

	if err != nil {
		return models.ChangeUnchanged, fmt.Errorf("failed to upsert incident %s: %w", inc.ExternalID, err)
	}
	metrics.RecordChange("incident", kind.String())
	return kind, nil
}

func upsertIncidentTx(ctx context.Context, tx *sql.Tx, inc *models.Incident) (models.ChangeKind, error) {
	existing, err := selectIncidentTx(ctx, tx, inc.ExternalID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return models.ChangeUnchanged, err
	}

	now := time.Now().UTC()

	if existing == nil {
		inc.CreatedAt = now
		inc.UpdatedAt = now
		id, err := insertIncidentTx(ctx, tx, inc)
		if err != nil {
			return models.ChangeUnchanged, err
		}
		inc.ID = id
		return models.ChangeCreated, nil
	}

	inc.ID = existing.ID
	inc.CreatedAt = existing.CreatedAt
	inc.PublishedToBroker = existing.PublishedToBroker
	mergeIncidentCarryForward(inc, existing)

	if incidentSignificantChange(existing, inc) {
		if err := insertIncidentVersionTx(ctx, tx, existing, now); err != nil {
			return models.ChangeUnchanged, err
		}
		inc.UpdatedAt = now
		if err := updateIncidentTx(ctx, tx, inc); err != nil {
			return models.ChangeUnchanged, err
		}
		return models.ChangeUpdated, nil
	}

	inc.UpdatedAt = existing.UpdatedAt

	if !coordinatesEqual(existing, inc) || !enrichmentEqual(&existing.Enrichment, &inc.Enrichment) {
		if err := writeThroughIncidentTx(ctx, tx, inc); err != nil {
			return models.ChangeUnchanged, err
		}
		return models.ChangeRefreshed, nil
	}

	return models.ChangeUnchanged, nil
}

// mergeIncidentCarryForward fills fields the incoming entity left empty from
// the stored row, so an update without fresh enrichment never clears the
// stored enrichment.
func mergeIncidentCarryForward(inc, existing *models.Incident) {
	if inc.Latitude == nil || inc.Longitude == nil {
		inc.Latitude = existing.Latitude
		inc.Longitude = existing.Longitude
	}
	if enrichmentEmpty(&inc.Enrichment) {
		inc.Enrichment = existing.Enrichment
	}
}

// incidentSignificantChange applies the significance rule. Enrichment and
// coordinates are deliberately absent.
func incidentSignificantChange(prev, next *models.Incident) bool {
	return prev.Title != next.Title ||
		prev.Description != next.Description ||
		prev.Location != next.Location ||
		prev.SeverityCode != next.SeverityCode ||
		prev.MessageType != next.MessageType ||
		prev.TemporaryLimit != next.TemporaryLimit ||
		prev.TrafficRestrictionType != next.TrafficRestrictionType ||
		!timePtrEqual(prev.StartTime, next.StartTime) ||
		!timePtrEqual(prev.EndTime, next.EndTime)
}

func coordinatesEqual(prev, next *models.Incident) bool {
	return floatPtrEqual(prev.Latitude, next.Latitude) &&
		floatPtrEqual(prev.Longitude, next.Longitude)
}

func enrichmentEmpty(e *models.Enrichment) bool {
	return e.CameraID == "" && e.CameraName == "" && e.SnapshotPath == nil &&
		len(e.ExtraCameras) == 0 && e.Weather == nil && e.ExternalCameraURL == ""
}

func enrichmentEqual(a, b *models.Enrichment) bool {
	return a.CameraID == b.CameraID &&
		a.CameraName == b.CameraName &&
		stringPtrEqual(a.SnapshotPath, b.SnapshotPath) &&
		extraCamerasEqual(a.ExtraCameras, b.ExtraCameras) &&
		weatherEqual(a.Weather, b.Weather) &&
		a.ExternalCameraURL == b.ExternalCameraURL
}

func extraCamerasEqual(a, b []models.ExtraCamera) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Name != b[i].Name || !stringPtrEqual(a[i].SnapshotPath, b[i].SnapshotPath) {
			return false
		}
	}
	return true
}

func weatherEqual(a, b *models.WeatherObservation) bool {
	if a == nil || b == nil {
		return a == b
	}
	return floatPtrEqual(a.Temp, b.Temp) &&
		floatPtrEqual(a.WindSpeed, b.WindSpeed) &&
		a.WindDir == b.WindDir
}

func selectIncidentTx(ctx context.Context, tx *sql.Tx, externalID string) (*models.Incident, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+incidentColumns+` FROM incidents WHERE external_id = ?`, externalID)
	inc, err := scanIncident(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return inc, err
}

func insertIncidentTx(ctx context.Context, tx *sql.Tx, inc *models.Incident) (int64, error) {
	extraCameras, err := marshalExtraCameras(inc.ExtraCameras)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal extra cameras: %w", err)
	}
	weather, err := marshalWeather(inc.Weather)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal weather: %w", err)
	}

	res, err := tx.ExecContext(ctx, `INSERT INTO incidents (
		external_id, event_type, title, description, location,
		icon_id, message_type, severity_code, severity_text, road_number,
		start_time, end_time, latitude, longitude, county_no,
		temporary_limit, traffic_restriction_type,
		camera_id, camera_name, snapshot_path, extra_cameras, weather, external_camera_url,
		published_to_broker, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inc.ExternalID, inc.EventType, inc.Title, inc.Description, inc.Location,
		inc.IconID, inc.MessageType, inc.SeverityCode, inc.SeverityText, inc.RoadNumber,
		nullTime(inc.StartTime), nullTime(inc.EndTime), nullFloat(inc.Latitude), nullFloat(inc.Longitude), inc.CountyNo,
		inc.TemporaryLimit, inc.TrafficRestrictionType,
		inc.CameraID, inc.CameraName, nullString(inc.SnapshotPath), extraCameras, weather, inc.ExternalCameraURL,
		inc.PublishedToBroker, inc.CreatedAt, inc.UpdatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert incident: %w", err)
	}
	return res.LastInsertId()
}

func updateIncidentTx(ctx context.Context, tx *sql.Tx, inc *models.Incident) error {
	extraCameras, err := marshalExtraCameras(inc.ExtraCameras)
	if err != nil {
		return fmt.Errorf("failed to marshal extra cameras: %w", err)
	}
	weather, err := marshalWeather(inc.Weather)
	if err != nil {
		return fmt.Errorf("failed to marshal weather: %w", err)
	}

	_, err = tx.ExecContext(ctx, `UPDATE incidents SET
		event_type = ?, title = ?, description = ?, location = ?,
		icon_id = ?, message_type = ?, severity_code = ?, severity_text = ?, road_number = ?,
		start_time = ?, end_time = ?, latitude = ?, longitude = ?, county_no = ?,
		temporary_limit = ?, traffic_restriction_type = ?,
		camera_id = ?, camera_name = ?, snapshot_path = ?, extra_cameras = ?, weather = ?, external_camera_url = ?,
		updated_at = ?
	WHERE external_id = ?`,
		inc.EventType, inc.Title, inc.Description, inc.Location,
		inc.IconID, inc.MessageType, inc.SeverityCode, inc.SeverityText, inc.RoadNumber,
		nullTime(inc.StartTime), nullTime(inc.EndTime), nullFloat(inc.Latitude), nullFloat(inc.Longitude), inc.CountyNo,
		inc.TemporaryLimit, inc.TrafficRestrictionType,
		inc.CameraID, inc.CameraName, nullString(inc.SnapshotPath), extraCameras, weather, inc.ExternalCameraURL,
		inc.UpdatedAt, inc.ExternalID,
	)
	if err != nil {
		return fmt.Errorf("failed to update incident: %w", err)
	}
	return nil
}

// writeThroughIncidentTx persists coordinates and enrichment only; neither
// updated_at nor any significant field is touched.
func writeThroughIncidentTx(ctx context.Context, tx *sql.Tx, inc *models.Incident) error {
	extraCameras, err := marshalExtraCameras(inc.ExtraCameras)
	if err != nil {
		return fmt.Errorf("failed to marshal extra cameras: %w", err)
	}
	weather, err := marshalWeather(inc.Weather)
	if err != nil {
		return fmt.Errorf("failed to marshal weather: %w", err)
	}

	_, err = tx.ExecContext(ctx, `UPDATE incidents SET
		latitude = ?, longitude = ?,
		camera_id = ?, camera_name = ?, snapshot_path = ?, extra_cameras = ?, weather = ?, external_camera_url = ?
	WHERE external_id = ?`,
		nullFloat(inc.Latitude), nullFloat(inc.Longitude),
		inc.CameraID, inc.CameraName, nullString(inc.SnapshotPath), extraCameras, weather, inc.ExternalCameraURL,
		inc.ExternalID,
	)
	if err != nil {
		return fmt.Errorf("failed to write through incident: %w", err)
	}
	return nil
}

// insertIncidentVersionTx appends the pre-update row to the version table.
func insertIncidentVersionTx(ctx context.Context, tx *sql.Tx, prev *models.Incident, versionTS time.Time) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO incident_versions (
		external_id, version_timestamp, event_type, title, description, location,
		icon_id, message_type, severity_code, severity_text, road_number,
		start_time, end_time, latitude, longitude, county_no,
		temporary_limit, traffic_restriction_type, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		prev.ExternalID, versionTS, prev.EventType, prev.Title, prev.Description, prev.Location,
		prev.IconID, prev.MessageType, prev.SeverityCode, prev.SeverityText, prev.RoadNumber,
		nullTime(prev.StartTime), nullTime(prev.EndTime), nullFloat(prev.Latitude), nullFloat(prev.Longitude), prev.CountyNo,
		prev.TemporaryLimit, prev.TrafficRestrictionType, prev.CreatedAt, prev.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert incident version: %w", err)
	}
	return nil
}

// scanIncident scans one row in incidentColumns order.
func scanIncident(sc scanner) (*models.Incident, error) {
	var inc models.Incident
	var startTime, endTime sql.NullTime
	var lat, lon sql.NullFloat64
	var snapshotPath, extraCameras, weather sql.NullString

	err := sc.Scan(
		&inc.ID, &inc.ExternalID, &inc.EventType, &inc.Title, &inc.Description, &inc.Location,
		&inc.IconID, &inc.MessageType, &inc.SeverityCode, &inc.SeverityText, &inc.RoadNumber,
		&startTime, &endTime, &lat, &lon, &inc.CountyNo,
		&inc.TemporaryLimit, &inc.TrafficRestrictionType,
		&inc.CameraID, &inc.CameraName, &snapshotPath, &extraCameras, &weather, &inc.ExternalCameraURL,
		&inc.PublishedToBroker, &inc.CreatedAt, &inc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	inc.StartTime = timePtr(startTime)
	inc.EndTime = timePtr(endTime)
	inc.Latitude = floatPtr(lat)
	inc.Longitude = floatPtr(lon)
	inc.SnapshotPath = stringPtr(snapshotPath)

	if inc.ExtraCameras, err = unmarshalExtraCameras(extraCameras); err != nil {
		return nil, fmt.Errorf("failed to unmarshal extra cameras for %s: %w", inc.ExternalID, err)
	}
	if inc.Weather, err = unmarshalWeather(weather); err != nil {
		return nil, fmt.Errorf("failed to unmarshal weather for %s: %w", inc.ExternalID, err)
	}

	return &inc, nil
}

// GetIncidentByExternalID returns one incident, or ErrNotFound.
func (db *DB) GetIncidentByExternalID(ctx context.Context, externalID string) (*models.Incident, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+incidentColumns+` FROM incidents WHERE external_id = ?`, externalID)
	inc, err := scanIncident(row)

	if errors.Is(err, sql.ErrNoRows) {
		metrics.RecordDBQuery("select", "incidents", time.Since(start), nil)
		return nil, fmt.Errorf("incident %s: %w", externalID, ErrNotFound)
	}
	metrics.RecordDBQuery("select", "incidents", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to get incident %s: %w", externalID, err)
	}
	return inc, nil
}

// GetIncidents returns incidents matching the filter, most recently updated
// first, with HistoryCount populated from the version table.
func (db *DB) GetIncidents(ctx context.Context, filter IncidentFilter) ([]models.Incident, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	clauses, args, err := filter.conditions()
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + incidentColumns + `,
		(SELECT COUNT(*) FROM incident_versions v WHERE v.external_id = incidents.external_id) AS history_count
	FROM incidents` + whereSQL(clauses) + ` ORDER BY updated_at DESC` +
		limitOffsetSQL(filter.Limit, filter.Offset, &args)

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, args...)
	metrics.RecordDBQuery("select", "incidents", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query incidents: %w", err)
	}
	defer closeQuietly(rows)

	incidents := []models.Incident{}
	for rows.Next() {
		inc, err := scanIncidentWithHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan incident: %w", err)
		}
		incidents = append(incidents, *inc)
	}
	return incidents, rows.Err()
}

// scanIncidentWithHistory scans incidentColumns plus the trailing
// history_count aggregate.
func scanIncidentWithHistory(rows *sql.Rows) (*models.Incident, error) {
	var inc models.Incident
	var startTime, endTime sql.NullTime
	var lat, lon sql.NullFloat64
	var snapshotPath, extraCameras, weather sql.NullString

	err := rows.Scan(
		&inc.ID, &inc.ExternalID, &inc.EventType, &inc.Title, &inc.Description, &inc.Location,
		&inc.IconID, &inc.MessageType, &inc.SeverityCode, &inc.SeverityText, &inc.RoadNumber,
		&startTime, &endTime, &lat, &lon, &inc.CountyNo,
		&inc.TemporaryLimit, &inc.TrafficRestrictionType,
		&inc.CameraID, &inc.CameraName, &snapshotPath, &extraCameras, &weather, &inc.ExternalCameraURL,
		&inc.PublishedToBroker, &inc.CreatedAt, &inc.UpdatedAt,
		&inc.HistoryCount,
	)
	if err != nil {
		return nil, err
	}

	inc.StartTime = timePtr(startTime)
	inc.EndTime = timePtr(endTime)
	inc.Latitude = floatPtr(lat)
	inc.Longitude = floatPtr(lon)
	inc.SnapshotPath = stringPtr(snapshotPath)

	if inc.ExtraCameras, err = unmarshalExtraCameras(extraCameras); err != nil {
		return nil, fmt.Errorf("failed to unmarshal extra cameras for %s: %w", inc.ExternalID, err)
	}
	if inc.Weather, err = unmarshalWeather(weather); err != nil {
		return nil, fmt.Errorf("failed to unmarshal weather for %s: %w", inc.ExternalID, err)
	}

	return &inc, nil
}

// GetIncidentHistory returns the version rows for one incident, newest
// first.
func (db *DB) GetIncidentHistory(ctx context.Context, externalID string, limit int) ([]models.IncidentVersion, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if limit <= 0 || limit > defaultQueryLimit {
		limit = defaultQueryLimit
	}

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, `SELECT
		external_id, version_timestamp, event_type, title, description, location,
		icon_id, message_type, severity_code, severity_text, road_number,
		start_time, end_time, latitude, longitude, county_no,
		temporary_limit, traffic_restriction_type, created_at, updated_at
	FROM incident_versions WHERE external_id = ?
	ORDER BY version_timestamp DESC LIMIT ?`, externalID, limit)
	metrics.RecordDBQuery("select", "incident_versions", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query incident history: %w", err)
	}
	defer closeQuietly(rows)

	versions := []models.IncidentVersion{}
	for rows.Next() {
		var v models.IncidentVersion
		var startTime, endTime sql.NullTime
		var lat, lon sql.NullFloat64
		err := rows.Scan(
			&v.ExternalID, &v.VersionTimestamp, &v.EventType, &v.Title, &v.Description, &v.Location,
			&v.IconID, &v.MessageType, &v.SeverityCode, &v.SeverityText, &v.RoadNumber,
			&startTime, &endTime, &lat, &lon, &v.CountyNo,
			&v.TemporaryLimit, &v.TrafficRestrictionType, &v.CreatedAt, &v.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan incident version: %w", err)
		}
		v.StartTime = timePtr(startTime)
		v.EndTime = timePtr(endTime)
		v.Latitude = floatPtr(lat)
		v.Longitude = floatPtr(lon)
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// MarkIncidentPublished records a successful broker publish. The flag is not
// a significant field; updated_at stays untouched.
func (db *DB) MarkIncidentPublished(ctx context.Context, externalID string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	_, err := db.conn.ExecContext(ctx,
		`UPDATE incidents SET published_to_broker = 1 WHERE external_id = ?`, externalID)
	metrics.RecordDBQuery("update", "incidents", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to mark incident %s published: %w", externalID, err)
	}
	return nil
}
