// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

/*
crud_road_conditions.go - Road Condition Persistence and Deduplication

The upstream rotates the advisory id while the semantic advisory persists,
so lookup is two-stage:

 1. By condition_id.
 2. Failing that, by the dedup key (road_number, condition_code, county_no,
    start_time). A hit means the id rotated; the stored row is updated in
    place and adopts the new id, so the next arrival matches stage 1 again.

Two semantically distinct advisories that collide on all four key fields
merge into one row; the upstream treats this as acceptable.

Change classification mirrors the incident rule with the road-condition
significant set {condition_code, condition_text, measure, warning, cause,
location_text, start_time, end_time}. Road conditions keep no version
history; a significant change updates in place and bumps updated_at.
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

// roadConditionColumns is the canonical column list shared by every
// road-condition SELECT; scanRoadCondition consumes columns in this order.
const roadConditionColumns = `id, condition_id, road_number, county_no, condition_code, condition_text,
	measure, warning, cause, location_text,
	start_time, end_time, upstream_timestamp, latitude, longitude,
	camera_id, camera_name, snapshot_path, extra_cameras, weather, external_camera_url,
	published_to_broker, created_at, updated_at`

// UpsertRoadCondition writes one normalized road condition and reports how
// the stored state changed. On return the entity carries its row id,
// authoritative timestamps, and any stored fields it arrived without.
func (db *DB) UpsertRoadCondition(ctx context.Context, rc *models.RoadCondition) (models.ChangeKind, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	kind := models.ChangeUnchanged
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var txErr error
		kind, txErr = upsertRoadConditionTx(ctx, tx, rc)
		return txErr
	})
	metrics.RecordDBQuery("upsert", "road_conditions", time.Since(start), err)

	if err != nil {
		return models.ChangeUnchanged, fmt.Errorf("failed to upsert road condition %s: %w", rc.ID, err)
	}
	metrics.RecordChange("road_condition", kind.String())
	return kind, nil
}

func upsertRoadConditionTx(ctx context.Context, tx *sql.Tx, rc *models.RoadCondition) (models.ChangeKind, error) {
	existing, err := findRoadCondition(ctx, tx, rc)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return models.ChangeUnchanged, err
	}

	now := time.Now().UTC()

	if existing == nil {
		rc.CreatedAt = now
		rc.UpdatedAt = now
		id, err := insertRoadConditionTx(ctx, tx, rc)
		if err != nil {
			return models.ChangeUnchanged, err
		}
		rc.RowID = id
		return models.ChangeCreated, nil
	}

	rc.RowID = existing.RowID
	rc.CreatedAt = existing.CreatedAt
	rc.PublishedToBroker = existing.PublishedToBroker
	mergeRoadConditionCarryForward(rc, existing)

	if roadConditionSignificantChange(existing, rc) {
		rc.UpdatedAt = now
		if err := updateRoadConditionTx(ctx, tx, rc); err != nil {
			return models.ChangeUnchanged, err
		}
		return models.ChangeUpdated, nil
	}

	rc.UpdatedAt = existing.UpdatedAt

	if roadConditionNeedsWriteThrough(existing, rc) {
		if err := writeThroughRoadConditionTx(ctx, tx, rc); err != nil {
			return models.ChangeUnchanged, err
		}
		return models.ChangeRefreshed, nil
	}

	return models.ChangeUnchanged, nil
}

// queryRower is satisfied by both *sql.DB and *sql.Tx, letting the two-stage
// lookup serve the upsert (inside its transaction) and read-only callers.
type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// findRoadCondition performs the two-stage lookup: by upstream id first,
// then by the dedup key.
func findRoadCondition(ctx context.Context, q queryRower, rc *models.RoadCondition) (*models.RoadCondition, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+roadConditionColumns+` FROM road_conditions WHERE condition_id = ?`, rc.ID)
	existing, err := scanRoadCondition(row)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	// Unknown id; the upstream may have rotated it. IS matches NULL
	// start_time rows too.
	row = q.QueryRowContext(ctx, `SELECT `+roadConditionColumns+` FROM road_conditions
		WHERE road_number = ? AND condition_code = ? AND county_no = ? AND start_time IS ?`,
		rc.RoadNumber, rc.ConditionCode, rc.CountyNo, nullTime(rc.StartTime))
	existing, err = scanRoadCondition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return existing, err
}

// mergeRoadConditionCarryForward fills fields the incoming entity left empty
// from the stored row.
func mergeRoadConditionCarryForward(rc, existing *models.RoadCondition) {
	if rc.Latitude == nil || rc.Longitude == nil {
		rc.Latitude = existing.Latitude
		rc.Longitude = existing.Longitude
	}
	if rc.Timestamp == nil {
		rc.Timestamp = existing.Timestamp
	}
	if enrichmentEmpty(&rc.Enrichment) {
		rc.Enrichment = existing.Enrichment
	}
}

// roadConditionSignificantChange applies the road-condition significance
// rule. The rotating id, coordinates and enrichment are deliberately absent.
func roadConditionSignificantChange(prev, next *models.RoadCondition) bool {
	return prev.ConditionCode != next.ConditionCode ||
		prev.ConditionText != next.ConditionText ||
		prev.Measure != next.Measure ||
		prev.Warning != next.Warning ||
		prev.Cause != next.Cause ||
		prev.LocationText != next.LocationText ||
		!timePtrEqual(prev.StartTime, next.StartTime) ||
		!timePtrEqual(prev.EndTime, next.EndTime)
}

// roadConditionNeedsWriteThrough reports whether any non-significant field
// differs: a rotated id, fresh coordinates, a newer upstream timestamp, or
// changed enrichment.
func roadConditionNeedsWriteThrough(prev, next *models.RoadCondition) bool {
	return prev.ID != next.ID ||
		!floatPtrEqual(prev.Latitude, next.Latitude) ||
		!floatPtrEqual(prev.Longitude, next.Longitude) ||
		!timePtrEqual(prev.Timestamp, next.Timestamp) ||
		!enrichmentEqual(&prev.Enrichment, &next.Enrichment)
}

func insertRoadConditionTx(ctx context.Context, tx *sql.Tx, rc *models.RoadCondition) (int64, error) {
	extraCameras, err := marshalExtraCameras(rc.ExtraCameras)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal extra cameras: %w", err)
	}
	weather, err := marshalWeather(rc.Weather)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal weather: %w", err)
	}

	res, err := tx.ExecContext(ctx, `INSERT INTO road_conditions (
		condition_id, road_number, county_no, condition_code, condition_text,
		measure, warning, cause, location_text,
		start_time, end_time, upstream_timestamp, latitude, longitude,
		camera_id, camera_name, snapshot_path, extra_cameras, weather, external_camera_url,
		published_to_broker, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rc.ID, rc.RoadNumber, rc.CountyNo, rc.ConditionCode, rc.ConditionText,
		rc.Measure, rc.Warning, rc.Cause, rc.LocationText,
		nullTime(rc.StartTime), nullTime(rc.EndTime), nullTime(rc.Timestamp), nullFloat(rc.Latitude), nullFloat(rc.Longitude),
		rc.CameraID, rc.CameraName, nullString(rc.SnapshotPath), extraCameras, weather, rc.ExternalCameraURL,
		rc.PublishedToBroker, rc.CreatedAt, rc.UpdatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert road condition: %w", err)
	}
	return res.LastInsertId()
}

// updateRoadConditionTx rewrites the full row, including the (possibly
// rotated) condition_id, keyed by the stable row id.
func updateRoadConditionTx(ctx context.Context, tx *sql.Tx, rc *models.RoadCondition) error {
	extraCameras, err := marshalExtraCameras(rc.ExtraCameras)
	if err != nil {
		return fmt.Errorf("failed to marshal extra cameras: %w", err)
	}
	weather, err := marshalWeather(rc.Weather)
	if err != nil {
		return fmt.Errorf("failed to marshal weather: %w", err)
	}

	_, err = tx.ExecContext(ctx, `UPDATE road_conditions SET
		condition_id = ?, road_number = ?, county_no = ?, condition_code = ?, condition_text = ?,
		measure = ?, warning = ?, cause = ?, location_text = ?,
		start_time = ?, end_time = ?, upstream_timestamp = ?, latitude = ?, longitude = ?,
		camera_id = ?, camera_name = ?, snapshot_path = ?, extra_cameras = ?, weather = ?, external_camera_url = ?,
		updated_at = ?
	WHERE id = ?`,
		rc.ID, rc.RoadNumber, rc.CountyNo, rc.ConditionCode, rc.ConditionText,
		rc.Measure, rc.Warning, rc.Cause, rc.LocationText,
		nullTime(rc.StartTime), nullTime(rc.EndTime), nullTime(rc.Timestamp), nullFloat(rc.Latitude), nullFloat(rc.Longitude),
		rc.CameraID, rc.CameraName, nullString(rc.SnapshotPath), extraCameras, weather, rc.ExternalCameraURL,
		rc.UpdatedAt, rc.RowID,
	)
	if err != nil {
		return fmt.Errorf("failed to update road condition: %w", err)
	}
	return nil
}

// writeThroughRoadConditionTx persists id rotation, coordinates, upstream
// timestamp and enrichment only; updated_at stays untouched.
func writeThroughRoadConditionTx(ctx context.Context, tx *sql.Tx, rc *models.RoadCondition) error {
	extraCameras, err := marshalExtraCameras(rc.ExtraCameras)
	if err != nil {
		return fmt.Errorf("failed to marshal extra cameras: %w", err)
	}
	weather, err := marshalWeather(rc.Weather)
	if err != nil {
		return fmt.Errorf("failed to marshal weather: %w", err)
	}

	_, err = tx.ExecContext(ctx, `UPDATE road_conditions SET
		condition_id = ?, upstream_timestamp = ?, latitude = ?, longitude = ?,
		camera_id = ?, camera_name = ?, snapshot_path = ?, extra_cameras = ?, weather = ?, external_camera_url = ?
	WHERE id = ?`,
		rc.ID, nullTime(rc.Timestamp), nullFloat(rc.Latitude), nullFloat(rc.Longitude),
		rc.CameraID, rc.CameraName, nullString(rc.SnapshotPath), extraCameras, weather, rc.ExternalCameraURL,
		rc.RowID,
	)
	if err != nil {
		return fmt.Errorf("failed to write through road condition: %w", err)
	}
	return nil
}

// scanRoadCondition scans one row in roadConditionColumns order.
func scanRoadCondition(sc scanner) (*models.RoadCondition, error) {
	var rc models.RoadCondition
	var startTime, endTime, upstreamTS sql.NullTime
	var lat, lon sql.NullFloat64
	var snapshotPath, extraCameras, weather sql.NullString

	err := sc.Scan(
		&rc.RowID, &rc.ID, &rc.RoadNumber, &rc.CountyNo, &rc.ConditionCode, &rc.ConditionText,
		&rc.Measure, &rc.Warning, &rc.Cause, &rc.LocationText,
		&startTime, &endTime, &upstreamTS, &lat, &lon,
		&rc.CameraID, &rc.CameraName, &snapshotPath, &extraCameras, &weather, &rc.ExternalCameraURL,
		&rc.PublishedToBroker, &rc.CreatedAt, &rc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rc.StartTime = timePtr(startTime)
	rc.EndTime = timePtr(endTime)
	rc.Timestamp = timePtr(upstreamTS)
	rc.Latitude = floatPtr(lat)
	rc.Longitude = floatPtr(lon)
	rc.SnapshotPath = stringPtr(snapshotPath)

	if rc.ExtraCameras, err = unmarshalExtraCameras(extraCameras); err != nil {
		return nil, fmt.Errorf("failed to unmarshal extra cameras for %s: %w", rc.ID, err)
	}
	if rc.Weather, err = unmarshalWeather(weather); err != nil {
		return nil, fmt.Errorf("failed to unmarshal weather for %s: %w", rc.ID, err)
	}

	return &rc, nil
}

// FindRoadCondition returns the stored row the given entity maps to, using
// the same two-stage lookup as the upsert, or ErrNotFound. The enricher uses
// it to read prior state without writing.
func (db *DB) FindRoadCondition(ctx context.Context, rc *models.RoadCondition) (*models.RoadCondition, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	found, err := findRoadCondition(ctx, db.conn, rc)
	if errors.Is(err, ErrNotFound) {
		metrics.RecordDBQuery("select", "road_conditions", time.Since(start), nil)
		return nil, err
	}
	metrics.RecordDBQuery("select", "road_conditions", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return found, nil
}

// GetRoadConditions returns road conditions matching the filter, most
// recently updated first.
func (db *DB) GetRoadConditions(ctx context.Context, filter RoadConditionFilter) ([]models.RoadCondition, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	clauses, args := filter.conditions()
	query := `SELECT ` + roadConditionColumns + ` FROM road_conditions` +
		whereSQL(clauses) + ` ORDER BY updated_at DESC` +
		limitOffsetSQL(filter.Limit, filter.Offset, &args)

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, args...)
	metrics.RecordDBQuery("select", "road_conditions", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query road conditions: %w", err)
	}
	defer closeQuietly(rows)

	conditions := []models.RoadCondition{}
	for rows.Next() {
		rc, err := scanRoadCondition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan road condition: %w", err)
		}
		conditions = append(conditions, *rc)
	}
	return conditions, rows.Err()
}

// MarkRoadConditionPublished records a successful broker publish, keyed by
// the stable row id since the upstream id rotates.
func (db *DB) MarkRoadConditionPublished(ctx context.Context, rowID int64) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	_, err := db.conn.ExecContext(ctx,
		`UPDATE road_conditions SET published_to_broker = 1 WHERE id = ?`, rowID)
	metrics.RecordDBQuery("update", "road_conditions", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to mark road condition %d published: %w", rowID, err)
	}
	return nil
}
