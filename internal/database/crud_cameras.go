// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/trafikinfo/trafikinfo/internal/metrics"
	"github.com/trafikinfo/trafikinfo/internal/models"
)

const cameraColumns = `id, name, type, photo_url, fullsize_url, photo_time,
	latitude, longitude, county_no, is_favorite`

// SyncCameras replaces the camera metadata for the given counties with the
// freshly fetched batch. is_favorite is owned by the UI and survives the
// refresh; cameras the upstream no longer reports are removed. Returns the
// number of cameras written.
func (db *DB) SyncCameras(ctx context.Context, counties []int, cams []models.Camera) (int, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		for i := range cams {
			cam := &cams[i]
			_, err := tx.ExecContext(ctx, `INSERT INTO cameras (
				id, name, type, photo_url, fullsize_url, photo_time,
				latitude, longitude, county_no, is_favorite
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				type = excluded.type,
				photo_url = excluded.photo_url,
				fullsize_url = excluded.fullsize_url,
				photo_time = excluded.photo_time,
				latitude = excluded.latitude,
				longitude = excluded.longitude,
				county_no = excluded.county_no`,
				cam.ID, cam.Name, cam.Type, cam.PhotoURL, cam.FullsizeURL, nullTime(cam.PhotoTime),
				cam.Latitude, cam.Longitude, cam.CountyNo,
			)
			if err != nil {
				return fmt.Errorf("failed to upsert camera %s: %w", cam.ID, err)
			}
		}
		return deleteStaleCamerasTx(ctx, tx, counties, cams)
	})
	metrics.RecordDBQuery("sync", "cameras", time.Since(start), err)
	if err != nil {
		return 0, err
	}
	return len(cams), nil
}

// deleteStaleCamerasTx removes cameras in the synced counties that the
// upstream batch no longer contains. Counties outside the sync are left
// alone so their favorites survive interest changes.
func deleteStaleCamerasTx(ctx context.Context, tx *sql.Tx, counties []int, cams []models.Camera) error {
	if len(counties) == 0 {
		return nil
	}

	args := make([]any, 0, len(counties)+len(cams))
	countyMarks := make([]string, len(counties))
	for i, c := range counties {
		countyMarks[i] = "?"
		args = append(args, c)
	}

	query := `DELETE FROM cameras WHERE county_no IN (` + strings.Join(countyMarks, ", ") + `)`
	if len(cams) > 0 {
		idMarks := make([]string, len(cams))
		for i := range cams {
			idMarks[i] = "?"
			args = append(args, cams[i].ID)
		}
		query += ` AND id NOT IN (` + strings.Join(idMarks, ", ") + `)`
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete stale cameras: %w", err)
	}
	return nil
}

// GetCameras returns cameras matching the filter, ordered by name.
func (db *DB) GetCameras(ctx context.Context, filter CameraFilter) ([]models.Camera, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	clauses, args := filter.conditions()
	query := `SELECT ` + cameraColumns + ` FROM cameras` + whereSQL(clauses) + ` ORDER BY name, id`

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, args...)
	metrics.RecordDBQuery("select", "cameras", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query cameras: %w", err)
	}
	defer closeQuietly(rows)

	cameras := []models.Camera{}
	for rows.Next() {
		cam, err := scanCamera(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan camera: %w", err)
		}
		cameras = append(cameras, *cam)
	}
	return cameras, rows.Err()
}

// GetCameraByID returns one camera, or ErrNotFound.
func (db *DB) GetCameraByID(ctx context.Context, id string) (*models.Camera, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+cameraColumns+` FROM cameras WHERE id = ?`, id)
	cam, err := scanCamera(row)

	if errors.Is(err, sql.ErrNoRows) {
		metrics.RecordDBQuery("select", "cameras", time.Since(start), nil)
		return nil, fmt.Errorf("camera %s: %w", id, ErrNotFound)
	}
	metrics.RecordDBQuery("select", "cameras", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to get camera %s: %w", id, err)
	}
	return cam, nil
}

// ToggleCameraFavorite flips is_favorite and returns the new value, or
// ErrNotFound for an unknown camera.
func (db *DB) ToggleCameraFavorite(ctx context.Context, id string) (bool, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var favorite bool
	start := time.Now()
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE cameras SET is_favorite = NOT is_favorite WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to toggle favorite: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("camera %s: %w", id, ErrNotFound)
		}
		return tx.QueryRowContext(ctx,
			`SELECT is_favorite FROM cameras WHERE id = ?`, id).Scan(&favorite)
	})
	metrics.RecordDBQuery("update", "cameras", time.Since(start), err)
	if err != nil {
		return false, err
	}
	return favorite, nil
}

func scanCamera(sc scanner) (*models.Camera, error) {
	var cam models.Camera
	var photoTime sql.NullTime

	err := sc.Scan(
		&cam.ID, &cam.Name, &cam.Type, &cam.PhotoURL, &cam.FullsizeURL, &photoTime,
		&cam.Latitude, &cam.Longitude, &cam.CountyNo, &cam.IsFavorite,
	)
	if err != nil {
		return nil, err
	}

	cam.PhotoTime = timePtr(photoTime)
	return &cam, nil
}
