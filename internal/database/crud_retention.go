// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/trafikinfo/trafikinfo/internal/metrics"
)

// DeleteIncidentsOlderThan removes incidents whose updated_at predates the
// cutoff, together with their version rows, and returns the snapshot paths
// (primary and extra cameras) the deleted rows referenced so the caller can
// remove the files.
func (db *DB) DeleteIncidentsOlderThan(ctx context.Context, cutoff time.Time) (int64, []string, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	var deleted int64
	var paths []string
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var txErr error
		deleted, paths, txErr = deleteExpiredIncidentsTx(ctx, tx, cutoff)
		return txErr
	})
	metrics.RecordDBQuery("delete", "incidents", time.Since(start), err)

	if err != nil {
		return 0, nil, fmt.Errorf("failed to delete expired incidents: %w", err)
	}
	if deleted > 0 {
		metrics.RecordRetentionDelete("incidents", deleted)
	}
	return deleted, paths, nil
}

func deleteExpiredIncidentsTx(ctx context.Context, tx *sql.Tx, cutoff time.Time) (int64, []string, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT snapshot_path, extra_cameras FROM incidents WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, nil, err
	}
	defer closeQuietly(rows)

	var paths []string
	for rows.Next() {
		var snapshot, extras sql.NullString
		if err := rows.Scan(&snapshot, &extras); err != nil {
			return 0, nil, err
		}
		if snapshot.Valid && snapshot.String != "" {
			paths = append(paths, snapshot.String)
		}
		cams, err := unmarshalExtraCameras(extras)
		if err != nil {
			return 0, nil, err
		}
		for _, cam := range cams {
			if cam.SnapshotPath != nil && *cam.SnapshotPath != "" {
				paths = append(paths, *cam.SnapshotPath)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return 0, nil, err
	}

	versions, err := tx.ExecContext(ctx,
		`DELETE FROM incident_versions WHERE external_id IN
			(SELECT external_id FROM incidents WHERE updated_at < ?)`, cutoff)
	if err != nil {
		return 0, nil, err
	}
	if n, err := versions.RowsAffected(); err == nil && n > 0 {
		metrics.RecordRetentionDelete("incident_versions", n)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM incidents WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, nil, err
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, nil, err
	}
	return deleted, paths, nil
}

// ResetData truncates the event tables. Settings, push subscriptions,
// cameras and weather stations survive a reset.
func (db *DB) ResetData(ctx context.Context) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"incident_versions", "incidents", "road_conditions"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
				return fmt.Errorf("failed to truncate %s: %w", table, err)
			}
		}
		return nil
	})
	metrics.RecordDBQuery("delete", "reset", time.Since(start), err)
	return err
}
