// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package database

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/trafikinfo/trafikinfo/internal/metrics"
	"github.com/trafikinfo/trafikinfo/internal/models"
)

// UpsertClientInterest registers or refreshes a live viewer's county
// interest, bumping last_active to now.
func (db *DB) UpsertClientInterest(ctx context.Context, clientID string, counties []int) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	_, err := db.conn.ExecContext(ctx, `INSERT INTO client_interests (client_id, counties, last_active)
		VALUES (?, ?, ?)
		ON CONFLICT(client_id) DO UPDATE SET
			counties = excluded.counties,
			last_active = excluded.last_active`,
		clientID, countiesToCSV(counties), time.Now().UTC(),
	)
	metrics.RecordDBQuery("upsert", "client_interests", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to upsert client interest: %w", err)
	}
	return nil
}

// GetActiveClientCounties returns the distinct counties wanted by viewers
// whose interest was refreshed within ttl.
func (db *DB) GetActiveClientCounties(ctx context.Context, ttl time.Duration) ([]int, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	cutoff := time.Now().UTC().Add(-ttl)
	rows, err := db.conn.QueryContext(ctx,
		`SELECT counties FROM client_interests WHERE last_active >= ?`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query client interests: %w", err)
	}
	defer closeQuietly(rows)

	seen := make(map[int]bool)
	for rows.Next() {
		var csv string
		if err := rows.Scan(&csv); err != nil {
			return nil, fmt.Errorf("failed to scan client interest: %w", err)
		}
		for _, c := range csvToCounties(csv) {
			seen[c] = true
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var counties []int
	for c := range seen {
		counties = append(counties, c)
	}
	return counties, nil
}

// DeleteExpiredClientInterests prunes rows idle past ttl and returns how
// many were removed.
func (db *DB) DeleteExpiredClientInterests(ctx context.Context, ttl time.Duration) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	cutoff := time.Now().UTC().Add(-ttl)
	start := time.Now()
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM client_interests WHERE last_active < ?`, cutoff)
	metrics.RecordDBQuery("delete", "client_interests", time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired client interests: %w", err)
	}
	return res.RowsAffected()
}

// InterestCounties computes the sorted union of active client interests and
// push subscription counties. This is the set the worker manager compares
// each tick to decide whether to restart the upstream consumers.
//
// A push subscription with no explicit counties watches every county the
// clients could select, so the full known county set is returned in that
// case. An empty result means nobody is watching and the consumers stop.
func (db *DB) InterestCounties(ctx context.Context, clientTTL time.Duration) ([]int, error) {
	clientCounties, err := db.GetActiveClientCounties(ctx, clientTTL)
	if err != nil {
		return nil, err
	}

	pushCounties, allCounties, err := db.GetPushSubscriptionCounties(ctx)
	if err != nil {
		return nil, err
	}

	if allCounties {
		union := make([]int, 0, len(models.CountyNames))
		for c := range models.CountyNames {
			union = append(union, c)
		}
		sort.Ints(union)
		return union, nil
	}

	seen := make(map[int]bool)
	for _, c := range clientCounties {
		seen[c] = true
	}
	for _, c := range pushCounties {
		seen[c] = true
	}

	union := make([]int, 0, len(seen))
	for c := range seen {
		union = append(union, c)
	}
	sort.Ints(union)
	return union, nil
}
