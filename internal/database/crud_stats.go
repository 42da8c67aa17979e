// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/trafikinfo/trafikinfo/internal/metrics"
	"github.com/trafikinfo/trafikinfo/internal/models"
)

// GetStats returns the aggregate counters for the stats endpoint. The five
// queries run outside a transaction; the counters are informational and a
// torn read across them is acceptable.
func (db *DB) GetStats(ctx context.Context) (*models.Stats, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	stats, err := db.collectStats(ctx)
	metrics.RecordDBQuery("select", "stats", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to collect stats: %w", err)
	}
	return stats, nil
}

func (db *DB) collectStats(ctx context.Context) (*models.Stats, error) {
	stats := &models.Stats{
		IncidentsBySeverity: make(map[string]int),
	}

	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM incidents`).Scan(&stats.TotalIncidents)
	if err != nil {
		return nil, err
	}

	err = db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM road_conditions`).Scan(&stats.ActiveRoadConditions)
	if err != nil {
		return nil, err
	}

	err = db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM incident_versions`).Scan(&stats.HistoryRows)
	if err != nil {
		return nil, err
	}

	var last sql.NullTime
	err = db.conn.QueryRowContext(ctx, `SELECT MAX(updated_at) FROM incidents`).Scan(&last)
	if err != nil {
		return nil, err
	}
	if last.Valid {
		t := last.Time.UTC()
		stats.LastEventTime = &t
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT severity_code, COUNT(*) FROM incidents GROUP BY severity_code`)
	if err != nil {
		return nil, err
	}
	defer closeQuietly(rows)
	for rows.Next() {
		var code, count int
		if err := rows.Scan(&code, &count); err != nil {
			return nil, err
		}
		stats.IncidentsBySeverity[strconv.Itoa(code)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	countyRows, err := db.conn.QueryContext(ctx,
		`SELECT county_no, COUNT(*) FROM incidents GROUP BY county_no ORDER BY COUNT(*) DESC`)
	if err != nil {
		return nil, err
	}
	defer closeQuietly(countyRows)
	for countyRows.Next() {
		var cs models.CountyStats
		if err := countyRows.Scan(&cs.CountyNo, &cs.Count); err != nil {
			return nil, err
		}
		cs.County = models.CountyName(cs.CountyNo)
		stats.IncidentsByCounty = append(stats.IncidentsByCounty, cs)
	}
	return stats, countyRows.Err()
}
