// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/trafikinfo/trafikinfo/internal/metrics"
	"github.com/trafikinfo/trafikinfo/internal/models"
)

const weatherStationColumns = `id, name, latitude, longitude, county_no,
	air_temperature, wind_speed, wind_direction, last_updated`

// UpsertWeatherStations writes the freshly fetched station batch; existing
// rows are updated in place. Returns the number of stations written.
func (db *DB) UpsertWeatherStations(ctx context.Context, stations []models.WeatherStation) (int, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		for i := range stations {
			st := &stations[i]
			_, err := tx.ExecContext(ctx, `INSERT INTO weather_stations (
				id, name, latitude, longitude, county_no,
				air_temperature, wind_speed, wind_direction, last_updated
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				latitude = excluded.latitude,
				longitude = excluded.longitude,
				county_no = excluded.county_no,
				air_temperature = excluded.air_temperature,
				wind_speed = excluded.wind_speed,
				wind_direction = excluded.wind_direction,
				last_updated = excluded.last_updated`,
				st.ID, st.Name, st.Latitude, st.Longitude, st.CountyNo,
				nullFloat(st.AirTemperature), nullFloat(st.WindSpeed), st.WindDirection, nullTime(st.LastUpdated),
			)
			if err != nil {
				return fmt.Errorf("failed to upsert weather station %s: %w", st.ID, err)
			}
		}
		return nil
	})
	metrics.RecordDBQuery("sync", "weather_stations", time.Since(start), err)
	if err != nil {
		return 0, err
	}
	return len(stations), nil
}

// GetWeatherStations returns the stations for the given counties, or all
// stations when counties is empty.
func (db *DB) GetWeatherStations(ctx context.Context, counties []int) ([]models.WeatherStation, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT ` + weatherStationColumns + ` FROM weather_stations`
	var args []any
	if len(counties) > 0 {
		marks := make([]string, len(counties))
		for i, c := range counties {
			marks[i] = "?"
			args = append(args, c)
		}
		query += ` WHERE county_no IN (` + strings.Join(marks, ", ") + `)`
	}
	query += ` ORDER BY id`

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, args...)
	metrics.RecordDBQuery("select", "weather_stations", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query weather stations: %w", err)
	}
	defer closeQuietly(rows)

	stations := []models.WeatherStation{}
	for rows.Next() {
		var st models.WeatherStation
		var temp, wind sql.NullFloat64
		var lastUpdated sql.NullTime

		err := rows.Scan(
			&st.ID, &st.Name, &st.Latitude, &st.Longitude, &st.CountyNo,
			&temp, &wind, &st.WindDirection, &lastUpdated,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan weather station: %w", err)
		}

		st.AirTemperature = floatPtr(temp)
		st.WindSpeed = floatPtr(wind)
		st.LastUpdated = timePtr(lastUpdated)
		stations = append(stations, st)
	}
	return stations, rows.Err()
}
