// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package database

import (
	"fmt"
	"strings"
	"time"
)

// defaultQueryLimit caps list reads when the caller supplies no limit. The
// API layer applies its own paging on top.
const defaultQueryLimit = 1000

// IncidentFilter contains filter parameters for incident list reads.
//
// All fields are optional and combine with AND; Counties combine with OR
// within the field. A zero filter returns the most recently updated rows.
//
//   - Counties: match county_no against the set
//   - EventType: "realtid" or "planned"; empty matches both
//   - Hours: only rows updated within the last N hours
//   - Date: local calendar date (YYYY-MM-DD); matches rows whose start time
//     (or creation time when start is absent) falls on that day
type IncidentFilter struct {
	Counties  []int
	EventType string
	Hours     int
	Date      string
	Limit     int
	Offset    int
}

// conditions renders the filter as WHERE clauses plus args.
func (f IncidentFilter) conditions() ([]string, []any, error) {
	var clauses []string
	var args []any

	appendCountyClause(f.Counties, &clauses, &args)

	if f.EventType != "" {
		clauses = append(clauses, "event_type = ?")
		args = append(args, f.EventType)
	}

	if f.Hours > 0 {
		clauses = append(clauses, "updated_at >= ?")
		args = append(args, time.Now().UTC().Add(-time.Duration(f.Hours)*time.Hour))
	}

	if f.Date != "" {
		dayStart, err := time.Parse("2006-01-02", f.Date)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid date %q: %w", f.Date, err)
		}
		dayEnd := dayStart.AddDate(0, 0, 1)
		clauses = append(clauses, "COALESCE(start_time, created_at) >= ?", "COALESCE(start_time, created_at) < ?")
		args = append(args, dayStart, dayEnd)
	}

	return clauses, args, nil
}

// RoadConditionFilter contains filter parameters for road-condition list
// reads. Semantics match IncidentFilter where fields overlap.
type RoadConditionFilter struct {
	Counties []int
	Hours    int
	Limit    int
	Offset   int
}

// conditions renders the filter as WHERE clauses plus args.
func (f RoadConditionFilter) conditions() ([]string, []any) {
	var clauses []string
	var args []any

	appendCountyClause(f.Counties, &clauses, &args)

	if f.Hours > 0 {
		clauses = append(clauses, "updated_at >= ?")
		args = append(args, time.Now().UTC().Add(-time.Duration(f.Hours)*time.Hour))
	}

	return clauses, args
}

// CameraFilter contains filter parameters for camera list reads.
type CameraFilter struct {
	Counties      []int
	OnlyFavorites bool
}

// conditions renders the filter as WHERE clauses plus args.
func (f CameraFilter) conditions() ([]string, []any) {
	var clauses []string
	var args []any

	appendCountyClause(f.Counties, &clauses, &args)

	if f.OnlyFavorites {
		clauses = append(clauses, "is_favorite = 1")
	}

	return clauses, args
}

// appendCountyClause adds a county_no IN (...) clause for a non-empty county
// set. Unknown county numbers simply match nothing; validation for error
// messaging belongs to the API layer.
func appendCountyClause(counties []int, clauses *[]string, args *[]any) {
	if len(counties) == 0 {
		return
	}

	placeholders := make([]string, len(counties))
	for i, c := range counties {
		placeholders[i] = "?"
		*args = append(*args, c)
	}
	*clauses = append(*clauses, fmt.Sprintf("county_no IN (%s)", strings.Join(placeholders, ", ")))
}

// whereSQL joins accumulated clauses into a WHERE fragment, or returns the
// empty string when there are none.
func whereSQL(clauses []string) string {
	if len(clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(clauses, " AND ")
}

// limitOffsetSQL renders LIMIT/OFFSET with the default cap applied.
func limitOffsetSQL(limit, offset int, args *[]any) string {
	if limit <= 0 || limit > defaultQueryLimit {
		limit = defaultQueryLimit
	}
	sql := " LIMIT ?"
	*args = append(*args, limit)
	if offset > 0 {
		sql += " OFFSET ?"
		*args = append(*args, offset)
	}
	return sql
}
