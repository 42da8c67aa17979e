// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

/*
database_utils.go - Scan and Serialization Helpers

SQLite has no native NULL-aware Go pointer mapping and no JSON column type,
so this file centralizes the conversions the CRUD files share:

  - sql.Null* <-> pointer helpers for nullable timestamps, floats and strings
  - CSV helpers for county-number lists (push subscriptions, client interests)
  - JSON helpers for the enrichment documents (extra_cameras, weather)

The JSON helpers use goccy/go-json, matching the serializer used everywhere
else in the codebase.
*/

//nolint:staticcheck // File documentation, not package doc
package database

import (
	"database/sql"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/trafikinfo/trafikinfo/internal/models"
)

// nullTime converts a *time.Time to a driver-friendly value.
func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

// timePtr converts a scanned sql.NullTime back to a *time.Time.
func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// nullFloat converts a *float64 to a driver-friendly value.
func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

// floatPtr converts a scanned sql.NullFloat64 back to a *float64.
func floatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	f := nf.Float64
	return &f
}

// nullString converts a *string to a driver-friendly value. Empty strings
// stay distinct from NULL: a snapshot_path of "" never occurs, but NULL
// means "no snapshot yet" and drives the enrichment retry rule.
func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// stringPtr converts a scanned sql.NullString back to a *string.
func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// countiesToCSV renders a county-number list as "1,4,14". The list is
// sorted so stored values compare deterministically.
func countiesToCSV(counties []int) string {
	if len(counties) == 0 {
		return ""
	}
	sorted := make([]int, len(counties))
	copy(sorted, counties)
	sort.Ints(sorted)

	parts := make([]string, len(sorted))
	for i, c := range sorted {
		parts[i] = strconv.Itoa(c)
	}
	return strings.Join(parts, ",")
}

// csvToCounties parses "1,4,14" back into a county-number list, skipping
// blanks and non-integers.
func csvToCounties(csv string) []int {
	if csv == "" {
		return nil
	}
	var counties []int
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			continue
		}
		counties = append(counties, n)
	}
	return counties
}

// marshalExtraCameras renders the extra-camera list as a JSON document, or
// nil when the list is empty.
func marshalExtraCameras(cams []models.ExtraCamera) (any, error) {
	if len(cams) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(cams)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// unmarshalExtraCameras parses a stored extra-camera document. A NULL or
// empty column yields a nil slice.
func unmarshalExtraCameras(ns sql.NullString) ([]models.ExtraCamera, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var cams []models.ExtraCamera
	if err := json.Unmarshal([]byte(ns.String), &cams); err != nil {
		return nil, err
	}
	return cams, nil
}

// marshalWeather renders the weather observation as a JSON document, or nil
// when absent.
func marshalWeather(w *models.WeatherObservation) (any, error) {
	if w == nil {
		return nil, nil
	}
	b, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// unmarshalWeather parses a stored weather document. A NULL or empty column
// yields nil.
func unmarshalWeather(ns sql.NullString) (*models.WeatherObservation, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var w models.WeatherObservation
	if err := json.Unmarshal([]byte(ns.String), &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// timePtrEqual compares two optional timestamps. Both nil is equal; one nil
// is not; otherwise compares instants regardless of location.
func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// floatPtrEqual compares two optional floats. Both nil is equal; one nil is
// not.
func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// stringPtrEqual compares two optional strings. Both nil is equal; one nil
// is not.
func stringPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
