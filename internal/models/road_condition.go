// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package models

import (
	"time"
)

// RoadCondition is a road-surface condition advisory.
//
// The upstream rotates the id while the semantic advisory persists, so the
// store deduplicates unknown ids against the key
// (road_number, condition_code, county_no, start_time) and updates the
// matching row in place instead of inserting.
type RoadCondition struct {
	RowID int64  `json:"-"`
	ID    string `json:"id"`

	RoadNumber    string `json:"road_number"`
	CountyNo      int    `json:"county_no"`
	ConditionCode int    `json:"condition_code"`
	ConditionText string `json:"condition_text"`

	Measure      string `json:"measure,omitempty"`
	Warning      string `json:"warning,omitempty"`
	Cause        string `json:"cause,omitempty"`
	LocationText string `json:"location_text,omitempty"`

	StartTime *time.Time `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
	Timestamp *time.Time `json:"timestamp"`

	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`

	Enrichment

	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
	PublishedToBroker bool      `json:"published_to_broker"`
}

// Kind implements Entity.
func (rc *RoadCondition) Kind() EntityKind { return KindRoadCondition }

// Key implements Entity; road conditions are keyed by the upstream id, which
// is unstable over time (see the dedup rule in the store).
func (rc *RoadCondition) Key() string { return rc.ID }

// County implements Entity.
func (rc *RoadCondition) County() int { return rc.CountyNo }

// Coordinates implements Entity. ok is false unless both coordinates are set.
func (rc *RoadCondition) Coordinates() (lat, lon float64, ok bool) {
	if rc.Latitude == nil || rc.Longitude == nil {
		return 0, 0, false
	}
	return *rc.Latitude, *rc.Longitude, true
}

// ConditionTexts maps upstream road condition codes to their Swedish display
// text. Used as a fallback when the upstream omits ConditionText.
var ConditionTexts = map[int]string{
	1: "Normalt väglag",
	2: "Besvärligt väglag",
	3: "Mycket besvärligt väglag",
	4: "Extremt besvärligt väglag",
}

// ValidConditionCode reports whether code is inside the upstream range.
func ValidConditionCode(code int) bool {
	return code >= 1 && code <= 4
}
