// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package models

import (
	"time"
)

// Incident event types. Planned events are scheduled roadworks; everything
// else (accidents, obstacles, closures) is real-time.
const (
	EventTypeRealtid = "realtid"
	EventTypePlanned = "planned"
)

// Incident is an active or scheduled traffic situation, produced by collapsing
// one upstream situation (with one or more deviations) into a single entity.
//
// ExternalID is the stable upstream situation identifier and the unique key.
// Coordinates are either both set or both nil. TemporaryLimit and
// TrafficRestrictionType hold comma-joined multi-values in first-seen order.
//
// Example JSON:
//
//	{
//	  "external_id": "SE_STA_TRISSID_1_14710960",
//	  "event_type": "realtid",
//	  "title": "Trafikolycka",
//	  "description": "Olycka med flera fordon | Ett körfält blockerat",
//	  "location": "E4 vid Trafikplats Rotebro",
//	  "severity_code": 4,
//	  "severity_text": "Stor påverkan",
//	  "county_no": 1,
//	  "latitude": 59.33,
//	  "longitude": 18.07,
//	  "camera_id": "SE_STA_CAMERA_12345",
//	  "snapshot_path": "1/SE_STA_TRISSID_1_14710960_1764316800.jpg"
//	}
type Incident struct {
	ID          int64  `json:"id"`
	ExternalID  string `json:"external_id"`
	EventType   string `json:"event_type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location"`

	IconID       string `json:"icon_id,omitempty"`
	MessageType  string `json:"message_type,omitempty"`
	SeverityCode int    `json:"severity_code"`
	SeverityText string `json:"severity_text,omitempty"`

	RoadNumber string     `json:"road_number,omitempty"`
	StartTime  *time.Time `json:"start_time"`
	EndTime    *time.Time `json:"end_time"`

	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	CountyNo  int      `json:"county_no"`

	TemporaryLimit         string `json:"temporary_limit,omitempty"`
	TrafficRestrictionType string `json:"traffic_restriction_type,omitempty"`

	Enrichment

	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
	PublishedToBroker bool      `json:"published_to_broker"`

	// HistoryCount is populated on API reads only; it is the number of
	// version rows recorded for this incident.
	HistoryCount int `json:"history_count,omitempty"`
}

// Kind implements Entity.
func (i *Incident) Kind() EntityKind { return KindIncident }

// Key implements Entity; incidents are keyed by their upstream situation id.
func (i *Incident) Key() string { return i.ExternalID }

// County implements Entity.
func (i *Incident) County() int { return i.CountyNo }

// Coordinates implements Entity. ok is false unless both coordinates are set.
func (i *Incident) Coordinates() (lat, lon float64, ok bool) {
	if i.Latitude == nil || i.Longitude == nil {
		return 0, 0, false
	}
	return *i.Latitude, *i.Longitude, true
}

// IncidentVersion is an immutable historical snapshot of an Incident's fields
// prior to a significant change. Keyed by (external_id, version_timestamp).
type IncidentVersion struct {
	VersionTimestamp time.Time `json:"version_timestamp"`
	Incident
}

// SeverityTexts maps upstream severity codes to their Swedish display text.
// Used as a fallback when the upstream omits SeverityText.
var SeverityTexts = map[int]string{
	1: "Ingen påverkan",
	2: "Liten påverkan",
	3: "Påverkan",
	4: "Stor påverkan",
	5: "Mycket stor påverkan",
}

// ValidSeverity reports whether code is inside the upstream severity range.
func ValidSeverity(code int) bool {
	return code >= 1 && code <= 5
}
