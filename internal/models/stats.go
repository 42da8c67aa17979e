// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package models

import (
	"time"
)

// Stats is the aggregate counters document served by the stats endpoint.
//
// Example response:
//
//	{
//	  "total_incidents": 412,
//	  "incidents_by_severity": {"2": 120, "3": 210, "4": 80, "5": 2},
//	  "incidents_by_county": [{"county_no": 1, "county": "Stockholm", "count": 97}],
//	  "active_road_conditions": 34,
//	  "history_rows": 1890,
//	  "last_event_time": "2026-01-12T08:45:00Z"
//	}
type Stats struct {
	TotalIncidents       int            `json:"total_incidents"`
	IncidentsBySeverity  map[string]int `json:"incidents_by_severity"`
	IncidentsByCounty    []CountyStats  `json:"incidents_by_county"`
	ActiveRoadConditions int            `json:"active_road_conditions"`
	HistoryRows          int            `json:"history_rows"`
	LastEventTime        *time.Time     `json:"last_event_time,omitempty"`
}

// CountyStats is one county's incident count, with the display name resolved
// from the county table.
type CountyStats struct {
	CountyNo int    `json:"county_no"`
	County   string `json:"county"`
	Count    int    `json:"count"`
}
