// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package models

import (
	"time"
)

// Camera types as reported by the upstream.
const (
	CameraTypeRoad = "roadCamera"
	CameraTypeFlow = "flowCamera"
)

// Camera is an upstream road camera. Rows are created and updated by the
// 24 h camera sync loop; IsFavorite is the only field the UI may mutate and
// is preserved across syncs.
type Camera struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Type        string     `json:"type"`
	PhotoURL    string     `json:"photo_url"`
	FullsizeURL string     `json:"fullsize_url,omitempty"`
	PhotoTime   *time.Time `json:"photo_time"`
	Latitude    float64    `json:"latitude"`
	Longitude   float64    `json:"longitude"`
	CountyNo    int        `json:"county_no"`
	IsFavorite  bool       `json:"is_favorite"`
}

// WeatherStation is an upstream weather measure point. Rows are refreshed by
// the 15 min weather sync loop for the active counties.
type WeatherStation struct {
	ID        string  `json:"id"`
	Name      string  `json:"name,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	CountyNo  int     `json:"county_no"`

	AirTemperature *float64 `json:"air_temperature"`
	WindSpeed      *float64 `json:"wind_speed"`
	// WindDirection is a 16-point compass direction ("N", "NNE", ...).
	WindDirection string     `json:"wind_direction,omitempty"`
	LastUpdated   *time.Time `json:"last_updated"`
}
