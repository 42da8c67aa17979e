// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package normalize

import (
	"encoding/base64"
	"fmt"
	"math"

	"github.com/goccy/go-json"

	"github.com/trafikinfo/trafikinfo/internal/logging"
	"github.com/trafikinfo/trafikinfo/internal/models"
)

// Cameras converts one Camera batch from the 24 h sync fetch. Cameras
// without usable coordinates are dropped since the spatial index cannot
// place them.
func Cameras(data []byte) ([]models.Camera, error) {
	result, err := unwrapResult(data)
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		Camera []rawCamera `json:"Camera"`
	}
	if err := json.Unmarshal(result, &wrapper); err != nil {
		return nil, fmt.Errorf("failed to decode camera batch: %w", err)
	}

	cameras := make([]models.Camera, 0, len(wrapper.Camera))
	for _, raw := range wrapper.Camera {
		lat, lon, ok := parseWKT(raw.Geometry.wkt())
		if raw.ID == "" || !ok {
			logging.Debug().Str("camera_id", raw.ID).Msg("Skipping camera without id or geometry")
			continue
		}

		cam := models.Camera{
			ID:        raw.ID,
			Name:      raw.Name,
			Type:      raw.Type,
			PhotoURL:  raw.PhotoURL,
			PhotoTime: parseTime(raw.PhotoTime),
			Latitude:  lat,
			Longitude: lon,
			CountyNo:  firstCounty(raw.CountyNo),
		}
		if raw.HasFullSizePhoto && raw.PhotoURL != "" {
			cam.FullsizeURL = raw.PhotoURL + "?type=fullsize"
		}
		cameras = append(cameras, cam)
	}
	return cameras, nil
}

// WeatherStations converts one WeatherMeasurepoint batch from the 15 min
// sync fetch. Wind direction degrees become 16-point compass letters.
func WeatherStations(data []byte) ([]models.WeatherStation, error) {
	result, err := unwrapResult(data)
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		WeatherMeasurepoint []rawMeasurepoint `json:"WeatherMeasurepoint"`
	}
	if err := json.Unmarshal(result, &wrapper); err != nil {
		return nil, fmt.Errorf("failed to decode weather batch: %w", err)
	}

	stations := make([]models.WeatherStation, 0, len(wrapper.WeatherMeasurepoint))
	for _, raw := range wrapper.WeatherMeasurepoint {
		lat, lon, ok := parseWKT(raw.Geometry.wkt())
		if raw.ID == "" || !ok {
			logging.Debug().Str("station_id", raw.ID).Msg("Skipping measure point without id or geometry")
			continue
		}

		st := models.WeatherStation{
			ID:             raw.ID,
			Name:           raw.Name,
			Latitude:       lat,
			Longitude:      lon,
			CountyNo:       firstCounty(raw.CountyNo),
			AirTemperature: raw.Observation.Air.Temperature.Value,
			LastUpdated:    parseTime(raw.Observation.Sample),
		}
		if len(raw.Observation.Wind) > 0 {
			wind := raw.Observation.Wind[0]
			st.WindSpeed = wind.Speed.Value
			if wind.Direction.Value != nil {
				st.WindDirection = CompassDirection(*wind.Direction.Value)
			}
		}
		stations = append(stations, st)
	}
	return stations, nil
}

// Icon is one upstream map icon with its decoded PNG bytes.
type Icon struct {
	ID  string
	PNG []byte
}

// Icons converts one Icon batch. Icons whose base64 payload does not
// decode are skipped.
func Icons(data []byte) ([]Icon, error) {
	result, err := unwrapResult(data)
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		Icon []rawIcon `json:"Icon"`
	}
	if err := json.Unmarshal(result, &wrapper); err != nil {
		return nil, fmt.Errorf("failed to decode icon batch: %w", err)
	}

	icons := make([]Icon, 0, len(wrapper.Icon))
	for _, raw := range wrapper.Icon {
		if raw.ID == "" || raw.Base64 == "" {
			continue
		}
		png, err := base64.StdEncoding.DecodeString(raw.Base64)
		if err != nil {
			logging.Warn().Str("icon_id", raw.ID).Err(err).Msg("Skipping icon with invalid base64")
			continue
		}
		icons = append(icons, Icon{ID: raw.ID, PNG: png})
	}
	return icons, nil
}

// compassPoints is the 16-point compass rose, clockwise from north.
var compassPoints = []string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

// CompassDirection converts wind direction degrees to the nearest 16-point
// compass letters. Degrees are normalized into [0, 360).
func CompassDirection(degrees float64) string {
	d := math.Mod(degrees, 360)
	if d < 0 {
		d += 360
	}
	idx := int(math.Round(d/22.5)) % len(compassPoints)
	return compassPoints[idx]
}
