// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package normalize

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// ErrEmptyBatch is returned when the envelope decodes but carries no RESULT
// entry. Heartbeat lines on the push stream look like this.
var ErrEmptyBatch = errors.New("batch contains no result")

// envelope is the outer shape shared by stream records and query responses.
type envelope struct {
	Response struct {
		Result []json.RawMessage `json:"RESULT"`
	} `json:"RESPONSE"`
}

// unwrapResult returns the first RESULT object of a batch.
func unwrapResult(data []byte) (json.RawMessage, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode batch envelope: %w", err)
	}
	if len(env.Response.Result) == 0 {
		return nil, ErrEmptyBatch
	}
	return env.Response.Result[0], nil
}

// rawSituation is the upstream Situation object (schemaversion 1.5).
type rawSituation struct {
	ID        string         `json:"Id"`
	Deviation []rawDeviation `json:"Deviation"`
}

// rawDeviation is one deviation within a situation.
type rawDeviation struct {
	ID                     string      `json:"Id"`
	Header                 string      `json:"Header"`
	Message                string      `json:"Message"`
	MessageType            string      `json:"MessageType"`
	IconID                 string      `json:"IconId"`
	SeverityCode           int         `json:"SeverityCode"`
	SeverityText           string      `json:"SeverityText"`
	LocationDescriptor     string      `json:"LocationDescriptor"`
	RoadNumber             string      `json:"RoadNumber"`
	StartTime              string      `json:"StartTime"`
	EndTime                string      `json:"EndTime"`
	TemporaryLimit         string      `json:"TemporaryLimit"`
	TrafficRestrictionType string      `json:"TrafficRestrictionType"`
	CountyNo               []int       `json:"CountyNo"`
	Geometry               rawGeometry `json:"Geometry"`
}

// rawGeometry carries the WKT variants a deviation may use.
type rawGeometry struct {
	Point *struct {
		WGS84 string `json:"WGS84"`
	} `json:"Point"`
	Line *struct {
		WGS84 string `json:"WGS84"`
	} `json:"Line"`
	// WGS84 appears directly on road condition geometries.
	WGS84 string `json:"WGS84"`
}

// wkt returns whichever WKT string the geometry carries.
func (g rawGeometry) wkt() string {
	if g.Point != nil && g.Point.WGS84 != "" {
		return g.Point.WGS84
	}
	if g.Line != nil && g.Line.WGS84 != "" {
		return g.Line.WGS84
	}
	return g.WGS84
}

// rawRoadCondition is the upstream RoadCondition object (schemaversion 1.2).
type rawRoadCondition struct {
	ID            string      `json:"Id"`
	ConditionCode int         `json:"ConditionCode"`
	ConditionText string      `json:"ConditionText"`
	Measurement   string      `json:"Measurement"`
	Warning       []string    `json:"Warning"`
	Cause         string      `json:"Cause"`
	LocationText  string      `json:"LocationText"`
	RoadNumber    string      `json:"RoadNumber"`
	StartTime     string      `json:"StartTime"`
	EndTime       string      `json:"EndTime"`
	ModifiedTime  string      `json:"ModifiedTime"`
	CountyNo      []int       `json:"CountyNo"`
	Geometry      rawGeometry `json:"Geometry"`
}

// rawCamera is the upstream Camera object (schemaversion 1.1).
type rawCamera struct {
	ID               string      `json:"Id"`
	Name             string      `json:"Name"`
	Type             string      `json:"Type"`
	PhotoURL         string      `json:"PhotoUrl"`
	PhotoTime        string      `json:"PhotoTime"`
	HasFullSizePhoto bool        `json:"HasFullSizePhoto"`
	CountyNo         []int       `json:"CountyNo"`
	Geometry         rawGeometry `json:"Geometry"`
}

// rawMeasurepoint is the upstream WeatherMeasurepoint object
// (schemaversion 2.1). Observations nest per sensor group.
type rawMeasurepoint struct {
	ID          string      `json:"Id"`
	Name        string      `json:"Name"`
	CountyNo    []int       `json:"CountyNo"`
	Geometry    rawGeometry `json:"Geometry"`
	Observation struct {
		Sample string `json:"Sample"`
		Air    struct {
			Temperature struct {
				Value *float64 `json:"Value"`
			} `json:"Temperature"`
		} `json:"Air"`
		Wind []struct {
			Speed struct {
				Value *float64 `json:"Value"`
			} `json:"Speed"`
			Direction struct {
				Value *float64 `json:"Value"`
			} `json:"Direction"`
		} `json:"Wind"`
	} `json:"Observation"`
}

// rawIcon is the upstream Icon object (schemaversion 1.1). The PNG comes
// base64-encoded in the response.
type rawIcon struct {
	ID     string `json:"Id"`
	Base64 string `json:"Base64"`
}

// wktCoordinatePattern captures the first "lon lat" pair of a WKT POINT or
// LINESTRING. WKT puts longitude first.
var wktCoordinatePattern = regexp.MustCompile(`\(\s*(-?\d+(?:\.\d+)?)\s+(-?\d+(?:\.\d+)?)`)

// parseWKT extracts the first coordinate pair from a WKT geometry.
func parseWKT(wkt string) (lat, lon float64, ok bool) {
	m := wktCoordinatePattern.FindStringSubmatch(wkt)
	if m == nil {
		return 0, 0, false
	}
	lonVal, err1 := strconv.ParseFloat(m[1], 64)
	latVal, err2 := strconv.ParseFloat(m[2], 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return latVal, lonVal, true
}

// upstreamTimeLayouts covers the timestamp shapes the API emits.
var upstreamTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// parseTime parses an upstream timestamp, returning nil for empty or
// unparseable values.
func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range upstreamTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			utc := t.UTC()
			return &utc
		}
	}
	return nil
}

// firstCounty returns the first entry of an upstream county list, or 0.
func firstCounty(counties []int) int {
	if len(counties) == 0 {
		return 0
	}
	return counties[0]
}
