// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package normalize

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/trafikinfo/trafikinfo/internal/logging"
	"github.com/trafikinfo/trafikinfo/internal/models"
)

func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

// batch wraps object JSON in the upstream envelope.
func batch(objectJSON string) []byte {
	return []byte(`{"RESPONSE":{"RESULT":[` + objectJSON + `]}}`)
}

func TestSituationsMergesDeviations(t *testing.T) {
	// Two deviations: descriptions "A" and "B", starts 10:00 and 09:30,
	// ends 12:00 and 12:45. Expect "A | B", earliest start, latest end.
	data := batch(`{"Situation":[{
		"Id":"SE_STA_TRISSID_1_100",
		"Deviation":[
			{
				"Header":"Trafikolycka E4",
				"Message":"A",
				"MessageType":"Olycka",
				"IconId":"accident",
				"SeverityCode":3,
				"SeverityText":"Påverkan",
				"RoadNumber":"E4",
				"StartTime":"2025-11-14T10:00:00.000+01:00",
				"EndTime":"2025-11-14T12:00:00.000+01:00",
				"TrafficRestrictionType":"Körfält blockerat",
				"CountyNo":[1,4],
				"Geometry":{"Point":{"WGS84":"POINT (18.07 59.33)"}}
			},
			{
				"Message":"B",
				"MessageType":"Olycka",
				"SeverityCode":4,
				"SeverityText":"Stor påverkan",
				"StartTime":"2025-11-14T09:30:00.000+01:00",
				"EndTime":"2025-11-14T12:45:00.000+01:00",
				"TrafficRestrictionType":"Hastighet nedsatt"
			}
		]
	}]}`)

	incidents, err := Situations(data)
	if err != nil {
		t.Fatalf("Situations() error = %v", err)
	}
	if len(incidents) != 1 {
		t.Fatalf("Situations() returned %d incidents, want 1", len(incidents))
	}

	inc := incidents[0]
	if inc.ExternalID != "SE_STA_TRISSID_1_100" {
		t.Errorf("ExternalID = %q", inc.ExternalID)
	}
	if inc.Description != "A | B" {
		t.Errorf("Description = %q, want \"A | B\"", inc.Description)
	}
	wantStart := time.Date(2025, 11, 14, 8, 30, 0, 0, time.UTC)
	if inc.StartTime == nil || !inc.StartTime.Equal(wantStart) {
		t.Errorf("StartTime = %v, want %v (earliest)", inc.StartTime, wantStart)
	}
	wantEnd := time.Date(2025, 11, 14, 11, 45, 0, 0, time.UTC)
	if inc.EndTime == nil || !inc.EndTime.Equal(wantEnd) {
		t.Errorf("EndTime = %v, want %v (latest)", inc.EndTime, wantEnd)
	}
	if inc.TrafficRestrictionType != "Körfält blockerat, Hastighet nedsatt" {
		t.Errorf("TrafficRestrictionType = %q", inc.TrafficRestrictionType)
	}
	if inc.MessageType != "Olycka" {
		t.Errorf("MessageType = %q, want deduplicated \"Olycka\"", inc.MessageType)
	}
	if inc.Title != "Trafikolycka E4" {
		t.Errorf("Title = %q, want first deviation header", inc.Title)
	}
	if inc.SeverityCode != 4 || inc.SeverityText != "Stor påverkan" {
		t.Errorf("severity = %d %q, want the most impactful deviation's", inc.SeverityCode, inc.SeverityText)
	}
	if inc.CountyNo != 1 {
		t.Errorf("CountyNo = %d, want first county of first deviation", inc.CountyNo)
	}
	if inc.Latitude == nil || *inc.Latitude != 59.33 || *inc.Longitude != 18.07 {
		t.Errorf("coordinates = %v,%v, want 59.33,18.07", inc.Latitude, inc.Longitude)
	}
	if inc.EventType != models.EventTypeRealtid {
		t.Errorf("EventType = %q, want realtid for an accident", inc.EventType)
	}
}

func TestSituationsTitleFallbackChain(t *testing.T) {
	tests := []struct {
		name      string
		deviation string
		want      string
	}{
		{
			name:      "header wins",
			deviation: `{"Header":"Kön växer","IconId":"roadwork","MessageType":"Vägarbete"}`,
			want:      "Kön växer",
		},
		{
			name:      "icon dictionary",
			deviation: `{"IconId":"roadwork","MessageType":"Underhållsarbete"}`,
			want:      "Vägarbete",
		},
		{
			name:      "joined message types",
			deviation: `{"IconId":"unknownIcon","MessageType":"Underhållsarbete"}`,
			want:      "Underhållsarbete",
		},
		{
			name:      "default",
			deviation: `{}`,
			want:      "Trafikhändelse",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := batch(`{"Situation":[{"Id":"S1","Deviation":[` + tt.deviation + `]}]}`)
			incidents, err := Situations(data)
			if err != nil {
				t.Fatalf("Situations() error = %v", err)
			}
			if len(incidents) != 1 {
				t.Fatalf("got %d incidents, want 1", len(incidents))
			}
			if incidents[0].Title != tt.want {
				t.Errorf("Title = %q, want %q", incidents[0].Title, tt.want)
			}
		})
	}
}

func TestSituationsEventType(t *testing.T) {
	data := batch(`{"Situation":[
		{"Id":"S1","Deviation":[{"IconId":"roadwork","MessageType":"Vägarbete"}]},
		{"Id":"S2","Deviation":[{"IconId":"accident","MessageType":"Olycka"}]}
	]}`)

	incidents, err := Situations(data)
	if err != nil {
		t.Fatalf("Situations() error = %v", err)
	}
	if len(incidents) != 2 {
		t.Fatalf("got %d incidents, want 2", len(incidents))
	}
	if incidents[0].EventType != models.EventTypePlanned {
		t.Errorf("roadwork EventType = %q, want planned", incidents[0].EventType)
	}
	if incidents[1].EventType != models.EventTypeRealtid {
		t.Errorf("accident EventType = %q, want realtid", incidents[1].EventType)
	}
}

func TestSituationsSkipsMalformed(t *testing.T) {
	data := batch(`{"Situation":[
		{"Id":"","Deviation":[{"Header":"no id"}]},
		{"Id":"S-ok","Deviation":[{"Header":"fine"}]},
		{"Id":"S-empty","Deviation":[]}
	]}`)

	incidents, err := Situations(data)
	if err != nil {
		t.Fatalf("Situations() error = %v", err)
	}
	if len(incidents) != 1 || incidents[0].ExternalID != "S-ok" {
		t.Errorf("got %d incidents, want only S-ok", len(incidents))
	}
}

func TestSituationsLineGeometry(t *testing.T) {
	data := batch(`{"Situation":[{"Id":"S1","Deviation":[{
		"Header":"Kö",
		"Geometry":{"Line":{"WGS84":"LINESTRING (17.63 59.19, 17.65 59.20)"}}
	}]}]}`)

	incidents, err := Situations(data)
	if err != nil {
		t.Fatalf("Situations() error = %v", err)
	}
	inc := incidents[0]
	if inc.Latitude == nil || *inc.Latitude != 59.19 || *inc.Longitude != 17.63 {
		t.Errorf("line geometry first pair = %v,%v, want 59.19,17.63", inc.Latitude, inc.Longitude)
	}
}

func TestSituationsEmptyBatch(t *testing.T) {
	_, err := Situations([]byte(`{"RESPONSE":{"RESULT":[]}}`))
	if !errors.Is(err, ErrEmptyBatch) {
		t.Errorf("error = %v, want ErrEmptyBatch", err)
	}
}

func TestSituationsInvalidJSON(t *testing.T) {
	if _, err := Situations([]byte(`{not json`)); err == nil {
		t.Error("Situations() accepted invalid JSON")
	}
}

func TestParseWKT(t *testing.T) {
	tests := []struct {
		name    string
		wkt     string
		wantLat float64
		wantLon float64
		wantOK  bool
	}{
		{name: "point", wkt: "POINT (18.07 59.33)", wantLat: 59.33, wantLon: 18.07, wantOK: true},
		{name: "line", wkt: "LINESTRING (17.6 59.1, 17.7 59.2)", wantLat: 59.1, wantLon: 17.6, wantOK: true},
		{name: "negative", wkt: "POINT (-0.12 51.5)", wantLat: 51.5, wantLon: -0.12, wantOK: true},
		{name: "garbage", wkt: "not geometry", wantOK: false},
		{name: "empty", wkt: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lat, lon, ok := parseWKT(tt.wkt)
			if ok != tt.wantOK {
				t.Fatalf("parseWKT(%q) ok = %v, want %v", tt.wkt, ok, tt.wantOK)
			}
			if ok && (lat != tt.wantLat || lon != tt.wantLon) {
				t.Errorf("parseWKT(%q) = %v,%v, want %v,%v", tt.wkt, lat, lon, tt.wantLat, tt.wantLon)
			}
		})
	}
}
