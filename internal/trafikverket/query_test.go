// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package trafikverket

import (
	"strings"
	"testing"
)

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name       string
		objectType string
		counties   []int
		sseURL     bool
		contains   []string
		excludes   []string
	}{
		{
			name:       "situation stream filters on deviation county",
			objectType: ObjectSituation,
			counties:   []int{1, 4},
			sseURL:     true,
			contains: []string{
				"objecttype='Situation'",
				"schemaversion='1.5'",
				"sseurl='true'",
				`<EQ name="Deviation.CountyNo" value="1" />`,
				`<EQ name="Deviation.CountyNo" value="4" />`,
				"<OR>",
			},
		},
		{
			name:       "road condition filters on top-level county",
			objectType: ObjectRoadCondition,
			counties:   []int{14},
			sseURL:     true,
			contains: []string{
				"schemaversion='1.2'",
				`<EQ name="CountyNo" value="14" />`,
			},
		},
		{
			name:       "camera one-shot has no sseurl",
			objectType: ObjectCamera,
			counties:   nil,
			sseURL:     false,
			contains:   []string{"schemaversion='1.1'"},
			excludes:   []string{"sseurl", "<FILTER>"},
		},
		{
			name:       "weather measure point schema",
			objectType: ObjectWeatherMeasurepoint,
			counties:   []int{1},
			sseURL:     false,
			contains:   []string{"schemaversion='2.1'", `<EQ name="CountyNo" value="1" />`},
		},
		{
			name:       "icon never filters",
			objectType: ObjectIcon,
			counties:   []int{1, 4},
			sseURL:     false,
			contains:   []string{"schemaversion='1.1'"},
			excludes:   []string{"<FILTER>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, err := buildQuery("secret-key", tt.objectType, tt.counties, tt.sseURL)
			if err != nil {
				t.Fatalf("buildQuery() error = %v", err)
			}
			if !strings.Contains(query, "authenticationkey='secret-key'") {
				t.Errorf("query missing login: %s", query)
			}
			for _, want := range tt.contains {
				if !strings.Contains(query, want) {
					t.Errorf("query missing %q:\n%s", want, query)
				}
			}
			for _, bad := range tt.excludes {
				if strings.Contains(query, bad) {
					t.Errorf("query unexpectedly contains %q:\n%s", bad, query)
				}
			}
		})
	}
}

func TestBuildQueryUnknownType(t *testing.T) {
	if _, err := buildQuery("k", "Ferry", nil, true); err == nil {
		t.Error("buildQuery() accepted unknown object type")
	}
}

func TestBuildQueryEscapesKey(t *testing.T) {
	query, err := buildQuery("a<b&c", ObjectCamera, nil, false)
	if err != nil {
		t.Fatalf("buildQuery() error = %v", err)
	}
	if strings.Contains(query, "a<b") {
		t.Errorf("api key not escaped: %s", query)
	}
	if !strings.Contains(query, "a&lt;b&amp;c") {
		t.Errorf("expected escaped key in %s", query)
	}
}
