// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package trafikverket

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// Object types understood by this client. The values double as the
// objecttype attribute in queries and as metric labels.
const (
	ObjectSituation           = "Situation"
	ObjectRoadCondition       = "RoadCondition"
	ObjectCamera              = "Camera"
	ObjectWeatherMeasurepoint = "WeatherMeasurepoint"
	ObjectIcon                = "Icon"
)

// objectSpec pins the schema version and county filter field per object
// type. Situation objects nest the county under Deviation; everything else
// filters on the top-level CountyNo.
type objectSpec struct {
	schemaVersion string
	filterField   string
	namespace     string
}

var objectSpecs = map[string]objectSpec{
	ObjectSituation:           {schemaVersion: "1.5", filterField: "Deviation.CountyNo"},
	ObjectRoadCondition:       {schemaVersion: "1.2", filterField: "CountyNo"},
	ObjectCamera:              {schemaVersion: "1.1", filterField: "CountyNo"},
	ObjectWeatherMeasurepoint: {schemaVersion: "2.1", filterField: "CountyNo"},
	ObjectIcon:                {schemaVersion: "1.1", filterField: ""},
}

// buildQuery renders the XML request body for one object type. With sseURL
// set the response carries a stream URL instead of data. An empty county
// list means no FILTER element, which the API treats as nationwide.
func buildQuery(apiKey, objectType string, counties []int, sseURL bool) (string, error) {
	spec, ok := objectSpecs[objectType]
	if !ok {
		return "", fmt.Errorf("unknown object type %q", objectType)
	}

	var b strings.Builder
	b.WriteString("<REQUEST>")
	fmt.Fprintf(&b, "<LOGIN authenticationkey='%s' />", escapeAttr(apiKey))
	fmt.Fprintf(&b, "<QUERY objecttype='%s' schemaversion='%s'", objectType, spec.schemaVersion)
	if spec.namespace != "" {
		fmt.Fprintf(&b, " namespace='%s'", spec.namespace)
	}
	if sseURL {
		b.WriteString(" sseurl='true'")
	}
	b.WriteString(">")
	if len(counties) > 0 && spec.filterField != "" {
		b.WriteString("<FILTER><OR>")
		for _, county := range counties {
			fmt.Fprintf(&b, "<EQ name=\"%s\" value=\"%d\" />", spec.filterField, county)
		}
		b.WriteString("</OR></FILTER>")
	}
	b.WriteString("</QUERY></REQUEST>")
	return b.String(), nil
}

// escapeAttr escapes a value for use inside an XML attribute.
func escapeAttr(v string) string {
	var b strings.Builder
	if err := xml.EscapeText(&b, []byte(v)); err != nil {
		return ""
	}
	return b.String()
}
