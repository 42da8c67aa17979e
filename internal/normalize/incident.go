// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package normalize

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/trafikinfo/trafikinfo/internal/logging"
	"github.com/trafikinfo/trafikinfo/internal/models"
)

// iconTitles maps upstream icon ids to Swedish titles, the second step of
// the title fallback chain.
var iconTitles = map[string]string{
	"roadwork":           "Vägarbete",
	"accident":           "Trafikolycka",
	"roadClosed":         "Avstängd väg",
	"vehicleObstruction": "Hinder på vägen",
	"obstruction":        "Hinder på vägen",
	"ferryDisruption":    "Färjestörning",
	"trafficMessage":     "Trafikmeddelande",
}

// defaultIncidentTitle is the last resort of the title fallback chain.
const defaultIncidentTitle = "Trafikhändelse"

// Situations converts one Situation batch into incidents, one per
// situation. Malformed situations are skipped with a log; the batch
// continues.
func Situations(data []byte) ([]*models.Incident, error) {
	result, err := unwrapResult(data)
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		Situation []json.RawMessage `json:"Situation"`
	}
	if err := json.Unmarshal(result, &wrapper); err != nil {
		return nil, fmt.Errorf("failed to decode situation batch: %w", err)
	}

	incidents := make([]*models.Incident, 0, len(wrapper.Situation))
	for _, raw := range wrapper.Situation {
		var sit rawSituation
		if err := json.Unmarshal(raw, &sit); err != nil {
			logging.Warn().Err(err).Msg("Skipping malformed situation")
			continue
		}
		inc := situationToIncident(sit)
		if inc == nil {
			continue
		}
		incidents = append(incidents, inc)
	}
	return incidents, nil
}

// situationToIncident collapses one situation's deviations into a single
// incident. Situations without deviations or without an id are dropped.
func situationToIncident(sit rawSituation) *models.Incident {
	if sit.ID == "" || len(sit.Deviation) == 0 {
		logging.Warn().Str("situation_id", sit.ID).Msg("Skipping situation without id or deviations")
		return nil
	}

	inc := &models.Incident{ExternalID: sit.ID}

	var descriptions, restrictions, messageTypes, limits uniqueList
	for _, dev := range sit.Deviation {
		descriptions.add(dev.Message)
		messageTypes.add(dev.MessageType)
		for _, part := range strings.Split(dev.TrafficRestrictionType, ", ") {
			restrictions.add(part)
		}
		for _, part := range strings.Split(dev.TemporaryLimit, ", ") {
			limits.add(part)
		}

		if start := parseTime(dev.StartTime); start != nil {
			if inc.StartTime == nil || start.Before(*inc.StartTime) {
				inc.StartTime = start
			}
		}
		if end := parseTime(dev.EndTime); end != nil {
			if inc.EndTime == nil || end.After(*inc.EndTime) {
				inc.EndTime = end
			}
		}

		if inc.Latitude == nil {
			if lat, lon, ok := parseWKT(dev.Geometry.wkt()); ok {
				inc.Latitude = &lat
				inc.Longitude = &lon
			}
		}

		if inc.Location == "" {
			inc.Location = dev.LocationDescriptor
		}
		if inc.RoadNumber == "" {
			inc.RoadNumber = dev.RoadNumber
		}
		if inc.IconID == "" {
			inc.IconID = dev.IconID
		}
		// The most impactful deviation decides the situation's severity.
		if dev.SeverityCode > inc.SeverityCode {
			inc.SeverityCode = dev.SeverityCode
			inc.SeverityText = dev.SeverityText
		}
	}

	inc.Description = descriptions.join(" | ")
	inc.MessageType = messageTypes.join(", ")
	inc.TrafficRestrictionType = restrictions.join(", ")
	inc.TemporaryLimit = limits.join(", ")
	inc.CountyNo = firstCounty(sit.Deviation[0].CountyNo)

	if inc.SeverityText == "" && inc.SeverityCode > 0 {
		inc.SeverityText = models.SeverityTexts[inc.SeverityCode]
	}

	inc.Title = incidentTitle(sit.Deviation[0], inc.MessageType)
	inc.EventType = eventType(inc.IconID, inc.MessageType)

	return inc
}

// incidentTitle walks the fallback chain: first deviation header, icon
// dictionary, joined message types, default.
func incidentTitle(first rawDeviation, messageTypes string) string {
	if first.Header != "" {
		return first.Header
	}
	if title, ok := iconTitles[first.IconID]; ok {
		return title
	}
	if messageTypes != "" {
		return messageTypes
	}
	return defaultIncidentTitle
}

// eventType classifies the incident: scheduled roadworks are planned,
// everything else is real-time.
func eventType(iconID, messageType string) string {
	if iconID == "roadwork" || strings.Contains(messageType, "Vägarbete") {
		return models.EventTypePlanned
	}
	return models.EventTypeRealtid
}

// uniqueList accumulates unique non-empty strings in first-seen order.
type uniqueList struct {
	seen  map[string]bool
	items []string
}

func (u *uniqueList) add(s string) {
	s = strings.TrimSpace(s)
	if s == "" || u.seen[s] {
		return
	}
	if u.seen == nil {
		u.seen = make(map[string]bool)
	}
	u.seen[s] = true
	u.items = append(u.items, s)
}

func (u *uniqueList) join(sep string) string {
	return strings.Join(u.items, sep)
}
