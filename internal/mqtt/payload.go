// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package mqtt

import (
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/trafikinfo/trafikinfo/internal/models"
)

// mdiIcons maps upstream icon ids to Material Design Icon names for home
// automation dashboards.
var mdiIcons = map[string]string{
	"roadwork":           "mdi:traffic-cone",
	"accident":           "mdi:car-emergency",
	"roadClosed":         "mdi:close-octagon",
	"vehicleObstruction": "mdi:car-off",
	"obstruction":        "mdi:alert-octagon",
	"ferryDisruption":    "mdi:ferry",
	"trafficMessage":     "mdi:message-alert",
}

const (
	defaultIncidentMDI      = "mdi:alert"
	defaultRoadConditionMDI = "mdi:snowflake-alert"
)

// incidentMessage is the broker payload for incidents: the entity plus the
// home automation extras. Local URLs only; the upstream camera URL is
// excluded from serialization at the model level.
type incidentMessage struct {
	*models.Incident
	Region      string `json:"region"`
	Timeout     int64  `json:"timeout"`
	MDIIcon     string `json:"mdi_icon"`
	Link        string `json:"link"`
	IconURL     string `json:"icon_url,omitempty"`
	SnapshotURL string `json:"snapshot_url,omitempty"`
}

// roadConditionMessage is the broker payload for road conditions.
type roadConditionMessage struct {
	*models.RoadCondition
	Region      string `json:"region"`
	Timeout     int64  `json:"timeout"`
	MDIIcon     string `json:"mdi_icon"`
	Link        string `json:"link"`
	SnapshotURL string `json:"snapshot_url,omitempty"`
}

// BuildPayload serializes one entity for broker publication, rewriting icon
// and snapshot references through the configured base URL.
func BuildPayload(entity models.Entity, baseURL string) ([]byte, error) {
	switch v := entity.(type) {
	case *models.Incident:
		msg := incidentMessage{
			Incident:    v,
			Region:      models.CountyName(v.CountyNo),
			Timeout:     secondsUntil(v.EndTime),
			MDIIcon:     incidentMDI(v.IconID),
			Link:        deepLink(baseURL, v.ExternalID),
			SnapshotURL: snapshotURL(baseURL, v.SnapshotPath),
		}
		if v.IconID != "" {
			msg.IconURL = joinURL(baseURL, "/api/icons/"+v.IconID)
		}
		return json.Marshal(msg)
	case *models.RoadCondition:
		msg := roadConditionMessage{
			RoadCondition: v,
			Region:        models.CountyName(v.CountyNo),
			Timeout:       secondsUntil(v.EndTime),
			MDIIcon:       defaultRoadConditionMDI,
			Link:          deepLink(baseURL, v.ID),
			SnapshotURL:   snapshotURL(baseURL, v.SnapshotPath),
		}
		return json.Marshal(msg)
	default:
		return nil, fmt.Errorf("unknown entity kind %q", entity.Kind())
	}
}

func incidentMDI(iconID string) string {
	if mdi, ok := mdiIcons[iconID]; ok {
		return mdi
	}
	return defaultIncidentMDI
}

// secondsUntil returns whole seconds until t, 0 when t is unset or past.
func secondsUntil(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	s := int64(time.Until(*t).Seconds())
	if s < 0 {
		return 0
	}
	return s
}

func deepLink(baseURL, id string) string {
	return joinURL(baseURL, "/?event="+id)
}

func snapshotURL(baseURL string, path *string) string {
	if path == nil || *path == "" {
		return ""
	}
	return joinURL(baseURL, "/api/snapshots/"+*path)
}

func joinURL(baseURL, path string) string {
	return strings.TrimRight(baseURL, "/") + path
}
