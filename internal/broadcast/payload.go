// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package broadcast

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/trafikinfo/trafikinfo/internal/models"
)

// pushPayload is the notification document the service worker renders.
// URLs are rewritten through the configured base URL; the raw upstream
// camera URL never leaves the server.
type pushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
	Icon  string `json:"icon,omitempty"`
	Sound bool   `json:"sound"`
}

// buildPushPayload renders one entity as a notification.
func buildPushPayload(entity models.Entity, baseURL string, sound bool) ([]byte, error) {
	switch v := entity.(type) {
	case *models.Incident:
		p := pushPayload{
			Title: pushTitle(v.Title, models.CountyName(v.CountyNo)),
			Body:  firstNonEmpty(v.Location, v.Description, v.SeverityText),
			URL:   pushLink(baseURL, v.ExternalID),
			Sound: sound,
		}
		if v.IconID != "" {
			p.Icon = strings.TrimRight(baseURL, "/") + "/api/icons/" + v.IconID
		}
		return json.Marshal(p)
	case *models.RoadCondition:
		p := pushPayload{
			Title: pushTitle(v.ConditionText, models.CountyName(v.CountyNo)),
			Body:  firstNonEmpty(v.Warning, v.Cause, v.LocationText, v.RoadNumber),
			URL:   pushLink(baseURL, v.ID),
			Sound: sound,
		}
		return json.Marshal(p)
	default:
		return nil, fmt.Errorf("unknown entity kind %q", entity.Kind())
	}
}

func pushTitle(title, region string) string {
	if title == "" {
		return region
	}
	return title + " - " + region
}

func pushLink(baseURL, id string) string {
	return strings.TrimRight(baseURL, "/") + "/?event=" + id
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
