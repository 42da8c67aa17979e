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

// RoadConditions converts one RoadCondition batch, mapping each advisory
// one to one. Malformed entries are skipped with a log.
func RoadConditions(data []byte) ([]*models.RoadCondition, error) {
	result, err := unwrapResult(data)
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		RoadCondition []json.RawMessage `json:"RoadCondition"`
	}
	if err := json.Unmarshal(result, &wrapper); err != nil {
		return nil, fmt.Errorf("failed to decode road condition batch: %w", err)
	}

	conditions := make([]*models.RoadCondition, 0, len(wrapper.RoadCondition))
	for _, raw := range wrapper.RoadCondition {
		var rc rawRoadCondition
		if err := json.Unmarshal(raw, &rc); err != nil {
			logging.Warn().Err(err).Msg("Skipping malformed road condition")
			continue
		}
		cond := roadConditionToModel(rc)
		if cond == nil {
			continue
		}
		conditions = append(conditions, cond)
	}
	return conditions, nil
}

// roadConditionToModel maps one upstream advisory. Entries without an id
// are dropped.
func roadConditionToModel(rc rawRoadCondition) *models.RoadCondition {
	if rc.ID == "" {
		logging.Warn().Msg("Skipping road condition without id")
		return nil
	}

	cond := &models.RoadCondition{
		ID:            rc.ID,
		RoadNumber:    rc.RoadNumber,
		CountyNo:      firstCounty(rc.CountyNo),
		ConditionCode: rc.ConditionCode,
		ConditionText: rc.ConditionText,
		Measure:       rc.Measurement,
		Warning:       strings.Join(rc.Warning, ", "),
		Cause:         rc.Cause,
		LocationText:  rc.LocationText,
		StartTime:     parseTime(rc.StartTime),
		EndTime:       parseTime(rc.EndTime),
		Timestamp:     parseTime(rc.ModifiedTime),
	}

	if cond.ConditionText == "" {
		cond.ConditionText = models.ConditionTexts[cond.ConditionCode]
	}

	if lat, lon, ok := parseWKT(rc.Geometry.wkt()); ok {
		cond.Latitude = &lat
		cond.Longitude = &lon
	}

	return cond
}
