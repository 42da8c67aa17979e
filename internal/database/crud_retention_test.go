// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package database

import (
	"context"
	"testing"
	"time"

	"github.com/trafikinfo/trafikinfo/internal/models"
)

func TestDeleteIncidentsOlderThan(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	snapshot := "1/SE_OLD.jpg"
	old := testIncident("SE_OLD")
	old.SnapshotPath = &snapshot
	old.ExtraCameras = []models.ExtraCamera{{ID: "CAM_2", Name: "Extra", SnapshotPath: &snapshot}}
	if _, err := db.UpsertIncident(ctx, old); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	// A significant change so the old row also has a version to cascade.
	changed := testIncident("SE_OLD")
	changed.SnapshotPath = &snapshot
	changed.Title = "Uppdaterad"
	if _, err := db.UpsertIncident(ctx, changed); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if _, err := db.UpsertIncident(ctx, testIncident("SE_FRESH")); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	// Age the first incident past the cutoff.
	_, err := db.Conn().ExecContext(ctx,
		`UPDATE incidents SET updated_at = ? WHERE external_id = ?`,
		time.Now().UTC().Add(-48*time.Hour), "SE_OLD")
	if err != nil {
		t.Fatalf("failed to age row: %v", err)
	}

	deleted, paths, err := db.DeleteIncidentsOlderThan(ctx, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("retention sweep failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted incident, got %d", deleted)
	}
	if len(paths) == 0 {
		t.Fatal("expected freed snapshot paths")
	}

	if _, err := db.GetIncidentByExternalID(ctx, "SE_OLD"); err == nil {
		t.Fatal("aged incident still present")
	}
	if _, err := db.GetIncidentByExternalID(ctx, "SE_FRESH"); err != nil {
		t.Fatalf("fresh incident was swept: %v", err)
	}
	if versions, _ := db.GetIncidentHistory(ctx, "SE_OLD", 10); len(versions) != 0 {
		t.Fatalf("version rows survived the sweep: %d", len(versions))
	}
}

func TestResetDataKeepsInfrastructure(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := db.UpsertIncident(ctx, testIncident("SE_1")); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if _, err := db.UpsertRoadCondition(ctx, testRoadCondition("RC_1")); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if _, err := db.SyncCameras(ctx, []int{1}, []models.Camera{
		{ID: "CAM_1", Name: "Rotebro", Type: models.CameraTypeRoad, CountyNo: 1},
	}); err != nil {
		t.Fatalf("camera sync failed: %v", err)
	}
	if err := db.SetSetting(ctx, models.SettingRetentionDays, "7"); err != nil {
		t.Fatalf("setting failed: %v", err)
	}

	if err := db.ResetData(ctx); err != nil {
		t.Fatalf("reset failed: %v", err)
	}

	incidents, err := db.GetIncidents(ctx, IncidentFilter{})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(incidents) != 0 {
		t.Fatalf("incidents survived reset: %d", len(incidents))
	}
	conditions, err := db.GetRoadConditions(ctx, RoadConditionFilter{})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(conditions) != 0 {
		t.Fatalf("road conditions survived reset: %d", len(conditions))
	}

	cams, err := db.GetCameras(ctx, CameraFilter{})
	if err != nil {
		t.Fatalf("camera query failed: %v", err)
	}
	if len(cams) != 1 {
		t.Fatalf("cameras must survive reset, got %d", len(cams))
	}
	value, err := db.GetSetting(ctx, models.SettingRetentionDays)
	if err != nil || value != "7" {
		t.Fatalf("settings must survive reset: %q, %v", value, err)
	}
}
