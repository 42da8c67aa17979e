// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package database

import (
	"context"
	"errors"
	"testing"

	"github.com/trafikinfo/trafikinfo/internal/models"
)

func TestSyncCamerasFavoriteSurvival(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	batch := []models.Camera{
		{ID: "CAM_1", Name: "Rotebro", Type: models.CameraTypeRoad, CountyNo: 1, PhotoURL: "https://upstream/1.jpg"},
		{ID: "CAM_2", Name: "Häggvik", Type: models.CameraTypeRoad, CountyNo: 1, PhotoURL: "https://upstream/2.jpg"},
	}
	if _, err := db.SyncCameras(ctx, []int{1}, batch); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	fav, err := db.ToggleCameraFavorite(ctx, "CAM_1")
	if err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	if !fav {
		t.Fatal("expected favorite on")
	}

	// Re-sync with fresh metadata: the favorite flag survives, metadata
	// updates, and cameras the upstream dropped are removed.
	batch = []models.Camera{
		{ID: "CAM_1", Name: "Rotebro Norra", Type: models.CameraTypeRoad, CountyNo: 1, PhotoURL: "https://upstream/1b.jpg"},
	}
	if _, err := db.SyncCameras(ctx, []int{1}, batch); err != nil {
		t.Fatalf("re-sync failed: %v", err)
	}

	cam, err := db.GetCameraByID(ctx, "CAM_1")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if !cam.IsFavorite {
		t.Fatal("favorite lost across sync")
	}
	if cam.Name != "Rotebro Norra" || cam.PhotoURL != "https://upstream/1b.jpg" {
		t.Fatalf("metadata not refreshed: %+v", cam)
	}

	if _, err := db.GetCameraByID(ctx, "CAM_2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("stale camera not removed: %v", err)
	}
}

func TestSyncCamerasLeavesOtherCountiesAlone(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := db.SyncCameras(ctx, []int{1, 14}, []models.Camera{
		{ID: "CAM_STHLM", Name: "Rotebro", Type: models.CameraTypeRoad, CountyNo: 1},
		{ID: "CAM_VG", Name: "Tingstad", Type: models.CameraTypeRoad, CountyNo: 14},
	}); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	// A later sync scoped to county 1 only must not delete county 14.
	if _, err := db.SyncCameras(ctx, []int{1}, []models.Camera{
		{ID: "CAM_STHLM", Name: "Rotebro", Type: models.CameraTypeRoad, CountyNo: 1},
	}); err != nil {
		t.Fatalf("scoped sync failed: %v", err)
	}

	if _, err := db.GetCameraByID(ctx, "CAM_VG"); err != nil {
		t.Fatalf("out-of-scope camera removed: %v", err)
	}
}

func TestToggleCameraFavoriteUnknown(t *testing.T) {
	db := newTestDB(t)
	if _, err := db.ToggleCameraFavorite(context.Background(), "NOPE"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetCamerasFilters(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := db.SyncCameras(ctx, []int{1, 14}, []models.Camera{
		{ID: "CAM_1", Name: "Rotebro", Type: models.CameraTypeRoad, CountyNo: 1},
		{ID: "CAM_2", Name: "Tingstad", Type: models.CameraTypeRoad, CountyNo: 14},
	}); err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if _, err := db.ToggleCameraFavorite(ctx, "CAM_2"); err != nil {
		t.Fatalf("toggle failed: %v", err)
	}

	cams, err := db.GetCameras(ctx, CameraFilter{Counties: []int{14}})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(cams) != 1 || cams[0].ID != "CAM_2" {
		t.Fatalf("county filter failed: %+v", cams)
	}

	cams, err = db.GetCameras(ctx, CameraFilter{OnlyFavorites: true})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(cams) != 1 || cams[0].ID != "CAM_2" {
		t.Fatalf("favorites filter failed: %+v", cams)
	}
}
