// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package enrich

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/trafikinfo/trafikinfo/internal/database"
	"github.com/trafikinfo/trafikinfo/internal/logging"
	"github.com/trafikinfo/trafikinfo/internal/models"
	"github.com/trafikinfo/trafikinfo/internal/snapshots"
	"github.com/trafikinfo/trafikinfo/internal/spatial"
)

func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

type fakeStore struct {
	incident *models.Incident
	rc       *models.RoadCondition
	settings map[string]string
}

func (f *fakeStore) GetIncidentByExternalID(_ context.Context, externalID string) (*models.Incident, error) {
	if f.incident == nil || f.incident.ExternalID != externalID {
		return nil, database.ErrNotFound
	}
	return f.incident, nil
}

func (f *fakeStore) FindRoadCondition(_ context.Context, _ *models.RoadCondition) (*models.RoadCondition, error) {
	if f.rc == nil {
		return nil, database.ErrNotFound
	}
	return f.rc, nil
}

func (f *fakeStore) GetSetting(_ context.Context, key string) (string, error) {
	if v, ok := f.settings[key]; ok {
		return v, nil
	}
	return models.DefaultSettings[key], nil
}

// imageServer serves a valid snapshot body for every path.
func imageServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("j"), 8000))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testIndex(photoURL string) *spatial.Index {
	idx := spatial.NewIndex()
	idx.SetCameras([]models.Camera{
		{ID: "CAM_A", Name: "E4 Rotebro", PhotoURL: photoURL + "/a.jpg", Latitude: 59.0, Longitude: 18.0, CountyNo: 1},
		{ID: "CAM_B", Name: "E4 Norrviken", PhotoURL: photoURL + "/b.jpg", Latitude: 59.01, Longitude: 18.0, CountyNo: 1},
	})
	temp := -1.5
	wind := 4.0
	idx.SetStations([]models.WeatherStation{
		{ID: "VVIS_1", Name: "Rotebro", Latitude: 59.02, Longitude: 18.0, AirTemperature: &temp, WindSpeed: &wind, WindDirection: "NNE"},
	})
	return idx
}

func testIncident() *models.Incident {
	lat, lon := 59.0, 18.0
	return &models.Incident{
		ExternalID: "SE_STA_TRISSID_1_1",
		RoadNumber: "E4",
		CountyNo:   1,
		Latitude:   &lat,
		Longitude:  &lon,
	}
}

func newEnricher(t *testing.T, store Store, idx *spatial.Index) *Enricher {
	t.Helper()
	snaps, err := snapshots.NewStore(t.TempDir(), 2*time.Second)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return New(store, idx, snaps)
}

func TestEnrichNewIncidentSyncsCameras(t *testing.T) {
	srv := imageServer(t)
	e := newEnricher(t, &fakeStore{}, testIndex(srv.URL))

	inc := testIncident()
	synced, err := e.Enrich(context.Background(), inc)
	if err != nil {
		t.Fatalf("Enrich() error = %v", err)
	}
	if !synced {
		t.Error("expected camera sync for a new incident")
	}
	if inc.CameraID != "CAM_A" || inc.CameraName != "E4 Rotebro" {
		t.Errorf("primary camera = %q %q", inc.CameraID, inc.CameraName)
	}
	if inc.SnapshotPath == nil {
		t.Error("primary snapshot path not set")
	}
	if inc.ExternalCameraURL != srv.URL+"/a.jpg" {
		t.Errorf("ExternalCameraURL = %q", inc.ExternalCameraURL)
	}
	if len(inc.ExtraCameras) != 1 || inc.ExtraCameras[0].ID != "CAM_B" {
		t.Fatalf("extra cameras = %+v", inc.ExtraCameras)
	}
	if inc.ExtraCameras[0].SnapshotPath == nil {
		t.Error("extra camera snapshot path not set")
	}
	if inc.Weather == nil {
		t.Fatal("weather not attached")
	}
	if inc.Weather.Temp == nil || *inc.Weather.Temp != -1.5 || inc.Weather.WindDir != "NNE" {
		t.Errorf("weather = %+v", inc.Weather)
	}
}

func TestEnrichCompletePriorSkipsSync(t *testing.T) {
	srv := imageServer(t)

	path := "1/SE_STA_TRISSID_1_1_1764316800.jpg"
	prior := testIncident()
	prior.CameraID = "CAM_A"
	prior.CameraName = "E4 Rotebro"
	prior.SnapshotPath = &path
	prior.ExtraCameras = []models.ExtraCamera{{ID: "CAM_B", Name: "E4 Norrviken", SnapshotPath: &path}}

	e := newEnricher(t, &fakeStore{incident: prior}, testIndex(srv.URL))

	inc := testIncident()
	synced, err := e.Enrich(context.Background(), inc)
	if err != nil {
		t.Fatalf("Enrich() error = %v", err)
	}
	if synced {
		t.Error("camera sync ran despite complete prior enrichment")
	}
	if inc.CameraID != "CAM_A" || inc.SnapshotPath == nil {
		t.Errorf("prior enrichment not carried forward: %+v", inc.Enrichment)
	}
	if inc.Weather == nil {
		t.Error("weather skipped on non-sync pass")
	}
}

func TestEnrichResyncsOnMissingExtraSnapshot(t *testing.T) {
	srv := imageServer(t)

	path := "1/x.jpg"
	prior := testIncident()
	prior.CameraID = "CAM_A"
	prior.SnapshotPath = &path
	prior.ExtraCameras = []models.ExtraCamera{{ID: "CAM_B", SnapshotPath: nil}}

	e := newEnricher(t, &fakeStore{incident: prior}, testIndex(srv.URL))

	inc := testIncident()
	synced, err := e.Enrich(context.Background(), inc)
	if err != nil {
		t.Fatalf("Enrich() error = %v", err)
	}
	if !synced {
		t.Error("expected resync when an extra camera lacks its snapshot")
	}
	if inc.ExtraCameras[0].SnapshotPath == nil {
		t.Error("resync did not fill the missing snapshot")
	}
}

func TestEnrichResyncsOnMovedCoordinates(t *testing.T) {
	srv := imageServer(t)

	oldLat, oldLon := 58.9, 17.9
	path := "1/x.jpg"
	prior := testIncident()
	prior.Latitude, prior.Longitude = &oldLat, &oldLon
	prior.CameraID = "CAM_A"
	prior.SnapshotPath = &path
	prior.ExtraCameras = []models.ExtraCamera{{ID: "CAM_B", SnapshotPath: &path}}

	e := newEnricher(t, &fakeStore{incident: prior}, testIndex(srv.URL))

	inc := testIncident()
	synced, err := e.Enrich(context.Background(), inc)
	if err != nil {
		t.Fatalf("Enrich() error = %v", err)
	}
	if !synced {
		t.Error("expected resync after coordinates changed")
	}
}

func TestEnrichSnapshotMissKeepsCameraMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	e := newEnricher(t, &fakeStore{}, testIndex(srv.URL))

	inc := testIncident()
	synced, err := e.Enrich(context.Background(), inc)
	if err != nil {
		t.Fatalf("Enrich() error = %v", err)
	}
	if !synced {
		t.Error("expected camera sync")
	}
	if inc.CameraID != "CAM_A" {
		t.Errorf("camera metadata lost on snapshot miss: %q", inc.CameraID)
	}
	if inc.SnapshotPath != nil {
		t.Errorf("SnapshotPath = %q, want nil on download failure", *inc.SnapshotPath)
	}
}

func TestEnrichRadiusSettingRespected(t *testing.T) {
	srv := imageServer(t)

	// CAM_B sits ~1.1 km north; a 1 km radius keeps only CAM_A.
	store := &fakeStore{settings: map[string]string{models.SettingCameraRadiusKM: "1.0"}}
	e := newEnricher(t, store, testIndex(srv.URL))

	inc := testIncident()
	if _, err := e.Enrich(context.Background(), inc); err != nil {
		t.Fatalf("Enrich() error = %v", err)
	}
	if inc.CameraID != "CAM_A" {
		t.Errorf("primary camera = %q", inc.CameraID)
	}
	if len(inc.ExtraCameras) != 0 {
		t.Errorf("extra cameras = %+v, want none within 1 km", inc.ExtraCameras)
	}
}

func TestEnrichWithoutCoordinates(t *testing.T) {
	srv := imageServer(t)
	e := newEnricher(t, &fakeStore{}, testIndex(srv.URL))

	inc := &models.Incident{ExternalID: "S1"}
	synced, err := e.Enrich(context.Background(), inc)
	if err != nil {
		t.Fatalf("Enrich() error = %v", err)
	}
	if synced || inc.CameraID != "" || inc.Weather != nil {
		t.Errorf("entity without coordinates was enriched: %+v", inc.Enrichment)
	}
}

func TestEnrichRoadCondition(t *testing.T) {
	srv := imageServer(t)
	e := newEnricher(t, &fakeStore{}, testIndex(srv.URL))

	lat, lon := 59.0, 18.0
	rc := &models.RoadCondition{
		ID:         "RC1",
		RoadNumber: "E4",
		CountyNo:   1,
		Latitude:   &lat,
		Longitude:  &lon,
	}
	synced, err := e.Enrich(context.Background(), rc)
	if err != nil {
		t.Fatalf("Enrich() error = %v", err)
	}
	if !synced {
		t.Error("expected camera sync for a new road condition")
	}
	if rc.CameraID != "CAM_A" || rc.Weather == nil {
		t.Errorf("road condition enrichment = %+v", rc.Enrichment)
	}
}
