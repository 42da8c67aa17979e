// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package spatial

import (
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/trafikinfo/trafikinfo/internal/models"
)

// roadTokenPattern extracts road designations from camera names: European
// routes (E4), riksvägar (RV73), länsvägar (LV515) and the spelled-out
// variants that appear in older camera names.
var roadTokenPattern = regexp.MustCompile(`\b(E\d+|RV\d+|LV\d+|VÄG\d+|LÄN\d+)\b`)

// Index is the in-memory camera and weather station registry. The zero
// value is empty and usable; the sync loops replace the lists via
// SetCameras and SetStations.
type Index struct {
	mu       sync.RWMutex
	cameras  []models.Camera
	stations []models.WeatherStation
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{}
}

// SetCameras replaces the camera list wholesale. Readers in flight keep the
// snapshot they already hold.
func (idx *Index) SetCameras(cams []models.Camera) {
	idx.mu.Lock()
	idx.cameras = cams
	idx.mu.Unlock()
}

// SetStations replaces the weather station list wholesale.
func (idx *Index) SetStations(stations []models.WeatherStation) {
	idx.mu.Lock()
	idx.stations = stations
	idx.mu.Unlock()
}

// CameraCount returns the number of indexed cameras.
func (idx *Index) CameraCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.cameras)
}

// StationCount returns the number of indexed weather stations.
func (idx *Index) StationCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.stations)
}

// NearbyCameras returns up to limit cameras within maxKm of (lat, lon),
// sorted by ascending distance with the original camera order breaking
// ties. When targetRoad is non-empty, cameras whose names mention road
// tokens are rejected unless one of the tokens equals the target road;
// cameras whose names carry no road token are kept.
func (idx *Index) NearbyCameras(lat, lon float64, targetRoad string, maxKm float64, limit int) []models.Camera {
	idx.mu.RLock()
	cams := idx.cameras
	idx.mu.RUnlock()

	type candidate struct {
		cam  models.Camera
		dist float64
		pos  int
	}

	target := normalizeRoad(targetRoad)

	var candidates []candidate
	for i, cam := range cams {
		dist, err := Distance(lat, lon, cam.Latitude, cam.Longitude)
		if err != nil || dist > maxKm {
			continue
		}
		if target != "" && !roadMatches(cam.Name, target) {
			continue
		}
		candidates = append(candidates, candidate{cam: cam, dist: dist, pos: i})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].dist != candidates[j].dist {
			return candidates[i].dist < candidates[j].dist
		}
		return candidates[i].pos < candidates[j].pos
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	result := make([]models.Camera, len(candidates))
	for i, c := range candidates {
		result[i] = c.cam
	}
	return result
}

// NearestStation returns the closest weather station within maxKm of
// (lat, lon), or nil when none is in range.
func (idx *Index) NearestStation(lat, lon float64, maxKm float64) *models.WeatherStation {
	idx.mu.RLock()
	stations := idx.stations
	idx.mu.RUnlock()

	best := -1
	bestDist := 0.0
	for i, st := range stations {
		dist, err := Distance(lat, lon, st.Latitude, st.Longitude)
		if err != nil || dist > maxKm {
			continue
		}
		if best >= 0 && dist >= bestDist {
			continue
		}
		best = i
		bestDist = dist
	}
	if best < 0 {
		return nil
	}
	st := stations[best]
	return &st
}

// roadMatches applies the road-affinity heuristic to one camera name.
func roadMatches(cameraName, target string) bool {
	tokens := roadTokenPattern.FindAllString(strings.ToUpper(cameraName), -1)
	if len(tokens) == 0 {
		return true
	}
	for _, tok := range tokens {
		if tok == target {
			return true
		}
	}
	return false
}

// normalizeRoad uppercases and strips spaces so "Rv 73" and "rv73" compare
// equal to the RV73 token form.
func normalizeRoad(road string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(road), " ", ""))
}
