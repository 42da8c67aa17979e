// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package snapshots

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/trafikinfo/trafikinfo/internal/logging"
	"github.com/trafikinfo/trafikinfo/internal/metrics"
)

const (
	// fullsizeMinBytes is the threshold a fullsize response must reach to
	// be preferred over the base URL.
	fullsizeMinBytes = 5000

	// corruptMaxBytes rejects final bodies below this size outright.
	corruptMaxBytes = 1500

	// maxBodyBytes caps one download; upstream camera JPEGs are well
	// under 2 MB.
	maxBodyBytes = 8 << 20

	// fullsizeHost is the image host whose URLs follow the _fullsize.jpg
	// naming convention.
	fullsizeHost = "api.trafikinfo.trafikverket.se"
)

// unsafeFilenameChars matches everything not allowed in a snapshot
// filename component.
var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// Store writes camera snapshots into a county-partitioned directory tree.
type Store struct {
	root   string
	client *http.Client

	// now is stubbed in tests to pin filenames.
	now func() time.Time
}

// NewStore creates a snapshot store rooted at root. The root directory is
// created if missing.
func NewStore(root string, timeout time.Duration) (*Store, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create snapshot root %s: %w", root, err)
	}
	return &Store{
		root:   root,
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}, nil
}

// Root returns the snapshot tree root for the static file handler.
func (s *Store) Root() string {
	return s.root
}

// Save downloads the best available image for a camera and stores it under
// the entity's county directory. It returns the relative path
// "{county}/{file}" and true on success, or "" and false on any miss.
func (s *Store) Save(ctx context.Context, url, fullsizeURL, entityID string, countyNo int) (string, bool) {
	if url == "" && fullsizeURL == "" {
		return "", false
	}

	start := time.Now()
	body, ok := s.download(ctx, url, fullsizeURL, entityID)
	if !ok {
		metrics.RecordSnapshotDownload("miss", time.Since(start), 0)
		return "", false
	}

	relPath, err := s.write(body, entityID, countyNo)
	if err != nil {
		metrics.RecordSnapshotDownload("write_error", time.Since(start), len(body))
		logging.Err(err).Str("entity_id", entityID).Msg("Failed to write snapshot")
		return "", false
	}

	metrics.RecordSnapshotDownload("ok", time.Since(start), len(body))
	logging.Debug().
		Str("entity_id", entityID).
		Str("path", relPath).
		Int("bytes", len(body)).
		Msg("Saved camera snapshot")
	return relPath, true
}

// download fetches the image, preferring the fullsize variant.
func (s *Store) download(ctx context.Context, url, fullsizeURL, entityID string) ([]byte, bool) {
	fullsize := fullsizeURL
	if fullsize == "" {
		fullsize = guessFullsizeURL(url)
	}

	var body []byte
	if fullsize != "" {
		b, err := s.fetch(ctx, fullsize)
		switch {
		case err != nil:
			logging.Debug().Str("url", fullsize).Err(err).Msg("Fullsize snapshot fetch failed")
		case len(b) >= fullsizeMinBytes:
			body = b
		default:
			logging.Warn().
				Str("url", fullsize).
				Int("bytes", len(b)).
				Msg("Fullsize snapshot too small, falling back")
		}
	}

	if body == nil && url != "" && url != fullsize {
		b, err := s.fetch(ctx, url)
		if err != nil {
			logging.Debug().Str("url", url).Err(err).Msg("Snapshot fetch failed")
			return nil, false
		}
		body = b
	}

	if body == nil {
		return nil, false
	}

	if len(body) < corruptMaxBytes {
		logging.Warn().
			Str("entity_id", entityID).
			Int("bytes", len(body)).
			Msg("Snapshot rejected as corrupt")
		return nil, false
	}
	if len(body) < fullsizeMinBytes {
		logging.Warn().
			Str("entity_id", entityID).
			Int("bytes", len(body)).
			Msg("Snapshot smaller than expected, storing anyway")
	}

	return body, true
}

// fetch GETs one URL and returns the body for 200 responses.
func (s *Store) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
}

// write stores the body and returns the county-relative path.
func (s *Store) write(body []byte, entityID string, countyNo int) (string, error) {
	countyDir := filepath.Join(s.root, strconv.Itoa(countyNo))
	if err := os.MkdirAll(countyDir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create county directory: %w", err)
	}

	filename := fmt.Sprintf("%s_%d.jpg", sanitizeID(entityID), s.now().Unix())
	if err := os.WriteFile(filepath.Join(countyDir, filename), body, 0o640); err != nil {
		return "", fmt.Errorf("failed to write snapshot file: %w", err)
	}

	return strconv.Itoa(countyNo) + "/" + filename, nil
}

// Remove deletes one stored snapshot given its relative path. Paths that
// escape the snapshot root are refused.
func (s *Store) Remove(relPath string) error {
	if relPath == "" {
		return nil
	}
	full := filepath.Join(s.root, filepath.FromSlash(relPath))
	cleanRoot := filepath.Clean(s.root) + string(filepath.Separator)
	if !strings.HasPrefix(filepath.Clean(full), cleanRoot) {
		return fmt.Errorf("snapshot path %q escapes the snapshot root", relPath)
	}
	err := os.Remove(full)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// RemoveAll clears the whole snapshot tree, recreating the empty root.
// Used by the factory reset endpoint.
func (s *Store) RemoveAll() error {
	if err := os.RemoveAll(s.root); err != nil {
		return err
	}
	return os.MkdirAll(s.root, 0o750)
}

// guessFullsizeURL derives the fullsize variant for upstream image hosts
// that follow the _fullsize.jpg naming convention.
func guessFullsizeURL(url string) string {
	if !strings.Contains(url, fullsizeHost) {
		return ""
	}
	if !strings.HasSuffix(url, ".jpg") || strings.HasSuffix(url, "_fullsize.jpg") {
		return ""
	}
	return strings.TrimSuffix(url, ".jpg") + "_fullsize.jpg"
}

// SanitizeID makes an entity or camera id safe as a filename component.
func SanitizeID(id string) string {
	return sanitizeID(id)
}

func sanitizeID(id string) string {
	return unsafeFilenameChars.ReplaceAllString(id, "_")
}
