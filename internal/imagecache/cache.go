// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package imagecache

import (
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/trafikinfo/trafikinfo/internal/metrics"
)

const (
	keyPrefix = "image:"

	// cacheType labels hit/miss metrics.
	cacheType = "image"
)

// Cache is a TTL-bounded in-memory image cache backed by BadgerDB.
type Cache struct {
	db  *badger.DB
	ttl time.Duration
}

// New creates an in-memory cache whose entries expire after ttl.
func New(ttl time.Duration) (*Cache, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open image cache: %w", err)
	}
	return &Cache{db: db, ttl: ttl}, nil
}

// Get returns the cached body and content type for a camera id.
func (c *Cache) Get(id string) (body []byte, contentType string, ok bool) {
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			body, contentType, err = decodeEntry(val)
			return err
		})
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			body, contentType = nil, ""
		}
		metrics.RecordCacheMiss(cacheType)
		return nil, "", false
	}
	metrics.RecordCacheHit(cacheType)
	return body, contentType, true
}

// Set stores one image body under the camera id with the cache TTL.
func (c *Cache) Set(id, contentType string, body []byte) error {
	entry := badger.NewEntry([]byte(keyPrefix+id), encodeEntry(contentType, body)).
		WithTTL(c.ttl)
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("failed to cache image %s: %w", id, err)
	}
	return nil
}

// Close releases the cache.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Entries frame the content type ahead of the raw body: one length byte,
// the content type, the body. JSON would force base64 on megabyte bodies.
func encodeEntry(contentType string, body []byte) []byte {
	if len(contentType) > 255 {
		contentType = contentType[:255]
	}
	buf := make([]byte, 0, 1+len(contentType)+len(body))
	buf = append(buf, byte(len(contentType)))
	buf = append(buf, contentType...)
	return append(buf, body...)
}

func decodeEntry(val []byte) (body []byte, contentType string, err error) {
	if len(val) < 1 {
		return nil, "", errors.New("image cache entry too short")
	}
	n := int(val[0])
	if len(val) < 1+n {
		return nil, "", errors.New("image cache entry truncated")
	}
	contentType = string(val[1 : 1+n])
	body = make([]byte, len(val)-1-n)
	copy(body, val[1+n:])
	return body, contentType, nil
}
