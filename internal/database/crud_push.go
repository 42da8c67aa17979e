// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/trafikinfo/trafikinfo/internal/metrics"
	"github.com/trafikinfo/trafikinfo/internal/models"
)

const pushSubscriptionColumns = `id, endpoint, p256dh, auth, counties,
	min_severity, topic_realtid, topic_road_condition, sound_enabled, created_at`

// SavePushSubscription inserts or updates a subscription keyed by endpoint.
// Re-subscribing with the same endpoint updates the keys and filters in
// place; created_at is set once. The row id is written back to sub.
func (db *DB) SavePushSubscription(ctx context.Context, sub *models.PushSubscription) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if sub.MinSeverity < 1 {
		sub.MinSeverity = 1
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}

	start := time.Now()
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO push_subscriptions (
			endpoint, p256dh, auth, counties,
			min_severity, topic_realtid, topic_road_condition, sound_enabled, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(endpoint) DO UPDATE SET
			p256dh = excluded.p256dh,
			auth = excluded.auth,
			counties = excluded.counties,
			min_severity = excluded.min_severity,
			topic_realtid = excluded.topic_realtid,
			topic_road_condition = excluded.topic_road_condition,
			sound_enabled = excluded.sound_enabled`,
			sub.Endpoint, sub.P256dh, sub.Auth, countiesToCSV(sub.Counties),
			sub.MinSeverity, sub.TopicRealtid, sub.TopicRoadCondition, sub.SoundEnabled, sub.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to save push subscription: %w", err)
		}
		return tx.QueryRowContext(ctx,
			`SELECT id, created_at FROM push_subscriptions WHERE endpoint = ?`, sub.Endpoint).
			Scan(&sub.ID, &sub.CreatedAt)
	})
	metrics.RecordDBQuery("upsert", "push_subscriptions", time.Since(start), err)
	return err
}

// DeletePushSubscriptionByEndpoint removes a subscription and reports
// whether a row existed. Used by the unsubscribe endpoint.
func (db *DB) DeletePushSubscriptionByEndpoint(ctx context.Context, endpoint string) (bool, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM push_subscriptions WHERE endpoint = ?`, endpoint)
	metrics.RecordDBQuery("delete", "push_subscriptions", time.Since(start), err)
	if err != nil {
		return false, fmt.Errorf("failed to delete push subscription: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// DeletePushSubscriptionByID removes a subscription by row id. Used by the
// dispatcher when an endpoint returns gone/not-found or its keys fail.
func (db *DB) DeletePushSubscriptionByID(ctx context.Context, id int64) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	_, err := db.conn.ExecContext(ctx,
		`DELETE FROM push_subscriptions WHERE id = ?`, id)
	metrics.RecordDBQuery("delete", "push_subscriptions", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to delete push subscription %d: %w", id, err)
	}
	return nil
}

// GetPushSubscriptions returns all subscriptions. The broadcaster reads the
// full set per change and applies the per-subscription predicate in memory.
func (db *DB) GetPushSubscriptions(ctx context.Context) ([]models.PushSubscription, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+pushSubscriptionColumns+` FROM push_subscriptions ORDER BY id`)
	metrics.RecordDBQuery("select", "push_subscriptions", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query push subscriptions: %w", err)
	}
	defer closeQuietly(rows)

	subs := []models.PushSubscription{}
	for rows.Next() {
		sub, err := scanPushSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan push subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

// GetPushSubscriptionByEndpoint returns one subscription, or ErrNotFound.
func (db *DB) GetPushSubscriptionByEndpoint(ctx context.Context, endpoint string) (*models.PushSubscription, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+pushSubscriptionColumns+` FROM push_subscriptions WHERE endpoint = ?`, endpoint)
	sub, err := scanPushSubscription(row)

	if errors.Is(err, sql.ErrNoRows) {
		metrics.RecordDBQuery("select", "push_subscriptions", time.Since(start), nil)
		return nil, fmt.Errorf("push subscription: %w", ErrNotFound)
	}
	metrics.RecordDBQuery("select", "push_subscriptions", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to get push subscription: %w", err)
	}
	return sub, nil
}

// CountPushSubscriptions returns the subscription count for the metrics
// gauge and the stats endpoint.
func (db *DB) CountPushSubscriptions(ctx context.Context) (int, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM push_subscriptions`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count push subscriptions: %w", err)
	}
	return count, nil
}

// GetPushSubscriptionCounties returns the distinct county numbers spanned by
// all subscriptions. A subscription with an empty county list watches every
// county; all=true signals that case and the returned slice covers only the
// explicitly listed counties.
func (db *DB) GetPushSubscriptionCounties(ctx context.Context) (counties []int, all bool, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `SELECT counties FROM push_subscriptions`)
	if err != nil {
		return nil, false, fmt.Errorf("failed to query push subscription counties: %w", err)
	}
	defer closeQuietly(rows)

	seen := make(map[int]bool)
	for rows.Next() {
		var csv string
		if err := rows.Scan(&csv); err != nil {
			return nil, false, fmt.Errorf("failed to scan push subscription counties: %w", err)
		}
		if csv == "" {
			all = true
			continue
		}
		for _, c := range csvToCounties(csv) {
			seen[c] = true
		}
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}

	for c := range seen {
		counties = append(counties, c)
	}
	return counties, all, nil
}

func scanPushSubscription(sc scanner) (*models.PushSubscription, error) {
	var sub models.PushSubscription
	var countiesCSV string

	err := sc.Scan(
		&sub.ID, &sub.Endpoint, &sub.P256dh, &sub.Auth, &countiesCSV,
		&sub.MinSeverity, &sub.TopicRealtid, &sub.TopicRoadCondition, &sub.SoundEnabled, &sub.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	sub.Counties = csvToCounties(countiesCSV)
	return &sub, nil
}
