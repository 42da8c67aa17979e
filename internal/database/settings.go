// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

/*
settings.go - Runtime Settings Store

Settings are the key/value configuration mutable at runtime via the admin
settings endpoint: the upstream API key, selected counties, MQTT broker
details, retention, base URL and the VAPID key pair. They are read through
on every use (no in-memory cache), so a settings write takes effect on the
next pipeline tick without a restart.

Secret values (api_key, mqtt_password, admin_password, vapid_private_key)
are encrypted at rest with AES-256-GCM when a settings secret is configured.
Encrypted values carry the "enc:v1:" prefix; rows written before encryption
was enabled stay readable as plaintext and are re-encrypted on their next
write. Reading an encrypted row without the secret configured is an error,
not a silent fallback.
*/

//nolint:staticcheck // File documentation, not package doc
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/trafikinfo/trafikinfo/internal/logging"
	"github.com/trafikinfo/trafikinfo/internal/metrics"
	"github.com/trafikinfo/trafikinfo/internal/models"
)

// encryptedValuePrefix tags settings values that are AES-256-GCM encrypted.
// The version suffix leaves room for a future scheme change.
const encryptedValuePrefix = "enc:v1:"

// ErrEncryptedSetting is returned when an encrypted value is read but no
// settings secret is configured.
var ErrEncryptedSetting = errors.New("setting is encrypted but no settings secret is configured")

// GetSetting returns the stored value for key, or its default when no row
// exists. Unknown keys without a default return the empty string.
func (db *DB) GetSetting(ctx context.Context, key string) (string, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	stmt, err := db.getStmt(ctx, `SELECT value FROM settings WHERE key = ?`)
	if err != nil {
		return "", err
	}

	start := time.Now()
	var value string
	err = stmt.QueryRowContext(ctx, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.RecordDBQuery("select", "settings", time.Since(start), nil)
		return models.DefaultSettings[key], nil
	}
	metrics.RecordDBQuery("select", "settings", time.Since(start), err)
	if err != nil {
		return "", fmt.Errorf("failed to get setting %s: %w", key, err)
	}

	return db.decodeSettingValue(key, value)
}

// GetAllSettings returns every known setting, starting from the defaults and
// overlaying stored rows. Secret values are returned decrypted; masking for
// API responses is the caller's concern.
func (db *DB) GetAllSettings(ctx context.Context) (map[string]string, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	settings := make(map[string]string, len(models.DefaultSettings))
	for key, value := range models.DefaultSettings {
		settings[key] = value
	}

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, `SELECT key, value FROM settings`)
	metrics.RecordDBQuery("select", "settings", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer closeQuietly(rows)

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		decoded, err := db.decodeSettingValue(key, value)
		if err != nil {
			return nil, err
		}
		settings[key] = decoded
	}
	return settings, rows.Err()
}

// SetSetting stores one setting, encrypting secret values when a settings
// secret is configured.
func (db *DB) SetSetting(ctx context.Context, key, value string) error {
	return db.SetSettings(ctx, map[string]string{key: value})
}

// SetSettings stores multiple settings in one transaction so a partially
// applied admin update can never be observed.
func (db *DB) SetSettings(ctx context.Context, settings map[string]string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		for key, value := range settings {
			encoded, err := db.encodeSettingValue(key, value)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `INSERT INTO settings (key, value, updated_at)
				VALUES (?, ?, ?)
				ON CONFLICT(key) DO UPDATE SET
					value = excluded.value,
					updated_at = excluded.updated_at`,
				key, encoded, time.Now().UTC(),
			)
			if err != nil {
				return fmt.Errorf("failed to set setting %s: %w", key, err)
			}
		}
		return nil
	})
	metrics.RecordDBQuery("upsert", "settings", time.Since(start), err)
	return err
}

// SeedSettings inserts the given settings only where no row exists yet.
// Used at startup to bridge legacy environment variables into the settings
// table without ever overwriting operator edits. Returns how many rows were
// seeded.
func (db *DB) SeedSettings(ctx context.Context, seeds map[string]string) (int, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	seeded := 0
	start := time.Now()
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		for key, value := range seeds {
			encoded, err := db.encodeSettingValue(key, value)
			if err != nil {
				return err
			}
			res, err := tx.ExecContext(ctx, `INSERT INTO settings (key, value, updated_at)
				VALUES (?, ?, ?)
				ON CONFLICT(key) DO NOTHING`,
				key, encoded, time.Now().UTC(),
			)
			if err != nil {
				return fmt.Errorf("failed to seed setting %s: %w", key, err)
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if affected > 0 {
				seeded++
				logging.Info().Str("key", key).Msg("Seeded setting from environment")
			}
		}
		return nil
	})
	metrics.RecordDBQuery("insert", "settings", time.Since(start), err)
	if err != nil {
		return 0, err
	}
	return seeded, nil
}

// encodeSettingValue encrypts secret values at rest. Non-secret keys and
// empty values pass through unchanged.
func (db *DB) encodeSettingValue(key, value string) (string, error) {
	if db.encryptor == nil || !models.SecretSettings[key] || value == "" {
		return value, nil
	}

	encrypted, err := db.encryptor.Encrypt(value)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt setting %s: %w", key, err)
	}
	return encryptedValuePrefix + encrypted, nil
}

// decodeSettingValue reverses encodeSettingValue. Plaintext rows (written
// before encryption was enabled, or non-secret keys) pass through.
func (db *DB) decodeSettingValue(key, value string) (string, error) {
	if !strings.HasPrefix(value, encryptedValuePrefix) {
		return value, nil
	}
	if db.encryptor == nil {
		return "", fmt.Errorf("setting %s: %w", key, ErrEncryptedSetting)
	}

	decrypted, err := db.encryptor.Decrypt(strings.TrimPrefix(value, encryptedValuePrefix))
	if err != nil {
		return "", fmt.Errorf("failed to decrypt setting %s: %w", key, err)
	}
	return decrypted, nil
}
