// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package webpush

import (
	"context"
	"encoding/base64"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/trafikinfo/trafikinfo/internal/logging"
	"github.com/trafikinfo/trafikinfo/internal/models"
)

func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

type fakeSettings struct {
	mu     sync.Mutex
	values map[string]string
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{values: make(map[string]string)}
}

func (f *fakeSettings) GetSetting(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[key], nil
}

func (f *fakeSettings) SetSettings(_ context.Context, settings map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, v := range settings {
		f.values[k] = v
	}
	return nil
}

func TestLoadOrCreateKeysGeneratesAndPersists(t *testing.T) {
	store := newFakeSettings()
	ctx := context.Background()

	keys, err := loadOrCreateKeys(ctx, store)
	if err != nil {
		t.Fatalf("loadOrCreateKeys() error = %v", err)
	}

	priv := store.values[models.SettingVAPIDPrivateKey]
	if !strings.Contains(priv, "BEGIN PRIVATE KEY") {
		t.Errorf("stored private key is not PKCS#8 PEM: %q", priv)
	}
	pub := store.values[models.SettingVAPIDPublicKey]
	if pub != keys.publicB64 {
		t.Errorf("stored public key %q != returned %q", pub, keys.publicB64)
	}

	raw, err := base64.RawURLEncoding.DecodeString(pub)
	if err != nil {
		t.Fatalf("public key not URL-safe base64: %v", err)
	}
	if len(raw) != 65 || raw[0] != 0x04 {
		t.Errorf("public key is not an uncompressed P-256 point: %d bytes, lead 0x%02x", len(raw), raw[0])
	}

	// Second load must parse the stored pair, not generate a new one.
	again, err := loadOrCreateKeys(ctx, store)
	if err != nil {
		t.Fatalf("second loadOrCreateKeys() error = %v", err)
	}
	if again.publicB64 != keys.publicB64 {
		t.Error("reload produced a different key pair")
	}
}

func TestLoadOrCreateKeysRejectsGarbage(t *testing.T) {
	store := newFakeSettings()
	store.values[models.SettingVAPIDPrivateKey] = "not a pem"
	if _, err := loadOrCreateKeys(context.Background(), store); err == nil {
		t.Error("loadOrCreateKeys() accepted a corrupt stored key")
	}
}

func TestAuthorizationHeader(t *testing.T) {
	keys, err := loadOrCreateKeys(context.Background(), newFakeSettings())
	if err != nil {
		t.Fatalf("loadOrCreateKeys() error = %v", err)
	}

	header, err := keys.authorization("https://push.example.com/send/abc123", "mailto:ops@example.com")
	if err != nil {
		t.Fatalf("authorization() error = %v", err)
	}
	if !strings.HasPrefix(header, "vapid t=") {
		t.Fatalf("header = %q", header)
	}
	if !strings.Contains(header, ", k="+keys.publicB64) {
		t.Errorf("header missing public key: %q", header)
	}

	tokenStr := strings.TrimPrefix(header, "vapid t=")
	tokenStr = tokenStr[:strings.Index(tokenStr, ",")]

	token, err := jwt.Parse(tokenStr, func(tok *jwt.Token) (interface{}, error) {
		if tok.Method != jwt.SigningMethodES256 {
			t.Errorf("signing method = %v", tok.Method)
		}
		return &keys.private.PublicKey, nil
	})
	if err != nil || !token.Valid {
		t.Fatalf("token invalid: %v", err)
	}

	claims := token.Claims.(jwt.MapClaims)
	if claims["aud"] != "https://push.example.com" {
		t.Errorf("aud = %v, want push service origin", claims["aud"])
	}
	if claims["sub"] != "mailto:ops@example.com" {
		t.Errorf("sub = %v", claims["sub"])
	}
}

func TestAuthorizationRejectsBadEndpoint(t *testing.T) {
	keys, err := loadOrCreateKeys(context.Background(), newFakeSettings())
	if err != nil {
		t.Fatalf("loadOrCreateKeys() error = %v", err)
	}
	if _, err := keys.authorization("::not a url", "mailto:x@y"); err == nil {
		t.Error("authorization() accepted an invalid endpoint")
	}
}
