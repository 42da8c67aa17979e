// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package webpush

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/trafikinfo/trafikinfo/internal/logging"
	"github.com/trafikinfo/trafikinfo/internal/models"
)

// vapidTokenTTL is the JWT expiry. Push services accept up to 24 h; half
// that leaves clock-skew headroom.
const vapidTokenTTL = 12 * time.Hour

// SettingsStore persists the VAPID key pair across restarts.
type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSettings(ctx context.Context, settings map[string]string) error
}

// vapidKeys is the loaded signing key pair. PublicB64 is the URL-safe
// base64 uncompressed P-256 point handed to subscribing browsers.
type vapidKeys struct {
	private   *ecdsa.PrivateKey
	publicB64 string
}

// loadOrCreateKeys returns the persisted VAPID pair, generating and storing
// a fresh one on first use.
func loadOrCreateKeys(ctx context.Context, store SettingsStore) (*vapidKeys, error) {
	privPEM, err := store.GetSetting(ctx, models.SettingVAPIDPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read vapid private key: %w", err)
	}
	if privPEM != "" {
		keys, err := parseKeys(privPEM)
		if err != nil {
			return nil, fmt.Errorf("stored vapid key is invalid: %w", err)
		}
		return keys, nil
	}

	private, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate vapid key: %w", err)
	}

	der, err := x509.MarshalPKCS8PrivateKey(private)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal vapid key: %w", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	publicB64, err := encodePublicKey(private)
	if err != nil {
		return nil, err
	}

	err = store.SetSettings(ctx, map[string]string{
		models.SettingVAPIDPrivateKey: string(pemBytes),
		models.SettingVAPIDPublicKey:  publicB64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist vapid keys: %w", err)
	}

	logging.Info().Str("component", "webpush").Msg("Generated new VAPID key pair")
	return &vapidKeys{private: private, publicB64: publicB64}, nil
}

// parseKeys rebuilds the pair from the stored PKCS#8 PEM.
func parseKeys(privPEM string) (*vapidKeys, error) {
	block, _ := pem.Decode([]byte(privPEM))
	if block == nil {
		return nil, errors.New("no PEM block in stored key")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	private, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("stored key is %T, want *ecdsa.PrivateKey", parsed)
	}

	publicB64, err := encodePublicKey(private)
	if err != nil {
		return nil, err
	}
	return &vapidKeys{private: private, publicB64: publicB64}, nil
}

// encodePublicKey renders the public key as the URL-safe base64 uncompressed
// point browsers expect in applicationServerKey.
func encodePublicKey(private *ecdsa.PrivateKey) (string, error) {
	pub, err := private.PublicKey.ECDH()
	if err != nil {
		return "", fmt.Errorf("failed to convert vapid public key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(pub.Bytes()), nil
}

// authorization builds the RFC 8292 Authorization header for one endpoint.
// The JWT audience is the push service origin, not the full endpoint.
func (k *vapidKeys) authorization(endpoint, subject string) (string, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("invalid push endpoint %q", endpoint)
	}

	claims := jwt.MapClaims{
		"aud": parsed.Scheme + "://" + parsed.Host,
		"exp": time.Now().Add(vapidTokenTTL).Unix(),
		"sub": subject,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(k.private)
	if err != nil {
		return "", fmt.Errorf("failed to sign vapid token: %w", err)
	}
	return "vapid t=" + token + ", k=" + k.publicB64, nil
}
