// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package webpush

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	// recordSize is the rs field of the aes128gcm content header. One
	// record carries the whole payload; push payloads are small.
	recordSize = 4096

	authSecretLen = 16
	saltLen       = 16
	gcmTagLen     = 16

	// maxPlaintext keeps the single record inside recordSize with the
	// delimiter and GCM tag accounted for.
	maxPlaintext = recordSize - gcmTagLen - 1 - 86
)

// encrypt seals plaintext for one subscription per RFC 8291 (aes128gcm).
// p256dh is the client public key, auth the client auth secret, both
// URL-safe base64 from the browser subscription object. The result is the
// complete request body: content header followed by one sealed record.
func encrypt(p256dh, auth string, plaintext []byte) ([]byte, error) {
	if len(plaintext) > maxPlaintext {
		return nil, fmt.Errorf("push payload too large: %d bytes", len(plaintext))
	}

	uaPubBytes, err := decodeB64(p256dh)
	if err != nil {
		return nil, fmt.Errorf("invalid p256dh key: %w", err)
	}
	authSecret, err := decodeB64(auth)
	if err != nil {
		return nil, fmt.Errorf("invalid auth secret: %w", err)
	}
	if len(authSecret) != authSecretLen {
		return nil, fmt.Errorf("auth secret is %d bytes, want %d", len(authSecret), authSecretLen)
	}

	curve := ecdh.P256()
	uaPub, err := curve.NewPublicKey(uaPubBytes)
	if err != nil {
		return nil, fmt.Errorf("invalid p256dh point: %w", err)
	}

	asPriv, err := curve.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate message key: %w", err)
	}
	asPubBytes := asPriv.PublicKey().Bytes()

	sharedSecret, err := asPriv.ECDH(uaPub)
	if err != nil {
		return nil, fmt.Errorf("ecdh agreement failed: %w", err)
	}

	// IKM = HKDF(salt=auth_secret, ikm=ecdh_secret,
	//            info="WebPush: info" || 0x00 || ua_public || as_public)
	prkInfo := append([]byte("WebPush: info\x00"), uaPubBytes...)
	prkInfo = append(prkInfo, asPubBytes...)
	ikm := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, sharedSecret, authSecret, prkInfo), ikm); err != nil {
		return nil, fmt.Errorf("hkdf ikm failed: %w", err)
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	cek := make([]byte, 16)
	if _, err := io.ReadFull(hkdf.New(sha256.New, ikm, salt, []byte("Content-Encoding: aes128gcm\x00")), cek); err != nil {
		return nil, fmt.Errorf("hkdf cek failed: %w", err)
	}
	nonce := make([]byte, 12)
	if _, err := io.ReadFull(hkdf.New(sha256.New, ikm, salt, []byte("Content-Encoding: nonce\x00")), nonce); err != nil {
		return nil, fmt.Errorf("hkdf nonce failed: %w", err)
	}

	block, err := aes.NewCipher(cek)
	if err != nil {
		return nil, fmt.Errorf("aes init failed: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm init failed: %w", err)
	}

	// Last (only) record: plaintext || 0x02 delimiter.
	record := make([]byte, 0, len(plaintext)+1)
	record = append(record, plaintext...)
	record = append(record, 0x02)
	sealed := gcm.Seal(nil, nonce, record, nil)

	// Content header: salt(16) | rs(4) | idlen(1) | keyid(as_public).
	body := make([]byte, 0, saltLen+5+len(asPubBytes)+len(sealed))
	body = append(body, salt...)
	body = binary.BigEndian.AppendUint32(body, recordSize)
	body = append(body, byte(len(asPubBytes)))
	body = append(body, asPubBytes...)
	return append(body, sealed...), nil
}

// decodeB64 accepts both URL-safe and standard base64, padded or not;
// browsers are inconsistent about subscription key encoding.
func decodeB64(s string) ([]byte, error) {
	s = strings.TrimRight(s, "=")
	if strings.ContainsAny(s, "+/") {
		return base64.RawStdEncoding.DecodeString(s)
	}
	return base64.RawURLEncoding.DecodeString(s)
}
