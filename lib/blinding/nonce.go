// Copyright 2026 The Opengroup Authors
// SPDX-License-Identifier: Apache-2.0

package blinding

import (
	"crypto/rand"
	"fmt"
)

// Nonce sizes used by the protocol.
const (
	// RequestNonceSize is the size of the nonce bound into request
	// signatures (the X-SOGS-Nonce header value before encoding).
	RequestNonceSize = 16
	// EncryptionNonceSize is the XChaCha20-Poly1305 nonce size.
	EncryptionNonceSize = 24
)

// GenerateNonce returns n cryptographically secure random bytes.
func GenerateNonce(n int) ([]byte, error) {
	nonce := make([]byte, n)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating %d-byte nonce: %w", n, err)
	}
	return nonce, nil
}

// GenerateRequestNonce returns a fresh 16-byte request nonce.
func GenerateRequestNonce() ([]byte, error) {
	return GenerateNonce(RequestNonceSize)
}

// GenerateEncryptionNonce returns a fresh 24-byte AEAD nonce.
func GenerateEncryptionNonce() ([]byte, error) {
	return GenerateNonce(EncryptionNonceSize)
}
