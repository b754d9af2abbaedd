// Copyright 2026 The Opengroup Authors
// SPDX-License-Identifier: Apache-2.0

package blinding

import (
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// EncryptionKeySize is the XChaCha20-Poly1305 key size.
const EncryptionKeySize = chacha20poly1305.KeySize

// Encrypt seals plaintext with XChaCha20-Poly1305-IETF. The key must
// be 32 bytes (typically from SharedBlindedEncryptionKey) and the
// nonce 24 bytes. The returned ciphertext includes the Poly1305 tag
// but not the nonce; callers transport the nonce alongside.
func Encrypt(plaintext, key, nonce []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("initializing cipher: %w", err)
	}
	if len(nonce) != chacha20poly1305.NonceSizeX {
		return nil, fmt.Errorf("nonce must be %d bytes, got %d", chacha20poly1305.NonceSizeX, len(nonce))
	}
	return aead.Seal(nil, nonce, plaintext, nil), nil
}

// Decrypt opens an XChaCha20-Poly1305-IETF ciphertext. A decryption
// failure means the key is wrong or the ciphertext was tampered with;
// callers must treat it as a permanent data-integrity error for that
// ciphertext, never as something to retry.
func Decrypt(ciphertext, key, nonce []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("initializing cipher: %w", err)
	}
	if len(nonce) != chacha20poly1305.NonceSizeX {
		return nil, fmt.Errorf("nonce must be %d bytes, got %d", chacha20poly1305.NonceSizeX, len(nonce))
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}
	return plaintext, nil
}
