// Copyright 2026 The Opengroup Authors
// SPDX-License-Identifier: Apache-2.0

package blinding

import (
	"crypto/sha512"
	"fmt"

	"filippo.io/edwards25519"
)

// SignatureSize is the size of a blinded signature: R ‖ s.
const SignatureSize = 64

// Signature produces a Schnorr-style signature over message on behalf
// of the blinded public key kA, using the real Ed25519 secret key and
// the blinded secret scalar ka. The result verifies as a standard
// Ed25519 signature when kA is treated as the public key.
//
// This is deliberately NOT Ed25519 signing with a derived keypair: the
// nonce hash and the challenge hash both bind kA, so a signature
// computed for one blinded identity can never be replayed as valid for
// another blinding of the same key.
//
// Construction:
//
//	H_rh = SHA-512(edSecretKey)[32:]
//	r    = reduce(SHA-512(H_rh ‖ kA ‖ message))
//	R    = r·B
//	HRAM = reduce(SHA-512(R ‖ kA ‖ message))
//	s    = r + HRAM*ka
//
// returning R ‖ s.
func Signature(message, edSecretKey, blindedSecretKey, blindedPublicKey []byte) ([]byte, error) {
	if len(edSecretKey) != SecretKeySize {
		return nil, fmt.Errorf("ed25519 secret key must be %d bytes, got %d", SecretKeySize, len(edSecretKey))
	}
	if len(blindedPublicKey) != PublicKeySize {
		return nil, fmt.Errorf("blinded public key must be %d bytes, got %d", PublicKeySize, len(blindedPublicKey))
	}

	ka, err := scalarFromBytes(blindedSecretKey)
	if err != nil {
		return nil, fmt.Errorf("blinded secret key: %w", err)
	}

	// The second half of the secret key hash serves as the
	// deterministic nonce seed, as in RFC 8032 signing.
	secretDigest := sha512.Sum512(edSecretKey)
	nonceSeed := secretDigest[32:]

	nonceHash := sha512.New()
	nonceHash.Write(nonceSeed)
	nonceHash.Write(blindedPublicKey)
	nonceHash.Write(message)
	r, err := edwards25519.NewScalar().SetUniformBytes(nonceHash.Sum(nil))
	if err != nil {
		return nil, fmt.Errorf("reducing nonce scalar: %w", err)
	}

	sigR := (&edwards25519.Point{}).ScalarBaseMult(r).Bytes()

	challengeHash := sha512.New()
	challengeHash.Write(sigR)
	challengeHash.Write(blindedPublicKey)
	challengeHash.Write(message)
	hram, err := edwards25519.NewScalar().SetUniformBytes(challengeHash.Sum(nil))
	if err != nil {
		return nil, fmt.Errorf("reducing challenge scalar: %w", err)
	}

	sigS := edwards25519.NewScalar().MultiplyAdd(hram, ka, r)

	signature := make([]byte, 0, SignatureSize)
	signature = append(signature, sigR...)
	signature = append(signature, sigS.Bytes()...)
	return signature, nil
}
