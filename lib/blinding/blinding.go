// Copyright 2026 The Opengroup Authors
// SPDX-License-Identifier: Apache-2.0

package blinding

import (
	"crypto/sha512"
	"encoding/hex"
	"fmt"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/blake2b"
)

// Key and scalar sizes, in bytes.
const (
	// PublicKeySize is the size of an Ed25519 or blinded public key.
	PublicKeySize = 32
	// ScalarSize is the size of a Curve25519 scalar.
	ScalarSize = 32
	// SecretKeySize is the size of a full Ed25519 secret key
	// (32-byte seed followed by the 32-byte public key).
	SecretKeySize = 64
)

// KeyPair is a blinded keypair: the secret scalar ka and the public
// point kA = ka·B.
type KeyPair struct {
	PublicKey []byte
	SecretKey []byte
}

// scalarFromBytes interprets a 32-byte little-endian value as a scalar
// mod the group order. Unlike SetCanonicalBytes this accepts clamped
// scalars, whose high bit pattern puts them above the group order.
func scalarFromBytes(b []byte) (*edwards25519.Scalar, error) {
	if len(b) != ScalarSize {
		return nil, fmt.Errorf("scalar must be %d bytes, got %d", ScalarSize, len(b))
	}
	wide := make([]byte, 64)
	copy(wide, b)
	return edwards25519.NewScalar().SetUniformBytes(wide)
}

// GenerateBlindingFactor computes the per-server blinding factor
// k = reduce(BLAKE2b-512(serverPublicKey)). The server public key is
// the hex-encoded 32-byte static key published by the server.
func GenerateBlindingFactor(serverPublicKey string) ([]byte, error) {
	serverKeyBytes, err := hex.DecodeString(serverPublicKey)
	if err != nil {
		return nil, fmt.Errorf("decoding server public key: %w", err)
	}
	digest := blake2b.Sum512(serverKeyBytes)
	factor, err := edwards25519.NewScalar().SetUniformBytes(digest[:])
	if err != nil {
		return nil, fmt.Errorf("reducing blinding factor: %w", err)
	}
	return factor.Bytes(), nil
}

// PrivateKeyScalar converts a 64-byte Ed25519 secret key into its
// Curve25519 private scalar a: the clamped first half of
// SHA-512(seed). Deterministic for any valid secret key.
func PrivateKeyScalar(edSecretKey []byte) ([]byte, error) {
	if len(edSecretKey) != SecretKeySize {
		return nil, fmt.Errorf("ed25519 secret key must be %d bytes, got %d", SecretKeySize, len(edSecretKey))
	}
	digest := sha512.Sum512(edSecretKey[:32])
	scalar, err := edwards25519.NewScalar().SetBytesWithClamping(digest[:32])
	if err != nil {
		return nil, fmt.Errorf("clamping private scalar: %w", err)
	}
	return scalar.Bytes(), nil
}

// BlindedKeyPair derives the per-server blinded keypair (ka, kA) for
// the given Ed25519 identity: ka = k*a, kA = ka·B with no clamping on
// the basepoint multiplication.
func BlindedKeyPair(serverPublicKey string, edSecretKey []byte) (*KeyPair, error) {
	factorBytes, err := GenerateBlindingFactor(serverPublicKey)
	if err != nil {
		return nil, fmt.Errorf("blinding factor: %w", err)
	}
	factor, err := scalarFromBytes(factorBytes)
	if err != nil {
		return nil, err
	}

	scalarBytes, err := PrivateKeyScalar(edSecretKey)
	if err != nil {
		return nil, err
	}
	private, err := scalarFromBytes(scalarBytes)
	if err != nil {
		return nil, err
	}

	blindedSecret := edwards25519.NewScalar().Multiply(factor, private)
	blindedPublic := (&edwards25519.Point{}).ScalarBaseMult(blindedSecret)

	return &KeyPair{
		PublicKey: blindedPublic.Bytes(),
		SecretKey: blindedSecret.Bytes(),
	}, nil
}

// CombineKeys multiplies a curve point by a scalar without clamping:
// lhs·rhs where lhs is a 32-byte scalar and rhs a 32-byte compressed
// point. Used both for blinded key derivation and for DM shared-secret
// computation.
func CombineKeys(lhs, rhs []byte) ([]byte, error) {
	scalar, err := scalarFromBytes(lhs)
	if err != nil {
		return nil, err
	}
	if len(rhs) != PublicKeySize {
		return nil, fmt.Errorf("point must be %d bytes, got %d", PublicKeySize, len(rhs))
	}
	point, err := (&edwards25519.Point{}).SetBytes(rhs)
	if err != nil {
		return nil, fmt.Errorf("decoding point: %w", err)
	}
	return (&edwards25519.Point{}).ScalarMult(scalar, point).Bytes(), nil
}

// SharedBlindedEncryptionKey derives the symmetric key for direct
// messages between two blinded identities:
// BLAKE2b-256(a·otherBlindedPublicKey ‖ fromBlinded ‖ toBlinded).
// Sender and receiver arrive at the same key because each contributes
// its own private scalar against the other side's blinded point, and
// the kA/kB ordering is fixed by message direction (from, then to).
func SharedBlindedEncryptionKey(edSecretKey, otherBlindedPublicKey, fromBlinded, toBlinded []byte) ([]byte, error) {
	scalarBytes, err := PrivateKeyScalar(edSecretKey)
	if err != nil {
		return nil, err
	}
	combined, err := CombineKeys(scalarBytes, otherBlindedPublicKey)
	if err != nil {
		return nil, fmt.Errorf("combining keys: %w", err)
	}
	if len(fromBlinded) != PublicKeySize || len(toBlinded) != PublicKeySize {
		return nil, fmt.Errorf("blinded public keys must be %d bytes", PublicKeySize)
	}

	hash, err := blake2b.New(32, nil)
	if err != nil {
		return nil, fmt.Errorf("initializing hash: %w", err)
	}
	hash.Write(combined)
	hash.Write(fromBlinded)
	hash.Write(toBlinded)
	return hash.Sum(nil), nil
}
