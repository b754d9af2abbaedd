// Copyright 2026 The Opengroup Authors
// SPDX-License-Identifier: Apache-2.0

package blinding

import (
	"crypto/subtle"
	"fmt"

	"filippo.io/edwards25519"
	"filippo.io/edwards25519/field"

	"github.com/opengroup-foundation/sogs/lib/ref"
)

// MatchesBlindedID reports whether blinded is a blinding of standard
// on the server identified by serverPublicKey.
//
// A standard session ID carries an X25519 public key, and converting
// it to Ed25519 loses the sign of the point: both kA and -kA are
// legitimate blindings of the same identity. Both candidates are
// derived and compared, so a match is found regardless of which sign
// the other client's library produced.
func MatchesBlindedID(standard ref.SessionID, blinded ref.BlindedID, serverPublicKey string) (bool, error) {
	if standard.IsZero() || blinded.IsZero() {
		return false, fmt.Errorf("session and blinded IDs are required")
	}

	factorBytes, err := GenerateBlindingFactor(serverPublicKey)
	if err != nil {
		return false, fmt.Errorf("blinding factor: %w", err)
	}

	edPublicKey, err := x25519ToEd25519(standard.PublicKey())
	if err != nil {
		return false, fmt.Errorf("converting session key: %w", err)
	}

	positive, err := CombineKeys(factorBytes, edPublicKey)
	if err != nil {
		return false, fmt.Errorf("deriving blinded key: %w", err)
	}

	// Flip the sign bit for the negated candidate.
	negative := make([]byte, len(positive))
	copy(negative, positive)
	negative[31] ^= 0x80

	target := blinded.PublicKey()
	matchesPositive := subtle.ConstantTimeCompare(target, positive) == 1
	matchesNegative := subtle.ConstantTimeCompare(target, negative) == 1
	return matchesPositive || matchesNegative, nil
}

// x25519ToEd25519 converts a Montgomery-form X25519 public key to the
// compressed Edwards form with the sign bit clear, via the birational
// map y = (u-1)/(u+1).
func x25519ToEd25519(montgomeryKey []byte) ([]byte, error) {
	if len(montgomeryKey) != PublicKeySize {
		return nil, fmt.Errorf("x25519 public key must be %d bytes, got %d", PublicKeySize, len(montgomeryKey))
	}

	// The top bit of a Montgomery u-coordinate is ignored by X25519
	// implementations; mask it before field decoding.
	uBytes := make([]byte, PublicKeySize)
	copy(uBytes, montgomeryKey)
	uBytes[31] &= 0x7f

	u := new(field.Element)
	if _, err := u.SetBytes(uBytes); err != nil {
		return nil, fmt.Errorf("decoding u coordinate: %w", err)
	}

	one := new(field.Element).One()
	numerator := new(field.Element).Subtract(u, one)
	denominator := new(field.Element).Add(u, one)
	denominator.Invert(denominator)

	y := new(field.Element).Multiply(numerator, denominator)
	yBytes := y.Bytes()

	// Round-trip through a Point to reject non-curve encodings early.
	if _, err := (&edwards25519.Point{}).SetBytes(yBytes); err != nil {
		return nil, fmt.Errorf("converted key is not on the curve: %w", err)
	}
	return yBytes, nil
}
