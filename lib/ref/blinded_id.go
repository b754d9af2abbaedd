// Copyright 2026 The Opengroup Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// BlindedID is a validated per-server pseudonymous identity: "15" or
// "25" followed by 64 lowercase hex characters. The same user carries
// a different BlindedID on every server (see lib/blinding).
type BlindedID struct {
	id string
}

// ParseBlindedID validates and wraps a raw blinded ID string.
func ParseBlindedID(raw string) (BlindedID, error) {
	normalized := strings.ToLower(raw)
	if len(normalized) != SessionIDLength {
		return BlindedID{}, fmt.Errorf("blinded ID must be %d characters, got %d: %q", SessionIDLength, len(normalized), raw)
	}
	prefix := normalized[:2]
	if prefix != PrefixBlinded15 && prefix != PrefixBlinded25 {
		return BlindedID{}, fmt.Errorf("blinded ID must start with %q or %q: %q", PrefixBlinded15, PrefixBlinded25, raw)
	}
	if _, err := hex.DecodeString(normalized); err != nil {
		return BlindedID{}, fmt.Errorf("blinded ID is not valid hex: %q", raw)
	}
	return BlindedID{id: normalized}, nil
}

// BlindedIDFromPublicKey builds a "15"-prefixed blinded ID from a
// 32-byte blinded Ed25519 public key.
func BlindedIDFromPublicKey(publicKey []byte) (BlindedID, error) {
	if len(publicKey) != 32 {
		return BlindedID{}, fmt.Errorf("blinded ID public key must be 32 bytes, got %d", len(publicKey))
	}
	return BlindedID{id: PrefixBlinded15 + hex.EncodeToString(publicKey)}, nil
}

// String returns the full blinded ID string.
func (b BlindedID) String() string { return b.id }

// IsZero reports whether the BlindedID is the zero value.
func (b BlindedID) IsZero() bool { return b.id == "" }

// PublicKey returns the 32-byte blinded public key portion.
func (b BlindedID) PublicKey() []byte {
	if b.id == "" {
		return nil
	}
	key, _ := hex.DecodeString(b.id[2:])
	return key
}

// MarshalText implements encoding.TextMarshaler.
func (b BlindedID) MarshalText() ([]byte, error) { return []byte(b.id), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *BlindedID) UnmarshalText(text []byte) error {
	parsed, err := ParseBlindedID(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}
