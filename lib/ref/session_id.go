// Copyright 2026 The Opengroup Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// SessionIDLength is the length of a session or blinded ID string:
// a two-character type prefix followed by 64 hex characters of key
// material.
const SessionIDLength = 66

// ID prefixes. The prefix identifies how the 32-byte public key that
// follows was derived.
const (
	// PrefixStandard marks an unblinded X25519 identity key.
	PrefixStandard = "05"
	// PrefixBlinded15 marks a per-server blinded Ed25519 key (the
	// original blinding scheme).
	PrefixBlinded15 = "15"
	// PrefixBlinded25 marks a per-server blinded key under the newer
	// versioned blinding scheme.
	PrefixBlinded25 = "25"
	// PrefixUnblinded marks a raw Ed25519 identity key, used when
	// signing for servers without blinding support.
	PrefixUnblinded = "00"
)

// SessionID is a validated standard (unblinded) session identity:
// "05" followed by 64 lowercase hex characters.
type SessionID struct {
	id string
}

// ParseSessionID validates and wraps a raw session ID string. The
// input is lowercased; a valid session ID is 66 characters, starts
// with "05", and is entirely hex.
func ParseSessionID(raw string) (SessionID, error) {
	normalized := strings.ToLower(raw)
	if len(normalized) != SessionIDLength {
		return SessionID{}, fmt.Errorf("session ID must be %d characters, got %d: %q", SessionIDLength, len(normalized), raw)
	}
	if !strings.HasPrefix(normalized, PrefixStandard) {
		return SessionID{}, fmt.Errorf("session ID must start with %q: %q", PrefixStandard, raw)
	}
	if _, err := hex.DecodeString(normalized); err != nil {
		return SessionID{}, fmt.Errorf("session ID is not valid hex: %q", raw)
	}
	return SessionID{id: normalized}, nil
}

// SessionIDFromPublicKey builds a session ID from a 32-byte X25519
// public key.
func SessionIDFromPublicKey(publicKey []byte) (SessionID, error) {
	if len(publicKey) != 32 {
		return SessionID{}, fmt.Errorf("session ID public key must be 32 bytes, got %d", len(publicKey))
	}
	return SessionID{id: PrefixStandard + hex.EncodeToString(publicKey)}, nil
}

// String returns the full session ID string.
func (s SessionID) String() string { return s.id }

// IsZero reports whether the SessionID is the zero value.
func (s SessionID) IsZero() bool { return s.id == "" }

// PublicKey returns the 32-byte X25519 public key portion.
func (s SessionID) PublicKey() []byte {
	if s.id == "" {
		return nil
	}
	key, _ := hex.DecodeString(s.id[2:])
	return key
}

// MarshalText implements encoding.TextMarshaler.
func (s SessionID) MarshalText() ([]byte, error) { return []byte(s.id), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *SessionID) UnmarshalText(text []byte) error {
	parsed, err := ParseSessionID(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
