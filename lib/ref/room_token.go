// Copyright 2026 The Opengroup Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"
)

// maxRoomTokenLength bounds room tokens per the SOGS room creation
// rules.
const maxRoomTokenLength = 64

// RoomToken is a validated community room token: 1-64 characters of
// [a-zA-Z0-9_-]. Room state is scoped to a (server, room token) pair.
type RoomToken struct {
	token string
}

// ParseRoomToken validates and wraps a raw room token string.
func ParseRoomToken(raw string) (RoomToken, error) {
	if raw == "" {
		return RoomToken{}, fmt.Errorf("empty room token")
	}
	if len(raw) > maxRoomTokenLength {
		return RoomToken{}, fmt.Errorf("room token exceeds %d characters: %q", maxRoomTokenLength, raw)
	}
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '_' || c == '-':
		default:
			return RoomToken{}, fmt.Errorf("room token contains invalid character %q: %q", c, raw)
		}
	}
	return RoomToken{token: raw}, nil
}

// String returns the room token string.
func (r RoomToken) String() string { return r.token }

// IsZero reports whether the RoomToken is the zero value.
func (r RoomToken) IsZero() bool { return r.token == "" }

// MarshalText implements encoding.TextMarshaler.
func (r RoomToken) MarshalText() ([]byte, error) { return []byte(r.token), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *RoomToken) UnmarshalText(text []byte) error {
	parsed, err := ParseRoomToken(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
