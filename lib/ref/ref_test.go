// Copyright 2026 The Opengroup Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"strings"
	"testing"
)

func TestParseSessionID(t *testing.T) {
	valid := "05" + strings.Repeat("ab", 32)

	id, err := ParseSessionID(valid)
	if err != nil {
		t.Fatalf("ParseSessionID(%q) error: %v", valid, err)
	}
	if id.String() != valid {
		t.Errorf("String() = %q, want %q", id.String(), valid)
	}
	if len(id.PublicKey()) != 32 {
		t.Errorf("PublicKey() length = %d, want 32", len(id.PublicKey()))
	}

	// Uppercase input normalizes to lowercase.
	upper, err := ParseSessionID(strings.ToUpper(valid))
	if err != nil {
		t.Fatalf("ParseSessionID(upper) error: %v", err)
	}
	if upper.String() != valid {
		t.Errorf("uppercase input: String() = %q, want %q", upper.String(), valid)
	}

	invalid := []string{
		"",
		"05abcd",                         // too short
		"15" + strings.Repeat("ab", 32),  // blinded prefix
		"05" + strings.Repeat("zz", 32),  // not hex
		"05" + strings.Repeat("ab", 33),  // too long
	}
	for _, raw := range invalid {
		if _, err := ParseSessionID(raw); err == nil {
			t.Errorf("ParseSessionID(%q) succeeded, want error", raw)
		}
	}
}

func TestParseBlindedID(t *testing.T) {
	for _, prefix := range []string{PrefixBlinded15, PrefixBlinded25} {
		raw := prefix + strings.Repeat("cd", 32)
		id, err := ParseBlindedID(raw)
		if err != nil {
			t.Fatalf("ParseBlindedID(%q) error: %v", raw, err)
		}
		if id.String() != raw {
			t.Errorf("String() = %q, want %q", id.String(), raw)
		}
	}

	if _, err := ParseBlindedID("05" + strings.Repeat("cd", 32)); err == nil {
		t.Error("ParseBlindedID accepted a standard-prefix ID")
	}
}

func TestParseServerURL(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"https://open.example.org", "https://open.example.org"},
		{"https://Open.Example.ORG/", "https://open.example.org"},
		{"HTTP://chat.example.com:8080", "http://chat.example.com:8080"},
	}
	for _, test := range tests {
		server, err := ParseServerURL(test.raw)
		if err != nil {
			t.Errorf("ParseServerURL(%q) error: %v", test.raw, err)
			continue
		}
		if server.String() != test.want {
			t.Errorf("ParseServerURL(%q) = %q, want %q", test.raw, server.String(), test.want)
		}
	}

	invalid := []string{
		"",
		"open.example.org",                 // no scheme
		"ftp://open.example.org",           // wrong scheme
		"https://open.example.org/rooms",   // path component
		"https://open.example.org?a=b",     // query component
	}
	for _, raw := range invalid {
		if _, err := ParseServerURL(raw); err == nil {
			t.Errorf("ParseServerURL(%q) succeeded, want error", raw)
		}
	}
}

func TestParseServerURL_Normalization(t *testing.T) {
	// Two spellings of the same server must map to the same key.
	first, err := ParseServerURL("https://Example.org")
	if err != nil {
		t.Fatalf("ParseServerURL error: %v", err)
	}
	second, err := ParseServerURL("https://example.org/")
	if err != nil {
		t.Fatalf("ParseServerURL error: %v", err)
	}
	if first.String() != second.String() {
		t.Errorf("normalization mismatch: %q vs %q", first.String(), second.String())
	}
}

func TestParseRoomToken(t *testing.T) {
	valid := []string{"lobby", "dev-chat", "room_42", "A"}
	for _, raw := range valid {
		token, err := ParseRoomToken(raw)
		if err != nil {
			t.Errorf("ParseRoomToken(%q) error: %v", raw, err)
			continue
		}
		if token.String() != raw {
			t.Errorf("String() = %q, want %q", token.String(), raw)
		}
	}

	invalid := []string{"", "has space", "sömething", strings.Repeat("a", 65)}
	for _, raw := range invalid {
		if _, err := ParseRoomToken(raw); err == nil {
			t.Errorf("ParseRoomToken(%q) succeeded, want error", raw)
		}
	}
}
