// Copyright 2026 The Opengroup Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"
	"net/url"
	"strings"
)

// ServerURL is a normalized community-server base URL. Normalization
// lowercases the scheme and host and strips any trailing slash, so the
// same server always maps to the same string key. This matters because
// poller registries, capability records, and room records are all
// keyed by the server string.
type ServerURL struct {
	url string
}

// ParseServerURL validates and normalizes a raw server URL. The URL
// must be absolute with an http or https scheme and no path, query, or
// fragment components beyond an optional trailing slash.
func ParseServerURL(raw string) (ServerURL, error) {
	if raw == "" {
		return ServerURL{}, fmt.Errorf("empty server URL")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return ServerURL{}, fmt.Errorf("invalid server URL %q: %w", raw, err)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return ServerURL{}, fmt.Errorf("server URL must use http or https: %q", raw)
	}
	if parsed.Host == "" {
		return ServerURL{}, fmt.Errorf("server URL missing host: %q", raw)
	}
	if strings.TrimRight(parsed.Path, "/") != "" || parsed.RawQuery != "" || parsed.Fragment != "" {
		return ServerURL{}, fmt.Errorf("server URL must be a bare base URL: %q", raw)
	}
	return ServerURL{url: scheme + "://" + strings.ToLower(parsed.Host)}, nil
}

// String returns the normalized base URL (no trailing slash).
func (s ServerURL) String() string { return s.url }

// IsZero reports whether the ServerURL is the zero value.
func (s ServerURL) IsZero() bool { return s.url == "" }

// MarshalText implements encoding.TextMarshaler.
func (s ServerURL) MarshalText() ([]byte, error) { return []byte(s.url), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *ServerURL) UnmarshalText(text []byte) error {
	parsed, err := ParseServerURL(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
