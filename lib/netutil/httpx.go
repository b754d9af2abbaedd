// Copyright 2026 The Opengroup Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides HTTP I/O helpers for the SOGS transport.
//
// Response body reads are bounded at MaxResponseSize to prevent
// unbounded memory allocation from a misbehaving or malicious
// community server. The bound covers JSON API and batch responses;
// file downloads also fit comfortably since SOGS file uploads are
// themselves size-limited by the server.
package netutil

import (
	"io"
)

// MaxResponseSize is the bound on response body reads: 64 MB. This
// exists solely to prevent a pathological response from exhausting
// memory; legitimate poll and file responses are far smaller.
const MaxResponseSize int64 = 64 << 20

// ReadResponse reads a response body up to MaxResponseSize bytes.
// Use instead of io.ReadAll when reading HTTP response bodies.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}

// ErrorBody reads an HTTP error response body and returns it as a
// string for diagnostic error messages. Read errors are silently
// ignored — a partial or empty body is still useful in an error
// message.
func ErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, MaxResponseSize))
	return string(data)
}
