// Copyright 2026 The Opengroup Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport executes prepared community-server requests over
// HTTP. It owns everything below the request model: connection
// pooling, per-server rate limiting, response size bounds, and the
// mapping of non-2xx responses to typed errors.
//
// The community package builds and signs requests; this package only
// moves bytes. That split keeps signing deterministic and testable
// without a network.
package transport
