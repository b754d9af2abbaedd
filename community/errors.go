// Copyright 2026 The Opengroup Authors
// SPDX-License-Identifier: Apache-2.0

package community

import "errors"

// Error taxonomy for request construction and response decoding.
// Transport-level failures are wrapped and propagated by the
// transport package; these sentinels cover everything the client can
// detect before sending or after receiving bytes.
var (
	// ErrNoPublicKey means the server's public key is unknown. The
	// capabilities or room endpoints must be fetched (via a join URL
	// that carries the key) before signed requests can be built.
	ErrNoPublicKey = errors.New("community: server public key unknown")

	// ErrNoIdentity means no local Ed25519 identity keypair exists.
	ErrNoIdentity = errors.New("community: no local identity keypair")

	// ErrSigningFailed means a cryptographic step of request signing
	// failed. The request must not be sent.
	ErrSigningFailed = errors.New("community: request signing failed")

	// ErrInvalidPrepared means a nil or malformed prepared request
	// was handed to the transport or batch composer.
	ErrInvalidPrepared = errors.New("community: invalid prepared request")

	// ErrParsingFailed means a response did not match the expected
	// shape for its endpoint.
	ErrParsingFailed = errors.New("community: response parsing failed")
)
