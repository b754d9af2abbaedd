// Copyright 2026 The Opengroup Authors
// SPDX-License-Identifier: Apache-2.0

// Package community builds signed requests against SOGS community
// servers.
//
// Every endpoint has a typed constructor on [Client] that produces a
// [PreparedRequest]: an immutable, fully-signed description of one
// HTTP call. Prepared requests can be composed into batch or sequence
// super-requests whose heterogeneous sub-responses are decoded
// positionally and re-associated with their originating endpoints.
//
// Construction signs immediately — it needs the server's current
// public key and capability set from a [ServerDirectory], plus the
// local identity from an [Identity]. A request that cannot be signed
// is never created, so anything holding a PreparedRequest holds
// something sendable.
//
// The signing scheme selects between blinded, unblinded, and legacy
// identities per server capability; see [SelectSigningStrategy].
package community
