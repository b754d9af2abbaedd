// Copyright 2026 The Opengroup Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides validated identifier value types for the SOGS
// client: session IDs, blinded IDs, server URLs, and room tokens.
//
// All types are immutable values created by Parse functions that
// validate at the boundary. Code elsewhere in the module never
// constructs these from raw strings — identifiers arrive from
// configuration, the local identity, or server responses, and are
// parsed into these types exactly once.
//
// The zero value of every type is invalid; use IsZero to check.
package ref
