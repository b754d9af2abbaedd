// Copyright 2026 The Opengroup Authors
// SPDX-License-Identifier: Apache-2.0

// Package store persists community-server state between poll cycles:
// server records, per-room cursors and metadata, capability sets,
// blinded-ID lookups, and room images.
//
// Two implementations exist. Memory is for tests and ephemeral use;
// Pebble persists to disk with CBOR-encoded records and
// zstd-compressed, content-addressed image blobs.
//
// Cursor updates are monotonic: AdvanceSequence and the inbox/outbox
// cursor methods only ever raise the stored value. A poll response
// that arrives late or replays old data can never move a cursor
// backwards.
package store
