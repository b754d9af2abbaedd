// Copyright 2026 The Opengroup Authors
// SPDX-License-Identifier: Apache-2.0

// Package poller drives periodic synchronization against community
// servers. A Manager owns one Poller per server; each Poller runs an
// independent cycle that batches capabilities, room poll-info, room
// messages, and direct-message fetches into a single signed /batch
// call, then merges the results into the store.
//
// Merging is where the ordering guarantees live. Message updates are
// applied in ascending ID order, the room sequence cursor only ever
// advances, and optimistic local reaction changes suppress stale
// server reaction state until the server's sequence number catches
// up to them.
package poller
