// Copyright 2026 The Opengroup Authors
// SPDX-License-Identifier: Apache-2.0

package poller

import (
	"github.com/opengroup-foundation/sogs/lib/ref"
)

// PendingChangeKind identifies the type of an optimistic local
// change awaiting server confirmation.
type PendingChangeKind int

const (
	// PendingReactionAdd records a locally-applied reaction add.
	PendingReactionAdd PendingChangeKind = iota
	// PendingReactionRemove records a locally-applied reaction
	// removal.
	PendingReactionRemove
	// PendingReactionClear records a locally-applied clear of a
	// message's reactions: one emoji, or every emoji when Emoji is
	// empty.
	PendingReactionClear
)

// PendingChange is an optimistic local change. The UI applies the
// change immediately, records it here with the sequence number the
// server assigned, and the merge loop reconciles the server's
// reaction snapshots for the message against it until the room
// cursor passes SeqNo.
type PendingChange struct {
	Server    ref.ServerURL
	Room      ref.RoomToken
	MessageID int64
	// SeqNo is the sequence number the server assigned to this change
	// (from the reaction endpoint's response). The change retires once
	// the room cursor reaches it.
	SeqNo int64
	Kind  PendingChangeKind
	Emoji string
}

// PendingChanges is the merge loop's view of outstanding optimistic
// changes. The Manager implements it.
type PendingChanges interface {
	// PendingChangesFor returns the outstanding changes for one
	// message, in the order they were recorded.
	PendingChangesFor(server ref.ServerURL, room ref.RoomToken, messageID int64) []PendingChange

	// RetirePendingChanges drops changes for the room whose SeqNo is
	// at or below the cursor.
	RetirePendingChanges(server ref.ServerURL, room ref.RoomToken, cursor int64)
}
