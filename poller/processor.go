// Copyright 2026 The Opengroup Authors
// SPDX-License-Identifier: Apache-2.0

package poller

import (
	"errors"

	"github.com/opengroup-foundation/sogs/community"
	"github.com/opengroup-foundation/sogs/lib/ref"
)

// Sentinel errors a MessageProcessor may return to tell the merge
// loop an update is already known or self-originated. These are
// normal outcomes: the cursor still advances past the update.
var (
	// ErrDuplicateMessage means the message was already processed in
	// an earlier cycle or arrived through another channel.
	ErrDuplicateMessage = errors.New("poller: duplicate message")
	// ErrDuplicateControlMessage means a deletion or other control
	// update was already applied.
	ErrDuplicateControlMessage = errors.New("poller: duplicate control message")
	// ErrSelfSend means the message is the local user's own, echoed
	// back by the server.
	ErrSelfSend = errors.New("poller: self-send")
)

// MessageProcessor consumes merged poll results. Implementations live
// in the embedding application (message database, conversation UI);
// the poller only guarantees ordering and cursor semantics.
//
// Implementations must be safe for concurrent use: pollers for
// different servers run on independent goroutines.
type MessageProcessor interface {
	// ProcessMessage handles a new or edited room message with
	// content. Called in ascending message-ID order within a cycle.
	ProcessMessage(server ref.ServerURL, room ref.RoomToken, message community.Message) error

	// ProcessMessageDeletion handles a message the server no longer
	// has: explicitly deleted, or returned without data or reactions.
	ProcessMessageDeletion(server ref.ServerURL, room ref.RoomToken, id int64) error

	// ProcessReactions handles a reaction-only update for an existing
	// message. Outstanding optimistic local changes have already been
	// reconciled into the snapshot.
	ProcessReactions(server ref.ServerURL, room ref.RoomToken, id int64, reactions map[string]community.Reaction) error

	// ProcessDirectMessage handles one inbox or outbox entry. The
	// returned SessionID, when non-zero, is the resolved standard
	// identity of the blinded counterparty; the poller caches the
	// mapping in the store.
	ProcessDirectMessage(server ref.ServerURL, message community.DirectMessage, outgoing bool) (ref.SessionID, error)
}

// isBenign reports whether a processor error is one of the sentinel
// already-known outcomes that must not stall the cursor.
func isBenign(err error) bool {
	return errors.Is(err, ErrDuplicateMessage) ||
		errors.Is(err, ErrDuplicateControlMessage) ||
		errors.Is(err, ErrSelfSend)
}
