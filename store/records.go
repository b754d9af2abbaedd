// Copyright 2026 The Opengroup Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"time"

	"github.com/opengroup-foundation/sogs/lib/ref"
)

// Server is the persistent record for one community server.
type Server struct {
	// URL is the normalized base URL. It is the record key.
	URL ref.ServerURL `cbor:"url"`
	// PublicKey is the hex-encoded Ed25519 server key. Learned from
	// the join URL; requests cannot be signed without it.
	PublicKey string `cbor:"public_key"`
	// LastPolledAt is the wall-clock time of the last completed poll
	// cycle. Zero before the first poll.
	LastPolledAt time.Time `cbor:"last_polled_at,omitempty"`
}

// Room is the persistent record for one joined room, keyed by
// (server, token). It carries the three poll cursors alongside the
// cached room metadata.
type Room struct {
	Server ref.ServerURL `cbor:"server"`
	Token  ref.RoomToken `cbor:"token"`

	// Active marks rooms included in poll cycles. Leaving a room
	// deactivates it without discarding cursors.
	Active bool `cbor:"active"`

	Name        string `cbor:"name,omitempty"`
	Description string `cbor:"description,omitempty"`

	// InfoUpdates is the server's room metadata version. Sent with
	// pollInfo requests; the server returns full details only when its
	// counter is ahead.
	InfoUpdates int64 `cbor:"info_updates"`

	// SequenceNumber is the message cursor: the highest seqno merged
	// so far. The next poll requests messages strictly after it.
	SequenceNumber int64 `cbor:"sequence_number"`

	// InboxCursor and OutboxCursor are the highest direct-message IDs
	// seen on this server. They live on the room record but are
	// server-scoped: the poller advances them on every active room of
	// the server together.
	InboxCursor  int64 `cbor:"inbox_cursor"`
	OutboxCursor int64 `cbor:"outbox_cursor"`

	ImageID   *int64 `cbor:"image_id,omitempty"`
	UserCount int64  `cbor:"user_count,omitempty"`

	Read   bool `cbor:"read"`
	Write  bool `cbor:"write"`
	Upload bool `cbor:"upload"`

	// Admin and Moderator are the user's roles in the room. The
	// Hidden variants mark roles granted invisibly: the user appears
	// in the room's hidden staff lists rather than the public ones.
	Admin           bool `cbor:"admin,omitempty"`
	HiddenAdmin     bool `cbor:"hidden_admin,omitempty"`
	Moderator       bool `cbor:"moderator,omitempty"`
	HiddenModerator bool `cbor:"hidden_moderator,omitempty"`
}

// Capability is one stored capability row for a server. The rows are
// replaced wholesale on every capabilities fetch. Missing marks a
// capability the client required that the server reported it lacks.
type Capability struct {
	Server  ref.ServerURL `cbor:"server"`
	Name    string        `cbor:"name"`
	Missing bool          `cbor:"missing,omitempty"`
}

// BlindedIDLookup caches a resolved blinded-to-standard ID mapping
// for one server. Resolving is a scalar multiplication per candidate
// contact, so hits are worth persisting.
type BlindedIDLookup struct {
	Server    ref.ServerURL `cbor:"server"`
	BlindedID ref.BlindedID `cbor:"blinded_id"`
	SessionID ref.SessionID `cbor:"session_id"`
}

// RoomInfoUpdate is a changed-columns-only update to a room record.
// Nil fields are left untouched. Cursors are deliberately absent:
// they move through the Advance methods only.
type RoomInfoUpdate struct {
	Name            *string
	Description     *string
	InfoUpdates     *int64
	ImageID         *int64
	UserCount       *int64
	Read            *bool
	Write           *bool
	Upload          *bool
	Admin           *bool
	HiddenAdmin     *bool
	Moderator       *bool
	HiddenModerator *bool
}

// apply writes the set fields into the record and reports whether
// anything actually changed.
func (u *RoomInfoUpdate) apply(room *Room) bool {
	changed := false
	if u.Name != nil && room.Name != *u.Name {
		room.Name = *u.Name
		changed = true
	}
	if u.Description != nil && room.Description != *u.Description {
		room.Description = *u.Description
		changed = true
	}
	if u.InfoUpdates != nil && room.InfoUpdates != *u.InfoUpdates {
		room.InfoUpdates = *u.InfoUpdates
		changed = true
	}
	if u.ImageID != nil && (room.ImageID == nil || *room.ImageID != *u.ImageID) {
		value := *u.ImageID
		room.ImageID = &value
		changed = true
	}
	if u.UserCount != nil && room.UserCount != *u.UserCount {
		room.UserCount = *u.UserCount
		changed = true
	}
	for _, field := range []struct {
		update *bool
		target *bool
	}{
		{u.Read, &room.Read},
		{u.Write, &room.Write},
		{u.Upload, &room.Upload},
		{u.Admin, &room.Admin},
		{u.HiddenAdmin, &room.HiddenAdmin},
		{u.Moderator, &room.Moderator},
		{u.HiddenModerator, &room.HiddenModerator},
	} {
		if field.update != nil && *field.target != *field.update {
			*field.target = *field.update
			changed = true
		}
	}
	return changed
}
