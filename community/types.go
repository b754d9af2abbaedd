// Copyright 2026 The Opengroup Authors
// SPDX-License-Identifier: Apache-2.0

package community

// Wire types for the SOGS JSON API. Field names follow the server
// protocol exactly; the client does not rename or normalize them.

// Capability strings the client understands. Servers may advertise
// more; unknown capabilities are carried through untouched.
const (
	// CapabilitySOGS is advertised by every community server.
	CapabilitySOGS = "sogs"
	// CapabilityBlind means the server supports (and may require)
	// blinded pseudonymous identities.
	CapabilityBlind = "blind"
	// CapabilityReactions means the server supports emoji reactions.
	CapabilityReactions = "reactions"
)

// Capabilities is the /capabilities response.
type Capabilities struct {
	// Capabilities lists what the server supports.
	Capabilities []string `json:"capabilities"`
	// Missing lists capabilities the caller required that the server
	// lacks. Only present when the request asked for specific ones.
	Missing []string `json:"missing,omitempty"`
}

// Has reports whether the capability set includes name.
func (c Capabilities) Has(name string) bool {
	for _, capability := range c.Capabilities {
		if capability == name {
			return true
		}
	}
	return false
}

// Room is the full room metadata object.
type Room struct {
	Token           string  `json:"token"`
	Name            string  `json:"name"`
	Description     string  `json:"description,omitempty"`
	InfoUpdates     int64   `json:"info_updates"`
	MessageSequence int64   `json:"message_sequence"`
	Created         float64 `json:"created"`
	ActiveUsers     int64   `json:"active_users"`

	ImageID *int64 `json:"image_id,omitempty"`

	// Permissions of the requesting user in this room.
	Read   bool `json:"read"`
	Write  bool `json:"write"`
	Upload bool `json:"upload"`

	// Roles of the requesting user.
	Admin           bool `json:"admin,omitempty"`
	GlobalAdmin     bool `json:"global_admin,omitempty"`
	Moderator       bool `json:"moderator,omitempty"`
	GlobalModerator bool `json:"global_moderator,omitempty"`

	// Visible room staff. Hidden staff lists are only returned to
	// moderators and admins.
	Admins           []string `json:"admins,omitempty"`
	HiddenAdmins     []string `json:"hidden_admins,omitempty"`
	Moderators       []string `json:"moderators,omitempty"`
	HiddenModerators []string `json:"hidden_moderators,omitempty"`

	PinnedMessages []PinnedMessage `json:"pinned_messages,omitempty"`
}

// PinnedMessage records one pinned message in a room.
type PinnedMessage struct {
	ID       int64   `json:"id"`
	PinnedAt float64 `json:"pinned_at"`
	PinnedBy string  `json:"pinned_by"`
}

// RoomPollInfo is the incremental room metadata returned by
// /room/{token}/pollInfo/{infoUpdates}. Details is only present when
// the room's info_updates counter has advanced past the one the
// client supplied.
type RoomPollInfo struct {
	Token       string `json:"token"`
	ActiveUsers int64  `json:"active_users"`
	Read        bool   `json:"read"`
	Write       bool   `json:"write"`
	Upload      bool   `json:"upload"`
	Details     *Room  `json:"details,omitempty"`
}

// Message is one entry of a room message list. A message with Data
// present is a content update; one with only Reactions is a
// reaction-only update; one with Deleted set — or with neither data
// nor reactions — no longer exists on the server.
type Message struct {
	ID        int64    `json:"id"`
	SessionID string   `json:"session_id,omitempty"`
	PostedAt  float64  `json:"posted"`
	EditedAt  *float64 `json:"edited,omitempty"`

	// SeqNo is the room's update-order counter value for this entry.
	// Distinct from ID: edits and reaction changes bump SeqNo without
	// creating a new ID.
	SeqNo int64 `json:"seqno"`

	Deleted bool `json:"deleted,omitempty"`

	Whisper     bool `json:"whisper,omitempty"`
	WhisperMods bool `json:"whisper_mods,omitempty"`

	// Data and Signature are base64; both absent when deleted.
	Data      *string `json:"data,omitempty"`
	Signature *string `json:"signature,omitempty"`

	Reactions map[string]Reaction `json:"reactions,omitempty"`
}

// Reaction is the server's aggregate view of one emoji on one message.
type Reaction struct {
	Index    int64    `json:"index"`
	Count    int64    `json:"count"`
	You      bool     `json:"you,omitempty"`
	Reactors []string `json:"reactors,omitempty"`
}

// ReactionResponse is returned by the reaction add/remove endpoints.
// SeqNo is the sequence number the server assigned to the change;
// pending optimistic changes are keyed to it.
type ReactionResponse struct {
	SeqNo   int64 `json:"seqno"`
	Added   bool  `json:"added,omitempty"`
	Removed bool  `json:"removed,omitempty"`
}

// DirectMessage is one inbox or outbox entry. Sender and Recipient
// are blinded IDs; Message is the base64 XChaCha20-Poly1305
// ciphertext.
type DirectMessage struct {
	ID        int64   `json:"id"`
	Sender    string  `json:"sender"`
	Recipient string  `json:"recipient"`
	PostedAt  float64 `json:"posted_at"`
	ExpiresAt float64 `json:"expires_at"`
	Message   string  `json:"message"`
}

// SendMessageRequest is the body for posting a room message.
type SendMessageRequest struct {
	Data      string  `json:"data"`
	Signature string  `json:"signature"`
	WhisperTo *string `json:"whisper_to,omitempty"`
	// WhisperMods restricts visibility to the room's moderators.
	WhisperMods bool    `json:"whisper_mods,omitempty"`
	Files       []int64 `json:"files,omitempty"`
}

// SendDirectMessageRequest is the body for posting to a user's inbox.
type SendDirectMessageRequest struct {
	Message string `json:"message"`
}

// SendDirectMessageResponse is returned when a DM is accepted.
type SendDirectMessageResponse struct {
	ID        int64   `json:"id"`
	PostedAt  float64 `json:"posted_at"`
	ExpiresAt float64 `json:"expires_at"`
}

// UploadResponse is returned by the file upload endpoint.
type UploadResponse struct {
	ID int64 `json:"id"`
}

// BanRequest is the body for banning a user. Rooms is a list of room
// tokens, or ["*"] for a server-wide ban. TimeoutSeconds, when
// non-nil, makes the ban temporary.
type BanRequest struct {
	Rooms          []string `json:"rooms"`
	TimeoutSeconds *float64 `json:"timeout,omitempty"`
}

// UnbanRequest is the body for lifting a ban.
type UnbanRequest struct {
	Rooms []string `json:"rooms"`
}

// ModeratorRequest is the body for appointing or removing room staff.
type ModeratorRequest struct {
	Rooms     []string `json:"rooms"`
	Moderator *bool    `json:"moderator,omitempty"`
	Admin     *bool    `json:"admin,omitempty"`
	Visible   bool     `json:"visible"`
}
