// Copyright 2026 The Opengroup Authors
// SPDX-License-Identifier: Apache-2.0

package community

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/opengroup-foundation/sogs/lib/ref"
)

// Default page sizes for message fetches. "Recent" resynchronizes
// from the tail after long absence; "since" pages through the
// incremental backlog.
const (
	RecentMessageLimit = 100
	SinceMessageLimit  = 256
)

// Capabilities prepares GET /capabilities.
func (c *Client) Capabilities(server ref.ServerURL) (*PreparedRequest, error) {
	return c.prepare(server, Endpoint{Kind: EndpointCapabilities}, ResponseJSON,
		http.MethodGet, "/capabilities", nil)
}

// Rooms prepares GET /rooms, listing all publicly visible rooms.
func (c *Client) Rooms(server ref.ServerURL) (*PreparedRequest, error) {
	return c.prepare(server, Endpoint{Kind: EndpointRooms}, ResponseJSON,
		http.MethodGet, "/rooms", nil)
}

// Room prepares GET /room/{token}.
func (c *Client) Room(server ref.ServerURL, room ref.RoomToken) (*PreparedRequest, error) {
	return c.prepare(server, Endpoint{Kind: EndpointRoom, Room: room}, ResponseJSON,
		http.MethodGet, "/room/"+room.String(), nil)
}

// RoomPollInfo prepares GET /room/{token}/pollInfo/{infoUpdates}. The
// server includes full room details only when its info_updates
// counter has advanced past infoUpdates.
func (c *Client) RoomPollInfo(server ref.ServerURL, room ref.RoomToken, infoUpdates int64) (*PreparedRequest, error) {
	path := fmt.Sprintf("/room/%s/pollInfo/%d", room, infoUpdates)
	return c.prepare(server, Endpoint{Kind: EndpointRoomPollInfo, Room: room}, ResponseJSON,
		http.MethodGet, path, nil)
}

// RecentMessages prepares GET /room/{token}/messages/recent: a
// bounded snapshot from the message tail, used on first poll and
// after long inactivity instead of requesting a huge incremental
// backlog.
func (c *Client) RecentMessages(server ref.ServerURL, room ref.RoomToken) (*PreparedRequest, error) {
	path := fmt.Sprintf("/room/%s/messages/recent?limit=%d", room, RecentMessageLimit)
	return c.prepare(server, Endpoint{Kind: EndpointMessagesRecent, Room: room}, ResponseJSON,
		http.MethodGet, path, nil)
}

// MessagesSince prepares GET /room/{token}/messages/since/{seqNo}:
// every message update with a sequence number above the cursor.
func (c *Client) MessagesSince(server ref.ServerURL, room ref.RoomToken, seqNo int64) (*PreparedRequest, error) {
	path := fmt.Sprintf("/room/%s/messages/since/%d?limit=%d", room, seqNo, SinceMessageLimit)
	return c.prepare(server, Endpoint{Kind: EndpointMessagesSince, Room: room}, ResponseJSON,
		http.MethodGet, path, nil)
}

// SendMessage prepares POST /room/{token}/message.
func (c *Client) SendMessage(server ref.ServerURL, room ref.RoomToken, message SendMessageRequest) (*PreparedRequest, error) {
	body, err := jsonBody(message)
	if err != nil {
		return nil, err
	}
	return c.prepare(server, Endpoint{Kind: EndpointSendMessage, Room: room}, ResponseJSON,
		http.MethodPost, "/room/"+room.String()+"/message", body)
}

// Message prepares GET /room/{token}/message/{id}.
func (c *Client) Message(server ref.ServerURL, room ref.RoomToken, id int64) (*PreparedRequest, error) {
	path := fmt.Sprintf("/room/%s/message/%d", room, id)
	return c.prepare(server, Endpoint{Kind: EndpointMessage, Room: room}, ResponseJSON,
		http.MethodGet, path, nil)
}

// EditMessage prepares PUT /room/{token}/message/{id} with new signed
// content.
func (c *Client) EditMessage(server ref.ServerURL, room ref.RoomToken, id int64, message SendMessageRequest) (*PreparedRequest, error) {
	body, err := jsonBody(message)
	if err != nil {
		return nil, err
	}
	path := fmt.Sprintf("/room/%s/message/%d", room, id)
	return c.prepare(server, Endpoint{Kind: EndpointEditMessage, Room: room}, ResponseNone,
		http.MethodPut, path, body)
}

// DeleteMessage prepares DELETE /room/{token}/message/{id}.
func (c *Client) DeleteMessage(server ref.ServerURL, room ref.RoomToken, id int64) (*PreparedRequest, error) {
	path := fmt.Sprintf("/room/%s/message/%d", room, id)
	return c.prepare(server, Endpoint{Kind: EndpointDeleteMessage, Room: room}, ResponseNone,
		http.MethodDelete, path, nil)
}

// AddReaction prepares PUT /room/{token}/reaction/{id}/{emoji}.
func (c *Client) AddReaction(server ref.ServerURL, room ref.RoomToken, id int64, emoji string) (*PreparedRequest, error) {
	path := fmt.Sprintf("/room/%s/reaction/%d/%s", room, id, url.PathEscape(emoji))
	return c.prepare(server, Endpoint{Kind: EndpointAddReaction, Room: room}, ResponseJSON,
		http.MethodPut, path, nil)
}

// RemoveReaction prepares DELETE /room/{token}/reaction/{id}/{emoji}.
func (c *Client) RemoveReaction(server ref.ServerURL, room ref.RoomToken, id int64, emoji string) (*PreparedRequest, error) {
	path := fmt.Sprintf("/room/%s/reaction/%d/%s", room, id, url.PathEscape(emoji))
	return c.prepare(server, Endpoint{Kind: EndpointRemoveReaction, Room: room}, ResponseJSON,
		http.MethodDelete, path, nil)
}

// DeleteAllReactions prepares DELETE /room/{token}/reactions/{id},
// clearing every reaction from a message (moderators only).
func (c *Client) DeleteAllReactions(server ref.ServerURL, room ref.RoomToken, id int64) (*PreparedRequest, error) {
	path := fmt.Sprintf("/room/%s/reactions/%d", room, id)
	return c.prepare(server, Endpoint{Kind: EndpointDeleteAllReactions, Room: room}, ResponseJSON,
		http.MethodDelete, path, nil)
}

// PinMessage prepares POST /room/{token}/pin/{id}.
func (c *Client) PinMessage(server ref.ServerURL, room ref.RoomToken, id int64) (*PreparedRequest, error) {
	path := fmt.Sprintf("/room/%s/pin/%d", room, id)
	return c.prepare(server, Endpoint{Kind: EndpointPinMessage, Room: room}, ResponseNone,
		http.MethodPost, path, nil)
}

// UnpinMessage prepares POST /room/{token}/unpin/{id}.
func (c *Client) UnpinMessage(server ref.ServerURL, room ref.RoomToken, id int64) (*PreparedRequest, error) {
	path := fmt.Sprintf("/room/%s/unpin/%d", room, id)
	return c.prepare(server, Endpoint{Kind: EndpointUnpinMessage, Room: room}, ResponseNone,
		http.MethodPost, path, nil)
}

// UnpinAll prepares POST /room/{token}/unpin/all.
func (c *Client) UnpinAll(server ref.ServerURL, room ref.RoomToken) (*PreparedRequest, error) {
	return c.prepare(server, Endpoint{Kind: EndpointUnpinAll, Room: room}, ResponseNone,
		http.MethodPost, "/room/"+room.String()+"/unpin/all", nil)
}

// UploadFile prepares POST /room/{token}/file with a raw binary body.
func (c *Client) UploadFile(server ref.ServerURL, room ref.RoomToken, data []byte) (*PreparedRequest, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file upload", ErrInvalidPrepared)
	}
	body := &RequestBody{Bytes: data}
	return c.prepare(server, Endpoint{Kind: EndpointUploadFile, Room: room}, ResponseJSON,
		http.MethodPost, "/room/"+room.String()+"/file", body)
}

// DownloadFile prepares GET /room/{token}/file/{id}.
func (c *Client) DownloadFile(server ref.ServerURL, room ref.RoomToken, id int64) (*PreparedRequest, error) {
	path := fmt.Sprintf("/room/%s/file/%d", room, id)
	return c.prepare(server, Endpoint{Kind: EndpointDownloadFile, Room: room}, ResponseData,
		http.MethodGet, path, nil)
}

// Inbox prepares GET /inbox: all received blinded direct messages.
func (c *Client) Inbox(server ref.ServerURL) (*PreparedRequest, error) {
	return c.prepare(server, Endpoint{Kind: EndpointInbox}, ResponseOptionalData,
		http.MethodGet, "/inbox", nil)
}

// InboxSince prepares GET /inbox/since/{id}. A 304 response with no
// body means "no new items" and is a valid outcome.
func (c *Client) InboxSince(server ref.ServerURL, id int64) (*PreparedRequest, error) {
	path := fmt.Sprintf("/inbox/since/%d", id)
	return c.prepare(server, Endpoint{Kind: EndpointInboxSince}, ResponseOptionalData,
		http.MethodGet, path, nil)
}

// Outbox prepares GET /outbox: all sent blinded direct messages.
func (c *Client) Outbox(server ref.ServerURL) (*PreparedRequest, error) {
	return c.prepare(server, Endpoint{Kind: EndpointOutbox}, ResponseOptionalData,
		http.MethodGet, "/outbox", nil)
}

// OutboxSince prepares GET /outbox/since/{id}.
func (c *Client) OutboxSince(server ref.ServerURL, id int64) (*PreparedRequest, error) {
	path := fmt.Sprintf("/outbox/since/%d", id)
	return c.prepare(server, Endpoint{Kind: EndpointOutboxSince}, ResponseOptionalData,
		http.MethodGet, path, nil)
}

// SendDirectMessage prepares POST /inbox/{blindedID} with an
// encrypted payload for another user's inbox.
func (c *Client) SendDirectMessage(server ref.ServerURL, recipient ref.BlindedID, message SendDirectMessageRequest) (*PreparedRequest, error) {
	if recipient.IsZero() {
		return nil, fmt.Errorf("%w: zero recipient", ErrInvalidPrepared)
	}
	body, err := jsonBody(message)
	if err != nil {
		return nil, err
	}
	return c.prepare(server, Endpoint{Kind: EndpointSendDirectMessage}, ResponseJSON,
		http.MethodPost, "/inbox/"+recipient.String(), body)
}

// BanUser prepares POST /user/{id}/ban.
func (c *Client) BanUser(server ref.ServerURL, userID string, ban BanRequest) (*PreparedRequest, error) {
	body, err := jsonBody(ban)
	if err != nil {
		return nil, err
	}
	return c.prepare(server, Endpoint{Kind: EndpointBanUser}, ResponseNone,
		http.MethodPost, "/user/"+url.PathEscape(userID)+"/ban", body)
}

// UnbanUser prepares POST /user/{id}/unban.
func (c *Client) UnbanUser(server ref.ServerURL, userID string, unban UnbanRequest) (*PreparedRequest, error) {
	body, err := jsonBody(unban)
	if err != nil {
		return nil, err
	}
	return c.prepare(server, Endpoint{Kind: EndpointUnbanUser}, ResponseNone,
		http.MethodPost, "/user/"+url.PathEscape(userID)+"/unban", body)
}

// SetUserModerator prepares POST /user/{id}/moderator, appointing or
// removing room staff depending on the request flags.
func (c *Client) SetUserModerator(server ref.ServerURL, userID string, request ModeratorRequest) (*PreparedRequest, error) {
	body, err := jsonBody(request)
	if err != nil {
		return nil, err
	}
	return c.prepare(server, Endpoint{Kind: EndpointUserModerator}, ResponseNone,
		http.MethodPost, "/user/"+url.PathEscape(userID)+"/moderator", body)
}

// DeleteAllUserMessages prepares DELETE /room/{token}/all/{id},
// removing every message a user posted in a room.
func (c *Client) DeleteAllUserMessages(server ref.ServerURL, room ref.RoomToken, userID string) (*PreparedRequest, error) {
	path := "/room/" + room.String() + "/all/" + url.PathEscape(userID)
	return c.prepare(server, Endpoint{Kind: EndpointDeleteAllUserMessages, Room: room}, ResponseNone,
		http.MethodDelete, path, nil)
}
