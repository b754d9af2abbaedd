// Copyright 2026 The Opengroup Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"errors"

	"github.com/opengroup-foundation/sogs/lib/ref"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// Repository is the persistence surface the poller and client work
// against. Implementations must be safe for concurrent use.
type Repository interface {
	// Server returns the record for a server, or ErrNotFound.
	Server(server ref.ServerURL) (*Server, error)
	// PutServer creates or replaces a server record.
	PutServer(record *Server) error
	// Servers returns all server records.
	Servers() ([]*Server, error)

	// Room returns the record for (server, token), or ErrNotFound.
	Room(server ref.ServerURL, token ref.RoomToken) (*Room, error)
	// PutRoom creates or replaces a room record.
	PutRoom(record *Room) error
	// Rooms returns all room records for a server.
	Rooms(server ref.ServerURL) ([]*Room, error)
	// DeleteRoom removes a room record. Deleting a missing room is
	// not an error.
	DeleteRoom(server ref.ServerURL, token ref.RoomToken) error

	// UpdateRoomInfo applies a changed-columns-only update and reports
	// whether the stored record actually changed.
	UpdateRoomInfo(server ref.ServerURL, token ref.RoomToken, update RoomInfoUpdate) (bool, error)

	// AdvanceSequence raises the room's message cursor to seqNo.
	// Lower or equal values are ignored.
	AdvanceSequence(server ref.ServerURL, token ref.RoomToken, seqNo int64) error
	// AdvanceInboxCursor raises the inbox cursor on every active room
	// of the server. Lower or equal values are ignored.
	AdvanceInboxCursor(server ref.ServerURL, id int64) error
	// AdvanceOutboxCursor raises the outbox cursor on every active
	// room of the server. Lower or equal values are ignored.
	AdvanceOutboxCursor(server ref.ServerURL, id int64) error

	// Capabilities returns the last-stored capability rows for a
	// server. A server with no stored record returns an empty slice,
	// not an error — unknown capabilities are a normal state.
	Capabilities(server ref.ServerURL) ([]Capability, error)
	// ReplaceCapabilities overwrites the stored capability set
	// wholesale.
	ReplaceCapabilities(server ref.ServerURL, capabilities []Capability) error

	// BlindedIDLookup returns the cached mapping for a blinded ID on
	// a server, or ErrNotFound.
	BlindedIDLookup(server ref.ServerURL, blinded ref.BlindedID) (*BlindedIDLookup, error)
	// PutBlindedIDLookup caches a resolved mapping.
	PutBlindedIDLookup(record *BlindedIDLookup) error

	// StoreRoomImage persists a room image blob for (server, token).
	// The blob is content-addressed internally; storing the same bytes
	// twice is cheap.
	StoreRoomImage(server ref.ServerURL, token ref.RoomToken, imageID int64, data []byte) error
	// RoomImage returns the stored image bytes and the image ID they
	// were fetched under, or ErrNotFound.
	RoomImage(server ref.ServerURL, token ref.RoomToken) ([]byte, int64, error)
}

// Directory adapts a Repository to the request-signing directory
// interface: the signer needs only the server key and capability set.
type Directory struct {
	Repository Repository
}

// ServerPublicKey returns the stored server key.
func (d Directory) ServerPublicKey(server ref.ServerURL) (string, error) {
	record, err := d.Repository.Server(server)
	if err != nil {
		return "", err
	}
	return record.PublicKey, nil
}

// ServerCapabilities returns the names of the supported capabilities.
// Rows flagged missing are excluded; a server with no stored record
// reads as empty, which the signer treats as "unknown".
func (d Directory) ServerCapabilities(server ref.ServerURL) ([]string, error) {
	rows, err := d.Repository.Capabilities(server)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		if !row.Missing {
			names = append(names, row.Name)
		}
	}
	return names, nil
}
