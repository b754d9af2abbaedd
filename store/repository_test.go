// Copyright 2026 The Opengroup Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/opengroup-foundation/sogs/lib/ref"
)

// repositories returns every Repository implementation under test.
func repositories(t *testing.T) map[string]Repository {
	t.Helper()
	pebbleRepo, err := OpenPebble(t.TempDir())
	if err != nil {
		t.Fatalf("OpenPebble: %v", err)
	}
	t.Cleanup(func() {
		if err := pebbleRepo.Close(); err != nil {
			t.Errorf("closing pebble: %v", err)
		}
	})
	return map[string]Repository{
		"memory": NewMemory(),
		"pebble": pebbleRepo,
	}
}

func testServerURL(t *testing.T, raw string) ref.ServerURL {
	t.Helper()
	server, err := ref.ParseServerURL(raw)
	if err != nil {
		t.Fatalf("ParseServerURL(%q): %v", raw, err)
	}
	return server
}

func testRoomToken(t *testing.T, raw string) ref.RoomToken {
	t.Helper()
	token, err := ref.ParseRoomToken(raw)
	if err != nil {
		t.Fatalf("ParseRoomToken(%q): %v", raw, err)
	}
	return token
}

func TestServerRoundTrip(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			server := testServerURL(t, "https://open.example.org")

			if _, err := repo.Server(server); !errors.Is(err, ErrNotFound) {
				t.Errorf("Server on empty repo: err = %v, want ErrNotFound", err)
			}

			record := &Server{URL: server, PublicKey: "aa" + strings.Repeat("00", 31)}
			if err := repo.PutServer(record); err != nil {
				t.Fatalf("PutServer: %v", err)
			}

			got, err := repo.Server(server)
			if err != nil {
				t.Fatalf("Server: %v", err)
			}
			if got.URL != server || got.PublicKey != record.PublicKey {
				t.Errorf("Server = %+v, want %+v", got, record)
			}

			servers, err := repo.Servers()
			if err != nil {
				t.Fatalf("Servers: %v", err)
			}
			if len(servers) != 1 {
				t.Errorf("len(Servers()) = %d, want 1", len(servers))
			}
		})
	}
}

func TestRoomRoundTrip(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			server := testServerURL(t, "https://open.example.org")
			token := testRoomToken(t, "lobby")

			record := &Room{
				Server:         server,
				Token:          token,
				Active:         true,
				Name:           "Lobby",
				InfoUpdates:    3,
				SequenceNumber: 40,
			}
			if err := repo.PutRoom(record); err != nil {
				t.Fatalf("PutRoom: %v", err)
			}

			got, err := repo.Room(server, token)
			if err != nil {
				t.Fatalf("Room: %v", err)
			}
			if got.Name != "Lobby" || got.SequenceNumber != 40 || !got.Active {
				t.Errorf("Room = %+v, want %+v", got, record)
			}

			rooms, err := repo.Rooms(server)
			if err != nil {
				t.Fatalf("Rooms: %v", err)
			}
			if len(rooms) != 1 {
				t.Errorf("len(Rooms()) = %d, want 1", len(rooms))
			}

			if err := repo.DeleteRoom(server, token); err != nil {
				t.Fatalf("DeleteRoom: %v", err)
			}
			if _, err := repo.Room(server, token); !errors.Is(err, ErrNotFound) {
				t.Errorf("Room after delete: err = %v, want ErrNotFound", err)
			}
			// Deleting again is not an error.
			if err := repo.DeleteRoom(server, token); err != nil {
				t.Errorf("DeleteRoom on missing room: %v", err)
			}
		})
	}
}

func TestSequenceCursorMonotonic(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			server := testServerURL(t, "https://open.example.org")
			token := testRoomToken(t, "lobby")
			if err := repo.PutRoom(&Room{Server: server, Token: token, Active: true, SequenceNumber: 40}); err != nil {
				t.Fatalf("PutRoom: %v", err)
			}

			if err := repo.AdvanceSequence(server, token, 50); err != nil {
				t.Fatalf("AdvanceSequence: %v", err)
			}
			// Lower and equal values must be ignored.
			if err := repo.AdvanceSequence(server, token, 45); err != nil {
				t.Fatalf("AdvanceSequence backwards: %v", err)
			}
			if err := repo.AdvanceSequence(server, token, 50); err != nil {
				t.Fatalf("AdvanceSequence equal: %v", err)
			}

			room, err := repo.Room(server, token)
			if err != nil {
				t.Fatalf("Room: %v", err)
			}
			if room.SequenceNumber != 50 {
				t.Errorf("SequenceNumber = %d, want 50", room.SequenceNumber)
			}
		})
	}
}

func TestServerCursorsSpanActiveRooms(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			server := testServerURL(t, "https://open.example.org")
			active := testRoomToken(t, "active")
			inactive := testRoomToken(t, "inactive")
			for _, record := range []*Room{
				{Server: server, Token: active, Active: true, InboxCursor: 5},
				{Server: server, Token: inactive, Active: false, InboxCursor: 5},
			} {
				if err := repo.PutRoom(record); err != nil {
					t.Fatalf("PutRoom: %v", err)
				}
			}

			if err := repo.AdvanceInboxCursor(server, 9); err != nil {
				t.Fatalf("AdvanceInboxCursor: %v", err)
			}
			if err := repo.AdvanceInboxCursor(server, 7); err != nil {
				t.Fatalf("AdvanceInboxCursor backwards: %v", err)
			}
			if err := repo.AdvanceOutboxCursor(server, 3); err != nil {
				t.Fatalf("AdvanceOutboxCursor: %v", err)
			}

			activeRoom, err := repo.Room(server, active)
			if err != nil {
				t.Fatalf("Room: %v", err)
			}
			if activeRoom.InboxCursor != 9 || activeRoom.OutboxCursor != 3 {
				t.Errorf("active cursors = (%d, %d), want (9, 3)", activeRoom.InboxCursor, activeRoom.OutboxCursor)
			}

			inactiveRoom, err := repo.Room(server, inactive)
			if err != nil {
				t.Fatalf("Room: %v", err)
			}
			if inactiveRoom.InboxCursor != 5 {
				t.Errorf("inactive room inbox cursor = %d, want untouched 5", inactiveRoom.InboxCursor)
			}
		})
	}
}

func TestUpdateRoomInfoChangedOnly(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			server := testServerURL(t, "https://open.example.org")
			token := testRoomToken(t, "lobby")
			if err := repo.PutRoom(&Room{Server: server, Token: token, Active: true, Name: "Lobby", Read: true}); err != nil {
				t.Fatalf("PutRoom: %v", err)
			}

			// Same values: no change reported.
			sameName := "Lobby"
			changed, err := repo.UpdateRoomInfo(server, token, RoomInfoUpdate{Name: &sameName})
			if err != nil {
				t.Fatalf("UpdateRoomInfo: %v", err)
			}
			if changed {
				t.Error("UpdateRoomInfo with identical values reported a change")
			}

			newName := "Main Lobby"
			write := true
			info := int64(7)
			changed, err = repo.UpdateRoomInfo(server, token, RoomInfoUpdate{
				Name:        &newName,
				Write:       &write,
				InfoUpdates: &info,
			})
			if err != nil {
				t.Fatalf("UpdateRoomInfo: %v", err)
			}
			if !changed {
				t.Error("UpdateRoomInfo with new values reported no change")
			}

			room, err := repo.Room(server, token)
			if err != nil {
				t.Fatalf("Room: %v", err)
			}
			if room.Name != "Main Lobby" || !room.Write || room.InfoUpdates != 7 {
				t.Errorf("room after update = %+v", room)
			}
			if !room.Read {
				t.Error("untouched Read field was reset")
			}

			if _, err := repo.UpdateRoomInfo(server, testRoomToken(t, "missing"), RoomInfoUpdate{}); !errors.Is(err, ErrNotFound) {
				t.Errorf("UpdateRoomInfo on missing room: err = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestCapabilitiesRoundTrip(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			server := testServerURL(t, "https://open.example.org")

			capabilities, err := repo.Capabilities(server)
			if err != nil {
				t.Fatalf("Capabilities on empty repo: %v", err)
			}
			if len(capabilities) != 0 {
				t.Errorf("Capabilities on empty repo = %v, want empty", capabilities)
			}

			stored := []Capability{
				{Server: server, Name: "sogs"},
				{Server: server, Name: "blind"},
				{Server: server, Name: "reactions", Missing: true},
			}
			if err := repo.ReplaceCapabilities(server, stored); err != nil {
				t.Fatalf("ReplaceCapabilities: %v", err)
			}
			capabilities, err = repo.Capabilities(server)
			if err != nil {
				t.Fatalf("Capabilities: %v", err)
			}
			if len(capabilities) != 3 || capabilities[1].Name != "blind" || !capabilities[2].Missing {
				t.Errorf("Capabilities = %v, want stored rows back", capabilities)
			}

			if err := repo.ReplaceCapabilities(server, []Capability{{Server: server, Name: "sogs"}}); err != nil {
				t.Fatalf("ReplaceCapabilities: %v", err)
			}
			capabilities, _ = repo.Capabilities(server)
			if len(capabilities) != 1 {
				t.Errorf("Capabilities after replace = %v, want one row", capabilities)
			}
		})
	}
}

func TestBlindedIDLookupRoundTrip(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			server := testServerURL(t, "https://open.example.org")
			blinded, err := ref.ParseBlindedID("15" + strings.Repeat("ab", 32))
			if err != nil {
				t.Fatalf("ParseBlindedID: %v", err)
			}
			session, err := ref.ParseSessionID("05" + strings.Repeat("cd", 32))
			if err != nil {
				t.Fatalf("ParseSessionID: %v", err)
			}

			if _, err := repo.BlindedIDLookup(server, blinded); !errors.Is(err, ErrNotFound) {
				t.Errorf("BlindedIDLookup on empty repo: err = %v, want ErrNotFound", err)
			}

			record := &BlindedIDLookup{Server: server, BlindedID: blinded, SessionID: session}
			if err := repo.PutBlindedIDLookup(record); err != nil {
				t.Fatalf("PutBlindedIDLookup: %v", err)
			}
			got, err := repo.BlindedIDLookup(server, blinded)
			if err != nil {
				t.Fatalf("BlindedIDLookup: %v", err)
			}
			if got.SessionID != session {
				t.Errorf("lookup SessionID = %s, want %s", got.SessionID, session)
			}
		})
	}
}

func TestRoomImageRoundTrip(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			server := testServerURL(t, "https://open.example.org")
			token := testRoomToken(t, "lobby")
			image := bytes.Repeat([]byte("room image pixels "), 512)

			if _, _, err := repo.RoomImage(server, token); !errors.Is(err, ErrNotFound) {
				t.Errorf("RoomImage on empty repo: err = %v, want ErrNotFound", err)
			}

			if err := repo.StoreRoomImage(server, token, 17, image); err != nil {
				t.Fatalf("StoreRoomImage: %v", err)
			}
			data, imageID, err := repo.RoomImage(server, token)
			if err != nil {
				t.Fatalf("RoomImage: %v", err)
			}
			if imageID != 17 {
				t.Errorf("imageID = %d, want 17", imageID)
			}
			if !bytes.Equal(data, image) {
				t.Error("stored image does not round-trip")
			}
		})
	}
}

func TestDirectoryAdapter(t *testing.T) {
	repo := NewMemory()
	server := testServerURL(t, "https://open.example.org")
	publicKey := "aa" + strings.Repeat("00", 31)

	directory := Directory{Repository: repo}
	if _, err := directory.ServerPublicKey(server); !errors.Is(err, ErrNotFound) {
		t.Errorf("ServerPublicKey on empty repo: err = %v, want ErrNotFound", err)
	}

	if err := repo.PutServer(&Server{URL: server, PublicKey: publicKey}); err != nil {
		t.Fatalf("PutServer: %v", err)
	}
	got, err := directory.ServerPublicKey(server)
	if err != nil {
		t.Fatalf("ServerPublicKey: %v", err)
	}
	if got != publicKey {
		t.Errorf("ServerPublicKey = %q, want %q", got, publicKey)
	}

	capabilities, err := directory.ServerCapabilities(server)
	if err != nil {
		t.Fatalf("ServerCapabilities: %v", err)
	}
	if len(capabilities) != 0 {
		t.Errorf("ServerCapabilities = %v, want empty for unknown server", capabilities)
	}
}
