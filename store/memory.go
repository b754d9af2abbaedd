// Copyright 2026 The Opengroup Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"sort"
	"sync"

	"github.com/opengroup-foundation/sogs/lib/ref"
)

// Memory is an in-memory Repository. State is lost on process exit;
// use it for tests and one-shot tooling.
type Memory struct {
	mu           sync.RWMutex
	servers      map[ref.ServerURL]*Server
	rooms        map[ref.ServerURL]map[ref.RoomToken]*Room
	capabilities map[ref.ServerURL][]Capability
	lookups      map[ref.ServerURL]map[ref.BlindedID]*BlindedIDLookup
	images       map[ref.ServerURL]map[ref.RoomToken]roomImage
}

type roomImage struct {
	imageID int64
	data    []byte
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{
		servers:      make(map[ref.ServerURL]*Server),
		rooms:        make(map[ref.ServerURL]map[ref.RoomToken]*Room),
		capabilities: make(map[ref.ServerURL][]Capability),
		lookups:      make(map[ref.ServerURL]map[ref.BlindedID]*BlindedIDLookup),
		images:       make(map[ref.ServerURL]map[ref.RoomToken]roomImage),
	}
}

func (m *Memory) Server(server ref.ServerURL) (*Server, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.servers[server]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *record
	return &copied, nil
}

func (m *Memory) PutServer(record *Server) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *record
	m.servers[record.URL] = &copied
	return nil
}

func (m *Memory) Servers() ([]*Server, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	records := make([]*Server, 0, len(m.servers))
	for _, record := range m.servers {
		copied := *record
		records = append(records, &copied)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].URL.String() < records[j].URL.String()
	})
	return records, nil
}

func (m *Memory) Room(server ref.ServerURL, token ref.RoomToken) (*Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.rooms[server][token]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *record
	return &copied, nil
}

func (m *Memory) PutRoom(record *Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rooms[record.Server] == nil {
		m.rooms[record.Server] = make(map[ref.RoomToken]*Room)
	}
	copied := *record
	m.rooms[record.Server][record.Token] = &copied
	return nil
}

func (m *Memory) Rooms(server ref.ServerURL) ([]*Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	records := make([]*Room, 0, len(m.rooms[server]))
	for _, record := range m.rooms[server] {
		copied := *record
		records = append(records, &copied)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Token.String() < records[j].Token.String()
	})
	return records, nil
}

func (m *Memory) DeleteRoom(server ref.ServerURL, token ref.RoomToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms[server], token)
	return nil
}

func (m *Memory) UpdateRoomInfo(server ref.ServerURL, token ref.RoomToken, update RoomInfoUpdate) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.rooms[server][token]
	if !ok {
		return false, ErrNotFound
	}
	return update.apply(record), nil
}

func (m *Memory) AdvanceSequence(server ref.ServerURL, token ref.RoomToken, seqNo int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.rooms[server][token]
	if !ok {
		return ErrNotFound
	}
	if seqNo > record.SequenceNumber {
		record.SequenceNumber = seqNo
	}
	return nil
}

func (m *Memory) AdvanceInboxCursor(server ref.ServerURL, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, record := range m.rooms[server] {
		if record.Active && id > record.InboxCursor {
			record.InboxCursor = id
		}
	}
	return nil
}

func (m *Memory) AdvanceOutboxCursor(server ref.ServerURL, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, record := range m.rooms[server] {
		if record.Active && id > record.OutboxCursor {
			record.OutboxCursor = id
		}
	}
	return nil
}

func (m *Memory) Capabilities(server ref.ServerURL) ([]Capability, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored := m.capabilities[server]
	capabilities := make([]Capability, len(stored))
	copy(capabilities, stored)
	return capabilities, nil
}

func (m *Memory) ReplaceCapabilities(server ref.ServerURL, capabilities []Capability) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]Capability, len(capabilities))
	copy(stored, capabilities)
	m.capabilities[server] = stored
	return nil
}

func (m *Memory) BlindedIDLookup(server ref.ServerURL, blinded ref.BlindedID) (*BlindedIDLookup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.lookups[server][blinded]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *record
	return &copied, nil
}

func (m *Memory) PutBlindedIDLookup(record *BlindedIDLookup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lookups[record.Server] == nil {
		m.lookups[record.Server] = make(map[ref.BlindedID]*BlindedIDLookup)
	}
	copied := *record
	m.lookups[record.Server][record.BlindedID] = &copied
	return nil
}

func (m *Memory) StoreRoomImage(server ref.ServerURL, token ref.RoomToken, imageID int64, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.images[server] == nil {
		m.images[server] = make(map[ref.RoomToken]roomImage)
	}
	copied := make([]byte, len(data))
	copy(copied, data)
	m.images[server][token] = roomImage{imageID: imageID, data: copied}
	return nil
}

func (m *Memory) RoomImage(server ref.ServerURL, token ref.RoomToken) ([]byte, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	image, ok := m.images[server][token]
	if !ok {
		return nil, 0, ErrNotFound
	}
	data := make([]byte, len(image.data))
	copy(data, image.data)
	return data, image.imageID, nil
}
