// Copyright 2026 The Opengroup Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"github.com/opengroup-foundation/sogs/lib/codec"
	"github.com/opengroup-foundation/sogs/lib/ref"
)

// Key prefixes. Record keys embed the normalized server URL, which
// cannot contain "\x00", so it doubles as the key separator for the
// room and lookup spaces.
const (
	keyServer       = "server\x00"
	keyRoom         = "room\x00"
	keyCapabilities = "cap\x00"
	keyLookup       = "blind\x00"
	keyImageRef     = "imgref\x00"
	keyImageBlob    = "img\x00"
	keySeparator    = "\x00"
)

// Pebble is a Repository backed by a pebble key-value store. Records
// are CBOR-encoded; image blobs are zstd-compressed and
// content-addressed by BLAKE3 digest.
type Pebble struct {
	db      *pebble.DB
	encoder *zstd.Encoder
	decoder *zstd.Decoder

	// mu serializes read-modify-write record updates. Pebble batches
	// give atomicity but not isolation, so cursor advances take the
	// lock instead.
	mu sync.Mutex
}

// OpenPebble opens (or creates) a pebble-backed repository at path.
func OpenPebble(path string) (*Pebble, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("store: opening pebble at %s: %w", path, err)
	}
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: creating zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		db.Close()
		return nil, fmt.Errorf("store: creating zstd decoder: %w", err)
	}
	return &Pebble{db: db, encoder: encoder, decoder: decoder}, nil
}

// Close flushes and closes the underlying database.
func (p *Pebble) Close() error {
	p.encoder.Close()
	p.decoder.Close()
	return p.db.Close()
}

func (p *Pebble) get(key string, v any) error {
	value, closer, err := p.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("store: reading %q: %w", key, err)
	}
	defer closer.Close()
	if err := codec.Unmarshal(value, v); err != nil {
		return fmt.Errorf("store: decoding %q: %w", key, err)
	}
	return nil
}

func (p *Pebble) put(key string, v any) error {
	encoded, err := codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encoding %q: %w", key, err)
	}
	if err := p.db.Set([]byte(key), encoded, pebble.Sync); err != nil {
		return fmt.Errorf("store: writing %q: %w", key, err)
	}
	return nil
}

func serverKey(server ref.ServerURL) string { return keyServer + server.String() }

func roomKey(server ref.ServerURL, token ref.RoomToken) string {
	return keyRoom + server.String() + keySeparator + token.String()
}

func roomPrefix(server ref.ServerURL) string {
	return keyRoom + server.String() + keySeparator
}

func (p *Pebble) Server(server ref.ServerURL) (*Server, error) {
	var record Server
	if err := p.get(serverKey(server), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (p *Pebble) PutServer(record *Server) error {
	return p.put(serverKey(record.URL), record)
}

func (p *Pebble) Servers() ([]*Server, error) {
	var records []*Server
	err := p.scan(keyServer, func(value []byte) error {
		var record Server
		if err := codec.Unmarshal(value, &record); err != nil {
			return fmt.Errorf("store: decoding server record: %w", err)
		}
		records = append(records, &record)
		return nil
	})
	return records, err
}

func (p *Pebble) Room(server ref.ServerURL, token ref.RoomToken) (*Room, error) {
	var record Room
	if err := p.get(roomKey(server, token), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (p *Pebble) PutRoom(record *Room) error {
	return p.put(roomKey(record.Server, record.Token), record)
}

func (p *Pebble) Rooms(server ref.ServerURL) ([]*Room, error) {
	var records []*Room
	err := p.scan(roomPrefix(server), func(value []byte) error {
		var record Room
		if err := codec.Unmarshal(value, &record); err != nil {
			return fmt.Errorf("store: decoding room record: %w", err)
		}
		records = append(records, &record)
		return nil
	})
	return records, err
}

func (p *Pebble) DeleteRoom(server ref.ServerURL, token ref.RoomToken) error {
	if err := p.db.Delete([]byte(roomKey(server, token)), pebble.Sync); err != nil {
		return fmt.Errorf("store: deleting room record: %w", err)
	}
	return nil
}

func (p *Pebble) UpdateRoomInfo(server ref.ServerURL, token ref.RoomToken, update RoomInfoUpdate) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	record, err := p.Room(server, token)
	if err != nil {
		return false, err
	}
	if !update.apply(record) {
		return false, nil
	}
	return true, p.PutRoom(record)
}

func (p *Pebble) AdvanceSequence(server ref.ServerURL, token ref.RoomToken, seqNo int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	record, err := p.Room(server, token)
	if err != nil {
		return err
	}
	if seqNo <= record.SequenceNumber {
		return nil
	}
	record.SequenceNumber = seqNo
	return p.PutRoom(record)
}

func (p *Pebble) AdvanceInboxCursor(server ref.ServerURL, id int64) error {
	return p.advanceServerCursor(server, id, func(room *Room) *int64 { return &room.InboxCursor })
}

func (p *Pebble) AdvanceOutboxCursor(server ref.ServerURL, id int64) error {
	return p.advanceServerCursor(server, id, func(room *Room) *int64 { return &room.OutboxCursor })
}

func (p *Pebble) advanceServerCursor(server ref.ServerURL, id int64, cursor func(*Room) *int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	rooms, err := p.Rooms(server)
	if err != nil {
		return err
	}
	for _, room := range rooms {
		if !room.Active {
			continue
		}
		target := cursor(room)
		if id <= *target {
			continue
		}
		*target = id
		if err := p.PutRoom(room); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pebble) Capabilities(server ref.ServerURL) ([]Capability, error) {
	var capabilities []Capability
	err := p.get(keyCapabilities+server.String(), &capabilities)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return capabilities, err
}

func (p *Pebble) ReplaceCapabilities(server ref.ServerURL, capabilities []Capability) error {
	return p.put(keyCapabilities+server.String(), capabilities)
}

func (p *Pebble) BlindedIDLookup(server ref.ServerURL, blinded ref.BlindedID) (*BlindedIDLookup, error) {
	var record BlindedIDLookup
	key := keyLookup + server.String() + keySeparator + blinded.String()
	if err := p.get(key, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (p *Pebble) PutBlindedIDLookup(record *BlindedIDLookup) error {
	key := keyLookup + record.Server.String() + keySeparator + record.BlindedID.String()
	return p.put(key, record)
}

// imageRef points a room at its content-addressed image blob.
type imageRef struct {
	ImageID int64  `cbor:"image_id"`
	Digest  string `cbor:"digest"`
}

func (p *Pebble) StoreRoomImage(server ref.ServerURL, token ref.RoomToken, imageID int64, data []byte) error {
	digest := blake3.Sum256(data)
	digestHex := hex.EncodeToString(digest[:])

	compressed := p.encoder.EncodeAll(data, nil)
	if err := p.db.Set([]byte(keyImageBlob+digestHex), compressed, pebble.Sync); err != nil {
		return fmt.Errorf("store: writing image blob: %w", err)
	}
	key := keyImageRef + server.String() + keySeparator + token.String()
	return p.put(key, &imageRef{ImageID: imageID, Digest: digestHex})
}

func (p *Pebble) RoomImage(server ref.ServerURL, token ref.RoomToken) ([]byte, int64, error) {
	var pointer imageRef
	key := keyImageRef + server.String() + keySeparator + token.String()
	if err := p.get(key, &pointer); err != nil {
		return nil, 0, err
	}

	compressed, closer, err := p.db.Get([]byte(keyImageBlob + pointer.Digest))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("store: reading image blob: %w", err)
	}
	defer closer.Close()

	data, err := p.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("store: decompressing image blob: %w", err)
	}
	return data, pointer.ImageID, nil
}

// scan calls fn with each value whose key starts with prefix.
func (p *Pebble) scan(prefix string, fn func(value []byte) error) error {
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: []byte(prefix + "\xff"),
	})
	if err != nil {
		return fmt.Errorf("store: creating iterator: %w", err)
	}
	defer iter.Close()
	for valid := iter.First(); valid; valid = iter.Next() {
		if !strings.HasPrefix(string(iter.Key()), prefix) {
			break
		}
		value := make([]byte, len(iter.Value()))
		copy(value, iter.Value())
		if err := fn(value); err != nil {
			return err
		}
	}
	return iter.Error()
}
