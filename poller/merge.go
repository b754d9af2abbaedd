// Copyright 2026 The Opengroup Authors
// SPDX-License-Identifier: Apache-2.0

package poller

import (
	"fmt"
	"sort"

	"github.com/opengroup-foundation/sogs/community"
	"github.com/opengroup-foundation/sogs/lib/ref"
	"github.com/opengroup-foundation/sogs/store"
)

// mergeMessages applies one room's message updates in ascending ID
// order and advances the sequence cursor.
//
// Classification per entry:
//   - Deleted set, or neither data nor reactions present: a deletion.
//   - Reactions without data: a reaction-only update.
//   - Data present: a content update (new message or edit).
//
// A hard processor error stops the merge for the room; the cursor
// stays at the last successfully applied update so the next cycle
// retries from there. Benign duplicate/self-send outcomes advance
// the cursor normally.
func (p *Poller) mergeMessages(room ref.RoomToken, messages []community.Message) error {
	sorted := make([]community.Message, len(messages))
	copy(sorted, messages)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	cursor := int64(0)
	var mergeErr error
	for _, message := range sorted {
		err := p.applyMessage(room, message)
		if err != nil && !isBenign(err) {
			mergeErr = fmt.Errorf("applying message %d in %s: %w", message.ID, room, err)
			break
		}
		if message.SeqNo > cursor {
			cursor = message.SeqNo
		}
	}

	if cursor > 0 {
		if err := p.repository.AdvanceSequence(p.server, room, cursor); err != nil {
			return fmt.Errorf("advancing cursor for %s: %w", room, err)
		}
		p.pending.RetirePendingChanges(p.server, room, cursor)
	}
	return mergeErr
}

// reconcileReactions replays outstanding optimistic changes on top of
// a server reaction snapshot: adds fold the local reaction in,
// removes subtract it, clears drop the affected rows. The input map
// is not modified.
func reconcileReactions(reactions map[string]community.Reaction, pending []PendingChange) map[string]community.Reaction {
	if len(pending) == 0 {
		return reactions
	}
	merged := make(map[string]community.Reaction, len(reactions))
	for emoji, reaction := range reactions {
		merged[emoji] = reaction
	}
	for _, change := range pending {
		switch change.Kind {
		case PendingReactionAdd:
			reaction := merged[change.Emoji]
			if !reaction.You {
				reaction.You = true
				reaction.Count++
			}
			merged[change.Emoji] = reaction

		case PendingReactionRemove:
			reaction, ok := merged[change.Emoji]
			if !ok || !reaction.You {
				continue
			}
			reaction.You = false
			reaction.Count--
			if reaction.Count <= 0 {
				delete(merged, change.Emoji)
				continue
			}
			merged[change.Emoji] = reaction

		case PendingReactionClear:
			if change.Emoji == "" {
				merged = make(map[string]community.Reaction)
				continue
			}
			delete(merged, change.Emoji)
		}
	}
	return merged
}

func (p *Poller) applyMessage(room ref.RoomToken, message community.Message) error {
	switch {
	case message.Deleted, message.Data == nil && len(message.Reactions) == 0:
		return p.processor.ProcessMessageDeletion(p.server, room, message.ID)

	case message.Data == nil:
		// Reaction-only update. Pending local changes postdate the
		// server's snapshot; fold them into it instead of letting
		// either side overwrite the other, so reactions from other
		// users delivered in the same window survive.
		pending := p.pending.PendingChangesFor(p.server, room, message.ID)
		reactions := reconcileReactions(message.Reactions, pending)
		if len(pending) > 0 {
			p.logger.Debug("reconciled reactions against pending changes",
				"room", room.String(), "message_id", message.ID, "pending", len(pending))
		}
		return p.processor.ProcessReactions(p.server, room, message.ID, reactions)

	default:
		return p.processor.ProcessMessage(p.server, room, message)
	}
}

// mergeDirectMessages applies inbox or outbox entries in ascending ID
// order and advances the server-wide cursor.
//
// Unlike room messages, the cursor advances past every entry even on
// processor failure: direct-message IDs are server-assigned and
// retrying a poisoned entry forever would wedge the whole inbox.
func (p *Poller) mergeDirectMessages(messages []community.DirectMessage, outgoing bool) error {
	sorted := make([]community.DirectMessage, len(messages))
	copy(sorted, messages)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	// Lookup writes are deduplicated within the cycle: a busy
	// conversation yields many entries from the same counterparty.
	resolved := make(map[ref.BlindedID]bool)

	cursor := int64(0)
	for _, message := range sorted {
		sessionID, err := p.processor.ProcessDirectMessage(p.server, message, outgoing)
		if err != nil && !isBenign(err) {
			p.logger.Warn("processing direct message failed",
				"message_id", message.ID, "outgoing", outgoing, "error", err)
		} else if !sessionID.IsZero() {
			p.cacheBlindedLookup(message, outgoing, sessionID, resolved)
		}
		if message.ID > cursor {
			cursor = message.ID
		}
	}

	if cursor == 0 {
		return nil
	}
	if outgoing {
		return p.repository.AdvanceOutboxCursor(p.server, cursor)
	}
	return p.repository.AdvanceInboxCursor(p.server, cursor)
}

func (p *Poller) cacheBlindedLookup(message community.DirectMessage, outgoing bool, sessionID ref.SessionID, resolved map[ref.BlindedID]bool) {
	counterparty := message.Sender
	if outgoing {
		counterparty = message.Recipient
	}
	blinded, err := ref.ParseBlindedID(counterparty)
	if err != nil {
		return
	}
	if resolved[blinded] {
		return
	}
	resolved[blinded] = true
	err = p.repository.PutBlindedIDLookup(&store.BlindedIDLookup{
		Server:    p.server,
		BlindedID: blinded,
		SessionID: sessionID,
	})
	if err != nil {
		p.logger.Warn("caching blinded ID lookup failed", "blinded_id", blinded.String(), "error", err)
	}
}

// mergeRoomPollInfo folds a pollInfo response into the room record
// and reports whether the room image changed and needs a re-fetch.
func (p *Poller) mergeRoomPollInfo(room ref.RoomToken, info community.RoomPollInfo) (bool, error) {
	update := store.RoomInfoUpdate{
		Read:   &info.Read,
		Write:  &info.Write,
		Upload: &info.Upload,
	}
	if info.ActiveUsers > 0 {
		update.UserCount = &info.ActiveUsers
	}

	imageChanged := false
	if details := info.Details; details != nil {
		update.Name = &details.Name
		update.Description = &details.Description
		update.InfoUpdates = &details.InfoUpdates
		update.Admin = &details.Admin
		update.Moderator = &details.Moderator

		// Hidden roles are not flagged directly: the user shows up in
		// the hidden staff lists instead of the public ones, under any
		// of their server-facing IDs.
		hiddenAdmin := false
		hiddenModerator := false
		if len(details.HiddenAdmins) > 0 || len(details.HiddenModerators) > 0 {
			ids, err := p.client.UserIDs(p.server)
			if err != nil {
				return false, fmt.Errorf("resolving user IDs for %s: %w", room, err)
			}
			hiddenAdmin = containsAny(details.HiddenAdmins, ids)
			hiddenModerator = containsAny(details.HiddenModerators, ids)
		}
		update.HiddenAdmin = &hiddenAdmin
		update.HiddenModerator = &hiddenModerator

		if details.ImageID != nil {
			update.ImageID = details.ImageID
			current, err := p.repository.Room(p.server, room)
			if err != nil {
				return false, fmt.Errorf("reading room %s: %w", room, err)
			}
			imageChanged = current.ImageID == nil || *current.ImageID != *details.ImageID
		}
	}

	if _, err := p.repository.UpdateRoomInfo(p.server, room, update); err != nil {
		return false, fmt.Errorf("updating room info for %s: %w", room, err)
	}
	return imageChanged, nil
}

func containsAny(list, ids []string) bool {
	for _, entry := range list {
		for _, id := range ids {
			if entry == id {
				return true
			}
		}
	}
	return false
}
