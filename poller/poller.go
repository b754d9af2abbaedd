// Copyright 2026 The Opengroup Authors
// SPDX-License-Identifier: Apache-2.0

package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/opengroup-foundation/sogs/community"
	"github.com/opengroup-foundation/sogs/lib/clock"
	"github.com/opengroup-foundation/sogs/lib/ref"
	"github.com/opengroup-foundation/sogs/store"
	"github.com/opengroup-foundation/sogs/transport"
)

// ErrPollInProgress is returned when Poll is called while a cycle for
// the same server is still running.
var ErrPollInProgress = errors.New("poller: poll already in progress")

// ErrPollerStopped is returned when results arrive after the poller
// was removed from its manager; the cycle's changes are discarded.
var ErrPollerStopped = errors.New("poller: poller stopped")

// PollerConfig holds the collaborators for one server's poller. All
// fields except Clock, Logger, Metrics, and Valid are required.
type PollerConfig struct {
	Server     ref.ServerURL
	Client     *community.Client
	Transport  transport.Transport
	Repository store.Repository
	Processor  MessageProcessor
	Pending    PendingChanges

	// Interval is the delay between poll cycles.
	Interval time.Duration
	// MaxInactivity bounds how stale a server may be before rooms
	// resynchronize from recent messages instead of paging the full
	// backlog.
	MaxInactivity time.Duration
	// DirectMessages enables inbox/outbox polling.
	DirectMessages bool

	// Valid reports whether the poller is still registered. Checked
	// after each network round trip, before any merge; a poller whose
	// server was removed mid-flight discards its results. Nil means
	// always valid.
	Valid func() bool

	Clock   clock.Clock
	Logger  *slog.Logger
	Metrics *Metrics
}

// Poller synchronizes one community server. Run it with Run, or
// drive individual cycles with Poll.
type Poller struct {
	server         ref.ServerURL
	client         *community.Client
	transport      transport.Transport
	repository     store.Repository
	processor      MessageProcessor
	pending        PendingChanges
	interval       time.Duration
	maxInactivity  time.Duration
	directMessages bool
	valid          func() bool
	clock          clock.Clock
	logger         *slog.Logger
	metrics        *Metrics

	mu              sync.Mutex
	polling         bool
	initialPollDone bool
}

// NewPoller creates a poller for one server.
func NewPoller(config PollerConfig) (*Poller, error) {
	if config.Server.IsZero() {
		return nil, fmt.Errorf("poller: Server is required")
	}
	if config.Client == nil || config.Transport == nil || config.Repository == nil {
		return nil, fmt.Errorf("poller: Client, Transport, and Repository are required")
	}
	if config.Processor == nil || config.Pending == nil {
		return nil, fmt.Errorf("poller: Processor and Pending are required")
	}
	if config.Interval <= 0 {
		return nil, fmt.Errorf("poller: Interval must be positive")
	}

	valid := config.Valid
	if valid == nil {
		valid = func() bool { return true }
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("server", config.Server.String())

	return &Poller{
		server:         config.Server,
		client:         config.Client,
		transport:      config.Transport,
		repository:     config.Repository,
		processor:      config.Processor,
		pending:        config.Pending,
		interval:       config.Interval,
		maxInactivity:  config.MaxInactivity,
		directMessages: config.DirectMessages,
		valid:          valid,
		clock:          clk,
		logger:         logger,
		metrics:        config.Metrics,
	}, nil
}

// Run polls in a loop until ctx is cancelled. Errors are logged and
// the loop continues; a failing server gets retried on the next tick.
func (p *Poller) Run(ctx context.Context) {
	for {
		if err := p.Poll(ctx); err != nil && !errors.Is(err, context.Canceled) {
			p.logger.Warn("poll cycle failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-p.clock.After(p.interval):
		}
	}
}

// Poll runs one complete cycle: build the batch, send it, merge the
// results. Concurrent calls for the same poller are rejected with
// ErrPollInProgress; the cycle in flight wins.
func (p *Poller) Poll(ctx context.Context) error {
	p.mu.Lock()
	if p.polling {
		p.mu.Unlock()
		return ErrPollInProgress
	}
	p.polling = true
	initial := !p.initialPollDone
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.polling = false
		p.mu.Unlock()
	}()

	started := p.clock.Now()
	err := p.pollOnce(ctx, initial)
	if p.metrics != nil {
		p.metrics.observeCycle(p.server, p.clock.Now().Sub(started), err)
	}
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.initialPollDone = true
	p.mu.Unlock()
	return nil
}

// roomPlan records what was requested for one room, so responses can
// be merged against the right targets.
type roomPlan struct {
	token      ref.RoomToken
	usedRecent bool
}

func (p *Poller) pollOnce(ctx context.Context, initial bool) error {
	serverRecord, err := p.repository.Server(p.server)
	if err != nil {
		return fmt.Errorf("reading server record: %w", err)
	}
	rooms, err := p.repository.Rooms(p.server)
	if err != nil {
		return fmt.Errorf("reading rooms: %w", err)
	}

	var active []*store.Room
	for _, room := range rooms {
		if room.Active {
			active = append(active, room)
		}
	}
	if len(active) == 0 && !p.directMessages {
		// Skipping the cycle also skips the capabilities refresh; the
		// set goes stale until a room is joined or DMs are enabled,
		// which is when anything would consume it again.
		p.logger.Debug("nothing to poll")
		return nil
	}

	batch, plans, err := p.buildBatch(serverRecord, active, initial)
	if err != nil {
		return err
	}

	_, raw, err := p.transport.Send(ctx, batch)
	if err != nil {
		return fmt.Errorf("sending poll batch: %w", err)
	}
	if !p.valid() {
		return ErrPollerStopped
	}

	responses, err := batch.DecodeBatch(raw)
	if err != nil {
		return fmt.Errorf("decoding poll batch: %w", err)
	}

	if err := p.mergeResponses(ctx, responses, plans); err != nil {
		return err
	}

	serverRecord.LastPolledAt = p.clock.Now()
	if err := p.repository.PutServer(serverRecord); err != nil {
		return fmt.Errorf("recording poll time: %w", err)
	}
	return nil
}

// buildBatch assembles the cycle's sub-requests: capabilities first,
// then per-room pollInfo and messages, then inbox/outbox.
func (p *Poller) buildBatch(serverRecord *store.Server, active []*store.Room, initial bool) (*community.PreparedRequest, []roomPlan, error) {
	var requests []*community.PreparedRequest
	var plans []roomPlan

	capabilities, err := p.client.Capabilities(p.server)
	if err != nil {
		return nil, nil, fmt.Errorf("preparing capabilities request: %w", err)
	}
	requests = append(requests, capabilities)

	stale := p.maxInactivity > 0 &&
		!serverRecord.LastPolledAt.IsZero() &&
		p.clock.Now().Sub(serverRecord.LastPolledAt) > p.maxInactivity

	var inboxCursor, outboxCursor int64
	for _, room := range active {
		pollInfo, err := p.client.RoomPollInfo(p.server, room.Token, room.InfoUpdates)
		if err != nil {
			return nil, nil, fmt.Errorf("preparing pollInfo for %s: %w", room.Token, err)
		}
		requests = append(requests, pollInfo)

		// A room with no cursor always resynchronizes from the tail,
		// whenever it was joined: paging the whole backlog through
		// /since/0 is what the recent fetch exists to avoid. The
		// staleness resync applies only on the first cycle of the
		// process.
		useRecent := room.SequenceNumber == 0 || (initial && stale)
		var messages *community.PreparedRequest
		if useRecent {
			messages, err = p.client.RecentMessages(p.server, room.Token)
		} else {
			messages, err = p.client.MessagesSince(p.server, room.Token, room.SequenceNumber)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("preparing messages for %s: %w", room.Token, err)
		}
		requests = append(requests, messages)
		plans = append(plans, roomPlan{token: room.Token, usedRecent: useRecent})

		if room.InboxCursor > inboxCursor {
			inboxCursor = room.InboxCursor
		}
		if room.OutboxCursor > outboxCursor {
			outboxCursor = room.OutboxCursor
		}
	}

	if p.directMessages {
		supported, err := p.blindingSupported()
		if err != nil {
			return nil, nil, err
		}
		if supported {
			inbox, err := p.prepareDirectMessageFetch(inboxCursor, false)
			if err != nil {
				return nil, nil, err
			}
			outbox, err := p.prepareDirectMessageFetch(outboxCursor, true)
			if err != nil {
				return nil, nil, err
			}
			requests = append(requests, inbox, outbox)
		}
	}

	batch, err := p.client.Batch(p.server, requests)
	if err != nil {
		return nil, nil, fmt.Errorf("composing poll batch: %w", err)
	}
	return batch, plans, nil
}

// blindingSupported reports whether the server can address the user's
// blinded identity, which inbox/outbox polling requires. Unknown
// capabilities count as supported, matching the signing-strategy
// assumption; only a server positively known to lack "blind" skips
// the direct-message fetches.
func (p *Poller) blindingSupported() (bool, error) {
	rows, err := p.repository.Capabilities(p.server)
	if err != nil {
		return false, fmt.Errorf("reading capabilities: %w", err)
	}
	if len(rows) == 0 {
		return true, nil
	}
	for _, row := range rows {
		if !row.Missing && row.Name == community.CapabilityBlind {
			return true, nil
		}
	}
	return false, nil
}

func (p *Poller) prepareDirectMessageFetch(cursor int64, outgoing bool) (*community.PreparedRequest, error) {
	var request *community.PreparedRequest
	var err error
	switch {
	case outgoing && cursor > 0:
		request, err = p.client.OutboxSince(p.server, cursor)
	case outgoing:
		request, err = p.client.Outbox(p.server)
	case cursor > 0:
		request, err = p.client.InboxSince(p.server, cursor)
	default:
		request, err = p.client.Inbox(p.server)
	}
	if err != nil {
		return nil, fmt.Errorf("preparing direct message fetch: %w", err)
	}
	return request, nil
}

// mergeResponses walks the positional sub-responses and applies each
// one. A failing sub-response is logged and skipped; the rest of the
// cycle still merges.
func (p *Poller) mergeResponses(ctx context.Context, responses []community.SubResponse, plans []roomPlan) error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	planIndex := 0
	for i := range responses {
		response := &responses[i]
		if !response.Successful() && !response.NotModified() {
			p.logger.Warn("poll sub-request failed",
				"endpoint", int(response.Endpoint.Kind),
				"room", response.Endpoint.Room.String(),
				"status", response.Code)
			if p.metrics != nil {
				p.metrics.subRequestFailures.WithLabelValues(p.server.String()).Inc()
			}
			if response.Endpoint.Kind == community.EndpointMessagesRecent ||
				response.Endpoint.Kind == community.EndpointMessagesSince {
				planIndex++
			}
			continue
		}

		switch response.Endpoint.Kind {
		case community.EndpointCapabilities:
			record(p.mergeCapabilities(response))

		case community.EndpointRoomPollInfo:
			record(p.mergePollInfoResponse(ctx, response))

		case community.EndpointMessagesRecent, community.EndpointMessagesSince:
			if planIndex >= len(plans) {
				record(fmt.Errorf("message response without a matching room plan"))
				continue
			}
			plan := plans[planIndex]
			planIndex++
			var messages []community.Message
			if err := response.Decode(&messages); err != nil {
				record(fmt.Errorf("decoding messages for %s: %w", plan.token, err))
				continue
			}
			if p.metrics != nil {
				p.metrics.messagesMerged.WithLabelValues(p.server.String()).Add(float64(len(messages)))
			}
			record(p.mergeMessages(plan.token, messages))

		case community.EndpointInbox, community.EndpointInboxSince:
			record(p.mergeDirectMessageResponse(response, false))

		case community.EndpointOutbox, community.EndpointOutboxSince:
			record(p.mergeDirectMessageResponse(response, true))
		}
	}
	return firstErr
}

func (p *Poller) mergeCapabilities(response *community.SubResponse) error {
	var capabilities community.Capabilities
	if err := response.Decode(&capabilities); err != nil {
		return fmt.Errorf("decoding capabilities: %w", err)
	}
	rows := make([]store.Capability, 0, len(capabilities.Capabilities)+len(capabilities.Missing))
	for _, name := range capabilities.Capabilities {
		rows = append(rows, store.Capability{Server: p.server, Name: name})
	}
	for _, name := range capabilities.Missing {
		rows = append(rows, store.Capability{Server: p.server, Name: name, Missing: true})
	}
	if err := p.repository.ReplaceCapabilities(p.server, rows); err != nil {
		return fmt.Errorf("storing capabilities: %w", err)
	}
	return nil
}

func (p *Poller) mergePollInfoResponse(ctx context.Context, response *community.SubResponse) error {
	var info community.RoomPollInfo
	if err := response.Decode(&info); err != nil {
		return fmt.Errorf("decoding pollInfo for %s: %w", response.Endpoint.Room, err)
	}
	imageChanged, err := p.mergeRoomPollInfo(response.Endpoint.Room, info)
	if err != nil {
		return err
	}
	if imageChanged && info.Details != nil && info.Details.ImageID != nil {
		// Image fetches ride outside the batch: they are rare, large,
		// and must not delay cursor advancement.
		p.fetchRoomImage(ctx, response.Endpoint.Room, *info.Details.ImageID)
	}
	return nil
}

func (p *Poller) fetchRoomImage(ctx context.Context, room ref.RoomToken, imageID int64) {
	request, err := p.client.DownloadFile(p.server, room, imageID)
	if err != nil {
		p.logger.Warn("preparing room image fetch failed", "room", room.String(), "error", err)
		return
	}
	_, data, err := p.transport.Send(ctx, request)
	if err != nil {
		p.logger.Warn("fetching room image failed", "room", room.String(), "image_id", imageID, "error", err)
		return
	}
	if err := p.repository.StoreRoomImage(p.server, room, imageID, data); err != nil {
		p.logger.Warn("storing room image failed", "room", room.String(), "error", err)
	}
}

func (p *Poller) mergeDirectMessageResponse(response *community.SubResponse, outgoing bool) error {
	if response.NotModified() {
		return nil
	}
	var messages []community.DirectMessage
	if err := response.Decode(&messages); err != nil {
		return fmt.Errorf("decoding direct messages: %w", err)
	}
	return p.mergeDirectMessages(messages, outgoing)
}
