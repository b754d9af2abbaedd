// Copyright 2026 The Opengroup Authors
// SPDX-License-Identifier: Apache-2.0

package poller

import (
	"context"
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

// ManagerConfig holds the shared collaborators for all pollers.
type ManagerConfig struct {
	Client     *community.Client
	Transport  transport.Transport
	Repository store.Repository
	Processor  MessageProcessor

	// PollInterval is the delay between cycles. Defaults to 15s.
	PollInterval time.Duration
	// MaxInactivity bounds staleness before tail resynchronization.
	MaxInactivity time.Duration
	// DirectMessages enables inbox/outbox polling on every server.
	DirectMessages bool

	Clock   clock.Clock
	Logger  *slog.Logger
	Metrics *Metrics
}

// Manager owns one poller goroutine per registered server and the
// list of outstanding optimistic changes. All state is guarded by a
// single mutex; every operation is a short critical section.
type Manager struct {
	config ManagerConfig
	clock  clock.Clock
	logger *slog.Logger

	mu      sync.Mutex
	pollers map[ref.ServerURL]*pollerHandle
	pending []PendingChange
	closed  bool
}

type pollerHandle struct {
	poller *Poller
	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a Manager.
func NewManager(config ManagerConfig) (*Manager, error) {
	if config.Client == nil || config.Transport == nil || config.Repository == nil || config.Processor == nil {
		return nil, fmt.Errorf("poller: Client, Transport, Repository, and Processor are required")
	}
	if config.PollInterval == 0 {
		config.PollInterval = 15 * time.Second
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		config:  config,
		clock:   clk,
		logger:  logger,
		pollers: make(map[ref.ServerURL]*pollerHandle),
	}, nil
}

// AddServer registers a server and starts polling it. The server
// record is created if missing; publicKey must be the hex server key
// from the join URL. Adding an already-registered server is a no-op.
func (m *Manager) AddServer(ctx context.Context, server ref.ServerURL, publicKey string) error {
	if server.IsZero() {
		return fmt.Errorf("poller: zero server URL")
	}
	if publicKey == "" {
		return fmt.Errorf("poller: server public key is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("poller: manager is closed")
	}
	if _, exists := m.pollers[server]; exists {
		return nil
	}

	if _, err := m.config.Repository.Server(server); err != nil {
		record := &store.Server{URL: server, PublicKey: publicKey}
		if err := m.config.Repository.PutServer(record); err != nil {
			return fmt.Errorf("poller: creating server record: %w", err)
		}
	}

	poller, err := NewPoller(PollerConfig{
		Server:         server,
		Client:         m.config.Client,
		Transport:      m.config.Transport,
		Repository:     m.config.Repository,
		Processor:      m.config.Processor,
		Pending:        m,
		Interval:       m.config.PollInterval,
		MaxInactivity:  m.config.MaxInactivity,
		DirectMessages: m.config.DirectMessages,
		Valid:          func() bool { return m.IsValid(server) },
		Clock:          m.clock,
		Logger:         m.logger,
		Metrics:        m.config.Metrics,
	})
	if err != nil {
		return err
	}

	pollerCtx, cancel := context.WithCancel(ctx)
	handle := &pollerHandle{poller: poller, cancel: cancel, done: make(chan struct{})}
	m.pollers[server] = handle
	go func() {
		defer close(handle.done)
		poller.Run(pollerCtx)
	}()

	m.logger.Info("server registered", "server", server.String())
	return nil
}

// RemoveServer stops polling a server and drops its pending changes.
// Stored records stay; re-adding the server resumes from its cursors.
func (m *Manager) RemoveServer(server ref.ServerURL) {
	m.mu.Lock()
	handle, ok := m.pollers[server]
	if ok {
		delete(m.pollers, server)
		retained := m.pending[:0]
		for _, change := range m.pending {
			if change.Server != server {
				retained = append(retained, change)
			}
		}
		m.pending = retained
		m.updatePendingGauge()
	}
	m.mu.Unlock()

	if ok {
		handle.cancel()
		<-handle.done
		m.logger.Info("server removed", "server", server.String())
	}
}

// IsValid reports whether the server is still registered. Pollers
// check this before merging results that arrived after removal.
func (m *Manager) IsValid(server ref.ServerURL) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.pollers[server]
	return ok
}

// Poller returns the poller for a server, or nil. Intended for
// one-shot Poll calls in tooling and tests.
func (m *Manager) Poller(server ref.ServerURL) *Poller {
	m.mu.Lock()
	defer m.mu.Unlock()
	handle, ok := m.pollers[server]
	if !ok {
		return nil
	}
	return handle.poller
}

// Close stops every poller and rejects further registrations.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	handles := make([]*pollerHandle, 0, len(m.pollers))
	for server, handle := range m.pollers {
		handles = append(handles, handle)
		delete(m.pollers, server)
	}
	m.pending = nil
	m.mu.Unlock()

	for _, handle := range handles {
		handle.cancel()
		<-handle.done
	}
}

// AddPendingChange records an optimistic local change. Call after the
// server accepted the change and assigned it a sequence number.
func (m *Manager) AddPendingChange(change PendingChange) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, change)
	m.updatePendingGauge()
}

// PendingChangesFor implements PendingChanges.
func (m *Manager) PendingChangesFor(server ref.ServerURL, room ref.RoomToken, messageID int64) []PendingChange {
	m.mu.Lock()
	defer m.mu.Unlock()
	var changes []PendingChange
	for _, change := range m.pending {
		if change.Server == server && change.Room == room && change.MessageID == messageID {
			changes = append(changes, change)
		}
	}
	return changes
}

// HasPendingChange reports whether any change is outstanding for the
// message.
func (m *Manager) HasPendingChange(server ref.ServerURL, room ref.RoomToken, messageID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, change := range m.pending {
		if change.Server == server && change.Room == room && change.MessageID == messageID {
			return true
		}
	}
	return false
}

// RetirePendingChanges implements PendingChanges: changes whose
// sequence number the cursor has reached are confirmed (or
// superseded) server-side and stop adjusting reaction snapshots.
func (m *Manager) RetirePendingChanges(server ref.ServerURL, room ref.RoomToken, cursor int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	retained := m.pending[:0]
	for _, change := range m.pending {
		if change.Server == server && change.Room == room && change.SeqNo <= cursor {
			continue
		}
		retained = append(retained, change)
	}
	m.pending = retained
	m.updatePendingGauge()
}

// PendingChangeCount returns the number of outstanding changes.
func (m *Manager) PendingChangeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

func (m *Manager) updatePendingGauge() {
	if m.config.Metrics != nil {
		m.config.Metrics.pendingChanges.Set(float64(len(m.pending)))
	}
}
