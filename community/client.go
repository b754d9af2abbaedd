// Copyright 2026 The Opengroup Authors
// SPDX-License-Identifier: Apache-2.0

package community

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/opengroup-foundation/sogs/lib/blinding"
	"github.com/opengroup-foundation/sogs/lib/clock"
	"github.com/opengroup-foundation/sogs/lib/ref"
)

// ServerDirectory supplies what signing needs to know about a server:
// its static public key and its last-known capability set. The store
// package's repository satisfies this through a thin adapter.
type ServerDirectory interface {
	// ServerPublicKey returns the hex-encoded public key for the
	// server. Returns an error when the key is unknown — the caller
	// surfaces ErrNoPublicKey and must fetch the key (from a join
	// URL) before any signed request can be built.
	ServerPublicKey(server ref.ServerURL) (string, error)

	// ServerCapabilities returns the last-fetched capability strings
	// for the server. An empty slice means "unknown" and triggers
	// the assume-blinded signing rule.
	ServerCapabilities(server ref.ServerURL) ([]string, error)
}

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// Identity supplies the local keypairs (required).
	Identity Identity
	// Directory resolves server keys and capabilities (required).
	Directory ServerDirectory
	// Fallback is the signing strategy for servers positively known
	// to lack blinding support. Defaults to SignUnblinded.
	Fallback SigningStrategy
	// DefaultTimeout applies to requests built without an explicit
	// timeout. Defaults to 10 seconds.
	DefaultTimeout time.Duration
	// Clock is used for signature timestamps. If nil, the system
	// clock is used.
	Clock clock.Clock
	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Client builds signed PreparedRequests for every community-server
// endpoint. It holds no per-server state beyond what the directory
// provides, so one Client serves any number of servers.
type Client struct {
	identity  Identity
	directory ServerDirectory
	fallback  SigningStrategy
	timeout   time.Duration
	clock     clock.Clock
	logger    *slog.Logger
}

// NewClient creates a Client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.Identity == nil {
		return nil, fmt.Errorf("community: Identity is required")
	}
	if config.Directory == nil {
		return nil, fmt.Errorf("community: Directory is required")
	}

	timeout := config.DefaultTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		identity:  config.Identity,
		directory: config.Directory,
		fallback:  config.Fallback,
		timeout:   timeout,
		clock:     clk,
		logger:    logger,
	}, nil
}

// UserIDs returns every identifier the server may use for the local
// user: the per-server blinded ID, the unblinded Ed25519 ID, and the
// legacy standard ID when the identity carries one. Staff and ban
// lists can name the user under any of them.
func (c *Client) UserIDs(server ref.ServerURL) ([]string, error) {
	publicKey, err := c.directory.ServerPublicKey(server)
	if err != nil || publicKey == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoPublicKey, server)
	}
	edKeyPair, err := c.identity.Ed25519KeyPair()
	if err != nil || edKeyPair == nil {
		return nil, fmt.Errorf("%w: %v", ErrNoIdentity, err)
	}
	blindedPair, err := blinding.BlindedKeyPair(publicKey, edKeyPair.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("%w: deriving blinded keypair: %v", ErrSigningFailed, err)
	}
	ids := []string{
		ref.PrefixBlinded15 + hex.EncodeToString(blindedPair.PublicKey),
		ref.PrefixUnblinded + hex.EncodeToString(edKeyPair.PublicKey),
	}
	if legacyPair, err := c.identity.LegacyKeyPair(); err == nil && legacyPair != nil {
		ids = append(ids, ref.PrefixStandard+hex.EncodeToString(legacyPair.PublicKey))
	}
	return ids, nil
}

// prepare builds and signs a single request. Every endpoint
// constructor funnels through here; signing happens exactly once, at
// construction.
func (c *Client) prepare(server ref.ServerURL, endpoint Endpoint, responseType ResponseType, method, path string, body *RequestBody) (*PreparedRequest, error) {
	if server.IsZero() {
		return nil, fmt.Errorf("%w: zero server URL", ErrInvalidPrepared)
	}

	publicKey, err := c.directory.ServerPublicKey(server)
	if err != nil || publicKey == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoPublicKey, server)
	}

	capabilities, err := c.directory.ServerCapabilities(server)
	if err != nil {
		return nil, fmt.Errorf("community: reading capabilities for %s: %w", server, err)
	}
	strategy := SelectSigningStrategy(capabilities, c.fallback)

	var payload []byte
	if body != nil {
		if err := body.validate(); err != nil {
			return nil, err
		}
		payload = body.Payload()
	}

	headers, err := signRequest(c.identity, publicKey, strategy, method, path, payload, c.clock.Now())
	if err != nil {
		return nil, err
	}

	return &PreparedRequest{
		server:          server,
		serverPublicKey: publicKey,
		method:          method,
		path:            path,
		headers:         headers,
		body:            body,
		timeout:         c.timeout,
		endpoint:        endpoint,
		responseType:    responseType,
	}, nil
}
