// Copyright 2026 The Opengroup Authors
// SPDX-License-Identifier: Apache-2.0

// Sogs-request builds, signs, and executes one community-server
// request, printing the raw response to stdout. Useful for probing a
// server and for debugging signing problems.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/opengroup-foundation/sogs/community"
	"github.com/opengroup-foundation/sogs/lib/ref"
	"github.com/opengroup-foundation/sogs/store"
	"github.com/opengroup-foundation/sogs/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var serverURL string
	var publicKey string
	var seedPath string
	var envFile string
	var roomToken string
	var endpoint string
	var since int64
	var timeout time.Duration

	pflag.StringVar(&serverURL, "server", "", "server base URL (required)")
	pflag.StringVar(&publicKey, "public-key", "", "hex server public key (required)")
	pflag.StringVar(&seedPath, "seed", "", "path to hex Ed25519 identity seed (required)")
	pflag.StringVar(&envFile, "env-file", "", "optional .env file")
	pflag.StringVar(&roomToken, "room", "", "room token for room-scoped endpoints")
	pflag.StringVar(&endpoint, "endpoint", "capabilities",
		"one of: capabilities, rooms, room, pollinfo, recent, since, inbox, outbox")
	pflag.Int64Var(&since, "since", 0, "cursor for the since endpoint")
	pflag.DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")
	pflag.Parse()

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("loading env file: %w", err)
		}
	}
	if serverURL == "" || publicKey == "" || seedPath == "" {
		return fmt.Errorf("--server, --public-key, and --seed are required")
	}

	server, err := ref.ParseServerURL(serverURL)
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(seedPath)
	if err != nil {
		return fmt.Errorf("reading identity seed: %w", err)
	}
	seed, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return fmt.Errorf("identity seed is not valid hex: %w", err)
	}
	identity, err := community.NewSeedIdentity(seed)
	if err != nil {
		return err
	}

	// A throwaway in-memory store seeded with the server key; the
	// capability set starts unknown, so signing assumes blinding.
	repository := store.NewMemory()
	if err := repository.PutServer(&store.Server{URL: server, PublicKey: publicKey}); err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	client, err := community.NewClient(community.ClientConfig{
		Identity:       identity,
		Directory:      store.Directory{Repository: repository},
		DefaultTimeout: timeout,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	request, err := buildRequest(client, server, endpoint, roomToken, since)
	if err != nil {
		return err
	}

	httpTransport := transport.NewHTTPTransport(transport.HTTPConfig{Logger: logger})
	info, body, err := httpTransport.Send(context.Background(), request)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "%s %s -> %d\n", request.Method(), request.Path(), info.Code)
	if len(body) > 0 {
		os.Stdout.Write(body)
		fmt.Println()
	}
	return nil
}

func buildRequest(client *community.Client, server ref.ServerURL, endpoint, roomToken string, since int64) (*community.PreparedRequest, error) {
	needsRoom := func() (ref.RoomToken, error) {
		if roomToken == "" {
			return ref.RoomToken{}, fmt.Errorf("--room is required for the %s endpoint", endpoint)
		}
		return ref.ParseRoomToken(roomToken)
	}

	switch endpoint {
	case "capabilities":
		return client.Capabilities(server)
	case "rooms":
		return client.Rooms(server)
	case "room":
		room, err := needsRoom()
		if err != nil {
			return nil, err
		}
		return client.Room(server, room)
	case "pollinfo":
		room, err := needsRoom()
		if err != nil {
			return nil, err
		}
		return client.RoomPollInfo(server, room, since)
	case "recent":
		room, err := needsRoom()
		if err != nil {
			return nil, err
		}
		return client.RecentMessages(server, room)
	case "since":
		room, err := needsRoom()
		if err != nil {
			return nil, err
		}
		return client.MessagesSince(server, room, since)
	case "inbox":
		if since > 0 {
			return client.InboxSince(server, since)
		}
		return client.Inbox(server)
	case "outbox":
		if since > 0 {
			return client.OutboxSince(server, since)
		}
		return client.Outbox(server)
	default:
		return nil, fmt.Errorf("unknown endpoint %q", endpoint)
	}
}
