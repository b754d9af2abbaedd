// Copyright 2026 The Opengroup Authors
// SPDX-License-Identifier: Apache-2.0

// Sogs-poll is the community-server synchronization daemon. It polls
// every configured server on an interval, merges message and room
// updates into the local store, and serves Prometheus metrics.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/opengroup-foundation/sogs/community"
	"github.com/opengroup-foundation/sogs/lib/config"
	"github.com/opengroup-foundation/sogs/lib/ref"
	"github.com/opengroup-foundation/sogs/poller"
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
	var configPath string
	var envFile string
	var logLevel string

	pflag.StringVar(&configPath, "config", "", "path to config file (falls back to SOGS_CONFIG)")
	pflag.StringVar(&envFile, "env-file", "", "optional .env file loaded before the config")
	pflag.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	pflag.Parse()

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("loading env file: %w", err)
		}
	}

	level, err := parseLogLevel(logLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	var cfg *config.Config
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	identity, err := loadIdentity(cfg.IdentitySeedPath)
	if err != nil {
		return err
	}

	repository, err := store.OpenPebble(cfg.StorePath)
	if err != nil {
		return err
	}
	defer repository.Close()

	client, err := community.NewClient(community.ClientConfig{
		Identity:       identity,
		Directory:      store.Directory{Repository: repository},
		DefaultTimeout: cfg.RequestTimeoutDuration(),
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := poller.NewMetrics(registry)

	httpTransport := transport.NewHTTPTransport(transport.HTTPConfig{
		RequestsPerSecond: 4,
		Logger:            logger,
	})

	manager, err := poller.NewManager(poller.ManagerConfig{
		Client:         client,
		Transport:      httpTransport,
		Repository:     repository,
		Processor:      &loggingProcessor{logger: logger},
		PollInterval:   cfg.PollIntervalDuration(),
		MaxInactivity:  cfg.MaxInactivityDuration(),
		DirectMessages: cfg.DirectMessages,
		Logger:         logger,
		Metrics:        metrics,
	})
	if err != nil {
		return err
	}
	defer manager.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, serverConfig := range cfg.Servers {
		server, err := ref.ParseServerURL(serverConfig.URL)
		if err != nil {
			return err
		}
		if err := registerRooms(repository, server, serverConfig.Rooms); err != nil {
			return err
		}
		if err := manager.AddServer(ctx, server, serverConfig.PublicKey); err != nil {
			return fmt.Errorf("registering %s: %w", server, err)
		}
	}

	if cfg.MetricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		metricsServer := &http.Server{Addr: cfg.MetricsListen, Handler: mux}
		go func() {
			logger.Info("metrics listening", "address", cfg.MetricsListen)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer metricsServer.Close()
	}

	logger.Info("sogs-poll started", "servers", len(cfg.Servers), "interval", cfg.PollInterval)
	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

// registerRooms ensures a room record exists and is active for every
// configured token. Existing records keep their cursors.
func registerRooms(repository store.Repository, server ref.ServerURL, rooms []string) error {
	for _, raw := range rooms {
		token, err := ref.ParseRoomToken(raw)
		if err != nil {
			return err
		}
		if _, err := repository.Room(server, token); err == nil {
			continue
		}
		record := &store.Room{Server: server, Token: token, Active: true}
		if err := repository.PutRoom(record); err != nil {
			return fmt.Errorf("creating room record %s/%s: %w", server, token, err)
		}
	}
	return nil
}

func loadIdentity(seedPath string) (community.Identity, error) {
	raw, err := os.ReadFile(seedPath)
	if err != nil {
		return nil, fmt.Errorf("reading identity seed: %w", err)
	}
	seed, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("identity seed is not valid hex: %w", err)
	}
	return community.NewSeedIdentity(seed)
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", raw)
	}
}

// loggingProcessor is the daemon's default message sink: it logs
// merged updates. Embedding applications replace it with a real
// message database.
type loggingProcessor struct {
	logger *slog.Logger
}

func (p *loggingProcessor) ProcessMessage(server ref.ServerURL, room ref.RoomToken, message community.Message) error {
	p.logger.Info("message",
		"server", server.String(), "room", room.String(),
		"id", message.ID, "seqno", message.SeqNo, "session_id", message.SessionID)
	return nil
}

func (p *loggingProcessor) ProcessMessageDeletion(server ref.ServerURL, room ref.RoomToken, id int64) error {
	p.logger.Info("message deleted",
		"server", server.String(), "room", room.String(), "id", id)
	return nil
}

func (p *loggingProcessor) ProcessReactions(server ref.ServerURL, room ref.RoomToken, id int64, reactions map[string]community.Reaction) error {
	p.logger.Info("reactions",
		"server", server.String(), "room", room.String(), "id", id, "count", len(reactions))
	return nil
}

func (p *loggingProcessor) ProcessDirectMessage(server ref.ServerURL, message community.DirectMessage, outgoing bool) (ref.SessionID, error) {
	p.logger.Info("direct message",
		"server", server.String(), "id", message.ID, "outgoing", outgoing)
	return ref.SessionID{}, nil
}
