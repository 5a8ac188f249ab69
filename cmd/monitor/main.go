// Wardmap - Guardian/Ward Real-Time Location Monitoring
// Copyright 2026 Wardmap Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardmap/wardmap

// Package main is the entry point for the wardmap monitor.
//
// Wardmap subscribes to a guardian/ward location stream, smooths and
// datum-shifts incoming positions, and serves the result to map UIs
// over REST and websocket.
//
// # Application Architecture
//
// The monitor initializes components in the following order:
//
//  1. Configuration: layered load from defaults, config.yaml and
//     environment variables (Koanf v2)
//  2. Core state: device location store, alert feed, map UI hub
//  3. Session orchestrator: the websocket subscription to the
//     location backend, with smoothing and datum conversion inline
//  4. Directory clients: device and geofence REST lookups behind a
//     circuit breaker, plus a background display-name refresher
//  5. HTTP server: REST API, websocket endpoint and Prometheus
//     metrics on a chi router
//
// All long-running parts run under a suture supervisor tree and are
// restarted on failure.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (STREAM_BASE_URL, DIRECTORY_BASE_URL, ...)
//   - Config file (config.yaml, or CONFIG_PATH)
//   - Built-in defaults
//
// An initial subscription can be configured so the monitor starts
// streaming without an API call:
//
//	export STREAM_BASE_URL=wss://backend.example/location/stream
//	export STREAM_SUBSCRIBER_ID=guardian-17
//	export STREAM_ROLE=guardian
//	./wardmap-monitor
//
// # Signal Handling
//
// The monitor shuts down gracefully on SIGINT and SIGTERM: the stream
// channel is closed with a normal-closure frame, websocket clients are
// detached, and in-flight HTTP requests get a drain window.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wardmap/wardmap/internal/alerts"
	"github.com/wardmap/wardmap/internal/api"
	"github.com/wardmap/wardmap/internal/config"
	"github.com/wardmap/wardmap/internal/directory"
	"github.com/wardmap/wardmap/internal/hub"
	"github.com/wardmap/wardmap/internal/logging"
	"github.com/wardmap/wardmap/internal/models"
	"github.com/wardmap/wardmap/internal/session"
	"github.com/wardmap/wardmap/internal/store"
	"github.com/wardmap/wardmap/internal/supervisor"
	"github.com/wardmap/wardmap/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("stream_url", cfg.Stream.BaseURL).
		Str("directory_url", cfg.Directory.BaseURL).
		Msg("Starting wardmap monitor")

	// Core state shared by the stream session and the HTTP surface.
	locStore := store.New()
	feed := alerts.NewFeed(cfg.Alerts.FeedCapacity)

	mapHub := hub.NewHub(func() hub.Snapshot {
		return hub.Snapshot{Locations: locStore.All(), Alerts: feed.All()}
	})

	orch := session.New(session.Config{
		StreamBaseURL:     cfg.Stream.BaseURL,
		SubscriberParam:   cfg.Stream.SubscriberParam,
		DeviceParam:       cfg.Stream.DeviceParam,
		HeartbeatInterval: cfg.Stream.HeartbeatInterval,
		ProcessNoise:      cfg.Filter.ProcessNoise,
		MeasurementNoise:  cfg.Filter.MeasurementNoise,
	}, locStore, feed, mapHub)

	// Directory clients are optional; without a backend the /devices
	// and /geofences endpoints report the directory as disabled.
	var dir api.Directory
	var dirClient *directory.Client
	if cfg.Directory.BaseURL != "" {
		dirClient = directory.NewClient(directory.Config{
			BaseURL:    cfg.Directory.BaseURL,
			Timeout:    cfg.Directory.Timeout,
			RetryCount: cfg.Directory.RetryCount,
		})
		dir = dirClient
		logging.Info().Str("url", cfg.Directory.BaseURL).Msg("Device directory enabled")
	} else {
		logging.Info().Msg("Device directory disabled (DIRECTORY_BASE_URL not set)")
	}

	handler := api.NewHandler(orch, locStore, feed, mapHub, dir, cfg.Server.CORSOrigins)
	router := api.NewRouter(handler, api.NewMiddleware(&api.MiddlewareConfig{
		CORSAllowedOrigins: cfg.Server.CORSOrigins,
		CORSAllowedMethods: []string{"GET", "PUT", "OPTIONS"},
		CORSAllowedHeaders: []string{"Content-Type"},
		CORSMaxAge:         86400,
		RateLimitRequests:  cfg.Server.RateLimitReqs,
		RateLimitWindow:    cfg.Server.RateLimitWindow,
	}))

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree, err := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// Streaming layer: hub fan-out, the stream session, and the
	// display-name refresher.
	tree.AddStreamingService(services.NewRunnerService(mapHub, "map-hub"))

	initial := models.Subscription{
		SubscriberID: cfg.Stream.SubscriberID,
		Role:         models.Role(cfg.Stream.Role),
		DeviceID:     cfg.Stream.DeviceID,
	}
	tree.AddStreamingService(session.NewService(orch, initial))
	if !initial.Zero() {
		logging.Info().
			Str("subscriber", initial.SubscriberID).
			Str("device", initial.DeviceID).
			Msg("Initial subscription configured")
	}

	if dirClient != nil {
		refresher := directory.NewRefresher(dirClient, orch, func() models.Subscription {
			return orch.Status().Subscription
		}, cfg.Directory.RefreshInterval)
		tree.AddStreamingService(refresher)
	}

	// API layer.
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Monitor stopped gracefully")
}
