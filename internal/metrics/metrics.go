// Wardmap - Guardian/Ward Real-Time Location Monitoring
// Copyright 2026 Wardmap Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardmap/wardmap

// Package metrics provides Prometheus instrumentation for the live
// location pipeline: transport channel health, frame classification,
// smoothing throughput and the upstream directory circuit breaker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Transport channel metrics

	ChannelState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wardmap_channel_state",
			Help: "Current transport channel state (0=closed, 1=connecting, 2=open)",
		},
	)

	ReconnectAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wardmap_channel_reconnect_attempts_total",
			Help: "Total number of scheduled reconnection attempts",
		},
	)

	HeartbeatsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wardmap_channel_heartbeats_sent_total",
			Help: "Total number of heartbeat frames sent on the upstream channel",
		},
	)

	ChannelErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wardmap_channel_errors_total",
			Help: "Total number of transport-level errors",
		},
		[]string{"kind"}, // "dial", "read", "write"
	)

	// Frame pipeline metrics

	FramesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wardmap_frames_received_total",
			Help: "Total inbound frames by classified kind",
		},
		[]string{"kind"}, // "location-update", "alert", "heartbeat-ack", "unrecognized"
	)

	DecodeFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wardmap_frame_decode_failures_total",
			Help: "Total inbound frames dropped because they could not be decoded",
		},
	)

	LocationsAccepted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wardmap_locations_accepted_total",
			Help: "Total location samples smoothed, converted and written to the store",
		},
	)

	AlertsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wardmap_alerts_received_total",
			Help: "Total alerts pushed to the feed, by alert type",
		},
		[]string{"type"},
	)

	TrackedDevices = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wardmap_tracked_devices",
			Help: "Number of devices currently held in the location store",
		},
	)

	// Session metrics

	SubscriptionSwitches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wardmap_subscription_switches_total",
			Help: "Total subscription selection changes (channel teardown and re-dial)",
		},
	)

	// UI fan-out metrics

	HubClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wardmap_hub_clients",
			Help: "Number of map UI clients connected to the fan-out hub",
		},
	)

	// Directory client metrics

	DirectoryRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wardmap_directory_requests_total",
			Help: "Total device/geofence directory requests by outcome",
		},
		[]string{"endpoint", "outcome"}, // outcome: "ok", "error", "open_circuit"
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wardmap_circuit_breaker_state",
			Help: "Directory circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)
