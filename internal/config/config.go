// Wardmap - Guardian/Ward Real-Time Location Monitoring
// Copyright 2026 Wardmap Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardmap/wardmap

// Package config holds all monitor configuration, loaded in layers:
// built-in defaults, then an optional YAML file, then environment
// variables. Config is immutable after Load and safe for concurrent
// reads.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration for the monitor.
type Config struct {
	Stream    StreamConfig    `koanf:"stream"`
	Directory DirectoryConfig `koanf:"directory"`
	Server    ServerConfig    `koanf:"server"`
	Filter    FilterConfig    `koanf:"filter"`
	Alerts    AlertsConfig    `koanf:"alerts"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// StreamConfig configures the backend websocket stream.
type StreamConfig struct {
	// BaseURL is the stream endpoint without query parameters, e.g.
	// "ws://localhost:8001/api/gps-websocket". Empty leaves the session
	// idle until a subscription is selected through the API.
	BaseURL string `koanf:"base_url"`
	// SubscriberParam and DeviceParam name the query parameters that
	// scope the stream. Backend versions disagree on these, so they
	// are configurable rather than hardcoded.
	SubscriberParam string `koanf:"subscriber_param" validate:"required"`
	DeviceParam     string `koanf:"device_param" validate:"required"`
	// HeartbeatInterval is the outbound keepalive period. The timer is
	// re-armed by any inbound traffic, so heartbeats only flow on an
	// otherwise silent socket.
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval" validate:"gt=0"`
	// SubscriberID, Role and DeviceID form the initial subscription.
	// All empty means no selection at startup.
	SubscriberID string `koanf:"subscriber_id"`
	Role         string `koanf:"role" validate:"omitempty,oneof=guardian ward"`
	DeviceID     string `koanf:"device_id"`
}

// DirectoryConfig configures the backend REST directory client.
type DirectoryConfig struct {
	// BaseURL is the REST root, e.g. "http://localhost:8001". Empty
	// disables directory lookups; devices then render without display
	// names and no geofences are drawn.
	BaseURL    string        `koanf:"base_url"`
	Timeout    time.Duration `koanf:"timeout" validate:"gt=0"`
	RetryCount int           `koanf:"retry_count" validate:"gte=0"`
	// RefreshInterval drives the periodic device directory refresh.
	RefreshInterval time.Duration `koanf:"refresh_interval" validate:"gt=0"`
}

// ServerConfig configures the monitor's own HTTP surface.
type ServerConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"gt=0,lte=65535"`
	Timeout         time.Duration `koanf:"timeout" validate:"gt=0"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_requests" validate:"gt=0"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
}

// FilterConfig tunes the position smoother.
type FilterConfig struct {
	ProcessNoise     float64 `koanf:"process_noise" validate:"gt=0"`
	MeasurementNoise float64 `koanf:"measurement_noise" validate:"gt=0"`
}

// AlertsConfig tunes the alert feed.
type AlertsConfig struct {
	FeedCapacity int `koanf:"feed_capacity" validate:"gt=0"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns the built-in defaults, applied before the
// config file and environment layers.
func defaultConfig() *Config {
	return &Config{
		Stream: StreamConfig{
			BaseURL:           "",
			SubscriberParam:   "guardianId",
			DeviceParam:       "deviceId",
			HeartbeatInterval: 20 * time.Second,
		},
		Directory: DirectoryConfig{
			BaseURL:         "",
			Timeout:         10 * time.Second,
			RetryCount:      2,
			RefreshInterval: 5 * time.Minute,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8642,
			Timeout:         30 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Filter: FilterConfig{
			ProcessNoise:     0.01,
			MeasurementNoise: 1.0,
		},
		Alerts: AlertsConfig{
			FeedCapacity: 6,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Validate checks the loaded configuration. Field-level constraints go
// through struct tags; cross-field rules are checked explicitly.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	if c.Stream.DeviceID != "" && c.Stream.SubscriberID == "" {
		return fmt.Errorf("STREAM_DEVICE_ID requires STREAM_SUBSCRIBER_ID")
	}
	if c.Stream.SubscriberID != "" && c.Stream.BaseURL == "" {
		return fmt.Errorf("STREAM_SUBSCRIBER_ID requires STREAM_BASE_URL")
	}
	return nil
}
