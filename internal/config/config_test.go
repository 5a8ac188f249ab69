// Wardmap - Guardian/Ward Real-Time Location Monitoring
// Copyright 2026 Wardmap Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardmap/wardmap

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Stream.SubscriberParam != "guardianId" {
		t.Errorf("Stream.SubscriberParam = %q, want guardianId", cfg.Stream.SubscriberParam)
	}
	if cfg.Stream.DeviceParam != "deviceId" {
		t.Errorf("Stream.DeviceParam = %q, want deviceId", cfg.Stream.DeviceParam)
	}
	if cfg.Stream.HeartbeatInterval != 20*time.Second {
		t.Errorf("Stream.HeartbeatInterval = %v, want 20s", cfg.Stream.HeartbeatInterval)
	}
	if cfg.Server.Port != 8642 {
		t.Errorf("Server.Port = %d, want 8642", cfg.Server.Port)
	}
	if cfg.Filter.ProcessNoise != 0.01 || cfg.Filter.MeasurementNoise != 1.0 {
		t.Errorf("Filter = %+v, want Q=0.01 R=1", cfg.Filter)
	}
	if cfg.Alerts.FeedCapacity != 6 {
		t.Errorf("Alerts.FeedCapacity = %d, want 6", cfg.Alerts.FeedCapacity)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v, want info/json", cfg.Logging)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STREAM_BASE_URL", "ws://backend:8001/api/gps-websocket")
	t.Setenv("STREAM_SUBSCRIBER_ID", "g1")
	t.Setenv("STREAM_ROLE", "guardian")
	t.Setenv("STREAM_HEARTBEAT_INTERVAL", "45s")
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Stream.BaseURL != "ws://backend:8001/api/gps-websocket" {
		t.Errorf("Stream.BaseURL = %q", cfg.Stream.BaseURL)
	}
	if cfg.Stream.SubscriberID != "g1" {
		t.Errorf("Stream.SubscriberID = %q, want g1", cfg.Stream.SubscriberID)
	}
	if cfg.Stream.HeartbeatInterval != 45*time.Second {
		t.Errorf("Stream.HeartbeatInterval = %v, want 45s", cfg.Stream.HeartbeatInterval)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoad_UnmappedEnvIgnored(t *testing.T) {
	t.Setenv("RANDOM_UNRELATED_VAR", "true")

	if _, err := Load(); err != nil {
		t.Fatalf("Load failed with unrelated env var present: %v", err)
	}
}

func TestLoad_CORSOriginsCommaSeparated(t *testing.T) {
	t.Setenv("CORS_ORIGINS", "http://localhost:3000, https://wardmap.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := []string{"http://localhost:3000", "https://wardmap.example.com"}
	if len(cfg.Server.CORSOrigins) != len(want) {
		t.Fatalf("CORSOrigins = %v, want %v", cfg.Server.CORSOrigins, want)
	}
	for i := range want {
		if cfg.Server.CORSOrigins[i] != want[i] {
			t.Errorf("CORSOrigins[%d] = %q, want %q", i, cfg.Server.CORSOrigins[i], want[i])
		}
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
stream:
  base_url: ws://file-backend:8001/api/gps-websocket
  subscriber_param: parentId
server:
  port: 7000
logging:
  level: warn
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Stream.BaseURL != "ws://file-backend:8001/api/gps-websocket" {
		t.Errorf("Stream.BaseURL = %q", cfg.Stream.BaseURL)
	}
	if cfg.Stream.SubscriberParam != "parentId" {
		t.Errorf("Stream.SubscriberParam = %q, want parentId", cfg.Stream.SubscriberParam)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("Server.Port = %d, want 7000", cfg.Server.Port)
	}
	// Unset file keys keep their defaults.
	if cfg.Stream.DeviceParam != "deviceId" {
		t.Errorf("Stream.DeviceParam = %q, want default deviceId", cfg.Stream.DeviceParam)
	}
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 7000\n"), 0o600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("HTTP_PORT", "7500")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 7500 {
		t.Errorf("Server.Port = %d, want env override 7500", cfg.Server.Port)
	}
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero heartbeat", func(c *Config) { c.Stream.HeartbeatInterval = 0 }},
		{"bad role", func(c *Config) { c.Stream.Role = "sibling" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"zero feed capacity", func(c *Config) { c.Alerts.FeedCapacity = 0 }},
		{"negative noise", func(c *Config) { c.Filter.ProcessNoise = -1 }},
		{"device without subscriber", func(c *Config) { c.Stream.DeviceID = "watch-1" }},
		{"subscriber without base url", func(c *Config) { c.Stream.SubscriberID = "g1" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate accepted an invalid config")
			}
		})
	}
}

func TestValidate_InitialSubscriptionOK(t *testing.T) {
	cfg := defaultConfig()
	cfg.Stream.BaseURL = "ws://backend:8001/api/gps-websocket"
	cfg.Stream.SubscriberID = "g1"
	cfg.Stream.Role = "guardian"
	cfg.Stream.DeviceID = "watch-1"

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate rejected a complete initial subscription: %v", err)
	}
}
