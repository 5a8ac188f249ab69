// Wardmap - Guardian/Ward Real-Time Location Monitoring
// Copyright 2026 Wardmap Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardmap/wardmap

package directory

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/wardmap/wardmap/internal/logging"
	"github.com/wardmap/wardmap/internal/models"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

func newTestClient(serverURL string) *Client {
	return NewClient(Config{BaseURL: serverURL, RetryCount: 0})
}

func TestClient_DevicesGuardian(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/guardian/devices" {
			t.Errorf("path = %q, want /api/guardian/devices", r.URL.Path)
		}
		if got := r.URL.Query().Get("guardianId"); got != "g1" {
			t.Errorf("guardianId = %q, want g1", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":0,"data":[{"id":"watch-1","name":"Alba"},{"id":"watch-2","name":"Ben"}]}`))
	}))
	defer server.Close()

	devices, err := newTestClient(server.URL).Devices(context.Background(), models.Subscription{
		SubscriberID: "g1",
		Role:         models.RoleGuardian,
	})
	if err != nil {
		t.Fatalf("Devices failed: %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("got %d devices, want 2", len(devices))
	}
	if devices[0].ID != "watch-1" || devices[0].DisplayName != "Alba" {
		t.Errorf("first device = %+v", devices[0])
	}
}

func TestClient_DevicesWardUsesWardEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ward/devices" {
			t.Errorf("path = %q, want /api/ward/devices", r.URL.Path)
		}
		if got := r.URL.Query().Get("wardId"); got != "w1" {
			t.Errorf("wardId = %q, want w1", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":0,"data":[]}`))
	}))
	defer server.Close()

	devices, err := newTestClient(server.URL).Devices(context.Background(), models.Subscription{
		SubscriberID: "w1",
		Role:         models.RoleWard,
	})
	if err != nil {
		t.Fatalf("Devices failed: %v", err)
	}
	if len(devices) != 0 {
		t.Errorf("got %d devices, want 0", len(devices))
	}
}

func TestClient_Geofences(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/geofence/list" {
			t.Errorf("path = %q, want /api/geofence/list", r.URL.Path)
		}
		if got := r.URL.Query().Get("deviceId"); got != "watch-1" {
			t.Errorf("deviceId = %q, want watch-1", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":0,"data":[
			{"id":"f1","deviceId":"watch-1","name":"school","vertices":[
				{"longitude":116.40,"latitude":39.90},
				{"longitude":116.41,"latitude":39.90},
				{"longitude":116.41,"latitude":39.91}
			]}
		]}`))
	}))
	defer server.Close()

	fences, err := newTestClient(server.URL).Geofences(context.Background(), "watch-1")
	if err != nil {
		t.Fatalf("Geofences failed: %v", err)
	}
	if len(fences) != 1 {
		t.Fatalf("got %d fences, want 1", len(fences))
	}
	if fences[0].Name != "school" || len(fences[0].Vertices) != 3 {
		t.Errorf("fence = %+v", fences[0])
	}
}

func TestClient_BackendErrorEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":4001,"message":"guardian not found"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Devices(context.Background(), models.Subscription{SubscriberID: "nobody"})
	if err == nil {
		t.Fatal("expected an error for a non-zero backend code")
	}
}

func TestClient_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Geofences(context.Background(), "watch-1")
	if err == nil {
		t.Fatal("expected an error for HTTP 502")
	}
}

func TestClient_CircuitBreakerOpensAfterSustainedFailures(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	sub := models.Subscription{SubscriberID: "g1"}

	// The breaker trips at a 60% failure rate over at least 10
	// requests; every request here fails.
	for i := 0; i < 12; i++ {
		_, _ = client.Devices(context.Background(), sub)
	}

	before := calls.Load()
	if _, err := client.Devices(context.Background(), sub); err == nil {
		t.Fatal("expected an error with the circuit open")
	}
	if calls.Load() != before {
		t.Error("open circuit still let a request through")
	}
}
