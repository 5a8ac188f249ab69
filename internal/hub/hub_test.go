// Wardmap - Guardian/Ward Real-Time Location Monitoring
// Copyright 2026 Wardmap Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardmap/wardmap

package hub

import (
	"context"
	"io"
	"testing"
	"time"

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

// setupHub creates a hub and runs it until the test ends.
func setupHub(t *testing.T, snapshot SnapshotFunc) *Hub {
	t.Helper()
	h := NewHub(snapshot)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = h.Run(ctx) }()
	time.Sleep(10 * time.Millisecond)
	return h
}

// createTestClient builds a client without a real connection; tests
// read its send queue directly.
func createTestClient(h *Hub) *Client {
	return &Client{
		id:   clientIDCounter.Add(1),
		hub:  h,
		send: make(chan Message, 256),
	}
}

func attachClient(h *Hub, client *Client) {
	h.Register <- client
	time.Sleep(20 * time.Millisecond)
}

func testRecord(deviceID string) models.DeviceLocationRecord {
	return models.DeviceLocationRecord{
		DeviceID:    deviceID,
		DisplayName: "Alba",
		Longitude:   -122.3,
		Latitude:    47.6,
		ReceivedAt:  time.Now(),
	}
}

func TestNewHub(t *testing.T) {
	h := NewHub(nil)

	if h == nil {
		t.Fatal("NewHub returned nil")
	}
	if h.clients == nil || h.broadcast == nil || h.Register == nil || h.Unregister == nil {
		t.Error("hub channels not initialized")
	}
	if h.ClientCount() != 0 {
		t.Errorf("ClientCount = %d, want 0", h.ClientCount())
	}
}

func TestHub_AttachDetach(t *testing.T) {
	h := setupHub(t, nil)
	client := createTestClient(h)

	attachClient(h, client)
	if h.ClientCount() != 1 {
		t.Fatalf("ClientCount = %d after attach, want 1", h.ClientCount())
	}

	h.Unregister <- client
	time.Sleep(20 * time.Millisecond)
	if h.ClientCount() != 0 {
		t.Errorf("ClientCount = %d after detach, want 0", h.ClientCount())
	}
	if _, open := <-client.send; open {
		t.Error("send queue still open after detach")
	}
}

func TestHub_SnapshotOnAttach(t *testing.T) {
	h := setupHub(t, func() Snapshot {
		return Snapshot{
			Locations: []models.DeviceLocationRecord{testRecord("watch-1")},
			Alerts:    []models.AlertEvent{{ID: "a1", Type: models.AlertTypeSOS}},
		}
	})
	client := createTestClient(h)
	attachClient(h, client)

	select {
	case msg := <-client.send:
		if msg.Type != MessageTypeSnapshot {
			t.Fatalf("first message type = %q, want %q", msg.Type, MessageTypeSnapshot)
		}
		snap, ok := msg.Data.(Snapshot)
		if !ok {
			t.Fatalf("snapshot data has type %T", msg.Data)
		}
		if len(snap.Locations) != 1 || snap.Locations[0].DeviceID != "watch-1" {
			t.Errorf("snapshot locations = %+v", snap.Locations)
		}
		if len(snap.Alerts) != 1 {
			t.Errorf("snapshot alerts = %+v", snap.Alerts)
		}
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered on attach")
	}
}

func TestHub_BroadcastLocation(t *testing.T) {
	h := setupHub(t, nil)
	first := createTestClient(h)
	second := createTestClient(h)
	attachClient(h, first)
	attachClient(h, second)

	h.BroadcastLocation(testRecord("watch-1"))

	for _, client := range []*Client{first, second} {
		select {
		case msg := <-client.send:
			if msg.Type != MessageTypeLocation {
				t.Errorf("message type = %q, want %q", msg.Type, MessageTypeLocation)
			}
			rec, ok := msg.Data.(models.DeviceLocationRecord)
			if !ok {
				t.Fatalf("location data has type %T", msg.Data)
			}
			if rec.DeviceID != "watch-1" {
				t.Errorf("record DeviceID = %q, want %q", rec.DeviceID, "watch-1")
			}
		case <-time.After(time.Second):
			t.Fatal("client never received the broadcast")
		}
	}
}

func TestHub_BroadcastAlert(t *testing.T) {
	h := setupHub(t, nil)
	client := createTestClient(h)
	attachClient(h, client)

	h.BroadcastAlert(models.AlertEvent{ID: "a1", Type: models.AlertTypeGeoFence, DeviceID: "watch-1"})

	select {
	case msg := <-client.send:
		if msg.Type != MessageTypeAlert {
			t.Errorf("message type = %q, want %q", msg.Type, MessageTypeAlert)
		}
	case <-time.After(time.Second):
		t.Fatal("client never received the alert")
	}
}

func TestHub_BroadcastWithoutClients(t *testing.T) {
	h := setupHub(t, nil)
	// Must not block or panic with nobody attached.
	h.BroadcastLocation(testRecord("watch-1"))
	h.BroadcastAlert(models.AlertEvent{ID: "a1"})
	time.Sleep(10 * time.Millisecond)
}

func TestHub_StalledClientDropped(t *testing.T) {
	h := setupHub(t, nil)
	stalled := createTestClient(h)
	stalled.send = make(chan Message) // unbuffered, nobody reading
	healthy := createTestClient(h)
	attachClient(h, stalled)
	attachClient(h, healthy)

	h.BroadcastLocation(testRecord("watch-1"))

	select {
	case <-healthy.send:
	case <-time.After(time.Second):
		t.Fatal("healthy client never received the broadcast")
	}

	if got := h.ClientCount(); got != 1 {
		t.Errorf("ClientCount = %d after fan-out, want 1 (stalled client dropped)", got)
	}
}

func TestHub_RunShutdownClosesClients(t *testing.T) {
	h := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()
	time.Sleep(10 * time.Millisecond)

	client := createTestClient(h)
	attachClient(h, client)

	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	if h.ClientCount() != 0 {
		t.Errorf("ClientCount = %d after shutdown, want 0", h.ClientCount())
	}
	// Drain any pending message, then expect the queue closed.
	for {
		if _, open := <-client.send; !open {
			return
		}
	}
}

func TestMarshalMessage(t *testing.T) {
	raw, err := MarshalMessage(Message{Type: MessageTypeLocation, Data: testRecord("watch-1")})
	if err != nil {
		t.Fatalf("MarshalMessage failed: %v", err)
	}
	if len(raw) == 0 {
		t.Error("MarshalMessage produced no output")
	}
}
