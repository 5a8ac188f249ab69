// Wardmap - Guardian/Ward Real-Time Location Monitoring
// Copyright 2026 Wardmap Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardmap/wardmap

// Package hub fans session events out to map UI clients over websocket.
// The session orchestrator pushes each accepted location record and
// alert here; connected browsers render them without polling.
package hub

import (
	"context"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/wardmap/wardmap/internal/logging"
	"github.com/wardmap/wardmap/internal/metrics"
	"github.com/wardmap/wardmap/internal/models"
)

// Message types pushed to map clients.
const (
	MessageTypeLocation = "location"
	MessageTypeAlert    = "alert"
	MessageTypeSnapshot = "snapshot"
	MessageTypePing     = "ping"
	MessageTypePong     = "pong"
)

// Message is one frame on the UI websocket.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Snapshot is sent to a client immediately after it attaches, so the
// map paints the current state without waiting for the next update.
type Snapshot struct {
	Locations []models.DeviceLocationRecord `json:"locations"`
	Alerts    []models.AlertEvent           `json:"alerts"`
}

// SnapshotFunc supplies the current state for newly attached clients.
type SnapshotFunc func() Snapshot

// Hub maintains the set of attached map clients and broadcasts session
// events to them. It implements session.Broadcaster.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	snapshot   SnapshotFunc
	mu         sync.RWMutex
}

// NewHub creates a hub. snapshot may be nil, in which case new clients
// start from the next live update.
func NewHub(snapshot SnapshotFunc) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		snapshot:   snapshot,
	}
}

// Run drives the hub until the context is canceled, then closes every
// attached client and returns ctx.Err(). Designed for suture
// supervision.
//
// Lifecycle events are drained before broadcasts so the client set is
// consistent when a message is fanned out; Go's select picks randomly
// between ready channels otherwise.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.attach(client)
			continue
		case client := <-h.Unregister:
			h.detach(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.attach(client)
		case client := <-h.Unregister:
			h.detach(client)
		case message := <-h.broadcast:
			h.fanOut(message)
		}
	}
}

func (h *Hub) attach(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	metrics.HubClients.Set(float64(total))
	logging.Info().Int("total_clients", total).Msg("map client attached")

	if h.snapshot != nil {
		select {
		case client.send <- Message{Type: MessageTypeSnapshot, Data: h.snapshot()}:
		default:
			logging.Warn().Msg("client queue full, skipping snapshot")
		}
	}
}

func (h *Hub) detach(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.HubClients.Set(float64(total))
	logging.Info().Int("total_clients", total).Msg("map client detached")
}

// fanOut delivers one message to every attached client in attach-ID
// order. A client whose queue is full is dropped; its write pump has
// stalled and keeping it would block fresher updates.
func (h *Hub) fanOut(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	var stalled []*Client
	for _, client := range clients {
		select {
		case client.send <- message:
		default:
			stalled = append(stalled, client)
		}
	}

	for _, client := range stalled {
		close(client.send)
		delete(h.clients, client)
		logging.Warn().Msg("dropping stalled map client")
	}
	metrics.HubClients.Set(float64(len(h.clients)))
}

func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()
	count := len(h.clients)
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.mu.Unlock()

	metrics.HubClients.Set(0)
	logging.Info().
		Str("component", "map-hub").
		Int("clients_closed", count).
		AnErr("cause", ctx.Err()).
		Msg("map hub stopped")
}

// BroadcastLocation pushes one accepted location record to all clients.
// Implements session.Broadcaster.
func (h *Hub) BroadcastLocation(record models.DeviceLocationRecord) {
	h.enqueue(Message{Type: MessageTypeLocation, Data: record})
}

// BroadcastAlert pushes one alert to all clients. Implements
// session.Broadcaster.
func (h *Hub) BroadcastAlert(event models.AlertEvent) {
	h.enqueue(Message{Type: MessageTypeAlert, Data: event})
}

func (h *Hub) enqueue(message Message) {
	select {
	case h.broadcast <- message:
	default:
		logging.Warn().Str("message_type", message.Type).Msg("broadcast queue full, dropping message")
	}
}

// ClientCount returns the number of attached clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// MarshalMessage converts a message to JSON.
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
