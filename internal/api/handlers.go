// Wardmap - Guardian/Ward Real-Time Location Monitoring
// Copyright 2026 Wardmap Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardmap/wardmap

// Package api is wardmap's HTTP surface: the read-only monitoring
// endpoints, the session selection endpoint, the map UI websocket and
// Prometheus metrics, all routed through chi.
package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/wardmap/wardmap/internal/alerts"
	"github.com/wardmap/wardmap/internal/hub"
	"github.com/wardmap/wardmap/internal/logging"
	"github.com/wardmap/wardmap/internal/models"
	"github.com/wardmap/wardmap/internal/session"
	"github.com/wardmap/wardmap/internal/store"
)

// Directory is the REST directory surface the handlers need. Nil when
// no directory backend is configured.
type Directory interface {
	Devices(ctx context.Context, sub models.Subscription) ([]models.Device, error)
	Geofences(ctx context.Context, deviceID string) ([]models.Geofence, error)
}

// Handler carries the dependencies for all HTTP endpoints.
type Handler struct {
	orch      *session.Orchestrator
	locStore  *store.DeviceLocationStore
	feed      *alerts.Feed
	mapHub    *hub.Hub
	directory Directory
	origins   []string
}

// NewHandler wires the HTTP handlers. directory may be nil, and mapHub
// may be nil when the websocket surface is disabled.
func NewHandler(orch *session.Orchestrator, locStore *store.DeviceLocationStore, feed *alerts.Feed, mapHub *hub.Hub, directory Directory, corsOrigins []string) *Handler {
	return &Handler{
		orch:      orch,
		locStore:  locStore,
		feed:      feed,
		mapHub:    mapHub,
		directory: directory,
		origins:   corsOrigins,
	}
}

// Health reports process liveness and the session phase.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	st := h.orch.Status()
	respondData(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"session": st.Phase,
		"channel": st.Channel,
	}, 0)
}

// Locations returns the latest record for every tracked device.
func (h *Handler) Locations(w http.ResponseWriter, r *http.Request) {
	records := h.locStore.All()
	respondData(w, http.StatusOK, records, len(records))
}

// Alerts returns the alert feed, newest first.
func (h *Handler) Alerts(w http.ResponseWriter, r *http.Request) {
	events := h.feed.All()
	respondData(w, http.StatusOK, events, len(events))
}

// Devices proxies the device directory for the current subscription.
func (h *Handler) Devices(w http.ResponseWriter, r *http.Request) {
	if h.directory == nil {
		respondError(w, http.StatusServiceUnavailable, "DIRECTORY_DISABLED", "no directory backend configured", nil)
		return
	}
	sub := h.orch.Status().Subscription
	if sub.Zero() {
		respondData(w, http.StatusOK, []models.Device{}, 0)
		return
	}

	devices, err := h.directory.Devices(r.Context(), sub)
	if err != nil {
		respondError(w, http.StatusBadGateway, "DIRECTORY_ERROR", "device directory unavailable", err)
		return
	}
	respondData(w, http.StatusOK, devices, len(devices))
}

// Geofences proxies the geofence directory for one device.
func (h *Handler) Geofences(w http.ResponseWriter, r *http.Request) {
	if h.directory == nil {
		respondError(w, http.StatusServiceUnavailable, "DIRECTORY_DISABLED", "no directory backend configured", nil)
		return
	}
	deviceID := r.URL.Query().Get("deviceId")
	if deviceID == "" {
		respondError(w, http.StatusBadRequest, "MISSING_PARAMETER", "deviceId query parameter is required", nil)
		return
	}

	fences, err := h.directory.Geofences(r.Context(), deviceID)
	if err != nil {
		respondError(w, http.StatusBadGateway, "DIRECTORY_ERROR", "geofence directory unavailable", err)
		return
	}
	respondData(w, http.StatusOK, fences, len(fences))
}

// SessionGet returns the connectivity indicator snapshot.
func (h *Handler) SessionGet(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, h.orch.Status(), 0)
}

// sessionSelection is the PUT /session request body.
type sessionSelection struct {
	SubscriberID string `json:"subscriberId"`
	Role         string `json:"role"`
	DeviceID     string `json:"deviceId"`
}

// SessionPut switches the monitored subscription. An empty subscriber
// clears the selection and leaves the session idle.
func (h *Handler) SessionPut(w http.ResponseWriter, r *http.Request) {
	var sel sessionSelection
	if err := json.NewDecoder(r.Body).Decode(&sel); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "request body must be JSON", err)
		return
	}

	role := models.Role(sel.Role)
	switch role {
	case "", models.RoleGuardian, models.RoleWard:
	default:
		respondError(w, http.StatusBadRequest, "INVALID_ROLE", "role must be guardian or ward", nil)
		return
	}
	if sel.DeviceID != "" && sel.SubscriberID == "" {
		respondError(w, http.StatusBadRequest, "INVALID_SELECTION", "deviceId requires subscriberId", nil)
		return
	}

	sub := models.Subscription{
		SubscriberID: sel.SubscriberID,
		Role:         role,
		DeviceID:     sel.DeviceID,
	}
	if err := h.orch.Subscribe(sub); err != nil {
		respondError(w, http.StatusInternalServerError, "SUBSCRIBE_FAILED", "could not switch subscription", err)
		return
	}
	respondData(w, http.StatusOK, h.orch.Status(), 0)
}

// WebSocket upgrades the connection and attaches it to the map hub.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.mapHub == nil {
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "websocket service unavailable", nil)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin:      h.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error().Err(err).Msg("websocket upgrade error")
		return
	}

	client := hub.NewClient(h.mapHub, conn)
	h.mapHub.Register <- client
	client.Start()
}

// checkOrigin mirrors the CORS origin list for websocket upgrades.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.origins {
		if allowed == "*" {
			return true
		}
		if strings.EqualFold(allowed, origin) {
			return true
		}
	}
	// Same-origin requests are always allowed.
	if u, err := url.Parse(origin); err == nil && u.Host == r.Host {
		return true
	}
	return false
}
