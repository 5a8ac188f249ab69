// Wardmap - Guardian/Ward Real-Time Location Monitoring
// Copyright 2026 Wardmap Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardmap/wardmap

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the chi router with the full wardmap route map.
//
// Route layout:
//
//	GET /api/v1/health          - liveness and session phase
//	GET /api/v1/locations       - latest position per tracked device
//	GET /api/v1/alerts          - alert feed, newest first
//	GET /api/v1/devices         - device directory for the subscription
//	GET /api/v1/geofences       - geofences for one device
//	GET /api/v1/session         - connectivity indicator snapshot
//	PUT /api/v1/session         - switch the monitored subscription
//	GET /api/v1/ws              - map UI websocket
//	GET /metrics                - Prometheus metrics
func NewRouter(h *Handler, mw *Middleware) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(mw.CORS())

	r.Route("/api/v1", func(r chi.Router) {
		// Health stays outside the rate limit so probes never 429.
		r.Get("/health", h.Health)

		// Websocket upgrades are long-lived, one per browser tab;
		// counting them against the per-IP budget would starve the
		// REST surface.
		r.Get("/ws", h.WebSocket)

		r.Group(func(r chi.Router) {
			r.Use(mw.RateLimit())

			r.Get("/locations", h.Locations)
			r.Get("/alerts", h.Alerts)
			r.Get("/devices", h.Devices)
			r.Get("/geofences", h.Geofences)
			r.Get("/session", h.SessionGet)
			r.Put("/session", h.SessionPut)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
