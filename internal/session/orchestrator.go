// Wardmap - Guardian/Ward Real-Time Location Monitoring
// Copyright 2026 Wardmap Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardmap/wardmap

// Package session binds a transport channel to one subscription and
// routes classified frames into the location store and alert feed. It
// owns the channel handle: selection changes tear the old channel down
// with manual-close semantics before a new one is dialed, so two
// sockets never route into the store for the same subscriber.
package session

import (
	"sync"
	"time"

	"github.com/wardmap/wardmap/internal/alerts"
	"github.com/wardmap/wardmap/internal/codec"
	"github.com/wardmap/wardmap/internal/geo"
	"github.com/wardmap/wardmap/internal/logging"
	"github.com/wardmap/wardmap/internal/metrics"
	"github.com/wardmap/wardmap/internal/models"
	"github.com/wardmap/wardmap/internal/smoothing"
	"github.com/wardmap/wardmap/internal/store"
	"github.com/wardmap/wardmap/internal/transport"
)

// Phase is the orchestrator's lifecycle phase for one subscription
// selection.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseConnecting Phase = "connecting"
	PhaseActive     Phase = "active"
	PhaseSwitching  Phase = "switching"
)

// Broadcaster pushes fresh records and alerts to the map rendering
// surface. Implemented by the UI fan-out hub; a nil Broadcaster is
// valid and simply skips fan-out.
type Broadcaster interface {
	BroadcastLocation(record models.DeviceLocationRecord)
	BroadcastAlert(event models.AlertEvent)
}

// Config tunes the orchestrator.
type Config struct {
	// StreamBaseURL is the backend websocket endpoint without query
	// parameters, e.g. "ws://localhost:8001/api/gps-websocket".
	StreamBaseURL string
	// SubscriberParam and DeviceParam are the query parameter names
	// for the subscription scope. They vary across backend versions.
	SubscriberParam string
	DeviceParam     string
	// HeartbeatInterval is passed to each transport channel.
	HeartbeatInterval time.Duration
	// ProcessNoise and MeasurementNoise tune the position smoother.
	ProcessNoise     float64
	MeasurementNoise float64
}

// Status is a snapshot of the session for the connectivity indicator.
type Status struct {
	Phase        Phase               `json:"phase"`
	Subscription models.Subscription `json:"subscription"`
	Channel      string              `json:"channel"`
	Attempts     int                 `json:"attempts"`
	Degraded     bool                `json:"degraded"`
	LastError    string              `json:"lastError,omitempty"`
}

// Orchestrator routes one subscription's stream. Frame processing for a
// location update is atomic: datum conversion, smoothing and the store
// write all happen inside one handler invocation before any reader can
// observe the record.
type Orchestrator struct {
	cfg   Config
	store *store.DeviceLocationStore
	feed  *alerts.Feed
	cast  Broadcaster

	mu      sync.Mutex
	sub     models.Subscription
	channel *transport.Channel
	arena   *smoothing.Arena
	phase   Phase
	// epoch identifies the current subscription generation. Frames
	// delivered by a superseded channel carry an older epoch and are
	// dropped before they can touch the store.
	epoch    uint64
	degraded bool
	names    map[string]string
}

// New creates an orchestrator in the idle phase.
func New(cfg Config, locStore *store.DeviceLocationStore, feed *alerts.Feed, cast Broadcaster) *Orchestrator {
	if cfg.SubscriberParam == "" {
		cfg.SubscriberParam = "guardianId"
	}
	if cfg.DeviceParam == "" {
		cfg.DeviceParam = "deviceId"
	}
	return &Orchestrator{
		cfg:   cfg,
		store: locStore,
		feed:  feed,
		cast:  cast,
		arena: smoothing.NewArena(cfg.ProcessNoise, cfg.MeasurementNoise),
		phase: PhaseIdle,
		names: make(map[string]string),
	}
}

// SetDeviceNames installs the device directory's display names, used to
// label records as they are written.
func (o *Orchestrator) SetDeviceNames(devices []models.Device) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.names = make(map[string]string, len(devices))
	for _, d := range devices {
		o.names[d.ID] = d.DisplayName
	}
}

// Subscribe switches the session to a new subscription. The previous
// channel is closed with manual-close semantics (its timers cleared,
// its handlers detached) before the new one is opened, and per-device
// state for devices leaving the subscription set is evicted.
//
// Subscribing to the currently active subscription is a no-op.
func (o *Orchestrator) Subscribe(sub models.Subscription) error {
	o.mu.Lock()

	if sub == o.sub && o.channel != nil {
		o.mu.Unlock()
		return nil
	}

	prev := o.channel
	prevSub := o.sub
	o.channel = nil
	o.epoch++
	epoch := o.epoch
	o.sub = sub
	o.degraded = false

	if prev != nil {
		o.phase = PhaseSwitching
		metrics.SubscriptionSwitches.Inc()
	}

	o.evictDepartedLocked(prevSub, sub)

	url, err := sub.StreamURL(o.cfg.StreamBaseURL, o.cfg.SubscriberParam, o.cfg.DeviceParam)
	if err != nil {
		o.phase = PhaseIdle
		o.mu.Unlock()
		if prev != nil {
			prev.Close(1000, "subscription changed")
		}
		return err
	}

	ch := transport.NewChannel(transport.Config{
		HeartbeatInterval: o.cfg.HeartbeatInterval,
		HeartbeatPayload:  codec.EncodeHeartbeat(),
	}, transport.Callbacks{
		OnMessage: func(payload []byte) { o.handleFrame(epoch, payload) },
		OnStatus:  func(s transport.State) { o.handleStatus(epoch, s) },
		OnError: func(err error) {
			logging.Warn().Err(err).Msg("session transport error")
		},
		OnReconnect: func(attempt int) {
			logging.Info().Int("attempt", attempt).Msg("session reconnecting")
		},
		OnDegraded: func(attempt int) { o.handleDegraded(epoch, attempt) },
	})
	o.channel = ch

	if url == "" {
		o.phase = PhaseIdle
	} else {
		o.phase = PhaseConnecting
	}
	o.mu.Unlock()

	// Manual-close the superseded channel before dialing the new one;
	// its reconnect loop must not survive the switch.
	if prev != nil {
		prev.Close(1000, "subscription changed")
	}

	ch.Open(url)
	logging.Info().
		Str("subscriber", sub.SubscriberID).
		Str("device", sub.DeviceID).
		Str("url", url).
		Msg("session subscribed")
	return nil
}

// Shutdown closes the active channel. Mandatory teardown on unmount.
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	ch := o.channel
	o.channel = nil
	o.epoch++
	o.phase = PhaseIdle
	o.mu.Unlock()

	if ch != nil {
		ch.Close(1000, "session shutdown")
	}
	logging.Info().Msg("session shut down")
}

// Status returns a snapshot for the connectivity indicator.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()

	st := Status{
		Phase:        o.phase,
		Subscription: o.sub,
		Channel:      transport.StateClosed.String(),
		Degraded:     o.degraded,
	}
	if o.channel != nil {
		st.Channel = o.channel.Status().String()
		st.Attempts = o.channel.Attempts()
		if err := o.channel.LastError(); err != nil {
			st.LastError = err.Error()
		}
	}
	return st
}

// evictDepartedLocked drops filter and store state for devices leaving
// the subscription set. Caller holds o.mu.
func (o *Orchestrator) evictDepartedLocked(prev, next models.Subscription) {
	switch {
	case next.Zero() || prev.SubscriberID != next.SubscriberID:
		// Different subscriber (or none): nothing carries over.
		o.arena.Reset()
		o.store.Retain(map[string]struct{}{})
	case next.DeviceID != "":
		// Narrowed to one device: keep only its state.
		keep := map[string]struct{}{next.DeviceID: {}}
		o.arena.Retain(keep)
		o.store.Retain(keep)
	default:
		// Widened to all devices of the same subscriber: state for
		// devices still subscribed is preserved.
	}
	metrics.TrackedDevices.Set(float64(o.store.Len()))
}

// handleFrame classifies and routes one raw frame. Frames from a
// superseded epoch are dropped wholesale.
func (o *Orchestrator) handleFrame(epoch uint64, payload []byte) {
	event, err := codec.Decode(payload)
	if err != nil {
		metrics.DecodeFailures.Inc()
		logging.Warn().Err(err).Msg("dropping undecodable frame")
		return
	}
	metrics.FramesReceived.WithLabelValues(event.Kind.String()).Inc()

	o.mu.Lock()
	defer o.mu.Unlock()
	if epoch != o.epoch {
		logging.Debug().Str("kind", event.Kind.String()).Msg("dropping frame from superseded channel")
		return
	}

	switch event.Kind {
	case codec.KindLocationUpdate:
		o.acceptLocationLocked(event.Location)
	case codec.KindAlert:
		o.acceptAlertLocked(event.Alert)
	case codec.KindHeartbeatAck, codec.KindUnrecognized:
		// Liveness only, or noise. Never reaches store or feed.
	}
}

// acceptLocationLocked runs the full location pipeline: datum
// conversion, smoothing, store write, fan-out. Caller holds o.mu.
func (o *Orchestrator) acceptLocationLocked(sample *models.LocationSample) {
	if o.sub.DeviceID != "" && sample.DeviceID != o.sub.DeviceID {
		// The backend should scope the stream already; a sample for a
		// different device must not touch another device's state.
		logging.Debug().Str("device", sample.DeviceID).Msg("dropping sample outside subscription")
		return
	}

	lon, lat := geo.ToDisplayFrame(sample.Longitude, sample.Latitude)
	lon, lat = o.arena.Filter(sample.DeviceID, lon, lat)

	record := models.DeviceLocationRecord{
		DeviceID:    sample.DeviceID,
		DisplayName: o.names[sample.DeviceID],
		Longitude:   lon,
		Latitude:    lat,
		Accuracy:    sample.Accuracy,
		ReceivedAt:  time.Now(),
	}
	o.store.Upsert(record)

	metrics.LocationsAccepted.Inc()
	metrics.TrackedDevices.Set(float64(o.store.Len()))

	if o.cast != nil {
		o.cast.BroadcastLocation(record)
	}
}

// acceptAlertLocked pushes one alert to the feed. Caller holds o.mu.
func (o *Orchestrator) acceptAlertLocked(event *models.AlertEvent) {
	o.feed.Push(*event)
	metrics.AlertsReceived.WithLabelValues(event.Type).Inc()

	logging.Info().
		Str("type", event.Type).
		Str("device", event.DeviceID).
		Str("fence", event.FenceName).
		Msg("alert received")

	if o.cast != nil {
		// Push the normalized copy the feed stored, not the raw event.
		if all := o.feed.All(); len(all) > 0 {
			o.cast.BroadcastAlert(all[0])
		}
	}
}

// handleStatus tracks the channel's lifecycle for the status snapshot.
func (o *Orchestrator) handleStatus(epoch uint64, state transport.State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if epoch != o.epoch {
		return
	}

	switch state {
	case transport.StateOpen:
		o.phase = PhaseActive
		o.degraded = false
	case transport.StateConnecting:
		if o.phase != PhaseSwitching {
			o.phase = PhaseConnecting
		}
	case transport.StateClosed:
		if !o.sub.Zero() && o.phase == PhaseActive {
			o.phase = PhaseConnecting
		}
	}
}

// handleDegraded records the exhausted-retry condition. The channel
// keeps retrying; this only drives the user-visible warning.
func (o *Orchestrator) handleDegraded(epoch uint64, attempt int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if epoch != o.epoch {
		return
	}
	if !o.degraded {
		logging.Warn().Int("attempt", attempt).Msg("connection degraded, check network or refresh")
	}
	o.degraded = true
}
