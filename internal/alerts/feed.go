// Wardmap - Guardian/Ward Real-Time Location Monitoring
// Copyright 2026 Wardmap Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardmap/wardmap

// Package alerts keeps the bounded, most-recent-first list of triggered
// geofence and device alerts surfaced to the user. The feed is
// independent from the location store: alerts bypass smoothing and land
// here directly.
package alerts

import (
	"sync"

	"github.com/google/uuid"

	"github.com/wardmap/wardmap/internal/models"
)

// DefaultCapacity matches the alert strip in the monitoring UI.
const DefaultCapacity = 6

// Feed is a fixed-capacity, most-recent-first alert list. Pushing past
// capacity evicts the oldest entry. Safe for concurrent use and never
// blocks.
type Feed struct {
	mu       sync.RWMutex
	capacity int
	events   []models.AlertEvent
}

// NewFeed creates a feed with the given capacity. Non-positive values
// fall back to DefaultCapacity.
func NewFeed(capacity int) *Feed {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Feed{
		capacity: capacity,
		events:   make([]models.AlertEvent, 0, capacity),
	}
}

// Push prepends an alert, evicting the oldest entry once the feed is
// full. Missing fields are normalized for display rather than rejected;
// an ID is assigned when the frame carried none.
func (f *Feed) Push(event models.AlertEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Title == "" {
		event.Title = models.TypeText(event.Type)
	}
	if event.Message == "" {
		event.Message = "unknown"
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.events = append([]models.AlertEvent{event}, f.events...)
	if len(f.events) > f.capacity {
		f.events = f.events[:f.capacity]
	}
}

// All returns a snapshot of the feed, most recent first.
func (f *Feed) All() []models.AlertEvent {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]models.AlertEvent, len(f.events))
	copy(out, f.events)
	return out
}

// Clear empties the feed.
func (f *Feed) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = f.events[:0]
}

// Len returns the number of alerts currently held.
func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.events)
}
