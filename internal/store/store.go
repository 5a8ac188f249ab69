// Wardmap - Guardian/Ward Real-Time Location Monitoring
// Copyright 2026 Wardmap Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardmap/wardmap

// Package store holds the authoritative in-memory mapping of device ID
// to the latest smoothed, display-datum location record. The session
// orchestrator is the only writer; HTTP handlers and the UI fan-out hub
// read snapshots.
package store

import (
	"sort"
	"sync"

	"github.com/wardmap/wardmap/internal/models"
)

// DeviceLocationStore maps device ID to its latest location record.
// Upsert replaces the prior record wholesale so a reader can never see a
// record mixing stale and fresh fields. Safe for concurrent use.
type DeviceLocationStore struct {
	mu      sync.RWMutex
	records map[string]models.DeviceLocationRecord
}

// New creates an empty store.
func New() *DeviceLocationStore {
	return &DeviceLocationStore{
		records: make(map[string]models.DeviceLocationRecord),
	}
}

// Upsert replaces the record for record.DeviceID.
func (s *DeviceLocationStore) Upsert(record models.DeviceLocationRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.DeviceID] = record
}

// Get returns the record for a device, and whether one exists.
func (s *DeviceLocationStore) Get(deviceID string) (models.DeviceLocationRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[deviceID]
	return rec, ok
}

// All returns a snapshot of every record, sorted by device ID so
// consumers render a stable order. The returned slice is the caller's
// to keep; it does not alias store state.
func (s *DeviceLocationStore) All() []models.DeviceLocationRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.DeviceLocationRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DeviceID < out[j].DeviceID
	})
	return out
}

// Remove deletes the record for a device. Removing an absent device is
// a no-op.
func (s *DeviceLocationStore) Remove(deviceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, deviceID)
}

// Retain drops every record whose device ID is not in keep. Used on
// subscription changes alongside filter-state eviction.
func (s *DeviceLocationStore) Retain(keep map[string]struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.records {
		if _, ok := keep[id]; !ok {
			delete(s.records, id)
		}
	}
}

// Len returns the number of tracked devices.
func (s *DeviceLocationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
