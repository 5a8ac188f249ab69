// Wardmap - Guardian/Ward Real-Time Location Monitoring
// Copyright 2026 Wardmap Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardmap/wardmap

package models

import "time"

// LocationSample is one raw position report decoded from a stream
// frame. Coordinates are in the WGS-84 datum as reported by the device;
// they have not been smoothed or converted for display. Samples are
// never mutated, each new report replaces the previous one wholesale.
type LocationSample struct {
	DeviceID  string  `json:"deviceId"`
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	// Accuracy is the reported horizontal error radius in meters.
	// Zero when the device did not report one.
	Accuracy float64 `json:"accuracy,omitempty"`
	// SourceTimestamp is the device-side capture time. Zero when the
	// frame carried none.
	SourceTimestamp time.Time `json:"timestamp,omitempty"`
}

// DeviceLocationRecord is the smoothed, display-datum projection of the
// latest LocationSample for a device. One record exists per device ID;
// an update replaces the whole record atomically (smoothing, datum
// conversion and store write happen together before any reader can
// observe it).
type DeviceLocationRecord struct {
	DeviceID    string  `json:"deviceId"`
	DisplayName string  `json:"displayName,omitempty"`
	Longitude   float64 `json:"longitude"`
	Latitude    float64 `json:"latitude"`
	Accuracy    float64 `json:"accuracy,omitempty"`
	// ReceivedAt is when this process accepted the sample, not the
	// device-side capture time.
	ReceivedAt time.Time `json:"receivedAt"`
}

// Device is one entry from the device directory: a GPS reporter bound
// to a ward and visible to the subscriber.
type Device struct {
	ID          string `json:"id"`
	DisplayName string `json:"name"`
}

// Geofence is a polygonal safe zone defined for a device. Wardmap only
// displays fences; crossing evaluation happens server-side.
type Geofence struct {
	ID       string     `json:"id"`
	DeviceID string     `json:"deviceId"`
	Name     string     `json:"name"`
	Vertices []GeoPoint `json:"vertices"`
}

// GeoPoint is one polygon vertex in the display datum.
type GeoPoint struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}
