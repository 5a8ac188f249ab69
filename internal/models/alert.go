// Wardmap - Guardian/Ward Real-Time Location Monitoring
// Copyright 2026 Wardmap Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardmap/wardmap

package models

import "time"

// Alert types emitted by the positioning backend. Unknown types are
// displayed as-is rather than rejected.
const (
	AlertTypeGeoFence      = "GEO_FENCE"
	AlertTypeDeviceOffline = "DEVICE_OFFLINE"
	AlertTypeBatteryLow    = "BATTERY_LOW"
	AlertTypeSOS           = "SOS"
)

// Alert severity levels.
const (
	AlertLevelHigh   = "HIGH"
	AlertLevelMedium = "MEDIUM"
	AlertLevelLow    = "LOW"
)

// AlertEvent is one triggered alert, already evaluated server-side.
// Immutable once constructed. Fields the frame did not carry are left
// at their zero value and rendered as "unknown" by consumers.
type AlertEvent struct {
	// ID is assigned locally; backend frames carry no identifier.
	ID        string  `json:"id"`
	Type      string  `json:"type"`
	Level     string  `json:"level,omitempty"`
	Title     string  `json:"title"`
	Message   string  `json:"message"`
	DeviceID  string  `json:"deviceId,omitempty"`
	FenceName string  `json:"fenceName,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
	Latitude  float64 `json:"latitude,omitempty"`
	// TriggeredAt is the server-side evaluation time.
	TriggeredAt time.Time `json:"triggeredAt"`
}

// TypeText returns the human-readable label for an alert type, falling
// back to the raw type string for unrecognized values.
func TypeText(alertType string) string {
	switch alertType {
	case AlertTypeGeoFence:
		return "geofence breach"
	case AlertTypeDeviceOffline:
		return "device offline"
	case AlertTypeBatteryLow:
		return "battery low"
	case AlertTypeSOS:
		return "SOS"
	case "":
		return "unknown"
	default:
		return alertType
	}
}
