// Wardmap - Guardian/Ward Real-Time Location Monitoring
// Copyright 2026 Wardmap Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardmap/wardmap

// Package models defines the domain types shared across Wardmap packages.
//
// The types fall into three groups:
//
//   - Subscription identity: Subscription, Role
//   - Location pipeline: LocationSample, DeviceLocationRecord
//   - Alerting: AlertEvent and the alert type/level taxonomy
//
// All types are plain data. LocationSample and AlertEvent are immutable
// once constructed; DeviceLocationRecord is replaced wholesale on every
// update so readers never observe a half-written record.
package models
