// Wardmap - Guardian/Ward Real-Time Location Monitoring
// Copyright 2026 Wardmap Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardmap/wardmap

// Package codec serializes outbound control frames and classifies
// inbound stream frames into typed domain events.
//
// The positioning backend speaks a loose text protocol: heartbeats are a
// literal token, everything else is JSON whose shape is discriminated by
// an optional "type" field. Older backend versions omit the type field
// on location updates and are recognized by the presence of a device ID
// plus numeric coordinates. Anything that parses but matches no known
// shape classifies as Unrecognized rather than being guessed at; frames
// that do not parse at all return an error the caller logs and drops.
// Decode never panics, so one malformed frame cannot stop processing of
// the frames behind it.
package codec

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/wardmap/wardmap/internal/models"
)

// HeartbeatToken is the literal text frame exchanged as a liveness
// signal. The backend sends the same token back as an acknowledgment.
const HeartbeatToken = "heartbeat"

// EventKind tags the variant carried by an Event.
type EventKind int

const (
	// KindHeartbeatAck is a liveness signal; carries no payload and
	// must never reach the location store or alert feed.
	KindHeartbeatAck EventKind = iota
	// KindLocationUpdate carries a LocationSample.
	KindLocationUpdate
	// KindAlert carries an AlertEvent.
	KindAlert
	// KindUnrecognized is valid JSON matching no known shape.
	KindUnrecognized
)

// String returns the kind's wire-level name, used in logs and metrics.
func (k EventKind) String() string {
	switch k {
	case KindHeartbeatAck:
		return "heartbeat-ack"
	case KindLocationUpdate:
		return "location-update"
	case KindAlert:
		return "alert"
	default:
		return "unrecognized"
	}
}

// Event is one classified inbound frame. Exactly the field matching
// Kind is populated.
type Event struct {
	Kind     EventKind
	Location *models.LocationSample
	Alert    *models.AlertEvent
}

// frameEnvelope covers every JSON shape the backend emits. Numeric
// fields use json.Number so string-encoded coordinates from older
// backend versions still parse.
type frameEnvelope struct {
	Type      string      `json:"type"`
	DeviceID  string      `json:"deviceId"`
	Longitude json.Number `json:"longitude"`
	Latitude  json.Number `json:"latitude"`
	Accuracy  json.Number `json:"accuracy"`
	Timestamp string      `json:"timestamp"`
	// CreateTime is the legacy name for the sample timestamp.
	CreateTime string         `json:"createTime"`
	Data       *alertEnvelope `json:"data"`
}

type alertEnvelope struct {
	Type        string      `json:"type"`
	Level       string      `json:"level"`
	Title       string      `json:"title"`
	Message     string      `json:"message"`
	DeviceID    string      `json:"deviceId"`
	FenceName   string      `json:"fenceName"`
	Longitude   json.Number `json:"longitude"`
	Latitude    json.Number `json:"latitude"`
	TriggeredAt string      `json:"triggeredAt"`
}

// EncodeHeartbeat returns the outbound heartbeat frame.
func EncodeHeartbeat() []byte {
	return []byte(HeartbeatToken)
}

// Decode classifies one raw inbound frame.
//
// A returned error means the frame was undecodable and must be dropped;
// the channel stays open and later frames are unaffected.
func Decode(raw []byte) (Event, error) {
	if string(raw) == HeartbeatToken {
		return Event{Kind: KindHeartbeatAck}, nil
	}

	var env frameEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Event{}, fmt.Errorf("decode frame: %w", err)
	}

	switch env.Type {
	case HeartbeatToken:
		// Older web clients echoed heartbeats as {"type":"heartbeat"}.
		return Event{Kind: KindHeartbeatAck}, nil
	case "ALERT":
		return decodeAlert(&env), nil
	case "":
		if loc, ok := decodeLocation(&env); ok {
			return Event{Kind: KindLocationUpdate, Location: loc}, nil
		}
		return Event{Kind: KindUnrecognized}, nil
	default:
		return Event{Kind: KindUnrecognized}, nil
	}
}

// decodeLocation extracts an implicit location update. Both coordinates
// must be present and numeric; device ID must be non-empty.
func decodeLocation(env *frameEnvelope) (*models.LocationSample, bool) {
	if env.DeviceID == "" {
		return nil, false
	}
	lon, err := env.Longitude.Float64()
	if err != nil {
		return nil, false
	}
	lat, err := env.Latitude.Float64()
	if err != nil {
		return nil, false
	}

	sample := &models.LocationSample{
		DeviceID:  env.DeviceID,
		Longitude: lon,
		Latitude:  lat,
	}
	if acc, err := env.Accuracy.Float64(); err == nil {
		sample.Accuracy = acc
	}
	if ts := firstNonEmpty(env.Timestamp, env.CreateTime); ts != "" {
		if parsed, err := parseTimestamp(ts); err == nil {
			sample.SourceTimestamp = parsed
		}
	}
	return sample, true
}

// decodeAlert builds an AlertEvent from the nested alert envelope.
// Missing optional fields stay zero-valued; consumers render them as
// "unknown". An ALERT frame with no data object still classifies as an
// alert so the feed can surface the malformed report.
func decodeAlert(env *frameEnvelope) Event {
	alert := &models.AlertEvent{}
	if d := env.Data; d != nil {
		alert.Type = d.Type
		alert.Level = d.Level
		alert.Title = d.Title
		alert.Message = d.Message
		alert.DeviceID = d.DeviceID
		alert.FenceName = d.FenceName
		if lon, err := d.Longitude.Float64(); err == nil {
			alert.Longitude = lon
		}
		if lat, err := d.Latitude.Float64(); err == nil {
			alert.Latitude = lat
		}
		if d.TriggeredAt != "" {
			if ts, err := parseTimestamp(d.TriggeredAt); err == nil {
				alert.TriggeredAt = ts
			}
		}
	}
	if alert.DeviceID == "" {
		alert.DeviceID = env.DeviceID
	}
	return Event{Kind: KindAlert, Alert: alert}
}

// timestampLayouts lists the formats observed across backend versions.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
}

func parseTimestamp(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
