// Wardmap - Guardian/Ward Real-Time Location Monitoring
// Copyright 2026 Wardmap Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardmap/wardmap

package codec

import (
	"testing"
	"time"
)

func decodeOK(t *testing.T, raw string) Event {
	t.Helper()
	ev, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode(%q) returned error: %v", raw, err)
	}
	return ev
}

func TestDecode_HeartbeatRoundTrip(t *testing.T) {
	ev, err := Decode(EncodeHeartbeat())
	if err != nil {
		t.Fatalf("decoding our own heartbeat failed: %v", err)
	}
	if ev.Kind != KindHeartbeatAck {
		t.Errorf("expected heartbeat-ack, got %v", ev.Kind)
	}
}

func TestDecode_LegacyJSONHeartbeat(t *testing.T) {
	ev := decodeOK(t, `{"type":"heartbeat"}`)
	if ev.Kind != KindHeartbeatAck {
		t.Errorf("expected heartbeat-ack, got %v", ev.Kind)
	}
}

func TestDecode_ImplicitLocationUpdate(t *testing.T) {
	ev := decodeOK(t, `{"deviceId":"D1","longitude":116.397,"latitude":39.909,"accuracy":12}`)
	if ev.Kind != KindLocationUpdate {
		t.Fatalf("expected location-update, got %v", ev.Kind)
	}
	loc := ev.Location
	if loc.DeviceID != "D1" {
		t.Errorf("deviceId = %q", loc.DeviceID)
	}
	if loc.Longitude != 116.397 || loc.Latitude != 39.909 {
		t.Errorf("coordinates = (%v, %v)", loc.Longitude, loc.Latitude)
	}
	if loc.Accuracy != 12 {
		t.Errorf("accuracy = %v", loc.Accuracy)
	}
}

func TestDecode_StringCoordinates(t *testing.T) {
	// Some backend versions emit coordinates as strings.
	ev := decodeOK(t, `{"deviceId":"D2","longitude":"116.4","latitude":"39.9"}`)
	if ev.Kind != KindLocationUpdate {
		t.Fatalf("expected location-update, got %v", ev.Kind)
	}
	if ev.Location.Longitude != 116.4 || ev.Location.Latitude != 39.9 {
		t.Errorf("coordinates = (%v, %v)", ev.Location.Longitude, ev.Location.Latitude)
	}
}

func TestDecode_LocationTimestamps(t *testing.T) {
	ev := decodeOK(t, `{"deviceId":"D1","longitude":1,"latitude":2,"timestamp":"2024-01-01T00:00:00Z"}`)
	want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if !ev.Location.SourceTimestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", ev.Location.SourceTimestamp, want)
	}

	// Legacy createTime field.
	ev = decodeOK(t, `{"deviceId":"D1","longitude":1,"latitude":2,"createTime":"2024-01-01 08:30:00"}`)
	if ev.Location.SourceTimestamp.IsZero() {
		t.Error("legacy createTime should populate the source timestamp")
	}
}

func TestDecode_Alert(t *testing.T) {
	raw := `{"type":"ALERT","data":{"type":"GEO_FENCE","title":"围栏报警","message":"device left the fence","fenceName":"home","triggeredAt":"2024-01-01T00:00:00Z"}}`
	ev := decodeOK(t, raw)
	if ev.Kind != KindAlert {
		t.Fatalf("expected alert, got %v", ev.Kind)
	}
	alert := ev.Alert
	if alert.Type != "GEO_FENCE" {
		t.Errorf("type = %q", alert.Type)
	}
	if alert.Title != "围栏报警" {
		t.Errorf("title = %q", alert.Title)
	}
	if alert.FenceName != "home" {
		t.Errorf("fenceName = %q", alert.FenceName)
	}
	if alert.TriggeredAt.IsZero() {
		t.Error("triggeredAt not parsed")
	}
}

func TestDecode_AlertWithoutData(t *testing.T) {
	ev := decodeOK(t, `{"type":"ALERT"}`)
	if ev.Kind != KindAlert {
		t.Fatalf("expected alert, got %v", ev.Kind)
	}
	if ev.Alert == nil {
		t.Fatal("alert payload must not be nil")
	}
}

func TestDecode_MalformedJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"truncated object", `{not json`},
		{"plain text", `hello there`},
		{"non-numeric coordinate strings", `{"deviceId":"D1","longitude":"east","latitude":"north"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode([]byte(tt.raw)); err == nil {
				t.Fatal("expected decode error for malformed frame")
			}
		})
	}
}

func TestDecode_Unrecognized(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"unknown type", `{"type":"SOMETHING_NEW","data":{}}`},
		{"missing coordinates", `{"deviceId":"D1"}`},
		{"missing device id", `{"longitude":1,"latitude":2}`},
		{"empty object", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := decodeOK(t, tt.raw)
			if ev.Kind != KindUnrecognized {
				t.Errorf("expected unrecognized, got %v", ev.Kind)
			}
		})
	}
}

func TestEventKind_String(t *testing.T) {
	tests := []struct {
		kind EventKind
		want string
	}{
		{KindHeartbeatAck, "heartbeat-ack"},
		{KindLocationUpdate, "location-update"},
		{KindAlert, "alert"},
		{KindUnrecognized, "unrecognized"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("String(%d) = %q, want %q", tt.kind, got, tt.want)
		}
	}
}
