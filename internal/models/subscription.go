// Wardmap - Guardian/Ward Real-Time Location Monitoring
// Copyright 2026 Wardmap Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardmap/wardmap

package models

import (
	"net/url"
	"strings"
)

// Role identifies which side of the guardian/ward relationship a
// subscriber is on. The positioning backend exposes different device
// directory endpoints per role.
type Role string

const (
	RoleGuardian Role = "guardian"
	RoleWard     Role = "ward"
)

// Subscription identifies what a transport channel is scoped to: one
// subscriber watching either a single device or every device visible to
// them. The backend endpoint is parameterized by query identity, not
// renegotiable on an open socket, so any change to a Subscription
// requires tearing down the channel and dialing a new one.
//
// Subscription is a value type; compare with ==.
type Subscription struct {
	SubscriberID string
	Role         Role
	// DeviceID narrows the stream to a single device. Empty means all
	// devices visible to the subscriber.
	DeviceID string
}

// Zero reports whether no selection has been made yet. A zero
// Subscription maps to an empty stream URL, which leaves the transport
// channel idle.
func (s Subscription) Zero() bool {
	return s.SubscriberID == ""
}

// StreamURL builds the websocket endpoint URL for this subscription.
// baseURL is the endpoint without query parameters, e.g.
// "ws://host:8001/api/gps-websocket". The query parameter names vary
// across backend versions, so they are passed in rather than hardcoded.
func (s Subscription) StreamURL(baseURL, subscriberParam, deviceParam string) (string, error) {
	if s.Zero() || baseURL == "" {
		return "", nil
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(u.Scheme, "ws") {
		switch u.Scheme {
		case "https":
			u.Scheme = "wss"
		default:
			u.Scheme = "ws"
		}
	}
	q := u.Query()
	q.Set(subscriberParam, s.SubscriberID)
	if s.DeviceID != "" {
		q.Set(deviceParam, s.DeviceID)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
