// Wardmap - Guardian/Ward Real-Time Location Monitoring
// Copyright 2026 Wardmap Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardmap/wardmap

package directory

import (
	"context"
	"time"

	"github.com/wardmap/wardmap/internal/logging"
	"github.com/wardmap/wardmap/internal/models"
)

// DeviceLister is the directory surface the refresher needs; satisfied
// by *Client.
type DeviceLister interface {
	Devices(ctx context.Context, sub models.Subscription) ([]models.Device, error)
}

// NameSink receives refreshed device display names; satisfied by the
// session orchestrator.
type NameSink interface {
	SetDeviceNames(devices []models.Device)
}

// Refresher periodically reloads the device directory for the current
// subscription so location records carry fresh display names. A failed
// refresh keeps the previous names; the next tick tries again.
type Refresher struct {
	lister   DeviceLister
	sink     NameSink
	current  func() models.Subscription
	interval time.Duration
}

// NewRefresher builds a refresher. current returns the subscription to
// resolve names for on each tick.
func NewRefresher(lister DeviceLister, sink NameSink, current func() models.Subscription, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Refresher{
		lister:   lister,
		sink:     sink,
		current:  current,
		interval: interval,
	}
}

// Serve implements suture.Service: refresh immediately, then on every
// tick until the context is canceled.
func (r *Refresher) Serve(ctx context.Context) error {
	r.refresh(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *Refresher) refresh(ctx context.Context) {
	sub := r.current()
	if sub.Zero() {
		return
	}

	devices, err := r.lister.Devices(ctx, sub)
	if err != nil {
		logging.Warn().Err(err).Str("subscriber", sub.SubscriberID).Msg("device directory refresh failed")
		return
	}

	r.sink.SetDeviceNames(devices)
	logging.Debug().Int("devices", len(devices)).Msg("device directory refreshed")
}

// String implements fmt.Stringer for suture's log messages.
func (r *Refresher) String() string {
	return "directory-refresher"
}
