// Wardmap - Guardian/Ward Real-Time Location Monitoring
// Copyright 2026 Wardmap Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardmap/wardmap

package smoothing

// deviceFilters holds the two independent scalar filters for one device.
// Longitude and latitude are smoothed as separate series; there is no
// cross-coupling between the axes or between devices.
type deviceFilters struct {
	lon *KalmanFilter
	lat *KalmanFilter
}

// Arena owns all per-device filter state, keyed by device ID. State is
// created lazily on the first sample for a device and must be evicted
// when the device leaves the active subscription set, otherwise a long
// session with many transient devices grows without bound.
//
// Arena is not safe for concurrent use; the session orchestrator is its
// only caller and runs updates on a single goroutine.
type Arena struct {
	processNoise     float64
	measurementNoise float64
	devices          map[string]*deviceFilters
}

// NewArena creates an empty filter arena. Non-positive noise parameters
// fall back to the package defaults.
func NewArena(processNoise, measurementNoise float64) *Arena {
	return &Arena{
		processNoise:     processNoise,
		measurementNoise: measurementNoise,
		devices:          make(map[string]*deviceFilters),
	}
}

// Filter smooths one coordinate pair for the given device, creating
// fresh filter state on the device's first sample.
func (a *Arena) Filter(deviceID string, lon, lat float64) (float64, float64) {
	f, ok := a.devices[deviceID]
	if !ok {
		f = &deviceFilters{
			lon: NewKalmanFilter(a.processNoise, a.measurementNoise),
			lat: NewKalmanFilter(a.processNoise, a.measurementNoise),
		}
		a.devices[deviceID] = f
	}
	return f.lon.Filter(lon), f.lat.Filter(lat)
}

// Evict discards the filter state for one device.
func (a *Arena) Evict(deviceID string) {
	delete(a.devices, deviceID)
}

// Retain drops state for every device not present in keep. Called on
// subscription changes so filters do not survive a device-set switch.
func (a *Arena) Retain(keep map[string]struct{}) {
	for id := range a.devices {
		if _, ok := keep[id]; !ok {
			delete(a.devices, id)
		}
	}
}

// Reset discards all per-device state.
func (a *Arena) Reset() {
	a.devices = make(map[string]*deviceFilters)
}

// Len returns the number of devices with live filter state.
func (a *Arena) Len() int {
	return len(a.devices)
}
