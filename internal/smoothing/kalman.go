// Wardmap - Guardian/Ward Real-Time Location Monitoring
// Copyright 2026 Wardmap Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardmap/wardmap

// Package smoothing filters noisy GPS samples into stable position
// estimates. Raw samples displayed directly cause visible marker jitter;
// a per-device recursive filter trades a small amount of lag for
// smoothness at O(1) cost per update.
package smoothing

import "math"

// Default noise parameters. R dominates Q so the filter trusts its own
// estimate more than any single measurement.
const (
	DefaultProcessNoise     = 0.01
	DefaultMeasurementNoise = 1.0
)

// KalmanFilter is a one-dimensional recursive estimator for a single
// scalar series. Zero value is not usable; construct with NewKalmanFilter.
type KalmanFilter struct {
	q float64 // process noise
	r float64 // measurement noise
	p float64 // error covariance
	x float64 // current estimate

	primed bool
}

// NewKalmanFilter creates a filter with the given noise parameters.
// Non-positive parameters fall back to the defaults.
func NewKalmanFilter(processNoise, measurementNoise float64) *KalmanFilter {
	if processNoise <= 0 {
		processNoise = DefaultProcessNoise
	}
	if measurementNoise <= 0 {
		measurementNoise = DefaultMeasurementNoise
	}
	return &KalmanFilter{q: processNoise, r: measurementNoise}
}

// Filter consumes one measurement and returns the updated estimate.
//
// The first measurement primes the estimate directly so a device's
// marker appears at its true position instead of converging from zero.
// Non-finite measurements pass through without touching filter state.
func (f *KalmanFilter) Filter(measurement float64) float64 {
	if math.IsNaN(measurement) || math.IsInf(measurement, 0) {
		return measurement
	}

	if !f.primed {
		f.x = measurement
		f.primed = true
		return f.x
	}

	f.p += f.q
	k := f.p / (f.p + f.r)
	f.x += k * (measurement - f.x)
	f.p *= 1 - k
	return f.x
}

// Estimate returns the current estimate without consuming a measurement.
func (f *KalmanFilter) Estimate() float64 {
	return f.x
}
