// Wardmap - Guardian/Ward Real-Time Location Monitoring
// Copyright 2026 Wardmap Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardmap/wardmap

// Package geo converts device coordinates from the global WGS-84 datum
// to GCJ-02, the shifted datum used by the regional basemap provider.
// Raw GPS points drawn directly on GCJ-02 tiles land tens to hundreds of
// meters off the roads they were captured on; the published offset
// algorithm corrects that.
//
// All functions are pure. Conversion failures (non-finite or
// out-of-range input, or points outside the datum's coverage area) pass
// the original coordinates through unchanged so one bad sample cannot
// fail the whole update pipeline.
package geo

import "math"

// Krasovsky 1940 ellipsoid parameters used by the GCJ-02 obfuscation.
const (
	semiMajorAxis     = 6378245.0
	eccentricitySq    = 0.00669342162296594323
	coverageMinLon    = 72.004
	coverageMaxLon    = 137.8347
	coverageMinLat    = 0.8293
	coverageMaxLat    = 55.8271
)

// ToDisplayFrame converts a WGS-84 coordinate pair to the GCJ-02
// display datum. Points outside the datum's coverage area, or with
// invalid coordinates, are returned unchanged.
func ToDisplayFrame(lon, lat float64) (float64, float64) {
	if !valid(lon, lat) || outsideCoverage(lon, lat) {
		return lon, lat
	}

	dLat := transformLat(lon-105.0, lat-35.0)
	dLon := transformLon(lon-105.0, lat-35.0)

	radLat := lat / 180.0 * math.Pi
	magic := math.Sin(radLat)
	magic = 1 - eccentricitySq*magic*magic
	sqrtMagic := math.Sqrt(magic)

	dLat = (dLat * 180.0) / ((semiMajorAxis * (1 - eccentricitySq)) / (magic * sqrtMagic) * math.Pi)
	dLon = (dLon * 180.0) / (semiMajorAxis / sqrtMagic * math.Cos(radLat) * math.Pi)

	return lon + dLon, lat + dLat
}

// valid reports whether both coordinates are finite and inside the
// geodetic range.
func valid(lon, lat float64) bool {
	if math.IsNaN(lon) || math.IsInf(lon, 0) || math.IsNaN(lat) || math.IsInf(lat, 0) {
		return false
	}
	return lon >= -180 && lon <= 180 && lat >= -90 && lat <= 90
}

// outsideCoverage reports whether the point falls outside the region the
// GCJ-02 obfuscation applies to. The basemap provider serves unshifted
// WGS-84 tiles elsewhere, so those points must not be offset.
func outsideCoverage(lon, lat float64) bool {
	return lon < coverageMinLon || lon > coverageMaxLon ||
		lat < coverageMinLat || lat > coverageMaxLat
}

func transformLat(x, y float64) float64 {
	ret := -100.0 + 2.0*x + 3.0*y + 0.2*y*y + 0.1*x*y + 0.2*math.Sqrt(math.Abs(x))
	ret += (20.0*math.Sin(6.0*x*math.Pi) + 20.0*math.Sin(2.0*x*math.Pi)) * 2.0 / 3.0
	ret += (20.0*math.Sin(y*math.Pi) + 40.0*math.Sin(y/3.0*math.Pi)) * 2.0 / 3.0
	ret += (160.0*math.Sin(y/12.0*math.Pi) + 320.0*math.Sin(y*math.Pi/30.0)) * 2.0 / 3.0
	return ret
}

func transformLon(x, y float64) float64 {
	ret := 300.0 + x + 2.0*y + 0.1*x*x + 0.1*x*y + 0.1*math.Sqrt(math.Abs(x))
	ret += (20.0*math.Sin(6.0*x*math.Pi) + 20.0*math.Sin(2.0*x*math.Pi)) * 2.0 / 3.0
	ret += (20.0*math.Sin(x*math.Pi) + 40.0*math.Sin(x/3.0*math.Pi)) * 2.0 / 3.0
	ret += (150.0*math.Sin(x/12.0*math.Pi) + 300.0*math.Sin(x/30.0*math.Pi)) * 2.0 / 3.0
	return ret
}
