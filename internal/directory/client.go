// Wardmap - Guardian/Ward Real-Time Location Monitoring
// Copyright 2026 Wardmap Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardmap/wardmap

// Package directory talks to the positioning backend's REST surface:
// the device directory (which devices a subscriber may watch) and the
// geofence directory (which fences are drawn around a device). Both
// are protected by a circuit breaker so a flapping backend cannot
// stall the monitor.
package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/wardmap/wardmap/internal/logging"
	"github.com/wardmap/wardmap/internal/metrics"
	"github.com/wardmap/wardmap/internal/models"
)

// Config tunes the directory client.
type Config struct {
	// BaseURL is the backend REST root, e.g. "http://localhost:8001".
	BaseURL string
	Timeout time.Duration
	// RetryCount is resty's transport-level retry budget per call,
	// separate from the circuit breaker.
	RetryCount int
}

// envelope is the backend's uniform response wrapper. Code zero means
// success; anything else carries a backend error message.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Client queries the device and geofence directories.
type Client struct {
	http *resty.Client
	cb   *gobreaker.CircuitBreaker[json.RawMessage]
	name string
}

// NewClient builds a directory client. The circuit breaker opens after
// a 60% failure rate across at least 10 requests and probes again after
// 30 seconds.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryCount < 0 {
		cfg.RetryCount = 0
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		SetHeader("Accept", "application/json")

	cbName := "directory-api"
	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0)

	cb := gobreaker.NewCircuitBreaker[json.RawMessage](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", stateToString(from)).
				Str("to", stateToString(to)).
				Msg("directory circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return &Client{http: httpClient, cb: cb, name: cbName}
}

// Devices lists the devices the subscriber may watch. Guardians and
// wards resolve through different backend endpoints.
func (c *Client) Devices(ctx context.Context, sub models.Subscription) ([]models.Device, error) {
	path := "/api/guardian/devices"
	param := "guardianId"
	if sub.Role == models.RoleWard {
		path = "/api/ward/devices"
		param = "wardId"
	}

	raw, err := c.get(ctx, "devices", path, map[string]string{param: sub.SubscriberID})
	if err != nil {
		return nil, err
	}

	var devices []models.Device
	if err := json.Unmarshal(raw, &devices); err != nil {
		return nil, fmt.Errorf("decoding device directory response: %w", err)
	}
	return devices, nil
}

// Geofences lists the fences configured around one device.
func (c *Client) Geofences(ctx context.Context, deviceID string) ([]models.Geofence, error) {
	raw, err := c.get(ctx, "geofences", "/api/geofence/list", map[string]string{"deviceId": deviceID})
	if err != nil {
		return nil, err
	}

	var fences []models.Geofence
	if err := json.Unmarshal(raw, &fences); err != nil {
		return nil, fmt.Errorf("decoding geofence directory response: %w", err)
	}
	return fences, nil
}

// get runs one directory request through the circuit breaker and
// unwraps the backend envelope.
func (c *Client) get(ctx context.Context, endpoint, path string, query map[string]string) (json.RawMessage, error) {
	raw, err := c.cb.Execute(func() (json.RawMessage, error) {
		var env envelope
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(query).
			SetResult(&env).
			Get(path)
		if err != nil {
			return nil, fmt.Errorf("calling %s: %w", path, err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("%s returned HTTP %d", path, resp.StatusCode())
		}
		if env.Code != 0 {
			return nil, fmt.Errorf("%s returned backend error %d: %s", path, env.Code, env.Message)
		}
		return env.Data, nil
	})

	if err != nil {
		outcome := "failure"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			outcome = "rejected"
		}
		metrics.DirectoryRequests.WithLabelValues(endpoint, outcome).Inc()
		logging.Warn().Err(err).Str("endpoint", endpoint).Msg("directory request failed")
		return nil, err
	}

	metrics.DirectoryRequests.WithLabelValues(endpoint, "success").Inc()
	return raw, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
