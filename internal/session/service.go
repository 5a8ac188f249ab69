// Wardmap - Guardian/Ward Real-Time Location Monitoring
// Copyright 2026 Wardmap Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardmap/wardmap

package session

import (
	"context"
	"fmt"

	"github.com/wardmap/wardmap/internal/models"
)

// Service wraps the orchestrator as a supervised service.
//
// It adapts the Subscribe/Shutdown lifecycle to suture's Serve pattern:
//  1. Subscribes to the configured initial selection
//  2. Waits for context cancellation
//  3. Shuts the channel down with manual-close semantics
type Service struct {
	orch    *Orchestrator
	initial models.Subscription
}

// NewService creates the supervised session wrapper. An initial zero
// subscription leaves the session idle until the API selects one.
func NewService(orch *Orchestrator, initial models.Subscription) *Service {
	return &Service{orch: orch, initial: initial}
}

// Serve implements suture.Service.
func (s *Service) Serve(ctx context.Context) error {
	if err := s.orch.Subscribe(s.initial); err != nil {
		return fmt.Errorf("initial subscription failed: %w", err)
	}

	<-ctx.Done()

	s.orch.Shutdown()
	return ctx.Err()
}

// String implements fmt.Stringer for suture's log messages.
func (s *Service) String() string {
	return "session-orchestrator"
}
