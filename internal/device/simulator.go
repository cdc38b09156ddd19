// Package device provides backends for thermostat group member
// communication. Real device transport is the embedding host's
// concern; this package ships a simulated backend for the test_server
// mode and a log-only backend for hosts that consume the published
// intent stream instead.
package device

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/julius090/fusion-thermostat/internal/climate"
)

// Simulator is an in-memory thermostat backend. Commands are
// idempotent: setting the intent a member already has is a no-op.
type Simulator struct {
	mu       sync.Mutex
	states   map[string]climate.Intent
	failures map[string]error
	latency  time.Duration
}

// NewSimulator creates a simulator that knows the given members.
func NewSimulator(memberIDs []string) *Simulator {
	s := &Simulator{
		states:   make(map[string]climate.Intent, len(memberIDs)),
		failures: make(map[string]error),
	}
	for _, id := range memberIDs {
		s.states[id] = climate.IntentUnknown
	}
	return s
}

// SetLatency makes every command take at least d.
func (s *Simulator) SetLatency(d time.Duration) {
	s.mu.Lock()
	s.latency = d
	s.mu.Unlock()
}

// FailMember makes commands to the given member fail with err, or
// succeed again when err is nil.
func (s *Simulator) FailMember(memberID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, memberID)
		return
	}
	s.failures[memberID] = err
}

// Command applies the intent to the simulated member.
func (s *Simulator) Command(ctx context.Context, memberID string, intent climate.Intent) error {
	s.mu.Lock()
	latency := s.latency
	s.mu.Unlock()

	if latency > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(latency):
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.states[memberID]; !ok {
		return fmt.Errorf("simulator: unknown member %q", memberID)
	}
	if err := s.failures[memberID]; err != nil {
		return err
	}
	s.states[memberID] = intent
	return nil
}

// Intent returns the simulated member's current intent.
func (s *Simulator) Intent(memberID string) climate.Intent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[memberID]
}

// LogCommander logs commands without talking to any device. It is the
// default backend when test_server is disabled: the daemon publishes
// intent changes on its HTTP API and event stream, and the host owns
// the actual device calls.
type LogCommander struct{}

// Command logs the command and reports success.
func (LogCommander) Command(ctx context.Context, memberID string, intent climate.Intent) error {
	log.Info().
		Str("member", memberID).
		Str("intent", intent.String()).
		Msg("Device command (no backend configured)")
	return nil
}
