package device

import (
	"context"
	"errors"
	"testing"

	"github.com/julius090/fusion-thermostat/internal/climate"
)

func TestSimulatorCommand(t *testing.T) {
	s := NewSimulator([]string{"a", "b"})

	if got := s.Intent("a"); got != climate.IntentUnknown {
		t.Fatalf("initial intent = %s, want unknown", got)
	}

	if err := s.Command(context.Background(), "a", climate.IntentHeat); err != nil {
		t.Fatalf("Command: %v", err)
	}
	if got := s.Intent("a"); got != climate.IntentHeat {
		t.Fatalf("intent = %s, want heat", got)
	}
	if got := s.Intent("b"); got != climate.IntentUnknown {
		t.Fatalf("member b intent = %s, want untouched unknown", got)
	}

	// Idempotent: repeating the command leaves the state unchanged.
	if err := s.Command(context.Background(), "a", climate.IntentHeat); err != nil {
		t.Fatalf("repeat Command: %v", err)
	}
	if got := s.Intent("a"); got != climate.IntentHeat {
		t.Fatalf("intent after repeat = %s, want heat", got)
	}
}

func TestSimulatorUnknownMember(t *testing.T) {
	s := NewSimulator([]string{"a"})

	if err := s.Command(context.Background(), "zz", climate.IntentHeat); err == nil {
		t.Fatal("Command accepted an unknown member")
	}
}

func TestSimulatorFailureInjection(t *testing.T) {
	s := NewSimulator([]string{"a"})
	boom := errors.New("boom")

	s.FailMember("a", boom)
	if err := s.Command(context.Background(), "a", climate.IntentHeat); !errors.Is(err, boom) {
		t.Fatalf("Command err = %v, want injected failure", err)
	}
	if got := s.Intent("a"); got != climate.IntentUnknown {
		t.Fatalf("failed command must not change state, got %s", got)
	}

	s.FailMember("a", nil)
	if err := s.Command(context.Background(), "a", climate.IntentHeat); err != nil {
		t.Fatalf("Command after recovery: %v", err)
	}
}
