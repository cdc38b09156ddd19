package thermostat

import (
	"context"
	"sync"

	"github.com/julius090/fusion-thermostat/internal/climate"
)

// CommandRecord is one command observed by the FakeCommander.
type CommandRecord struct {
	MemberID string
	Intent   climate.Intent
}

// FakeCommander records commands for test assertions.
type FakeCommander struct {
	mu sync.Mutex

	// Commands contains every command issued, in completion order.
	Commands []CommandRecord

	// FailFor returns the configured error for a member ID, if any.
	FailFor map[string]error
}

// NewFakeCommander creates a FakeCommander for testing.
func NewFakeCommander() *FakeCommander {
	return &FakeCommander{FailFor: make(map[string]error)}
}

// Command records the command and returns the configured error for the
// member, if any.
func (f *FakeCommander) Command(ctx context.Context, memberID string, intent climate.Intent) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.FailFor[memberID]; err != nil {
		return err
	}
	f.Commands = append(f.Commands, CommandRecord{MemberID: memberID, Intent: intent})
	return nil
}

// SetFailure configures Command to fail for the given member.
func (f *FakeCommander) SetFailure(memberID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.FailFor, memberID)
		return
	}
	f.FailFor[memberID] = err
}

// Recorded returns a copy of the commands issued so far.
func (f *FakeCommander) Recorded() []CommandRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]CommandRecord, len(f.Commands))
	copy(out, f.Commands)
	return out
}

// CountFor returns how many commands were issued to a member.
func (f *FakeCommander) CountFor(memberID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Commands {
		if c.MemberID == memberID {
			n++
		}
	}
	return n
}
