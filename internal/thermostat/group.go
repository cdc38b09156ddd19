package thermostat

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/julius090/fusion-thermostat/internal/climate"
	"github.com/julius090/fusion-thermostat/internal/eventbus"
)

// MemberStatus is a point-in-time view of one grouped thermostat.
type MemberStatus struct {
	ID            string         `json:"id"`
	LastCommanded climate.Intent `json:"-"`
	LastAcked     climate.Intent `json:"-"`
	Intent        string         `json:"intent"`
	Error         string         `json:"error,omitempty"`
	InFlight      bool           `json:"in_flight"`
}

// memberState tracks per-member command bookkeeping. The group does
// not own the device, only the last-commanded cache that avoids
// redundant commands.
type memberState struct {
	lastCommanded climate.Intent
	lastAcked     climate.Intent
	lastErr       error
	inFlight      bool
}

// Group fans a single heating intent out to every real thermostat and
// tracks per-member acknowledgement. Members are fixed at creation.
//
// Apply never blocks on device acknowledgement: commands run in their
// own goroutines and only update bookkeeping when they finish. A
// failing member never blocks or rolls back its siblings.
type Group struct {
	commander Commander
	limiter   *rate.Limiter
	bus       *eventbus.Bus
	timeout   time.Duration

	mu      sync.Mutex
	order   []string
	members map[string]*memberState
	current climate.Intent // last intent with at least one confirmation
	target  climate.Intent // last dispatched intent
	gen     uint64         // discards acks from superseded dispatches

	wg sync.WaitGroup
}

// Option configures a Group.
type Option func(*Group)

// WithRateLimit bounds outgoing device commands to rps per second.
func WithRateLimit(rps float64) Option {
	return func(g *Group) {
		if rps > 0 {
			g.limiter = rate.NewLimiter(rate.Limit(rps), int(rps)+1)
		}
	}
}

// WithCommandTimeout bounds the time a single device command may take.
func WithCommandTimeout(d time.Duration) Option {
	return func(g *Group) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// NewGroup creates a group over the given member IDs.
func NewGroup(commander Commander, bus *eventbus.Bus, memberIDs []string, opts ...Option) *Group {
	g := &Group{
		commander: commander,
		limiter:   rate.NewLimiter(rate.Inf, 1),
		bus:       bus,
		timeout:   10 * time.Second,
		members:   make(map[string]*memberState, len(memberIDs)),
	}
	for _, id := range memberIDs {
		if _, ok := g.members[id]; ok {
			continue
		}
		g.order = append(g.order, id)
		g.members[id] = &memberState{}
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Apply dispatches the intent to every member that is not already
// confirmed at it. It returns as soon as all commands are launched.
func (g *Group) Apply(ctx context.Context, intent climate.Intent) {
	if intent == climate.IntentUnknown {
		return
	}

	g.mu.Lock()
	g.gen++
	gen := g.gen
	g.target = intent

	var dispatch []string
	for _, id := range g.order {
		m := g.members[id]
		if m.inFlight {
			// One outstanding command per member; a diverging result is
			// picked up on the next cycle.
			continue
		}
		if m.lastAcked == intent && m.lastErr == nil {
			continue
		}
		m.lastCommanded = intent
		m.inFlight = true
		dispatch = append(dispatch, id)
	}
	g.mu.Unlock()

	for _, id := range dispatch {
		g.wg.Add(1)
		go g.command(ctx, gen, id, intent)
	}
}

func (g *Group) command(ctx context.Context, gen uint64, memberID string, intent climate.Intent) {
	defer g.wg.Done()

	err := g.limiter.Wait(ctx)
	if err == nil {
		cmdCtx, cancel := context.WithTimeout(ctx, g.timeout)
		err = g.commander.Command(cmdCtx, memberID, intent)
		cancel()
	}

	g.mu.Lock()
	m := g.members[memberID]
	m.inFlight = false
	stale := gen != g.gen
	if err != nil {
		m.lastErr = err
		log.Warn().
			Err(err).
			Str("member", memberID).
			Str("intent", intent.String()).
			Msg("Device command failed, will retry next cycle")
	} else {
		m.lastErr = nil
		m.lastAcked = intent
		// First confirmation activates the commanded intent for the
		// whole group.
		if !stale && intent == g.target {
			g.current = intent
		}
		log.Debug().
			Str("member", memberID).
			Str("intent", intent.String()).
			Msg("Device command acknowledged")
	}
	g.mu.Unlock()

	g.bus.Publish(eventbus.Event{
		Type: eventbus.EventTypeDeviceResult,
		Data: map[string]interface{}{
			"member": memberID,
			"intent": intent.String(),
			"ok":     err == nil,
			"error":  errString(err),
		},
	})
}

// CurrentIntent returns the last intent confirmed by at least one
// member, or IntentUnknown before the first successful command.
func (g *Group) CurrentIntent() climate.Intent {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

// NeedsRepair reports whether any member has not settled on the given
// intent: a failed command, or an acknowledgement that diverged.
// Members with a command still in flight are not counted.
func (g *Group) NeedsRepair(intent climate.Intent) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, id := range g.order {
		m := g.members[id]
		if m.inFlight {
			continue
		}
		if m.lastErr != nil || m.lastAcked != intent {
			return true
		}
	}
	return false
}

// Snapshot returns per-member command state in member order.
func (g *Group) Snapshot() []MemberStatus {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]MemberStatus, 0, len(g.order))
	for _, id := range g.order {
		m := g.members[id]
		out = append(out, MemberStatus{
			ID:            id,
			LastCommanded: m.lastCommanded,
			LastAcked:     m.lastAcked,
			Intent:        m.lastAcked.String(),
			Error:         errString(m.lastErr),
			InFlight:      m.inFlight,
		})
	}
	return out
}

// Members returns the fixed member IDs in order.
func (g *Group) Members() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// WaitIdle blocks until all in-flight commands have finished. Used on
// shutdown and in tests.
func (g *Group) WaitIdle() {
	g.wg.Wait()
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
