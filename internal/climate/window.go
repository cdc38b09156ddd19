package climate

import "time"

// WindowState represents the debounced state of the window sensor.
type WindowState int

const (
	WindowClosed WindowState = iota
	WindowOpenPending
	WindowOpenConfirmed
)

// String returns a human-readable name for the window state.
func (s WindowState) String() string {
	switch s {
	case WindowOpenPending:
		return "open_pending"
	case WindowOpenConfirmed:
		return "open_confirmed"
	default:
		return "closed"
	}
}

// WindowGuard debounces window open/close transitions. An open window
// only suppresses heating after it stayed open for the configured
// delay; closing before the delay elapses cancels the pending
// suppression without ever interrupting heating.
//
// The guard itself holds no timer. The controller owns the single
// scheduled callback and drives the guard through Tick.
type WindowGuard struct {
	delay    time.Duration
	state    WindowState
	openedAt time.Time
}

// NewWindowGuard creates a guard with the given confirmation delay.
func NewWindowGuard(delay time.Duration) *WindowGuard {
	return &WindowGuard{delay: delay}
}

// OnChange records a window sensor transition.
func (g *WindowGuard) OnChange(open bool, now time.Time) {
	if open {
		// A repeated open while already pending or confirmed does not
		// restart the delay.
		if g.state == WindowClosed {
			g.state = WindowOpenPending
			g.openedAt = now
		}
		return
	}
	g.state = WindowClosed
	g.openedAt = time.Time{}
}

// Tick advances the state machine to the given time and returns the
// resulting state. A pending open becomes confirmed once the delay has
// elapsed.
func (g *WindowGuard) Tick(now time.Time) WindowState {
	if g.state == WindowOpenPending && !now.Before(g.openedAt.Add(g.delay)) {
		g.state = WindowOpenConfirmed
	}
	return g.state
}

// State returns the current state without advancing time.
func (g *WindowGuard) State() WindowState {
	if g == nil {
		return WindowClosed
	}
	return g.state
}

// Suppressed reports whether heating must be forced to idle. A nil
// guard (no window sensor configured) never suppresses.
func (g *WindowGuard) Suppressed() bool {
	return g != nil && g.state == WindowOpenConfirmed
}

// PendingDeadline returns the instant at which a pending open would be
// confirmed. The second return value is false unless an open is
// pending.
func (g *WindowGuard) PendingDeadline() (time.Time, bool) {
	if g == nil || g.state != WindowOpenPending {
		return time.Time{}, false
	}
	return g.openedAt.Add(g.delay), true
}
