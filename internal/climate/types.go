package climate

import "time"

// Intent represents the single logical heating decision applied to all
// grouped thermostats.
type Intent int

const (
	IntentUnknown Intent = iota
	IntentIdle
	IntentHeat
)

// String returns a human-readable name for the intent.
func (i Intent) String() string {
	switch i {
	case IntentIdle:
		return "idle"
	case IntentHeat:
		return "heat"
	default:
		return "unknown"
	}
}

// Mode represents the operating mode of the virtual thermostat.
type Mode int

const (
	ModeHeat Mode = iota
	ModeOff
)

// String returns a human-readable name for the mode.
func (m Mode) String() string {
	switch m {
	case ModeOff:
		return "off"
	default:
		return "heat"
	}
}

// ParseMode converts a mode name into a Mode.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "heat":
		return ModeHeat, true
	case "off":
		return ModeOff, true
	}
	return ModeHeat, false
}

// Reading is a single calibrated temperature sample from the external
// sensor. Readings are immutable; each new sample supersedes the last.
type Reading struct {
	Value float64
	At    time.Time
}

// Tolerances define the hysteresis band around the setpoint:
// [setpoint - Cold, setpoint + Hot]. Both values are non-negative.
type Tolerances struct {
	Hot  float64
	Cold float64
}
