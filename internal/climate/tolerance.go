package climate

// DecideIntent determines the desired heating intent from the current
// reading, the setpoint and the hysteresis band. This is the core
// decision logic: a simple threshold would oscillate around the
// setpoint, so inside the band the previous intent is kept unchanged.
//
// The function is pure and total for finite inputs. Callers must not
// invoke it without a current reading; sensor availability is handled
// upstream by the controller.
func DecideIntent(current, setpoint float64, tol Tolerances, previous Intent) Intent {
	// Degenerate band: with zero tolerances an exact match means the
	// setpoint is reached, not that heating is demanded.
	if current == setpoint && tol.Cold == 0 && tol.Hot == 0 {
		return IntentIdle
	}
	if current <= setpoint-tol.Cold {
		return IntentHeat
	}
	if current >= setpoint+tol.Hot {
		return IntentIdle
	}
	return previous
}
