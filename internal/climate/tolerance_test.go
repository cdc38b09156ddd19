package climate

import "testing"

func TestDecideIntent(t *testing.T) {
	tol := Tolerances{Hot: 0.5, Cold: 0.5}

	tests := []struct {
		name     string
		current  float64
		setpoint float64
		tol      Tolerances
		previous Intent
		expected Intent
	}{
		{
			name:     "below_band_heats",
			current:  20.3,
			setpoint: 21,
			tol:      tol,
			previous: IntentIdle,
			expected: IntentHeat,
		},
		{
			name:     "at_cold_threshold_heats",
			current:  20.5,
			setpoint: 21,
			tol:      tol,
			previous: IntentIdle,
			expected: IntentHeat,
		},
		{
			name:     "above_band_idles",
			current:  21.6,
			setpoint: 21,
			tol:      tol,
			previous: IntentHeat,
			expected: IntentIdle,
		},
		{
			name:     "at_hot_threshold_idles",
			current:  21.5,
			setpoint: 21,
			tol:      tol,
			previous: IntentHeat,
			expected: IntentIdle,
		},
		{
			name:     "inside_band_keeps_heat",
			current:  21.0,
			setpoint: 21,
			tol:      tol,
			previous: IntentHeat,
			expected: IntentHeat,
		},
		{
			name:     "inside_band_keeps_idle",
			current:  21.0,
			setpoint: 21,
			tol:      tol,
			previous: IntentIdle,
			expected: IntentIdle,
		},
		{
			name:     "inside_band_keeps_unknown",
			current:  21.0,
			setpoint: 21,
			tol:      tol,
			previous: IntentUnknown,
			expected: IntentUnknown,
		},
		{
			name:     "asymmetric_band",
			current:  20.8,
			setpoint: 21,
			tol:      Tolerances{Hot: 0.2, Cold: 0.1},
			previous: IntentIdle,
			expected: IntentIdle,
		},
		{
			name:     "zero_tolerances_above",
			current:  21.1,
			setpoint: 21,
			tol:      Tolerances{},
			previous: IntentHeat,
			expected: IntentIdle,
		},
		{
			name:     "zero_tolerances_below",
			current:  20.9,
			setpoint: 21,
			tol:      Tolerances{},
			previous: IntentIdle,
			expected: IntentHeat,
		},
		{
			name:     "zero_tolerances_exact_match_idles",
			current:  21,
			setpoint: 21,
			tol:      Tolerances{},
			previous: IntentHeat,
			expected: IntentIdle,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecideIntent(tt.current, tt.setpoint, tt.tol, tt.previous)
			if got != tt.expected {
				t.Errorf("DecideIntent(%.1f, %.1f, prev=%s) = %s, want %s",
					tt.current, tt.setpoint, tt.previous, got, tt.expected)
			}
		})
	}
}

// TestDecideIntentSequence walks a reading sequence through the
// hysteresis band and checks that the intent only flips at the band
// edges.
func TestDecideIntentSequence(t *testing.T) {
	tol := Tolerances{Hot: 0.5, Cold: 0.5}
	setpoint := 21.0

	steps := []struct {
		reading  float64
		expected Intent
	}{
		{21.0, IntentUnknown}, // inside the band, nothing decided yet
		{20.4, IntentHeat},    // below setpoint - cold
		{21.0, IntentHeat},    // back inside, sticky
		{21.4, IntentHeat},    // still inside, sticky
		{21.6, IntentIdle},    // above setpoint + hot
		{21.0, IntentIdle},    // inside again, sticky
		{20.3, IntentHeat},    // below again
	}

	previous := IntentUnknown
	for i, step := range steps {
		got := DecideIntent(step.reading, setpoint, tol, previous)
		if got != step.expected {
			t.Fatalf("step %d: reading %.1f with prev=%s gave %s, want %s",
				i, step.reading, previous, got, step.expected)
		}
		previous = got
	}
}

func TestIntentString(t *testing.T) {
	tests := []struct {
		intent   Intent
		expected string
	}{
		{IntentUnknown, "unknown"},
		{IntentIdle, "idle"},
		{IntentHeat, "heat"},
		{Intent(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.intent.String(); got != tt.expected {
			t.Errorf("Intent(%d).String() = %q, want %q", tt.intent, got, tt.expected)
		}
	}
}
