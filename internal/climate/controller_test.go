package climate

import (
	"context"
	"testing"
	"time"
)

// fakeApplier is a synchronous stand-in for the thermostat group.
type fakeApplier struct {
	applied []Intent
	current Intent
	repair  bool
}

func (f *fakeApplier) Apply(ctx context.Context, intent Intent) {
	f.applied = append(f.applied, intent)
	f.current = intent
}

func (f *fakeApplier) CurrentIntent() Intent { return f.current }

func (f *fakeApplier) NeedsRepair(intent Intent) bool { return f.repair }

func newTestController(t *testing.T, cfg Config, group IntentApplier) *Controller {
	t.Helper()
	c, err := NewController(cfg, group, nil)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	return c
}

func defaultConfig() Config {
	return Config{
		Name:         "test",
		Setpoint:     21,
		MinTemp:      7,
		MaxTemp:      25,
		Tolerances:   Tolerances{Hot: 0.5, Cold: 0.5},
		WindowDelay:  10 * time.Second,
		WindowSensor: true,
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"min_above_max", func(c *Config) { c.MinTemp = 30 }, true},
		{"negative_hot_tolerance", func(c *Config) { c.Tolerances.Hot = -0.1 }, true},
		{"negative_cold_tolerance", func(c *Config) { c.Tolerances.Cold = -1 }, true},
		{"negative_delay", func(c *Config) { c.WindowDelay = -time.Second }, true},
		{"zero_tolerances_ok", func(c *Config) { c.Tolerances = Tolerances{} }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(&cfg)
			_, err := NewController(cfg, &fakeApplier{}, nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewController err = %v, wantErr = %v", err, tt.wantErr)
			}
		})
	}
}

func TestSetTemperatureClamps(t *testing.T) {
	group := &fakeApplier{}
	cfg := defaultConfig()
	cfg.MinTemp = 10
	c := newTestController(t, cfg, group)

	c.SetTemperature(-5)
	if got := c.Status().Setpoint; got != 10 {
		t.Errorf("setpoint after SetTemperature(-5) = %.1f, want 10", got)
	}

	c.SetTemperature(40)
	if got := c.Status().Setpoint; got != 25 {
		t.Errorf("setpoint after SetTemperature(40) = %.1f, want 25", got)
	}

	c.SetTemperature(19.5)
	if got := c.Status().Setpoint; got != 19.5 {
		t.Errorf("setpoint after SetTemperature(19.5) = %.1f, want 19.5", got)
	}
}

func TestControllerHysteresisDrivesGroup(t *testing.T) {
	group := &fakeApplier{}
	c := newTestController(t, defaultConfig(), group)

	steps := []struct {
		reading float64
		applied []Intent
	}{
		{21.0, nil},                                               // inside band, nothing decided
		{20.4, []Intent{IntentHeat}},                              // below band
		{21.0, []Intent{IntentHeat}},                              // sticky, no new command
		{21.6, []Intent{IntentHeat, IntentIdle}},                  // above band
		{21.2, []Intent{IntentHeat, IntentIdle}},                  // sticky
		{20.3, []Intent{IntentHeat, IntentIdle, IntentHeat}},      // below band again
		{20.3, []Intent{IntentHeat, IntentIdle, IntentHeat}},      // duplicate reading, no new command
	}

	for i, step := range steps {
		c.OnSensorUpdate(Reading{Value: step.reading, At: t0})
		if len(group.applied) != len(step.applied) {
			t.Fatalf("step %d: applied = %v, want %v", i, group.applied, step.applied)
		}
		for j := range step.applied {
			if group.applied[j] != step.applied[j] {
				t.Fatalf("step %d: applied = %v, want %v", i, group.applied, step.applied)
			}
		}
	}
}

func TestControllerRepairsFailedMembers(t *testing.T) {
	group := &fakeApplier{}
	c := newTestController(t, defaultConfig(), group)

	c.OnSensorUpdate(Reading{Value: 20.0, At: t0})
	if len(group.applied) != 1 {
		t.Fatalf("applied = %v, want one heat command", group.applied)
	}

	// A member that failed is resubmitted on the next cycle even
	// though the group intent did not change.
	group.repair = true
	c.OnSensorUpdate(Reading{Value: 20.1, At: t0})
	if len(group.applied) != 2 || group.applied[1] != IntentHeat {
		t.Fatalf("applied = %v, want repair resubmission of heat", group.applied)
	}
}

func TestWindowConfirmationForcesIdle(t *testing.T) {
	group := &fakeApplier{}
	c := newTestController(t, defaultConfig(), group)

	c.OnSensorUpdate(Reading{Value: 18.0, At: t0})
	if group.current != IntentHeat {
		t.Fatalf("current = %s, want heat", group.current)
	}

	c.OnWindowEvent(true, t0)
	if got := c.Status().WindowState; got != "open_pending" {
		t.Fatalf("window state = %s, want open_pending", got)
	}
	// Pending open does not interrupt heating.
	if group.current != IntentHeat {
		t.Fatalf("current after pending = %s, want heat", group.current)
	}

	// Deadline fires with the window still open.
	c.now = func() time.Time { return t0.Add(10 * time.Second) }
	c.onWindowDeadline()

	if got := c.Status().WindowState; got != "open_confirmed" {
		t.Fatalf("window state = %s, want open_confirmed", got)
	}
	if group.current != IntentIdle {
		t.Fatalf("current after confirmation = %s, want idle", group.current)
	}

	// Even a reading far below the cold threshold stays suppressed.
	c.OnSensorUpdate(Reading{Value: 15.0, At: t0.Add(11 * time.Second)})
	if group.current != IntentIdle {
		t.Fatalf("current with window open = %s, want idle", group.current)
	}

	// Closing the window resumes heating immediately, subject to the
	// temperature decision.
	c.OnWindowEvent(false, t0.Add(20*time.Second))
	if group.current != IntentHeat {
		t.Fatalf("current after close = %s, want heat", group.current)
	}
}

func TestWindowCloseBeforeDelayNeverSuppresses(t *testing.T) {
	group := &fakeApplier{}
	c := newTestController(t, defaultConfig(), group)

	c.OnSensorUpdate(Reading{Value: 18.0, At: t0})
	c.OnWindowEvent(true, t0)
	c.OnWindowEvent(false, t0.Add(8*time.Second))

	if got := c.Status().WindowState; got != "closed" {
		t.Fatalf("window state = %s, want closed", got)
	}
	for _, intent := range group.applied {
		if intent == IntentIdle {
			t.Fatalf("idle was applied during a cancelled window open: %v", group.applied)
		}
	}
}

func TestSensorUnavailableHoldsIntent(t *testing.T) {
	group := &fakeApplier{}
	c := newTestController(t, defaultConfig(), group)

	c.OnSensorUpdate(Reading{Value: 18.0, At: t0})
	if group.current != IntentHeat {
		t.Fatalf("current = %s, want heat", group.current)
	}

	c.MarkSensorUnavailable()
	st := c.Status()
	if st.SensorAvailable {
		t.Fatal("status must report the sensor as unavailable")
	}
	if st.CurrentTemperature != nil {
		t.Fatal("degraded sensor must not report a temperature")
	}

	// Evaluation is deferred; the last intent is held, not reset.
	applied := len(group.applied)
	c.SetTemperature(25)
	if len(group.applied) != applied {
		t.Fatalf("applied = %v, evaluation must be deferred without a reading", group.applied)
	}
	if group.current != IntentHeat {
		t.Fatalf("current = %s, want held heat", group.current)
	}

	// A fresh reading resumes control.
	c.OnSensorUpdate(Reading{Value: 26.0, At: t0.Add(time.Minute)})
	if group.current != IntentIdle {
		t.Fatalf("current after recovery = %s, want idle", group.current)
	}
}

func TestModeOffForcesIdle(t *testing.T) {
	group := &fakeApplier{}
	c := newTestController(t, defaultConfig(), group)

	c.OnSensorUpdate(Reading{Value: 18.0, At: t0})
	if group.current != IntentHeat {
		t.Fatalf("current = %s, want heat", group.current)
	}

	c.SetMode(ModeOff)
	if group.current != IntentIdle {
		t.Fatalf("current in off mode = %s, want idle", group.current)
	}

	// Cold readings in off mode never heat.
	c.OnSensorUpdate(Reading{Value: 10.0, At: t0.Add(time.Minute)})
	if group.current != IntentIdle {
		t.Fatalf("current in off mode = %s, want idle", group.current)
	}

	c.SetMode(ModeHeat)
	if group.current != IntentHeat {
		t.Fatalf("current back in heat mode = %s, want heat", group.current)
	}
}

func TestWindowEventWithoutSensorIsIgnored(t *testing.T) {
	group := &fakeApplier{}
	cfg := defaultConfig()
	cfg.WindowSensor = false
	c := newTestController(t, cfg, group)

	c.OnSensorUpdate(Reading{Value: 18.0, At: t0})
	c.OnWindowEvent(true, t0)

	c.now = func() time.Time { return t0.Add(time.Hour) }
	c.onWindowDeadline()

	if group.current != IntentHeat {
		t.Fatalf("current = %s, want heat (no window guard configured)", group.current)
	}
}

func TestCloseStopsCommands(t *testing.T) {
	group := &fakeApplier{}
	c := newTestController(t, defaultConfig(), group)

	c.OnSensorUpdate(Reading{Value: 18.0, At: t0})
	applied := len(group.applied)

	c.Close()

	c.OnSensorUpdate(Reading{Value: 25.0, At: t0.Add(time.Minute)})
	c.onWindowDeadline()
	if len(group.applied) != applied {
		t.Fatalf("applied = %v, no commands may follow Close", group.applied)
	}
}
