package climate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/julius090/fusion-thermostat/internal/eventbus"
)

// Configuration errors surfaced at construction. The controller never
// starts with an invalid configuration.
var (
	ErrMinAboveMax       = errors.New("min_temp must not exceed max_temp")
	ErrNegativeTolerance = errors.New("tolerances must be non-negative")
	ErrNegativeDelay     = errors.New("window_delay must be non-negative")
)

// Config carries the immutable controller parameters. Setpoint is the
// initial target; it remains mutable through SetTemperature.
type Config struct {
	Name         string
	Setpoint     float64
	MinTemp      float64
	MaxTemp      float64
	Tolerances   Tolerances
	WindowDelay  time.Duration
	WindowSensor bool
}

// Validate checks the configuration invariants.
func (c Config) Validate() error {
	if c.MinTemp > c.MaxTemp {
		return fmt.Errorf("%w: min=%.1f max=%.1f", ErrMinAboveMax, c.MinTemp, c.MaxTemp)
	}
	if c.Tolerances.Hot < 0 || c.Tolerances.Cold < 0 {
		return ErrNegativeTolerance
	}
	if c.WindowDelay < 0 {
		return ErrNegativeDelay
	}
	return nil
}

// IntentApplier is the group of real thermostats the controller
// drives. Implemented by thermostat.Group.
type IntentApplier interface {
	Apply(ctx context.Context, intent Intent)
	CurrentIntent() Intent
	NeedsRepair(intent Intent) bool
}

// Status is a point-in-time view of the controller, published to the
// host for display and automation triggers.
type Status struct {
	Name               string   `json:"name"`
	Mode               string   `json:"mode"`
	Setpoint           float64  `json:"setpoint"`
	Intent             string   `json:"intent"`
	WindowState        string   `json:"window_state"`
	CurrentTemperature *float64 `json:"current_temperature"`
	SensorAvailable    bool     `json:"sensor_available"`
}

// Controller fuses the external sensor, the window guard and the
// thermostat group into one logical climate unit.
//
// Every state transition (setpoint change, sensor update, window
// event, delay expiry) is serialized through one mutex, so no two
// evaluations ever run concurrently. The only side effects are
// Apply calls on the group and arming the single window-delay timer.
type Controller struct {
	cfg   Config
	group IntentApplier
	bus   *eventbus.Bus

	mu          sync.Mutex
	ctx         context.Context
	guard       *WindowGuard
	setpoint    float64
	mode        Mode
	reading     Reading
	sensorOK    bool
	rawIntent   Intent // sticky hysteresis state, ignores suppression
	finalIntent Intent // last decided intent, after suppression
	windowTimer *time.Timer
	closed      bool

	now func() time.Time
}

// NewController validates the configuration and creates a controller.
// The member set behind the group is fixed for the controller's
// lifetime.
func NewController(cfg Config, group IntentApplier, bus *eventbus.Bus) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Controller{
		cfg:      cfg,
		group:    group,
		bus:      bus,
		ctx:      context.Background(),
		setpoint: clamp(cfg.Setpoint, cfg.MinTemp, cfg.MaxTemp),
		mode:     ModeHeat,
		now:      time.Now,
	}
	if cfg.WindowSensor {
		c.guard = NewWindowGuard(cfg.WindowDelay)
	}
	return c, nil
}

// Start attaches the lifecycle context used for device commands.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	c.ctx = ctx
	c.mu.Unlock()
}

// SetTemperature stores a new target temperature, clamped to the
// configured bounds, and re-evaluates. Out-of-range values are never
// rejected.
func (c *Controller) SetTemperature(target float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	clamped := clamp(target, c.cfg.MinTemp, c.cfg.MaxTemp)
	if clamped != target {
		log.Debug().
			Float64("requested", target).
			Float64("clamped", clamped).
			Msg("Setpoint clamped to configured bounds")
	}
	if clamped == c.setpoint {
		return
	}
	c.setpoint = clamped

	c.publish(eventbus.EventTypeSetpoint, map[string]interface{}{
		"name":     c.cfg.Name,
		"setpoint": clamped,
	})
	c.reevaluate()
}

// SetMode switches between heat and off. Off forces the group to idle
// regardless of temperature.
func (c *Controller) SetMode(mode Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if mode == c.mode {
		return
	}
	c.mode = mode
	log.Info().Str("name", c.cfg.Name).Str("mode", mode.String()).Msg("Mode changed")

	c.publish(eventbus.EventTypeMode, map[string]interface{}{
		"name": c.cfg.Name,
		"mode": mode.String(),
	})
	c.reevaluate()
}

// OnSensorUpdate stores the latest reading and re-evaluates.
func (c *Controller) OnSensorUpdate(r Reading) {
	c.mu.Lock()
	defer c.mu.Unlock()

	wasOK := c.sensorOK
	c.reading = r
	c.sensorOK = true

	c.publish(eventbus.EventTypeSensor, map[string]interface{}{
		"name":        c.cfg.Name,
		"temperature": r.Value,
	})
	if !wasOK {
		c.publish(eventbus.EventTypeSensorStatus, map[string]interface{}{
			"name":      c.cfg.Name,
			"available": true,
		})
	}
	c.reevaluate()
}

// MarkSensorUnavailable flags the sensor as degraded. Evaluation is
// deferred until a reading arrives again; the last intent is held, the
// controller never resets to a default.
func (c *Controller) MarkSensorUnavailable() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.sensorOK {
		return
	}
	c.sensorOK = false
	log.Warn().Str("name", c.cfg.Name).Msg("Sensor unavailable, holding last intent")

	c.publish(eventbus.EventTypeSensorStatus, map[string]interface{}{
		"name":      c.cfg.Name,
		"available": false,
	})
}

// OnWindowEvent forwards a window sensor transition to the guard,
// manages the single pending delay timer and re-evaluates.
func (c *Controller) OnWindowEvent(open bool, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.guard == nil {
		log.Warn().Str("name", c.cfg.Name).Msg("Window event received but no window sensor configured")
		return
	}
	if c.closed {
		return
	}

	before := c.guard.State()
	c.guard.OnChange(open, now)

	// Rescheduling always cancels the previous pending callback first.
	c.stopWindowTimer()
	if deadline, ok := c.guard.PendingDeadline(); ok {
		c.windowTimer = time.AfterFunc(deadline.Sub(now), c.onWindowDeadline)
	}

	if after := c.guard.State(); after != before {
		log.Info().
			Str("name", c.cfg.Name).
			Str("window_state", after.String()).
			Msg("Window state changed")
		c.publishWindowState(after)
	}
	c.reevaluate()
}

// onWindowDeadline fires when a pending open reaches the confirmation
// delay.
func (c *Controller) onWindowDeadline() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.guard == nil {
		return
	}

	before := c.guard.State()
	after := c.guard.Tick(c.now())
	if after != before {
		log.Info().
			Str("name", c.cfg.Name).
			Str("window_state", after.String()).
			Msg("Window open confirmed, suppressing heating")
		c.publishWindowState(after)
	}
	c.reevaluate()
}

// reevaluate recomputes the heating intent and drives the group when
// it changed or a member needs repair. Callers hold c.mu.
func (c *Controller) reevaluate() {
	if c.closed {
		return
	}

	var final Intent
	switch {
	case c.mode == ModeOff:
		final = IntentIdle
	case !c.sensorOK:
		// SensorUnavailable: hold the last known intent, never force
		// idle.
		log.Debug().Str("name", c.cfg.Name).Msg("No current reading, evaluation deferred")
		return
	default:
		raw := DecideIntent(c.reading.Value, c.setpoint, c.cfg.Tolerances, c.rawIntent)
		c.rawIntent = raw
		final = raw
		if c.guard.Suppressed() {
			final = IntentIdle
		}
	}

	if final == IntentUnknown {
		// Inside the band before the first decision: nothing to apply.
		return
	}

	if final != c.finalIntent {
		c.finalIntent = final
		log.Info().
			Str("name", c.cfg.Name).
			Str("intent", final.String()).
			Float64("setpoint", c.setpoint).
			Msg("Heating intent changed")
		c.publish(eventbus.EventTypeIntent, map[string]interface{}{
			"name":   c.cfg.Name,
			"intent": final.String(),
		})
	}

	if final != c.group.CurrentIntent() || c.group.NeedsRepair(final) {
		c.group.Apply(c.ctx, final)
	}
}

// Status returns a snapshot of the controller state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{
		Name:            c.cfg.Name,
		Mode:            c.mode.String(),
		Setpoint:        c.setpoint,
		Intent:          c.finalIntent.String(),
		WindowState:     c.guard.State().String(),
		SensorAvailable: c.sensorOK,
	}
	if c.sensorOK {
		v := c.reading.Value
		st.CurrentTemperature = &v
	}
	return st
}

// Close cancels the pending window-delay timer and stops the
// controller. No further commands are applied afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.stopWindowTimer()
}

func (c *Controller) stopWindowTimer() {
	if c.windowTimer != nil {
		c.windowTimer.Stop()
		c.windowTimer = nil
	}
}

func (c *Controller) publishWindowState(state WindowState) {
	c.publish(eventbus.EventTypeWindowState, map[string]interface{}{
		"name":         c.cfg.Name,
		"window_state": state.String(),
	})
}

func (c *Controller) publish(eventType eventbus.EventType, data map[string]interface{}) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(eventbus.Event{Type: eventType, Data: data})
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
