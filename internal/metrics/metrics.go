// Package metrics exposes controller state as Prometheus metrics. A
// bus subscriber keeps the gauges current.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/julius090/fusion-thermostat/internal/eventbus"
)

// Metrics holds all registered collectors.
type Metrics struct {
	currentTemperature *prometheus.GaugeVec
	targetTemperature  *prometheus.GaugeVec
	heatingIntent      *prometheus.GaugeVec
	windowState        *prometheus.GaugeVec
	sensorAvailable    *prometheus.GaugeVec
	commandFailures    *prometheus.CounterVec
}

// New creates and registers the collectors.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		currentTemperature: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fusion_current_temperature",
				Help: "Latest external sensor reading in degree celsius.",
			},
			[]string{"name"}),
		targetTemperature: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fusion_target_temperature",
				Help: "Current setpoint in degree celsius.",
			},
			[]string{"name"}),
		heatingIntent: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fusion_heating_intent",
				Help: "Effective heating intent (1 heat, 0 idle, -1 unknown).",
			},
			[]string{"name"}),
		windowState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fusion_window_state",
				Help: "Debounced window state (0 closed, 1 open pending, 2 open confirmed).",
			},
			[]string{"name"}),
		sensorAvailable: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fusion_sensor_available",
				Help: "Whether a current sensor reading exists (1) or the sensor is degraded (0).",
			},
			[]string{"name"}),
		commandFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fusion_device_command_failures_total",
				Help: "Device commands that were not acknowledged, by member.",
			},
			[]string{"member"}),
	}
	reg.MustRegister(m.currentTemperature)
	reg.MustRegister(m.targetTemperature)
	reg.MustRegister(m.heatingIntent)
	reg.MustRegister(m.windowState)
	reg.MustRegister(m.sensorAvailable)
	reg.MustRegister(m.commandFailures)
	return m
}

// Register subscribes the metrics updater to controller events.
func (m *Metrics) Register(bus *eventbus.Bus) {
	bus.Subscribe(eventbus.EventTypeSensor, m.observe)
	bus.Subscribe(eventbus.EventTypeSensorStatus, m.observe)
	bus.Subscribe(eventbus.EventTypeSetpoint, m.observe)
	bus.Subscribe(eventbus.EventTypeIntent, m.observe)
	bus.Subscribe(eventbus.EventTypeWindowState, m.observe)
	bus.Subscribe(eventbus.EventTypeDeviceResult, m.observe)
}

func (m *Metrics) observe(e eventbus.Event) {
	name, _ := e.Data["name"].(string)

	switch e.Type {
	case eventbus.EventTypeSensor:
		if v, ok := e.Data["temperature"].(float64); ok {
			m.currentTemperature.WithLabelValues(name).Set(v)
		}
	case eventbus.EventTypeSensorStatus:
		if avail, ok := e.Data["available"].(bool); ok {
			m.sensorAvailable.WithLabelValues(name).Set(boolToGauge(avail))
		}
	case eventbus.EventTypeSetpoint:
		if v, ok := e.Data["setpoint"].(float64); ok {
			m.targetTemperature.WithLabelValues(name).Set(v)
		}
	case eventbus.EventTypeIntent:
		if intent, ok := e.Data["intent"].(string); ok {
			m.heatingIntent.WithLabelValues(name).Set(intentToGauge(intent))
		}
	case eventbus.EventTypeWindowState:
		if state, ok := e.Data["window_state"].(string); ok {
			m.windowState.WithLabelValues(name).Set(windowToGauge(state))
		}
	case eventbus.EventTypeDeviceResult:
		okFlag, _ := e.Data["ok"].(bool)
		if member, has := e.Data["member"].(string); has && !okFlag {
			m.commandFailures.WithLabelValues(member).Inc()
		}
	}
}

func boolToGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func intentToGauge(intent string) float64 {
	switch intent {
	case "heat":
		return 1
	case "idle":
		return 0
	default:
		return -1
	}
}

func windowToGauge(state string) float64 {
	switch state {
	case "open_pending":
		return 1
	case "open_confirmed":
		return 2
	default:
		return 0
	}
}
