package app

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/julius090/fusion-thermostat/internal/climate"
	"github.com/julius090/fusion-thermostat/internal/config"
	"github.com/julius090/fusion-thermostat/internal/db"
	"github.com/julius090/fusion-thermostat/internal/device"
	"github.com/julius090/fusion-thermostat/internal/eventbus"
	"github.com/julius090/fusion-thermostat/internal/history"
	"github.com/julius090/fusion-thermostat/internal/ingest"
	"github.com/julius090/fusion-thermostat/internal/metrics"
	"github.com/julius090/fusion-thermostat/internal/thermostat"
)

// Services is a container for all application services. It manages
// initialization order and dependencies.
type Services struct {
	cfg *config.Config

	DB      *db.DB
	History *history.History
	Bus     *eventbus.Bus

	Group      *thermostat.Group
	Controller *climate.Controller
	Ingest     *ingest.Server
	Health     *HealthService
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	s.DB = database

	s.History = history.New(database.DB)
	s.Bus = eventbus.New()

	// Device backend: simulated when test_server is set, otherwise a
	// log-only backend. Real transport belongs to the embedding host.
	var commander thermostat.Commander
	if cfg.TestServer {
		log.Info().Msg("Using simulated thermostat backend (test_server)")
		commander = device.NewSimulator(cfg.RealThermostats)
	} else {
		commander = device.LogCommander{}
	}

	s.Group = thermostat.NewGroup(
		commander,
		s.Bus,
		cfg.RealThermostats,
		thermostat.WithRateLimit(cfg.CommandRateRPS),
	)

	controller, err := climate.NewController(climate.Config{
		Name:     cfg.Name,
		Setpoint: 20,
		MinTemp:  *cfg.MinTemp,
		MaxTemp:  *cfg.MaxTemp,
		Tolerances: climate.Tolerances{
			Hot:  *cfg.HotTolerance,
			Cold: *cfg.ColdTolerance,
		},
		WindowDelay:  cfg.WindowDelay.Duration(),
		WindowSensor: cfg.HasWindowSensor(),
	}, s.Group, s.Bus)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Controller = controller

	s.Ingest = ingest.NewServer(cfg.HTTP.Host, cfg.HTTP.Port, controller, s.Group)
	s.Health = NewHealthService(cfg)

	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		m := metrics.New(reg)
		m.Register(s.Bus)
		s.Health.SetMetricsRegistry(reg)
	}

	s.registerHistoryHandlers()

	return s, nil
}

// registerHistoryHandlers persists control-loop transitions.
func (s *Services) registerHistoryHandlers() {
	record := func(eventType history.EventType) eventbus.Handler {
		return func(e eventbus.Event) {
			member, _ := e.Data["member"].(string)
			if err := s.History.Append(eventType, member, e.Data); err != nil {
				log.Error().Err(err).Str("event_type", string(eventType)).Msg("Failed to record history entry")
			}
		}
	}

	s.Bus.Subscribe(eventbus.EventTypeIntent, record(history.EventIntentChanged))
	s.Bus.Subscribe(eventbus.EventTypeWindowState, record(history.EventWindowChanged))
	s.Bus.Subscribe(eventbus.EventTypeSetpoint, record(history.EventSetpointSet))
	s.Bus.Subscribe(eventbus.EventTypeMode, record(history.EventModeChanged))
	s.Bus.Subscribe(eventbus.EventTypeDeviceResult, record(history.EventDeviceResult))
}

// Start starts all background services.
func (s *Services) Start(ctx context.Context) error {
	s.Controller.Start(ctx)

	go func() {
		if err := s.Ingest.Run(ctx, s.cfg.ShutdownTimeout.Duration()); err != nil {
			log.Error().Err(err).Msg("Ingest server error")
		}
	}()
	s.Health.Start(ctx)

	go s.runHistoryCleanup(ctx)

	return nil
}

// runHistoryCleanup periodically applies the retention policy.
func (s *Services) runHistoryCleanup(ctx context.Context) {
	interval := s.cfg.History.CleanupInterval.Duration()
	retention := time.Duration(s.cfg.History.RetentionDays) * 24 * time.Hour

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.History.DeleteOlderThan(retention)
			if err != nil {
				log.Error().Err(err).Msg("History cleanup failed")
				continue
			}
			if deleted > 0 {
				log.Debug().Int64("deleted", deleted).Msg("History cleanup done")
			}
		}
	}
}

// Stop gracefully stops all services.
func (s *Services) Stop() error {
	if s.Controller != nil {
		s.Controller.Close()
	}
	if s.Group != nil {
		s.Group.WaitIdle()
	}
	if s.Bus != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Duration())
		s.Bus.Close(ctx)
		cancel()
	}
	s.Close()
	return nil
}

// Close releases all resources.
func (s *Services) Close() {
	if s.DB != nil {
		s.DB.Close()
	}
}
