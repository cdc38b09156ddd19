// Package ingest exposes the host-facing HTTP API: sensor and window
// events in, controller status out.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/julius090/fusion-thermostat/internal/climate"
	"github.com/julius090/fusion-thermostat/internal/thermostat"
)

// Controller is the subset of the climate controller the API drives.
type Controller interface {
	SetTemperature(target float64)
	SetMode(mode climate.Mode)
	OnSensorUpdate(r climate.Reading)
	MarkSensorUnavailable()
	OnWindowEvent(open bool, now time.Time)
	Status() climate.Status
}

// GroupSnapshotter exposes per-member command state for /status.
type GroupSnapshotter interface {
	Snapshot() []thermostat.MemberStatus
}

// Server is the HTTP server that feeds events into the controller.
type Server struct {
	addr       string
	controller Controller
	group      GroupSnapshotter
	httpServer *http.Server
	now        func() time.Time
}

// NewServer creates a new ingest server.
func NewServer(host string, port int, controller Controller, group GroupSnapshotter) *Server {
	return &Server{
		addr:       fmt.Sprintf("%s:%d", host, port),
		controller: controller,
		group:      group,
		now:        time.Now,
	}
}

// Handler returns the HTTP handler. Exposed for tests and for mounting
// extra routes (metrics, health) on the same mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/sensor", s.handleSensor)
	mux.HandleFunc("/sensor/unavailable", s.handleSensorUnavailable)
	mux.HandleFunc("/window", s.handleWindow)
	mux.HandleFunc("/setpoint", s.handleSetpoint)
	mux.HandleFunc("/mode", s.handleMode)
	mux.HandleFunc("/status", s.handleStatus)
	return mux
}

// Run starts the server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	log.Info().Str("addr", s.addr).Msg("Starting ingest server")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Ingest server shutdown error")
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handleSensor(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var body struct {
		Temperature *float64 `json:"temperature"`
	}
	if err := decode(r, &body); err != nil || body.Temperature == nil {
		badRequest(w, "temperature is required")
		return
	}

	s.controller.OnSensorUpdate(climate.Reading{Value: *body.Temperature, At: s.now()})
	ok(w)
}

func (s *Server) handleSensorUnavailable(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	s.controller.MarkSensorUnavailable()
	ok(w)
}

func (s *Server) handleWindow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var body struct {
		Open *bool `json:"open"`
	}
	if err := decode(r, &body); err != nil || body.Open == nil {
		badRequest(w, "open is required")
		return
	}

	s.controller.OnWindowEvent(*body.Open, s.now())
	ok(w)
}

func (s *Server) handleSetpoint(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var body struct {
		Temperature *float64 `json:"temperature"`
	}
	if err := decode(r, &body); err != nil || body.Temperature == nil {
		badRequest(w, "temperature is required")
		return
	}

	// Out-of-range setpoints are clamped by the controller, never
	// rejected here.
	s.controller.SetTemperature(*body.Temperature)
	ok(w)
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var body struct {
		Mode string `json:"mode"`
	}
	if err := decode(r, &body); err != nil {
		badRequest(w, "invalid body")
		return
	}
	mode, valid := climate.ParseMode(body.Mode)
	if !valid {
		badRequest(w, "mode must be heat or off")
		return
	}

	s.controller.SetMode(mode)
	ok(w)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	resp := struct {
		climate.Status
		Members []thermostat.MemberStatus `json:"members"`
	}{
		Status:  s.controller.Status(),
		Members: s.group.Snapshot(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error().Err(err).Msg("Failed to encode status response")
	}
}

func decode(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func ok(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func badRequest(w http.ResponseWriter, msg string) {
	http.Error(w, msg, http.StatusBadRequest)
}

func methodNotAllowed(w http.ResponseWriter) {
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
}
