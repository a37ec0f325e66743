// Package admin serves the operator surface of a running simulation: an HTML
// overview, JSON snapshots and the buttons a field engineer would press.
package admin

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"railwsn-sim/internal/logging"
	"railwsn-sim/internal/mote"
	"railwsn-sim/internal/sim"
	"railwsn-sim/internal/train"
)

// Controller is the part of the simulator the admin surface drives.
type Controller interface {
	Status() sim.Status
	Routes() []sim.MoteRoute
	Journal() []sim.JournalEntry
	ToggleBatteryOverride(id int) (bool, error)
	BreakSection(k int) error
	RepairSection(k int) error
	DispatchTrain(from int, speed float64) (train.Train, error)
}

type Server struct {
	Sim     Controller
	metrics http.Handler
	tpl     *template.Template
	log     *slog.Logger
}

//go:embed templates/index.html
var content embed.FS

// NewServer builds the admin surface. metrics may be nil, in which case
// /metrics is not served.
func NewServer(s Controller, metrics http.Handler, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	tpl := template.Must(template.New("index.html").ParseFS(content, "templates/index.html"))
	return &Server{Sim: s, metrics: metrics, tpl: tpl, log: log}
}

// Handler returns the routed admin endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /routes", s.handleRoutes)
	mux.HandleFunc("GET /journal", s.handleJournal)
	mux.HandleFunc("POST /motes/{id}/battery-override", s.handleBatteryOverride)
	mux.HandleFunc("POST /break", s.handleBreak)
	mux.HandleFunc("POST /repair", s.handleRepair)
	mux.HandleFunc("POST /train", s.handleTrain)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	return mux
}

// Start serves on addr until ctx is done.
func (s *Server) Start(ctx context.Context, addr string) error {
	log := logging.FromContext(ctx)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info("admin server listening", "addr", ln.Addr().String())
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Info("admin server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, sim.ErrStopped):
		code = http.StatusServiceUnavailable
	case errors.Is(err, sim.ErrUnknownMote):
		code = http.StatusNotFound
	case errors.Is(err, mote.ErrNotFieldMote), errors.Is(err, train.ErrInvalidSection), errors.Is(err, errBadParam):
		code = http.StatusBadRequest
	}
	if code == http.StatusInternalServerError {
		s.log.Error("admin request failed", "err", err)
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

var errBadParam = errors.New("bad parameter")

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.FormValue(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Join(errBadParam, err)
	}
	return n, nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if err := s.tpl.Execute(w, s.Sim.Status()); err != nil {
		s.log.Error("render index", "err", err)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Sim.Status())
}

func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Sim.Routes())
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Sim.Journal())
}

func (s *Server) handleBatteryOverride(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		s.fail(w, errors.Join(errBadParam, err))
		return
	}
	active, err := s.Sim.ToggleBatteryOverride(id)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mote": id, "battery_override": active})
}

func (s *Server) section(w http.ResponseWriter, r *http.Request, op func(int) error, verb string) {
	k, err := intParam(r, "section", 0)
	if err != nil {
		s.fail(w, err)
		return
	}
	if err := op(k); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"section": k, "state": verb})
}

func (s *Server) handleBreak(w http.ResponseWriter, r *http.Request) {
	s.section(w, r, s.Sim.BreakSection, "broken")
}

func (s *Server) handleRepair(w http.ResponseWriter, r *http.Request) {
	s.section(w, r, s.Sim.RepairSection, "repaired")
}

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	from, err := intParam(r, "from", 0)
	if err != nil {
		s.fail(w, err)
		return
	}
	speed := 0.0
	if v := r.FormValue("speed"); v != "" {
		if speed, err = strconv.ParseFloat(v, 64); err != nil {
			s.fail(w, errors.Join(errBadParam, err))
			return
		}
	}
	t, err := s.Sim.DispatchTrain(from, speed)
	if err != nil {
		if !errors.Is(err, sim.ErrStopped) {
			err = errors.Join(errBadParam, err)
		}
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}
