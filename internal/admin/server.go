package admin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"crewcall-sim/internal/fleet"
	"crewcall-sim/internal/logging"
	"crewcall-sim/internal/metrics"
)

// Server exposes the fleet control surface as JSON over HTTP. It is a
// thin forwarding layer; all rules live in the registry and orchestrator.
type Server struct {
	registry     *fleet.Registry
	orchestrator *fleet.Orchestrator
	collector    *metrics.Collector
	log          *slog.Logger
}

// NewServer wires the control surface. collector may be nil when
// metrics are disabled.
func NewServer(registry *fleet.Registry, orchestrator *fleet.Orchestrator, collector *metrics.Collector, logger *slog.Logger) *Server {
	return &Server{
		registry:     registry,
		orchestrator: orchestrator,
		collector:    collector,
		log:          logging.Component(logger, "admin"),
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /devices", s.handleCreateDevice)
	mux.HandleFunc("GET /devices", s.handleListDevices)
	mux.HandleFunc("GET /devices/{id}", s.handleGetDevice)
	mux.HandleFunc("DELETE /devices/{id}", s.handleDeleteDevice)
	mux.HandleFunc("POST /devices/{id}/action", s.handleDeviceAction)
	mux.HandleFunc("GET /fleet/status", s.handleFleetStatus)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	return mux
}

// Start serves until the listener fails. Blocking.
func (s *Server) Start(addr string) error {
	s.log.Info("admin server listening", "addr", addr)
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("response encode failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, map[string]string{"error": msg})
}

func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var params fleet.CreateParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	result, err := s.registry.Create(r.Context(), params)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"devices":         s.registry.List(),
		"stats":           s.registry.Stats(),
		"active_failures": s.registry.ActiveFailures(),
	})
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sim, ok := s.registry.Get(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "device not found")
		return
	}
	events, _ := s.registry.RecentEvents(id, 20)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"uid":    id,
		"config": sim.Config(),
		"state":  sim.State(),
		"status": sim.Status(),
		"events": events,
	})
}

func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.registry.Remove(id); err != nil {
		if errors.Is(err, fleet.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "device not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeviceAction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var body struct {
		Action string         `json:"action"`
		Data   map[string]any `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if body.Action == "" {
		s.writeError(w, http.StatusBadRequest, "action is required")
		return
	}
	status, err := s.registry.Perform(id, body.Action, body.Data)
	if err != nil {
		if errors.Is(err, fleet.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "device not found")
			return
		}
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"uid": id, "action": body.Action, "status": status})
}

func (s *Server) handleFleetStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"registry": s.registry.Stats(),
	}
	if s.orchestrator != nil {
		resp["orchestrator"] = s.orchestrator.GetStatistics()
		resp["instances"] = s.orchestrator.Status()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.collector == nil {
		s.writeError(w, http.StatusNotFound, "metrics collection disabled")
		return
	}
	current, ok := s.collector.Current()
	resp := map[string]any{
		"alerts": s.collector.RecentAlerts(),
	}
	if ok {
		resp["current"] = current
	}
	s.writeJSON(w, http.StatusOK, resp)
}
