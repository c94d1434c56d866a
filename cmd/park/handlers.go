package main

import (
	"net/http"

	jsoniter "github.com/json-iterator/go"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/dreamware/ridepark/internal/monitor"
	"github.com/dreamware/ridepark/internal/park"
	"github.com/dreamware/ridepark/internal/telemetry"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// statusServer serves read-only views of a running simulation.
type statusServer struct {
	sim         *park.Simulation
	broadcaster *monitor.Broadcaster
	reader      sdkmetric.Reader
}

func newStatusServer(sim *park.Simulation, b *monitor.Broadcaster, reader sdkmetric.Reader) *statusServer {
	return &statusServer{sim: sim, broadcaster: b, reader: reader}
}

func (s *statusServer) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/snapshot", s.handleSnapshot)
	mux.HandleFunc("/metrics", s.handleMetrics)
	return mux
}

func (s *statusServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "open"
	if !s.sim.Open() {
		status = "closed"
	}
	writeJSON(w, struct {
		RunID  string `json:"run_id"`
		Status string `json:"status"`
	}{RunID: s.sim.RunID().String(), Status: status})
}

func (s *statusServer) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.sim.Snapshot())
}

func (s *statusServer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	points, err := telemetry.Collect(r.Context(), s.reader)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, struct {
		Metrics []telemetry.Point `json:"metrics"`
		Monitor monitor.Stats     `json:"monitor"`
	}{Metrics: points, Monitor: s.broadcaster.Stats()})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
