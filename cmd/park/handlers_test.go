package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/dreamware/ridepark/internal/monitor"
	"github.com/dreamware/ridepark/internal/park"
	"github.com/dreamware/ridepark/internal/telemetry"
)

func newTestStatusServer(t *testing.T) (*statusServer, *park.Simulation, *telemetry.MetricsCollector) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	collector := telemetry.NewMetricsCollector(provider.Meter("test"))

	sim, err := park.New(park.Config{
		Passengers: 2, Cars: 2, Capacity: 3, MaxWait: 1, RideDuration: 1, Duration: 5, QueueCapacity: 2,
		Unit: 10 * time.Millisecond,
	}, park.WithMetrics(collector))
	require.NoError(t, err)

	b := monitor.NewBroadcaster(&lockedBuffer{}, 1, collector)
	return newStatusServer(sim, b, reader), sim, collector
}

// TestHealthEndpoint tests the health check endpoint
func TestHealthEndpoint(t *testing.T) {
	srv, sim, _ := newTestStatusServer(t)
	mux := srv.routes()

	tests := []struct {
		name       string
		close      bool
		wantStatus string
	}{
		{name: "open park", wantStatus: "open"},
		{name: "closed park", close: true, wantStatus: "closed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.close {
				sim.Shutdown()
			}
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, http.StatusOK, w.Code)
			var body struct {
				RunID  string `json:"run_id"`
				Status string `json:"status"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantStatus, body.Status)
			assert.Equal(t, sim.RunID().String(), body.RunID)
		})
	}
}

func TestHandleSnapshot(t *testing.T) {
	srv, sim, _ := newTestStatusServer(t)
	mux := srv.routes()

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/snapshot", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var snap park.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, sim.RunID().String(), snap.RunID)
	require.Len(t, snap.Cars, 2)
	assert.Equal(t, 3, snap.Cars[1].Capacity)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/snapshot", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHandleMetrics(t *testing.T) {
	srv, _, collector := newTestStatusServer(t)
	mux := srv.routes()

	collector.IncrementCounter(park.MetricRidesTotal, nil)
	collector.IncrementCounter(park.MetricRidesTotal, nil)
	_ = srv.broadcaster.Publish(park.Snapshot{Time: 4})
	_ = srv.broadcaster.Publish(park.Snapshot{Time: 9}) // buffer of one, never drained

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Metrics []telemetry.Point `json:"metrics"`
		Monitor monitor.Stats     `json:"monitor"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	values := make(map[string]float64)
	for _, p := range body.Metrics {
		values[p.Name] += p.Value
	}
	assert.Equal(t, 2.0, values[park.MetricRidesTotal])
	assert.Equal(t, 1.0, values[park.MetricSnapshotsDropped])
	assert.Equal(t, monitor.Stats{Published: 2, Dropped: 1}, body.Monitor)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/metrics", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
