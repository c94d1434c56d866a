// Package telemetry adapts the park's observability interfaces to
// OpenTelemetry metrics and log/slog.
package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/dreamware/ridepark/internal/park"
)

// MetricsCollector implements park.MetricsCollector using the OpenTelemetry metrics API:
//   - RecordDuration -> Float64Histogram, in seconds
//   - IncrementCounter -> Int64Counter
//   - RecordValue -> Float64Gauge
//
// Instruments are created lazily on first use. Park tasks record from many
// goroutines, so the instrument maps are guarded by a mutex.
type MetricsCollector struct {
	meter      metric.Meter
	histograms map[string]metric.Float64Histogram
	counters   map[string]metric.Int64Counter
	gauges     map[string]metric.Float64Gauge
	mu         sync.Mutex
}

// NewMetricsCollector creates a collector creating its instruments from meter.
func NewMetricsCollector(meter metric.Meter) *MetricsCollector {
	return &MetricsCollector{
		meter:      meter,
		histograms: make(map[string]metric.Float64Histogram),
		counters:   make(map[string]metric.Int64Counter),
		gauges:     make(map[string]metric.Float64Gauge),
	}
}

// RecordDuration records a duration in seconds on a histogram.
func (m *MetricsCollector) RecordDuration(metricName string, duration time.Duration, labels map[string]string) {
	histogram := m.getOrCreateHistogram(metricName)
	if histogram == nil {
		return
	}
	histogram.Record(context.Background(), duration.Seconds(), metric.WithAttributes(attributes(labels)...))
}

// IncrementCounter adds one to a counter.
func (m *MetricsCollector) IncrementCounter(metricName string, labels map[string]string) {
	counter := m.getOrCreateCounter(metricName)
	if counter == nil {
		return
	}
	counter.Add(context.Background(), 1, metric.WithAttributes(attributes(labels)...))
}

// RecordValue records the current value of a gauge.
func (m *MetricsCollector) RecordValue(metricName string, value float64, labels map[string]string) {
	gauge := m.getOrCreateGauge(metricName)
	if gauge == nil {
		return
	}
	gauge.Record(context.Background(), value, metric.WithAttributes(attributes(labels)...))
}

func attributes(labels map[string]string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(labels))
	for key, value := range labels {
		attrs = append(attrs, attribute.String(key, value))
	}
	return attrs
}

func (m *MetricsCollector) getOrCreateHistogram(name string) metric.Float64Histogram {
	m.mu.Lock()
	defer m.mu.Unlock()

	if histogram, exists := m.histograms[name]; exists {
		return histogram
	}
	histogram, err := m.meter.Float64Histogram(
		name,
		metric.WithDescription("Park duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil
	}
	m.histograms[name] = histogram
	return histogram
}

func (m *MetricsCollector) getOrCreateCounter(name string) metric.Int64Counter {
	m.mu.Lock()
	defer m.mu.Unlock()

	if counter, exists := m.counters[name]; exists {
		return counter
	}
	counter, err := m.meter.Int64Counter(name, metric.WithDescription("Park event counter"))
	if err != nil {
		return nil
	}
	m.counters[name] = counter
	return counter
}

func (m *MetricsCollector) getOrCreateGauge(name string) metric.Float64Gauge {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gauge, exists := m.gauges[name]; exists {
		return gauge
	}
	gauge, err := m.meter.Float64Gauge(name, metric.WithDescription("Park current value"))
	if err != nil {
		return nil
	}
	m.gauges[name] = gauge
	return gauge
}

// Ensure MetricsCollector implements park.MetricsCollector.
var _ park.MetricsCollector = (*MetricsCollector)(nil)
