package park

import "time"

// Metric names emitted by the simulation.
const (
	MetricRidesTotal       = "park_rides_total"                    // counter, completed unloads
	MetricServedTotal      = "park_passengers_served_total"        // counter, released passengers
	MetricRideQueueLength  = "park_ride_queue_length"              // gauge, sampled on the broadcast cadence
	MetricCarLoadRiders    = "park_car_load_riders"                // gauge, riders per departure
	MetricBoardingWait     = "park_boarding_wait_seconds"          // histogram, ride queue to departure
	MetricSnapshotsDropped = "park_snapshots_dropped_total"        // counter, by reason
	MetricUnloadsAbandoned = "park_unloads_abandoned_total"        // counter, turns given up after shutdown
	MetricRetireViolations = "park_record_retire_violations_total" // counter, records retired unreleased
)

// MetricsCollector receives simulation measurements. It mirrors a
// dependency-free collector shape so any backend can be plugged in.
type MetricsCollector interface {
	RecordDuration(metric string, duration time.Duration, labels map[string]string)
	IncrementCounter(metric string, labels map[string]string)
	RecordValue(metric string, value float64, labels map[string]string)
}

type noopMetrics struct{}

func (noopMetrics) RecordDuration(string, time.Duration, map[string]string) {}
func (noopMetrics) IncrementCounter(string, map[string]string)              {}
func (noopMetrics) RecordValue(string, float64, map[string]string)          {}
