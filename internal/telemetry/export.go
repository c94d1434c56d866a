package telemetry

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// Point is one flattened metric data point.
type Point struct {
	Labels map[string]string `json:"labels,omitempty"`
	Name   string            `json:"name"`
	Kind   string            `json:"kind"`
	Value  float64           `json:"value"`
	Count  uint64            `json:"count,omitempty"` // histograms only
}

// Collect reads every metric from reader and flattens it to points sorted by
// name. Histogram points carry the sum as Value.
func Collect(ctx context.Context, reader sdkmetric.Reader) ([]Point, error) {
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		return nil, fmt.Errorf("collect metrics: %w", err)
	}

	var points []Point
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					points = append(points, Point{Name: m.Name, Kind: "counter", Value: float64(dp.Value), Labels: labelsOf(dp.Attributes)})
				}
			case metricdata.Gauge[float64]:
				for _, dp := range data.DataPoints {
					points = append(points, Point{Name: m.Name, Kind: "gauge", Value: dp.Value, Labels: labelsOf(dp.Attributes)})
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					points = append(points, Point{Name: m.Name, Kind: "histogram", Value: dp.Sum, Count: dp.Count, Labels: labelsOf(dp.Attributes)})
				}
			}
		}
	}

	sort.SliceStable(points, func(i, j int) bool { return points[i].Name < points[j].Name })
	return points, nil
}

func labelsOf(set attribute.Set) map[string]string {
	if set.Len() == 0 {
		return nil
	}
	labels := make(map[string]string, set.Len())
	for _, kv := range set.ToSlice() {
		labels[string(kv.Key)] = kv.Value.Emit()
	}
	return labels
}
