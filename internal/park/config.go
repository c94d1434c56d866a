package park

import (
	"errors"
	"fmt"
	"time"
)

// ConfigurationError reports a configuration value that must be positive.
type ConfigurationError struct {
	Field string
	Value int
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s must be a positive integer, got %d", e.Field, e.Value)
}

// Config describes one park run. Time values are whole units; Unit converts
// them to wall-clock time (one second unless overridden).
type Config struct {
	Passengers    int // N: passenger tasks
	Cars          int // C: car tasks
	Capacity      int // P: riders per car
	MaxWait       int // W: extra wait for more riders once one is aboard
	RideDuration  int // R: length of a ride
	Duration      int // T: total run time
	QueueCapacity int // J: ride queue bound

	Unit           time.Duration // wall-clock length of one unit
	ExploreMin     int           // shortest exploring stretch, in units
	ExploreMax     int           // longest exploring stretch, in units
	BroadcastEvery int           // monitor cadence, in units
	Grace          int           // shutdown join budget, in units; 0 derives 2×(W+R)
}

// DefaultConfig returns the park configuration used when no flags are given.
func DefaultConfig() Config {
	return Config{
		Passengers:     10,
		Cars:           2,
		Capacity:       2,
		MaxWait:        1,
		RideDuration:   1,
		Duration:       30,
		QueueCapacity:  5,
		Unit:           time.Second,
		ExploreMin:     1,
		ExploreMax:     10,
		BroadcastEvery: 5,
	}
}

// Validate checks that every simulation parameter is positive.
// All offending fields are reported together.
func (c Config) Validate() error {
	fields := []struct {
		name  string
		value int
	}{
		{"passengers (N)", c.Passengers},
		{"cars (C)", c.Cars},
		{"capacity (P)", c.Capacity},
		{"max wait (W)", c.MaxWait},
		{"ride duration (R)", c.RideDuration},
		{"duration (T)", c.Duration},
		{"queue capacity (J)", c.QueueCapacity},
	}

	var errs []error
	for _, f := range fields {
		if f.value <= 0 {
			errs = append(errs, &ConfigurationError{Field: f.name, Value: f.value})
		}
	}
	if c.ExploreMin < 0 || c.ExploreMax < c.ExploreMin {
		errs = append(errs, fmt.Errorf("invalid configuration: explore range [%d, %d]", c.ExploreMin, c.ExploreMax))
	}
	if c.Grace < 0 {
		errs = append(errs, &ConfigurationError{Field: "grace", Value: c.Grace})
	}
	return errors.Join(errs...)
}

// withDefaults fills optional fields left at zero.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Unit <= 0 {
		c.Unit = def.Unit
	}
	if c.ExploreMin == 0 && c.ExploreMax == 0 {
		c.ExploreMin, c.ExploreMax = def.ExploreMin, def.ExploreMax
	}
	if c.BroadcastEvery <= 0 {
		c.BroadcastEvery = def.BroadcastEvery
	}
	if c.Grace == 0 {
		c.Grace = 2 * (c.MaxWait + c.RideDuration)
	}
	return c
}

// units converts n units to wall-clock time.
func (c Config) units(n int) time.Duration {
	return time.Duration(n) * c.Unit
}

// GraceDuration returns the shutdown join budget.
func (c Config) GraceDuration() time.Duration {
	c = c.withDefaults()
	return c.units(c.Grace)
}
