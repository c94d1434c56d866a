package park

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 10, cfg.Passengers)
	assert.Equal(t, 2, cfg.Cars)
	assert.Equal(t, 2, cfg.Capacity)
	assert.Equal(t, 1, cfg.MaxWait)
	assert.Equal(t, 1, cfg.RideDuration)
	assert.Equal(t, 30, cfg.Duration)
	assert.Equal(t, 5, cfg.QueueCapacity)
	assert.Equal(t, time.Second, cfg.Unit)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*Config)
		wantFields []string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:       "zero passengers",
			mutate:     func(c *Config) { c.Passengers = 0 },
			wantFields: []string{"passengers (N)"},
		},
		{
			name:       "negative capacity",
			mutate:     func(c *Config) { c.Capacity = -1 },
			wantFields: []string{"capacity (P)"},
		},
		{
			name: "several fields reported together",
			mutate: func(c *Config) {
				c.Cars = 0
				c.QueueCapacity = 0
				c.Duration = -3
			},
			wantFields: []string{"cars (C)", "duration (T)", "queue capacity (J)"},
		},
		{
			name:       "negative grace",
			mutate:     func(c *Config) { c.Grace = -1 },
			wantFields: []string{"grace"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if len(tt.wantFields) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)

			var fields []string
			for _, e := range err.(interface{ Unwrap() []error }).Unwrap() {
				var cerr *ConfigurationError
				require.True(t, errors.As(e, &cerr))
				fields = append(fields, cerr.Field)
			}
			assert.ElementsMatch(t, tt.wantFields, fields)
		})
	}
}

func TestConfigValidateExploreRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExploreMin, cfg.ExploreMax = 5, 2

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "explore range")
}

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{Passengers: 1, Cars: 1, Capacity: 1, MaxWait: 2, RideDuration: 3, Duration: 1, QueueCapacity: 1}
	got := cfg.withDefaults()

	assert.Equal(t, time.Second, got.Unit)
	assert.Equal(t, 1, got.ExploreMin)
	assert.Equal(t, 10, got.ExploreMax)
	assert.Equal(t, 5, got.BroadcastEvery)
	assert.Equal(t, 10, got.Grace, "grace defaults to twice W+R")
	assert.Equal(t, 10*time.Second, cfg.GraceDuration())

	cfg.Grace, cfg.Unit = 4, time.Millisecond
	assert.Equal(t, 4*time.Millisecond, cfg.GraceDuration())
}

func TestConfigurationErrorMessage(t *testing.T) {
	err := &ConfigurationError{Field: "cars (C)", Value: 0}
	assert.Equal(t, "invalid configuration: cars (C) must be a positive integer, got 0", err.Error())
}
