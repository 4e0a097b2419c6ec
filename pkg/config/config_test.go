package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("PACKSIM_SERIES", "3")
	t.Setenv("PACKSIM_PARALLEL", "2")
	t.Setenv("PACKSIM_BUSBAR_RESISTANCE", "2e-3")
	t.Setenv("PACKSIM_CUTOFF_VOLTAGE", "2.8")
	t.Setenv("PACKSIM_AMBIENT_TEMPS", "10, 25, 40")
	t.Setenv("PACKSIM_DISCHARGE_RATES", "0.5C:7.5, 1C:15.0")
	t.Setenv("PACKSIM_SCENARIO_TIMEOUT", "90s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Series)
	assert.Equal(t, 2, cfg.Parallel)
	assert.InDelta(t, 2e-3, cfg.BusbarRes, 1e-12)
	assert.InDelta(t, 2.8, cfg.CutoffVoltage, 1e-12)
	assert.Equal(t, []float64{10, 25, 40}, cfg.AmbientTempsC)
	require.Len(t, cfg.Rates, 2)
	assert.Equal(t, RateTest{Name: "0.5C", Current: 7.5}, cfg.Rates[0])
	assert.Equal(t, RateTest{Name: "1C", Current: 15.0}, cfg.Rates[1])
	assert.Equal(t, 90*time.Second, cfg.ScenarioTimeout)

	// Untouched keys keep their defaults.
	assert.InDelta(t, Default().NominalAh, cfg.NominalAh, 1e-12)
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	t.Setenv("PACKSIM_BOGUS", "1")
	_, err := Load("")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownKey))
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"PACKSIM_SERIES":           "two",
		"PACKSIM_TIME_STEP":        "fast",
		"PACKSIM_AMBIENT_TEMPS":    "25,warm",
		"PACKSIM_DISCHARGE_RATES":  "1C:lots",
		"PACKSIM_SCENARIO_TIMEOUT": "ninety",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load("")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid))
		})
	}
}

func TestLoadMissingEnvFile(t *testing.T) {
	_, err := Load("testdata/does-not-exist.env")
	assert.Error(t, err)
}

func TestParseRatesBareValue(t *testing.T) {
	rates, err := parseRates("5.0")
	require.NoError(t, err)
	require.Len(t, rates, 1)
	assert.Equal(t, RateTest{Name: "5.0A", Current: 5.0}, rates[0])
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"zero series":      func(c *Config) { c.Series = 0 },
		"zero parallel":    func(c *Config) { c.Parallel = 0 },
		"negative busbar":  func(c *Config) { c.BusbarRes = -1 },
		"zero capacity":    func(c *Config) { c.NominalAh = 0 },
		"soc out of range": func(c *Config) { c.InitialSoC = 1.2 },
		"zero max time":    func(c *Config) { c.MaxSimTime = 0 },
		"zero time step":   func(c *Config) { c.TimeStep = 0 },
		"no rates":         func(c *Config) { c.Rates = nil },
		"no ambients":      func(c *Config) { c.AmbientTempsC = nil },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid))
		})
	}
}
