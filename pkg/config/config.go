// Package config reads the simulation configuration from PACKSIM_*
// environment variables, optionally seeded from a .env file. The recognized
// keys are enumerated; anything else under the prefix is rejected instead of
// silently ignored.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var (
	// ErrInvalid indicates a statically invalid configuration value. It is
	// the root of the configuration error taxonomy; topology and scenario
	// validation wrap it too.
	ErrInvalid = errors.New("config: invalid value")

	// ErrUnknownKey indicates a PACKSIM_ environment variable that is not a
	// recognized option.
	ErrUnknownKey = errors.New("config: unrecognized key")
)

const envPrefix = "PACKSIM_"

// RateTest is one named discharge current, e.g. "1C" at 5 A.
type RateTest struct {
	Name    string
	Current float64 // pack discharge current (A)
}

type Config struct {
	Series          int
	Parallel        int
	BusbarRes       float64 // ohm
	ConnectionRes   float64 // ohm
	InternalRes     float64 // ohm, cell internal resistance at TNOM
	NominalAh       float64 // nameplate cell capacity (Ah)
	InitialSoC      float64
	CutoffVoltage   float64   // V, per-cell terminal threshold
	AmbientTempsC   []float64 // degC, sweep axis
	Rates           []RateTest
	MaxSimTime      float64 // s
	TimeStep        float64 // s
	CellTempOffset  float64 // K per parallel index, staggered initial temps
	NProc           int
	ScenarioTimeout time.Duration // wall clock per scenario, 0 = none

	// Lumped thermal parameters, shared by the reference cell model and the
	// interconnect heating update.
	CellMassCp float64 // J/K
	HTC        float64 // W/m2.K
	CellArea   float64 // m2
}

// Default mirrors the reference discharge setup: a 4-cell parallel group of
// 5 Ah cells swept over 0.5C/1C/2C at 25 degC.
func Default() Config {
	return Config{
		Series:        1,
		Parallel:      4,
		BusbarRes:     1e-3,
		ConnectionRes: 1e-2,
		InternalRes:   5e-2,
		NominalAh:     5.0,
		InitialSoC:    1.0,
		CutoffVoltage: 3.0,
		AmbientTempsC: []float64{25},
		Rates: []RateTest{
			{Name: "0.5C", Current: 10.0},
			{Name: "1C", Current: 20.0},
			{Name: "2C", Current: 40.0},
		},
		MaxSimTime: 15000,
		TimeStep:   10,
		NProc:      4,
		CellMassCp: 76.0,
		HTC:        12.0,
		CellArea:   5.3e-3,
	}
}

// Load builds a Config from defaults overridden by PACKSIM_* environment
// variables. When envFile is non-empty it is loaded first and must exist;
// otherwise a ./.env file is picked up when present.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("loading %s: %w", envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	cfg := Default()
	for _, kv := range os.Environ() {
		name, value, _ := strings.Cut(kv, "=")
		if !strings.HasPrefix(name, envPrefix) {
			continue
		}
		if err := cfg.apply(strings.TrimPrefix(name, envPrefix), value); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) apply(key, value string) error {
	var err error
	switch key {
	case "SERIES":
		c.Series, err = parseInt(key, value)
	case "PARALLEL":
		c.Parallel, err = parseInt(key, value)
	case "BUSBAR_RESISTANCE":
		c.BusbarRes, err = parseFloat(key, value)
	case "CONNECTION_RESISTANCE":
		c.ConnectionRes, err = parseFloat(key, value)
	case "INTERNAL_RESISTANCE":
		c.InternalRes, err = parseFloat(key, value)
	case "NOMINAL_CAPACITY":
		c.NominalAh, err = parseFloat(key, value)
	case "INITIAL_SOC":
		c.InitialSoC, err = parseFloat(key, value)
	case "CUTOFF_VOLTAGE":
		c.CutoffVoltage, err = parseFloat(key, value)
	case "AMBIENT_TEMPS":
		c.AmbientTempsC, err = parseFloatList(key, value)
	case "DISCHARGE_RATES":
		c.Rates, err = parseRates(value)
	case "MAX_SIM_TIME":
		c.MaxSimTime, err = parseFloat(key, value)
	case "TIME_STEP":
		c.TimeStep, err = parseFloat(key, value)
	case "CELL_TEMP_OFFSET":
		c.CellTempOffset, err = parseFloat(key, value)
	case "NPROC":
		c.NProc, err = parseInt(key, value)
	case "SCENARIO_TIMEOUT":
		c.ScenarioTimeout, err = time.ParseDuration(value)
		if err != nil {
			err = fmt.Errorf("%w: %s=%q", ErrInvalid, key, value)
		}
	case "CELL_MASS_CP":
		c.CellMassCp, err = parseFloat(key, value)
	case "HEAT_TRANSFER_COEFF":
		c.HTC, err = parseFloat(key, value)
	case "CELL_AREA":
		c.CellArea, err = parseFloat(key, value)
	default:
		return fmt.Errorf("%w: %s%s", ErrUnknownKey, envPrefix, key)
	}
	return err
}

func (c Config) Validate() error {
	switch {
	case c.Series < 1:
		return fmt.Errorf("%w: SERIES must be >= 1, got %d", ErrInvalid, c.Series)
	case c.Parallel < 1:
		return fmt.Errorf("%w: PARALLEL must be >= 1, got %d", ErrInvalid, c.Parallel)
	case c.BusbarRes < 0 || c.ConnectionRes < 0 || c.InternalRes < 0:
		return fmt.Errorf("%w: resistances must be >= 0", ErrInvalid)
	case c.NominalAh <= 0:
		return fmt.Errorf("%w: NOMINAL_CAPACITY must be > 0", ErrInvalid)
	case c.InitialSoC < 0 || c.InitialSoC > 1:
		return fmt.Errorf("%w: INITIAL_SOC must be in [0,1], got %g", ErrInvalid, c.InitialSoC)
	case c.MaxSimTime <= 0:
		return fmt.Errorf("%w: MAX_SIM_TIME must be > 0", ErrInvalid)
	case c.TimeStep <= 0:
		return fmt.Errorf("%w: TIME_STEP must be > 0", ErrInvalid)
	case len(c.Rates) == 0:
		return fmt.Errorf("%w: DISCHARGE_RATES is empty", ErrInvalid)
	case len(c.AmbientTempsC) == 0:
		return fmt.Errorf("%w: AMBIENT_TEMPS is empty", ErrInvalid)
	}
	return nil
}

func parseInt(key, value string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalid, key, value)
	}
	return n, nil
}

func parseFloat(key, value string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalid, key, value)
	}
	return f, nil
}

func parseFloatList(key, value string) ([]float64, error) {
	parts := strings.Split(value, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := parseFloat(key, p)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// parseRates reads "name:current,name:current,..."; a bare current value is
// accepted and named after its amperage.
func parseRates(value string) ([]RateTest, error) {
	parts := strings.Split(value, ",")
	out := make([]RateTest, 0, len(parts))
	for _, p := range parts {
		name, amps, found := strings.Cut(p, ":")
		if !found {
			amps = name
			name = strings.TrimSpace(amps) + "A"
		}
		f, err := parseFloat("DISCHARGE_RATES", amps)
		if err != nil {
			return nil, err
		}
		out = append(out, RateTest{Name: strings.TrimSpace(name), Current: f})
	}
	return out, nil
}
