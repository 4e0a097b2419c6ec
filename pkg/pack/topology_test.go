package pack

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"packsim/internal/consts"
	"packsim/pkg/cell"
	"packsim/pkg/config"
)

func validTopology() Topology {
	return Topology{
		Series:        2,
		Parallel:      3,
		BusbarRes:     1e-3,
		ConnectionRes: 1e-2,
		Ambient:       consts.TNOM,
		InitialSoC:    1.0,
	}
}

func TestTopologyValidate(t *testing.T) {
	require.NoError(t, validTopology().Validate())

	cases := map[string]func(*Topology){
		"zero series":         func(tp *Topology) { tp.Series = 0 },
		"negative parallel":   func(tp *Topology) { tp.Parallel = -1 },
		"negative busbar":     func(tp *Topology) { tp.BusbarRes = -1e-3 },
		"negative connection": func(tp *Topology) { tp.ConnectionRes = -1 },
		"soc above one":       func(tp *Topology) { tp.InitialSoC = 1.5 },
		"soc below zero":      func(tp *Topology) { tp.InitialSoC = -0.1 },
		"zero ambient kelvin": func(tp *Topology) { tp.Ambient = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			tp := validTopology()
			mutate(&tp)
			err := tp.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrTopology))
			// The topology error is part of the configuration taxonomy.
			assert.True(t, errors.Is(err, config.ErrInvalid))
		})
	}
}

func TestTopologyNumCells(t *testing.T) {
	assert.Equal(t, 6, validTopology().NumCells())
}

func TestTopologyInitialStates(t *testing.T) {
	tp := validTopology()
	tp.CellTempOffset = 2.0
	model := cell.NewECM(5.0, 0.05, cell.DefaultThermal())

	states, err := tp.InitialStates(model)
	require.NoError(t, err)
	require.Len(t, states, tp.Series)

	for k := range states {
		require.Len(t, states[k], tp.Parallel)
		for j, st := range states[k] {
			wantTemp := tp.Ambient + float64(j)*tp.CellTempOffset
			assert.InDelta(t, wantTemp, st.Temperature, 1e-12)
			assert.Equal(t, tp.InitialSoC, st.SoC)
			assert.InDelta(t, model.OpenCircuitVoltage(tp.InitialSoC, wantTemp), st.Voltage, 1e-12)
			assert.Zero(t, st.Current)
			assert.Zero(t, st.DischargedAh)
		}
	}
}

func TestTopologyInitialStatesInvalid(t *testing.T) {
	tp := validTopology()
	tp.Series = 0
	_, err := tp.InitialStates(cell.NewECM(5.0, 0.05, cell.DefaultThermal()))
	assert.True(t, errors.Is(err, ErrTopology))
}
