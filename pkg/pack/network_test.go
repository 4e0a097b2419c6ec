package pack

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"packsim/pkg/cell"
)

func newTestNetwork(t *testing.T, tp Topology) (*Network, *cell.ECM, [][]cell.State) {
	t.Helper()
	model := cell.NewECM(5.0, 0.05, cell.DefaultThermal())
	net, err := NewNetwork(tp, model)
	require.NoError(t, err)
	t.Cleanup(net.Destroy)

	states, err := tp.InitialStates(model)
	require.NoError(t, err)
	return net, model, states
}

func TestNetworkCurrentConservation(t *testing.T) {
	tp := validTopology()
	tp.CellTempOffset = 2.0
	net, _, states := newTestNetwork(t, tp)

	const total = 10.0
	sol, err := net.Solve(states, total)
	require.NoError(t, err)

	// Every series group carries the full pack current.
	for k, row := range sol.Currents {
		sum := 0.0
		for _, i := range row {
			sum += i
		}
		assert.InDelta(t, total, sum, 1e-6, "group %d", k)
	}
}

func TestNetworkBranchVoltageDrop(t *testing.T) {
	tp := validTopology()
	tp.CellTempOffset = 2.0
	net, model, states := newTestNetwork(t, tp)

	sol, err := net.Solve(states, 10.0)
	require.NoError(t, err)

	// Each branch's source voltage minus its resistive drop must land on the
	// group's rail-to-rail voltage.
	for k := range states {
		for j, st := range states[k] {
			e := model.OpenCircuitVoltage(st.SoC, st.Temperature)
			r := model.InternalResistance(st.SoC, st.Temperature) + tp.ConnectionRes
			assert.InDelta(t, sol.Group[k], e-sol.Currents[k][j]*r, 1e-9, "cell %d_%d", k, j)
		}
	}
}

func TestNetworkHotterCellDrawsMore(t *testing.T) {
	tp := validTopology()
	tp.CellTempOffset = 2.0
	net, _, states := newTestNetwork(t, tp)

	sol, err := net.Solve(states, 10.0)
	require.NoError(t, err)

	// Resistance falls with temperature, so within a group the warmest branch
	// carries the most current.
	for k, row := range sol.Currents {
		assert.Greater(t, row[2], row[1], "group %d", k)
		assert.Greater(t, row[1], row[0], "group %d", k)
	}
}

func TestNetworkTerminalVoltage(t *testing.T) {
	tp := validTopology()
	net, _, states := newTestNetwork(t, tp)

	const total = 10.0
	sol, err := net.Solve(states, total)
	require.NoError(t, err)

	// Terminal voltage stacks group voltages minus the busbar drop.
	want := sol.Group[0] + sol.Group[1] - total*tp.BusbarRes
	assert.InDelta(t, want, sol.Terminal, 1e-6)
	assert.Greater(t, sol.Terminal, 0.0)
}

func TestNetworkZeroBusbarMergesJunctions(t *testing.T) {
	tp := validTopology()
	tp.BusbarRes = 0
	net, _, states := newTestNetwork(t, tp)

	sol, err := net.Solve(states, 10.0)
	require.NoError(t, err)
	assert.InDelta(t, sol.Group[0]+sol.Group[1], sol.Terminal, 1e-9)
}

func TestNetworkApplySolution(t *testing.T) {
	tp := validTopology()
	net, model, states := newTestNetwork(t, tp)

	sol, err := net.Solve(states, 10.0)
	require.NoError(t, err)
	net.ApplySolution(states, sol)

	for k := range states {
		for j, st := range states[k] {
			assert.Equal(t, sol.Currents[k][j], st.Current)
			want := model.OpenCircuitVoltage(st.SoC, st.Temperature) -
				st.Current*model.InternalResistance(st.SoC, st.Temperature)
			assert.InDelta(t, want, st.Voltage, 1e-12)
		}
	}
}

func TestNewNetworkRejectsInvalidTopology(t *testing.T) {
	tp := validTopology()
	tp.Parallel = 0
	_, err := NewNetwork(tp, cell.NewECM(5.0, 0.05, cell.DefaultThermal()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTopology))
}
