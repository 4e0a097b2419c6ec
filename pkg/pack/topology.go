// Package pack builds the electrical network of a battery pack: S series
// groups of P parallel cell branches joined by busbar and interconnect
// resistances, solved per time step as a nodal conductance system.
package pack

import (
	"fmt"

	"packsim/pkg/cell"
	"packsim/pkg/config"
)

// ErrTopology indicates an invalid pack arrangement. It wraps
// config.ErrInvalid so callers can match the whole configuration taxonomy.
var ErrTopology = fmt.Errorf("pack: invalid topology: %w", config.ErrInvalid)

// Topology describes one pack arrangement. It is immutable for the lifetime
// of a scenario run.
type Topology struct {
	Series        int     // series groups
	Parallel      int     // cells per group
	BusbarRes     float64 // busbar resistance between series groups (ohm)
	ConnectionRes float64 // per-branch interconnect resistance (ohm)
	Ambient       float64 // ambient temperature (K)
	InitialSoC    float64

	// CellTempOffset staggers initial cell temperatures within a group by a
	// fixed increment per parallel index (K per cell).
	CellTempOffset float64
}

func (t Topology) Validate() error {
	switch {
	case t.Series < 1:
		return fmt.Errorf("%w: series groups must be >= 1, got %d", ErrTopology, t.Series)
	case t.Parallel < 1:
		return fmt.Errorf("%w: parallel cells must be >= 1, got %d", ErrTopology, t.Parallel)
	case t.BusbarRes < 0:
		return fmt.Errorf("%w: busbar resistance must be >= 0, got %g", ErrTopology, t.BusbarRes)
	case t.ConnectionRes < 0:
		return fmt.Errorf("%w: connection resistance must be >= 0, got %g", ErrTopology, t.ConnectionRes)
	case t.InitialSoC < 0 || t.InitialSoC > 1:
		return fmt.Errorf("%w: initial SoC must be in [0,1], got %g", ErrTopology, t.InitialSoC)
	case t.Ambient <= 0:
		return fmt.Errorf("%w: ambient temperature must be > 0 K, got %g", ErrTopology, t.Ambient)
	}
	return nil
}

func (t Topology) NumCells() int { return t.Series * t.Parallel }

// InitialStates builds the starting state grid, one row per series group.
// All cells share the topology's initial SoC; initial temperatures start at
// ambient plus the configured per-cell increment.
func (t Topology) InitialStates(model cell.Model) ([][]cell.State, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	states := make([][]cell.State, t.Series)
	for k := range states {
		states[k] = make([]cell.State, t.Parallel)
		for j := range states[k] {
			temp := t.Ambient + float64(j)*t.CellTempOffset
			states[k][j] = cell.State{
				Voltage:     model.OpenCircuitVoltage(t.InitialSoC, temp),
				Temperature: temp,
				SoC:         t.InitialSoC,
			}
		}
	}
	return states, nil
}
