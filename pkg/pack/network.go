package pack

import (
	"fmt"

	"packsim/pkg/cell"
	"packsim/pkg/matrix"
)

const gmin = 1e-12

// Network is the electrical model of one pack. Cell branches stamp as their
// Norton equivalent (E/R current injection plus 1/R conductance), busbar
// resistances join series groups, and the commanded pack current is drawn
// from the terminal node. Branch currents recovered from the node voltages
// satisfy Kirchhoff's current law by construction.
type Network struct {
	topo   Topology
	model  cell.Model
	sys    *matrix.System
	top    []int // node of each group's positive rail; top[0] is the pack terminal
	bottom []int // node of each group's negative rail; ground for the last group
}

// Solution is the outcome of one network solve.
type Solution struct {
	Terminal float64     // pack terminal voltage (V)
	Group    []float64   // rail-to-rail voltage per series group (V)
	Currents [][]float64 // discharge current per cell branch (A)
}

func NewNetwork(topo Topology, model cell.Model) (*Network, error) {
	if err := topo.Validate(); err != nil {
		return nil, err
	}

	n := &Network{
		topo:   topo,
		model:  model,
		top:    make([]int, topo.Series),
		bottom: make([]int, topo.Series),
	}

	// Node assignment: terminal first, then one junction per series joint.
	// A zero busbar resistance collapses the joint to a single node.
	next := 1
	n.top[0] = next
	next++
	for k := 0; k < topo.Series-1; k++ {
		if topo.BusbarRes > 0 {
			n.bottom[k] = next
			next++
			n.top[k+1] = next
			next++
		} else {
			n.bottom[k] = next
			n.top[k+1] = next
			next++
		}
	}
	n.bottom[topo.Series-1] = 0 // ground

	sys, err := matrix.NewSystem(next - 1)
	if err != nil {
		return nil, fmt.Errorf("pack network: %v", err)
	}
	n.sys = sys

	return n, nil
}

// Solve resolves the current distribution for the given cell states and
// commanded total discharge current.
func (n *Network) Solve(states [][]cell.State, totalCurrent float64) (*Solution, error) {
	if err := n.stamp(states, totalCurrent); err != nil {
		return nil, err
	}
	if err := n.sys.Solve(); err != nil {
		return nil, err
	}

	sol := n.sys.Solution()
	nodeV := func(idx int) float64 {
		if idx == 0 {
			return 0
		}
		return sol[idx]
	}

	out := &Solution{
		Terminal: nodeV(n.top[0]),
		Group:    make([]float64, n.topo.Series),
		Currents: make([][]float64, n.topo.Series),
	}
	for k := 0; k < n.topo.Series; k++ {
		dv := nodeV(n.top[k]) - nodeV(n.bottom[k])
		out.Group[k] = dv
		out.Currents[k] = make([]float64, n.topo.Parallel)
		for j := 0; j < n.topo.Parallel; j++ {
			st := states[k][j]
			e := n.model.OpenCircuitVoltage(st.SoC, st.Temperature)
			r := n.branchResistance(st)
			out.Currents[k][j] = (e - dv) / r
		}
	}
	return out, nil
}

// ApplySolution writes solved branch currents and the implied cell terminal
// voltages back onto a state grid. Used for the t=0 sample, before any
// stepping has happened.
func (n *Network) ApplySolution(states [][]cell.State, sol *Solution) {
	for k := range states {
		for j := range states[k] {
			st := &states[k][j]
			i := sol.Currents[k][j]
			st.Current = i
			st.Voltage = n.model.OpenCircuitVoltage(st.SoC, st.Temperature) -
				i*n.model.InternalResistance(st.SoC, st.Temperature)
		}
	}
}

func (n *Network) Topology() Topology { return n.topo }

func (n *Network) Destroy() {
	if n.sys != nil {
		n.sys.Destroy()
	}
}

func (n *Network) stamp(states [][]cell.State, totalCurrent float64) error {
	n.sys.Clear()

	for k := 0; k < n.topo.Series; k++ {
		t, b := n.top[k], n.bottom[k]
		for j := 0; j < n.topo.Parallel; j++ {
			st := states[k][j]
			g := 1.0 / n.branchResistance(st)
			e := n.model.OpenCircuitVoltage(st.SoC, st.Temperature)
			if err := n.stampConductance(t, b, g); err != nil {
				return err
			}
			if t != 0 {
				if err := n.sys.AddRHS(t, e*g); err != nil {
					return err
				}
			}
			if b != 0 {
				if err := n.sys.AddRHS(b, -e*g); err != nil {
					return err
				}
			}
		}
		if k < n.topo.Series-1 && n.topo.BusbarRes > 0 {
			if err := n.stampConductance(n.bottom[k], n.top[k+1], 1.0/n.topo.BusbarRes); err != nil {
				return err
			}
		}
	}

	// Discharge pulls the commanded current out of the terminal node.
	if err := n.sys.AddRHS(n.top[0], -totalCurrent); err != nil {
		return err
	}

	n.sys.LoadGmin(gmin)
	return nil
}

func (n *Network) stampConductance(n1, n2 int, g float64) error {
	if n1 != 0 {
		if err := n.sys.AddElement(n1, n1, g); err != nil {
			return err
		}
		if n2 != 0 {
			if err := n.sys.AddElement(n1, n2, -g); err != nil {
				return err
			}
		}
	}
	if n2 != 0 {
		if n1 != 0 {
			if err := n.sys.AddElement(n2, n1, -g); err != nil {
				return err
			}
		}
		if err := n.sys.AddElement(n2, n2, g); err != nil {
			return err
		}
	}
	return nil
}

func (n *Network) branchResistance(st cell.State) float64 {
	return n.model.InternalResistance(st.SoC, st.Temperature) + n.topo.ConnectionRes
}
