// Package cell defines the electro-thermal state of a single cell and the
// adapter boundary to the electrochemical solver. The engine only ever talks
// to a Model; the bundled equivalent-circuit model makes the engine runnable
// without an external solver.
package cell

// State is the electro-thermal state of one cell at a point in time.
// Discharge current is positive out of the cell.
type State struct {
	Voltage      float64 // terminal voltage (V)
	Current      float64 // applied current (A)
	Temperature  float64 // internal temperature (K)
	SoC          float64 // state of charge, 0..1
	DischargedAh float64 // cumulative discharged capacity (Ah)
}

// Model wraps an electrochemical cell solver. Step advances one cell by dt
// seconds under a fixed applied current and returns the new state without
// mutating the input; non-recoverable numerical failure is reported by an
// error wrapping ErrDivergence. OpenCircuitVoltage and InternalResistance
// expose the Thevenin equivalent the network solve linearizes around.
type Model interface {
	Capacity() float64 // nameplate capacity (Ah)
	OpenCircuitVoltage(soc, temp float64) float64
	InternalResistance(soc, temp float64) float64
	Step(st State, current, dt, ambient float64) (State, error)
}
