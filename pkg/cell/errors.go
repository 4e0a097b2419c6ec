package cell

import (
	"errors"
	"fmt"
)

// ErrDivergence indicates a non-recoverable numerical failure while
// advancing a cell or resolving the pack network.
var ErrDivergence = errors.New("cell: solver divergence")

// DivergenceError carries where a solve gave up.
type DivergenceError struct {
	Time       float64 // simulated time (s)
	Iterations int
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("solver divergence at t=%gs after %d iterations", e.Time, e.Iterations)
}

func (e *DivergenceError) Unwrap() error { return ErrDivergence }
