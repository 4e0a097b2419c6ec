// Package analysis drives one discharge scenario to completion: it couples
// the per-step Kirchhoff current-distribution solve with the cell model's
// electro-thermal update and terminates on the first matching event.
package analysis

// Termination reasons. Exactly one is recorded per scenario run.
const (
	ReasonVoltageCutoff = "voltage_cutoff"
	ReasonTimeLimit     = "time_limit"
	ReasonSolverFailure = "solver_failure"
	ReasonTimeout       = "timeout"
)

type convergence struct {
	maxIter int
	abstol  float64
	reltol  float64
}

func defaultConvergence() convergence {
	return convergence{
		maxIter: 100,
		abstol:  1e-12,
		reltol:  1e-6,
	}
}

// Series holds one scenario's sampled variables keyed by name, in step
// order. "TIME" is the sample clock; every other key has one value per
// stored time point.
type Series map[string][]float64

func (s Series) Store(t float64, sample map[string]float64) {
	s["TIME"] = append(s["TIME"], t)
	for name, v := range sample {
		s[name] = append(s[name], v)
	}
}

// StoreInterpolated appends a sample linearly interpolated between the last
// stored sample and cand, at fraction frac of the interval.
func (s Series) StoreInterpolated(t float64, cand map[string]float64, frac float64) {
	n := s.Len()
	for name, v := range cand {
		prev := v
		if vals := s[name]; n > 0 && len(vals) == n {
			prev = vals[n-1]
		}
		s[name] = append(s[name], prev+frac*(v-prev))
	}
	s["TIME"] = append(s["TIME"], t)
}

func (s Series) Len() int { return len(s["TIME"]) }

// Last returns the most recent value of one variable, or 0 when absent.
func (s Series) Last(name string) float64 {
	vals := s[name]
	if len(vals) == 0 {
		return 0
	}
	return vals[len(vals)-1]
}
