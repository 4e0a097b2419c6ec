package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"packsim/internal/consts"
	"packsim/pkg/cell"
	"packsim/pkg/config"
	"packsim/pkg/pack"
)

// Params fully specifies one discharge scenario run.
type Params struct {
	Topology      pack.Topology
	Model         cell.Model
	Current       float64 // commanded pack discharge current (A)
	CutoffVoltage float64 // per-cell terminal voltage threshold (V)
	MaxTime       float64 // simulated time limit (s)
	TimeStep      float64 // nominal step size (s)

	// Thermal parameters for interconnect joule heating. A zero MassCp
	// disables the interconnect contribution.
	Thermal cell.Thermal
}

// Result is the finalized outcome of one scenario run. Invalid marks runs
// that ended in solver_failure; their series is partial and excluded from
// aggregation.
type Result struct {
	Series     Series
	Reason     string
	Duration   float64 // simulated time at termination (s)
	CapacityAh float64 // pack capacity discharged at termination (Ah)
	Invalid    bool
	Err        string // failure detail, empty on success
}

// Discharge drives one scenario from initial state to termination:
// initialize, step until an event fires, finalize. The per-step loop is
// strictly sequential; step n+1 depends on step n's accepted state.
type Discharge struct {
	params Params
	conv   convergence
	log    *slog.Logger
}

func NewDischarge(p Params) *Discharge {
	return &Discharge{
		params: p,
		conv:   defaultConvergence(),
		log:    slog.Default().With("component", "discharge"),
	}
}

// Run executes the scenario. Configuration problems are reported before any
// stepping happens. A run that ends in solver_failure returns both the
// partial Result and the divergence error; all other terminations return a
// Result and nil.
func (d *Discharge) Run(ctx context.Context) (*Result, error) {
	p := d.params
	if err := d.validate(); err != nil {
		return nil, err
	}

	net, err := pack.NewNetwork(p.Topology, p.Model)
	if err != nil {
		return nil, err
	}
	defer net.Destroy()

	states, err := p.Topology.InitialStates(p.Model)
	if err != nil {
		return nil, err
	}

	// A cutoff at or above the no-load initial voltage would terminate
	// immediately; signal it instead of silently accepting.
	minInit := math.Inf(1)
	for k := range states {
		for _, st := range states[k] {
			if v := p.Model.OpenCircuitVoltage(st.SoC, st.Temperature); v < minInit {
				minInit = v
			}
		}
	}
	if p.CutoffVoltage >= minInit {
		return nil, fmt.Errorf("%w: cutoff voltage %.3f V is not below initial voltage %.3f V",
			config.ErrInvalid, p.CutoffVoltage, minInit)
	}

	series := make(Series)
	var packQ float64
	t := 0.0
	dt := p.TimeStep

	// t=0 sample from the initial network solve.
	sol, err := net.Solve(states, p.Current)
	if err != nil {
		derr := &cell.DivergenceError{Time: 0}
		res := d.finalize(series, ReasonSolverFailure, 0, 0)
		res.Err = derr.Error()
		return res, derr
	}
	net.ApplySolution(states, sol)
	series.Store(0, d.sample(states, sol, 0))

	retried := false
	for t < p.MaxTime {
		if ctx.Err() != nil {
			d.log.Warn("scenario abandoned", "t", t, "cause", ctx.Err())
			return d.finalize(series, ReasonTimeout, t, packQ), nil
		}

		step := dt
		if t+step > p.MaxTime {
			step = p.MaxTime - t
		}

		next, sol, err := d.advance(net, states, step, t)
		if err != nil {
			if !retried {
				retried = true
				dt /= 2
				d.log.Warn("solve diverged, retrying once with halved step", "t", t, "dt", dt)
				continue
			}
			res := d.finalize(series, ReasonSolverFailure, t, packQ)
			res.Err = err.Error()
			return res, err
		}

		d.applyInterconnectHeat(next, sol, step)

		packQ += p.Current * step / consts.SECS_PER_HOUR
		tNew := t + step
		sample := d.sample(next, sol, packQ)

		if key, vNow := minCellVoltage(next); vNow <= p.CutoffVoltage {
			// The crossing sits between the last two samples; interpolate
			// so the measured discharge time is not biased by step size.
			vPrev := series.Last("V(" + key + ")")
			frac := 1.0
			if vPrev > vNow {
				frac = (vPrev - p.CutoffVoltage) / (vPrev - vNow)
			}
			frac = math.Max(0, math.Min(1, frac))
			tCut := t + frac*step
			series.StoreInterpolated(tCut, sample, frac)
			return d.finalize(series, ReasonVoltageCutoff, tCut, series.Last("Q(pack)")), nil
		}

		series.Store(tNew, sample)
		states = next
		t = tNew
	}

	return d.finalize(series, ReasonTimeLimit, t, packQ), nil
}

// advance resolves one coupled step: solve the network around the current
// linearization, step every cell under its branch current, and repeat until
// the branch currents settle within tolerance.
func (d *Discharge) advance(net *pack.Network, states [][]cell.State, dt, t float64) ([][]cell.State, *pack.Solution, error) {
	p := d.params
	work := states
	var prev [][]float64

	for iter := 0; iter < d.conv.maxIter; iter++ {
		sol, err := net.Solve(work, p.Current)
		if err != nil {
			return nil, nil, &cell.DivergenceError{Time: t, Iterations: iter}
		}

		next := make([][]cell.State, len(states))
		for k := range states {
			next[k] = make([]cell.State, len(states[k]))
			for j := range states[k] {
				st, err := p.Model.Step(states[k][j], sol.Currents[k][j], dt, p.Topology.Ambient)
				if err != nil {
					return nil, nil, fmt.Errorf("cell %d_%d at t=%g: %w", k+1, j+1, t, err)
				}
				next[k][j] = st
			}
		}

		if prev != nil && d.converged(prev, sol.Currents) {
			return next, sol, nil
		}
		prev = sol.Currents
		work = next // re-linearize around the end-of-step state
	}

	return nil, nil, &cell.DivergenceError{Time: t, Iterations: d.conv.maxIter}
}

func (d *Discharge) converged(old, cur [][]float64) bool {
	for k := range cur {
		for j := range cur[k] {
			diff := math.Abs(cur[k][j] - old[k][j])
			tol := d.conv.reltol*math.Max(math.Abs(cur[k][j]), math.Abs(old[k][j])) + d.conv.abstol
			if diff > tol {
				return false
			}
		}
	}
	return true
}

// applyInterconnectHeat adds busbar and connection-resistance joule heating
// on top of the cell model's own thermal update. Busbar heat spreads evenly
// over the adjacent group's cells; each branch's connection resistance heats
// its own cell.
func (d *Discharge) applyInterconnectHeat(states [][]cell.State, sol *pack.Solution, dt float64) {
	th := d.params.Thermal
	if th.MassCp <= 0 {
		return
	}
	topo := d.params.Topology
	busHeat := d.params.Current * d.params.Current * topo.BusbarRes / float64(topo.Parallel)
	for k := range states {
		for j := range states[k] {
			q := sol.Currents[k][j] * sol.Currents[k][j] * topo.ConnectionRes
			if k < topo.Series-1 {
				q += busHeat
			}
			states[k][j].Temperature += dt * q / th.MassCp
		}
	}
}

func (d *Discharge) sample(states [][]cell.State, sol *pack.Solution, packQ float64) map[string]float64 {
	m := make(map[string]float64, 4*d.params.Topology.NumCells()+5)
	var tempSum, socSum float64
	for k := range states {
		for j, st := range states[k] {
			key := fmt.Sprintf("cell_%d_%d", k+1, j+1)
			m["V("+key+")"] = st.Voltage
			m["I("+key+")"] = st.Current
			m["T("+key+")"] = st.Temperature
			m["SOC("+key+")"] = st.SoC
			tempSum += st.Temperature
			socSum += st.SoC
		}
	}
	nc := float64(d.params.Topology.NumCells())
	m["V(pack)"] = sol.Terminal
	m["I(pack)"] = d.params.Current
	m["Q(pack)"] = packQ
	m["T(mean)"] = tempSum / nc
	m["SOC(mean)"] = socSum / nc
	return m
}

func (d *Discharge) finalize(series Series, reason string, duration, capacityAh float64) *Result {
	res := &Result{
		Series:     series,
		Reason:     reason,
		Duration:   duration,
		CapacityAh: capacityAh,
		Invalid:    reason == ReasonSolverFailure,
	}
	d.log.Info("scenario finished",
		"reason", reason, "duration_s", duration, "capacity_ah", capacityAh)
	return res
}

func (d *Discharge) validate() error {
	p := d.params
	switch {
	case p.Model == nil:
		return fmt.Errorf("%w: cell model is required", config.ErrInvalid)
	case p.Current <= 0:
		return fmt.Errorf("%w: discharge current must be > 0, got %g", config.ErrInvalid, p.Current)
	case p.TimeStep <= 0:
		return fmt.Errorf("%w: time step must be > 0, got %g", config.ErrInvalid, p.TimeStep)
	case p.MaxTime <= 0:
		return fmt.Errorf("%w: max simulated time must be > 0, got %g", config.ErrInvalid, p.MaxTime)
	}
	return p.Topology.Validate()
}

func minCellVoltage(states [][]cell.State) (string, float64) {
	minV := math.Inf(1)
	var key string
	for k := range states {
		for j, st := range states[k] {
			if st.Voltage < minV {
				minV = st.Voltage
				key = fmt.Sprintf("cell_%d_%d", k+1, j+1)
			}
		}
	}
	return key, minV
}
