// Package result normalizes heterogeneous-length scenario time series onto
// common axes so sweeps can be compared curve against curve. Scenarios that
// ended in solver_failure stay in the raw sweep result but are excluded
// here.
package result

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"packsim/pkg/sweep"
)

// Table is a normalized comparison of one variable across scenarios: one
// row per axis sample, one column per scenario, columns in sweep
// enumeration order. Cells are NaN where a scenario ended before the axis
// position.
type Table struct {
	AxisName string
	Axis     []float64
	Keys     []string
	Data     *mat.Dense
}

// Column returns one scenario's resampled values.
func (t *Table) Column(key string) []float64 {
	for i, k := range t.Keys {
		if k == key {
			return mat.Col(nil, i, t.Data)
		}
	}
	return nil
}

// Summary holds the per-scenario scalars of a finished sweep.
type Summary struct {
	Key        string
	Reason     string
	Duration   float64 // s
	CapacityAh float64
	Err        string
}

// Summaries lists every scenario of the sweep, failed ones included, in
// enumeration order.
func Summaries(sw *sweep.Result) []Summary {
	out := make([]Summary, 0, len(sw.Order))
	for _, key := range sw.Order {
		rec := sw.Runs[key]
		if rec == nil {
			continue
		}
		s := Summary{Key: key, Err: rec.Err}
		if rec.Result != nil {
			s.Reason = rec.Result.Reason
			s.Duration = rec.Result.Duration
			s.CapacityAh = rec.Result.CapacityAh
		}
		out = append(out, s)
	}
	return out
}

// OnNormalizedTime resamples a variable for each comparable scenario onto a
// shared t/t_end axis of n points. Every scenario covers the whole axis, so
// the table has no holes.
func OnNormalizedTime(sw *sweep.Result, variable string, n int) (*Table, error) {
	return resample(sw, variable, "t/t_end", n, func(rec *sweep.Record) ([]float64, float64) {
		times := rec.Result.Series["TIME"]
		end := times[len(times)-1]
		if end <= 0 {
			return nil, 0
		}
		xs := make([]float64, len(times))
		for i, t := range times {
			xs[i] = t / end
		}
		return xs, 1.0
	})
}

// OnCapacityAxis resamples onto a shared discharged-capacity axis spanning
// the largest final capacity in the sweep; scenarios that discharged less
// carry NaN past their own end.
func OnCapacityAxis(sw *sweep.Result, variable string, n int) (*Table, error) {
	var maxQ float64
	for _, key := range sw.Order {
		if rec := sw.Runs[key]; includable(rec) {
			if q := rec.Result.CapacityAh; q > maxQ {
				maxQ = q
			}
		}
	}
	return resample(sw, variable, "capacity_ah", n, func(rec *sweep.Record) ([]float64, float64) {
		return rec.Result.Series["Q(pack)"], maxQ
	})
}

// resample builds the table: xsOf returns each scenario's sample positions
// and the shared axis extent.
func resample(sw *sweep.Result, variable, axisName string, n int,
	xsOf func(*sweep.Record) ([]float64, float64)) (*Table, error) {

	if n < 2 {
		return nil, fmt.Errorf("result: need at least 2 axis points, got %d", n)
	}

	type column struct {
		key    string
		xs, ys []float64
	}
	var cols []column
	var extent float64
	for _, key := range sw.Order {
		rec := sw.Runs[key]
		if !includable(rec) {
			continue
		}
		ys := rec.Result.Series[variable]
		xs, ext := xsOf(rec)
		if len(xs) < 2 || len(xs) != len(ys) {
			continue
		}
		if ext > extent {
			extent = ext
		}
		cols = append(cols, column{key: key, xs: xs, ys: ys})
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("result: no comparable scenarios for %q", variable)
	}

	tbl := &Table{
		AxisName: axisName,
		Axis:     make([]float64, n),
		Keys:     make([]string, len(cols)),
		Data:     mat.NewDense(n, len(cols), nil),
	}
	for r := 0; r < n; r++ {
		tbl.Axis[r] = extent * float64(r) / float64(n-1)
	}
	for c, col := range cols {
		tbl.Keys[c] = col.key
		for r, x := range tbl.Axis {
			tbl.Data.Set(r, c, interp(col.xs, col.ys, x))
		}
	}
	return tbl, nil
}

// includable reports whether a record carries a series fit for aggregation.
func includable(rec *sweep.Record) bool {
	return rec != nil && rec.Result != nil && !rec.Result.Invalid && rec.Result.Series.Len() > 1
}

// interp linearly interpolates ys over the monotonically increasing xs;
// positions outside the sampled range yield NaN.
func interp(xs, ys []float64, x float64) float64 {
	last := len(xs) - 1
	if x < xs[0] || x > xs[last] {
		return math.NaN()
	}
	for i := 1; i <= last; i++ {
		if x <= xs[i] {
			if xs[i] == xs[i-1] {
				return ys[i]
			}
			f := (x - xs[i-1]) / (xs[i] - xs[i-1])
			return ys[i-1] + f*(ys[i]-ys[i-1])
		}
	}
	return ys[last]
}
