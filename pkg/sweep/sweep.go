// Package sweep expands parameter axes into independent scenarios and runs
// them through the discharge coordinator, collecting results keyed by
// scenario identity. Scenarios share no mutable state; a failure in one is
// recorded against its key and never aborts the rest of the sweep.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"packsim/pkg/analysis"
	"packsim/pkg/config"
)

// Recognized axis names.
const (
	AxisRate    = "rate"    // pack discharge current (A)
	AxisAmbient = "ambient" // ambient temperature (K)
)

// Point is one labeled value on an axis, e.g. "1C" -> 20.0.
type Point struct {
	Label string
	Value float64
}

// Axis is one sweep dimension. Points are enumerated in the order given;
// result keys preserve that order.
type Axis struct {
	Name   string
	Points []Point
}

// Scenario is one fully specified point of the sweep grid. Its key is the
// identity results are grouped under.
type Scenario struct {
	Key    string
	Values map[string]Point // axis name -> applied point
	Params analysis.Params
}

// Record pairs a scenario with its finished result, or with the error that
// kept it from producing one.
type Record struct {
	Scenario Scenario
	Result   *analysis.Result
	Err      string
}

// Result collects every scenario of one sweep. Order preserves axis
// enumeration; the map is complete and read-only once Run returns.
type Result struct {
	ID    uuid.UUID
	Order []string
	Runs  map[string]*Record
}

type Option func(*Sweep)

// WithWorkers caps the number of scenarios running concurrently.
func WithWorkers(n int) Option {
	return func(s *Sweep) { s.workers = n }
}

// WithScenarioTimeout sets the wall-clock budget per scenario.
func WithScenarioTimeout(d time.Duration) Option {
	return func(s *Sweep) { s.timeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Sweep) { s.log = l }
}

// Sweep orchestrates the cross-product of axes over a base scenario.
type Sweep struct {
	base    analysis.Params
	axes    []Axis
	workers int
	timeout time.Duration
	log     *slog.Logger

	mu sync.Mutex // serializes result-map inserts from parallel workers
}

func New(base analysis.Params, axes []Axis, opts ...Option) *Sweep {
	s := &Sweep{
		base:    base,
		axes:    axes,
		workers: 1,
		log:     slog.Default().With("component", "sweep"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.workers < 1 {
		s.workers = 1
	}
	return s
}

// Scenarios expands the axis cross-product in enumeration order: the first
// axis varies slowest.
func (s *Sweep) Scenarios() ([]Scenario, error) {
	if len(s.axes) == 0 {
		return nil, fmt.Errorf("%w: sweep needs at least one axis", config.ErrInvalid)
	}
	for _, ax := range s.axes {
		if len(ax.Points) == 0 {
			return nil, fmt.Errorf("%w: axis %q has no points", config.ErrInvalid, ax.Name)
		}
	}

	scenarios := []Scenario{{Params: s.base, Values: map[string]Point{}}}
	for _, ax := range s.axes {
		expanded := make([]Scenario, 0, len(scenarios)*len(ax.Points))
		for _, sc := range scenarios {
			for _, pt := range ax.Points {
				next := Scenario{
					Params: sc.Params,
					Values: make(map[string]Point, len(sc.Values)+1),
				}
				for k, v := range sc.Values {
					next.Values[k] = v
				}
				next.Values[ax.Name] = pt
				if err := applyPoint(&next.Params, ax.Name, pt); err != nil {
					return nil, err
				}
				key := ax.Name + "=" + pointLabel(pt)
				if sc.Key != "" {
					key = sc.Key + "/" + key
				}
				next.Key = key
				expanded = append(expanded, next)
			}
		}
		scenarios = expanded
	}
	return scenarios, nil
}

// Run executes every scenario, in parallel up to the worker limit, and
// assembles the finalized sweep result. Per-scenario failures are recorded;
// Run itself only fails when the grid cannot be expanded.
func (s *Sweep) Run(ctx context.Context) (*Result, error) {
	scenarios, err := s.Scenarios()
	if err != nil {
		return nil, err
	}

	out := &Result{
		ID:    uuid.New(),
		Order: make([]string, len(scenarios)),
		Runs:  make(map[string]*Record, len(scenarios)),
	}
	for i, sc := range scenarios {
		out.Order[i] = sc.Key
	}

	s.log.Info("sweep started", "id", out.ID, "scenarios", len(scenarios), "workers", s.workers)

	g := &errgroup.Group{}
	g.SetLimit(s.workers)
	for _, sc := range scenarios {
		sc := sc
		g.Go(func() error {
			runCtx := ctx
			if s.timeout > 0 {
				var cancel context.CancelFunc
				runCtx, cancel = context.WithTimeout(ctx, s.timeout)
				defer cancel()
			}

			res, err := analysis.NewDischarge(sc.Params).Run(runCtx)
			rec := &Record{Scenario: sc, Result: res}
			if err != nil {
				rec.Err = err.Error()
				s.log.Warn("scenario failed", "key", sc.Key, "err", err)
			} else {
				s.log.Info("scenario complete", "key", sc.Key,
					"reason", res.Reason, "duration_s", res.Duration)
			}

			s.mu.Lock()
			out.Runs[sc.Key] = rec
			s.mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures live in the records

	s.log.Info("sweep finished", "id", out.ID)
	return out, nil
}

// Reason reports how the scenario ended: a termination reason when it ran,
// otherwise the error that rejected it.
func (r *Record) Reason() string {
	if r.Result != nil {
		return r.Result.Reason
	}
	return r.Err
}

func applyPoint(p *analysis.Params, axis string, pt Point) error {
	switch axis {
	case AxisRate:
		p.Current = pt.Value
	case AxisAmbient:
		p.Topology.Ambient = pt.Value
	default:
		return fmt.Errorf("%w: unknown sweep axis %q", config.ErrInvalid, axis)
	}
	return nil
}

func pointLabel(pt Point) string {
	if pt.Label != "" {
		return pt.Label
	}
	return strconv.FormatFloat(pt.Value, 'g', -1, 64)
}

// Keys is a convenience for printing: the ordered scenario identities joined
// by commas.
func (r *Result) Keys() string {
	return strings.Join(r.Order, ", ")
}
