package matrix

import (
	"fmt"

	"github.com/edp1096/sparse"
)

// System is the sparse nodal matrix for one pack network. Rows and columns
// are 1-based; index 0 is ground and is never stamped.
type System struct {
	Size     int
	matrix   *sparse.Matrix
	rhs      []float64
	solution []float64
	config   *sparse.Configuration
}

func NewSystem(size int) (*System, error) {
	config := &sparse.Configuration{
		Real:           true,
		Expandable:     true,
		Translate:      true,
		ModifiedNodal:  true,
		TiesMultiplier: 5,
	}

	mat, err := sparse.Create(int64(size), config)
	if err != nil {
		return nil, fmt.Errorf("creating sparse matrix: %v", err)
	}

	s := &System{
		Size:     size,
		matrix:   mat,
		rhs:      make([]float64, size+1), // 1-based indexing
		solution: make([]float64, size+1),
		config:   config,
	}
	s.setupElements()

	return s, nil
}

// setupElements touches every position once so the fill-in pattern exists
// before the first factorization.
func (s *System) setupElements() {
	for i := 1; i <= s.Size; i++ {
		for j := 1; j <= s.Size; j++ {
			s.matrix.GetElement(int64(i), int64(j))
		}
	}
}

func (s *System) AddElement(i, j int, value float64) error {
	if i <= 0 || j <= 0 || i > s.Size || j > s.Size {
		return fmt.Errorf("matrix index out of bounds (i=%d, j=%d, size=%d)", i, j, s.Size)
	}
	s.matrix.GetElement(int64(i), int64(j)).Real += value
	return nil
}

func (s *System) AddRHS(i int, value float64) error {
	if i <= 0 || i > s.Size {
		return fmt.Errorf("rhs index out of bounds (i=%d, size=%d)", i, s.Size)
	}
	s.rhs[i] += value
	return nil
}

// LoadGmin adds a small leakage conductance on every diagonal to keep the
// factorization away from singular pivots.
func (s *System) LoadGmin(gmin float64) {
	for i := 1; i <= s.Size; i++ {
		if diag := s.matrix.Diags[i]; diag != nil {
			diag.Real += gmin
		}
	}
}

func (s *System) Clear() {
	s.matrix.Clear()
	for i := range s.rhs {
		s.rhs[i] = 0
	}
}

func (s *System) Solve() error {
	var err error

	err = s.matrix.Factor()
	if err != nil {
		return fmt.Errorf("matrix factorization failed: %v", err)
	}

	s.solution, err = s.matrix.Solve(s.rhs)
	if err != nil {
		return fmt.Errorf("matrix solve failed: %v", err)
	}

	return nil
}

func (s *System) RHS() []float64 {
	return s.rhs
}

// Solution returns the node values of the last Solve, 1-based like the
// stamped indices. Index 0 is ground (always 0).
func (s *System) Solution() []float64 {
	return s.solution
}

func (s *System) Destroy() {
	if s.matrix != nil {
		s.matrix.Destroy()
	}
}
