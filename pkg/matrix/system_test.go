package matrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Two-node ladder: 1 S from node 1 to node 2, 1 S from node 2 to ground,
// 1 A injected into node 1. Expect V1 = 2 V, V2 = 1 V.
func stampLadder(t *testing.T, s *System) {
	t.Helper()
	require.NoError(t, s.AddElement(1, 1, 1))
	require.NoError(t, s.AddElement(1, 2, -1))
	require.NoError(t, s.AddElement(2, 1, -1))
	require.NoError(t, s.AddElement(2, 2, 2))
	require.NoError(t, s.AddRHS(1, 1))
}

func TestSystemSolveLadder(t *testing.T) {
	s, err := NewSystem(2)
	require.NoError(t, err)
	defer s.Destroy()

	stampLadder(t, s)
	require.NoError(t, s.Solve())

	sol := s.Solution()
	assert.InDelta(t, 2.0, sol[1], 1e-9)
	assert.InDelta(t, 1.0, sol[2], 1e-9)
}

func TestSystemClearAndResolve(t *testing.T) {
	s, err := NewSystem(2)
	require.NoError(t, err)
	defer s.Destroy()

	stampLadder(t, s)
	require.NoError(t, s.Solve())

	// Double the injection after a clear; voltages must double too.
	s.Clear()
	stampLadder(t, s)
	require.NoError(t, s.AddRHS(1, 1))
	require.NoError(t, s.Solve())

	sol := s.Solution()
	assert.InDelta(t, 4.0, sol[1], 1e-9)
	assert.InDelta(t, 2.0, sol[2], 1e-9)
}

func TestSystemIndexBounds(t *testing.T) {
	s, err := NewSystem(1)
	require.NoError(t, err)
	defer s.Destroy()

	assert.Error(t, s.AddElement(0, 1, 1))
	assert.Error(t, s.AddElement(1, 2, 1))
	assert.Error(t, s.AddRHS(2, 1))
}
