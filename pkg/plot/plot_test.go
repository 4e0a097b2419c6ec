package plot

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gonum.org/v1/gonum/mat"

	"packsim/pkg/result"
)

func testTable() *result.Table {
	data := mat.NewDense(3, 2, []float64{
		4.0, 4.0,
		3.5, math.NaN(), // second curve ends early
		3.0, math.NaN(),
	})
	return &result.Table{
		AxisName: "capacity_ah",
		Axis:     []float64{0, 1, 2},
		Keys:     []string{"rate=0.5C", "rate=1C"},
		Data:     data,
	}
}

func TestComparisonWritesImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voltage.png")
	require.NoError(t, Comparison(testTable(), "Voltage", "Capacity (Ah)", "Voltage (V)", path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestComparisonRejectsBadPath(t *testing.T) {
	err := Comparison(testTable(), "Voltage", "x", "y", filepath.Join(t.TempDir(), "missing", "v.png"))
	assert.Error(t, err)
}
