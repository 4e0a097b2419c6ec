// Package plot renders normalized comparison tables as multi-curve images
// for the presentation layer. The simulation core does not depend on it.
package plot

import (
	"fmt"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"packsim/pkg/result"
)

// Comparison draws one curve per scenario column of the table and saves the
// image to path (format by extension: .png, .svg, .pdf). NaN cells, where a
// scenario ended before the axis position, are skipped.
func Comparison(tbl *result.Table, title, xLabel, yLabel, path string) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())

	for c, key := range tbl.Keys {
		pts := make(plotter.XYs, 0, len(tbl.Axis))
		for r, x := range tbl.Axis {
			y := tbl.Data.At(r, c)
			if math.IsNaN(y) {
				continue
			}
			pts = append(pts, plotter.XY{X: x, Y: y})
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("plotting %s: %w", key, err)
		}
		line.Color = plotutil.Color(c)
		p.Add(line)
		p.Legend.Add(key, line)
	}
	p.Legend.Top = true

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	return nil
}
