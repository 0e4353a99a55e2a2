// Package plots renders quick diagnostic plots of a fitted emulator engine:
// the surrogate prediction along one parameter axis, optionally against the
// true function, with every other parameter pinned at the expansion center.
package plots

import (
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/gomlx/emulator/emulators/taylor"
)

// SliceConfig configures one Slice plot. The zero value of the optional
// fields means: 101 steps, output dimension 0, no reference curve.
type SliceConfig struct {
	// Param is the index of the parameter swept along the X axis.
	Param int

	// Min, Max are the sweep range.
	Min, Max float64

	// Steps is the number of sweep points (default 101).
	Steps int

	// Output selects the output dimension plotted (default 0).
	Output int

	// Reference, if set, is the true function, plotted alongside the
	// surrogate for comparison.
	Reference func(x []float64) float64
}

// Slice writes a plot of the surrogate along one parameter axis. The image
// format follows the path extension (.png, .svg, .pdf, ...).
func Slice(engine *taylor.Engine, cfg SliceConfig, path string) error {
	if !engine.IsFitted() {
		return errors.Errorf("cannot plot an unfitted engine")
	}
	state := engine.State()
	if cfg.Param < 0 || cfg.Param >= state.NumParams() {
		return errors.Errorf("parameter index %d out of range, engine has %d parameters", cfg.Param, state.NumParams())
	}
	if cfg.Output < 0 || cfg.Output >= state.NumOutputs {
		return errors.Errorf("output index %d out of range, engine has %d outputs", cfg.Output, state.NumOutputs)
	}
	steps := cfg.Steps
	if steps <= 1 {
		steps = 101
	}

	point := append([]float64(nil), state.Center...)
	surrogate := make(plotter.XYs, steps)
	var reference plotter.XYs
	if cfg.Reference != nil {
		reference = make(plotter.XYs, steps)
	}
	for i := 0; i < steps; i++ {
		x := cfg.Min + (cfg.Max-cfg.Min)*float64(i)/float64(steps-1)
		point[cfg.Param] = x
		surrogate[i].X = x
		surrogate[i].Y = engine.Predict(point)[cfg.Output]
		if reference != nil {
			reference[i].X = x
			reference[i].Y = cfg.Reference(point)
		}
	}

	p := plot.New()
	p.Title.Text = "Taylor surrogate slice"
	p.X.Label.Text = engine.Params()[cfg.Param]
	p.Y.Label.Text = "prediction"

	line, err := plotter.NewLine(surrogate)
	if err != nil {
		return errors.Wrap(err, "failed to build surrogate line")
	}
	p.Add(line)
	p.Legend.Add("surrogate", line)

	if reference != nil {
		refLine, err := plotter.NewLine(reference)
		if err != nil {
			return errors.Wrap(err, "failed to build reference line")
		}
		refLine.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(refLine)
		p.Legend.Add("reference", refLine)
	}

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "failed to save plot to %q", path)
	}
	return nil
}
