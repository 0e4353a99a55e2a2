// Package point implements the trivial order-0 emulator engine: it records
// the function value at the expansion center and predicts that constant
// everywhere. Useful as a baseline and to exercise emulator plumbing without
// derivative sampling beyond the center evaluation.
package point

import (
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"

	"github.com/gomlx/emulator/emulators"
	"github.com/gomlx/emulator/samples"
	"github.com/gomlx/emulator/types/multiindex"
)

// Name under which the engine registers itself.
const Name = "point"

func init() {
	emulators.Register(Name, func(params ...string) emulators.Engine {
		return New(params...)
	})
}

// Engine predicts the center value regardless of the input point.
type Engine struct {
	params []string
	center []float64
	value  []float64
}

var _ emulators.Engine = (*Engine)(nil)

// New creates an unfitted point engine over the given varied parameters.
func New(params ...string) *Engine {
	return &Engine{params: params}
}

// Name implements emulators.Engine.
func (e *Engine) Name() string { return Name }

// IsFitted reports whether Fit succeeded.
func (e *Engine) IsFitted() bool { return e.value != nil }

// Fit implements emulators.Engine: it keeps the order-0 entry of y, the
// function value at the center.
func (e *Engine) Fit(x *samples.Table, y samples.DerivativeSet) error {
	if y == nil || y.Len() == 0 {
		return errors.Errorf("samples carry no derivative information; the point engine needs at least the order-0 value")
	}
	if x == nil || x.NumParams() != len(e.params) {
		return errors.Errorf("sample table does not match the %d varied parameters %v", len(e.params), e.params)
	}
	value := y.Value(multiindex.Zero(len(e.params)))
	if value == nil {
		return errors.Errorf("samples have no order-0 entry: the center value is required")
	}
	e.center = x.Center()
	e.value = append([]float64(nil), value...)
	return nil
}

// Predict implements emulators.Engine.
func (e *Engine) Predict(x []float64) []float64 {
	if e.value == nil {
		exceptions.Panicf("point: engine is not fitted; call Fit first")
	}
	if len(x) != len(e.center) {
		exceptions.Panicf("point: point has %d dimensions, engine was fitted over %d parameters", len(x), len(e.center))
	}
	return append([]float64(nil), e.value...)
}
