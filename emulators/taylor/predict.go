package taylor

import (
	"math"

	"github.com/gomlx/exceptions"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/gomlx/emulator/types/multiindex"
)

// Predict implements emulators.Engine: it evaluates the surrogate at the
// parameter point x, returning one value per output dimension.
//
// It is a pure function of the broadcast state and is safe for concurrent
// use from any rank. It panics (an exceptions panic with a stack trace) if
// the engine is not fitted or len(x) disagrees with the fitted center.
func (e *Engine) Predict(x []float64) []float64 {
	state := e.mustState()
	if len(x) != state.NumParams() {
		exceptions.Panicf("taylor: point has %d dimensions, engine was fitted over %d parameters", len(x), state.NumParams())
	}
	diff := make([]float64, len(x))
	floats.SubTo(diff, x, state.Center)

	basis := make([]float64, state.NumTerms())
	basisTerms(basis, diff, state.Powers)

	out := make([]float64, state.NumOutputs)
	result := mat.NewVecDense(state.NumOutputs, out)
	result.MulVec(state.derivs().T(), mat.NewVecDense(len(basis), basis))
	return out
}

// PredictBatch evaluates the surrogate at every row of x, returning a
// points×outputs matrix. Same contract as Predict.
func (e *Engine) PredictBatch(x mat.Matrix) *mat.Dense {
	state := e.mustState()
	numPoints, dims := x.Dims()
	if dims != state.NumParams() {
		exceptions.Panicf("taylor: points have %d dimensions, engine was fitted over %d parameters", dims, state.NumParams())
	}
	basis := mat.NewDense(numPoints, state.NumTerms(), nil)
	diff := make([]float64, dims)
	point := make([]float64, dims)
	for i := 0; i < numPoints; i++ {
		mat.Row(point, i, x)
		floats.SubTo(diff, point, state.Center)
		basisTerms(basis.RawRowView(i), diff, state.Powers)
	}
	result := mat.NewDense(numPoints, state.NumOutputs, nil)
	result.Mul(basis, state.derivs())
	return result
}

func (e *Engine) mustState() *State {
	if e.state == nil {
		exceptions.Panicf("taylor: engine is not fitted; call Fit or FromState first")
	}
	return e.state
}

// basisTerms fills dst with one polynomial basis value per term: the product
// over dimensions of diff^power. Dimensions with power 0 contribute a factor
// of exactly 1 and are skipped entirely, so a zero or negative offset is
// never raised to the zero power (the 0^0 guard).
func basisTerms(dst, diff []float64, powers []multiindex.MultiIndex) {
	for j, mi := range powers {
		term := 1.0
		for i, p := range mi {
			if p == 0 {
				continue
			}
			term *= math.Pow(diff[i], float64(p))
		}
		dst[j] = term
	}
}

// derivs views the flat coefficient storage as a terms×outputs matrix.
func (s *State) derivs() *mat.Dense {
	return mat.NewDense(s.NumTerms(), s.NumOutputs, s.Derivatives)
}
