package taylor

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/gomlx/emulator/comms"
	"github.com/gomlx/emulator/samples"
	"github.com/gomlx/emulator/types/multiindex"
)

// grid1D builds a symmetric sample grid around center for one parameter.
func grid1D(t *testing.T, name string, center float64) *samples.Table {
	table, err := samples.NewTable([]string{name}, [][]float64{
		{center}, {center - 0.1}, {center + 0.1}, {center - 0.2}, {center + 0.2},
	})
	require.NoError(t, err)
	return table
}

// grid2D builds a per-parameter sweep grid around (ca, cb).
func grid2D(t *testing.T, ca, cb float64) *samples.Table {
	table, err := samples.NewTable([]string{"a", "b"}, [][]float64{
		{ca, cb},
		{ca - 0.5, cb}, {ca + 0.5, cb},
		{ca, cb - 1.0}, {ca, cb + 1.0},
	})
	require.NoError(t, err)
	return table
}

func TestFitSingleParameterOrder2(t *testing.T) {
	// f(center)=5, f'(center)=2, f''(center)=6 ⇒ terms
	// [(power=0, coeff=5), (power=1, coeff=2), (power=2, coeff=3)].
	const center = 1.5
	y := samples.NewSet(1)
	require.NoError(t, y.Add(multiindex.MultiIndex{0}, 5.0))
	require.NoError(t, y.Add(multiindex.MultiIndex{1}, 2.0))
	require.NoError(t, y.Add(multiindex.MultiIndex{2}, 6.0))

	engine := New("a").WithOrder(2)
	require.NoError(t, engine.Fit(grid1D(t, "a", center), y))
	require.True(t, engine.IsFitted())

	state := engine.State()
	require.Equal(t, []float64{center}, state.Center)
	require.Equal(t, []multiindex.MultiIndex{{0}, {1}, {2}}, state.Powers)
	require.Equal(t, []float64{5.0, 2.0, 3.0}, state.Derivatives)
	require.Equal(t, 2, state.Order)
	require.Empty(t, engine.MissingTerms())

	require.Equal(t, []float64{10.0}, engine.Predict([]float64{center + 1}))
	require.Equal(t, []float64{5.0}, engine.Predict([]float64{center}))
}

func TestFitDeduplicatesCrossTerms(t *testing.T) {
	// f(a,b) = 1 + 2da + 3db + 4da·db with da=a-1, db=b-2:
	// ∂a∂b = 4 is visited via (a,b) and (b,a); both fold into one term with
	// coefficient (1/2!)*4 + (1/2!)*4 = 4.
	y := samples.NewSet(2)
	require.NoError(t, y.Add(multiindex.MultiIndex{0, 0}, 1.0))
	require.NoError(t, y.Add(multiindex.MultiIndex{1, 0}, 2.0))
	require.NoError(t, y.Add(multiindex.MultiIndex{0, 1}, 3.0))
	require.NoError(t, y.Add(multiindex.MultiIndex{1, 1}, 4.0))
	require.NoError(t, y.Add(multiindex.MultiIndex{2, 0}, 0.0))
	require.NoError(t, y.Add(multiindex.MultiIndex{0, 2}, 0.0))

	engine := New("a", "b").WithOrder(2)
	require.NoError(t, engine.Fit(grid2D(t, 1.0, 2.0), y))

	state := engine.State()
	require.Equal(t, []float64{1.0, 2.0}, state.Center)
	// Rows of powers are unique post-dedup.
	seen := make(map[string]bool)
	for _, mi := range state.Powers {
		require.False(t, seen[mi.Key()], "duplicate term %s", mi)
		seen[mi.Key()] = true
	}
	crossAt := -1
	for j, mi := range state.Powers {
		if mi.Equal(multiindex.MultiIndex{1, 1}) {
			crossAt = j
		}
	}
	require.GreaterOrEqual(t, crossAt, 0, "cross term missing from fitted powers")
	require.Equal(t, 4.0, state.Derivatives[crossAt])
	require.Empty(t, engine.MissingTerms())

	// f(2, 4) = 1 + 2*1 + 3*2 + 4*1*2 = 17.
	require.Equal(t, []float64{17.0}, engine.Predict([]float64{2.0, 4.0}))
}

func TestFitMissingDerivativeWarnsAndZeroes(t *testing.T) {
	// The (a,b) mixed second-order entry is absent: the fit must succeed,
	// record the term with coefficient 0 and report it as missing.
	y := samples.NewSet(2)
	require.NoError(t, y.Add(multiindex.MultiIndex{0, 0}, 1.0))
	require.NoError(t, y.Add(multiindex.MultiIndex{1, 0}, 2.0))
	require.NoError(t, y.Add(multiindex.MultiIndex{0, 1}, 3.0))
	require.NoError(t, y.Add(multiindex.MultiIndex{2, 0}, 8.0))
	require.NoError(t, y.Add(multiindex.MultiIndex{0, 2}, 10.0))

	engine := New("a", "b")
	require.NoError(t, engine.Fit(grid2D(t, 0.0, 0.0), y))

	require.Len(t, engine.MissingTerms(), 1)
	require.True(t, engine.MissingTerms()[0].Equal(multiindex.MultiIndex{1, 1}))
	state := engine.State()
	for j, mi := range state.Powers {
		if mi.Equal(multiindex.MultiIndex{1, 1}) {
			require.Equal(t, 0.0, state.Derivatives[j])
			return
		}
	}
	t.Fatal("missing cross term was not recorded in the fitted powers")
}

func TestFitOrder1NeverEnumeratesCrossTerm(t *testing.T) {
	// Only pure first-order derivatives: total order 1 cannot produce the
	// (1,1) multi-index, so nothing must be reported missing.
	y := samples.NewSet(2)
	require.NoError(t, y.Add(multiindex.MultiIndex{0, 0}, 1.0))
	require.NoError(t, y.Add(multiindex.MultiIndex{1, 0}, 2.0))
	require.NoError(t, y.Add(multiindex.MultiIndex{0, 1}, 3.0))

	engine := New("a", "b").WithOrder(1)
	require.NoError(t, engine.Fit(grid2D(t, 0.0, 0.0), y))

	require.Empty(t, engine.MissingTerms())
	require.Equal(t, []multiindex.MultiIndex{{0, 0}, {1, 0}, {0, 1}}, engine.State().Powers)
}

func TestFitFrontierSkipsUnsampledCombinations(t *testing.T) {
	// Parameter b was only differentiated to order 1; the total-order-2
	// candidates touching b ((1,1) and (0,2)) exceed b's frontier and must
	// be skipped, while the pure a^2 term survives.
	y := samples.NewSet(2)
	require.NoError(t, y.Add(multiindex.MultiIndex{0, 0}, 1.0))
	require.NoError(t, y.Add(multiindex.MultiIndex{1, 0}, 2.0))
	require.NoError(t, y.Add(multiindex.MultiIndex{0, 1}, 3.0))
	require.NoError(t, y.Add(multiindex.MultiIndex{2, 0}, 8.0))

	engine := New("a", "b")
	require.NoError(t, engine.Fit(grid2D(t, 0.0, 0.0), y))

	require.Equal(t, []multiindex.MultiIndex{{0, 0}, {1, 0}, {0, 1}, {2, 0}}, engine.State().Powers)
	require.Empty(t, engine.MissingTerms())
}

func TestFitPreconditionNoDerivatives(t *testing.T) {
	engine := New("a")
	err := engine.Fit(grid1D(t, "a", 0.0), samples.NewSet(1))
	require.Error(t, err)
	require.Contains(t, err.Error(), "no derivative information")
	require.False(t, engine.IsFitted())

	err = engine.Fit(grid1D(t, "a", 0.0), nil)
	require.Error(t, err)
}

func TestPredictZeroPowerGuard(t *testing.T) {
	// Vector-valued output; the (0,1) term must be unaffected by the first
	// coordinate, including negative and zero offsets on it.
	y := samples.NewSet(2)
	require.NoError(t, y.Add(multiindex.MultiIndex{0, 0}, 1.0, -1.0))
	require.NoError(t, y.Add(multiindex.MultiIndex{1, 0}, 0.0, 0.0))
	require.NoError(t, y.Add(multiindex.MultiIndex{0, 1}, 2.0, 4.0))

	engine := New("a", "b")
	require.NoError(t, engine.Fit(grid2D(t, 1.0, 2.0), y))

	want := engine.Predict([]float64{1.0, 3.0})
	require.Equal(t, []float64{3.0, 3.0}, want)
	for _, a := range []float64{-5.0, 0.0, 1.0, 7.5} {
		require.Equal(t, want, engine.Predict([]float64{a, 3.0}), "a=%v", a)
	}
}

func TestPredictIdempotentAndConcurrent(t *testing.T) {
	y := samples.NewSet(1)
	require.NoError(t, y.Add(multiindex.MultiIndex{0}, 5.0))
	require.NoError(t, y.Add(multiindex.MultiIndex{1}, 2.0))
	engine := New("a")
	require.NoError(t, engine.Fit(grid1D(t, "a", 0.0), y))

	first := engine.Predict([]float64{0.3})
	require.Equal(t, first, engine.Predict([]float64{0.3}))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := 0; k < 100; k++ {
				require.Equal(t, first, engine.Predict([]float64{0.3}))
			}
		}()
	}
	wg.Wait()
}

func TestPredictBatch(t *testing.T) {
	y := samples.NewSet(2)
	require.NoError(t, y.Add(multiindex.MultiIndex{0, 0}, 1.0))
	require.NoError(t, y.Add(multiindex.MultiIndex{1, 0}, 2.0))
	require.NoError(t, y.Add(multiindex.MultiIndex{0, 1}, 3.0))
	engine := New("a", "b")
	require.NoError(t, engine.Fit(grid2D(t, 0.0, 0.0), y))

	points := mat.NewDense(3, 2, []float64{
		0.0, 0.0,
		1.0, 0.0,
		1.0, 1.0,
	})
	got := engine.PredictBatch(points)
	rows, cols := got.Dims()
	require.Equal(t, 3, rows)
	require.Equal(t, 1, cols)
	require.Equal(t, 1.0, got.At(0, 0))
	require.Equal(t, 3.0, got.At(1, 0))
	require.Equal(t, 6.0, got.At(2, 0))

	// Batch agrees with the single-point path.
	for i := 0; i < rows; i++ {
		point := mat.Row(nil, i, points)
		require.Equal(t, engine.Predict(point)[0], got.At(i, 0))
	}
}

func TestPredictContractViolations(t *testing.T) {
	require.Panics(t, func() { New("a").Predict([]float64{1.0}) })

	y := samples.NewSet(1)
	require.NoError(t, y.Add(multiindex.MultiIndex{0}, 5.0))
	engine := New("a")
	require.NoError(t, engine.Fit(grid1D(t, "a", 0.0), y))
	require.Panics(t, func() { engine.Predict([]float64{1.0, 2.0}) })
	require.Panics(t, func() { engine.PredictBatch(mat.NewDense(1, 3, nil)) })
}

func TestFitBroadcastsToAllRanks(t *testing.T) {
	const size = 3
	group := comms.NewGroup(size)

	y := samples.NewSet(1)
	require.NoError(t, y.Add(multiindex.MultiIndex{0}, 5.0))
	require.NoError(t, y.Add(multiindex.MultiIndex{1}, 2.0))
	x := grid1D(t, "a", 1.0)

	engines := make([]*Engine, size)
	var wg sync.WaitGroup
	for rank := 0; rank < size; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			engine := New("a").WithComm(group[rank])
			if rank == 0 {
				require.NoError(t, engine.Fit(x, y))
			} else {
				// Samples live on the coordinator only.
				require.NoError(t, engine.Fit(nil, nil))
			}
			engines[rank] = engine
		}(rank)
	}
	wg.Wait()

	for rank := 1; rank < size; rank++ {
		require.Equal(t, engines[0].State(), engines[rank].State(), "rank %d", rank)
		require.Equal(t, engines[0].Predict([]float64{1.7}), engines[rank].Predict([]float64{1.7}))
	}
}

func TestFitPreconditionFailureReachesAllRanks(t *testing.T) {
	const size = 2
	group := comms.NewGroup(size)
	x := grid1D(t, "a", 0.0)

	errs := make([]error, size)
	var wg sync.WaitGroup
	for rank := 0; rank < size; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			engine := New("a").WithComm(group[rank])
			if rank == 0 {
				errs[rank] = engine.Fit(x, samples.NewSet(1))
			} else {
				errs[rank] = engine.Fit(nil, nil)
			}
		}(rank)
	}
	wg.Wait()

	for rank := 0; rank < size; rank++ {
		require.Error(t, errs[rank], "rank %d", rank)
		require.Contains(t, errs[rank].Error(), "no derivative information")
	}
}

func TestFromState(t *testing.T) {
	y := samples.NewSet(1)
	require.NoError(t, y.Add(multiindex.MultiIndex{0}, 5.0))
	require.NoError(t, y.Add(multiindex.MultiIndex{1}, 2.0))
	fitted := New("a").WithOrder(1)
	require.NoError(t, fitted.Fit(grid1D(t, "a", 0.0), y))

	restored := FromState(fitted.State(), "a")
	require.True(t, restored.IsFitted())
	require.Equal(t, fitted.Predict([]float64{0.4}), restored.Predict([]float64{0.4}))
}
