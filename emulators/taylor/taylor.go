// Package taylor implements the multivariate Taylor-expansion emulator
// engine: from a sparse collection of precomputed mixed partial derivatives
// it assembles the polynomial surrogate
//
//	f(x) ≈ Σ_j derivs[j] * Π_i (x_i - center_i)^powers[j][i]
//
// and evaluates it at new parameter points by tensor contraction.
//
// The fit runs on the coordinator rank only and the resulting state is
// broadcast to the rest of the group; prediction is a pure function of that
// immutable state and runs independently on every rank.
package taylor

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"k8s.io/klog/v2"

	"github.com/gomlx/emulator/comms"
	"github.com/gomlx/emulator/emulators"
	"github.com/gomlx/emulator/samples"
	"github.com/gomlx/emulator/types/multiindex"
)

// Name under which the engine registers itself.
const Name = "taylor"

// DefaultOrder is the truncation order recorded on engines that were not
// configured explicitly. It only informs the upstream sampling driver; the
// fit itself trusts whatever orders are present in the samples.
const DefaultOrder = 3

func init() {
	emulators.Register(Name, func(params ...string) emulators.Engine {
		return New(params...)
	})
}

// State is the fitted surrogate: the expansion center, one multi-index of
// per-parameter powers per term, and the matching coefficient rows (one
// float64 per output dimension of the emulated function, row-major).
//
// It is created once by the fit, broadcast, and never mutated afterward; it
// is also the entire persisted representation of the model.
type State struct {
	Center      []float64
	Powers      []multiindex.MultiIndex
	Derivatives []float64
	NumOutputs  int
	Order       int
}

// NumTerms returns the number of accumulated polynomial terms.
func (s *State) NumTerms() int { return len(s.Powers) }

// NumParams returns the dimensionality of the parameter space.
func (s *State) NumParams() int { return len(s.Center) }

// Engine is the Taylor emulator. Create it with New, optionally configure it
// with the chained setters, then Fit it once. See the package documentation
// for the sharing model.
type Engine struct {
	params  []string
	order   int
	comm    comms.Communicator
	state   *State
	missing []multiindex.MultiIndex
}

var _ emulators.Engine = (*Engine)(nil)

// New creates an unfitted engine over the given varied parameters, with a
// Serial communicator and DefaultOrder.
func New(params ...string) *Engine {
	return &Engine{params: params, order: DefaultOrder, comm: comms.Serial{}}
}

// WithComm sets the communicator the fit synchronizes over. It returns the
// engine to allow chaining. Must be called before Fit.
func (e *Engine) WithComm(comm comms.Communicator) *Engine {
	e.comm = comm
	return e
}

// WithOrder sets the truncation order recorded in the fitted state. It
// returns the engine to allow chaining.
func (e *Engine) WithOrder(order int) *Engine {
	e.order = order
	return e
}

// FromState reconstructs a fitted engine from a persisted state. No
// recomputation from raw samples happens.
func FromState(state *State, params ...string) *Engine {
	return &Engine{params: params, order: state.Order, comm: comms.Serial{}, state: state}
}

// Restore installs a previously persisted fitted state into the engine,
// replacing any state it holds. The caller is responsible for the state
// matching the engine's varied parameters.
func (e *Engine) Restore(state *State) {
	e.state = state
	e.order = state.Order
	e.missing = nil
}

// Name implements emulators.Engine.
func (e *Engine) Name() string { return Name }

// Params returns the varied parameter names, in multi-index order.
func (e *Engine) Params() []string { return e.params }

// IsFitted reports whether the engine holds a fitted state.
func (e *Engine) IsFitted() bool { return e.state != nil }

// State returns the fitted state, or nil before Fit. Callers must treat it
// as read-only.
func (e *Engine) State() *State { return e.state }

// MissingTerms returns the multi-indices that the enumeration requested but
// the derivative collection did not contain; their coefficients were taken
// as zero. Only meaningful on the coordinator rank.
func (e *Engine) MissingTerms() []multiindex.MultiIndex { return e.missing }

// fitHeader carries the coordinator's verdict on the fit preconditions to
// the whole group, so every rank fails (or proceeds) identically.
type fitHeader struct {
	Err string
}

// Fit implements emulators.Engine. Rank 0 of the communicator collects the
// derivatives into a State; every rank returns holding an identical copy, or
// the same error. X and Y only need to be valid on rank 0.
func (e *Engine) Fit(x *samples.Table, y samples.DerivativeSet) error {
	const root = 0
	var header fitHeader
	if e.comm.Rank() == root {
		state, missing, err := e.collect(x, y)
		if err != nil {
			header.Err = err.Error()
		} else {
			e.state, e.missing = state, missing
		}
	}
	if err := e.comm.Broadcast(root, &header); err != nil {
		return errors.Wrap(err, "failed to broadcast fit preconditions")
	}
	if header.Err != "" {
		return errors.New(header.Err)
	}
	if e.comm.Rank() != root {
		e.state = &State{}
	}
	if err := e.comm.Broadcast(root, e.state); err != nil {
		return errors.Wrap(err, "failed to broadcast fitted state")
	}
	return nil
}

// collect runs on the coordinator only: it enumerates the admissible
// multi-indices, looks up (or zeroes) each derivative, applies the 1/order!
// prefactor and folds duplicate multi-indices into single accumulated terms.
func (e *Engine) collect(x *samples.Table, y samples.DerivativeSet) (*State, []multiindex.MultiIndex, error) {
	if y == nil || y.Len() == 0 {
		return nil, nil, errors.Errorf("samples carry no derivative information; the Taylor engine needs derivative-augmented samples")
	}
	if x == nil {
		return nil, nil, errors.Errorf("no sample coordinates given")
	}
	dims := len(e.params)
	if x.NumParams() != dims {
		return nil, nil, errors.Errorf("sample table has %d parameters, engine varies %d (%v)", x.NumParams(), dims, e.params)
	}
	center := x.Center()
	maxOrder := y.MaxOrder()
	maxParamOrders := y.MaxParamOrders()
	numOutputs := y.NumOutputs()
	klog.V(1).Infof("taylor: fitting over %d parameters, max total order %d, per-parameter maxima %v", dims, maxOrder, maxParamOrders)

	// Accumulator: multi-index key → insertion-order term index.
	termIndex := make(map[string]int)
	var powers []multiindex.MultiIndex
	var rows [][]float64
	var missing []multiindex.MultiIndex
	warned := make(map[string]bool)

	for order := 0; order <= maxOrder; order++ {
		prefactor := multiindex.Prefactor(order)
		multiindex.OrderedSelections(dims, order, func(selection []int) {
			mi := multiindex.FromSelection(selection, dims)
			if overFrontier(mi, maxParamOrders) {
				return
			}
			key := mi.Key()
			j, seen := termIndex[key]
			if !seen {
				j = len(powers)
				termIndex[key] = j
				powers = append(powers, mi)
				rows = append(rows, make([]float64, numOutputs))
			}
			values := y.Value(mi)
			if values == nil {
				if !warned[key] {
					warned[key] = true
					klog.Warningf("taylor: derivative %s is missing, assuming it is 0", mi.Format(e.params))
					missing = append(missing, mi)
				}
				return
			}
			// Revisits of the same multi-index add, they never overwrite.
			floats.AddScaled(rows[j], prefactor, values)
		})
	}
	klog.V(2).Infof("taylor: accumulated %d terms (%d missing derivatives)", len(powers), len(missing))

	state := &State{
		Center:      center,
		Powers:      powers,
		Derivatives: make([]float64, 0, len(rows)*numOutputs),
		NumOutputs:  numOutputs,
		Order:       e.order,
	}
	for _, row := range rows {
		state.Derivatives = append(state.Derivatives, row...)
	}
	return state, missing, nil
}

// overFrontier reports whether the multi-index asks for a total order beyond
// the tightest per-parameter maximum among its active dimensions -- i.e. a
// derivative combination the sampling driver never evaluated. The order-0
// multi-index has no active dimension and is always kept.
func overFrontier(mi multiindex.MultiIndex, maxParamOrders []int) bool {
	tightest := -1
	for i, p := range mi {
		if p == 0 {
			continue
		}
		if tightest < 0 || maxParamOrders[i] < tightest {
			tightest = maxParamOrders[i]
		}
	}
	if tightest < 0 {
		return false
	}
	return mi.TotalOrder() > tightest
}
