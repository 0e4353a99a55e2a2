package samples

import (
	"github.com/pkg/errors"

	"github.com/gomlx/emulator/types/multiindex"
)

// DerivativeSet is the collection of derivative samples (Y) the sampling
// driver hands to an emulator engine: each entry associates a multi-index of
// differentiation orders with the computed derivative value, one float per
// output dimension of the target function.
//
// The order-0 entry (no differentiation) is the function value at the
// expansion center.
type DerivativeSet interface {
	// Has reports whether a derivative for the multi-index was computed.
	Has(mi multiindex.MultiIndex) bool

	// Value returns the derivative for the multi-index, one value per output
	// dimension, or nil if absent.
	Value(mi multiindex.MultiIndex) []float64

	// Len returns the number of derivative entries.
	Len() int

	// NumOutputs returns the output dimensionality of the target function.
	NumOutputs() int

	// MaxOrder returns the maximum total order present in the collection.
	MaxOrder() int

	// MaxParamOrders returns, per parameter, the maximum order that parameter
	// was differentiated to anywhere in the collection.
	MaxParamOrders() []int
}

type setEntry struct {
	mi     multiindex.MultiIndex
	values []float64
}

// Set is the map-backed DerivativeSet implementation, keyed by the structural
// multi-index value.
type Set struct {
	dims       int
	numOutputs int
	entries    map[string]setEntry
}

var _ DerivativeSet = (*Set)(nil)

// NewSet creates an empty derivative collection over dims varied parameters.
func NewSet(dims int) *Set {
	return &Set{dims: dims, entries: make(map[string]setEntry)}
}

// Add records the derivative values for the given multi-index. The first Add
// fixes the output dimensionality; later entries must match it. Adding the
// same multi-index twice replaces the previous entry.
func (s *Set) Add(mi multiindex.MultiIndex, values ...float64) error {
	if len(mi) != s.dims {
		return errors.Errorf("multi-index %s has %d parameters, set was created with %d", mi, len(mi), s.dims)
	}
	if len(values) == 0 {
		return errors.Errorf("derivative %s has no values", mi)
	}
	if len(s.entries) == 0 {
		s.numOutputs = len(values)
	} else if len(values) != s.numOutputs {
		return errors.Errorf("derivative %s has %d outputs, previous entries have %d", mi, len(values), s.numOutputs)
	}
	s.entries[mi.Key()] = setEntry{mi: mi.Clone(), values: values}
	return nil
}

// Has implements DerivativeSet.
func (s *Set) Has(mi multiindex.MultiIndex) bool {
	_, found := s.entries[mi.Key()]
	return found
}

// Value implements DerivativeSet.
func (s *Set) Value(mi multiindex.MultiIndex) []float64 {
	entry, found := s.entries[mi.Key()]
	if !found {
		return nil
	}
	return entry.values
}

// Len implements DerivativeSet.
func (s *Set) Len() int { return len(s.entries) }

// NumOutputs implements DerivativeSet.
func (s *Set) NumOutputs() int { return s.numOutputs }

// MaxOrder implements DerivativeSet.
func (s *Set) MaxOrder() int {
	maxOrder := 0
	for _, entry := range s.entries {
		if total := entry.mi.TotalOrder(); total > maxOrder {
			maxOrder = total
		}
	}
	return maxOrder
}

// MaxParamOrders implements DerivativeSet.
func (s *Set) MaxParamOrders() []int {
	maxima := make([]int, s.dims)
	for _, entry := range s.entries {
		for i, p := range entry.mi {
			if int(p) > maxima[i] {
				maxima[i] = int(p)
			}
		}
	}
	return maxima
}
