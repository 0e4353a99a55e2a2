// Package multiindex implements the multi-index ("degree") of a mixed partial
// derivative: one non-negative differentiation order per varied parameter.
//
// Two multi-indices are the same derivative iff their per-parameter orders are
// equal, regardless of the order in which the differentiations were
// enumerated. Key() provides the structural value usable as a map key, which
// is how duplicate enumeration paths are folded into one Taylor term.
package multiindex

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// MultiIndex assigns a differentiation order to each of the varied parameters.
// Its length is fixed at the number of varied parameters for the emulator it
// belongs to.
type MultiIndex []int32

// Zero returns the order-0 multi-index over dims parameters: the function
// value itself, no differentiation.
func Zero(dims int) MultiIndex {
	return make(MultiIndex, dims)
}

// FromSelection builds a MultiIndex from an ordered selection of parameter
// indices (repetition allowed): a histogram over the dims parameters.
// E.g. selection (0, 1, 0) over 3 parameters yields [2 1 0].
func FromSelection(selection []int, dims int) MultiIndex {
	mi := make(MultiIndex, dims)
	for _, idx := range selection {
		mi[idx]++
	}
	return mi
}

// FromOrders builds a MultiIndex from a name→order mapping, aligned to the
// given parameter name order. Names absent from orders get order 0; names in
// orders that are not in names are an error.
func FromOrders(orders map[string]int, names []string) (MultiIndex, error) {
	mi := make(MultiIndex, len(names))
	for i, name := range names {
		mi[i] = int32(orders[name])
	}
	for name := range orders {
		found := false
		for _, known := range names {
			if name == known {
				found = true
				break
			}
		}
		if !found {
			return nil, errors.Errorf("parameter %q in derivative orders is not among the varied parameters %v", name, names)
		}
	}
	return mi, nil
}

// TotalOrder is the sum of the per-parameter orders: the total order of the
// derivative this multi-index describes.
func (mi MultiIndex) TotalOrder() int {
	total := 0
	for _, p := range mi {
		total += int(p)
	}
	return total
}

// Key returns a compact string usable as a hash-map key. Two multi-indices
// have equal keys iff they are structurally equal.
func (mi MultiIndex) Key() string {
	b := make([]byte, 0, 2*len(mi))
	for _, p := range mi {
		b = binary.AppendVarint(b, int64(p))
	}
	return string(b)
}

// Equal reports structural equality: same length, same per-parameter orders.
func (mi MultiIndex) Equal(other MultiIndex) bool {
	if len(mi) != len(other) {
		return false
	}
	for i, p := range mi {
		if p != other[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of mi.
func (mi MultiIndex) Clone() MultiIndex {
	c := make(MultiIndex, len(mi))
	copy(c, mi)
	return c
}

// String implements fmt.Stringer, printing the raw order vector.
func (mi MultiIndex) String() string {
	return fmt.Sprintf("%v", []int32(mi))
}

// Format renders the multi-index with parameter names, e.g. "d²/da²·db" as
// "a^2*b". The order-0 multi-index renders as "<order-0>". If names does not
// match the multi-index length it falls back to String().
func (mi MultiIndex) Format(names []string) string {
	if len(names) != len(mi) {
		return mi.String()
	}
	parts := make([]string, 0, len(mi))
	for i, p := range mi {
		switch {
		case p == 1:
			parts = append(parts, names[i])
		case p > 1:
			parts = append(parts, fmt.Sprintf("%s^%d", names[i], p))
		}
	}
	if len(parts) == 0 {
		return "<order-0>"
	}
	return strings.Join(parts, "*")
}

// Prefactor returns the Taylor-series combinatorial weight 1/order!.
//
// It is computed by successive division (1/2, then /3, …), matching the
// incremental running product an order-by-order accumulation would produce,
// so coefficients are bit-identical however the orders are visited.
func Prefactor(order int) float64 {
	p := 1.0
	for k := 2; k <= order; k++ {
		p /= float64(k)
	}
	return p
}
