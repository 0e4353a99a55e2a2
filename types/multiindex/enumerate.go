package multiindex

import (
	"gonum.org/v1/gonum/stat/combin"
)

// OrderedSelections calls fn once for every ordered length-order selection of
// parameter indices drawn with replacement from [0, dims), in lexicographic
// order. For order 0 it calls fn exactly once with an empty selection.
//
// The selection slice is reused between calls; fn must not retain it.
//
// Distinct multi-indices are revisited: e.g. selections (0,1) and (1,0) both
// histogram to the multi-index [1 1]. Callers accumulate by MultiIndex.Key()
// to fold these into one symmetric mixed-partial term.
func OrderedSelections(dims, order int, fn func(selection []int)) {
	if order == 0 {
		fn(nil)
		return
	}
	lens := make([]int, order)
	for i := range lens {
		lens[i] = dims
	}
	gen := combin.NewCartesianGenerator(lens)
	selection := make([]int, order)
	for gen.Next() {
		fn(gen.Product(selection))
	}
}

// NumOrdered returns the number of ordered selections of total order over
// dims parameters: dims^order.
func NumOrdered(dims, order int) int {
	n := 1
	for k := 0; k < order; k++ {
		n *= dims
	}
	return n
}

// NumDistinct returns the number of distinct multi-indices of total order
// exactly order over dims parameters: the stars-and-bars count
// C(order+dims-1, dims-1).
func NumDistinct(dims, order int) int {
	return combin.Binomial(order+dims-1, dims-1)
}
