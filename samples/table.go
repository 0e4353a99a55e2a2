// Package samples defines the input boundary of the emulator engines: the
// table of evaluated parameter points (X) and the collection of derivative
// samples keyed by multi-index (Y). Both are produced by an external sampling
// driver; this package only gives them concrete Go types.
package samples

import (
	"io"
	"sort"

	"github.com/go-gota/gota/dataframe"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Table holds the sampled parameter coordinates: one row per evaluated point,
// one column per varied parameter.
type Table struct {
	names []string
	data  *mat.Dense
}

// NewTable builds a Table from per-point rows. Every row must have one value
// per parameter name.
func NewTable(names []string, rows [][]float64) (*Table, error) {
	if len(names) == 0 {
		return nil, errors.Errorf("table needs at least one parameter name")
	}
	if len(rows) == 0 {
		return nil, errors.Errorf("table needs at least one sampled point")
	}
	data := mat.NewDense(len(rows), len(names), nil)
	for i, row := range rows {
		if len(row) != len(names) {
			return nil, errors.Errorf("row %d has %d values, table has %d parameters (%v)", i, len(row), len(names), names)
		}
		data.SetRow(i, row)
	}
	return &Table{names: names, data: data}, nil
}

// TableFromCSV reads a sample table from CSV data. If names are given, only
// those columns are kept (in the given order); otherwise all columns are used
// in file order. All kept columns must be numeric.
func TableFromCSV(r io.Reader, names ...string) (*Table, error) {
	df := dataframe.ReadCSV(r)
	if df.Err != nil {
		return nil, errors.Wrap(df.Err, "failed to parse samples CSV")
	}
	if len(names) == 0 {
		names = df.Names()
	} else {
		df = df.Select(names)
		if df.Err != nil {
			return nil, errors.Wrapf(df.Err, "failed to select columns %v", names)
		}
	}
	numRows, _ := df.Dims()
	data := mat.NewDense(numRows, len(names), nil)
	for j, name := range names {
		col := df.Col(name)
		if col.Err != nil {
			return nil, errors.Wrapf(col.Err, "failed to read column %q", name)
		}
		data.SetCol(j, col.Float())
	}
	return &Table{names: names, data: data}, nil
}

// Names returns the parameter names, in column order.
func (t *Table) Names() []string { return t.names }

// NumPoints returns the number of sampled points (rows).
func (t *Table) NumPoints() int {
	rows, _ := t.data.Dims()
	return rows
}

// NumParams returns the number of varied parameters (columns).
func (t *Table) NumParams() int { return len(t.names) }

// Matrix returns the underlying points×parameters matrix.
func (t *Table) Matrix() mat.Matrix { return t.data }

// Center returns the expansion point: per parameter, the median of the unique
// sampled values. The sampling driver visits each parameter's grid
// symmetrically around the reference point, and the median of the de-duplicated
// grid recovers it even when the driver pads or repeats points.
func (t *Table) Center() []float64 {
	center := make([]float64, t.NumParams())
	rows, _ := t.data.Dims()
	for j := range center {
		seen := make(map[float64]bool, rows)
		unique := make([]float64, 0, rows)
		for i := 0; i < rows; i++ {
			v := t.data.At(i, j)
			if !seen[v] {
				seen[v] = true
				unique = append(unique, v)
			}
		}
		sort.Float64s(unique)
		// Median with two-middle averaging on even counts.
		n := len(unique)
		if n%2 == 1 {
			center[j] = unique[n/2]
		} else {
			center[j] = 0.5 * (unique[n/2-1] + unique[n/2])
		}
	}
	return center
}
