// Package emulators defines the engine interface shared by the emulator
// implementations, and a name-based registry through which engines are
// selected.
//
// Engines register themselves during package initialization, so selecting one
// by name requires importing its package, typically anonymously:
//
//	import _ "github.com/gomlx/emulator/emulators/taylor"
package emulators

import (
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/exp/maps"

	"github.com/gomlx/emulator/samples"
)

// Engine is a fit/predict emulator: Fit consumes the sampled coordinates X
// and the derivative collection Y and freezes the surrogate; Predict
// evaluates the surrogate at a new parameter point, returning one value per
// output dimension of the emulated function.
//
// After a successful Fit the engine state is immutable and Predict is safe
// for concurrent use.
type Engine interface {
	// Name returns the registry name of the engine, e.g. "taylor".
	Name() string

	// Fit builds the surrogate from the samples. It returns an error on
	// contract violations (e.g. samples without derivative information).
	Fit(x *samples.Table, y samples.DerivativeSet) error

	// Predict evaluates the surrogate at the given parameter point. It panics
	// if the engine is not fitted or the point's dimensionality disagrees
	// with the fitted center.
	Predict(x []float64) []float64
}

// Constructor builds an unfitted engine over the given varied parameters.
type Constructor func(params ...string) Engine

var registered = make(map[string]Constructor)

// Register an engine constructor under the given name. Call it from the
// engine package's init.
func Register(name string, constructor Constructor) {
	registered[name] = constructor
}

// New builds an unfitted engine by registry name.
func New(name string, params ...string) (Engine, error) {
	constructor, found := registered[name]
	if !found {
		return nil, errors.Errorf("no emulator engine registered under %q (registered: %v) -- import the engine package for its side effects", name, Names())
	}
	return constructor(params...), nil
}

// Names lists the registered engine names, sorted.
func Names() []string {
	names := maps.Keys(registered)
	sort.Strings(names)
	return names
}
