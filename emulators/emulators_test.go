package emulators_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gomlx/emulator/emulators"
	"github.com/gomlx/emulator/samples"
	"github.com/gomlx/emulator/types/multiindex"

	_ "github.com/gomlx/emulator/emulators/point"
	_ "github.com/gomlx/emulator/emulators/taylor"
)

func TestRegistry(t *testing.T) {
	require.Equal(t, []string{"point", "taylor"}, emulators.Names())

	_, err := emulators.New("unknown", "a")
	require.Error(t, err)

	x, err := samples.NewTable([]string{"a"}, [][]float64{{0.0}, {-0.5}, {0.5}})
	require.NoError(t, err)
	y := samples.NewSet(1)
	require.NoError(t, y.Add(multiindex.MultiIndex{0}, 5.0))
	require.NoError(t, y.Add(multiindex.MultiIndex{1}, 2.0))

	for name, want := range map[string][]float64{
		"taylor": {7.0}, // 5 + 2*(1-0)
		"point":  {5.0},
	} {
		engine, err := emulators.New(name, "a")
		require.NoError(t, err)
		require.Equal(t, name, engine.Name())
		require.NoError(t, engine.Fit(x, y))
		require.Equal(t, want, engine.Predict([]float64{1.0}), "engine %q", name)
	}
}
