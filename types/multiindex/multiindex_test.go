package multiindex

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromSelection(t *testing.T) {
	mi := FromSelection([]int{0, 1, 0}, 3)
	require.Equal(t, MultiIndex{2, 1, 0}, mi)
	require.Equal(t, 3, mi.TotalOrder())

	require.Equal(t, MultiIndex{0, 0}, FromSelection(nil, 2))
	require.Equal(t, 0, Zero(2).TotalOrder())
}

func TestKeyIsStructural(t *testing.T) {
	a := FromSelection([]int{0, 1}, 2)
	b := FromSelection([]int{1, 0}, 2)
	require.True(t, a.Equal(b))
	require.Equal(t, a.Key(), b.Key())

	c := FromSelection([]int{1, 1}, 2)
	require.False(t, a.Equal(c))
	require.NotEqual(t, a.Key(), c.Key())

	// [1 0] and [0 1] must not collide even though both sum to 1.
	require.NotEqual(t, MultiIndex{1, 0}.Key(), MultiIndex{0, 1}.Key())
}

func TestFromOrders(t *testing.T) {
	names := []string{"a", "b", "c"}
	mi, err := FromOrders(map[string]int{"b": 2}, names)
	require.NoError(t, err)
	require.Equal(t, MultiIndex{0, 2, 0}, mi)

	_, err = FromOrders(map[string]int{"z": 1}, names)
	require.Error(t, err)
}

func TestFormat(t *testing.T) {
	names := []string{"a", "b"}
	require.Equal(t, "<order-0>", Zero(2).Format(names))
	require.Equal(t, "a*b", MultiIndex{1, 1}.Format(names))
	require.Equal(t, "b^2", MultiIndex{0, 2}.Format(names))
	require.Equal(t, "[1 2]", MultiIndex{1, 2}.Format([]string{"only"}))
}

func TestPrefactor(t *testing.T) {
	require.Equal(t, 1.0, Prefactor(0))
	require.Equal(t, 1.0, Prefactor(1))
	require.Equal(t, 0.5, Prefactor(2))
	require.Equal(t, 1.0/6.0, Prefactor(3))
	require.Equal(t, 1.0/24.0, Prefactor(4))
}

func TestOrderedSelectionsCounts(t *testing.T) {
	// Pre-dedup there are dims^order ordered selections; after histogramming
	// and folding by Key() there are C(order+dims-1, dims-1) distinct
	// multi-indices, all of the requested total order.
	for _, dims := range []int{1, 2, 3} {
		for _, order := range []int{0, 1, 2, 3} {
			visited := 0
			distinct := make(map[string]bool)
			OrderedSelections(dims, order, func(selection []int) {
				require.Len(t, selection, order)
				mi := FromSelection(selection, dims)
				require.Equal(t, order, mi.TotalOrder())
				distinct[mi.Key()] = true
				visited++
			})
			require.Equal(t, NumOrdered(dims, order), visited,
				"ordered selections for dims=%d order=%d", dims, order)
			require.Equal(t, NumDistinct(dims, order), len(distinct),
				"distinct multi-indices for dims=%d order=%d", dims, order)
		}
	}
}

func TestOrderedSelectionsLexicographic(t *testing.T) {
	var got [][]int
	OrderedSelections(2, 2, func(selection []int) {
		c := make([]int, len(selection))
		copy(c, selection)
		got = append(got, c)
	})
	require.Equal(t, [][]int{{0, 0}, {0, 1}, {1, 0}, {1, 1}}, got)
}
