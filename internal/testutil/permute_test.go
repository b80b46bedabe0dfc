package testutil

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermutations_CountAndUnique(t *testing.T) {
	items := []int{1, 2, 3, 4}
	perms := Permutations(items)

	require.Len(t, perms, 24)
	seen := make(map[string]bool)
	for _, p := range perms {
		assert.ElementsMatch(t, items, p)
		seen[fmt.Sprint(p)] = true
	}
	assert.Len(t, seen, 24)
	assert.Equal(t, []int{1, 2, 3, 4}, items, "input must not change")
}

func TestPermutations_Small(t *testing.T) {
	empty := Permutations([]string{})
	require.Len(t, empty, 1)
	assert.Empty(t, empty[0])

	assert.Equal(t, [][]string{{"a"}}, Permutations([]string{"a"}))
	assert.Len(t, Permutations([]string{"a", "b", "c", "d", "e"}), 120)
}

func TestSplits(t *testing.T) {
	splits := Splits([]string{"a", "b", "c"})
	assert.Equal(t, [][][]string{
		{{"a", "b", "c"}},
		{{"a"}, {"b", "c"}},
		{{"a", "b"}, {"c"}},
		{{"a"}, {"b"}, {"c"}},
	}, splits)

	assert.Len(t, Splits([]int{1, 2, 3, 4, 5}), 16)
}
