package mls

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTreeMathSizeTwo(t *testing.T) {
	size := LeafCount(2)
	require.Equal(t, NodeIndex(1), root(size))
	require.Equal(t, NodeIndex(0), left(root(size)))
	require.Equal(t, NodeIndex(2), right(root(size), size))

	assert.Equal(t, NodeIndex(0), toNodeIndex(RosterIndex(0)))
	assert.Equal(t, NodeIndex(2), toNodeIndex(RosterIndex(1)))
	assert.Equal(t, RosterIndex(0), toRosterIndex(NodeIndex(0)))
	assert.Equal(t, RosterIndex(1), toRosterIndex(NodeIndex(2)))

	assert.Empty(t, dirpath(NodeIndex(0), size), "leaf 0's parent is the root, so its dirpath is empty")
	assert.Empty(t, dirpath(NodeIndex(2), size))
}

func TestTreeMathSizeFour(t *testing.T) {
	size := LeafCount(4)
	// Node layout for a 4-leaf tree: 0 1 2 3 4 5 6, leaves at 0,2,4,6;
	// root at 3; internal ancestors at 1 and 5.
	require.Equal(t, NodeIndex(3), root(size))

	d0 := dirpath(NodeIndex(0), size)
	assert.Equal(t, []NodeIndex{1}, d0, "leaf 0's only non-root ancestor is node 1")

	d6 := dirpath(NodeIndex(6), size)
	assert.Equal(t, []NodeIndex{5}, d6)

	// Sibling subtree of the other root child stays live and untouched by
	// leaf 0's materialization.
	assert.Equal(t, NodeIndex(5), right(root(size), size))
	assert.Equal(t, NodeIndex(1), left(root(size)))
}

func TestTreeMathLargeRoster(t *testing.T) {
	size := LeafCount(100_000)
	r := root(size)
	leaf := toNodeIndex(RosterIndex(99_999))
	d := dirpath(leaf, size)
	// A balanced tree over 100,000 leaves has depth ceil(log2(100000)) ~= 17.
	assert.LessOrEqual(t, len(d), 18)
	for _, n := range d {
		assert.NotEqual(t, r, n, "dirpath must never include the root")
	}
}
