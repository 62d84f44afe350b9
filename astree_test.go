package mls

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zeroSecret() []byte { return make([]byte, 32) }

// TestASTreeBoundaryScenarios exercises the forward-distance and
// out-of-order bounds, and index validation, in one pass over a small
// roster.
func TestASTreeBoundaryScenarios(t *testing.T) {
	suite := MLS10_128_HPKEX25519_CHACHA20POLY1305_SHA256_Ed25519

	tree, err := NewASTree(suite, zeroSecret(), RosterIndex(2))
	require.NoError(t, err)

	_, err = tree.GetSecret(0, 0)
	require.NoError(t, err)
	_, err = tree.GetSecret(1, 0)
	require.NoError(t, err)
	_, err = tree.GetSecret(0, 1)
	require.NoError(t, err)
	_, err = tree.GetSecret(0, 1000)
	require.NoError(t, err)

	_, err = tree.GetSecret(1, 1001)
	assert.ErrorIs(t, err, ErrTooDistantInTheFuture)

	_, err = tree.GetSecret(0, 996)
	require.NoError(t, err)
	_, err = tree.GetSecret(0, 995)
	assert.ErrorIs(t, err, ErrTooDistantInThePast)

	_, err = tree.GetSecret(2, 0)
	assert.ErrorIs(t, err, ErrIndexOutOfBounds)
}

func TestASTreeLargeRoster(t *testing.T) {
	suite := MLS10_128_HPKEX25519_CHACHA20POLY1305_SHA256_Ed25519
	tree, err := NewASTree(suite, zeroSecret(), RosterIndex(100_000))
	require.NoError(t, err)

	_, err = tree.GetSecret(0, 0)
	require.NoError(t, err)
	_, err = tree.GetSecret(99_999, 0)
	require.NoError(t, err)
	_, err = tree.GetSecret(99_999, 1000)
	require.NoError(t, err)

	_, err = tree.GetSecret(100_000, 0)
	assert.ErrorIs(t, err, ErrIndexOutOfBounds)
}

// TestASTreeForwardSecrecyErasesAncestors verifies that after touching
// leaf 0 of a 4-leaf tree, root, leaf 0's one non-root ancestor, and leaf
// 0 itself are erased, while the sibling subtree stays live.
func TestASTreeForwardSecrecyErasesAncestors(t *testing.T) {
	suite := MLS10_128_HPKEX25519_CHACHA20POLY1305_SHA256_Ed25519
	tree, err := NewASTree(suite, zeroSecret(), RosterIndex(4))
	require.NoError(t, err)

	_, err = tree.GetSecret(0, 0)
	require.NoError(t, err)

	size := LeafCount(4)
	rootIdx := root(size)
	leafIdx := toNodeIndex(RosterIndex(0))
	ancestor := dirpath(leafIdx, size)[0]
	sibling := right(rootIdx, size) // the other child of root

	assert.Nil(t, tree.nodes[rootIdx], "root must be erased")
	assert.Nil(t, tree.nodes[ancestor], "leaf 0's ancestor must be erased")
	assert.Nil(t, tree.nodes[leafIdx], "leaf 0 itself must be erased")
	assert.NotNil(t, tree.nodes[sibling], "the untouched sibling subtree must still be live")
}

// TestASTreeOutOfOrderMatchesFreshRequest checks that reaching back into
// the window for an older generation after ratcheting forward returns
// exactly what a fresh request for that generation would have.
func TestASTreeOutOfOrderMatchesFreshRequest(t *testing.T) {
	suite := MLS10_128_HPKEX25519_CHACHA20POLY1305_SHA256_Ed25519

	fresh, err := NewASTree(suite, zeroSecret(), RosterIndex(2))
	require.NoError(t, err)
	want, err := fresh.GetSecret(0, 1)
	require.NoError(t, err)

	tree, err := NewASTree(suite, zeroSecret(), RosterIndex(2))
	require.NoError(t, err)
	_, err = tree.GetSecret(0, 3)
	require.NoError(t, err)
	got, err := tree.GetSecret(0, 1)
	require.NoError(t, err)

	assert.Equal(t, want.Key.Bytes(), got.Key.Bytes())
	assert.Equal(t, want.Nonce.Bytes(), got.Nonce.Bytes())
}

// TestASTreeDeterminism checks that two independent trees built from the
// same inputs derive bit-identical output for any sequence of calls that
// reaches the same states.
func TestASTreeDeterminism(t *testing.T) {
	suite := MLS10_128_HPKEX25519_CHACHA20POLY1305_SHA256_Ed25519

	a, err := NewASTree(suite, zeroSecret(), RosterIndex(8))
	require.NoError(t, err)
	b, err := NewASTree(suite, zeroSecret(), RosterIndex(8))
	require.NoError(t, err)

	for _, sender := range []RosterIndex{0, 3, 7} {
		for _, gen := range []uint32{0, 1, 50} {
			sa, err := a.GetSecret(sender, gen)
			require.NoError(t, err)
			sb, err := b.GetSecret(sender, gen)
			require.NoError(t, err)
			assert.Equal(t, sa.Key.Bytes(), sb.Key.Bytes())
			assert.Equal(t, sa.Nonce.Bytes(), sb.Nonce.Bytes())
		}
	}
}

// TestASTreeSingleLeaf covers the size==1 case: root and leaf coincide,
// so the lazy walk performs zero tree-node derivations and seeds the
// ratchet directly from the root secret.
func TestASTreeSingleLeaf(t *testing.T) {
	suite := MLS10_128_HPKEX25519_CHACHA20POLY1305_SHA256_Ed25519
	tree, err := NewASTree(suite, zeroSecret(), RosterIndex(1))
	require.NoError(t, err)

	_, err = tree.GetSecret(0, 0)
	require.NoError(t, err)
	assert.Nil(t, tree.nodes[root(LeafCount(1))], "the single root/leaf node must be erased after first touch")

	_, err = tree.GetSecret(1, 0)
	assert.ErrorIs(t, err, ErrIndexOutOfBounds)
}

func TestASTreeGetGenerationDefaultsToZero(t *testing.T) {
	suite := MLS10_128_HPKEX25519_CHACHA20POLY1305_SHA256_Ed25519
	tree, err := NewASTree(suite, zeroSecret(), RosterIndex(2))
	require.NoError(t, err)

	assert.Equal(t, uint32(0), tree.GetGeneration(0))
	_, err = tree.GetSecret(0, 9)
	require.NoError(t, err)
	assert.Equal(t, uint32(9), tree.GetGeneration(0))
}

func TestASTreeEncodeDecodeRoundTrip(t *testing.T) {
	suite := MLS10_128_HPKEX25519_CHACHA20POLY1305_SHA256_Ed25519
	tree, err := NewASTree(suite, zeroSecret(), RosterIndex(4))
	require.NoError(t, err)

	_, err = tree.GetSecret(0, 3)
	require.NoError(t, err)

	encoded, err := tree.MarshalTLS()
	require.NoError(t, err)

	decoded, err := DecodeASTree(encoded)
	require.NoError(t, err)

	assert.Equal(t, tree.suite, decoded.suite)
	assert.Equal(t, tree.size, decoded.size)
	for i := range tree.nodes {
		if tree.nodes[i] == nil {
			assert.Nil(t, decoded.nodes[i])
			continue
		}
		assert.Equal(t, tree.nodes[i].Secret, decoded.nodes[i].Secret)
	}
	for i := range tree.senderRatchets {
		if tree.senderRatchets[i] == nil {
			assert.Nil(t, decoded.senderRatchets[i])
			continue
		}
		assert.Equal(t, tree.senderRatchets[i].generation, decoded.senderRatchets[i].generation)
		assert.Equal(t, tree.senderRatchets[i].pastSecrets, decoded.senderRatchets[i].pastSecrets)
	}

	// The decoded tree must continue to work like the original.
	got, err := decoded.GetSecret(0, 4)
	require.NoError(t, err)
	want, err := tree.GetSecret(0, 4)
	require.NoError(t, err)
	assert.Equal(t, want.Key.Bytes(), got.Key.Bytes())
}

func TestASTreeCloseZeroizesState(t *testing.T) {
	suite := MLS10_128_HPKEX25519_CHACHA20POLY1305_SHA256_Ed25519
	tree, err := NewASTree(suite, zeroSecret(), RosterIndex(4))
	require.NoError(t, err)

	_, err = tree.GetSecret(0, 0)
	require.NoError(t, err)

	tree.Close()

	for _, n := range tree.nodes {
		assert.Nil(t, n)
	}
	for _, r := range tree.senderRatchets {
		assert.Nil(t, r)
	}
}
