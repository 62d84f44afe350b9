package mls

import (
	"github.com/bifurcation/mint/syntax"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// ASTreeNode is an optional per-tree-node secret. A node is live when its
// Secret is non-nil, erased once the slot has been wiped and set back to
// nil; an erased node is never repopulated within the same tree.
type ASTreeNode struct {
	Secret []byte `tls:"head=1"`
}

// ASTree is the sparse, lazily-expanded perfect binary tree over a
// sender roster. The root node holds the initial application secret;
// every other node and every sender's ratchet starts absent and is
// derived lazily on first use.
//
// ASTree is not safe for concurrent use — all state-mutating calls
// (GetSecret, which may lazily expand the tree or advance a ratchet)
// require a single writer. A caller sharing one tree across goroutines
// should wrap it in its own sync.Mutex; this package does not add one
// internally so single-writer callers pay no locking cost.
type ASTree struct {
	suite          CipherSuite
	size           RosterIndex
	nodes          []*ASTreeNode
	senderRatchets []*SenderRatchet
	log            zerolog.Logger
}

// NewASTree constructs a tree of the given roster size rooted at
// applicationSecret. size must be at least 1; a 1-leaf tree has
// root == leaf.
func NewASTree(suite CipherSuite, applicationSecret []byte, size RosterIndex) (*ASTree, error) {
	if size == 0 {
		return nil, errors.New("mls: astree size must be at least 1")
	}
	hashLen, err := suite.HashLength()
	if err != nil {
		return nil, err
	}
	if len(applicationSecret) != hashLen {
		return nil, errors.Errorf("mls: application secret must be %d bytes, got %d", hashLen, len(applicationSecret))
	}

	numNodes := int(nodeWidth(LeafCount(size)))
	nodes := make([]*ASTreeNode, numNodes)
	rootIdx := root(LeafCount(size))
	secretCopy := make([]byte, len(applicationSecret))
	copy(secretCopy, applicationSecret)
	nodes[rootIdx] = &ASTreeNode{Secret: secretCopy}

	return &ASTree{
		suite:          suite,
		size:           size,
		nodes:          nodes,
		senderRatchets: make([]*SenderRatchet, size),
		log:            zerolog.Nop(),
	}, nil
}

// WithLogger attaches a zerolog.Logger that emits Debug events at lazy
// path materialization and ratchet advance. The zero value disables
// logging, matching this package's default.
func (t *ASTree) WithLogger(log zerolog.Logger) *ASTree {
	t.log = log
	return t
}

// GetGeneration returns the ratchet's current generation for sender, or 0
// if sender has never been touched.
func (t *ASTree) GetGeneration(sender RosterIndex) uint32 {
	if sender >= t.size {
		return 0
	}
	if r := t.senderRatchets[sender]; r != nil {
		return r.Generation()
	}
	return 0
}

// GetSecret derives the (key, nonce) pair for (sender, generation),
// lazily materializing the path from the nearest live ancestor to
// sender's leaf on first touch.
func (t *ASTree) GetSecret(sender RosterIndex, generation uint32) (ApplicationSecrets, error) {
	if sender >= t.size {
		return ApplicationSecrets{}, errors.WithStack(ErrIndexOutOfBounds)
	}

	if t.senderRatchets[sender] == nil {
		if err := t.materializeLeaf(sender); err != nil {
			return ApplicationSecrets{}, err
		}
	}

	r := t.senderRatchets[sender]
	before := r.Generation()
	secrets, err := r.GetSecret(generation)
	if err == nil && r.Generation() > before {
		t.log.Debug().
			Uint32("sender", uint32(sender)).
			Uint32("generation", r.Generation()).
			Msg("astree: advanced sender ratchet")
	}
	return secrets, err
}

// materializeLeaf performs the one-time lazy derivation from the nearest
// live ancestor of sender's leaf down to the leaf itself, seeds a fresh
// SenderRatchet there, and erases every node it touched.
func (t *ASTree) materializeLeaf(sender RosterIndex) error {
	leaf := toNodeIndex(sender)
	size := LeafCount(t.size)

	path := append([]NodeIndex{leaf}, dirpath(leaf, size)...)
	path = append(path, root(size))

	live := []NodeIndex{}
	for _, n := range path {
		live = append(live, n)
		if t.nodes[n] != nil {
			break
		}
	}
	if len(live) == 0 || t.nodes[live[len(live)-1]] == nil {
		return errors.New("mls: no live ancestor found for sender")
	}

	// Drop the leaf itself, then walk from the topmost live ancestor
	// toward (but not reaching) the leaf, deriving both children and
	// erasing the parent at each step.
	toExpand := live[1:]
	for i, j := 0, len(toExpand)-1; i < j; i, j = i+1, j-1 {
		toExpand[i], toExpand[j] = toExpand[j], toExpand[i]
	}
	for _, n := range toExpand {
		if err := t.hashDown(n); err != nil {
			return err
		}
	}

	leafNode := t.nodes[leaf]
	if leafNode == nil {
		return errors.New("mls: leaf not live after path materialization")
	}
	ratchet := newSenderRatchet(sender, leafNode.Secret, t.suite)
	t.nodes[leaf] = nil

	t.senderRatchets[sender] = ratchet
	t.log.Debug().
		Uint32("sender", uint32(sender)).
		Uint32("leaf", uint32(leaf)).
		Msg("astree: lazily materialized sender ratchet")
	return nil
}

// hashDown derives the two children of a live internal node and erases
// the parent.
func (t *ASTree) hashDown(n NodeIndex) error {
	node := t.nodes[n]
	if node == nil {
		return errors.Errorf("mls: hash_down called on absent node %d", n)
	}
	size := LeafCount(t.size)

	hashLen, err := t.suite.HashLength()
	if err != nil {
		return err
	}

	leftIdx := left(n)
	rightIdx := right(n, size)

	leftSecret, err := deriveAppSecret(t.suite, node.Secret, "tree", leftIdx, 0, hashLen)
	if err != nil {
		return err
	}
	rightSecret, err := deriveAppSecret(t.suite, node.Secret, "tree", rightIdx, 0, hashLen)
	if err != nil {
		return err
	}

	t.nodes[leftIdx] = &ASTreeNode{Secret: leftSecret}
	t.nodes[rightIdx] = &ASTreeNode{Secret: rightSecret}

	zeroize(node.Secret)
	t.nodes[n] = nil
	return nil
}

// Close zeroizes every secret this tree still holds — remaining live tree
// nodes and every sender ratchet's chain-secret window — since Go has no
// destructors. Close does not return the tree to a usable state; call it
// only at teardown.
func (t *ASTree) Close() {
	for i, n := range t.nodes {
		if n != nil {
			zeroize(n.Secret)
			t.nodes[i] = nil
		}
	}
	for i, r := range t.senderRatchets {
		if r != nil {
			r.close()
			t.senderRatchets[i] = nil
		}
	}
}

// persistedASTree is the tls-syntax shape of ASTree's persisted-state
// encoding: ciphersuite, node array, ratchet array, size.
type persistedASTree struct {
	Ciphersuite    CipherSuite
	Nodes          nodeArray
	SenderRatchets ratchetArray
	Size           uint32
}

type nodeArray []*ASTreeNode

func (a nodeArray) MarshalTLS() ([]byte, error) {
	out := encodeUint32(uint32(len(a)))
	for _, n := range a {
		body, err := (optionalNode{node: n}).MarshalTLS()
		if err != nil {
			return nil, err
		}
		out = append(out, body...)
	}
	return out, nil
}

func (a *nodeArray) UnmarshalTLS(data []byte) (int, error) {
	count, n, err := decodeUint32(data)
	if err != nil {
		return 0, errors.Wrap(err, "mls: node array count")
	}
	out := make([]*ASTreeNode, count)
	for i := uint32(0); i < count; i++ {
		var opt optionalNode
		read, err := opt.UnmarshalTLS(data[n:])
		if err != nil {
			return 0, err
		}
		out[i] = opt.node
		n += read
	}
	*a = out
	return n, nil
}

type ratchetArray []*SenderRatchet

func (a ratchetArray) MarshalTLS() ([]byte, error) {
	out := encodeUint32(uint32(len(a)))
	for _, r := range a {
		body, err := (optionalRatchet{ratchet: r}).MarshalTLS()
		if err != nil {
			return nil, err
		}
		out = append(out, body...)
	}
	return out, nil
}

func (a *ratchetArray) UnmarshalTLS(data []byte) (int, error) {
	count, n, err := decodeUint32(data)
	if err != nil {
		return 0, errors.Wrap(err, "mls: ratchet array count")
	}
	out := make([]*SenderRatchet, count)
	for i := uint32(0); i < count; i++ {
		var opt optionalRatchet
		read, err := opt.UnmarshalTLS(data[n:])
		if err != nil {
			return 0, err
		}
		out[i] = opt.ratchet
		n += read
	}
	*a = out
	return n, nil
}

// MarshalTLS encodes the entire tree's current state, including erased
// slots, for persistence across process restarts.
func (t *ASTree) MarshalTLS() ([]byte, error) {
	wire := persistedASTree{
		Ciphersuite:    t.suite,
		Nodes:          nodeArray(t.nodes),
		SenderRatchets: ratchetArray(t.senderRatchets),
		Size:           uint32(t.size),
	}
	out, err := syntax.Marshal(wire)
	if err != nil {
		return nil, errors.Wrap(err, "mls: marshal astree")
	}
	return out, nil
}

// DecodeASTree reconstructs a tree from bytes produced by MarshalTLS.
func DecodeASTree(data []byte) (*ASTree, error) {
	var wire persistedASTree
	if _, err := syntax.Unmarshal(data, &wire); err != nil {
		return nil, errors.Wrap(err, "mls: unmarshal astree")
	}
	return &ASTree{
		suite:          wire.Ciphersuite,
		size:           RosterIndex(wire.Size),
		nodes:          wire.Nodes,
		senderRatchets: wire.SenderRatchets,
		log:            zerolog.Nop(),
	}, nil
}
