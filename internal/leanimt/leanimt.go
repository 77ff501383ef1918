// leanimt.go - Lean incremental Merkle tree over the BN254 scalar field.
//
// A lean tree never hashes a node against a filler sibling: when a node has
// no right neighbor at some level it is promoted to the next level unchanged.
// This halves the hashing work for trees whose size is not a power of two,
// and it is the exact shape the membership circuit re-derives, so the
// promotion rule here must not change independently of the circuit.
//
// The tree is not safe for concurrent mutation; callers serialize writes.

package leanimt

import (
	"errors"
	"math/bits"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	mimcNative "github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
)

// ErrIndexOutOfRange is returned when a leaf index does not address a leaf.
var ErrIndexOutOfRange = errors.New("leanimt: leaf index out of range")

// MerkleProof is a membership path from a leaf to the root. Siblings holds
// one entry per level at which the path node had a sibling; levels where the
// node was promoted are skipped. Bit i of Index is set when the path node
// was the right child at the i-th sibling level.
type MerkleProof struct {
	Root     fr.Element
	Leaf     fr.Element
	Index    int
	Siblings []fr.Element
}

// Tree is a dynamically growing lean incremental Merkle tree.
// nodes[level][i] is the i-th node at the given level; nodes[depth][0] is
// the root once at least one leaf exists.
type Tree struct {
	nodes [][]fr.Element
	depth int
	size  int
}

// New creates an empty tree.
func New() *Tree {
	return &Tree{nodes: [][]fr.Element{{}}}
}

// NewFromLeaves builds a tree containing the given leaves in order.
func NewFromLeaves(leaves []fr.Element) *Tree {
	t := New()
	for _, leaf := range leaves {
		t.Insert(leaf)
	}
	return t
}

// Size returns the number of leaves, including updated and zeroed slots.
func (t *Tree) Size() int {
	return t.size
}

// Depth returns the current tree depth: the smallest height covering the
// leaf count. It grows monotonically and never shrinks.
func (t *Tree) Depth() int {
	return t.depth
}

// Root returns the tree root, or the zero element for an empty tree.
// The root is a pure function of the leaf sequence: two trees built from
// the same leaves always agree.
func (t *Tree) Root() fr.Element {
	if t.size == 0 {
		return fr.Element{}
	}
	return t.nodes[t.depth][0]
}

// Leaf returns the leaf value at the given index.
func (t *Tree) Leaf(index int) (fr.Element, error) {
	if index < 0 || index >= t.size {
		return fr.Element{}, ErrIndexOutOfRange
	}
	return t.nodes[0][index], nil
}

// Leaves returns a copy of the leaf sequence in insertion order.
func (t *Tree) Leaves() []fr.Element {
	out := make([]fr.Element, t.size)
	copy(out, t.nodes[0])
	return out
}

// Insert appends a leaf, recomputing only the hashes on the path from the
// new leaf to the root. Depth grows by one when the leaf count crosses a
// power-of-two boundary.
func (t *Tree) Insert(leaf fr.Element) {
	if requiredDepth(t.size+1) > t.depth {
		t.depth++
	}

	node := leaf
	index := t.size
	for level := 0; level < t.depth; level++ {
		t.setNode(level, index, node)
		if index&1 == 1 {
			// Right child: combine with the existing left sibling.
			node = hashPair(t.nodes[level][index-1], node)
		}
		// Left child with no sibling yet: promote unchanged.
		index >>= 1
	}
	t.setNode(t.depth, 0, node)
	t.size++
}

// Update replaces the leaf at index and recomputes the affected path.
func (t *Tree) Update(index int, leaf fr.Element) error {
	if index < 0 || index >= t.size {
		return ErrIndexOutOfRange
	}

	node := leaf
	for level := 0; level < t.depth; level++ {
		t.nodes[level][index] = node
		if index&1 == 1 {
			node = hashPair(t.nodes[level][index-1], node)
		} else if index+1 < len(t.nodes[level]) {
			node = hashPair(node, t.nodes[level][index+1])
		}
		index >>= 1
	}
	t.nodes[t.depth][0] = node
	return nil
}

// GenerateProof extracts the membership path for the leaf at index.
func (t *Tree) GenerateProof(index int) (MerkleProof, error) {
	if index < 0 || index >= t.size {
		return MerkleProof{}, ErrIndexOutOfRange
	}

	leaf := t.nodes[0][index]
	siblings := make([]fr.Element, 0, t.depth)
	proofIndex := 0
	for level := 0; level < t.depth; level++ {
		isRight := index&1 == 1
		if isRight {
			siblings = append(siblings, t.nodes[level][index-1])
			proofIndex |= 1 << (len(siblings) - 1)
		} else if index+1 < len(t.nodes[level]) {
			siblings = append(siblings, t.nodes[level][index+1])
		}
		// Levels without a sibling contribute neither a sibling nor an
		// index bit: the node was promoted there.
		index >>= 1
	}

	return MerkleProof{
		Root:     t.Root(),
		Leaf:     leaf,
		Index:    proofIndex,
		Siblings: siblings,
	}, nil
}

// VerifyProof replays the sibling fold from the proof's leaf under the lean
// promotion rule and compares the result with the proof's root.
func VerifyProof(proof MerkleProof) bool {
	node := proof.Leaf
	for i, sibling := range proof.Siblings {
		if (proof.Index>>i)&1 == 1 {
			node = hashPair(sibling, node)
		} else {
			node = hashPair(node, sibling)
		}
	}
	return node.Equal(&proof.Root)
}

// setNode writes a node at (level, index), growing the level as needed.
func (t *Tree) setNode(level, index int, node fr.Element) {
	for len(t.nodes) <= level {
		t.nodes = append(t.nodes, []fr.Element{})
	}
	if index < len(t.nodes[level]) {
		t.nodes[level][index] = node
		return
	}
	t.nodes[level] = append(t.nodes[level], node)
}

// hashPair computes MiMC(left, right) over canonical field encodings.
// This is the same hash the membership circuit applies in-circuit.
func hashPair(left, right fr.Element) fr.Element {
	h := mimcNative.NewMiMC()
	l := left.Bytes()
	r := right.Bytes()
	h.Write(l[:])
	h.Write(r[:])

	var out fr.Element
	out.SetBytes(h.Sum(nil))
	return out
}

// requiredDepth returns ceil(log2(size)) for size >= 1.
func requiredDepth(size int) int {
	if size <= 1 {
		return 0
	}
	return bits.Len(uint(size - 1))
}
