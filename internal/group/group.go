// group.go - Group membership semantics on top of the lean Merkle tree.
//
// A group is a set of identity commitments: duplicate members are rejected
// at insertion time, removal replaces the leaf with the zero sentinel so
// that all other member indices stay valid, and retired slots can never be
// proven again. The root is the public group identifier that proofs are
// checked against.
//
// NOTE: a Group is not thread-safe; wrap it with a mutex when sharing.

package group

import (
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"semaphore/internal/leanimt"
)

var (
	// ErrDuplicateMember is returned when a commitment is already a member.
	ErrDuplicateMember = errors.New("group: member already exists")
	// ErrEmptyLeaf is returned when a member value is the zero sentinel.
	ErrEmptyLeaf = errors.New("group: member value is empty")
	// ErrIndexOutOfRange is returned when an index does not address a slot.
	ErrIndexOutOfRange = errors.New("group: index out of range")
	// ErrRemovedMember is returned when an operation targets a removed slot.
	ErrRemovedMember = errors.New("group: member has been removed")
	// ErrAlreadyRemoved is returned when removing an already removed slot.
	ErrAlreadyRemoved = errors.New("group: member already removed")
)

// MerkleProof re-exports the tree proof type for callers of this package.
type MerkleProof = leanimt.MerkleProof

// Group is an incremental Merkle tree over identity commitments with
// set semantics. Slot indices are assigned in insertion order and are
// never reused after removal.
type Group struct {
	tree    *leanimt.Tree
	indices map[fr.Element]int
	removed map[int]struct{}
}

// New creates a group from an optional initial member list. Membership is
// a set: a duplicated commitment fails the whole construction, since two
// identical leaves would make nullifier bookkeeping ambiguous.
func New(initialMembers ...fr.Element) (*Group, error) {
	g := &Group{
		tree:    leanimt.New(),
		indices: make(map[fr.Element]int),
		removed: make(map[int]struct{}),
	}
	for i, member := range initialMembers {
		if err := g.AddMember(member); err != nil {
			return nil, fmt.Errorf("initial member %d: %w", i, err)
		}
	}
	return g, nil
}

// AddMember appends a commitment as a new leaf.
func (g *Group) AddMember(member fr.Element) error {
	if member.IsZero() {
		return ErrEmptyLeaf
	}
	if _, ok := g.indices[member]; ok {
		return ErrDuplicateMember
	}
	g.indices[member] = g.tree.Size()
	g.tree.Insert(member)
	return nil
}

// AddMembers appends several commitments in order.
func (g *Group) AddMembers(members []fr.Element) error {
	for i, member := range members {
		if err := g.AddMember(member); err != nil {
			return fmt.Errorf("member %d: %w", i, err)
		}
	}
	return nil
}

// UpdateMember replaces the member at index with a new commitment.
func (g *Group) UpdateMember(index int, member fr.Element) error {
	if index < 0 || index >= g.tree.Size() {
		return ErrIndexOutOfRange
	}
	if _, gone := g.removed[index]; gone {
		return ErrRemovedMember
	}
	if member.IsZero() {
		return ErrEmptyLeaf
	}
	if existing, ok := g.indices[member]; ok && existing != index {
		return ErrDuplicateMember
	}

	old, err := g.tree.Leaf(index)
	if err != nil {
		return err
	}
	if err := g.tree.Update(index, member); err != nil {
		return err
	}
	delete(g.indices, old)
	g.indices[member] = index
	return nil
}

// RemoveMember retires the slot at index by writing the zero sentinel into
// it. The slot index is never reused and can no longer be proven.
func (g *Group) RemoveMember(index int) error {
	if index < 0 || index >= g.tree.Size() {
		return ErrIndexOutOfRange
	}
	if _, gone := g.removed[index]; gone {
		return ErrAlreadyRemoved
	}

	old, err := g.tree.Leaf(index)
	if err != nil {
		return err
	}
	if err := g.tree.Update(index, fr.Element{}); err != nil {
		return err
	}
	delete(g.indices, old)
	g.removed[index] = struct{}{}
	return nil
}

// Root returns the current tree root, the zero element when empty.
func (g *Group) Root() fr.Element {
	return g.tree.Root()
}

// Depth returns the current tree depth.
func (g *Group) Depth() int {
	return g.tree.Depth()
}

// Size returns the number of slots, including removed ones.
func (g *Group) Size() int {
	return g.tree.Size()
}

// Members returns the leaf sequence in slot order; removed slots appear as
// the zero sentinel.
func (g *Group) Members() []fr.Element {
	return g.tree.Leaves()
}

// IndexOf returns the slot index of a member commitment.
func (g *Group) IndexOf(member fr.Element) (int, bool) {
	index, ok := g.indices[member]
	return index, ok
}

// GenerateMerkleProof extracts the membership path for the slot at index.
// Removed slots are refused: the zero sentinel must never be provable.
func (g *Group) GenerateMerkleProof(index int) (MerkleProof, error) {
	if index < 0 || index >= g.tree.Size() {
		return MerkleProof{}, ErrIndexOutOfRange
	}
	if _, gone := g.removed[index]; gone {
		return MerkleProof{}, ErrRemovedMember
	}
	return g.tree.GenerateProof(index)
}

// VerifyMerkleProof replays a membership path against its embedded root.
func VerifyMerkleProof(proof MerkleProof) bool {
	return leanimt.VerifyProof(proof)
}
