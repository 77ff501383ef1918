// circuit.go - Depth-parameterized membership circuit.
//
// One circuit instance exists per supported tree depth: the sibling and path
// arrays are sized when the circuit is constructed, before compilation, and
// cannot change at runtime. The statement proven is:
//
//	commitment = H(trapdoor, identityNullifier)
//	folding the first ProofLength siblings from commitment yields MerkleRoot
//	Nullifier = H(ScopeHash, identityNullifier)
//
// The public input declaration order (root, nullifier, signal hash, scope
// hash) is the verification wire contract and must not be reordered.

package circuits

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

// MembershipCircuit proves group membership and nullifier correctness for
// a lean Merkle tree of at most len(Siblings) levels.
type MembershipCircuit struct {
	// Public inputs
	MerkleRoot frontend.Variable `gnark:",public"`
	Nullifier  frontend.Variable `gnark:",public"`
	SignalHash frontend.Variable `gnark:",public"`
	ScopeHash  frontend.Variable `gnark:",public"`

	// Private inputs
	IdentityTrapdoor  frontend.Variable
	IdentityNullifier frontend.Variable
	ProofLength       frontend.Variable
	PathIndices       []frontend.Variable
	Siblings          []frontend.Variable
}

// NewMembershipCircuit allocates a circuit shape for the given tree depth.
func NewMembershipCircuit(depth int) *MembershipCircuit {
	return &MembershipCircuit{
		PathIndices: make([]frontend.Variable, depth),
		Siblings:    make([]frontend.Variable, depth),
	}
}

// Define declares the membership constraints.
func (c *MembershipCircuit) Define(api frontend.API) error {
	hasher, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}

	// Step 1: identity commitment binding.
	hasher.Write(c.IdentityTrapdoor)
	hasher.Write(c.IdentityNullifier)
	commitment := hasher.Sum()

	// Step 2: lean Merkle path fold. nodes[i] is the path node after i
	// hashing levels; a lean proof of length l stops at nodes[l].
	depth := len(c.Siblings)
	nodes := make([]frontend.Variable, depth+1)
	nodes[0] = commitment
	for i := 0; i < depth; i++ {
		api.AssertIsBoolean(c.PathIndices[i])
		left := api.Select(c.PathIndices[i], c.Siblings[i], nodes[i])
		right := api.Select(c.PathIndices[i], nodes[i], c.Siblings[i])
		hasher.Reset()
		hasher.Write(left, right)
		nodes[i+1] = hasher.Sum()
	}

	// Step 3: select nodes[ProofLength] as the root. Levels beyond the
	// proof length were promotions in the lean tree and contribute nothing.
	root := frontend.Variable(0)
	for i := 0; i <= depth; i++ {
		isLength := api.IsZero(api.Sub(c.ProofLength, i))
		root = api.Add(root, api.Mul(isLength, nodes[i]))
	}
	api.AssertIsEqual(root, c.MerkleRoot)

	// Step 4: nullifier correctness.
	hasher.Reset()
	hasher.Write(c.ScopeHash)
	hasher.Write(c.IdentityNullifier)
	api.AssertIsEqual(c.Nullifier, hasher.Sum())

	// Step 5: bind the signal hash with a dummy square so a proof cannot
	// be replayed with a different message.
	api.Mul(c.SignalHash, c.SignalHash)

	return nil
}
