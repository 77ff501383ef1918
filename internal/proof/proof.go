// proof.go - Proof generation and verification orchestration.
//
// The orchestrator binds four things into one zero-knowledge argument: an
// identity, a membership path in a group tree, a message, and a scope. It
// owns no state of its own; everything a call needs travels in as explicit
// inputs, which is what makes concurrent proof generation safe.
//
// The Groth16 backend is reached through the narrow Prover and Verifier
// interfaces so that tests can substitute it.

package proof

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/groth16"

	"semaphore/internal/circuits"
	"semaphore/internal/group"
	"semaphore/internal/identity"
	"semaphore/internal/leanimt"
)

// Supported tree depth range, mirrored from the artifact registry.
const (
	MinTreeDepth = circuits.MinTreeDepth
	MaxTreeDepth = circuits.MaxTreeDepth
)

var (
	// ErrUnsupportedDepth is returned for depths with no circuit artifact.
	ErrUnsupportedDepth = circuits.ErrUnsupportedDepth
	// ErrMemberNotFound is returned when the identity commitment is not in
	// the group.
	ErrMemberNotFound = errors.New("proof: identity commitment is not a group member")
	// ErrProving is returned when the backend reports a constraint or
	// computation failure, e.g. a membership path that does not hash to
	// the claimed root.
	ErrProving = errors.New("proof: proving backend failed")
)

// Prover produces a Groth16 proof from a depth-specific circuit artifact
// and a witness assignment.
type Prover interface {
	Prove(depth int, a *circuits.Assignment) (groth16.Proof, error)
}

// Verifier checks a Groth16 proof against a depth-specific verifying key
// and the public part of an assignment.
type Verifier interface {
	Verify(depth int, proof groth16.Proof, a *circuits.Assignment) error
}

// Points is the portable form of the Groth16 curve point tuple. B stores
// each G2 coordinate with the extension part first, matching the packed
// ordering of the exchange format.
type Points struct {
	A [2]*big.Int
	B [2][2]*big.Int
	C [2]*big.Int
}

// Proof is a self-contained membership signal: the tree parameters it was
// generated against, the public signal values, and the opaque argument.
// It embeds the root at generation time, so later group mutations do not
// invalidate it; verifiers reject stale roots by their own bookkeeping.
type Proof struct {
	MerkleTreeDepth int
	MerkleTreeRoot  *big.Int
	Nullifier       *big.Int
	Message         *big.Int
	Scope           *big.Int
	Points          Points
}

// GenerateProof proves that the identity belongs to the group and signals
// the message under the scope. The identity's commitment must be a live
// member of the group.
func GenerateProof(backend Prover, id *identity.Identity, g *group.Group, message, scope string, treeDepth int) (*Proof, error) {
	index, ok := g.IndexOf(id.Commitment())
	if !ok {
		return nil, ErrMemberNotFound
	}
	merkleProof, err := g.GenerateMerkleProof(index)
	if err != nil {
		return nil, fmt.Errorf("membership path extraction failed: %w", err)
	}
	return GenerateProofWithMerkleProof(backend, id, merkleProof, message, scope, treeDepth)
}

// GenerateProofWithMerkleProof proves membership from a precomputed path.
// The caller attests that the path belongs to the identity's commitment;
// a path for a different leaf fails inside the backend.
func GenerateProofWithMerkleProof(backend Prover, id *identity.Identity, merkleProof leanimt.MerkleProof, message, scope string, treeDepth int) (*Proof, error) {
	// Step 1: depth must address a precompiled artifact, and the path
	// must fit the circuit's sibling array.
	if !circuits.SupportedDepth(treeDepth) {
		return nil, fmt.Errorf("%w: depth must be between %d and %d, got %d",
			ErrUnsupportedDepth, MinTreeDepth, MaxTreeDepth, treeDepth)
	}
	proofLength := len(merkleProof.Siblings)
	if proofLength > treeDepth {
		return nil, fmt.Errorf("%w: membership path has %d levels, circuit depth is %d",
			ErrProving, proofLength, treeDepth)
	}

	// Step 2: canonical field encodings of the message and scope, and the
	// public signal values derived from them.
	messageValue := embedBytes([]byte(message))
	scopeValue := embedBytes([]byte(scope))
	signalHash := hashToField(messageValue)
	scopeHash := hashToField(scopeValue)
	nullifier := hashPair(scopeHash, id.Nullifier())

	// Step 3: witness assignment. Siblings are padded to the circuit
	// depth; the tail beyond the proof length is never selected.
	siblings := make([]fr.Element, treeDepth)
	pathIndices := make([]int, treeDepth)
	for i := 0; i < proofLength; i++ {
		siblings[i] = merkleProof.Siblings[i]
		pathIndices[i] = (merkleProof.Index >> i) & 1
	}
	assignment := &circuits.Assignment{
		MerkleRoot:        merkleProof.Root,
		Nullifier:         nullifier,
		SignalHash:        signalHash,
		ScopeHash:         scopeHash,
		IdentityTrapdoor:  id.Trapdoor(),
		IdentityNullifier: id.Nullifier(),
		ProofLength:       proofLength,
		PathIndices:       pathIndices,
		Siblings:          siblings,
	}

	// Step 4: delegate to the backend. Generation is all-or-nothing; no
	// partial proof escapes on failure.
	groth16Proof, err := backend.Prove(treeDepth, assignment)
	if err != nil {
		if errors.Is(err, ErrUnsupportedDepth) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrProving, err)
	}
	points, err := packPoints(groth16Proof)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProving, err)
	}

	root := merkleProof.Root
	return &Proof{
		MerkleTreeDepth: treeDepth,
		MerkleTreeRoot:  root.BigInt(new(big.Int)),
		Nullifier:       nullifier.BigInt(new(big.Int)),
		Message:         messageValue,
		Scope:           scopeValue,
		Points:          points,
	}, nil
}

// VerifyProof checks a membership signal. It never returns an error:
// verification runs on adversarial input, so every structural defect -
// unsupported depth, malformed points, a backend rejection - is simply a
// false result.
func VerifyProof(backend Verifier, p *Proof) bool {
	if p == nil || !circuits.SupportedDepth(p.MerkleTreeDepth) {
		return false
	}
	if p.MerkleTreeRoot == nil || p.Nullifier == nil || p.Message == nil || p.Scope == nil {
		return false
	}
	// Root and nullifier are field elements and must be canonical: a value
	// shifted by a multiple of the modulus would reduce to the same public
	// input while reading as a distinct number to any outside bookkeeping
	// (nullifier sets in particular).
	if p.MerkleTreeRoot.Sign() < 0 || p.MerkleTreeRoot.Cmp(fr.Modulus()) >= 0 {
		return false
	}
	if p.Nullifier.Sign() < 0 || p.Nullifier.Cmp(fr.Modulus()) >= 0 {
		return false
	}

	groth16Proof, err := unpackPoints(p.Points)
	if err != nil {
		return false
	}

	// Recompute the expected public input vector in circuit order:
	// root, nullifier, signal hash, scope hash.
	var merkleRoot, nullifier fr.Element
	merkleRoot.SetBigInt(p.MerkleTreeRoot)
	nullifier.SetBigInt(p.Nullifier)
	assignment := &circuits.Assignment{
		MerkleRoot: merkleRoot,
		Nullifier:  nullifier,
		SignalHash: hashToField(p.Message),
		ScopeHash:  hashToField(p.Scope),
	}

	return backend.Verify(p.MerkleTreeDepth, groth16Proof, assignment) == nil
}
