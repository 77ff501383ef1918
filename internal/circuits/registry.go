// registry.go - Depth-keyed circuit artifacts and the Groth16 backend.
//
// Every supported depth maps to one precompiled artifact: the compiled
// constraint system plus its Groth16 proving and verifying keys. Artifacts
// are built (or loaded from disk) once, then shared read-only; proving and
// verifying never mutate them, so distinct calls can run in parallel.

package circuits

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
)

// Supported tree depth range. Each depth in the closed interval has its own
// circuit artifact; anything outside is rejected at the boundary.
const (
	MinTreeDepth = 1
	MaxTreeDepth = 32
)

// ErrUnsupportedDepth is returned for depths without a precompiled artifact.
var ErrUnsupportedDepth = errors.New("circuits: tree depth outside supported range")

// SupportedDepth reports whether a depth has a circuit artifact.
func SupportedDepth(depth int) bool {
	return depth >= MinTreeDepth && depth <= MaxTreeDepth
}

// Assignment carries the witness values for one membership proof.
// PathIndices and Siblings must have exactly depth entries; unused tail
// entries (beyond ProofLength) are zero.
type Assignment struct {
	MerkleRoot fr.Element
	Nullifier  fr.Element
	SignalHash fr.Element
	ScopeHash  fr.Element

	IdentityTrapdoor  fr.Element
	IdentityNullifier fr.Element
	ProofLength       int
	PathIndices       []int
	Siblings          []fr.Element
}

// artifact bundles the per-depth constraint system and Groth16 key pair.
type artifact struct {
	ccs constraint.ConstraintSystem
	pk  groth16.ProvingKey
	vk  groth16.VerifyingKey
}

// Registry owns the closed enumeration of depth-specific artifacts.
// With a non-empty key directory, generated keys are persisted and reloaded
// across processes so that proofs stay verifiable after a restart.
type Registry struct {
	mu        sync.Mutex
	keyDir    string
	artifacts map[int]*artifact
}

// NewRegistry creates a registry. keyDir may be empty to keep keys
// in memory only (tests and one-shot tools).
func NewRegistry(keyDir string) *Registry {
	return &Registry{
		keyDir:    keyDir,
		artifacts: make(map[int]*artifact),
	}
}

// Preload builds the artifacts for the given depths up front, so that later
// Prove and Verify calls never pay compilation or setup latency.
func (r *Registry) Preload(depths ...int) error {
	for _, depth := range depths {
		if _, err := r.artifactFor(depth); err != nil {
			return fmt.Errorf("preload depth %d: %w", depth, err)
		}
	}
	return nil
}

// Prove computes a witness for the depth-specific circuit and produces a
// Groth16 proof. It fails when the assignment does not satisfy the circuit
// constraints, e.g. when the sibling path does not hash to the root.
func (r *Registry) Prove(depth int, a *Assignment) (groth16.Proof, error) {
	art, err := r.artifactFor(depth)
	if err != nil {
		return nil, err
	}
	assignment, err := buildAssignment(depth, a, false)
	if err != nil {
		return nil, err
	}
	w, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("witness computation failed: %w", err)
	}
	proof, err := groth16.Prove(art.ccs, art.pk, w)
	if err != nil {
		return nil, fmt.Errorf("proof generation failed: %w", err)
	}
	return proof, nil
}

// Verify checks a Groth16 proof against the depth-specific verifying key
// and the public part of the assignment.
func (r *Registry) Verify(depth int, proof groth16.Proof, a *Assignment) error {
	art, err := r.artifactFor(depth)
	if err != nil {
		return err
	}
	assignment, err := buildAssignment(depth, a, true)
	if err != nil {
		return err
	}
	w, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return fmt.Errorf("public witness creation failed: %w", err)
	}
	if err := groth16.Verify(proof, art.vk, w); err != nil {
		return fmt.Errorf("proof verification failed: %w", err)
	}
	return nil
}

// artifactFor returns the cached artifact for a depth, building it on first
// use. Building compiles the circuit and loads or generates the key pair.
func (r *Registry) artifactFor(depth int) (*artifact, error) {
	if !SupportedDepth(depth) {
		return nil, ErrUnsupportedDepth
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if art, ok := r.artifacts[depth]; ok {
		return art, nil
	}

	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, NewMembershipCircuit(depth))
	if err != nil {
		return nil, fmt.Errorf("circuit compilation failed for depth %d: %w", depth, err)
	}
	pk, vk, err := r.setupOrLoadKeys(ccs, depth)
	if err != nil {
		return nil, fmt.Errorf("key setup failed for depth %d: %w", depth, err)
	}

	art := &artifact{ccs: ccs, pk: pk, vk: vk}
	r.artifacts[depth] = art
	return art, nil
}

// setupOrLoadKeys loads the Groth16 key pair for a depth from the key
// directory, generating and saving a fresh pair when none exists.
func (r *Registry) setupOrLoadKeys(ccs constraint.ConstraintSystem, depth int) (groth16.ProvingKey, groth16.VerifyingKey, error) {
	if r.keyDir == "" {
		return groth16.Setup(ccs)
	}

	pkPath := filepath.Join(r.keyDir, fmt.Sprintf("membership-%d_pk.bin", depth))
	vkPath := filepath.Join(r.keyDir, fmt.Sprintf("membership-%d_vk.bin", depth))

	pk, pkErr := loadProvingKey(pkPath)
	vk, vkErr := loadVerifyingKey(vkPath)
	if pkErr == nil && vkErr == nil {
		return pk, vk, nil
	}

	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(r.keyDir, 0755); err != nil {
		return nil, nil, err
	}
	if err := saveKey(pkPath, pk); err != nil {
		return nil, nil, err
	}
	if err := saveKey(vkPath, vk); err != nil {
		return nil, nil, err
	}
	return pk, vk, nil
}

func loadProvingKey(path string) (groth16.ProvingKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	pk := groth16.NewProvingKey(ecc.BN254)
	_, err = pk.ReadFrom(f)
	return pk, err
}

func loadVerifyingKey(path string) (groth16.VerifyingKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	vk := groth16.NewVerifyingKey(ecc.BN254)
	_, err = vk.ReadFrom(f)
	return vk, err
}

func saveKey(path string, key io.WriterTo) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = key.WriteTo(f)
	return err
}

// buildAssignment converts an Assignment into the circuit witness struct.
// For public-only witnesses the secret side is left at its zero values.
func buildAssignment(depth int, a *Assignment, publicOnly bool) (*MembershipCircuit, error) {
	c := NewMembershipCircuit(depth)
	c.MerkleRoot = a.MerkleRoot.String()
	c.Nullifier = a.Nullifier.String()
	c.SignalHash = a.SignalHash.String()
	c.ScopeHash = a.ScopeHash.String()
	if publicOnly {
		return c, nil
	}

	if len(a.Siblings) != depth || len(a.PathIndices) != depth {
		return nil, fmt.Errorf("assignment shape mismatch: depth %d, %d siblings, %d path indices",
			depth, len(a.Siblings), len(a.PathIndices))
	}
	c.IdentityTrapdoor = a.IdentityTrapdoor.String()
	c.IdentityNullifier = a.IdentityNullifier.String()
	c.ProofLength = a.ProofLength
	for i := 0; i < depth; i++ {
		c.PathIndices[i] = a.PathIndices[i]
		c.Siblings[i] = a.Siblings[i].String()
	}
	return c, nil
}
