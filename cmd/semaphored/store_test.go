package main

import (
	"errors"
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/groth16"

	"semaphore/internal/circuits"
	"semaphore/internal/proof"
)

// stubVerifier lets store tests exercise signal bookkeeping without paying
// for a real Groth16 setup.
type stubVerifier struct {
	err error
}

func (v stubVerifier) Verify(depth int, p groth16.Proof, a *circuits.Assignment) error {
	return v.err
}

func elem(v uint64) fr.Element {
	var e fr.Element
	e.SetUint64(v)
	return e
}

// signalFor builds a structurally valid proof claiming the given root and
// nullifier; the stub verifier decides whether it "verifies".
func signalFor(root fr.Element, nullifier int64) *proof.Proof {
	n := func(v int64) *big.Int { return big.NewInt(v) }
	return &proof.Proof{
		MerkleTreeDepth: 3,
		MerkleTreeRoot:  root.BigInt(new(big.Int)),
		Nullifier:       n(nullifier),
		Message:         n(1),
		Scope:           n(2),
		Points: proof.Points{
			A: [2]*big.Int{n(1), n(2)},
			B: [2][2]*big.Int{{n(3), n(4)}, {n(5), n(6)}},
			C: [2]*big.Int{n(7), n(8)},
		},
	}
}

func TestStoreGroups(t *testing.T) {
	t.Run("Create And Describe", func(t *testing.T) {
		s := NewStore()
		if err := s.CreateGroup("g1"); err != nil {
			t.Fatalf("group creation failed: %v", err)
		}
		if err := s.CreateGroup("g1"); !errors.Is(err, ErrGroupExists) {
			t.Errorf("expected ErrGroupExists, got %v", err)
		}

		if err := s.AddMember("g1", elem(5)); err != nil {
			t.Fatalf("member insertion failed: %v", err)
		}
		info, err := s.Describe("g1")
		if err != nil {
			t.Fatalf("describe failed: %v", err)
		}
		if info.Size != 1 || len(info.Members) != 1 || info.Members[0] != "5" {
			t.Errorf("unexpected group snapshot: %+v", info)
		}
	})

	t.Run("Unknown Group", func(t *testing.T) {
		s := NewStore()
		if _, err := s.Describe("nope"); !errors.Is(err, ErrUnknownGroup) {
			t.Errorf("expected ErrUnknownGroup, got %v", err)
		}
		if err := s.AddMember("nope", elem(1)); !errors.Is(err, ErrUnknownGroup) {
			t.Errorf("expected ErrUnknownGroup, got %v", err)
		}
	})
}

func TestStoreSignals(t *testing.T) {
	setup := func(t *testing.T) (*Store, fr.Element) {
		t.Helper()
		s := NewStore()
		if err := s.CreateGroup("g"); err != nil {
			t.Fatalf("group creation failed: %v", err)
		}
		if err := s.AddMember("g", elem(5)); err != nil {
			t.Fatalf("member insertion failed: %v", err)
		}
		info, err := s.Describe("g")
		if err != nil {
			t.Fatalf("describe failed: %v", err)
		}
		var root fr.Element
		if _, err := root.SetString(info.Root); err != nil {
			t.Fatalf("root parse failed: %v", err)
		}
		return s, root
	}

	t.Run("Accepts Then Rejects Replay", func(t *testing.T) {
		s, root := setup(t)
		if err := s.SubmitSignal("g", signalFor(root, 111), stubVerifier{}); err != nil {
			t.Fatalf("first signal rejected: %v", err)
		}
		if err := s.SubmitSignal("g", signalFor(root, 111), stubVerifier{}); !errors.Is(err, ErrDoubleSignal) {
			t.Errorf("expected ErrDoubleSignal, got %v", err)
		}
		// A different nullifier from the same group is fine.
		if err := s.SubmitSignal("g", signalFor(root, 222), stubVerifier{}); err != nil {
			t.Errorf("independent signal rejected: %v", err)
		}
	})

	t.Run("Rejects Stale Root", func(t *testing.T) {
		s, oldRoot := setup(t)
		if err := s.AddMember("g", elem(6)); err != nil {
			t.Fatalf("member insertion failed: %v", err)
		}
		if err := s.SubmitSignal("g", signalFor(oldRoot, 333), stubVerifier{}); !errors.Is(err, ErrStaleRoot) {
			t.Errorf("expected ErrStaleRoot, got %v", err)
		}
	})

	t.Run("Rejects Failed Verification", func(t *testing.T) {
		s, root := setup(t)
		failing := stubVerifier{err: errors.New("bad pairing")}
		if err := s.SubmitSignal("g", signalFor(root, 444), failing); !errors.Is(err, ErrInvalidProof) {
			t.Errorf("expected ErrInvalidProof, got %v", err)
		}
		// The nullifier of a rejected signal is not consumed.
		if err := s.SubmitSignal("g", signalFor(root, 444), stubVerifier{}); err != nil {
			t.Errorf("nullifier burned by a rejected signal: %v", err)
		}
	})

	t.Run("Unknown Group", func(t *testing.T) {
		s, root := setup(t)
		if err := s.SubmitSignal("other", signalFor(root, 555), stubVerifier{}); !errors.Is(err, ErrUnknownGroup) {
			t.Errorf("expected ErrUnknownGroup, got %v", err)
		}
	})
}
