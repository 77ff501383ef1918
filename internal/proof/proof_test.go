package proof

import (
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"golang.org/x/crypto/sha3"

	"semaphore/internal/circuits"
	"semaphore/internal/group"
	"semaphore/internal/identity"
)

const testDepth = 3

// backend is shared across the package tests; artifact compilation and key
// setup run once per depth.
var backend = circuits.NewRegistry("")

type fixture struct {
	alice *identity.Identity
	bob   *identity.Identity
	g     *group.Group
}

var (
	fixtureOnce sync.Once
	fix         fixture
)

func testFixture(t *testing.T) fixture {
	t.Helper()
	fixtureOnce.Do(func() {
		alice, err := identity.New([]byte("alice-seed"))
		if err != nil {
			t.Fatalf("identity creation failed: %v", err)
		}
		bob, err := identity.New([]byte("bob-seed"))
		if err != nil {
			t.Fatalf("identity creation failed: %v", err)
		}
		carol, err := identity.New([]byte("carol-seed"))
		if err != nil {
			t.Fatalf("identity creation failed: %v", err)
		}
		g, err := group.New(alice.Commitment(), bob.Commitment(), carol.Commitment())
		if err != nil {
			t.Fatalf("group creation failed: %v", err)
		}
		fix = fixture{alice: alice, bob: bob, g: g}
	})
	return fix
}

func TestGenerateAndVerify(t *testing.T) {
	f := testFixture(t)

	p, err := GenerateProof(backend, f.alice, f.g, "hello", "election-2026", testDepth)
	if err != nil {
		t.Fatalf("proof generation failed: %v", err)
	}

	t.Run("Valid Proof Verifies", func(t *testing.T) {
		if !VerifyProof(backend, p) {
			t.Error("valid proof rejected")
		}
	})

	t.Run("Embedded Values Match Inputs", func(t *testing.T) {
		if p.MerkleTreeDepth != testDepth {
			t.Errorf("depth %d, want %d", p.MerkleTreeDepth, testDepth)
		}
		root := f.g.Root()
		if p.MerkleTreeRoot.Cmp(root.BigInt(new(big.Int))) != 0 {
			t.Error("embedded root does not match the group root")
		}
		if p.Message.Cmp(embedBytes([]byte("hello"))) != 0 {
			t.Error("embedded message mismatch")
		}
		if p.Scope.Cmp(embedBytes([]byte("election-2026"))) != 0 {
			t.Error("embedded scope mismatch")
		}
	})

	t.Run("Tampered Message Fails", func(t *testing.T) {
		tampered := *p
		tampered.Message = embedBytes([]byte("goodbye"))
		if VerifyProof(backend, &tampered) {
			t.Error("proof verified with a swapped message")
		}
	})

	t.Run("Tampered Nullifier Fails", func(t *testing.T) {
		tampered := *p
		tampered.Nullifier = new(big.Int).Add(p.Nullifier, big.NewInt(1))
		if VerifyProof(backend, &tampered) {
			t.Error("proof verified with a shifted nullifier")
		}
	})

	t.Run("Tampered Points Fail", func(t *testing.T) {
		tampered := *p
		tampered.Points.A[0] = new(big.Int).Add(p.Points.A[0], big.NewInt(1))
		if VerifyProof(backend, &tampered) {
			t.Error("proof verified with a corrupted point")
		}
	})

	t.Run("Modulus-Shifted Encodings Fail", func(t *testing.T) {
		// nullifier + k*r reduces to the same field element but reads as
		// a fresh number to any nullifier set; such a proof must not
		// verify.
		shifted := *p
		shifted.Nullifier = new(big.Int).Add(p.Nullifier, fr.Modulus())
		if VerifyProof(backend, &shifted) {
			t.Error("proof verified with a modulus-shifted nullifier")
		}

		shifted = *p
		shifted.MerkleTreeRoot = new(big.Int).Add(p.MerkleTreeRoot, fr.Modulus())
		if VerifyProof(backend, &shifted) {
			t.Error("proof verified with a modulus-shifted root")
		}

		shifted = *p
		shifted.Nullifier = new(big.Int).Neg(p.Nullifier)
		if VerifyProof(backend, &shifted) {
			t.Error("proof verified with a negative nullifier")
		}
	})

	t.Run("Nil And Incomplete Proofs Fail", func(t *testing.T) {
		if VerifyProof(backend, nil) {
			t.Error("nil proof verified")
		}
		incomplete := *p
		incomplete.Points.C[1] = nil
		if VerifyProof(backend, &incomplete) {
			t.Error("proof with a nil coordinate verified")
		}
	})
}

func TestGenerateWithMerkleProof(t *testing.T) {
	f := testFixture(t)

	index, ok := f.g.IndexOf(f.bob.Commitment())
	if !ok {
		t.Fatal("fixture member missing from the group")
	}
	merkleProof, err := f.g.GenerateMerkleProof(index)
	if err != nil {
		t.Fatalf("membership path extraction failed: %v", err)
	}

	p, err := GenerateProofWithMerkleProof(backend, f.bob, merkleProof, "hello", "election-2026", testDepth)
	if err != nil {
		t.Fatalf("proof generation failed: %v", err)
	}
	if !VerifyProof(backend, p) {
		t.Error("proof from a caller-supplied path rejected")
	}

	// The two entry points agree: proving through the group resolves to
	// the same statement.
	viaGroup, err := GenerateProof(backend, f.bob, f.g, "hello", "election-2026", testDepth)
	if err != nil {
		t.Fatalf("proof generation failed: %v", err)
	}
	if p.Nullifier.Cmp(viaGroup.Nullifier) != 0 {
		t.Error("entry points disagree on the nullifier")
	}
	if p.MerkleTreeRoot.Cmp(viaGroup.MerkleTreeRoot) != 0 {
		t.Error("entry points disagree on the root")
	}

	// A path for another member's leaf cannot prove this identity.
	foreignIndex, _ := f.g.IndexOf(f.alice.Commitment())
	foreignPath, err := f.g.GenerateMerkleProof(foreignIndex)
	if err != nil {
		t.Fatalf("membership path extraction failed: %v", err)
	}
	if _, err := GenerateProofWithMerkleProof(backend, f.bob, foreignPath, "hello", "election-2026", testDepth); !errors.Is(err, ErrProving) {
		t.Errorf("expected ErrProving for a foreign path, got %v", err)
	}
}

func TestNullifierSemantics(t *testing.T) {
	f := testFixture(t)

	t.Run("Deterministic Per Identity And Scope", func(t *testing.T) {
		p1, err := GenerateProof(backend, f.alice, f.g, "message one", "scope-a", testDepth)
		if err != nil {
			t.Fatalf("proof generation failed: %v", err)
		}
		p2, err := GenerateProof(backend, f.alice, f.g, "message two", "scope-a", testDepth)
		if err != nil {
			t.Fatalf("proof generation failed: %v", err)
		}
		// Same identity, same scope: the nullifier links the two signals
		// even though the messages differ.
		if p1.Nullifier.Cmp(p2.Nullifier) != 0 {
			t.Error("nullifier varies with the message")
		}
	})

	t.Run("Distinct Across Scopes", func(t *testing.T) {
		p1, err := GenerateProof(backend, f.alice, f.g, "message", "scope-a", testDepth)
		if err != nil {
			t.Fatalf("proof generation failed: %v", err)
		}
		p2, err := GenerateProof(backend, f.alice, f.g, "message", "scope-b", testDepth)
		if err != nil {
			t.Fatalf("proof generation failed: %v", err)
		}
		if p1.Nullifier.Cmp(p2.Nullifier) == 0 {
			t.Error("nullifier does not separate scopes")
		}
	})

	t.Run("Distinct Across Identities", func(t *testing.T) {
		p1, err := GenerateProof(backend, f.alice, f.g, "message", "scope-a", testDepth)
		if err != nil {
			t.Fatalf("proof generation failed: %v", err)
		}
		p2, err := GenerateProof(backend, f.bob, f.g, "message", "scope-a", testDepth)
		if err != nil {
			t.Fatalf("proof generation failed: %v", err)
		}
		if p1.Nullifier.Cmp(p2.Nullifier) == 0 {
			t.Error("two identities share a nullifier")
		}
	})
}

func TestGenerationErrors(t *testing.T) {
	f := testFixture(t)

	t.Run("Member Not Found", func(t *testing.T) {
		outsider, err := identity.New([]byte("outsider-seed"))
		if err != nil {
			t.Fatalf("identity creation failed: %v", err)
		}
		_, err = GenerateProof(backend, outsider, f.g, "msg", "scope", testDepth)
		if !errors.Is(err, ErrMemberNotFound) {
			t.Errorf("expected ErrMemberNotFound, got %v", err)
		}
	})

	t.Run("Unsupported Depth", func(t *testing.T) {
		for _, depth := range []int{0, -3, 33} {
			_, err := GenerateProof(backend, f.alice, f.g, "msg", "scope", depth)
			if !errors.Is(err, ErrUnsupportedDepth) {
				t.Errorf("depth %d: expected ErrUnsupportedDepth, got %v", depth, err)
			}
		}
	})

	t.Run("Path Deeper Than Circuit", func(t *testing.T) {
		// A three-member tree yields two-level paths; a depth-1 circuit
		// cannot hold them.
		_, err := GenerateProof(backend, f.alice, f.g, "msg", "scope", 1)
		if !errors.Is(err, ErrProving) {
			t.Errorf("expected ErrProving, got %v", err)
		}
	})

	t.Run("Removed Member Cannot Prove", func(t *testing.T) {
		dave, err := identity.New([]byte("dave-seed"))
		if err != nil {
			t.Fatalf("identity creation failed: %v", err)
		}
		eve, err := identity.New([]byte("eve-seed"))
		if err != nil {
			t.Fatalf("identity creation failed: %v", err)
		}
		g, err := group.New(dave.Commitment(), eve.Commitment())
		if err != nil {
			t.Fatalf("group creation failed: %v", err)
		}
		index, _ := g.IndexOf(dave.Commitment())
		if err := g.RemoveMember(index); err != nil {
			t.Fatalf("remove failed: %v", err)
		}

		if _, err := GenerateProof(backend, dave, g, "msg", "scope", testDepth); !errors.Is(err, ErrMemberNotFound) {
			t.Errorf("expected ErrMemberNotFound, got %v", err)
		}

		// The survivor proves against the post-removal root.
		p, err := GenerateProof(backend, eve, g, "msg", "scope", testDepth)
		if err != nil {
			t.Fatalf("proof generation failed: %v", err)
		}
		if !VerifyProof(backend, p) {
			t.Error("survivor proof rejected")
		}
	})
}

func TestMessageEmbedding(t *testing.T) {
	t.Run("Short Strings Embed Directly", func(t *testing.T) {
		v := embedBytes([]byte("abc"))
		// Big-endian with zero padding on the right: the string occupies
		// the most significant bytes of a 32-byte word.
		b := v.Bytes()
		if len(b) != 32 || b[0] != 'a' || b[1] != 'b' || b[2] != 'c' {
			t.Errorf("unexpected embedding %x", b)
		}
	})

	t.Run("Long Inputs Are Reduced", func(t *testing.T) {
		long := make([]byte, 100)
		for i := range long {
			long[i] = byte(i)
		}
		v := embedBytes(long)
		if v.BitLen() > 31*8 {
			t.Errorf("reduced value too wide: %d bits", v.BitLen())
		}
	})

	t.Run("Empty Input Hashes As A Zero Byte", func(t *testing.T) {
		// The empty string embeds as zero, whose minimal big-endian
		// encoding is the single byte 0x00.
		zero := embedBytes(nil)
		if zero.Sign() != 0 {
			t.Fatalf("empty input embeds as %s, want 0", zero)
		}

		h := sha3.NewLegacyKeccak256()
		h.Write([]byte{0})
		var want fr.Element
		want.SetBytes(h.Sum(nil)[:31])

		got := hashToField(zero)
		if !got.Equal(&want) {
			t.Error("zero does not hash as a single zero byte")
		}
	})

	t.Run("Hash To Field Fits The Modulus", func(t *testing.T) {
		v := hashToField(embedBytes([]byte("anything")))
		if v.IsZero() {
			t.Error("hash to field collapsed to zero")
		}
	})
}
