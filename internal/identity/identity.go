// identity.go - Identity derivation and commitment computation.
//
// All scalar derivations run over the BN254 scalar field so that the native
// values match what the membership circuit recomputes in-circuit.

package identity

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	mimcNative "github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards/eddsa"
	gchash "github.com/consensys/gnark-crypto/hash"
	"golang.org/x/crypto/sha3"
)

var (
	// ErrInvalidSeed is returned when the seed is empty.
	ErrInvalidSeed = errors.New("identity: seed must not be empty")
	// ErrMessageTooLong is returned when a signed message exceeds 32 bytes.
	ErrMessageTooLong = errors.New("identity: message exceeds 32 bytes")
)

// Domain separation counters for the trapdoor and nullifier derivations.
var (
	tagTrapdoor  = newElement(1)
	tagNullifier = newElement(2)
)

// Identity holds the secret scalar pair and the public commitment.
// The zero value is not usable; identities are created with New.
type Identity struct {
	trapdoor   fr.Element
	nullifier  fr.Element
	commitment fr.Element
	signingKey *eddsa.PrivateKey
}

// New derives an identity from a seed. The derivation is deterministic:
// the same seed always yields the same identity, which is how an identity
// is recovered.
func New(seed []byte) (*Identity, error) {
	if len(seed) == 0 {
		return nil, ErrInvalidSeed
	}

	// Reduce the seed to a base scalar, then split it into two
	// independent scalars with distinct domain counters.
	base := seedToScalar(seed)
	trapdoor, err := hash2(base, tagTrapdoor)
	if err != nil {
		return nil, fmt.Errorf("trapdoor derivation failed: %w", err)
	}
	nullifier, err := hash2(base, tagNullifier)
	if err != nil {
		return nil, fmt.Errorf("nullifier derivation failed: %w", err)
	}
	commitment, err := hash2(trapdoor, nullifier)
	if err != nil {
		return nil, fmt.Errorf("commitment computation failed: %w", err)
	}

	signingKey, err := deriveSigningKey(seed)
	if err != nil {
		return nil, fmt.Errorf("signing key derivation failed: %w", err)
	}

	return &Identity{
		trapdoor:   trapdoor,
		nullifier:  nullifier,
		commitment: commitment,
		signingKey: signingKey,
	}, nil
}

// Trapdoor returns the secret trapdoor scalar.
func (id *Identity) Trapdoor() fr.Element {
	return id.trapdoor
}

// Nullifier returns the secret nullifier scalar.
func (id *Identity) Nullifier() fr.Element {
	return id.nullifier
}

// Commitment returns the public identity commitment,
// Hash(trapdoor, nullifier).
func (id *Identity) Commitment() fr.Element {
	return id.commitment
}

// PublicKey returns the EdDSA public key associated with the identity.
func (id *Identity) PublicKey() *eddsa.PublicKey {
	return &id.signingKey.PublicKey
}

// String identifies the identity by its public commitment only.
func (id *Identity) String() string {
	return id.commitment.String()
}

// Sign signs a message of at most 32 bytes with the identity's EdDSA key.
// The message is reduced to a field element before hashing so the
// signature commits to the same encoding a verifier reconstructs.
func (id *Identity) Sign(message []byte) ([]byte, error) {
	if len(message) > 32 {
		return nil, ErrMessageTooLong
	}
	m := seedToScalar(message)
	mBytes := m.Bytes()
	return id.signingKey.Sign(mBytes[:], gchash.MIMC_BN254.New())
}

// Verify checks an EdDSA signature produced by Sign against a public key.
func Verify(pub *eddsa.PublicKey, signature, message []byte) (bool, error) {
	if len(message) > 32 {
		return false, ErrMessageTooLong
	}
	m := seedToScalar(message)
	mBytes := m.Bytes()
	return pub.Verify(signature, mBytes[:], gchash.MIMC_BN254.New())
}

// seedToScalar reduces arbitrary bytes to a scalar by hashing with keccak256
// and dropping the top byte, which keeps the result below the field modulus.
func seedToScalar(seed []byte) fr.Element {
	h := sha3.NewLegacyKeccak256()
	h.Write(seed)
	digest := h.Sum(nil)

	var e fr.Element
	e.SetBytes(digest[:31])
	return e
}

// hash2 computes MiMC(a, b) over canonical field encodings.
func hash2(a, b fr.Element) (fr.Element, error) {
	h := mimcNative.NewMiMC()
	aBytes := a.Bytes()
	bBytes := b.Bytes()
	if _, err := h.Write(aBytes[:]); err != nil {
		return fr.Element{}, err
	}
	if _, err := h.Write(bBytes[:]); err != nil {
		return fr.Element{}, err
	}

	var out fr.Element
	out.SetBytes(h.Sum(nil))
	return out, nil
}

// deriveSigningKey expands the seed into a deterministic byte stream for
// EdDSA key generation. Two keccak rounds with distinct suffixes give the
// generator more entropy bytes than it reads.
func deriveSigningKey(seed []byte) (*eddsa.PrivateKey, error) {
	h1 := sha3.NewLegacyKeccak256()
	h1.Write(seed)
	h1.Write([]byte{0x01})
	h2 := sha3.NewLegacyKeccak256()
	h2.Write(seed)
	h2.Write([]byte{0x02})
	stream := append(h1.Sum(nil), h2.Sum(nil)...)

	return eddsa.GenerateKey(bytes.NewReader(stream))
}

func newElement(v uint64) fr.Element {
	var e fr.Element
	e.SetUint64(v)
	return e
}
