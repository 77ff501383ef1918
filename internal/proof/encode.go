// encode.go - Byte-to-field encodings shared by generation and verification.
//
// Messages and scopes arrive as raw strings and must end up as BN254
// scalars twice over: once embedded as a plain integer for the exported
// proof, and once reduced into the field for the circuit's public inputs.
// Both sides of the protocol run the same two functions, so the encodings
// here are part of the wire contract.

package proof

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	mimcNative "github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"golang.org/x/crypto/sha3"
)

// embedBytes encodes raw bytes as a big integer. Up to 32 bytes embed
// directly, big-endian, zero-padded on the right, so short ASCII strings
// survive the round trip through an exported proof. Longer inputs are
// reduced with keccak256 first.
func embedBytes(b []byte) *big.Int {
	if len(b) <= 32 {
		var buf [32]byte
		copy(buf[:], b)
		return new(big.Int).SetBytes(buf[:])
	}
	h := sha3.NewLegacyKeccak256()
	h.Write(b)
	return new(big.Int).SetBytes(h.Sum(nil)[:31])
}

// hashToField maps a big integer into the scalar field: keccak256 over the
// minimal big-endian bytes, keeping the top 31 bytes of the digest so the
// result always fits below the modulus. Zero hashes as a single zero byte,
// not as the empty string.
func hashToField(v *big.Int) fr.Element {
	b := v.Bytes()
	if len(b) == 0 {
		b = []byte{0}
	}
	h := sha3.NewLegacyKeccak256()
	h.Write(b)

	var e fr.Element
	e.SetBytes(h.Sum(nil)[:31])
	return e
}

// hashPair computes MiMC(a, b) over canonical field encodings. This is the
// nullifier hash and must match the in-circuit derivation exactly.
func hashPair(a, b fr.Element) fr.Element {
	h := mimcNative.NewMiMC()
	ab := a.Bytes()
	bb := b.Bytes()
	h.Write(ab[:])
	h.Write(bb[:])

	var out fr.Element
	out.SetBytes(h.Sum(nil))
	return out
}
