// points.go - Conversion between gnark proof objects and portable points.
//
// The exchange format carries the Groth16 argument as affine coordinates in
// decimal. G2 coordinates are stored extension-part first (A1 before A0),
// the packed ordering used by on-chain verifiers.

package proof

import (
	"errors"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fp"
	"github.com/consensys/gnark/backend/groth16"
	groth16bn254 "github.com/consensys/gnark/backend/groth16/bn254"
)

var errPointEncoding = errors.New("proof: unexpected proof point encoding")

// packPoints extracts the affine coordinates of a BN254 Groth16 proof.
func packPoints(p groth16.Proof) (Points, error) {
	bp, ok := p.(*groth16bn254.Proof)
	if !ok {
		return Points{}, errPointEncoding
	}

	var pts Points
	pts.A[0] = bp.Ar.X.BigInt(new(big.Int))
	pts.A[1] = bp.Ar.Y.BigInt(new(big.Int))
	pts.B[0][0] = bp.Bs.X.A1.BigInt(new(big.Int))
	pts.B[0][1] = bp.Bs.X.A0.BigInt(new(big.Int))
	pts.B[1][0] = bp.Bs.Y.A1.BigInt(new(big.Int))
	pts.B[1][1] = bp.Bs.Y.A0.BigInt(new(big.Int))
	pts.C[0] = bp.Krs.X.BigInt(new(big.Int))
	pts.C[1] = bp.Krs.Y.BigInt(new(big.Int))
	return pts, nil
}

// unpackPoints rebuilds a gnark proof object from portable points. Nil or
// out-of-field coordinates are rejected here; curve and subgroup membership
// are checked by the verifier itself.
func unpackPoints(pts Points) (groth16.Proof, error) {
	coords := []*big.Int{
		pts.A[0], pts.A[1],
		pts.B[0][0], pts.B[0][1], pts.B[1][0], pts.B[1][1],
		pts.C[0], pts.C[1],
	}
	for _, c := range coords {
		if c == nil || c.Sign() < 0 || c.Cmp(fp.Modulus()) >= 0 {
			return nil, errPointEncoding
		}
	}

	var bp groth16bn254.Proof
	bp.Ar.X.SetBigInt(pts.A[0])
	bp.Ar.Y.SetBigInt(pts.A[1])
	bp.Bs.X.A1.SetBigInt(pts.B[0][0])
	bp.Bs.X.A0.SetBigInt(pts.B[0][1])
	bp.Bs.Y.A1.SetBigInt(pts.B[1][0])
	bp.Bs.Y.A0.SetBigInt(pts.B[1][1])
	bp.Krs.X.SetBigInt(pts.C[0])
	bp.Krs.Y.SetBigInt(pts.C[1])
	return &bp, nil
}
