// serialize.go - Canonical JSON exchange format for proofs.
//
// The layout is fixed: top-level keys in the order merkleTreeDepth,
// merkleTreeRoot, nullifier, message, scope, points; every numeric value a
// decimal string. Export of an imported proof reproduces the original
// document byte for byte.

package proof

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// ErrMalformedProof is returned when a serialized proof cannot be decoded:
// missing or unknown fields, wrong point arity, or an unparseable number.
var ErrMalformedProof = errors.New("proof: malformed serialized proof")

type proofJSON struct {
	MerkleTreeDepth int        `json:"merkleTreeDepth"`
	MerkleTreeRoot  string     `json:"merkleTreeRoot"`
	Nullifier       string     `json:"nullifier"`
	Message         string     `json:"message"`
	Scope           string     `json:"scope"`
	Points          pointsJSON `json:"points"`
}

type pointsJSON struct {
	A []string   `json:"a"`
	B [][]string `json:"b"`
	C []string   `json:"c"`
}

// Export encodes the proof in the canonical exchange layout.
func (p *Proof) Export() (string, error) {
	if p.MerkleTreeRoot == nil || p.Nullifier == nil || p.Message == nil || p.Scope == nil {
		return "", fmt.Errorf("proof: export of incomplete proof")
	}
	for _, c := range []*big.Int{p.Points.A[0], p.Points.A[1], p.Points.C[0], p.Points.C[1],
		p.Points.B[0][0], p.Points.B[0][1], p.Points.B[1][0], p.Points.B[1][1]} {
		if c == nil {
			return "", fmt.Errorf("proof: export of incomplete proof")
		}
	}

	doc := proofJSON{
		MerkleTreeDepth: p.MerkleTreeDepth,
		MerkleTreeRoot:  p.MerkleTreeRoot.String(),
		Nullifier:       p.Nullifier.String(),
		Message:         p.Message.String(),
		Scope:           p.Scope.String(),
		Points: pointsJSON{
			A: []string{p.Points.A[0].String(), p.Points.A[1].String()},
			B: [][]string{
				{p.Points.B[0][0].String(), p.Points.B[0][1].String()},
				{p.Points.B[1][0].String(), p.Points.B[1][1].String()},
			},
			C: []string{p.Points.C[0].String(), p.Points.C[1].String()},
		},
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("proof encoding failed: %w", err)
	}
	return string(out), nil
}

// Import decodes a serialized proof. The document must match the canonical
// layout exactly; any structural deviation yields ErrMalformedProof.
func Import(serialized string) (*Proof, error) {
	dec := json.NewDecoder(strings.NewReader(serialized))
	dec.DisallowUnknownFields()

	var doc proofJSON
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedProof, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after proof document", ErrMalformedProof)
	}
	if doc.MerkleTreeDepth <= 0 {
		return nil, fmt.Errorf("%w: non-positive tree depth %d", ErrMalformedProof, doc.MerkleTreeDepth)
	}
	if len(doc.Points.A) != 2 || len(doc.Points.C) != 2 || len(doc.Points.B) != 2 ||
		len(doc.Points.B[0]) != 2 || len(doc.Points.B[1]) != 2 {
		return nil, fmt.Errorf("%w: wrong point arity", ErrMalformedProof)
	}

	p := &Proof{MerkleTreeDepth: doc.MerkleTreeDepth}
	var err error
	if p.MerkleTreeRoot, err = parseDecimal(doc.MerkleTreeRoot); err != nil {
		return nil, fmt.Errorf("%w: merkleTreeRoot: %v", ErrMalformedProof, err)
	}
	if p.Nullifier, err = parseDecimal(doc.Nullifier); err != nil {
		return nil, fmt.Errorf("%w: nullifier: %v", ErrMalformedProof, err)
	}
	if p.Message, err = parseDecimal(doc.Message); err != nil {
		return nil, fmt.Errorf("%w: message: %v", ErrMalformedProof, err)
	}
	if p.Scope, err = parseDecimal(doc.Scope); err != nil {
		return nil, fmt.Errorf("%w: scope: %v", ErrMalformedProof, err)
	}
	for i := 0; i < 2; i++ {
		if p.Points.A[i], err = parseDecimal(doc.Points.A[i]); err != nil {
			return nil, fmt.Errorf("%w: points.a[%d]: %v", ErrMalformedProof, i, err)
		}
		if p.Points.C[i], err = parseDecimal(doc.Points.C[i]); err != nil {
			return nil, fmt.Errorf("%w: points.c[%d]: %v", ErrMalformedProof, i, err)
		}
		for j := 0; j < 2; j++ {
			if p.Points.B[i][j], err = parseDecimal(doc.Points.B[i][j]); err != nil {
				return nil, fmt.Errorf("%w: points.b[%d][%d]: %v", ErrMalformedProof, i, j, err)
			}
		}
	}
	return p, nil
}

// parseDecimal parses a non-negative base-10 integer string.
func parseDecimal(s string) (*big.Int, error) {
	if s == "" {
		return nil, errors.New("empty numeric string")
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("not a non-negative decimal: %q", s)
	}
	return v, nil
}
