// store.go - In-memory group and nullifier registry for the signaling service
package main

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"semaphore/internal/group"
	"semaphore/internal/proof"
)

var (
	// ErrGroupExists is returned when creating a group whose id is taken.
	ErrGroupExists = errors.New("store: group already exists")
	// ErrUnknownGroup is returned when a group id is not registered.
	ErrUnknownGroup = errors.New("store: unknown group")
	// ErrStaleRoot is returned when a signal proves against an old root.
	ErrStaleRoot = errors.New("store: proof root does not match the current group root")
	// ErrDoubleSignal is returned when a nullifier has been seen before.
	ErrDoubleSignal = errors.New("store: nullifier already used in this group")
	// ErrInvalidProof is returned when proof verification fails.
	ErrInvalidProof = errors.New("store: proof verification failed")
)

// Store keeps the daemon's groups and the nullifiers already consumed per
// group. Nullifiers bind the scope cryptographically, so one set per group
// enforces one signal per identity per scope.
type Store struct {
	mu         sync.Mutex
	groups     map[string]*group.Group
	nullifiers map[string]map[string]struct{}
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		groups:     make(map[string]*group.Group),
		nullifiers: make(map[string]map[string]struct{}),
	}
}

// CreateGroup registers a new empty group under the given id
func (s *Store) CreateGroup(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.groups[id]; exists {
		return ErrGroupExists
	}
	g, err := group.New()
	if err != nil {
		return fmt.Errorf("group creation failed: %w", err)
	}
	s.groups[id] = g
	s.nullifiers[id] = make(map[string]struct{})
	return nil
}

// GroupInfo is the public snapshot of a group
type GroupInfo struct {
	ID      string   `json:"id"`
	Root    string   `json:"root"`
	Depth   int      `json:"depth"`
	Size    int      `json:"size"`
	Members []string `json:"members"`
}

// Describe returns a snapshot of the group under the given id
func (s *Store) Describe(id string) (*GroupInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, exists := s.groups[id]
	if !exists {
		return nil, ErrUnknownGroup
	}
	members := g.Members()
	memberStrings := make([]string, len(members))
	for i := range members {
		memberStrings[i] = members[i].String()
	}
	root := g.Root()
	return &GroupInfo{
		ID:      id,
		Root:    root.String(),
		Depth:   g.Depth(),
		Size:    g.Size(),
		Members: memberStrings,
	}, nil
}

// AddMember appends a commitment to the group under the given id
func (s *Store) AddMember(id string, commitment fr.Element) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, exists := s.groups[id]
	if !exists {
		return ErrUnknownGroup
	}
	return g.AddMember(commitment)
}

// RemoveMember retires a member slot in the group under the given id
func (s *Store) RemoveMember(id string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, exists := s.groups[id]
	if !exists {
		return ErrUnknownGroup
	}
	return g.RemoveMember(index)
}

// Size returns the member slot count of a group
func (s *Store) Size(id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, exists := s.groups[id]
	if !exists {
		return 0, ErrUnknownGroup
	}
	return g.Size(), nil
}

// SubmitSignal validates a membership signal against the group state: the
// proof root must be the current root, the proof must verify, and the
// nullifier must be fresh. A valid signal consumes its nullifier.
func (s *Store) SubmitSignal(id string, p *proof.Proof, backend proof.Verifier) error {
	s.mu.Lock()
	g, exists := s.groups[id]
	if !exists {
		s.mu.Unlock()
		return ErrUnknownGroup
	}
	root := g.Root()
	seen := s.nullifiers[id]
	nullifierKey := p.Nullifier.String()
	if _, used := seen[nullifierKey]; used {
		s.mu.Unlock()
		return ErrDoubleSignal
	}
	s.mu.Unlock()

	if p.MerkleTreeRoot.Cmp(root.BigInt(new(big.Int))) != 0 {
		return ErrStaleRoot
	}

	// Verification runs outside the lock; it is the slow path.
	if !proof.VerifyProof(backend, p) {
		return ErrInvalidProof
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, used := seen[nullifierKey]; used {
		return ErrDoubleSignal
	}
	seen[nullifierKey] = struct{}{}
	return nil
}
