// main.go - End-to-end membership signaling walkthrough.
//
// This demonstrates the complete protocol flow:
//   - three identities are derived from seeds
//   - their commitments form a group
//   - one member signals a message under a scope with a zero-knowledge proof
//   - the proof is serialized, re-imported, and verified
//   - a removed member can no longer prove membership
//
// Usage:
//
//	go run main.go
//
// Groth16 keys are generated under keys/ on first run and reused afterwards.
package main

import (
	"log"

	"semaphore/internal/circuits"
	"semaphore/internal/group"
	"semaphore/internal/identity"
	"semaphore/internal/proof"
)

const treeDepth = 4

func main() {
	log.Println("=== Anonymous Group Signaling: Walkthrough ===")

	// 1. Setup: compile the membership circuit and load or generate keys.
	registry := circuits.NewRegistry("keys")
	log.Printf("Preparing circuit artifacts for depth %d...", treeDepth)
	if err := registry.Preload(treeDepth); err != nil {
		log.Printf("ERROR: artifact setup failed: %v", err)
		return
	}

	// 2. Derive identities. The derivation is deterministic: a seed is all
	// a member needs to recover their identity later.
	seeds := []string{"alice-secret", "bob-secret", "carol-secret"}
	identities := make([]*identity.Identity, len(seeds))
	for i, seed := range seeds {
		id, err := identity.New([]byte(seed))
		if err != nil {
			log.Printf("ERROR: identity derivation failed: %v", err)
			return
		}
		identities[i] = id
		log.Printf("Identity %d commitment: %s", i, id)
	}

	// 3. Build the group from the public commitments.
	g, err := group.New()
	if err != nil {
		log.Printf("ERROR: group creation failed: %v", err)
		return
	}
	for _, id := range identities {
		if err := g.AddMember(id.Commitment()); err != nil {
			log.Printf("ERROR: member insertion failed: %v", err)
			return
		}
	}
	root := g.Root()
	log.Printf("Group of %d members, depth %d, root %s", g.Size(), g.Depth(), root.String())

	// 4. Alice signals anonymously: the proof shows she is some member,
	// without revealing which one.
	alice := identities[0]
	p, err := proof.GenerateProof(registry, alice, g, "approve proposal 7", "vote-2026-09", treeDepth)
	if err != nil {
		log.Printf("ERROR: proof generation failed: %v", err)
		return
	}
	log.Printf("Proof generated; nullifier %s", p.Nullifier.String())

	if !proof.VerifyProof(registry, p) {
		log.Println("ERROR: proof did not verify")
		return
	}
	log.Println("Proof verified.")

	// 5. Serialize for transport and verify the imported copy.
	serialized, err := p.Export()
	if err != nil {
		log.Printf("ERROR: proof export failed: %v", err)
		return
	}
	log.Printf("Serialized proof: %s", serialized)

	imported, err := proof.Import(serialized)
	if err != nil {
		log.Printf("ERROR: proof import failed: %v", err)
		return
	}
	if !proof.VerifyProof(registry, imported) {
		log.Println("ERROR: imported proof did not verify")
		return
	}
	log.Println("Imported proof verified.")

	// 6. A second signal by Alice under the same scope carries the same
	// nullifier, which is how a verifier detects double signaling.
	second, err := proof.GenerateProof(registry, alice, g, "a different message", "vote-2026-09", treeDepth)
	if err != nil {
		log.Printf("ERROR: proof generation failed: %v", err)
		return
	}
	if second.Nullifier.Cmp(p.Nullifier) == 0 {
		log.Println("Second signal under the same scope reuses the nullifier: double signal detected.")
	}

	// 7. Remove Bob; his slot is retired and can never prove again.
	bobIndex, _ := g.IndexOf(identities[1].Commitment())
	if err := g.RemoveMember(bobIndex); err != nil {
		log.Printf("ERROR: member removal failed: %v", err)
		return
	}
	newRoot := g.Root()
	log.Printf("Removed member %d; root is now %s", bobIndex, newRoot.String())

	if _, err := proof.GenerateProof(registry, identities[1], g, "still here?", "vote-2026-09", treeDepth); err != nil {
		log.Printf("Removed member cannot prove: %v", err)
	}

	log.Println("=== Walkthrough complete ===")
}
