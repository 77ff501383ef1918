// Package identity implements the commitment scheme of the signaling
// protocol: a deterministic pair of secret field scalars (trapdoor and
// nullifier) derived from a caller-supplied seed, and the public MiMC
// commitment that represents the holder inside a group.
//
// Identities are immutable once created. Only the commitment is public;
// the seed and the derived scalars must never leave the process.
package identity
