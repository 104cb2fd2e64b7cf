/*
Package generic provides the feature-agnostic building blocks of the state engine.

PURPOSE:
  Every Learnify feature (roles, wallet, savings, staking, badges, leaderboard)
  is a keyed mapping from a caller identity to feature state. This package
  holds the pieces they share: the identity type, the Store abstraction,
  the error taxonomy, the clock and the audit trail contract.

KEY CONCEPTS IN THIS FILE (types.go):
  - Identity: opaque caller reference, the key of every store
  - SaturatingAdd: the overflow policy for every unsigned counter

DESIGN PRINCIPLES:
  1. Explicit state: stores are owned values, never package globals
  2. Explicit inputs: caller identity and time are parameters, not ambient lookups
  3. One lock per store: whole-store atomicity, no per-key striping

SEE ALSO:
  - store.go: Store interface
  - store/memory.go: In-memory Store implementation
  - errors.go: Error taxonomy
*/
package generic

import (
	"math"
	"math/bits"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// Identity identifies a caller. It is supplied by the call-dispatch boundary
// and never created or destroyed by the engine.
type Identity string

func (id Identity) String() string { return string(id) }

// IsZero reports whether the identity is empty.
func (id Identity) IsZero() bool { return id == "" }

// =============================================================================
// COUNTER ARITHMETIC
// =============================================================================

// SaturatingAdd returns a+b, clamped to math.MaxUint64 instead of wrapping.
// Every accumulating counter in the engine (goal progress, scores, token
// balances, staking rewards) uses this policy.
func SaturatingAdd(a, b uint64) uint64 {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return sum
}
