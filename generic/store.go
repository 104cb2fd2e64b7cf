/*
store.go - Keyed state abstraction shared by every feature

PURPOSE:
  Defines the Store interface each feature keeps its per-identity state in,
  and the AuditLog interface the call boundary records write operations to.

KEY INTERFACES:
  Store[K, V]: Single-lock keyed mapping (get, contains, upsert, get-or-create, mutate)
  AuditLog:    Append-only trail of who did what when

LOCKING CONTRACT:
  Every Store method runs under one exclusive lock covering the whole store.
  Callbacks passed to GetOrCreate and Mutate run while that lock is held, so
  they must not call back into the same store. No method ever takes the lock
  of another store.

  A panic inside a callback releases the lock and propagates. The engine
  never recovers it: a broken invariant is a fatal condition for the caller.

COPY SEMANTICS:
  Values are returned by value. Values holding slices share backing arrays
  with the stored copy, so feature packages clone them before handing them
  out (see savings.Tracker.Goals, badges.Book.List).

IMPLEMENTATIONS:
  - generic/store/memory.go: In-memory, insertion-ordered

SEE ALSO:
  - store/sqlite/sqlite.go: AuditLog implementation
*/
package generic

import (
	"context"
	"time"
)

// =============================================================================
// STORE - Single-lock keyed mapping
// =============================================================================

// Store is a concurrent keyed mapping guarded by one exclusive lock.
type Store[K comparable, V any] interface {
	// Get returns the value stored under key.
	Get(key K) (V, bool)

	// Contains reports whether key has a value.
	Contains(key K) bool

	// Upsert stores value under key, replacing any previous value.
	Upsert(key K, value V)

	// GetOrCreate runs fn on the value stored under key, storing the zero
	// value first if key is absent.
	GetOrCreate(key K, fn func(v *V))

	// Mutate is a read-modify-write. fn receives the current value (zero if
	// absent) and whether it exists. When fn returns nil error the returned
	// value is stored; otherwise the store is left untouched and the error
	// is returned.
	Mutate(key K, fn func(current V, exists bool) (V, error)) error

	// Len returns the number of keys.
	Len() int

	// Values returns the stored values in key insertion order.
	Values() []V
}

// =============================================================================
// AUDIT LOG - Tracks who did what when
// =============================================================================

// AuditEntry records one write operation.
type AuditEntry struct {
	ID        string
	Timestamp time.Time
	Caller    Identity
	Action    AuditAction
	Outcome   string // "ok" or the error message
	Payload   map[string]any
}

type AuditAction string

const (
	AuditUserRegistered   AuditAction = "user_registered"
	AuditRestrictedAction AuditAction = "restricted_action"
	AuditGoalSet          AuditAction = "goal_set"
	AuditGoalProgress     AuditAction = "goal_progress"
	AuditStakeOpened      AuditAction = "stake_opened"
	AuditWalletCreated    AuditAction = "wallet_created"
	AuditWalletCredited   AuditAction = "wallet_credited"
	AuditBadgeAwarded     AuditAction = "badge_awarded"
	AuditScoreUpdated     AuditAction = "score_updated"
)

// AuditLog stores audit entries. Append-only.
type AuditLog interface {
	Append(ctx context.Context, entry AuditEntry) error
	Query(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

type AuditFilter struct {
	Caller  *Identity
	Actions []AuditAction
	From    *time.Time
	To      *time.Time
	Limit   int
}
