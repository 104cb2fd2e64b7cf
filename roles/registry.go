/*
Package roles implements identity registration and the single admin capability.

PURPOSE:
  Maps each identity to exactly one Role. A role is set once and never
  changed: there is no update operation. The only authorization check in
  the engine (RestrictedAction) is a capability test on that role.

ROLES:
  Roles are a closed set. Labels outside the set are rejected at
  registration, so a typo can never silently register a non-admin that
  was meant to be an admin (or the reverse). Matching is exact and
  case-sensitive: "Admin" is not a role.

ERRORS:
  ErrAlreadyRegistered       (generic.ErrAlreadyExists)
  ErrNotFound                (generic.ErrNotFound)
  ErrNotRegistered           (generic.ErrNotAuthorized)
  ErrInsufficientPermissions (generic.ErrNotAuthorized)
  ErrUnknownRole             (generic.ErrInvalidInput)

SEE ALSO:
  - api/handlers.go: Register, GetRole, RestrictedAction endpoints
*/
package roles

import (
	"github.com/learnify/state-engine/generic"
	"github.com/learnify/state-engine/generic/store"
)

// =============================================================================
// ROLE
// =============================================================================

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleLearner  Role = "learner"
	RoleEducator Role = "educator"
)

// All lists every known role.
var All = []Role{RoleAdmin, RoleLearner, RoleEducator}

// ParseRole maps a label to a Role. Unknown labels return ErrUnknownRole.
func ParseRole(label string) (Role, error) {
	for _, r := range All {
		if string(r) == label {
			return r, nil
		}
	}
	return "", ErrUnknownRole
}

func (r Role) String() string { return string(r) }

// IsAdmin reports whether the role grants the restricted action.
func (r Role) IsAdmin() bool { return r == RoleAdmin }

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrAlreadyRegistered       = generic.NewError(generic.ErrAlreadyExists, "User already registered.")
	ErrNotFound                = generic.NewError(generic.ErrNotFound, "User not found.")
	ErrNotRegistered           = generic.NewError(generic.ErrNotAuthorized, "User not registered.")
	ErrInsufficientPermissions = generic.NewError(generic.ErrNotAuthorized, "Insufficient permissions.")
	ErrUnknownRole             = generic.NewError(generic.ErrInvalidInput, "Unknown role.")
)

const (
	MsgRegistered = "User registered successfully."
	MsgAuthorized = "Restricted action performed."
)

// =============================================================================
// REGISTRY
// =============================================================================

// Registry stores one role per identity.
type Registry struct {
	roles generic.Store[generic.Identity, Role]
}

func NewRegistry() *Registry {
	return NewRegistryWithStore(store.NewMemory[generic.Identity, Role]())
}

func NewRegistryWithStore(s generic.Store[generic.Identity, Role]) *Registry {
	return &Registry{roles: s}
}

// Register assigns role to id. The check and the insert happen under one
// lock, so two concurrent registrations for the same identity cannot both win.
func (r *Registry) Register(id generic.Identity, role Role) error {
	if _, err := ParseRole(string(role)); err != nil {
		return err
	}
	return r.roles.Mutate(id, func(current Role, exists bool) (Role, error) {
		if exists {
			return current, ErrAlreadyRegistered
		}
		return role, nil
	})
}

// Role returns the role registered for id.
func (r *Registry) Role(id generic.Identity) (Role, error) {
	role, ok := r.roles.Get(id)
	if !ok {
		return "", ErrNotFound
	}
	return role, nil
}

func (r *Registry) IsRegistered(id generic.Identity) bool {
	return r.roles.Contains(id)
}

// RestrictedAction succeeds only for identities registered as admin.
func (r *Registry) RestrictedAction(id generic.Identity) (string, error) {
	role, ok := r.roles.Get(id)
	if !ok {
		return "", ErrNotRegistered
	}
	if !role.IsAdmin() {
		return "", ErrInsufficientPermissions
	}
	return MsgAuthorized, nil
}

// Count returns the number of registered identities.
func (r *Registry) Count() int {
	return r.roles.Len()
}
