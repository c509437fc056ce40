package session

import (
	"context"

	"authcore.io/internal/roles"
)

// Token scopes.
const (
	ScopeAdmin  = "admin"
	ScopeSystem = "system"
	ScopeUser   = "user"
)

// KnownScope reports whether scope is one of the token scopes.
func KnownScope(scope string) bool {
	switch scope {
	case ScopeAdmin, ScopeSystem, ScopeUser:
		return true
	}
	return false
}

// Subject is an authenticated principal.
type Subject interface {
	Ref() roles.Ref
	// RoleScopeKinds lists the target kinds the subject's roles may apply
	// to. An empty string stands for global roles.
	RoleScopeKinds() []string
}

// SubjectStore loads subjects of one scope. A nil Subject with a nil error
// means the subject does not exist.
type SubjectStore interface {
	LoadByID(ctx context.Context, id string) (Subject, error)
}

// RoleReader is the slice of roles.Store the service reads.
type RoleReader interface {
	NamesFor(ctx context.Context, subject roles.Ref, opts roles.ListOptions) ([]string, error)
}
