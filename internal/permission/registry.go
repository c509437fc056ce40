package permission

import (
	"context"
	"maps"
	"slices"

	"authcore.io/internal/roles"
)

// RoleReader is the slice of roles.Store that checkers read from.
type RoleReader interface {
	NamesFor(ctx context.Context, subject roles.Ref, opts roles.ListOptions) ([]string, error)
}

// Env is what every checker is bound to besides the actor.
type Env struct {
	Catalog *roles.Catalog
	Roles   RoleReader
}

// CheckFunc answers one verb. Arguments are verb specific.
type CheckFunc func(ctx context.Context, args ...any) Outcome

// Checker implements the verbs of one scope. Verbs missing from the table are
// denied.
type Checker interface {
	Checks() map[Verb]CheckFunc
}

// Factory binds a scope checker to an environment and an actor.
type Factory func(env Env, actor roles.Ref) Checker

// Registry maps scope names to checker factories. It is immutable once built.
type Registry struct {
	classes map[string]Factory
}

// NewRegistry copies classes into a new registry; nil factories are skipped.
func NewRegistry(classes map[string]Factory) *Registry {
	r := &Registry{classes: make(map[string]Factory, len(classes))}
	for scope, f := range classes {
		if f != nil {
			r.classes[scope] = f
		}
	}
	return r
}

// DefaultRegistry knows the User and Organization scopes.
func DefaultRegistry() *Registry {
	return NewRegistry(map[string]Factory{
		ScopeUser:         NewUserChecker,
		ScopeOrganization: NewOrganizationChecker,
	})
}

func (r *Registry) ClassFor(scope string) (Factory, bool) {
	if r == nil {
		return nil, false
	}
	f, ok := r.classes[scope]
	return f, ok
}

// Scopes lists the registered scope names in sorted order.
func (r *Registry) Scopes() []string {
	return slices.Sorted(maps.Keys(r.classes))
}
