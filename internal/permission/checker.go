package permission

import (
	"context"
	"fmt"
	"slices"

	"authcore.io/internal/roles"
)

// Scope names known to the default registry.
const (
	ScopeUser         = "User"
	ScopeOrganization = "Organization"
)

// checker holds what every scope checker shares.
type checker struct {
	env   Env
	actor roles.Ref
}

func (c checker) globalNames(ctx context.Context, who roles.Ref) ([]string, error) {
	return c.env.Roles.NamesFor(ctx, who, roles.ListOptions{Exact: true})
}

// topGlobal reports whether names contain one of the two most privileged
// global roles of the actor's kind.
func (c checker) topGlobal(names []string) bool {
	for _, top := range c.env.Catalog.TopNames(roles.GlobalScope(c.actor.Kind), 2) {
		if slices.Contains(names, top) {
			return true
		}
	}
	return false
}

// outranks reports whether the highest of actorNames is strictly above the
// highest of targetNames in scope. A target without a ranked role is
// outranked by any ranked actor.
func (c checker) outranks(actorNames, targetNames []string, scope roles.Scope) (bool, error) {
	if _, ok := c.env.Catalog.HighestPriority(actorNames, scope, false); !ok {
		return false, nil
	}
	if _, ok := c.env.Catalog.HighestPriority(targetNames, scope, false); !ok {
		return true, nil
	}
	cmp, err := c.env.Catalog.CompareHighest(actorNames, targetNames, scope)
	if err != nil {
		return false, err
	}
	return cmp > 0, nil
}

func (c checker) ranked(names []string, scope roles.Scope) bool {
	_, ok := c.env.Catalog.HighestPriority(names, scope, false)
	return ok
}

func (c checker) isSelf(target roles.Ref) bool {
	return target.Kind == c.actor.Kind && target.ID == c.actor.ID
}

// refArg reads args[i] as a reference. Plain strings are IDs of defaultKind.
func refArg(args []any, i int, defaultKind string) (roles.Ref, error) {
	if i >= len(args) {
		return roles.Ref{}, fmt.Errorf("%w: missing argument %d", ErrBadArguments, i)
	}
	var ref roles.Ref
	switch v := args[i].(type) {
	case roles.Ref:
		ref = v
	case *roles.Ref:
		if v == nil {
			return roles.Ref{}, fmt.Errorf("%w: argument %d is nil", ErrBadArguments, i)
		}
		ref = *v
	case string:
		ref = roles.Ref{Kind: defaultKind, ID: v}
	default:
		return roles.Ref{}, fmt.Errorf("%w: argument %d has type %T", ErrBadArguments, i, args[i])
	}
	if ref.Kind == "" || ref.ID == "" {
		return roles.Ref{}, fmt.Errorf("%w: argument %d is incomplete", ErrBadArguments, i)
	}
	return ref, nil
}

func stringArg(args []any, i int) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("%w: missing argument %d", ErrBadArguments, i)
	}
	s, ok := args[i].(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%w: argument %d must be a role name", ErrBadArguments, i)
	}
	return s, nil
}
