package permission

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"

	"authcore.io/internal/obs"
	"authcore.io/internal/roles"
)

// Resolver dispatches operations to the checker registered for their scope.
type Resolver struct {
	registry *Registry
	env      Env
	logger   *zap.Logger
	metrics  *obs.Metrics
}

// ResolverOption configures Resolver behavior.
type ResolverOption func(*Resolver) error

func WithLogger(logger *zap.Logger) ResolverOption {
	return func(r *Resolver) error {
		r.logger = obs.OrNop(logger)
		return nil
	}
}

func WithMetrics(m *obs.Metrics) ResolverOption {
	return func(r *Resolver) error {
		r.metrics = m
		return nil
	}
}

func NewResolver(registry *Registry, env Env, opts ...ResolverOption) (*Resolver, error) {
	if registry == nil {
		return nil, errors.New("permission: registry is required")
	}
	if env.Catalog == nil || env.Roles == nil {
		return nil, errors.New("permission: catalog and role reader are required")
	}
	r := &Resolver{registry: registry, env: env, logger: zap.NewNop()}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Resolve answers op for actor. Unknown scopes and verbs are denied; a
// panicking checker yields an error outcome wrapping ErrCheckerFault.
func (r *Resolver) Resolve(ctx context.Context, actor roles.Ref, op Operation) (out Outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("permission checker panicked",
				zap.String("operation", op.String()),
				zap.String("actor", actor.String()),
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()),
			)
			out = Fail(fmt.Errorf("%w: %s: %v", ErrCheckerFault, op, rec))
		}
		r.metrics.PermissionCheck(op.Scope, string(op.Verb), out.Label())
	}()

	factory, ok := r.registry.ClassFor(op.Scope)
	if !ok {
		return Deny("no permission class for scope " + op.Scope)
	}
	checker := factory(r.env, actor)
	if checker == nil {
		return Deny("no permission class for scope " + op.Scope)
	}
	check, ok := checker.Checks()[op.Verb]
	if !ok || check == nil {
		return Deny(fmt.Sprintf("%s does not support %s", op.Scope, op.Verb))
	}
	out = check(ctx, op.Args...)
	if out.IsError() && !errors.Is(out.Err(), ErrCheckerFault) {
		out = Fail(fmt.Errorf("%w: %s: %w", ErrCheckerFault, op, out.Err()))
	}
	return out
}

// Can parses spec and resolves it. A malformed spec is an error outcome.
func (r *Resolver) Can(ctx context.Context, actor roles.Ref, spec string, args ...any) Outcome {
	op, err := ParseOperation(spec, args...)
	if err != nil {
		return Fail(err)
	}
	return r.Resolve(ctx, actor, op)
}
