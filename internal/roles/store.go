package roles

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"authcore.io/internal/audit"
	"authcore.io/internal/ids"
	"authcore.io/internal/obs"
)

// Store grants, revokes and lists roles. It validates every name against the
// catalog before touching the repository.
type Store struct {
	catalog *Catalog
	repo    Repository
	logger  *zap.Logger
	metrics *obs.Metrics
	now     func() time.Time
}

// StoreOption configures Store behavior.
type StoreOption func(*Store) error

// WithLogger sets the logger used for audit events.
func WithLogger(logger *zap.Logger) StoreOption {
	return func(s *Store) error {
		s.logger = obs.OrNop(logger)
		return nil
	}
}

// WithMetrics records grant outcomes.
func WithMetrics(m *obs.Metrics) StoreOption {
	return func(s *Store) error {
		s.metrics = m
		return nil
	}
}

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) StoreOption {
	return func(s *Store) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewStore constructs Store with optional configuration.
func NewStore(catalog *Catalog, repo Repository, opts ...StoreOption) (*Store, error) {
	if catalog == nil {
		return nil, errors.New("roles: catalog is required")
	}
	if repo == nil {
		return nil, errRepositoryAbsent
	}
	s := &Store{
		catalog: catalog,
		repo:    repo,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) Catalog() *Catalog { return s.catalog }

// Grant assigns role name to subject within target's scope, or globally when
// target is nil. Granting a primary role retracts every other primary role the
// subject holds in the same scope. Granting a role the subject already holds
// returns the existing grant.
func (s *Store) Grant(ctx context.Context, subject Ref, name string, target *Ref) (Grant, error) {
	if !subject.valid() || (target != nil && !target.valid()) {
		s.metrics.RoleGrant("invalid")
		return Grant{}, fmt.Errorf("%w: subject and target need a kind and an id", ErrInvalidInput)
	}
	scope := ScopeOf(subject.Kind, targetKind(target))
	def, ok := s.catalog.Find(name, scope)
	if !ok {
		s.metrics.RoleGrant("unknown_role")
		return Grant{}, fmt.Errorf("%w: %s for %s -> %s", ErrUnknownRole, name, subject.Kind, displayKind(targetKind(target)))
	}

	var (
		granted   Grant
		retracted int64
	)
	err := s.repo.Atomically(ctx, scopeLockKey(subject, target), func(q Querier) error {
		if def.Primary {
			others := slices.DeleteFunc(s.catalog.PrimaryNames(scope), func(n string) bool { return n == def.Name })
			if len(others) > 0 {
				f := exactScope(subject, target)
				f.Names = others
				n, err := q.Delete(ctx, f)
				if err != nil {
					return fmt.Errorf("retract primary roles: %w", err)
				}
				retracted = n
			}
		}

		f := exactScope(subject, target)
		f.Names = []string{def.Name}
		f.Limit = 1
		existing, err := q.Find(ctx, f)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			granted = existing[0]
			return nil
		}

		now := s.now().UTC()
		row := Grant{
			ID:         ids.NewAt(now),
			Name:       def.Name,
			SourceKind: subject.Kind,
			SourceID:   subject.ID,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if target != nil {
			row.TargetKind = target.Kind
			row.TargetID = target.ID
		}
		granted, err = q.Insert(ctx, row)
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrConcurrentGrant):
			s.metrics.RoleGrant("conflict")
		default:
			s.metrics.RoleGrant("error")
		}
		return Grant{}, err
	}

	s.metrics.RoleGrant("granted")
	_ = audit.LogEvent(ctx, s.logger, "roles.grant",
		zap.String("role", granted.Name),
		zap.String("subject", subject.String()),
		zap.String("target", refString(target)),
		zap.String("grant_id", granted.ID),
		zap.Int64("retracted", retracted),
	)
	return granted, nil
}

// Revoke removes one grant. It returns ErrNotFound when the subject does not
// hold the role in that scope.
func (s *Store) Revoke(ctx context.Context, subject Ref, name string, target *Ref) error {
	if !subject.valid() || (target != nil && !target.valid()) {
		return fmt.Errorf("%w: subject and target need a kind and an id", ErrInvalidInput)
	}
	if _, ok := s.catalog.Find(name, ScopeOf(subject.Kind, targetKind(target))); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRole, name)
	}
	f := exactScope(subject, target)
	f.Names = []string{name}
	n, err := s.repo.Delete(ctx, f)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	_ = audit.LogEvent(ctx, s.logger, "roles.revoke",
		zap.String("role", name),
		zap.String("subject", subject.String()),
		zap.String("target", refString(target)),
	)
	return nil
}

// RevokeAllFor removes every grant subject holds in exactly target's scope.
func (s *Store) RevokeAllFor(ctx context.Context, subject Ref, target *Ref) error {
	if !subject.valid() || (target != nil && !target.valid()) {
		return fmt.Errorf("%w: subject and target need a kind and an id", ErrInvalidInput)
	}
	n, err := s.repo.Delete(ctx, exactScope(subject, target))
	if err != nil {
		return err
	}
	_ = audit.LogEvent(ctx, s.logger, "roles.revoke_all",
		zap.String("subject", subject.String()),
		zap.String("target", refString(target)),
		zap.Int64("removed", n),
	)
	return nil
}

// ListOptions narrows ListFor and NamesFor.
type ListOptions struct {
	// Target restricts results to global grants and grants on Target. A nil
	// Target lists every grant of the subject unless Exact is set.
	Target *Ref
	// Exact drops the global rows: only grants in exactly Target's scope (or
	// only global grants when Target is nil) are returned.
	Exact bool
	Names []string
	Limit int
}

// ListFor returns the subject's grants ordered by role name.
func (s *Store) ListFor(ctx context.Context, subject Ref, opts ListOptions) ([]Grant, error) {
	var f Filter
	switch {
	case opts.Exact:
		f = exactScope(subject, opts.Target)
	case opts.Target != nil:
		f = Filter{
			SourceKind:  subject.Kind,
			SourceID:    subject.ID,
			TargetKinds: []string{"", opts.Target.Kind},
			TargetIDs:   []string{"", opts.Target.ID},
		}
	default:
		f = Filter{SourceKind: subject.Kind, SourceID: subject.ID}
	}
	f.Names = opts.Names
	f.Limit = opts.Limit
	return s.repo.Find(ctx, f)
}

// NamesFor is ListFor reduced to role names.
func (s *Store) NamesFor(ctx context.Context, subject Ref, opts ListOptions) ([]string, error) {
	grants, err := s.ListFor(ctx, subject, opts)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(grants))
	for _, g := range grants {
		names = append(names, g.Name)
	}
	return names, nil
}

func refString(r *Ref) string {
	if r == nil {
		return "global"
	}
	return r.String()
}
