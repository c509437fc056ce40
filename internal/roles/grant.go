package roles

import (
	"context"
	"slices"
	"strings"
	"time"
)

// Ref points at an entity that holds or receives a role.
type Ref struct {
	Kind string
	ID   string
}

func (r Ref) String() string {
	return r.Kind + ":" + r.ID
}

func (r Ref) valid() bool {
	return strings.TrimSpace(r.Kind) != "" && strings.TrimSpace(r.ID) != ""
}

// Grant is a persisted role assignment. Empty TargetKind and TargetID mark a
// global grant.
type Grant struct {
	ID         string
	Name       string
	SourceKind string
	SourceID   string
	TargetKind string
	TargetID   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (g Grant) Source() Ref {
	return Ref{Kind: g.SourceKind, ID: g.SourceID}
}

// Target returns nil for global grants.
func (g Grant) Target() *Ref {
	if g.TargetKind == "" && g.TargetID == "" {
		return nil
	}
	return &Ref{Kind: g.TargetKind, ID: g.TargetID}
}

// Filter selects grant rows. Empty lists match anything; an empty string inside
// TargetKinds or TargetIDs matches the null (global) target.
type Filter struct {
	SourceKind  string
	SourceID    string
	Names       []string
	TargetKinds []string
	TargetIDs   []string
	// Limit caps the number of rows returned by Find; zero means no cap.
	Limit int
}

// Matches reports whether g satisfies f.
func (f Filter) Matches(g Grant) bool {
	if f.SourceKind != "" && g.SourceKind != f.SourceKind {
		return false
	}
	if f.SourceID != "" && g.SourceID != f.SourceID {
		return false
	}
	if len(f.Names) > 0 && !slices.Contains(f.Names, g.Name) {
		return false
	}
	if len(f.TargetKinds) > 0 && !slices.Contains(f.TargetKinds, g.TargetKind) {
		return false
	}
	if len(f.TargetIDs) > 0 && !slices.Contains(f.TargetIDs, g.TargetID) {
		return false
	}
	return true
}

// Querier is the set of statements available inside and outside a transaction.
// Find returns rows ordered by name ascending.
type Querier interface {
	Find(ctx context.Context, f Filter) ([]Grant, error)
	Insert(ctx context.Context, g Grant) (Grant, error)
	Delete(ctx context.Context, f Filter) (int64, error)
}

// Repository persists grants. Atomically runs fn in one serializable
// transaction holding a lock derived from lockKey; any error rolls back every
// statement fn issued.
type Repository interface {
	Querier
	Atomically(ctx context.Context, lockKey string, fn func(q Querier) error) error
}

// exactScope selects grants of subject in exactly the target's scope.
func exactScope(subject Ref, target *Ref) Filter {
	f := Filter{SourceKind: subject.Kind, SourceID: subject.ID}
	if target == nil {
		f.TargetKinds = []string{""}
		f.TargetIDs = []string{""}
		return f
	}
	f.TargetKinds = []string{target.Kind}
	f.TargetIDs = []string{target.ID}
	return f
}

func scopeLockKey(subject Ref, target *Ref) string {
	var b strings.Builder
	b.WriteString("role_grants:")
	b.WriteString(subject.String())
	if target != nil {
		b.WriteString("@")
		b.WriteString(target.String())
	}
	return b.String()
}

func targetKind(target *Ref) string {
	if target == nil {
		return ""
	}
	return target.Kind
}
