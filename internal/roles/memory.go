package roles

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

// MemoryRepository keeps grants in process memory. Transactions work on a
// copy of the table that replaces it on success.
type MemoryRepository struct {
	mu   sync.Mutex
	rows []Grant
	now  func() time.Time
}

var _ Repository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{now: time.Now}
}

func (m *MemoryRepository) Find(ctx context.Context, f Filter) ([]Grant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{rows: m.rows, now: m.now}).Find(ctx, f)
}

func (m *MemoryRepository) Insert(ctx context.Context, g Grant) (Grant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memTx{rows: m.rows, now: m.now}
	out, err := tx.Insert(ctx, g)
	if err != nil {
		return Grant{}, err
	}
	m.rows = tx.rows
	return out, nil
}

func (m *MemoryRepository) Delete(ctx context.Context, f Filter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memTx{rows: m.rows, now: m.now}
	n, err := tx.Delete(ctx, f)
	if err != nil {
		return 0, err
	}
	m.rows = tx.rows
	return n, nil
}

func (m *MemoryRepository) Atomically(ctx context.Context, _ string, fn func(Querier) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &memTx{rows: slices.Clone(m.rows), now: m.now}
	if err := fn(tx); err != nil {
		return err
	}
	m.rows = tx.rows
	return nil
}

type memTx struct {
	rows []Grant
	now  func() time.Time
}

func (t *memTx) Find(ctx context.Context, f Filter) ([]Grant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []Grant
	for _, g := range t.rows {
		if f.Matches(g) {
			out = append(out, g)
		}
	}
	slices.SortFunc(out, func(a, b Grant) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (t *memTx) Insert(ctx context.Context, g Grant) (Grant, error) {
	if err := ctx.Err(); err != nil {
		return Grant{}, err
	}
	if g.ID == "" || g.Name == "" || g.SourceKind == "" || g.SourceID == "" {
		return Grant{}, fmt.Errorf("%w: grant id, name and source are required", ErrInvalidInput)
	}
	for _, row := range t.rows {
		if row.ID == g.ID || sameAssignment(row, g) {
			return Grant{}, ErrConflict
		}
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = t.now().UTC()
	}
	if g.UpdatedAt.IsZero() {
		g.UpdatedAt = g.CreatedAt
	}
	t.rows = append(slices.Clone(t.rows), g)
	return g, nil
}

func (t *memTx) Delete(ctx context.Context, f Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if f.SourceKind == "" || f.SourceID == "" {
		return 0, fmt.Errorf("%w: delete requires a source", ErrInvalidInput)
	}
	kept := make([]Grant, 0, len(t.rows))
	var n int64
	for _, g := range t.rows {
		if f.Matches(g) {
			n++
			continue
		}
		kept = append(kept, g)
	}
	t.rows = kept
	return n, nil
}

func sameAssignment(a, b Grant) bool {
	return a.Name == b.Name &&
		a.SourceKind == b.SourceKind && a.SourceID == b.SourceID &&
		a.TargetKind == b.TargetKind && a.TargetID == b.TargetID
}
