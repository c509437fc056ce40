package pg

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"authcore.io/internal/roles"
)

const grantColumns = `id, name, source_kind, source_id, target_kind, target_id, created_at, updated_at`

// GrantRepository stores role grants in the role_grants table.
type GrantRepository struct {
	db *sql.DB
}

var _ roles.Repository = (*GrantRepository)(nil)

func NewGrantRepository(db *sql.DB) *GrantRepository {
	return &GrantRepository{db: db}
}

func (r *GrantRepository) Find(ctx context.Context, f roles.Filter) ([]roles.Grant, error) {
	if r.db == nil {
		return nil, errNoDB
	}
	return grantQuerier{q: r.db}.Find(ctx, f)
}

func (r *GrantRepository) Insert(ctx context.Context, g roles.Grant) (roles.Grant, error) {
	if r.db == nil {
		return roles.Grant{}, errNoDB
	}
	return grantQuerier{q: r.db}.Insert(ctx, g)
}

func (r *GrantRepository) Delete(ctx context.Context, f roles.Filter) (int64, error) {
	if r.db == nil {
		return 0, errNoDB
	}
	return grantQuerier{q: r.db}.Delete(ctx, f)
}

// Atomically runs fn in a serializable transaction that first takes a
// transaction-scoped advisory lock on lockKey. Serialization failures and
// deadlocks surface as roles.ErrConcurrentGrant.
func (r *GrantRepository) Atomically(ctx context.Context, lockKey string, fn func(roles.Querier) error) error {
	if r.db == nil {
		return errNoDB
	}
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `select pg_advisory_xact_lock(hashtextextended($1, 0))`, lockKey); err != nil {
		return concurrent(err)
	}
	if err := fn(grantQuerier{q: tx}); err != nil {
		return concurrent(err)
	}
	return concurrent(tx.Commit())
}

func concurrent(err error) error {
	if err == nil {
		return nil
	}
	if pgErr, ok := maybePgError(err); ok {
		switch pgErr.Code {
		case pgErrSerializationFailure, pgErrDeadlockDetected:
			return fmt.Errorf("%w: %s", roles.ErrConcurrentGrant, pgErr.Message)
		}
	}
	return err
}

type grantQuerier struct {
	q dbtx
}

func (g grantQuerier) Find(ctx context.Context, f roles.Filter) ([]roles.Grant, error) {
	where, args := whereClause(f)
	query := `select ` + grantColumns + ` from role_grants` + where + ` order by name asc, id asc`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" limit $%d", len(args))
	}
	rows, err := g.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []roles.Grant
	for rows.Next() {
		grant, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, grant)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (g grantQuerier) Insert(ctx context.Context, grant roles.Grant) (roles.Grant, error) {
	row := g.q.QueryRowContext(ctx, `
		insert into role_grants (id, name, source_kind, source_id, target_kind, target_id, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
		returning `+grantColumns,
		grant.ID, grant.Name, grant.SourceKind, grant.SourceID,
		nullIfEmpty(grant.TargetKind), nullIfEmpty(grant.TargetID),
		grant.CreatedAt, grant.UpdatedAt,
	)
	out, err := scanGrant(row)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return roles.Grant{}, roles.ErrConflict
		}
		return roles.Grant{}, err
	}
	return out, nil
}

func (g grantQuerier) Delete(ctx context.Context, f roles.Filter) (int64, error) {
	if f.SourceKind == "" || f.SourceID == "" {
		return 0, fmt.Errorf("%w: delete requires a source", roles.ErrInvalidInput)
	}
	where, args := whereClause(f)
	res, err := g.q.ExecContext(ctx, `delete from role_grants`+where, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGrant(s scanner) (roles.Grant, error) {
	var (
		g              roles.Grant
		targetKind, id sql.NullString
	)
	if err := s.Scan(&g.ID, &g.Name, &g.SourceKind, &g.SourceID, &targetKind, &id, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return roles.Grant{}, err
	}
	g.TargetKind = targetKind.String
	g.TargetID = id.String
	return g, nil
}

// whereClause renders f with one placeholder per value. An empty string in a
// target list matches null.
func whereClause(f roles.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	eq := func(column, value string) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	in := func(column string, values []string, nullable bool) {
		var (
			marks   []string
			hasNull bool
		)
		for _, v := range values {
			if nullable && v == "" {
				hasNull = true
				continue
			}
			args = append(args, v)
			marks = append(marks, fmt.Sprintf("$%d", len(args)))
		}
		var parts []string
		if hasNull {
			parts = append(parts, column+" is null")
		}
		if len(marks) > 0 {
			parts = append(parts, fmt.Sprintf("%s in (%s)", column, strings.Join(marks, ", ")))
		}
		if len(parts) == 1 {
			conds = append(conds, parts[0])
		} else {
			conds = append(conds, "("+strings.Join(parts, " or ")+")")
		}
	}

	if f.SourceKind != "" {
		eq("source_kind", f.SourceKind)
	}
	if f.SourceID != "" {
		eq("source_id", f.SourceID)
	}
	if len(f.Names) > 0 {
		in("name", f.Names, false)
	}
	if len(f.TargetKinds) > 0 {
		in("target_kind", f.TargetKinds, true)
	}
	if len(f.TargetIDs) > 0 {
		in("target_id", f.TargetIDs, true)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " where " + strings.Join(conds, " and "), args
}
