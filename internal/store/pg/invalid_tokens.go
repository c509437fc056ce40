package pg

import (
	"context"
	"database/sql"
	"time"

	"authcore.io/internal/token"
)

// InvalidTokenRepository stores spent tokens in the invalid_tokens table.
type InvalidTokenRepository struct {
	db *sql.DB
}

var _ token.Repository = (*InvalidTokenRepository)(nil)

func NewInvalidTokenRepository(db *sql.DB) *InvalidTokenRepository {
	return &InvalidTokenRepository{db: db}
}

func (r *InvalidTokenRepository) Purge(ctx context.Context, before time.Time) (int64, error) {
	if r.db == nil {
		return 0, errNoDB
	}
	res, err := r.db.ExecContext(ctx, `delete from invalid_tokens where purge_at <= $1`, before.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *InvalidTokenRepository) Insert(ctx context.Context, rec token.Record) (bool, error) {
	if r.db == nil {
		return false, errNoDB
	}
	res, err := r.db.ExecContext(ctx, `
		insert into invalid_tokens (token_hash, purge_at)
		values ($1, $2)
		on conflict (token_hash) do nothing
	`, rec.TokenHash, rec.PurgeAt.UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *InvalidTokenRepository) Exists(ctx context.Context, tokenHash string) (bool, error) {
	if r.db == nil {
		return false, errNoDB
	}
	var exists bool
	err := r.db.QueryRowContext(ctx, `select exists(select 1 from invalid_tokens where token_hash = $1)`, tokenHash).Scan(&exists)
	return exists, err
}
