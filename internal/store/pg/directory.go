package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"authcore.io/internal/roles"
	"authcore.io/internal/session"
)

// Account is a subject loaded from one of the directory tables.
type Account struct {
	ID         string
	Kind       string
	scopeKinds []string
}

func (a *Account) Ref() roles.Ref { return roles.Ref{Kind: a.Kind, ID: a.ID} }

func (a *Account) RoleScopeKinds() []string { return slices.Clone(a.scopeKinds) }

// Directory loads subjects of one token scope.
type Directory struct {
	db         *sql.DB
	kind       string
	scopeKinds []string
	query      string
	args       []any
}

var _ session.SubjectStore = (*Directory)(nil)

// NewUserDirectory loads active users for user-scope tokens.
func NewUserDirectory(db *sql.DB) *Directory {
	return &Directory{
		db:         db,
		kind:       roles.KindUser,
		scopeKinds: []string{"", roles.KindOrganization},
		query:      `select id from users where id = $1 and disabled_at is null`,
	}
}

// NewAdminDirectory loads active users that still hold one of adminRoles as a
// global grant. Admin-scope tokens of demoted users stop resolving.
func NewAdminDirectory(db *sql.DB, adminRoles []string) *Directory {
	args := []any{roles.KindUser}
	marks := make([]string, 0, len(adminRoles))
	for _, name := range adminRoles {
		args = append(args, name)
		marks = append(marks, fmt.Sprintf("$%d", len(args)+1))
	}
	in := "null"
	if len(marks) > 0 {
		in = strings.Join(marks, ", ")
	}
	return &Directory{
		db:         db,
		kind:       roles.KindUser,
		scopeKinds: []string{""},
		query: `
			select u.id from users u
			where u.id = $1 and u.disabled_at is null
			  and exists (
				select 1 from role_grants g
				where g.source_kind = $2 and g.source_id = u.id
				  and g.target_kind is null and g.name in (` + in + `)
			  )`,
		args: args,
	}
}

// NewServiceAccountDirectory loads active service accounts for system-scope
// tokens. Their roles only ever target organizations.
func NewServiceAccountDirectory(db *sql.DB) *Directory {
	return &Directory{
		db:         db,
		kind:       roles.KindAPIKey,
		scopeKinds: []string{roles.KindOrganization},
		query:      `select id from service_accounts where id = $1 and disabled_at is null`,
	}
}

// LoadByID returns a nil subject when id does not resolve.
func (d *Directory) LoadByID(ctx context.Context, id string) (session.Subject, error) {
	if d.db == nil {
		return nil, errNoDB
	}
	args := append([]any{id}, d.args...)
	var found string
	err := d.db.QueryRowContext(ctx, d.query, args...).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &Account{ID: found, Kind: d.kind, scopeKinds: d.scopeKinds}, nil
}
