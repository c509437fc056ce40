package pg

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"authcore.io/internal/roles"
)

var (
	alice = roles.Ref{Kind: roles.KindUser, ID: "u-1"}
	orgA  = &roles.Ref{Kind: roles.KindOrganization, ID: "org-a"}
	now   = time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
)

func grantRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "source_kind", "source_id", "target_kind", "target_id", "created_at", "updated_at"})
}

func newGrantStore(t *testing.T) (*roles.Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	store, err := roles.NewStore(roles.DefaultCatalog(), NewGrantRepository(db), roles.WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store, mock, func() { _ = db.Close() }
}

func TestWhereClause(t *testing.T) {
	where, args := whereClause(roles.Filter{
		SourceKind:  "User",
		SourceID:    "u-1",
		Names:       []string{"admin", "member"},
		TargetKinds: []string{""},
		TargetIDs:   []string{""},
	})
	want := " where source_kind = $1 and source_id = $2 and name in ($3, $4) and target_kind is null and target_id is null"
	if where != want {
		t.Fatalf("unexpected clause:\n got %q\nwant %q", where, want)
	}
	if len(args) != 4 {
		t.Fatalf("expected 4 args, got %v", args)
	}

	where, args = whereClause(roles.Filter{
		SourceID:    "u-1",
		TargetKinds: []string{"", "Organization"},
		TargetIDs:   []string{"", "org-a"},
	})
	want = " where source_id = $1 and (target_kind is null or target_kind in ($2)) and (target_id is null or target_id in ($3))"
	if where != want {
		t.Fatalf("unexpected clause:\n got %q\nwant %q", where, want)
	}
	if args[1] != "Organization" || args[2] != "org-a" {
		t.Fatalf("unexpected args %v", args)
	}

	if where, args := whereClause(roles.Filter{}); where != "" || args != nil {
		t.Fatalf("empty filter rendered %q %v", where, args)
	}
}

func TestGrantRunsInOneSerializableTransaction(t *testing.T) {
	store, mock, done := newGrantStore(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("select pg_advisory_xact_lock(hashtextextended($1, 0))")).
		WithArgs("role_grants:User:u-1@Organization:org-a").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("delete from role_grants where source_kind").
		WithArgs("User", "u-1", "superadmin", "member", "guest", "Organization", "org-a").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("select id, name, .* from role_grants where .* order by name asc, id asc limit").
		WithArgs("User", "u-1", "admin", "Organization", "org-a", 1).
		WillReturnRows(grantRows())
	mock.ExpectQuery("insert into role_grants").
		WithArgs(sqlmock.AnyArg(), "admin", "User", "u-1", "Organization", "org-a", now, now).
		WillReturnRows(grantRows().AddRow("01J0", "admin", "User", "u-1", "Organization", "org-a", now, now))
	mock.ExpectCommit()

	g, err := store.Grant(context.Background(), alice, roles.RoleAdmin, orgA)
	if err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if g.ID != "01J0" || g.TargetID != "org-a" {
		t.Fatalf("unexpected grant %+v", g)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGrantReturnsExistingRow(t *testing.T) {
	store, mock, done := newGrantStore(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("select pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select id, name, .* from role_grants").
		WithArgs("User", "u-1", "auditor", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "source_kind", "source_id", "target_kind", "target_id", "created_at", "updated_at"}).
			AddRow("01OLD", "auditor", "User", "u-1", nil, nil, now, now))
	mock.ExpectCommit()

	g, err := store.Grant(context.Background(), alice, roles.RoleAuditor, nil)
	if err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if g.ID != "01OLD" || g.Target() != nil {
		t.Fatalf("unexpected grant %+v", g)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGrantMapsSerializationFailure(t *testing.T) {
	store, mock, done := newGrantStore(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("select pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("delete from role_grants").
		WillReturnError(&pgconn.PgError{Code: pgErrSerializationFailure, Message: "could not serialize access"})
	mock.ExpectRollback()

	_, err := store.Grant(context.Background(), alice, roles.RoleSupport, nil)
	if !errors.Is(err, roles.ErrConcurrentGrant) {
		t.Fatalf("expected ErrConcurrentGrant, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGrantUnknownRoleTouchesNothing(t *testing.T) {
	store, mock, done := newGrantStore(t)
	defer done()

	if _, err := store.Grant(context.Background(), alice, "owner", orgA); !errors.Is(err, roles.ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected statements: %v", err)
	}
}

func TestInsertMapsUniqueViolation(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("insert into role_grants").WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})
	_, err = NewGrantRepository(db).Insert(context.Background(), roles.Grant{ID: "x", Name: "admin", SourceKind: "User", SourceID: "u-1"})
	if !errors.Is(err, roles.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestListAndRevokeAll(t *testing.T) {
	store, mock, done := newGrantStore(t)
	defer done()

	mock.ExpectQuery(regexp.QuoteMeta("(target_kind is null or target_kind in ($3))")).
		WithArgs("User", "u-1", "Organization", "org-a").
		WillReturnRows(grantRows().
			AddRow("01A", "admin", "User", "u-1", "Organization", "org-a", now, now).
			AddRow("01B", "auditor", "User", "u-1", nil, nil, now, now))
	names, err := store.NamesFor(context.Background(), alice, roles.ListOptions{Target: orgA})
	if err != nil {
		t.Fatalf("NamesFor: %v", err)
	}
	if strings.Join(names, ",") != "admin,auditor" {
		t.Fatalf("unexpected names %v", names)
	}

	mock.ExpectExec(regexp.QuoteMeta("delete from role_grants where source_kind = $1 and source_id = $2 and target_kind in ($3) and target_id in ($4)")).
		WithArgs("User", "u-1", "Organization", "org-a").
		WillReturnResult(sqlmock.NewResult(0, 2))
	if err := store.RevokeAllFor(context.Background(), alice, orgA); err != nil {
		t.Fatalf("RevokeAllFor: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteRequiresSource(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	if _, err := NewGrantRepository(db).Delete(context.Background(), roles.Filter{}); !errors.Is(err, roles.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSchemaDeclaresTables(t *testing.T) {
	for _, table := range []string{"role_grants", "invalid_tokens", "users", "service_accounts"} {
		if !strings.Contains(Schema, "create table if not exists "+table+" (") {
			t.Fatalf("schema is missing table %s", table)
		}
	}
}
