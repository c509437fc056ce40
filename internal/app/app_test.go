package app

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"authcore.io/internal/config"
	"authcore.io/internal/roles"
	"authcore.io/internal/session"
)

var t0 = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func testConfig() config.Config {
	return config.Config{
		Environment:         "development",
		LogLevel:            "debug",
		TokenSecret:         []byte("app-secret-app-secret-app-secret"),
		SessionTTL:          12 * time.Hour,
		SeedTTL:             15 * time.Minute,
		InvalidTokenGrace:   2 * time.Minute,
		InvalidTokenBackend: config.BackendPostgres,
		SeedRatePerMinute:   5,
		SeedBurst:           3,
	}
}

type user string

func (u user) Ref() roles.Ref { return roles.Ref{Kind: roles.KindUser, ID: string(u)} }
func (u user) RoleScopeKinds() []string { return []string{"", roles.KindOrganization} }

func fixed() time.Time { return t0 }

func TestNewInMemory(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	a, err := New(testConfig(), Deps{
		Logger:     zap.New(core),
		Registerer: prometheus.NewRegistry(),
		Clock:      fixed,
	})
	require.NoError(t, err)
	require.Equal(t, 1, logs.FilterMessage("no database configured, using in-memory repositories").Len())
	ctx := context.Background()

	admin := user("u-1")
	_, err = a.Roles.Grant(ctx, admin.Ref(), roles.RoleMasterAdmin, nil)
	require.NoError(t, err)
	require.True(t, a.Permissions.Can(ctx, admin.Ref(), "create:User").Allowed())
	require.True(t, a.Permissions.Can(ctx, user("u-2").Ref(), "create:User").Denied())

	raw, claims, err := a.Sessions.Issue(ctx, admin, session.IssueOptions{})
	require.NoError(t, err)
	require.Equal(t, session.ScopeAdmin, claims.Scope)
	require.Equal(t, t0.Add(12*time.Hour).Unix(), claims.ExpiresAt)

	_, err = a.Sessions.Validate(ctx, raw, session.ValidateOptions{OnlyVerify: true})
	require.NoError(t, err)
	_, err = a.Sessions.Validate(ctx, raw, session.ValidateOptions{})
	require.ErrorIs(t, err, session.ErrSubjectNotFound)

	require.NoError(t, a.Sessions.Revoke(ctx, raw))
	revoked, err := a.Invalid.IsBlacklisted(ctx, raw)
	require.NoError(t, err)
	require.True(t, revoked)
	require.NoError(t, a.Close())
}

func TestNewWithDatabase(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	a, err := New(testConfig(), Deps{DB: db, Logger: zap.NewNop(), Clock: fixed})
	require.NoError(t, err)
	ctx := context.Background()

	raw, _, err := a.Sessions.Issue(ctx, user("u-1"), session.IssueOptions{Scope: session.ScopeUser})
	require.NoError(t, err)

	mock.ExpectQuery("select exists\\(select 1 from invalid_tokens where token_hash = \\$1\\)").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("select id from users where id = \\$1 and disabled_at is null").
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u-1"))
	mock.ExpectQuery("select id, name, source_kind, source_id, target_kind, target_id, created_at, updated_at from role_grants").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "source_kind", "source_id", "target_kind", "target_id", "created_at", "updated_at"}).
			AddRow("g-1", roles.RoleSupport, roles.KindUser, "u-1", nil, nil, t0, t0))

	res, err := a.Sessions.Validate(ctx, raw, session.ValidateOptions{})
	require.NoError(t, err)
	require.Equal(t, roles.Ref{Kind: roles.KindUser, ID: "u-1"}, res.Subject.Ref())
	require.Equal(t, []string{roles.RoleSupport}, res.Roles)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisBackend(t *testing.T) {
	cfg := testConfig()
	cfg.InvalidTokenBackend = config.BackendRedis

	_, err := New(cfg, Deps{Logger: zap.NewNop()})
	require.Error(t, err)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	a, err := New(cfg, Deps{Redis: client, Logger: zap.NewNop(), Clock: fixed})
	require.NoError(t, err)
	ctx := context.Background()

	raw, _, err := a.Sessions.Issue(ctx, user("u-1"), session.IssueOptions{Scope: session.ScopeUser, TTL: time.Hour})
	require.NoError(t, err)
	require.NoError(t, a.Sessions.Revoke(ctx, raw))
	require.Len(t, mr.Keys(), 1)
	require.Equal(t, time.Hour+2*time.Minute, mr.TTL(mr.Keys()[0]))
}

func TestUnknownBackend(t *testing.T) {
	cfg := testConfig()
	cfg.InvalidTokenBackend = "etcd"
	_, err := New(cfg, Deps{Logger: zap.NewNop()})
	require.ErrorContains(t, err, "etcd")
}
