package pg

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"authcore.io/internal/token"
)

func TestInvalidTokenRepository(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	repo := NewInvalidTokenRepository(db)
	ctx := context.Background()
	purgeAt := now.Add(2 * time.Minute)

	mock.ExpectExec("delete from invalid_tokens where purge_at <=").WithArgs(now).WillReturnResult(sqlmock.NewResult(0, 3))
	n, err := repo.Purge(ctx, now)
	if err != nil || n != 3 {
		t.Fatalf("Purge = %d, %v", n, err)
	}

	mock.ExpectExec("insert into invalid_tokens .* on conflict \\(token_hash\\) do nothing").
		WithArgs("h1", purgeAt).WillReturnResult(sqlmock.NewResult(0, 1))
	inserted, err := repo.Insert(ctx, token.Record{TokenHash: "h1", PurgeAt: purgeAt})
	if err != nil || !inserted {
		t.Fatalf("first Insert = %v, %v", inserted, err)
	}

	mock.ExpectExec("insert into invalid_tokens").WithArgs("h1", purgeAt).WillReturnResult(sqlmock.NewResult(0, 0))
	inserted, err = repo.Insert(ctx, token.Record{TokenHash: "h1", PurgeAt: purgeAt})
	if err != nil || inserted {
		t.Fatalf("second Insert = %v, %v", inserted, err)
	}

	mock.ExpectQuery("select exists").WithArgs("h1").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	ok, err := repo.Exists(ctx, "h1")
	if err != nil || !ok {
		t.Fatalf("Exists = %v, %v", ok, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInvalidStoreOverPostgres(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	secret := []byte("pg-secret-pg-secret-pg-secret-32")
	clock := func() time.Time { return now }
	codec := token.NewCodec(clock)
	store, err := token.NewInvalidStore(NewInvalidTokenRepository(db), codec, secret, token.WithClock(clock))
	if err != nil {
		t.Fatalf("NewInvalidStore: %v", err)
	}
	raw, claims, err := codec.Encode(token.Claims{Scope: "user", SubjectID: "u-1", ExpiresAt: now.Add(time.Minute).Unix()}, secret)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	mock.ExpectExec("delete from invalid_tokens").WithArgs(now).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("insert into invalid_tokens").
		WithArgs(token.Hash(raw), claims.ExpiryTime().Add(120*time.Second)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	won, err := store.Consume(context.Background(), raw)
	if err != nil || !won {
		t.Fatalf("Consume = %v, %v", won, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
