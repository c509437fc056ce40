package audit

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogEvent(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	ctx := context.Background()
	ctx = WithRequestID(ctx, "req-123")
	ctx = WithActor(ctx, "User:user-42")

	if err := LogEvent(ctx, logger, "roles.grant", zap.String("role", "admin")); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["type"] != "audit" {
		t.Fatalf("unexpected type: %v", fields["type"])
	}
	if fields["event"] != "roles.grant" {
		t.Fatalf("unexpected event: %v", fields["event"])
	}
	if fields["request_id"] != "req-123" {
		t.Fatalf("unexpected request id: %v", fields["request_id"])
	}
	if fields["actor"] != "User:user-42" {
		t.Fatalf("unexpected actor: %v", fields["actor"])
	}
	if fields["role"] != "admin" {
		t.Fatalf("unexpected role: %v", fields["role"])
	}
}

func TestLogEventRequiresName(t *testing.T) {
	if err := LogEvent(context.Background(), zap.NewNop(), "  "); err == nil {
		t.Fatal("expected error for empty event")
	}
	if err := LogEvent(context.Background(), nil, "roles.grant"); err != nil {
		t.Fatalf("nil logger should be ignored: %v", err)
	}
}

func TestActorFromContext(t *testing.T) {
	if got := ActorFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty actor, got %q", got)
	}
	ctx := WithActor(context.Background(), "  ")
	if got := ActorFromContext(ctx); got != "" {
		t.Fatalf("blank actor must be ignored, got %q", got)
	}
	ctx = WithActor(ctx, "ApiKey:k-1")
	if got := ActorFromContext(ctx); got != "ApiKey:k-1" {
		t.Fatalf("unexpected actor %q", got)
	}
}
