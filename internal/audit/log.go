package audit

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
)

type ctxKey string

const (
	requestIDKey ctxKey = "audit_request_id"
	actorKey     ctxKey = "audit_actor"
)

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// WithActor records who is acting, as "<kind>:<id>".
func WithActor(ctx context.Context, actor string) context.Context {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext returns the actor recorded by WithActor.
func ActorFromContext(ctx context.Context) string {
	return stringFromContext(ctx, actorKey)
}

func stringFromContext(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes an audit entry enriched with request and actor context.
func LogEvent(ctx context.Context, logger *zap.Logger, event string, fields ...zap.Field) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	if logger == nil {
		return nil
	}
	entry := make([]zap.Field, 0, len(fields)+4)
	entry = append(entry,
		zap.String("type", "audit"),
		zap.String("event", event),
		zap.Time("ts", time.Now().UTC()),
	)
	if rid := stringFromContext(ctx, requestIDKey); rid != "" {
		entry = append(entry, zap.String("request_id", rid))
	}
	if actor := stringFromContext(ctx, actorKey); actor != "" {
		entry = append(entry, zap.String("actor", actor))
	}
	entry = append(entry, fields...)
	logger.Info("audit", entry...)
	return nil
}
