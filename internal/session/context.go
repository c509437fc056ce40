package session

import (
	"context"

	"authcore.io/internal/audit"
)

type ctxKey string

const resultKey ctxKey = "session_result"

// ContextWithResult stores a validated token in the context and records its
// subject as the audit actor.
func ContextWithResult(ctx context.Context, res Result) context.Context {
	ctx = context.WithValue(ctx, resultKey, res)
	if res.Subject != nil {
		ctx = audit.WithActor(ctx, res.Subject.Ref().String())
	}
	return ctx
}

// ResultFromContext returns the validated token stored by ContextWithResult.
func ResultFromContext(ctx context.Context) (Result, bool) {
	res, ok := ctx.Value(resultKey).(Result)
	return res, ok
}
