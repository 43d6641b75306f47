// Package context carries request-scoped correlation values used by logs and spans.
package context

import (
	"context"
	"strings"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	actorKey
	residenceIDKey
)

type actor struct {
	kind string
	id   string
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, strings.TrimSpace(requestID))
}

func RequestIDFromContext(ctx context.Context) string {
	value, _ := ctx.Value(requestIDKey).(string)
	return value
}

// WithActor records who is acting, e.g. ("user", "1789...").
func WithActor(ctx context.Context, actorType, actorID string) context.Context {
	return context.WithValue(ctx, actorKey, actor{
		kind: strings.TrimSpace(actorType),
		id:   strings.TrimSpace(actorID),
	})
}

func ActorFromContext(ctx context.Context) (string, string) {
	value, ok := ctx.Value(actorKey).(actor)
	if !ok {
		return "", ""
	}
	return value.kind, value.id
}

func WithResidenceID(ctx context.Context, residenceID string) context.Context {
	return context.WithValue(ctx, residenceIDKey, strings.TrimSpace(residenceID))
}

func ResidenceIDFromContext(ctx context.Context) string {
	value, _ := ctx.Value(residenceIDKey).(string)
	return value
}
