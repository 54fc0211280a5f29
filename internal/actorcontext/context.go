package actorcontext

import (
	"context"
	"strings"
)

// ActorContextKey is the request context key for the calling actor.
type ActorContextKey struct{}

// SystemActor is recorded when no caller identity is present.
const SystemActor = "system"

// WithActorID stores the caller identity in the context.
func WithActorID(ctx context.Context, actorID string) context.Context {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return ctx
	}
	return context.WithValue(ctx, ActorContextKey{}, actorID)
}

// ActorIDFromContext returns the actor ID from context, if set.
func ActorIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	value, ok := ctx.Value(ActorContextKey{}).(string)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// ActorOrSystem resolves the actor recorded on created rows.
func ActorOrSystem(ctx context.Context) string {
	if actorID, ok := ActorIDFromContext(ctx); ok {
		return actorID
	}
	return SystemActor
}
