// Package contextkeys provides centralized context key definitions for values
// shared between the HTTP layer and the domain packages. Request ids and
// loggers are owned by pkg/observability.
//
// USAGE PATTERN:
//
//	ctx = contextkeys.WithActor(ctx, actor)
//	actor, ok := contextkeys.GetActor(ctx)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// ActorKey contains Actor
	// Set by: middleware.Authenticate (pkg/middleware/auth.go)
	// Required by: every /api handler and rbac.RequireAction
	// Type: Actor
	ActorKey Key = "actor"
)

// Actor is the authenticated user performing a request
type Actor struct {
	UserID int64
	// Subject is the raw token subject
	Subject string
}

// WithActor adds the authenticated actor to the context
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, ActorKey, actor)
}

// GetActor retrieves the authenticated actor from context
func GetActor(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(ActorKey).(Actor)
	return actor, ok
}
