// Package identity carries the authenticated actor through a request.
// The core never authenticates; it trusts whatever the transport put here.
package identity

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Actor is the caller of a core operation.
type Actor struct {
	ID      primitive.ObjectID
	IsAdmin bool
}

type actorKey struct{}

// WithActor returns a context with the actor embedded.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// FromContext returns the actor from context and whether one was set.
func FromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}
