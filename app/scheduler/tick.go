package scheduler

import (
	"context"

	"github.com/google/uuid"
)

type tickKey struct{}

// WithTickID attaches a tick id to ctx
func WithTickID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, tickKey{}, id)
}

// TickID returns the tick id carried by ctx, or a fresh one
func TickID(ctx context.Context) string {
	if id, ok := ctx.Value(tickKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}
