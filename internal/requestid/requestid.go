// Package requestid carries the correlation id of a public request through
// the gateway, across the RPC hop and into service logs.
package requestid

import (
	"context"

	"github.com/google/uuid"
)

// Header is the HTTP header used to accept and echo the id.
const Header = "X-Request-ID"

type contextKey struct{}

func New() string {
	return uuid.NewString()
}

func WithContext(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the id stored in ctx, or "".
func FromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}
