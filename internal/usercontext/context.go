// Package usercontext carries the authenticated user identity through contexts.
package usercontext

import (
	"context"
	"strings"
)

type userIDKey struct{}

// WithUserID stores the user ID in the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, strings.TrimSpace(userID))
}

// UserIDFromContext returns the user ID from context, if set.
func UserIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	value, ok := ctx.Value(userIDKey{}).(string)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}
