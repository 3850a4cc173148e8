package auth

import (
	"context"

	"google.golang.org/grpc/metadata"
)

type actorKey struct{}

// WithActor stores the acting user on ctx, for interceptors and tests.
func WithActor(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, actorKey{}, userID)
}

// GetActor returns the user recorded against stock movements. It checks the
// context first and falls back to the x-user-id metadata header.
func GetActor(ctx context.Context) string {
	if val, ok := ctx.Value(actorKey{}).(string); ok && val != "" {
		return val
	}

	md, ok := metadata.FromIncomingContext(ctx)
	if ok {
		if val := md.Get("x-user-id"); len(val) > 0 {
			return val[0]
		}
	}
	return ""
}

// GetBranch returns the caller's branch from x-branch metadata, used as the
// default location filter.
func GetBranch(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if val := md.Get("x-branch"); len(val) > 0 {
			return val[0]
		}
	}
	return ""
}
