package common

import "context"

type ctxKey string

const (
	userIDKey    ctxKey = "auth/user-id"
	principalKey ctxKey = "auth/principal"
)

// Principal carries the claims of the authenticated caller as issued by the
// hosted auth provider.
type Principal struct {
	UserID string
	Email  string
	Name   string
	Role   string
}

// WithPrincipal stores the authenticated principal and its user id on the context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	ctx = context.WithValue(ctx, principalKey, p)
	return WithUserID(ctx, p.UserID)
}

// PrincipalFrom extracts the authenticated principal if present.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// WithUserID stores the authenticated user identifier on the provided context.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserID extracts the authenticated user identifier from the context if present.
func UserID(ctx context.Context) (string, bool) {
	v := ctx.Value(userIDKey)
	if v == nil {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}
