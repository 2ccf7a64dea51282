package context

import (
	"context"

	"github.com/mkrupp/inkspira/internal/domain"
)

type contextKey string

const (
	contextKeyPrincipal   = contextKey("principal")
	contextKeyAccessToken = contextKey("accessToken")
)

// PrincipalFromContext extracts the authenticated caller from the context.
// Returns false for anonymous requests.
func PrincipalFromContext(ctx context.Context) (domain.Principal, bool) {
	principal, ok := ctx.Value(contextKeyPrincipal).(domain.Principal)
	if !ok || principal.IsZero() {
		return domain.Principal{}, false
	}

	return principal, true
}

// UserIDFromContext returns the id of the authenticated caller, or "".
func UserIDFromContext(ctx context.Context) string {
	principal, _ := PrincipalFromContext(ctx)

	return principal.UserID
}

// WithPrincipal returns a context carrying the authenticated caller.
func WithPrincipal(ctx context.Context, principal domain.Principal) context.Context {
	return context.WithValue(ctx, contextKeyPrincipal, principal)
}

// AccessTokenFromContext returns the bearer token the caller authenticated
// with, for forwarding to downstream services.
func AccessTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(contextKeyAccessToken).(string)

	return token
}

// WithAccessToken returns a context carrying the caller's bearer token.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, contextKeyAccessToken, token)
}
