package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/mkrupp/inkspira/internal/domain"
	context_ "github.com/mkrupp/inkspira/internal/infra/context"
	"github.com/mkrupp/inkspira/internal/infra/logging"
)

// TokenValidator resolves an access token to the principal it was issued to.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (domain.Principal, error)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. A bare token without the scheme is accepted as well.
func BearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))

	if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}

	return header
}

// AuthorizingMiddleware validates the bearer token and puts the principal
// into the request context. With required set, requests without a valid token
// are rejected with 401. Otherwise a missing token leaves the request anonymous
// while an invalid one is still rejected.
func AuthorizingMiddleware(
	validator TokenValidator,
	log logging.Logger,
	required bool,
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				if required {
					log.WarnContext(r.Context(), "no token provided")
					WriteError(w, domain.ErrNoAuthToken)

					return
				}

				next.ServeHTTP(w, r)

				return
			}

			principal, err := validator.Validate(r.Context(), token)
			if err != nil {
				log.WarnContext(r.Context(), "validate token failed", "error", err)

				if domain.CodeOf(err) != domain.CodeUnavailable {
					err = errors.Join(domain.ErrInvalidAuthToken, err)
				}

				WriteError(w, err)

				return
			}

			ctx := context_.WithPrincipal(r.Context(), principal)
			ctx = context_.WithAccessToken(ctx, token)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
