package domain

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoAuthToken is returned when an authentication token is required but not provided.
	ErrNoAuthToken = fmt.Errorf("%w: no auth token", ErrUnauthenticated)
	// ErrInvalidAuthToken is returned when a token's signature is invalid or it has expired.
	ErrInvalidAuthToken = fmt.Errorf("%w: invalid auth token", ErrUnauthenticated)
	// ErrUnauthorized is returned when the authenticated user lacks permission.
	ErrUnauthorized = fmt.Errorf("%w: unauthorized", ErrForbidden)
)

// Token types carried in the typ claim.
const (
	TokenTypeAccess = "access"
)

// AuthToken holds the claims of a signed access token.
type AuthToken struct {
	jwt.RegisteredClaims

	Email string `json:"email"`
	Type  string `json:"typ"`
}

// UserID returns the subject of the token.
func (t AuthToken) UserID() string {
	return t.Subject
}

// AuthTokenResponse is returned by sign-in, sign-up and refresh.
type AuthTokenResponse struct {
	UserID       string `json:"userId"`
	Email        string `json:"email"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"` // seconds
}

// Principal identifies the caller of a request.
type Principal struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

// IsZero reports whether p identifies nobody.
func (p Principal) IsZero() bool {
	return p.UserID == ""
}
