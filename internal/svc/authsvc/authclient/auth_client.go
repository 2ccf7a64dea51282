package authclient

import (
	"context"

	"github.com/mkrupp/inkspira/internal/domain"
	http_ "github.com/mkrupp/inkspira/internal/infra/transport/http"
)

// AuthClient is the remote API of the auth service.
type AuthClient interface {
	http_.TokenValidator

	// Register creates an account and returns its principal.
	Register(ctx context.Context, email, password string) (domain.Principal, error)

	// Login exchanges credentials for a token pair.
	Login(ctx context.Context, email, password string) (domain.AuthTokenResponse, error)

	// Logout revokes the session of refreshToken.
	Logout(ctx context.Context, refreshToken string) error

	// Refresh rotates refreshToken into a new token pair.
	Refresh(ctx context.Context, refreshToken string) (domain.AuthTokenResponse, error)

	// RequestPasswordReset asks for a reset token to be delivered to email.
	RequestPasswordReset(ctx context.Context, email string) error

	// ConfirmPasswordReset sets a new password using a reset token.
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) error

	// DeleteAccount removes the account the access token was issued to.
	DeleteAccount(ctx context.Context, accessToken string) error
}
