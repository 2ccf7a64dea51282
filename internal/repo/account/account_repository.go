package account

import (
	"context"
	"time"

	"github.com/mkrupp/inkspira/internal/domain"
)

// Repository persists accounts, refresh sessions and password reset tokens.
type Repository interface {
	// CreateAccount adds a new account.
	// Returns ErrUserAlreadyExists if the email is already taken.
	CreateAccount(ctx context.Context, account domain.Account) error

	// GetAccountByEmail retrieves an account by its normalized email.
	// Returns false if no account exists.
	GetAccountByEmail(ctx context.Context, email string) (*domain.Account, bool, error)

	// GetAccountByID retrieves an account by id. Returns false if no account exists.
	GetAccountByID(ctx context.Context, id string) (*domain.Account, bool, error)

	// UpdatePassword replaces the password hash of an account.
	UpdatePassword(ctx context.Context, accountID string, passwordHash []byte) error

	// DeleteAccount removes an account with its sessions and reset tokens.
	DeleteAccount(ctx context.Context, accountID string) error

	// CreateSession stores a refresh session.
	CreateSession(ctx context.Context, session domain.Session) error

	// GetSession looks up a session by the hash of its refresh token.
	GetSession(ctx context.Context, tokenHash []byte) (*domain.Session, bool, error)

	// RevokeSession marks a session revoked. Only one caller wins: revoking a
	// session that is unknown or already revoked returns ErrInvalidSession and
	// keeps the first revocation time.
	RevokeSession(ctx context.Context, sessionID string, at time.Time) error

	// RevokeAccountSessions revokes every active session of an account.
	RevokeAccountSessions(ctx context.Context, accountID string, at time.Time) error

	// CreatePasswordReset stores a reset token.
	CreatePasswordReset(ctx context.Context, reset domain.PasswordReset) error

	// ConsumePasswordReset marks the reset token with the given hash used and
	// returns it. Unknown, used or expired tokens yield ErrInvalidResetToken.
	ConsumePasswordReset(ctx context.Context, tokenHash []byte, now time.Time) (*domain.PasswordReset, error)

	// Close releases any resources held by the repository.
	Close() error
}

// RepositoryFactory is a function that creates a new Repository instance.
type RepositoryFactory func() (Repository, error)
