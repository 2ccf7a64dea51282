package authsvc

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mkrupp/inkspira/internal/domain"
	"github.com/mkrupp/inkspira/internal/infra/clock"
	"github.com/mkrupp/inkspira/internal/infra/logging"
	"github.com/mkrupp/inkspira/internal/infra/metrics"
	"github.com/mkrupp/inkspira/internal/repo/account"
)

// AuthConfig contains configuration parameters for the authentication service.
type AuthConfig struct {
	// SigningKeyFile is the path to the RSA private key file
	SigningKeyFile string `env:"SIGNING_KEY_FILE" default:"var/storage/authsvc.key"`
	SigningKeyBits int    `env:"SIGNING_KEY_BITS" default:"2048"`

	Issuer string `env:"ISSUER" default:"inkspira-authsvc"`

	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" default:"1h"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" default:"720h"`
	ResetTokenTTL   time.Duration `env:"RESET_TOKEN_TTL" default:"1h"`

	BcryptCost int `env:"BCRYPT_COST" default:"10"`

	// LoginRate is the sustained number of sign-in attempts per second and email.
	LoginRate  float64 `env:"LOGIN_RATE" default:"0.2"`
	LoginBurst int     `env:"LOGIN_BURST" default:"5"`
}

// AuthService manages accounts, access tokens, refresh sessions and password resets.
type AuthService struct {
	Config     AuthConfig
	Accounts   account.Repository
	Log        logging.Logger
	SigningKey *rsa.PrivateKey
	Clock      clock.Clock
	Notifier   ResetNotifier
	Limiter    *LoginLimiter
}

// NewAuthService loads the signing key and opens the account repository.
func NewAuthService(repoFactory account.RepositoryFactory, cfg AuthConfig) (*AuthService, error) {
	log := logging.GetLogger("svc.authsvc.auth_service")

	signingKey, err := GetPrivateKey(cfg.SigningKeyFile, cfg.SigningKeyBits)
	if err != nil {
		return nil, fmt.Errorf("get private key: %w", err)
	}

	accounts, err := repoFactory()
	if err != nil {
		return nil, fmt.Errorf("new account repo: %w", err)
	}

	return &AuthService{
		Config:     cfg,
		Accounts:   accounts,
		Log:        log,
		SigningKey: signingKey,
		Clock:      clock.RealClock{},
		Notifier:   LogResetNotifier{Log: logging.GetLogger("svc.authsvc.reset_notifier")},
		Limiter:    NewLoginLimiter(cfg.LoginRate, cfg.LoginBurst),
	}, nil
}

func recordEvent(event string, err error) {
	metrics.AuthEventsTotal.WithLabelValues(event, metrics.Outcome(err)).Inc()
}

// Register creates an account for email with a bcrypt hash of password.
func (s *AuthService) Register(ctx context.Context, email, password string) (_ domain.Account, err error) {
	email = domain.NormalizeEmail(email)
	log := s.Log.With(logging.Group("account", "email", email))

	defer func() {
		recordEvent("register", err)

		if err != nil {
			log.ErrorContext(ctx, "register account failed", "error", err)
		} else {
			log.DebugContext(ctx, "account registered")
		}
	}()

	if err := domain.ValidateEmail(email); err != nil {
		return domain.Account{}, err
	}

	if err := domain.ValidatePassword(password); err != nil {
		return domain.Account{}, err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), s.Config.BcryptCost)
	if err != nil {
		return domain.Account{}, fmt.Errorf("hash password: %w", err)
	}

	acc := domain.Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    s.Clock.Now().UTC(),
	}

	log = log.With(logging.Group("account", "id", acc.ID))

	if err := s.Accounts.CreateAccount(ctx, acc); err != nil {
		return domain.Account{}, fmt.Errorf("create account: %w", err)
	}

	return acc, nil
}

// Login checks the credentials and starts a new session.
func (s *AuthService) Login(ctx context.Context, email, password string) (_ domain.AuthTokenResponse, err error) {
	email = domain.NormalizeEmail(email)
	log := s.Log.With(logging.Group("account", "email", email))

	defer func() {
		recordEvent("login", err)

		if err != nil {
			log.ErrorContext(ctx, "login failed", "error", err)
		} else {
			log.DebugContext(ctx, "login successful")
		}
	}()

	if !s.Limiter.Allow(email, s.Clock.Now()) {
		return domain.AuthTokenResponse{}, domain.ErrTooManyAttempts
	}

	acc, ok, err := s.Accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		return domain.AuthTokenResponse{}, fmt.Errorf("get account: %w", err)
	} else if !ok {
		return domain.AuthTokenResponse{}, errors.Join(domain.ErrInvalidCredentials, domain.ErrUserNotFound)
	}

	if err := bcrypt.CompareHashAndPassword(acc.PasswordHash, []byte(password)); err != nil {
		return domain.AuthTokenResponse{}, errors.Join(domain.ErrInvalidCredentials, err)
	}

	return s.issueTokens(ctx, *acc)
}

// Refresh exchanges a refresh token for a new token pair. The old session is
// revoked.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (_ domain.AuthTokenResponse, err error) {
	log := s.Log

	defer func() {
		recordEvent("refresh", err)

		if err != nil {
			log.ErrorContext(ctx, "refresh failed", "error", err)
		} else {
			log.DebugContext(ctx, "session refreshed")
		}
	}()

	now := s.Clock.Now()

	session, ok, err := s.Accounts.GetSession(ctx, HashToken(refreshToken))
	if err != nil {
		return domain.AuthTokenResponse{}, fmt.Errorf("get session: %w", err)
	} else if !ok || !session.Active(now) {
		return domain.AuthTokenResponse{}, domain.ErrInvalidSession
	}

	log = log.With(logging.Group("session", "id", session.ID, "accountId", session.AccountID))

	// A concurrent refresh with the same token loses here.
	if err := s.Accounts.RevokeSession(ctx, session.ID, now); err != nil {
		return domain.AuthTokenResponse{}, fmt.Errorf("revoke session: %w", err)
	}

	acc, ok, err := s.Accounts.GetAccountByID(ctx, session.AccountID)
	if err != nil {
		return domain.AuthTokenResponse{}, fmt.Errorf("get account: %w", err)
	} else if !ok {
		return domain.AuthTokenResponse{}, domain.ErrInvalidSession
	}

	return s.issueTokens(ctx, *acc)
}

// Logout revokes the session of refreshToken. Unknown or already revoked
// tokens are not an error.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) (err error) {
	log := s.Log

	defer func() {
		recordEvent("logout", err)

		if err != nil {
			log.ErrorContext(ctx, "logout failed", "error", err)
		} else {
			log.DebugContext(ctx, "logged out")
		}
	}()

	session, ok, err := s.Accounts.GetSession(ctx, HashToken(refreshToken))
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	} else if !ok || session.RevokedAt != nil {
		return nil
	}

	log = log.With(logging.Group("session", "id", session.ID, "accountId", session.AccountID))

	// A concurrent logout may have revoked it first.
	if err := s.Accounts.RevokeSession(ctx, session.ID, s.Clock.Now()); err != nil &&
		!errors.Is(err, domain.ErrInvalidSession) {
		return fmt.Errorf("revoke session: %w", err)
	}

	return nil
}

// RequestPasswordReset creates a single-use reset token and hands it to the
// notifier. Unknown emails succeed without creating anything.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (err error) {
	email = domain.NormalizeEmail(email)
	log := s.Log.With(logging.Group("account", "email", email))

	defer func() {
		recordEvent("reset_request", err)

		if err != nil {
			log.ErrorContext(ctx, "request password reset failed", "error", err)
		} else {
			log.DebugContext(ctx, "password reset requested")
		}
	}()

	if err := domain.ValidateEmail(email); err != nil {
		return err
	}

	acc, ok, err := s.Accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	} else if !ok {
		return nil
	}

	token, err := NewOpaqueToken()
	if err != nil {
		return fmt.Errorf("new reset token: %w", err)
	}

	reset := domain.PasswordReset{
		TokenHash: HashToken(token),
		AccountID: acc.ID,
		ExpiresAt: s.Clock.Now().Add(s.Config.ResetTokenTTL).UTC(),
	}

	if err := s.Accounts.CreatePasswordReset(ctx, reset); err != nil {
		return fmt.Errorf("create password reset: %w", err)
	}

	if err := s.Notifier.NotifyPasswordReset(ctx, acc.Email, token); err != nil {
		return fmt.Errorf("notify password reset: %w", err)
	}

	return nil
}

// ConfirmPasswordReset consumes the reset token, sets the new password and
// revokes every session of the account.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, token, newPassword string) (err error) {
	log := s.Log

	defer func() {
		recordEvent("reset_confirm", err)

		if err != nil {
			log.ErrorContext(ctx, "confirm password reset failed", "error", err)
		} else {
			log.DebugContext(ctx, "password reset confirmed")
		}
	}()

	if err := domain.ValidatePassword(newPassword); err != nil {
		return err
	}

	now := s.Clock.Now()

	reset, err := s.Accounts.ConsumePasswordReset(ctx, HashToken(token), now)
	if err != nil {
		return fmt.Errorf("consume password reset: %w", err)
	}

	log = log.With(logging.Group("account", "id", reset.AccountID))

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.Config.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.Accounts.UpdatePassword(ctx, reset.AccountID, passwordHash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if err := s.Accounts.RevokeAccountSessions(ctx, reset.AccountID, now); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}

	if acc, ok, err := s.Accounts.GetAccountByID(ctx, reset.AccountID); err == nil && ok {
		s.Limiter.Forget(acc.Email)
	}

	return nil
}

// ValidateToken verifies an access token and returns its claims.
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (token domain.AuthToken, err error) {
	log := s.Log

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "validate token failed", "error", err)
		} else {
			log.DebugContext(ctx, "token validated")
		}
	}()

	token, err = ValidateToken(tokenString, &s.SigningKey.PublicKey, s.Config.Issuer, s.Clock.Now)
	if err != nil {
		return domain.AuthToken{}, fmt.Errorf("validate token: %w", err)
	}

	log = log.With(logging.Group("token",
		"sub", token.Subject,
		"exp", token.ExpiresAt.UTC().Format(time.RFC3339),
	))

	return token, nil
}

// DeleteAccount removes the account with its sessions and reset tokens.
func (s *AuthService) DeleteAccount(ctx context.Context, accountID string) (err error) {
	log := s.Log.With(logging.Group("account", "id", accountID))

	defer func() {
		recordEvent("delete", err)

		if err != nil {
			log.ErrorContext(ctx, "delete account failed", "error", err)
		} else {
			log.DebugContext(ctx, "account deleted")
		}
	}()

	if err := s.Accounts.DeleteAccount(ctx, accountID); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}

	return nil
}

func (s *AuthService) issueTokens(ctx context.Context, acc domain.Account) (domain.AuthTokenResponse, error) {
	now := s.Clock.Now().UTC()

	//nolint:exhaustruct
	claims := domain.AuthToken{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.Config.Issuer,
			Subject:   acc.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.Config.AccessTokenTTL)),
		},
		Email: acc.Email,
		Type:  domain.TokenTypeAccess,
	}

	accessToken, err := SignToken(claims, s.SigningKey)
	if err != nil {
		return domain.AuthTokenResponse{}, err
	}

	refreshToken, err := NewOpaqueToken()
	if err != nil {
		return domain.AuthTokenResponse{}, fmt.Errorf("new refresh token: %w", err)
	}

	//nolint:exhaustruct
	session := domain.Session{
		ID:        uuid.NewString(),
		AccountID: acc.ID,
		TokenHash: HashToken(refreshToken),
		ExpiresAt: now.Add(s.Config.RefreshTokenTTL),
	}

	if err := s.Accounts.CreateSession(ctx, session); err != nil {
		return domain.AuthTokenResponse{}, fmt.Errorf("create session: %w", err)
	}

	return domain.AuthTokenResponse{
		UserID:       acc.ID,
		Email:        acc.Email,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.Config.AccessTokenTTL / time.Second),
	}, nil
}

// Close releases the account repository.
func (s *AuthService) Close() error {
	if err := s.Accounts.Close(); err != nil {
		return fmt.Errorf("close account repo: %w", err)
	}

	return nil
}
