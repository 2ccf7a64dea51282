package artsvc

import (
	"context"
	"errors"
	"fmt"

	"github.com/mkrupp/inkspira/internal/domain"
	"github.com/mkrupp/inkspira/internal/infra/clock"
	"github.com/mkrupp/inkspira/internal/infra/logging"
	"github.com/mkrupp/inkspira/internal/repo/tree"
	"github.com/mkrupp/inkspira/internal/svc/authsvc/authclient"
)

// AuthSession is the outcome of a successful sign-up or sign-in.
type AuthSession struct {
	domain.AuthTokenResponse

	User domain.User `json:"user"`
}

// AuthRepository signs users in and out through the auth service and keeps
// their profile in the tree store.
type AuthRepository interface {
	SignUp(ctx context.Context, email, password, displayName string) domain.Result[AuthSession]
	SignIn(ctx context.Context, email, password string) domain.Result[AuthSession]
	SignOut(ctx context.Context, refreshToken string) domain.Result[Empty]
	RefreshSession(ctx context.Context, refreshToken string) domain.Result[domain.AuthTokenResponse]
	ResetPassword(ctx context.Context, email string) domain.Result[Empty]
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) domain.Result[Empty]

	// CurrentUser returns the profile of the authenticated caller.
	CurrentUser(ctx context.Context) domain.Result[domain.User]
}

// TreeAuthRepository implements AuthRepository.
type TreeAuthRepository struct {
	auth      authclient.AuthClient
	store     tree.Repository
	clock     clock.Clock
	sanitizer *TextSanitizer
	log       logging.Logger
}

var _ AuthRepository = (*TreeAuthRepository)(nil)

func NewTreeAuthRepository(
	auth authclient.AuthClient,
	store tree.Repository,
	clk clock.Clock,
	sanitizer *TextSanitizer,
) *TreeAuthRepository {
	return &TreeAuthRepository{
		auth:      auth,
		store:     store,
		clock:     clk,
		sanitizer: sanitizer,
		log:       logging.GetLogger("svc.artsvc.auth_repository"),
	}
}

// SignUp registers the account, signs it in and writes its profile.
func (r *TreeAuthRepository) SignUp(
	ctx context.Context,
	email, password, displayName string,
) domain.Result[AuthSession] {
	email = domain.NormalizeEmail(email)
	log := r.log.With(logging.Group("auth", "email", email))

	session, err := r.signUp(ctx, email, password, r.sanitizer.Sanitize(displayName))

	return finish(ctx, log, entityAuth, "sign up", session, err)
}

func (r *TreeAuthRepository) signUp(ctx context.Context, email, password, displayName string) (AuthSession, error) {
	if err := domain.ValidateEmail(email); err != nil {
		return AuthSession{}, err
	}

	if err := domain.ValidatePassword(password); err != nil {
		return AuthSession{}, err
	}

	if err := domain.ValidateDisplayName(displayName); err != nil {
		return AuthSession{}, err
	}

	if _, err := r.auth.Register(ctx, email, password); err != nil {
		return AuthSession{}, fmt.Errorf("register: %w", err)
	}

	tokens, err := r.auth.Login(ctx, email, password)
	if err != nil {
		return AuthSession{}, fmt.Errorf("login: %w", err)
	}

	now := r.clock.Now().UTC()

	//nolint:exhaustruct
	user := domain.User{
		ID:          tokens.UserID,
		Email:       tokens.Email,
		DisplayName: displayName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := r.store.Set(ctx, tree.Join(usersNode, user.ID), user); err != nil {
		return AuthSession{}, fmt.Errorf("write profile: %w", err)
	}

	return AuthSession{AuthTokenResponse: tokens, User: user}, nil
}

// SignIn exchanges credentials for tokens. An account without a profile, e.g.
// one registered directly with the auth service, gets a default one.
func (r *TreeAuthRepository) SignIn(ctx context.Context, email, password string) domain.Result[AuthSession] {
	email = domain.NormalizeEmail(email)
	log := r.log.With(logging.Group("auth", "email", email))

	session, err := r.signIn(ctx, email, password)

	return finish(ctx, log, entityAuth, "sign in", session, err)
}

func (r *TreeAuthRepository) signIn(ctx context.Context, email, password string) (AuthSession, error) {
	if email == "" || password == "" {
		return AuthSession{}, fmt.Errorf("%w: email and password are required", domain.ErrInvalidArgument)
	}

	tokens, err := r.auth.Login(ctx, email, password)
	if err != nil {
		return AuthSession{}, fmt.Errorf("login: %w", err)
	}

	path := tree.Join(usersNode, tokens.UserID)

	user, err := getNode[domain.User](ctx, r.store, path, domain.ErrUserNotFound)
	if errors.Is(err, domain.ErrUserNotFound) {
		now := r.clock.Now().UTC()

		//nolint:exhaustruct
		user = domain.User{ID: tokens.UserID, Email: tokens.Email, CreatedAt: now, UpdatedAt: now}
		user.DisplayName = user.DisplayNameOrEmail()

		err = r.store.Set(ctx, path, user)
	}

	if err != nil {
		return AuthSession{}, fmt.Errorf("load profile: %w", err)
	}

	return AuthSession{AuthTokenResponse: tokens, User: user}, nil
}

// SignOut revokes the session of refreshToken. Unknown tokens are ignored.
func (r *TreeAuthRepository) SignOut(ctx context.Context, refreshToken string) domain.Result[Empty] {
	err := r.auth.Logout(ctx, refreshToken)

	return finish(ctx, r.log, entityAuth, "sign out", Empty{}, err)
}

func (r *TreeAuthRepository) RefreshSession(
	ctx context.Context,
	refreshToken string,
) domain.Result[domain.AuthTokenResponse] {
	tokens, err := r.auth.Refresh(ctx, refreshToken)

	return finish(ctx, r.log, entityAuth, "refresh", tokens, err)
}

// ResetPassword requests a reset token for email. It succeeds for unknown
// addresses as well.
func (r *TreeAuthRepository) ResetPassword(ctx context.Context, email string) domain.Result[Empty] {
	email = domain.NormalizeEmail(email)
	log := r.log.With(logging.Group("auth", "email", email))

	err := domain.ValidateEmail(email)
	if err == nil {
		err = r.auth.RequestPasswordReset(ctx, email)
	}

	return finish(ctx, log, entityAuth, "reset password", Empty{}, err)
}

func (r *TreeAuthRepository) ConfirmPasswordReset(ctx context.Context, token, newPassword string) domain.Result[Empty] {
	err := domain.ValidatePassword(newPassword)
	if err == nil {
		err = r.auth.ConfirmPasswordReset(ctx, token, newPassword)
	}

	return finish(ctx, r.log, entityAuth, "confirm password reset", Empty{}, err)
}

func (r *TreeAuthRepository) CurrentUser(ctx context.Context) domain.Result[domain.User] {
	userID, err := requireUser(ctx)
	if err != nil {
		return finish(ctx, r.log, entityAuth, "current user", domain.User{}, err)
	}

	user, err := getNode[domain.User](ctx, r.store, tree.Join(usersNode, userID), domain.ErrUserNotFound)

	return finish(ctx, r.log.With(logging.Group("user", "id", userID)), entityAuth, "current user", user, err)
}
