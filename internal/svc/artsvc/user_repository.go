package artsvc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mkrupp/inkspira/internal/domain"
	"github.com/mkrupp/inkspira/internal/infra/clock"
	context_ "github.com/mkrupp/inkspira/internal/infra/context"
	"github.com/mkrupp/inkspira/internal/infra/logging"
	"github.com/mkrupp/inkspira/internal/repo/tree"
	"github.com/mkrupp/inkspira/internal/svc/authsvc/authclient"
)

// ErrNotProfileOwner is returned when a caller writes another user's profile.
var ErrNotProfileOwner = fmt.Errorf("%w: not the profile owner", domain.ErrForbidden)

// UserRepository manages public user profiles.
type UserRepository interface {
	CreateUser(ctx context.Context, user domain.User) domain.Result[domain.User]
	GetUser(ctx context.Context, userID string) domain.Result[domain.User]

	// UpdateProfile patches the profile of the caller.
	UpdateProfile(ctx context.Context, patch domain.UserPatch) domain.Result[domain.User]

	// DeleteUser removes the caller's account and profile.
	DeleteUser(ctx context.Context) domain.Result[Empty]

	SearchUsers(ctx context.Context, query string) domain.Result[[]domain.User]
}

// TreeUserRepository implements UserRepository.
type TreeUserRepository struct {
	auth      authclient.AuthClient
	store     tree.Repository
	clock     clock.Clock
	sanitizer *TextSanitizer
	cfg       ArtConfig
	log       logging.Logger
}

var _ UserRepository = (*TreeUserRepository)(nil)

func NewTreeUserRepository(
	auth authclient.AuthClient,
	store tree.Repository,
	clk clock.Clock,
	sanitizer *TextSanitizer,
	cfg ArtConfig,
) *TreeUserRepository {
	return &TreeUserRepository{
		auth:      auth,
		store:     store,
		clock:     clk,
		sanitizer: sanitizer,
		cfg:       cfg,
		log:       logging.GetLogger("svc.artsvc.user_repository"),
	}
}

// CreateUser writes the profile of the caller. It fails if one exists.
func (r *TreeUserRepository) CreateUser(ctx context.Context, user domain.User) domain.Result[domain.User] {
	log := r.log.With(logging.Group("user", "id", user.ID))

	user, err := r.createUser(ctx, user)

	return finish(ctx, log, entityUser, "create", user, err)
}

func (r *TreeUserRepository) createUser(ctx context.Context, user domain.User) (domain.User, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return domain.User{}, err
	}

	if user.ID != userID {
		return domain.User{}, fmt.Errorf("%w: %s", ErrNotProfileOwner, user.ID)
	}

	now := r.clock.Now().UTC()

	user.Email = domain.NormalizeEmail(user.Email)
	user.DisplayName = r.sanitizer.Sanitize(user.DisplayName)
	user.Bio = r.sanitizer.Sanitize(user.Bio)
	user.ArtworkCount = 0
	user.CreatedAt = now
	user.UpdatedAt = now

	if err := user.Validate(); err != nil {
		return domain.User{}, err
	}

	path := tree.Join(usersNode, user.ID)

	var existing domain.User
	if found, err := r.store.Get(ctx, path, &existing); err != nil {
		return domain.User{}, fmt.Errorf("get profile: %w", err)
	} else if found {
		return domain.User{}, fmt.Errorf("%w: %s", domain.ErrUserAlreadyExists, user.ID)
	}

	if err := r.store.Set(ctx, path, user); err != nil {
		return domain.User{}, fmt.Errorf("write profile: %w", err)
	}

	return user, nil
}

func (r *TreeUserRepository) GetUser(ctx context.Context, userID string) domain.Result[domain.User] {
	user, err := getNode[domain.User](ctx, r.store, tree.Join(usersNode, userID), domain.ErrUserNotFound)
	user = user.VisibleTo(context_.UserIDFromContext(ctx))

	return finish(ctx, r.log.With(logging.Group("user", "id", userID)), entityUser, "get", user, err)
}

func (r *TreeUserRepository) UpdateProfile(ctx context.Context, patch domain.UserPatch) domain.Result[domain.User] {
	user, err := r.updateProfile(ctx, patch)

	return finish(ctx, r.log, entityUser, "update", user, err)
}

func (r *TreeUserRepository) updateProfile(ctx context.Context, patch domain.UserPatch) (domain.User, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return domain.User{}, err
	}

	path := tree.Join(usersNode, userID)

	user, err := getNode[domain.User](ctx, r.store, path, domain.ErrUserNotFound)
	if err != nil {
		return domain.User{}, err
	}

	if patch.DisplayName != nil {
		name := r.sanitizer.Sanitize(*patch.DisplayName)
		patch.DisplayName = &name
	}

	if patch.Bio != nil {
		bio := r.sanitizer.Sanitize(*patch.Bio)
		patch.Bio = &bio
	}

	user = patch.Apply(user)
	user.UpdatedAt = r.clock.Now().UTC()

	if err := user.Validate(); err != nil {
		return domain.User{}, err
	}

	if err := r.store.Update(ctx, path, map[string]any{
		"displayName":     user.DisplayName,
		"bio":             user.Bio,
		"profileImageUrl": user.ProfileImageURL,
		"updatedAt":       user.UpdatedAt,
	}); err != nil {
		return domain.User{}, fmt.Errorf("update profile: %w", err)
	}

	return user, nil
}

// DeleteUser deletes the account with the auth service, then the profile.
// Artworks of the user are left in place.
func (r *TreeUserRepository) DeleteUser(ctx context.Context) domain.Result[Empty] {
	err := r.deleteUser(ctx)

	return finish(ctx, r.log, entityUser, "delete", Empty{}, err)
}

func (r *TreeUserRepository) deleteUser(ctx context.Context) error {
	userID, err := requireUser(ctx)
	if err != nil {
		return err
	}

	if err := r.auth.DeleteAccount(ctx, context_.AccessTokenFromContext(ctx)); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("delete account: %w", err)
	}

	if err := r.store.Delete(ctx, tree.Join(usersNode, userID)); err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}

	return nil
}

// SearchUsers matches every term against the display name. Email addresses
// are neither searched nor returned for other users.
func (r *TreeUserRepository) SearchUsers(ctx context.Context, query string) domain.Result[[]domain.User] {
	log := r.log.With(logging.Group("search", "query", query))

	users, err := r.searchUsers(ctx, searchTerms(query))

	return finish(ctx, log, entityUser, "search", users, err)
}

func (r *TreeUserRepository) searchUsers(ctx context.Context, terms []string) ([]domain.User, error) {
	if len(terms) == 0 {
		return []domain.User{}, nil
	}

	//nolint:exhaustruct
	users, err := queryNodes[domain.User](ctx, r.store, usersNode, tree.Query{OrderBy: "displayName"})
	if err != nil {
		return nil, err
	}

	viewerID := context_.UserIDFromContext(ctx)
	matches := make([]domain.User, 0, len(users))

	for _, user := range users {
		name := strings.ToLower(user.DisplayName)

		for _, term := range terms {
			if strings.Contains(name, term) {
				matches = append(matches, user.VisibleTo(viewerID))

				break
			}
		}
	}

	return truncate(matches, r.cfg.MaxLimit), nil
}
