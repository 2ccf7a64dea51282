package artsvc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mkrupp/inkspira/internal/domain"
	"github.com/mkrupp/inkspira/internal/infra/clock"
	context_ "github.com/mkrupp/inkspira/internal/infra/context"
	"github.com/mkrupp/inkspira/internal/infra/logging"
	"github.com/mkrupp/inkspira/internal/infra/metrics"
	"github.com/mkrupp/inkspira/internal/repo/tree"
	"github.com/mkrupp/inkspira/internal/svc/authsvc/authclient"
	"github.com/mkrupp/inkspira/internal/svc/imagesvc/imageclient"
)

// ErrSignInRequired is returned by operations that need an authenticated caller.
var ErrSignInRequired = fmt.Errorf("%w: sign in required", domain.ErrUnauthenticated)

// Root nodes of the tree store.
const (
	usersNode     = "users"
	artworksNode  = "artworks"
	favoritesNode = "favorites"
	productsNode  = "products"
)

// Entity labels of the repository metrics.
const (
	entityAuth     = "auth"
	entityUser     = "user"
	entityArtwork  = "artwork"
	entityFavorite = "favorite"
	entityMedia    = "media"
	entityProduct  = "product"
)

// Empty is the value of results that carry nothing but their outcome.
type Empty struct{}

// finish turns the outcome of one repository operation into a Result, logs it
// and counts it.
func finish[T any](
	ctx context.Context,
	log logging.Logger,
	entity, op string,
	value T,
	err error,
) domain.Result[T] {
	res := domain.ResultOf(value, err)

	res.Match(
		func(T) {
			log.DebugContext(ctx, op+" "+entity+" succeeded")
		},
		func(_ string, code domain.ResultCode) {
			if code == domain.CodeInternal || code == domain.CodeUnavailable {
				log.ErrorContext(ctx, op+" "+entity+" failed", "error", err)
			} else {
				log.WarnContext(ctx, op+" "+entity+" rejected", "error", err, "code", code)
			}
		},
		func() {},
	)

	metrics.RepositoryOperationsTotal.WithLabelValues(entity, op, metrics.Outcome(err)).Inc()

	return res
}

// requireUser returns the id of the authenticated caller.
func requireUser(ctx context.Context) (string, error) {
	userID := context_.UserIDFromContext(ctx)
	if userID == "" {
		return "", ErrSignInRequired
	}

	return userID, nil
}

// getNode decodes the node at path, returning notFound if it does not exist.
func getNode[T any](ctx context.Context, store tree.Repository, path string, notFound error) (T, error) {
	var v T

	found, err := store.Get(ctx, path, &v)
	if err != nil {
		return v, fmt.Errorf("get %s: %w", path, err)
	}

	if !found {
		return v, fmt.Errorf("%w: %s", notFound, path)
	}

	return v, nil
}

// queryNodes runs q below path and decodes every child.
func queryNodes[T any](ctx context.Context, store tree.Repository, path string, q tree.Query) ([]T, error) {
	children, err := store.Query(ctx, path, q)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", path, err)
	}

	out := make([]T, 0, len(children))

	for _, child := range children {
		var v T
		if err := json.Unmarshal(child.Value, &v); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", path, child.Key, err)
		}

		out = append(out, v)
	}

	return out, nil
}

// Repositories bundles one repository per entity over a shared store.
type Repositories struct {
	Auth      AuthRepository
	Users     UserRepository
	Artworks  ArtworkRepository
	Favorites FavoriteRepository
	Media     MediaRepository
	Products  ProductRepository
}

// NewRepositories wires the tree backed repositories to the remote auth and
// media services.
func NewRepositories(
	store tree.Repository,
	auth authclient.AuthClient,
	images imageclient.ImageClient,
	clk clock.Clock,
	cfg ArtConfig,
) *Repositories {
	sanitizer := NewTextSanitizer()
	artworks := NewTreeArtworkRepository(store, images, clk, sanitizer, cfg)

	return &Repositories{
		Auth:      NewTreeAuthRepository(auth, store, clk, sanitizer),
		Users:     NewTreeUserRepository(auth, store, clk, sanitizer, cfg),
		Artworks:  artworks,
		Favorites: NewTreeFavoriteRepository(store, artworks, clk, cfg),
		Media:     NewRemoteMediaRepository(images),
		Products:  NewTreeProductRepository(store, artworks, clk, sanitizer),
	}
}
