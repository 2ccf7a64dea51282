package artsvc

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/mkrupp/inkspira/internal/domain"
	"github.com/mkrupp/inkspira/internal/infra/clock"
	"github.com/mkrupp/inkspira/internal/infra/logging"
	"github.com/mkrupp/inkspira/internal/repo/tree"
)

// FavoriteRepository manages the favorites of the caller. Adding and removing
// a favorite keeps the like count of the artwork in step.
type FavoriteRepository interface {
	AddFavorite(ctx context.Context, artworkID string) domain.Result[domain.Favorite]
	RemoveFavorite(ctx context.Context, artworkID string) domain.Result[Empty]

	// ToggleFavorite adds or removes the favorite and returns whether it is set afterwards.
	ToggleFavorite(ctx context.Context, artworkID string) domain.Result[bool]

	IsFavorite(ctx context.Context, artworkID string) domain.Result[bool]
	GetFavorites(ctx context.Context) domain.Result[[]domain.Favorite]

	// GetFavoriteArtworks resolves the favorites to artworks, skipping ones
	// that were deleted or made private since.
	GetFavoriteArtworks(ctx context.Context) domain.Result[[]domain.Artwork]
}

// TreeFavoriteRepository implements FavoriteRepository. Favorites live below
// favorites/<userID>/<artworkID>.
type TreeFavoriteRepository struct {
	store    tree.Repository
	artworks *TreeArtworkRepository
	clock    clock.Clock
	cfg      ArtConfig
	log      logging.Logger
}

var _ FavoriteRepository = (*TreeFavoriteRepository)(nil)

func NewTreeFavoriteRepository(
	store tree.Repository,
	artworks *TreeArtworkRepository,
	clk clock.Clock,
	cfg ArtConfig,
) *TreeFavoriteRepository {
	return &TreeFavoriteRepository{
		store:    store,
		artworks: artworks,
		clock:    clk,
		cfg:      cfg,
		log:      logging.GetLogger("svc.artsvc.favorite_repository"),
	}
}

func favoritePath(userID, artworkID string) string {
	return tree.Join(favoritesNode, userID, artworkID)
}

func (r *TreeFavoriteRepository) AddFavorite(ctx context.Context, artworkID string) domain.Result[domain.Favorite] {
	favorite, err := r.addFavorite(ctx, artworkID)

	return finish(ctx, r.log.With(logging.Group("favorite", "artwork", artworkID)), entityFavorite, "add", favorite, err)
}

// addFavorite is idempotent: an existing favorite is returned unchanged and
// the like count is not touched again.
func (r *TreeFavoriteRepository) addFavorite(ctx context.Context, artworkID string) (domain.Favorite, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return domain.Favorite{}, err
	}

	if _, err := r.artworks.visibleArtwork(ctx, artworkID); err != nil {
		return domain.Favorite{}, err
	}

	path := favoritePath(userID, artworkID)

	existing, found, err := r.get(ctx, path)
	if err != nil || found {
		return existing, err
	}

	favorite := domain.NewFavorite(userID, artworkID, r.clock.Now().UTC())

	if err := r.store.Set(ctx, path, favorite); err != nil {
		return domain.Favorite{}, fmt.Errorf("write favorite: %w", err)
	}

	if _, err := r.store.Increment(ctx, artworkPath(artworkID), "likes", 1); err != nil {
		return domain.Favorite{}, fmt.Errorf("increment likes: %w", err)
	}

	return favorite, nil
}

// RemoveFavorite deletes the favorite if it exists.
func (r *TreeFavoriteRepository) RemoveFavorite(ctx context.Context, artworkID string) domain.Result[Empty] {
	err := r.removeFavorite(ctx, artworkID)

	return finish(ctx, r.log.With(logging.Group("favorite", "artwork", artworkID)), entityFavorite, "remove", Empty{}, err)
}

func (r *TreeFavoriteRepository) removeFavorite(ctx context.Context, artworkID string) error {
	userID, err := requireUser(ctx)
	if err != nil {
		return err
	}

	path := favoritePath(userID, artworkID)

	_, found, err := r.get(ctx, path)
	if err != nil || !found {
		return err
	}

	if err := r.store.Delete(ctx, path); err != nil {
		return fmt.Errorf("delete favorite: %w", err)
	}

	// The artwork may be gone already; its likes went with it.
	if _, err := r.store.Increment(ctx, artworkPath(artworkID), "likes", -1); err != nil && !errors.Is(err, tree.ErrNodeNotFound) {
		return fmt.Errorf("decrement likes: %w", err)
	}

	return nil
}

func (r *TreeFavoriteRepository) ToggleFavorite(ctx context.Context, artworkID string) domain.Result[bool] {
	favorited, err := r.toggleFavorite(ctx, artworkID)

	return finish(ctx, r.log.With(logging.Group("favorite", "artwork", artworkID)), entityFavorite, "toggle", favorited, err)
}

func (r *TreeFavoriteRepository) toggleFavorite(ctx context.Context, artworkID string) (bool, error) {
	favorited, err := r.isFavorite(ctx, artworkID)
	if err != nil {
		return false, err
	}

	if favorited {
		return false, r.removeFavorite(ctx, artworkID)
	}

	if _, err := r.addFavorite(ctx, artworkID); err != nil {
		return false, err
	}

	return true, nil
}

func (r *TreeFavoriteRepository) IsFavorite(ctx context.Context, artworkID string) domain.Result[bool] {
	favorited, err := r.isFavorite(ctx, artworkID)

	return finish(ctx, r.log.With(logging.Group("favorite", "artwork", artworkID)), entityFavorite, "check", favorited, err)
}

func (r *TreeFavoriteRepository) isFavorite(ctx context.Context, artworkID string) (bool, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return false, err
	}

	_, found, err := r.get(ctx, favoritePath(userID, artworkID))

	return found, err
}

func (r *TreeFavoriteRepository) get(ctx context.Context, path string) (domain.Favorite, bool, error) {
	var favorite domain.Favorite

	found, err := r.store.Get(ctx, path, &favorite)
	if err != nil {
		return domain.Favorite{}, false, fmt.Errorf("get favorite: %w", err)
	}

	return favorite, found, nil
}

// GetFavorites lists the caller's favorites, most recent first.
func (r *TreeFavoriteRepository) GetFavorites(ctx context.Context) domain.Result[[]domain.Favorite] {
	favorites, err := r.favorites(ctx)

	return finish(ctx, r.log, entityFavorite, "list", favorites, err)
}

func (r *TreeFavoriteRepository) favorites(ctx context.Context) ([]domain.Favorite, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	//nolint:exhaustruct
	favorites, err := queryNodes[domain.Favorite](ctx, r.store, tree.Join(favoritesNode, userID), tree.Query{OrderBy: "createdAt"})
	if err != nil {
		return nil, err
	}

	// Stored timestamps do not sort as strings, so order by time here.
	slices.SortStableFunc(favorites, func(a, b domain.Favorite) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}

		return strings.Compare(a.ArtworkID, b.ArtworkID)
	})

	return favorites, nil
}

func (r *TreeFavoriteRepository) GetFavoriteArtworks(ctx context.Context) domain.Result[[]domain.Artwork] {
	artworks, err := r.favoriteArtworks(ctx)

	return finish(ctx, r.log, entityFavorite, "list artworks", artworks, err)
}

func (r *TreeFavoriteRepository) favoriteArtworks(ctx context.Context) ([]domain.Artwork, error) {
	favorites, err := r.favorites(ctx)
	if err != nil {
		return nil, err
	}

	found := make([]*domain.Artwork, len(favorites))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(max(1, r.cfg.FetchConcurrency))

	for i, favorite := range favorites {
		group.Go(func() error {
			artwork, err := r.artworks.visibleArtwork(groupCtx, favorite.ArtworkID)
			if errors.Is(err, domain.ErrArtworkNotFound) {
				return nil
			}

			if err != nil {
				return fmt.Errorf("get artwork %s: %w", favorite.ArtworkID, err)
			}

			found[i] = &artwork

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	artworks := make([]domain.Artwork, 0, len(found))

	for _, artwork := range found {
		if artwork != nil {
			artworks = append(artworks, *artwork)
		}
	}

	return artworks, nil
}
