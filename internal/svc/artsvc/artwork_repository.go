package artsvc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mkrupp/inkspira/internal/domain"
	"github.com/mkrupp/inkspira/internal/infra/clock"
	context_ "github.com/mkrupp/inkspira/internal/infra/context"
	"github.com/mkrupp/inkspira/internal/infra/logging"
	"github.com/mkrupp/inkspira/internal/repo/tree"
	"github.com/mkrupp/inkspira/internal/svc/imagesvc/imageclient"
)

// ArtworkUpload is an image together with the fields of the artwork to create for it.
type ArtworkUpload struct {
	Filename    string
	Data        []byte
	Title       string
	Description string
	Category    string
	Tags        []string
	IsPublic    bool
}

// ArtworkRepository manages artworks and their discovery.
type ArtworkRepository interface {
	// UploadArtwork streams Loading, then the created artwork or an error.
	UploadArtwork(ctx context.Context, upload ArtworkUpload) <-chan domain.Result[domain.Artwork]

	// CreateArtwork creates an artwork for an image that is already uploaded.
	CreateArtwork(ctx context.Context, artwork domain.Artwork) domain.Result[domain.Artwork]

	GetArtwork(ctx context.Context, artworkID string) domain.Result[domain.Artwork]
	GetPublicArtworks(ctx context.Context, limit int) domain.Result[[]domain.Artwork]

	// GetUserArtworks lists the artworks of userID. Private ones are only
	// listed for userID itself.
	GetUserArtworks(ctx context.Context, userID string) domain.Result[[]domain.Artwork]

	GetArtworksByCategory(ctx context.Context, category string, limit int) domain.Result[[]domain.Artwork]
	SearchArtworks(ctx context.Context, query string) domain.Result[[]domain.Artwork]

	// GetTrendingArtworks ranks public artworks created within window by
	// engagement. A zero window or limit uses the configured default.
	GetTrendingArtworks(ctx context.Context, window time.Duration, limit int) domain.Result[[]domain.Artwork]

	UpdateArtwork(ctx context.Context, artworkID string, patch domain.ArtworkPatch) domain.Result[domain.Artwork]
	DeleteArtwork(ctx context.Context, artworkID string) domain.Result[Empty]
	IncrementViews(ctx context.Context, artworkID string) domain.Result[int64]
}

// TreeArtworkRepository implements ArtworkRepository.
type TreeArtworkRepository struct {
	store     tree.Repository
	images    imageclient.ImageClient
	clock     clock.Clock
	sanitizer *TextSanitizer
	cfg       ArtConfig
	log       logging.Logger
}

var _ ArtworkRepository = (*TreeArtworkRepository)(nil)

func NewTreeArtworkRepository(
	store tree.Repository,
	images imageclient.ImageClient,
	clk clock.Clock,
	sanitizer *TextSanitizer,
	cfg ArtConfig,
) *TreeArtworkRepository {
	return &TreeArtworkRepository{
		store:     store,
		images:    images,
		clock:     clk,
		sanitizer: sanitizer,
		cfg:       cfg,
		log:       logging.GetLogger("svc.artsvc.artwork_repository"),
	}
}

func artworkPath(artworkID string) string {
	return tree.Join(artworksNode, artworkID)
}

func (r *TreeArtworkRepository) UploadArtwork(
	ctx context.Context,
	upload ArtworkUpload,
) <-chan domain.Result[domain.Artwork] {
	log := r.log.With(logging.Group("upload", "filename", upload.Filename, "size", len(upload.Data)))

	return domain.Stream(ctx, func(ctx context.Context) domain.Result[domain.Artwork] {
		artwork, err := r.uploadArtwork(ctx, upload)

		return finish(ctx, log, entityArtwork, "upload", artwork, err)
	})
}

func (r *TreeArtworkRepository) uploadArtwork(ctx context.Context, upload ArtworkUpload) (domain.Artwork, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return domain.Artwork{}, err
	}

	//nolint:exhaustruct
	artwork := r.draft(userID, domain.Artwork{
		Title:       upload.Title,
		Description: upload.Description,
		Category:    upload.Category,
		Tags:        upload.Tags,
		IsPublic:    upload.IsPublic,
	})

	// Reject invalid fields before the image is uploaded.
	if err := artwork.Validate(); err != nil {
		return domain.Artwork{}, err
	}

	if len(upload.Data) == 0 {
		return domain.Artwork{}, fmt.Errorf("%w: empty image", domain.ErrInvalidArgument)
	}

	image, err := r.images.UploadImage(ctx, upload.Filename, upload.Data)
	if err != nil {
		return domain.Artwork{}, fmt.Errorf("upload image: %w", err)
	}

	artwork.MediaID = image.ID
	artwork.ImageURL = image.SecureURL

	if artwork.ThumbnailURL, err = domain.ResizedURL(image.SecureURL, r.cfg.ThumbnailWidth); err != nil {
		return domain.Artwork{}, fmt.Errorf("thumbnail url: %w", err)
	}

	return r.create(ctx, artwork)
}

func (r *TreeArtworkRepository) CreateArtwork(ctx context.Context, artwork domain.Artwork) domain.Result[domain.Artwork] {
	artwork, err := r.createArtwork(ctx, artwork)

	return finish(ctx, r.log.With(logging.Group("artwork", "id", artwork.ID)), entityArtwork, "create", artwork, err)
}

func (r *TreeArtworkRepository) createArtwork(ctx context.Context, artwork domain.Artwork) (domain.Artwork, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return domain.Artwork{}, err
	}

	artwork = r.draft(userID, artwork)

	if err := artwork.Validate(); err != nil {
		return domain.Artwork{}, err
	}

	if artwork.ImageURL == "" {
		return domain.Artwork{}, fmt.Errorf("%w: image url is required", domain.ErrInvalidArgument)
	}

	if artwork.ThumbnailURL == "" {
		artwork.ThumbnailURL = artwork.ImageURL
	}

	return r.create(ctx, artwork)
}

// draft fills the server owned fields of a new artwork of userID.
func (r *TreeArtworkRepository) draft(userID string, artwork domain.Artwork) domain.Artwork {
	now := r.clock.Now().UTC()

	artwork.ID = uuid.NewString()
	artwork.ArtistID = userID
	artwork.Title = r.sanitizer.Sanitize(artwork.Title)
	artwork.Description = r.sanitizer.Sanitize(artwork.Description)
	artwork.Tags = domain.NormalizeTags(r.sanitizer.SanitizeAll(artwork.Tags))
	artwork.Likes = 0
	artwork.Views = 0
	artwork.CreatedAt = now
	artwork.UpdatedAt = now

	return artwork
}

// create writes the artwork record, then bumps the artist's artwork count.
func (r *TreeArtworkRepository) create(ctx context.Context, artwork domain.Artwork) (domain.Artwork, error) {
	userPath := tree.Join(usersNode, artwork.ArtistID)

	var artist domain.User
	if _, err := r.store.Get(ctx, userPath, &artist); err != nil {
		return domain.Artwork{}, fmt.Errorf("get artist: %w", err)
	}

	artwork.ArtistName = artist.DisplayNameOrEmail()

	if err := r.store.Set(ctx, artworkPath(artwork.ID), artwork); err != nil {
		return domain.Artwork{}, fmt.Errorf("write artwork: %w", err)
	}

	if err := r.adjustArtworkCount(ctx, artwork.ArtistID, 1); err != nil {
		return domain.Artwork{}, err
	}

	return artwork, nil
}

// adjustArtworkCount changes the denormalized artwork count of a profile.
// Users without a profile have no count to keep.
func (r *TreeArtworkRepository) adjustArtworkCount(ctx context.Context, userID string, delta int64) error {
	_, err := r.store.Increment(ctx, tree.Join(usersNode, userID), "artworkCount", delta)
	if errors.Is(err, tree.ErrNodeNotFound) {
		r.log.WarnContext(ctx, "artwork count of missing profile not updated", "user", userID)

		return nil
	}

	if err != nil {
		return fmt.Errorf("update artwork count: %w", err)
	}

	return nil
}

// GetArtwork returns the artwork if the caller may see it. Private artworks of
// other users are reported as not found.
func (r *TreeArtworkRepository) GetArtwork(ctx context.Context, artworkID string) domain.Result[domain.Artwork] {
	artwork, err := r.visibleArtwork(ctx, artworkID)

	return finish(ctx, r.log.With(logging.Group("artwork", "id", artworkID)), entityArtwork, "get", artwork, err)
}

func (r *TreeArtworkRepository) visibleArtwork(ctx context.Context, artworkID string) (domain.Artwork, error) {
	artwork, err := getNode[domain.Artwork](ctx, r.store, artworkPath(artworkID), domain.ErrArtworkNotFound)
	if err != nil {
		return domain.Artwork{}, err
	}

	if !artwork.VisibleTo(context_.UserIDFromContext(ctx)) {
		return domain.Artwork{}, fmt.Errorf("%w: %s", domain.ErrArtworkNotFound, artworkID)
	}

	return artwork, nil
}

func (r *TreeArtworkRepository) publicArtworks(ctx context.Context) ([]domain.Artwork, error) {
	//nolint:exhaustruct
	return queryNodes[domain.Artwork](ctx, r.store, artworksNode, tree.Query{OrderBy: "isPublic", EqualTo: true})
}

// GetPublicArtworks lists public artworks, newest first.
func (r *TreeArtworkRepository) GetPublicArtworks(ctx context.Context, limit int) domain.Result[[]domain.Artwork] {
	artworks, err := r.publicArtworks(ctx)
	artworks = truncate(newestFirst(artworks), r.cfg.limit(limit))

	return finish(ctx, r.log, entityArtwork, "list public", artworks, err)
}

func (r *TreeArtworkRepository) GetUserArtworks(ctx context.Context, userID string) domain.Result[[]domain.Artwork] {
	log := r.log.With(logging.Group("artist", "id", userID))

	//nolint:exhaustruct
	artworks, err := queryNodes[domain.Artwork](ctx, r.store, artworksNode, tree.Query{OrderBy: "artistId", EqualTo: userID})
	if err == nil && context_.UserIDFromContext(ctx) != userID {
		artworks = onlyPublic(artworks)
	}

	return finish(ctx, log, entityArtwork, "list by user", newestFirst(artworks), err)
}

func (r *TreeArtworkRepository) GetArtworksByCategory(
	ctx context.Context,
	category string,
	limit int,
) domain.Result[[]domain.Artwork] {
	log := r.log.With(logging.Group("artwork", "category", category))

	artworks, err := r.artworksByCategory(ctx, category)
	artworks = truncate(newestFirst(artworks), r.cfg.limit(limit))

	return finish(ctx, log, entityArtwork, "list by category", artworks, err)
}

func (r *TreeArtworkRepository) artworksByCategory(ctx context.Context, category string) ([]domain.Artwork, error) {
	if !domain.IsValidCategory(category) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidCategory, category)
	}

	//nolint:exhaustruct
	artworks, err := queryNodes[domain.Artwork](ctx, r.store, artworksNode, tree.Query{OrderBy: "category", EqualTo: category})
	if err != nil {
		return nil, err
	}

	return onlyPublic(artworks), nil
}

// SearchArtworks ranks public artworks against the terms of query. A query
// without any usable term yields an empty list.
func (r *TreeArtworkRepository) SearchArtworks(ctx context.Context, query string) domain.Result[[]domain.Artwork] {
	log := r.log.With(logging.Group("search", "query", query))

	artworks, err := r.searchArtworks(ctx, searchTerms(query))

	return finish(ctx, log, entityArtwork, "search", artworks, err)
}

func (r *TreeArtworkRepository) searchArtworks(ctx context.Context, terms []string) ([]domain.Artwork, error) {
	if len(terms) == 0 {
		return []domain.Artwork{}, nil
	}

	artworks, err := r.publicArtworks(ctx)
	if err != nil {
		return nil, err
	}

	return truncate(rankBySearch(artworks, terms), r.cfg.MaxLimit), nil
}

func (r *TreeArtworkRepository) GetTrendingArtworks(
	ctx context.Context,
	window time.Duration,
	limit int,
) domain.Result[[]domain.Artwork] {
	if window <= 0 {
		window = r.cfg.TrendingWindow
	}

	log := r.log.With(logging.Group("trending", "window", window, "limit", limit))

	artworks, err := r.publicArtworks(ctx)
	artworks = truncate(rankByTrending(artworks, r.clock.Now().Add(-window)), r.cfg.limit(limit))

	return finish(ctx, log, entityArtwork, "trending", artworks, err)
}

// UpdateArtwork applies patch to an artwork of the caller.
func (r *TreeArtworkRepository) UpdateArtwork(
	ctx context.Context,
	artworkID string,
	patch domain.ArtworkPatch,
) domain.Result[domain.Artwork] {
	artwork, err := r.updateArtwork(ctx, artworkID, patch)

	return finish(ctx, r.log.With(logging.Group("artwork", "id", artworkID)), entityArtwork, "update", artwork, err)
}

func (r *TreeArtworkRepository) updateArtwork(
	ctx context.Context,
	artworkID string,
	patch domain.ArtworkPatch,
) (domain.Artwork, error) {
	artwork, err := r.ownedArtwork(ctx, artworkID)
	if err != nil {
		return domain.Artwork{}, err
	}

	if patch.IsEmpty() {
		return artwork, nil
	}

	if patch.Title != nil {
		title := r.sanitizer.Sanitize(*patch.Title)
		patch.Title = &title
	}

	if patch.Description != nil {
		description := r.sanitizer.Sanitize(*patch.Description)
		patch.Description = &description
	}

	if patch.Tags != nil {
		tags := r.sanitizer.SanitizeAll(*patch.Tags)
		patch.Tags = &tags
	}

	artwork = patch.Apply(artwork)
	artwork.UpdatedAt = r.clock.Now().UTC()

	if err := artwork.Validate(); err != nil {
		return domain.Artwork{}, err
	}

	if err := r.store.Update(ctx, artworkPath(artworkID), map[string]any{
		"title":       artwork.Title,
		"description": artwork.Description,
		"category":    artwork.Category,
		"tags":        artwork.Tags,
		"isPublic":    artwork.IsPublic,
		"updatedAt":   artwork.UpdatedAt,
	}); err != nil {
		return domain.Artwork{}, fmt.Errorf("update artwork: %w", err)
	}

	return artwork, nil
}

// DeleteArtwork removes an artwork of the caller and decrements the artist's
// artwork count. The image itself is kept.
func (r *TreeArtworkRepository) DeleteArtwork(ctx context.Context, artworkID string) domain.Result[Empty] {
	err := r.deleteArtwork(ctx, artworkID)

	return finish(ctx, r.log.With(logging.Group("artwork", "id", artworkID)), entityArtwork, "delete", Empty{}, err)
}

func (r *TreeArtworkRepository) deleteArtwork(ctx context.Context, artworkID string) error {
	artwork, err := r.ownedArtwork(ctx, artworkID)
	if err != nil {
		return err
	}

	if err := r.store.Delete(ctx, artworkPath(artworkID)); err != nil {
		return fmt.Errorf("delete artwork: %w", err)
	}

	return r.adjustArtworkCount(ctx, artwork.ArtistID, -1)
}

// ownedArtwork loads an artwork and checks that the caller is its artist.
func (r *TreeArtworkRepository) ownedArtwork(ctx context.Context, artworkID string) (domain.Artwork, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return domain.Artwork{}, err
	}

	artwork, err := getNode[domain.Artwork](ctx, r.store, artworkPath(artworkID), domain.ErrArtworkNotFound)
	if err != nil {
		return domain.Artwork{}, err
	}

	if !artwork.IsOwnedBy(userID) {
		return domain.Artwork{}, fmt.Errorf("%w: %s", domain.ErrNotArtworkOwner, artworkID)
	}

	return artwork, nil
}

// IncrementViews adds one view and returns the new count. Private artworks
// only count views of their owner.
func (r *TreeArtworkRepository) IncrementViews(ctx context.Context, artworkID string) domain.Result[int64] {
	views, err := r.incrementViews(ctx, artworkID)

	return finish(ctx, r.log.With(logging.Group("artwork", "id", artworkID)), entityArtwork, "increment views", views, err)
}

func (r *TreeArtworkRepository) incrementViews(ctx context.Context, artworkID string) (int64, error) {
	if _, err := r.visibleArtwork(ctx, artworkID); err != nil {
		return 0, err
	}

	views, err := r.store.Increment(ctx, artworkPath(artworkID), "views", 1)
	if errors.Is(err, tree.ErrNodeNotFound) {
		return 0, fmt.Errorf("%w: %s", domain.ErrArtworkNotFound, artworkID)
	}

	return views, err
}

func onlyPublic(artworks []domain.Artwork) []domain.Artwork {
	out := make([]domain.Artwork, 0, len(artworks))

	for _, artwork := range artworks {
		if artwork.IsPublic {
			out = append(out, artwork)
		}
	}

	return out
}
