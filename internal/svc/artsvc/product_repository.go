package artsvc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mkrupp/inkspira/internal/domain"
	"github.com/mkrupp/inkspira/internal/infra/clock"
	"github.com/mkrupp/inkspira/internal/infra/logging"
	"github.com/mkrupp/inkspira/internal/repo/tree"
)

// ProductRepository manages print listings of artworks.
type ProductRepository interface {
	// CreateProduct lists a print of an artwork owned by the caller.
	CreateProduct(ctx context.Context, product domain.Product) domain.Result[domain.Product]

	GetProduct(ctx context.Context, productID string) domain.Result[domain.Product]
	GetProductsForArtwork(ctx context.Context, artworkID string) domain.Result[[]domain.Product]

	// DeleteProduct removes a listing of the caller.
	DeleteProduct(ctx context.Context, productID string) domain.Result[Empty]
}

// TreeProductRepository implements ProductRepository.
type TreeProductRepository struct {
	store     tree.Repository
	artworks  *TreeArtworkRepository
	clock     clock.Clock
	sanitizer *TextSanitizer
	log       logging.Logger
}

var _ ProductRepository = (*TreeProductRepository)(nil)

func NewTreeProductRepository(
	store tree.Repository,
	artworks *TreeArtworkRepository,
	clk clock.Clock,
	sanitizer *TextSanitizer,
) *TreeProductRepository {
	return &TreeProductRepository{
		store:     store,
		artworks:  artworks,
		clock:     clk,
		sanitizer: sanitizer,
		log:       logging.GetLogger("svc.artsvc.product_repository"),
	}
}

func productPath(productID string) string {
	return tree.Join(productsNode, productID)
}

func (r *TreeProductRepository) CreateProduct(ctx context.Context, product domain.Product) domain.Result[domain.Product] {
	log := r.log.With(logging.Group("product", "artwork", product.ArtworkID))

	product, err := r.createProduct(ctx, product)

	return finish(ctx, log, entityProduct, "create", product, err)
}

func (r *TreeProductRepository) createProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	artwork, err := r.artworks.ownedArtwork(ctx, product.ArtworkID)
	if err != nil {
		return domain.Product{}, err
	}

	product.ID = uuid.NewString()
	product.SellerID = artwork.ArtistID
	product.Title = r.sanitizer.Sanitize(product.Title)
	product.Currency = strings.ToUpper(strings.TrimSpace(product.Currency))
	product.CreatedAt = r.clock.Now().UTC()

	if product.Title == "" {
		product.Title = artwork.Title
	}

	if err := product.Validate(); err != nil {
		return domain.Product{}, err
	}

	if err := r.store.Set(ctx, productPath(product.ID), product); err != nil {
		return domain.Product{}, fmt.Errorf("write product: %w", err)
	}

	return product, nil
}

// GetProduct returns a product whose artwork the caller may see.
func (r *TreeProductRepository) GetProduct(ctx context.Context, productID string) domain.Result[domain.Product] {
	product, err := r.getProduct(ctx, productID)

	return finish(ctx, r.log.With(logging.Group("product", "id", productID)), entityProduct, "get", product, err)
}

func (r *TreeProductRepository) getProduct(ctx context.Context, productID string) (domain.Product, error) {
	product, err := getNode[domain.Product](ctx, r.store, productPath(productID), domain.ErrProductNotFound)
	if err != nil {
		return domain.Product{}, err
	}

	if _, err := r.artworks.visibleArtwork(ctx, product.ArtworkID); errors.Is(err, domain.ErrArtworkNotFound) {
		return domain.Product{}, fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
	} else if err != nil {
		return domain.Product{}, err
	}

	return product, nil
}

// GetProductsForArtwork lists the products of an artwork the caller may see.
func (r *TreeProductRepository) GetProductsForArtwork(
	ctx context.Context,
	artworkID string,
) domain.Result[[]domain.Product] {
	log := r.log.With(logging.Group("product", "artwork", artworkID))

	products, err := r.productsForArtwork(ctx, artworkID)

	return finish(ctx, log, entityProduct, "list by artwork", products, err)
}

func (r *TreeProductRepository) productsForArtwork(ctx context.Context, artworkID string) ([]domain.Product, error) {
	if _, err := r.artworks.visibleArtwork(ctx, artworkID); err != nil {
		return nil, err
	}

	//nolint:exhaustruct
	return queryNodes[domain.Product](ctx, r.store, productsNode, tree.Query{OrderBy: "artworkId", EqualTo: artworkID})
}

func (r *TreeProductRepository) DeleteProduct(ctx context.Context, productID string) domain.Result[Empty] {
	err := r.deleteProduct(ctx, productID)

	return finish(ctx, r.log.With(logging.Group("product", "id", productID)), entityProduct, "delete", Empty{}, err)
}

func (r *TreeProductRepository) deleteProduct(ctx context.Context, productID string) error {
	userID, err := requireUser(ctx)
	if err != nil {
		return err
	}

	product, err := getNode[domain.Product](ctx, r.store, productPath(productID), domain.ErrProductNotFound)
	if err != nil {
		return err
	}

	if product.SellerID != userID {
		return fmt.Errorf("%w: %s", domain.ErrNotProductOwner, productID)
	}

	if err := r.store.Delete(ctx, productPath(productID)); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	return nil
}
