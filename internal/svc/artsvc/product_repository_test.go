package artsvc_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mkrupp/inkspira/internal/domain"
)

func TestProductRepository_CreateProduct(t *testing.T) {
	t.Parallel()

	env := setupTestEnv(t)
	ada := env.signUp(t, "ada@example.com", "Ada")
	bob := env.signUp(t, "bob@example.com", "Bob")
	artwork := env.createArtwork(t, ada, "Engine")

	tests := []struct {
		name     string
		ctx      context.Context
		product  domain.Product
		wantCode domain.ResultCode
	}{
		{
			name:    "seller lists print",
			ctx:     ada,
			product: domain.Product{ArtworkID: artwork.ID, PriceCents: 2500, Currency: " usd ", Stock: 3},
		},
		{
			name:     "other user",
			ctx:      bob,
			product:  domain.Product{ArtworkID: artwork.ID, PriceCents: 2500, Currency: "USD"},
			wantCode: domain.CodeForbidden,
		},
		{
			name:     "anonymous",
			ctx:      context.Background(),
			product:  domain.Product{ArtworkID: artwork.ID, PriceCents: 2500, Currency: "USD"},
			wantCode: domain.CodeUnauthenticated,
		},
		{
			name:     "free print",
			ctx:      ada,
			product:  domain.Product{ArtworkID: artwork.ID, Currency: "USD"},
			wantCode: domain.CodeInvalidArgument,
		},
		{
			name:     "unknown currency",
			ctx:      ada,
			product:  domain.Product{ArtworkID: artwork.ID, PriceCents: 100, Currency: "XYZ"},
			wantCode: domain.CodeInvalidArgument,
		},
		{
			name:     "missing artwork",
			ctx:      ada,
			product:  domain.Product{ArtworkID: "missing", PriceCents: 100, Currency: "USD"},
			wantCode: domain.CodeNotFound,
		},
	}

	for _, tt := range tests {
		res := env.repos.Products.CreateProduct(tt.ctx, tt.product)
		if res.Code() != tt.wantCode {
			t.Errorf("CreateProduct() %s code = %q, want %q (%s)", tt.name, res.Code(), tt.wantCode, res.MessageOr(""))

			continue
		}

		if tt.wantCode != domain.CodeNone {
			continue
		}

		product := mustValue(t, res)
		if product.ID == "" || product.SellerID != "user1" || product.Title != "Engine" || product.Currency != "USD" {
			t.Errorf("CreateProduct() = %+v", product)
		}

		if got := product.FormattedPrice(); got != "$25.00" {
			t.Errorf("FormattedPrice() = %q", got)
		}
	}

	products := mustValue(t, env.repos.Products.GetProductsForArtwork(bob, artwork.ID))
	if len(products) != 1 {
		t.Fatalf("GetProductsForArtwork() = %+v", products)
	}

	got := mustValue(t, env.repos.Products.GetProduct(context.Background(), products[0].ID))
	if diff := cmp.Diff(products[0], got); diff != "" {
		t.Errorf("GetProduct() mismatch (-want +got):\n%s", diff)
	}
}

func TestProductRepository_DeleteProduct(t *testing.T) {
	t.Parallel()

	env := setupTestEnv(t)
	ada := env.signUp(t, "ada@example.com", "Ada")
	bob := env.signUp(t, "bob@example.com", "Bob")
	artwork := env.createArtwork(t, ada, "Engine")

	//nolint:exhaustruct
	product := mustValue(t, env.repos.Products.CreateProduct(ada, domain.Product{
		ArtworkID:  artwork.ID,
		Title:      "A3 print",
		PriceCents: 1200,
		Currency:   "EUR",
	}))

	if res := env.repos.Products.DeleteProduct(bob, product.ID); res.Code() != domain.CodeForbidden {
		t.Errorf("DeleteProduct() by other user code = %q", res.Code())
	}

	mustValue(t, env.repos.Products.DeleteProduct(ada, product.ID))

	if res := env.repos.Products.GetProduct(ada, product.ID); res.Code() != domain.CodeNotFound {
		t.Errorf("GetProduct() after delete code = %q", res.Code())
	}

	if res := env.repos.Products.DeleteProduct(ada, product.ID); res.Code() != domain.CodeNotFound {
		t.Errorf("DeleteProduct() twice code = %q", res.Code())
	}
}

func TestProductRepository_PrivateArtworkHidden(t *testing.T) {
	t.Parallel()

	env := setupTestEnv(t)
	ada := env.signUp(t, "ada@example.com", "Ada")
	bob := env.signUp(t, "bob@example.com", "Bob")
	artwork := env.createArtwork(t, ada, "Sketch")

	//nolint:exhaustruct
	product := mustValue(t, env.repos.Products.CreateProduct(ada, domain.Product{
		ArtworkID:  artwork.ID,
		PriceCents: 900,
		Currency:   "USD",
	}))

	mustValue(t, env.repos.Artworks.UpdateArtwork(ada, artwork.ID, domain.ArtworkPatch{IsPublic: ptr(false)}))

	tests := []struct {
		name     string
		ctx      context.Context
		wantCode domain.ResultCode
	}{
		{name: "anonymous", ctx: context.Background(), wantCode: domain.CodeNotFound},
		{name: "other user", ctx: bob, wantCode: domain.CodeNotFound},
		{name: "owner", ctx: ada, wantCode: domain.CodeNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if res := env.repos.Products.GetProduct(tt.ctx, product.ID); res.Code() != tt.wantCode {
				t.Errorf("GetProduct() code = %q, want %q", res.Code(), tt.wantCode)
			}

			if res := env.repos.Products.GetProductsForArtwork(tt.ctx, artwork.ID); res.Code() != tt.wantCode {
				t.Errorf("GetProductsForArtwork() code = %q, want %q", res.Code(), tt.wantCode)
			}
		})
	}
}
