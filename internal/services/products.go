package services

import (
	"context"
	"fmt"

	"github.com/chinmay4o/superlinks/internal/cache"
	"github.com/chinmay4o/superlinks/internal/models"
	"github.com/chinmay4o/superlinks/internal/mutation"
	"github.com/chinmay4o/superlinks/internal/transfer"
)

// productsPattern matches the product listing and every cached product.
var productsPattern = cache.Substring("products:")

// ProductPatch is a partial product update. Nil fields are left unchanged.
type ProductPatch struct {
	Title       *string
	Description *string
	Price       *int64
	Currency    *string
	CoverURL    *string
	Published   *bool
}

func (p ProductPatch) apply(prod models.Product) models.Product {
	if p.Title != nil {
		prod.Title = *p.Title
	}
	if p.Description != nil {
		prod.Description = *p.Description
	}
	if p.Price != nil {
		prod.Price = *p.Price
	}
	if p.Currency != nil {
		prod.Currency = *p.Currency
	}
	if p.CoverURL != nil {
		prod.CoverURL = *p.CoverURL
	}
	if p.Published != nil {
		prod.Published = *p.Published
	}
	return prod
}

func (p ProductPatch) fields() map[string]interface{} {
	out := make(map[string]interface{})
	if p.Title != nil {
		out["title"] = *p.Title
	}
	if p.Description != nil {
		out["description"] = *p.Description
	}
	if p.Price != nil {
		out["price"] = *p.Price
	}
	if p.Currency != nil {
		out["currency"] = *p.Currency
	}
	if p.CoverURL != nil {
		out["coverUrl"] = *p.CoverURL
	}
	if p.Published != nil {
		out["published"] = *p.Published
	}
	return out
}

// IsEmpty reports whether the patch changes nothing.
func (p ProductPatch) IsEmpty() bool { return len(p.fields()) == 0 }

// ProductService manages the creator's products.
type ProductService struct {
	api      ProductsAPI
	deps     Deps
	products *mutation.Collection[models.Product]
}

// NewProductService creates a ProductService.
func NewProductService(client ProductsAPI, deps Deps) *ProductService {
	return &ProductService{
		api:      client,
		deps:     deps.withDefaults(),
		products: mutation.NewCollection[models.Product]("products"),
	}
}

// Products returns the local view, including speculative changes.
func (s *ProductService) Products() []models.Product { return s.products.All() }

// List reads the product listing through the cache.
func (s *ProductService) List(ctx context.Context) ([]models.Product, error) {
	products, err := cache.Fetch(ctx, s.deps.Cache, KeyProducts, s.deps.Policy.TTL(cache.ClassList), s.api.ListProducts)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	s.products.Replace(products)
	return s.products.All(), nil
}

// Get reads one product through the cache.
func (s *ProductService) Get(ctx context.Context, id string) (models.Product, error) {
	p, err := cache.Fetch(ctx, s.deps.Cache, ProductKey(id), s.deps.Policy.TTL(cache.ClassDefault), func(ctx context.Context) (models.Product, error) {
		return deref(func() (*models.Product, error) { return s.api.GetProduct(ctx, id) })
	})
	if err != nil {
		return models.Product{}, fmt.Errorf("failed to get product %s: %w", id, err)
	}
	return p, nil
}

func (s *ProductService) effects() mutation.CacheEffects[models.Product] {
	return mutation.CacheEffects[models.Product]{Patterns: []cache.Matcher{productsPattern}}
}

// Create shows product immediately under a temporary id and creates it.
func (s *ProductService) Create(ctx context.Context, product models.Product) *mutation.Handle[models.Product] {
	m := mutation.Create(s.products, mutation.NewTempID(), product, func(ctx context.Context, p models.Product) (models.Product, error) {
		return deref(func() (*models.Product, error) { return s.api.CreateProduct(ctx, p) })
	})
	m.Cache = s.effects()
	m.FailureTitle = "Could not create product"
	return mutation.Go(ctx, s.deps.Engine, m)
}

// Update applies patch locally and saves it. The server's product wins.
func (s *ProductService) Update(ctx context.Context, id string, patch ProductPatch) *mutation.Handle[models.Product] {
	m := mutation.Update(s.products, id, patch.apply, func(ctx context.Context) (models.Product, error) {
		return deref(func() (*models.Product, error) { return s.api.UpdateProduct(ctx, id, patch.fields()) })
	}, nil)
	m.Cache = s.effects()
	m.FailureTitle = "Could not update product"
	return mutation.Go(ctx, s.deps.Engine, m)
}

// Delete removes the product locally and on the server.
func (s *ProductService) Delete(ctx context.Context, id string) *mutation.Handle[struct{}] {
	m := mutation.Delete(s.products, id, func(ctx context.Context) error {
		return s.api.DeleteProduct(ctx, id)
	})
	m.Cache = mutation.CacheEffects[struct{}]{Patterns: []cache.Matcher{productsPattern}}
	m.FailureTitle = "Could not delete product"
	return mutation.Go(ctx, s.deps.Engine, m)
}

// AttachFile uploads file and attaches it to the product once the upload
// completes. It returns the upload task id. done, when non-nil, receives
// the attach mutation's handle.
func (s *ProductService) AttachFile(ctx context.Context, productID string, file transfer.File, done func(*mutation.Handle[models.Product])) (string, error) {
	if s.deps.Uploader == nil {
		return "", fmt.Errorf("no uploader configured")
	}
	return s.deps.Uploader.Enqueue(ctx, file, transfer.Options{
		UploadType: models.UploadTypeProduct,
		ProductID:  productID,
		OnComplete: func(_ string, fd *models.FileDescriptor) {
			h := s.attach(ctx, productID, fd.ID)
			if done != nil {
				done(h)
			}
		},
	})
}

func (s *ProductService) attach(ctx context.Context, productID, fileID string) *mutation.Handle[models.Product] {
	m := mutation.Update(s.products, productID,
		func(p models.Product) models.Product {
			p.FileIDs = append(append([]string(nil), p.FileIDs...), fileID)
			return p
		},
		func(ctx context.Context) (models.Product, error) {
			return deref(func() (*models.Product, error) { return s.api.AttachProductFile(ctx, productID, fileID) })
		},
		func(local, server models.Product) models.Product {
			if server.ID == "" {
				return local
			}
			return server
		},
	)
	m.Cache = s.effects()
	m.FailureTitle = "Could not attach file"
	return mutation.Go(ctx, s.deps.Engine, m)
}
