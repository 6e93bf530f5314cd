// Package services provides frontend-agnostic storefront logic: bio blocks
// and profile, products and purchases. Each service reads through the
// response cache and writes through the optimistic mutation engine, so any
// frontend (CLI, embedding app) gets the same caching and rollback behavior.
package services

import (
	"context"

	"github.com/chinmay4o/superlinks/internal/api"
	"github.com/chinmay4o/superlinks/internal/cache"
	"github.com/chinmay4o/superlinks/internal/logging"
	"github.com/chinmay4o/superlinks/internal/models"
	"github.com/chinmay4o/superlinks/internal/mutation"
	"github.com/chinmay4o/superlinks/internal/transfer"
)

// Cache keys. Purchase keys all contain "purchases" so one pattern drops them.
const (
	KeyBlocks         = "blocks:list"
	KeyProfile        = "profile:me"
	KeyProducts       = "products:list"
	keyProductPrefix  = "products:item:"
	keyPurchasesList  = "purchases:list:"
	keyPurchasePrefix = "purchases:item:"
)

// PurchasesPattern matches every cached purchase key.
var PurchasesPattern = cache.Substring("purchases")

// ProductKey is the cache key of one product.
func ProductKey(id string) string { return keyProductPrefix + id }

// PurchaseKey is the cache key of one purchase.
func PurchaseKey(id string) string { return keyPurchasePrefix + id }

// PurchasesListKey is the cache key of a filtered purchase listing.
func PurchasesListKey(filter api.PurchaseFilter) string {
	return keyPurchasesList + filter.Query()
}

// BioAPI is the part of the API client used by BioService.
type BioAPI interface {
	ListBlocks(ctx context.Context) ([]models.Block, error)
	CreateBlock(ctx context.Context, block models.Block) (*models.Block, error)
	UpdateBlock(ctx context.Context, id string, patch map[string]interface{}) (*models.Block, error)
	DeleteBlock(ctx context.Context, id string) error
	ReorderBlocks(ctx context.Context, ids []string) error
	GetProfile(ctx context.Context) (*models.Profile, error)
	UpdateProfile(ctx context.Context, patch map[string]interface{}) (*models.Profile, error)
}

// ProductsAPI is the part of the API client used by ProductService.
type ProductsAPI interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	CreateProduct(ctx context.Context, product models.Product) (*models.Product, error)
	UpdateProduct(ctx context.Context, id string, patch map[string]interface{}) (*models.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	AttachProductFile(ctx context.Context, productID, fileID string) (*models.Product, error)
}

// PurchasesAPI is the part of the API client used by PurchaseService.
type PurchasesAPI interface {
	ListPurchases(ctx context.Context, filter api.PurchaseFilter) ([]models.Purchase, error)
	GetPurchase(ctx context.Context, id string) (*models.Purchase, error)
	RefundPurchase(ctx context.Context, id string) (*models.Purchase, error)
}

// Uploader queues file uploads; *transfer.Coordinator implements it.
type Uploader interface {
	Enqueue(ctx context.Context, file transfer.File, opts transfer.Options) (string, error)
}

// Deps are the collaborators shared by all services.
type Deps struct {
	Cache     *cache.Cache
	Engine    *mutation.Engine // built on Cache when nil
	Policy    *cache.Policy
	Uploader  Uploader
	Debouncer *mutation.Debouncer
	Logger    *logging.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = logging.NewNopLogger()
	}
	if d.Cache == nil {
		d.Cache = cache.New()
	}
	if d.Engine == nil {
		d.Engine = mutation.NewEngine(d.Cache, nil, d.Logger)
	}
	if d.Policy == nil {
		d.Policy = cache.DefaultPolicy()
	}
	if d.Debouncer == nil {
		d.Debouncer = mutation.NewDebouncer(nil, 0)
	}
	return d
}

// deref turns the API's pointer results into values for the mutation engine.
func deref[T any](fn func() (*T, error)) (T, error) {
	var zero T
	v, err := fn()
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	return *v, nil
}
