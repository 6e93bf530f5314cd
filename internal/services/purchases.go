package services

import (
	"context"
	"fmt"

	"github.com/chinmay4o/superlinks/internal/api"
	"github.com/chinmay4o/superlinks/internal/cache"
	"github.com/chinmay4o/superlinks/internal/models"
	"github.com/chinmay4o/superlinks/internal/mutation"
)

// PurchaseService reads sales and issues refunds.
type PurchaseService struct {
	api       PurchasesAPI
	deps      Deps
	purchases *mutation.Collection[models.Purchase]
}

// NewPurchaseService creates a PurchaseService.
func NewPurchaseService(client PurchasesAPI, deps Deps) *PurchaseService {
	return &PurchaseService{
		api:       client,
		deps:      deps.withDefaults(),
		purchases: mutation.NewCollection[models.Purchase]("purchases"),
	}
}

// List reads purchases matching filter through the cache.
func (s *PurchaseService) List(ctx context.Context, filter api.PurchaseFilter) ([]models.Purchase, error) {
	list, err := cache.Fetch(ctx, s.deps.Cache, PurchasesListKey(filter), s.deps.Policy.TTL(cache.ClassPurchases), func(ctx context.Context) ([]models.Purchase, error) {
		return s.api.ListPurchases(ctx, filter)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}
	for _, p := range list {
		s.purchases.Put(p)
	}
	return list, nil
}

// Get reads one purchase through the cache.
func (s *PurchaseService) Get(ctx context.Context, id string) (models.Purchase, error) {
	p, err := cache.Fetch(ctx, s.deps.Cache, PurchaseKey(id), s.deps.Policy.TTL(cache.ClassPurchases), func(ctx context.Context) (models.Purchase, error) {
		return deref(func() (*models.Purchase, error) { return s.api.GetPurchase(ctx, id) })
	})
	if err != nil {
		return models.Purchase{}, fmt.Errorf("failed to get purchase %s: %w", id, err)
	}
	s.purchases.Put(p)
	return p, nil
}

// Local returns the locally known purchase, including a pending refund.
func (s *PurchaseService) Local(id string) (models.Purchase, bool) {
	return s.purchases.Get(id)
}

// Refund marks the purchase refunded at once and asks the server to refund
// it. Every cached purchase listing is dropped on success.
func (s *PurchaseService) Refund(ctx context.Context, id string) (*mutation.Handle[models.Purchase], error) {
	p, ok := s.purchases.Get(id)
	if !ok {
		loaded, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		p = loaded
	}
	if p.Status == models.PurchaseStatusRefunded {
		return nil, &api.ValidationError{Field: "status", Message: fmt.Sprintf("purchase %s is already refunded", id)}
	}

	m := mutation.Update(s.purchases, id,
		func(p models.Purchase) models.Purchase {
			p.Status = models.PurchaseStatusRefunded
			return p
		},
		func(ctx context.Context) (models.Purchase, error) {
			return deref(func() (*models.Purchase, error) { return s.api.RefundPurchase(ctx, id) })
		},
		func(local, server models.Purchase) models.Purchase {
			if server.ID == "" {
				return local
			}
			return server
		},
	)
	m.Cache = mutation.CacheEffects[models.Purchase]{Patterns: []cache.Matcher{PurchasesPattern}}
	m.FailureTitle = "Refund failed"
	return mutation.Go(ctx, s.deps.Engine, m), nil
}

// Invalidate drops every cached purchase response.
func (s *PurchaseService) Invalidate() []string {
	return s.deps.Cache.DeleteByPattern(PurchasesPattern)
}
