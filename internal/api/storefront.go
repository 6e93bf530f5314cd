package api

import (
	"context"
	"fmt"
	nethttp "net/http"
	"net/url"

	"github.com/chinmay4o/superlinks/internal/models"
)

// ListBlocks returns the bio page blocks in display order.
func (c *Client) ListBlocks(ctx context.Context) ([]models.Block, error) {
	var blocks []models.Block
	if err := c.call(ctx, "list blocks", nethttp.MethodGet, "/api/blocks", nil, &blocks); err != nil {
		return nil, err
	}
	return blocks, nil
}

// CreateBlock creates a block. The server assigns the ID.
func (c *Client) CreateBlock(ctx context.Context, block models.Block) (*models.Block, error) {
	block.ID = ""
	var created models.Block
	if err := c.call(ctx, "create block", nethttp.MethodPost, "/api/blocks", block, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateBlock applies a partial update and returns the server's view of the block.
func (c *Client) UpdateBlock(ctx context.Context, id string, patch map[string]interface{}) (*models.Block, error) {
	var updated models.Block
	path := "/api/blocks/" + url.PathEscape(id)
	if err := c.call(ctx, "update block", nethttp.MethodPatch, path, patch, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteBlock deletes a block.
func (c *Client) DeleteBlock(ctx context.Context, id string) error {
	return c.call(ctx, "delete block", nethttp.MethodDelete, "/api/blocks/"+url.PathEscape(id), nil, nil)
}

// ReorderBlocks stores a new display order.
func (c *Client) ReorderBlocks(ctx context.Context, ids []string) error {
	body := map[string]interface{}{"order": ids}
	return c.call(ctx, "reorder blocks", nethttp.MethodPut, "/api/blocks/order", body, nil)
}

// GetProfile returns the authenticated creator's profile.
func (c *Client) GetProfile(ctx context.Context) (*models.Profile, error) {
	var profile models.Profile
	if err := c.call(ctx, "get profile", nethttp.MethodGet, "/api/profile", nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpdateProfile applies a partial profile update.
func (c *Client) UpdateProfile(ctx context.Context, patch map[string]interface{}) (*models.Profile, error) {
	var profile models.Profile
	if err := c.call(ctx, "update profile", nethttp.MethodPatch, "/api/profile", patch, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// ListProducts returns the creator's products.
func (c *Client) ListProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := c.call(ctx, "list products", nethttp.MethodGet, "/api/products", nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// GetProduct returns one product.
func (c *Client) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	if err := c.call(ctx, "get product", nethttp.MethodGet, "/api/products/"+url.PathEscape(id), nil, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// CreateProduct creates a product. The server assigns the ID.
func (c *Client) CreateProduct(ctx context.Context, product models.Product) (*models.Product, error) {
	product.ID = ""
	var created models.Product
	if err := c.call(ctx, "create product", nethttp.MethodPost, "/api/products", product, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateProduct applies a partial product update.
func (c *Client) UpdateProduct(ctx context.Context, id string, patch map[string]interface{}) (*models.Product, error) {
	var updated models.Product
	path := "/api/products/" + url.PathEscape(id)
	if err := c.call(ctx, "update product", nethttp.MethodPatch, path, patch, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteProduct deletes a product.
func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	return c.call(ctx, "delete product", nethttp.MethodDelete, "/api/products/"+url.PathEscape(id), nil, nil)
}

// AttachProductFile links an uploaded file to a product.
func (c *Client) AttachProductFile(ctx context.Context, productID, fileID string) (*models.Product, error) {
	var updated models.Product
	path := fmt.Sprintf("/api/products/%s/files", url.PathEscape(productID))
	body := map[string]string{"fileId": fileID}
	if err := c.call(ctx, "attach product file", nethttp.MethodPost, path, body, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// PurchaseFilter narrows ListPurchases. Zero values are not sent.
type PurchaseFilter struct {
	ProductID string
	Status    models.PurchaseStatus
}

// Query encodes the filter as a URL query string (without the leading '?').
func (f PurchaseFilter) Query() string {
	q := url.Values{}
	if f.ProductID != "" {
		q.Set("productId", f.ProductID)
	}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	return q.Encode()
}

// ListPurchases returns purchases matching filter.
func (c *Client) ListPurchases(ctx context.Context, filter PurchaseFilter) ([]models.Purchase, error) {
	path := "/api/purchases"
	if q := filter.Query(); q != "" {
		path += "?" + q
	}
	var purchases []models.Purchase
	if err := c.call(ctx, "list purchases", nethttp.MethodGet, path, nil, &purchases); err != nil {
		return nil, err
	}
	return purchases, nil
}

// GetPurchase returns one purchase.
func (c *Client) GetPurchase(ctx context.Context, id string) (*models.Purchase, error) {
	var purchase models.Purchase
	if err := c.call(ctx, "get purchase", nethttp.MethodGet, "/api/purchases/"+url.PathEscape(id), nil, &purchase); err != nil {
		return nil, err
	}
	return &purchase, nil
}

// RefundPurchase asks the server to refund a purchase.
func (c *Client) RefundPurchase(ctx context.Context, id string) (*models.Purchase, error) {
	var purchase models.Purchase
	path := fmt.Sprintf("/api/purchases/%s/refund", url.PathEscape(id))
	if err := c.call(ctx, "refund purchase", nethttp.MethodPost, path, nil, &purchase); err != nil {
		return nil, err
	}
	return &purchase, nil
}
