package models

import "time"

// BlockType identifies how a bio page block renders.
type BlockType string

const (
	BlockTypeLink    BlockType = "link"
	BlockTypeText    BlockType = "text"
	BlockTypeImage   BlockType = "image"
	BlockTypeProduct BlockType = "product"
	BlockTypeSocial  BlockType = "social"
)

// Block is one element of a creator's bio page.
type Block struct {
	ID       string    `json:"id"`
	Type     BlockType `json:"type"`
	Title    string    `json:"title"`
	URL      string    `json:"url,omitempty"`
	ImageURL string    `json:"imageUrl,omitempty"`
	Position int       `json:"position"`
	Visible  bool      `json:"visible"`
}

// GetID implements the identity used by local collections.
func (b Block) GetID() string { return b.ID }

// WithID returns a copy of the block carrying id.
func (b Block) WithID(id string) Block {
	b.ID = id
	return b
}

// Profile is the creator's own bio page settings.
type Profile struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Bio         string `json:"bio"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	Theme       string `json:"theme,omitempty"`
}

// GetID implements the identity used by local collections.
func (p Profile) GetID() string { return p.ID }

// WithID returns a copy of the profile carrying id.
func (p Profile) WithID(id string) Profile {
	p.ID = id
	return p
}

// Product is a digital item offered for sale.
type Product struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Price       int64    `json:"price"` // minor units
	Currency    string   `json:"currency"`
	FileIDs     []string `json:"fileIds,omitempty"`
	CoverURL    string   `json:"coverUrl,omitempty"`
	Published   bool     `json:"published"`
}

// GetID implements the identity used by local collections.
func (p Product) GetID() string { return p.ID }

// WithID returns a copy of the product carrying id.
func (p Product) WithID(id string) Product {
	p.ID = id
	return p
}

// PurchaseStatus is the payment state of a purchase.
type PurchaseStatus string

const (
	PurchaseStatusPending  PurchaseStatus = "pending"
	PurchaseStatusPaid     PurchaseStatus = "paid"
	PurchaseStatusRefunded PurchaseStatus = "refunded"
)

// Purchase is one sale of a product.
type Purchase struct {
	ID         string         `json:"id"`
	ProductID  string         `json:"productId"`
	BuyerEmail string         `json:"buyerEmail"`
	Amount     int64          `json:"amount"`
	Currency   string         `json:"currency"`
	Status     PurchaseStatus `json:"status"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// GetID implements the identity used by local collections.
func (p Purchase) GetID() string { return p.ID }

// WithID returns a copy of the purchase carrying id.
func (p Purchase) WithID(id string) Purchase {
	p.ID = id
	return p
}
