// Package catalog reads the product catalog the recommender matches against.
package catalog

import (
	"context"
	"time"
)

// Product is a catalog entry. Price keeps the database's decimal text so
// malformed values surface at scoring time instead of failing the whole read.
type Product struct {
	ID          int64     `json:"id"`
	SellerID    int64     `json:"seller"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       string    `json:"price"`
	ImageURL    string    `json:"image_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Catalog enumerates products.
type Catalog interface {
	Products(ctx context.Context) ([]Product, error)
	// Recent returns up to n products, newest first.
	Recent(ctx context.Context, n int) ([]Product, error)
}
