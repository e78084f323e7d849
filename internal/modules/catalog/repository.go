package catalog

import "context"

// Repository fetches products and their offers from a backing source.
type Repository interface {
	GetProduct(ctx context.Context, id string) (*Product, error)
	// GetProducts returns the products that exist; unknown ids are skipped.
	GetProducts(ctx context.Context, ids []string) ([]*Product, error)
}
