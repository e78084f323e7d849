package directory

import (
	"context"

	"github.com/pkg/errors"

	"github.com/georgemunganga/minprice-backend/internal/modules/catalog"
)

var ErrNotFound = errors.New("store not found")

// Repository defines read access to chains and stores.
type Repository interface {
	ListChains(ctx context.Context) ([]*Chain, error)
	ListStores(ctx context.Context, f StoreFilter) ([]*Store, error)
	GetStore(ctx context.Context, id catalog.StoreID) (*Store, error)
}
