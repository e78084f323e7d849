package catalog

import (
	"github.com/pkg/errors"
)

var (
	ErrNotFound     = errors.New("product not found")
	ErrInvalidOffer = errors.New("invalid offer")
)

// Index is a synchronous, read-only view of the products a cart refers to.
type Index interface {
	GetProduct(id string) (*Product, error)
	// ListOffers is empty for unknown products.
	ListOffers(productID string) []Offer
}

// MemoryIndex is an Index frozen from already-fetched products.
type MemoryIndex struct {
	products map[string]*Product
}

// NewIndex validates and indexes products. Later duplicates replace earlier ones,
// and repeated offers at one store are folded with FoldOffers.
func NewIndex(products ...*Product) (*MemoryIndex, error) {
	idx := &MemoryIndex{products: make(map[string]*Product, len(products))}
	for _, p := range products {
		if p == nil {
			continue
		}
		if p.ID == "" {
			return nil, errors.Wrap(ErrInvalidOffer, "product without id")
		}
		for _, o := range p.Offers {
			if o.Price < 0 {
				return nil, errors.Wrapf(ErrInvalidOffer, "product %s store %d: negative price %.2f", p.ID, o.StoreID, o.Price)
			}
		}
		folded := *p
		folded.Offers = FoldOffers(p.Offers)
		idx.products[p.ID] = &folded
	}
	return idx, nil
}

func (idx *MemoryIndex) GetProduct(id string) (*Product, error) {
	p, ok := idx.products[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "product %s", id)
	}
	return p, nil
}

func (idx *MemoryIndex) ListOffers(productID string) []Offer {
	p, ok := idx.products[productID]
	if !ok {
		return nil
	}
	return p.Offers
}

// Len is the number of indexed products.
func (idx *MemoryIndex) Len() int { return len(idx.products) }
