package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/georgemunganga/minprice-backend/internal/platform/cache"
	"github.com/georgemunganga/minprice-backend/internal/platform/logger"
)

type countingRepo struct {
	products map[string]*Product
	calls    int
}

func (r *countingRepo) GetProduct(ctx context.Context, id string) (*Product, error) {
	r.calls++
	p, ok := r.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (r *countingRepo) GetProducts(ctx context.Context, ids []string) ([]*Product, error) {
	r.calls++
	var out []*Product
	for _, id := range ids {
		if p, ok := r.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func TestCachedRepositoryReadsThrough(t *testing.T) {
	ctx := context.Background()
	src := &countingRepo{products: map[string]*Product{
		"milk":  {ID: "milk", Title: "Milk", Offers: []Offer{{StoreID: 1, Price: 79, InStock: true}}},
		"bread": {ID: "bread", Title: "Bread"},
	}}
	repo := NewCachedRepository(src, cache.NewMemory(100, time.Minute), time.Minute, logger.Discard())

	p, err := repo.GetProduct(ctx, "milk")
	require.NoError(t, err)
	assert.Equal(t, "Milk", p.Title)

	p, err = repo.GetProduct(ctx, "milk")
	require.NoError(t, err)
	assert.Equal(t, 79.0, p.Offers[0].Price)
	assert.Equal(t, 1, src.calls)

	products, err := repo.GetProducts(ctx, []string{"bread", "milk", "ghost"})
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "bread", products[0].ID)
	assert.Equal(t, "milk", products[1].ID)
	assert.Equal(t, 2, src.calls)
}

func TestCachedRepositoryPassesNotFound(t *testing.T) {
	repo := NewCachedRepository(&countingRepo{}, cache.NewMemory(100, time.Minute), time.Minute, logger.Discard())
	_, err := repo.GetProduct(context.Background(), "ghost")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestServiceIndexDedupes(t *testing.T) {
	src := &countingRepo{products: map[string]*Product{"milk": {ID: "milk"}}}
	idx, err := NewService(src).Index(context.Background(), []string{"milk", "milk", "", "ghost"})
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Len())
}
