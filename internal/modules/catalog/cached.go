package catalog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/georgemunganga/minprice-backend/internal/platform/cache"
)

// cachedRepo is a read-through cache in front of another Repository.
// Cache failures are logged and fall through to the source.
type cachedRepo struct {
	next  Repository
	cache cache.Cache
	ttl   time.Duration
	log   logrus.FieldLogger
}

func NewCachedRepository(next Repository, c cache.Cache, ttl time.Duration, log logrus.FieldLogger) Repository {
	return &cachedRepo{next: next, cache: c, ttl: ttl, log: log}
}

func (r *cachedRepo) GetProduct(ctx context.Context, id string) (*Product, error) {
	if p := r.lookup(ctx, id); p != nil {
		return p, nil
	}
	p, err := r.next.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	r.store(ctx, p)
	return p, nil
}

func (r *cachedRepo) GetProducts(ctx context.Context, ids []string) ([]*Product, error) {
	found := make(map[string]*Product, len(ids))
	var missing []string
	for _, id := range ids {
		if p := r.lookup(ctx, id); p != nil {
			found[id] = p
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) > 0 {
		fetched, err := r.next.GetProducts(ctx, missing)
		if err != nil {
			return nil, err
		}
		for _, p := range fetched {
			found[p.ID] = p
			r.store(ctx, p)
		}
	}

	products := make([]*Product, 0, len(found))
	for _, id := range ids {
		if p, ok := found[id]; ok {
			products = append(products, p)
			delete(found, id)
		}
	}
	return products, nil
}

func (r *cachedRepo) lookup(ctx context.Context, id string) *Product {
	raw, err := r.cache.Get(ctx, r.cache.Key("product", id))
	if err != nil {
		r.log.WithError(err).WithField("product_id", id).Warn("catalog cache read failed")
		return nil
	}
	if raw == nil {
		r.log.WithField("product_id", id).Debug("catalog cache miss")
		return nil
	}
	var p Product
	if err := json.Unmarshal(raw, &p); err != nil {
		r.log.WithError(err).WithField("product_id", id).Warn("catalog cache entry corrupt")
		return nil
	}
	return &p
}

func (r *cachedRepo) store(ctx context.Context, p *Product) {
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, r.cache.Key("product", p.ID), raw, r.ttl); err != nil {
		r.log.WithError(err).WithField("product_id", p.ID).Warn("catalog cache write failed")
	}
}
