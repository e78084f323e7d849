package catalog

import (
	"context"

	"github.com/pkg/errors"
)

// Service defines catalog read operations.
type Service interface {
	GetProduct(ctx context.Context, id string) (*Product, error)
	// Index fetches the given products once and freezes them for synchronous reads.
	Index(ctx context.Context, ids []string) (*MemoryIndex, error)
}

type service struct{ repo Repository }

func NewService(repo Repository) Service { return &service{repo: repo} }

func (s *service) GetProduct(ctx context.Context, id string) (*Product, error) {
	if id == "" {
		return nil, errors.Wrap(ErrNotFound, "empty product id")
	}
	return s.repo.GetProduct(ctx, id)
}

func (s *service) Index(ctx context.Context, ids []string) (*MemoryIndex, error) {
	products, err := s.repo.GetProducts(ctx, dedupe(ids))
	if err != nil {
		return nil, errors.Wrap(err, "fetch cart products")
	}
	return NewIndex(products...)
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
