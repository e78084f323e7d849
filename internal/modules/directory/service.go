package directory

import (
	"context"
	"strings"

	"github.com/georgemunganga/minprice-backend/internal/modules/catalog"
)

// Service lists the chains and stores a shopper can filter by.
type Service interface {
	ListChains(ctx context.Context) ([]*Chain, error)
	ListStores(ctx context.Context, f StoreFilter) ([]*Store, error)
	GetStore(ctx context.Context, id catalog.StoreID) (*Store, error)
}

type service struct {
	repo      Repository
	mediaBase string
}

// NewService resolves relative chain logos against mediaBase.
func NewService(repo Repository, mediaBase string) Service {
	return &service{repo: repo, mediaBase: strings.TrimRight(mediaBase, "/")}
}

func (s *service) ListChains(ctx context.Context) ([]*Chain, error) {
	chains, err := s.repo.ListChains(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range chains {
		c.Logo = LogoURL(s.mediaBase, c.Logo)
	}
	return chains, nil
}

func (s *service) ListStores(ctx context.Context, f StoreFilter) ([]*Store, error) {
	f.City = strings.TrimSpace(f.City)
	return s.repo.ListStores(ctx, f)
}

func (s *service) GetStore(ctx context.Context, id catalog.StoreID) (*Store, error) {
	return s.repo.GetStore(ctx, id)
}

// LogoURL makes a stored logo path absolute. Absolute URLs pass through.
func LogoURL(base, logo string) string {
	switch {
	case logo == "":
		return ""
	case strings.HasPrefix(logo, "http://"), strings.HasPrefix(logo, "https://"):
		return logo
	case strings.HasPrefix(logo, "/"):
		return base + logo
	default:
		return base + "/media/" + logo
	}
}
