package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// ErrUpstream marks a failure talking to the upstream price API.
var ErrUpstream = errors.New("upstream catalog unavailable")

const upstreamParallelism = 4

// upstreamRepo reads products from the minprice price-comparison API.
type upstreamRepo struct {
	baseURL string
	cityID  int
	client  *http.Client
}

// NewUpstreamRepository talks to the price API at baseURL (e.g. https://minprice.xyz/api).
// cityID narrows offers to one city; 0 means all cities.
func NewUpstreamRepository(baseURL string, cityID int, timeout time.Duration) Repository {
	return &upstreamRepo{
		baseURL: strings.TrimRight(baseURL, "/"),
		cityID:  cityID,
		client:  &http.Client{Timeout: timeout},
	}
}

// Wire shapes. Detail responses carry offers under price_range.stores,
// listing responses under stores.
type upstreamProduct struct {
	UUID        string               `json:"uuid"`
	Title       string               `json:"title"`
	Categories  []string             `json:"categories"`
	MeasureUnit string               `json:"measure_unit"`
	ImageURL    string               `json:"image_url"`
	Stores      []upstreamStorePrice `json:"stores"`
	PriceRange  *struct {
		Stores []upstreamStorePrice `json:"stores"`
	} `json:"price_range"`
}

type upstreamStorePrice struct {
	StoreID       *int64   `json:"store_id"`
	StoreName     string   `json:"store_name"`
	ChainID       int64    `json:"chain_id"`
	ChainName     string   `json:"chain_name"`
	Price         float64  `json:"price"`
	PreviousPrice *float64 `json:"previous_price"`
	InStock       bool     `json:"in_stock"`
	URL           string   `json:"url"`
}

func (r *upstreamRepo) GetProduct(ctx context.Context, id string) (*Product, error) {
	endpoint := fmt.Sprintf("%s/products/%s/", r.baseURL, url.PathEscape(id))
	if r.cityID > 0 {
		endpoint += fmt.Sprintf("?city=%d", r.cityID)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build upstream request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(ErrUpstream, "get product %s: %v", id, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.Wrapf(ErrNotFound, "product %s", id)
	case resp.StatusCode != http.StatusOK:
		return nil, errors.Wrapf(ErrUpstream, "get product %s: status %d", id, resp.StatusCode)
	}

	var up upstreamProduct
	if err := json.NewDecoder(resp.Body).Decode(&up); err != nil {
		return nil, errors.Wrapf(ErrUpstream, "decode product %s: %v", id, err)
	}
	if up.UUID == "" {
		up.UUID = id
	}
	return r.toProduct(up), nil
}

func (r *upstreamRepo) GetProducts(ctx context.Context, ids []string) ([]*Product, error) {
	results := make([]*Product, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(upstreamParallelism)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			p, err := r.GetProduct(gctx, id)
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			results[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	products := make([]*Product, 0, len(ids))
	for _, p := range results {
		if p != nil {
			products = append(products, p)
		}
	}
	return products, nil
}

func (r *upstreamRepo) toProduct(up upstreamProduct) *Product {
	stores := up.Stores
	if up.PriceRange != nil && len(up.PriceRange.Stores) > 0 {
		stores = up.PriceRange.Stores
	}
	p := &Product{
		ID:          up.UUID,
		Title:       up.Title,
		MeasureUnit: up.MeasureUnit,
		ImageURL:    up.ImageURL,
		Offers:      make([]Offer, 0, len(stores)),
	}
	if len(up.Categories) > 0 {
		p.Category = up.Categories[0]
	}
	for _, s := range stores {
		// Older listings only carry the chain.
		storeID := s.ChainID
		if s.StoreID != nil {
			storeID = *s.StoreID
		}
		p.Offers = append(p.Offers, Offer{
			StoreID:       StoreID(storeID),
			StoreName:     s.StoreName,
			ChainID:       s.ChainID,
			ChainName:     s.ChainName,
			Price:         s.Price,
			PreviousPrice: s.PreviousPrice,
			InStock:       s.InStock,
			URL:           s.URL,
		})
	}
	// Chain-only listings can repeat a store id.
	p.Offers = FoldOffers(p.Offers)
	return p
}
