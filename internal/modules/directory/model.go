package directory

import "github.com/georgemunganga/minprice-backend/internal/modules/catalog"

// Chain is a retail chain such as a supermarket brand.
type Chain struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
	// Logo is an absolute URL once it leaves the service.
	Logo string `json:"logo,omitempty"`
}

// Store is one physical store of a chain. Its id is the one offers refer to.
type Store struct {
	ID      catalog.StoreID `json:"id"`
	ChainID int64           `json:"chain_id"`
	Name    string          `json:"name"`
	Slug    string          `json:"slug"`
	City    string          `json:"city,omitempty"`
}

// StoreFilter narrows ListStores. Zero values match everything.
type StoreFilter struct {
	ChainID int64
	City    string
}
