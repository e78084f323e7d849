package cart

import (
	"time"

	"github.com/google/uuid"

	"github.com/georgemunganga/minprice-backend/internal/modules/catalog"
	"github.com/georgemunganga/minprice-backend/internal/modules/optimizer"
)

// Reason explains why a cart product cannot currently be bought.
type Reason string

const (
	ReasonNoAllowedOffer  Reason = "NO_ALLOWED_OFFER"  // no in-stock offer at any allowed store
	ReasonStoreExcluded   Reason = "STORE_EXCLUDED"    // the line's store was removed from the preference
	ReasonOfferWithdrawn  Reason = "OFFER_WITHDRAWN"   // the line's store stopped offering it
	ReasonProductNotFound Reason = "PRODUCT_NOT_FOUND" // the catalog no longer knows the product
)

// Unavailable is a cart product with no purchasable offer under the current filters.
type Unavailable struct {
	ProductID string `json:"product_id"`
	Title     string `json:"title,omitempty"`
	Quantity  int    `json:"quantity"`
	Reason    Reason `json:"reason"`
}

// Snapshot is the persistent part of a cart's state.
type Snapshot struct {
	Lines       []optimizer.Line  `json:"lines"`
	Unavailable []Unavailable     `json:"unavailable"`
	Preference  []catalog.StoreID `json:"preference"`
}

// Record is a stored cart owned by one guest.
type Record struct {
	ID         uuid.UUID `json:"id"`
	OwnerID    uuid.UUID `json:"owner_id"`
	Name       string    `json:"name"`
	IsActive   bool      `json:"is_active"`
	IsArchived bool      `json:"is_archived"`
	// Version is bumped on every save and guards against lost updates.
	Version   int       `json:"version"`
	Snapshot  Snapshot  `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LineView is a cart line priced for display.
type LineView struct {
	ProductID       string          `json:"product_id"`
	Title           string          `json:"title"`
	StoreID         catalog.StoreID `json:"store_id"`
	StoreName       string          `json:"store_name"`
	Price           float64         `json:"price"`
	PreviousPrice   *float64        `json:"previous_price,omitempty"`
	DiscountPercent int             `json:"discount_percent,omitempty"`
	Quantity        int             `json:"quantity"`
	LineTotal       float64         `json:"line_total"`
	CheapestStoreID catalog.StoreID `json:"cheapest_store_id"`
	CheapestPrice   float64         `json:"cheapest_price"`
	IsCheapest      bool            `json:"is_cheapest"`
}

// StoreGroup is the part of the cart bought at one store.
type StoreGroup struct {
	StoreID   catalog.StoreID `json:"store_id"`
	StoreName string          `json:"store_name"`
	Lines     []LineView      `json:"lines"`
	Subtotal  float64         `json:"subtotal"`
}

// Totals are recomputed after every mutation.
type Totals struct {
	// ItemCount is the number of priced units. Unavailable entries are not counted.
	ItemCount int                    `json:"item_count"`
	Current   float64                `json:"current"`
	Optimal   float64                `json:"optimal"`
	Savings   float64                `json:"savings"`
	Stores    []optimizer.StoreTotal `json:"stores"`
}

// Summary is the full priced view of a cart.
type Summary struct {
	Groups      []StoreGroup      `json:"groups"`
	Unavailable []Unavailable     `json:"unavailable"`
	Totals      Totals            `json:"totals"`
	Preference  []catalog.StoreID `json:"preference"`
}

// CartSummary is a Summary together with the stored cart's metadata.
type CartSummary struct {
	Cart *Record `json:"cart"`
	Summary
}

// CreateCartRequest is the payload for creating a cart.
type CreateCartRequest struct {
	Name string `json:"name"`
}

// AddItemRequest is the payload for adding a product.
type AddItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// UpdateQuantityRequest sets a product's quantity; zero or less removes it.
type UpdateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// SetLineStoreRequest overrides the store chosen for a line.
type SetLineStoreRequest struct {
	StoreID catalog.StoreID `json:"store_id"`
}

// SetPreferenceRequest replaces the store allow-list; empty allows every store.
type SetPreferenceRequest struct {
	StoreIDs []catalog.StoreID `json:"store_ids"`
}

// ApplyStrategyRequest reassigns lines by strategy ("optimal" or "single_store").
type ApplyStrategyRequest struct {
	Strategy string          `json:"strategy"`
	StoreID  catalog.StoreID `json:"store_id,omitempty"`
}

// RenameRequest renames a cart.
type RenameRequest struct {
	Name string `json:"name"`
}
