package catalog

import "math"

// StoreID identifies one physical store of a retail chain.
type StoreID int64

// Offer is one store's listing of one product.
type Offer struct {
	StoreID   StoreID `json:"store_id"`
	StoreName string  `json:"store_name"`
	ChainID   int64   `json:"chain_id,omitempty"`
	ChainName string  `json:"chain_name,omitempty"`
	Price     float64 `json:"price"`
	// PreviousPrice is for display only.
	PreviousPrice *float64 `json:"previous_price,omitempty"`
	InStock       bool     `json:"in_stock"`
	URL           string   `json:"url,omitempty"`
}

// DiscountPercent compares the current price with the previous one, rounded to a whole percent.
func (o Offer) DiscountPercent() int {
	if o.PreviousPrice == nil || *o.PreviousPrice <= o.Price {
		return 0
	}
	return int(math.Round((*o.PreviousPrice - o.Price) / *o.PreviousPrice * 100))
}

// Product is a catalog item together with every store offer for it.
type Product struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Category    string  `json:"category,omitempty"`
	MeasureUnit string  `json:"measure_unit,omitempty"`
	ImageURL    string  `json:"image_url,omitempty"`
	Offers      []Offer `json:"offers"`
}

// OfferAt returns the product's offer at a store.
func (p *Product) OfferAt(storeID StoreID) (Offer, bool) {
	for _, o := range p.Offers {
		if o.StoreID == storeID {
			return o, true
		}
	}
	return Offer{}, false
}

// FoldOffers keeps one offer per store, preferring in-stock offers and then the lower price.
// The first-seen store order is kept and the input slice is not modified.
func FoldOffers(offers []Offer) []Offer {
	out := make([]Offer, 0, len(offers))
	seen := make(map[StoreID]int, len(offers))
	for _, o := range offers {
		i, ok := seen[o.StoreID]
		if !ok {
			seen[o.StoreID] = len(out)
			out = append(out, o)
			continue
		}
		if betterOffer(o, out[i]) {
			out[i] = o
		}
	}
	return out
}

func betterOffer(a, b Offer) bool {
	if a.InStock != b.InStock {
		return a.InStock
	}
	return a.Price < b.Price
}
