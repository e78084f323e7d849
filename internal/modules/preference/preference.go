// Package preference holds the user's store allow-list.
package preference

import (
	"sort"

	"github.com/georgemunganga/minprice-backend/internal/modules/catalog"
)

// Set is an allow-list of stores. The zero value and the empty set allow every store.
type Set struct {
	ids map[catalog.StoreID]struct{}
}

func New(ids ...catalog.StoreID) Set {
	s := Set{ids: make(map[catalog.StoreID]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

func (s Set) IsEmpty() bool { return len(s.ids) == 0 }

func (s Set) IsAllowed(id catalog.StoreID) bool {
	if s.IsEmpty() {
		return true
	}
	_, ok := s.ids[id]
	return ok
}

// IDs returns the allowed stores in ascending order.
func (s Set) IDs() []catalog.StoreID {
	out := make([]catalog.StoreID, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Allowed filters offers down to purchasable ones: allowed by the set and in stock.
func (s Set) Allowed(offers []catalog.Offer) []catalog.Offer {
	out := make([]catalog.Offer, 0, len(offers))
	for _, o := range offers {
		if o.InStock && s.IsAllowed(o.StoreID) {
			out = append(out, o)
		}
	}
	return out
}
