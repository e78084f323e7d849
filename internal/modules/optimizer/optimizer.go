// Package optimizer prices a cart across stores. Every function here is pure:
// it reads the lines, the catalog index and the store preference and never mutates them.
package optimizer

import (
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/georgemunganga/minprice-backend/internal/modules/catalog"
	"github.com/georgemunganga/minprice-backend/internal/modules/preference"
)

var (
	ErrNoOfferAvailable = errors.New("no offer available")
	ErrInfeasible       = errors.New("store cannot supply the whole cart")
)

// Line is one product in a cart, assigned to one store.
type Line struct {
	ProductID string          `json:"product_id"`
	StoreID   catalog.StoreID `json:"store_id"`
	Quantity  int             `json:"quantity"`
}

// StoreTotal is what the cart would cost bought entirely at one store.
type StoreTotal struct {
	StoreID   catalog.StoreID `json:"store_id"`
	StoreName string          `json:"store_name"`
	Total     float64         `json:"total"`
	Feasible  bool            `json:"feasible"`
	// Missing counts cart products the store cannot supply.
	Missing int `json:"missing"`
}

// CheapestOffer picks the lowest-priced purchasable offer; ties go to the lowest store id.
func CheapestOffer(idx catalog.Index, pref preference.Set, productID string) (catalog.Offer, error) {
	offers := pref.Allowed(idx.ListOffers(productID))
	if len(offers) == 0 {
		return catalog.Offer{}, errors.Wrapf(ErrNoOfferAvailable, "product %s", productID)
	}
	best := offers[0]
	for _, o := range offers[1:] {
		if o.Price < best.Price || (o.Price == best.Price && o.StoreID < best.StoreID) {
			best = o
		}
	}
	return best, nil
}

// OfferAt returns the purchasable offer for a product at one store.
func OfferAt(idx catalog.Index, pref preference.Set, productID string, storeID catalog.StoreID) (catalog.Offer, bool) {
	if !pref.IsAllowed(storeID) {
		return catalog.Offer{}, false
	}
	for _, o := range idx.ListOffers(productID) {
		if o.StoreID == storeID && o.InStock {
			return o, true
		}
	}
	return catalog.Offer{}, false
}

// TotalForStrategy prices the cart under a strategy.
//
// Optimal skips products with no purchasable offer; the cart reports those as unavailable.
// SingleStore is all-or-nothing and returns ErrInfeasible if the store misses any product.
func TotalForStrategy(lines []Line, idx catalog.Index, pref preference.Set, s Strategy) (float64, error) {
	storeID, single := s.Store()
	var total float64
	for _, l := range lines {
		if single {
			o, ok := OfferAt(idx, pref, l.ProductID, storeID)
			if !ok {
				return 0, errors.Wrapf(ErrInfeasible, "store %d has no offer for %s", storeID, l.ProductID)
			}
			total += o.Price * float64(l.Quantity)
			continue
		}
		o, err := CheapestOffer(idx, pref, l.ProductID)
		if err != nil {
			continue
		}
		total += o.Price * float64(l.Quantity)
	}
	return Round2(total), nil
}

// StoreFeasibility reports whether one store can supply every line.
func StoreFeasibility(lines []Line, idx catalog.Index, pref preference.Set, storeID catalog.StoreID) bool {
	for _, l := range lines {
		if _, ok := OfferAt(idx, pref, l.ProductID, storeID); !ok {
			return false
		}
	}
	return true
}

// CurrentTotal is what the lines cost at their assigned stores.
// Lines whose assigned offer is not purchasable contribute nothing.
func CurrentTotal(lines []Line, idx catalog.Index, pref preference.Set) float64 {
	var total float64
	for _, l := range lines {
		if o, ok := OfferAt(idx, pref, l.ProductID, l.StoreID); ok {
			total += o.Price * float64(l.Quantity)
		}
	}
	return Round2(total)
}

// SavingsIfOptimal is how much switching to the optimal mix would save. Never negative.
func SavingsIfOptimal(lines []Line, idx catalog.Index, pref preference.Set) float64 {
	optimal, _ := TotalForStrategy(lines, idx, pref, Optimal())
	return Round2(math.Max(0, CurrentTotal(lines, idx, pref)-optimal))
}

// StoreTotals prices the cart at every store that offers at least one of its products.
// Feasible stores come first, cheapest first; the rest are ordered by how little they miss.
func StoreTotals(lines []Line, idx catalog.Index, pref preference.Set) []StoreTotal {
	byStore := make(map[catalog.StoreID]*StoreTotal)
	for _, l := range lines {
		for _, o := range pref.Allowed(idx.ListOffers(l.ProductID)) {
			if _, ok := byStore[o.StoreID]; !ok {
				byStore[o.StoreID] = &StoreTotal{StoreID: o.StoreID, StoreName: o.StoreName}
			}
		}
	}

	out := make([]StoreTotal, 0, len(byStore))
	for id, st := range byStore {
		for _, l := range lines {
			o, ok := OfferAt(idx, pref, l.ProductID, id)
			if !ok {
				st.Missing++
				continue
			}
			st.Total += o.Price * float64(l.Quantity)
		}
		st.Total = Round2(st.Total)
		st.Feasible = st.Missing == 0
		out = append(out, *st)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Feasible != b.Feasible {
			return a.Feasible
		}
		if a.Missing != b.Missing {
			return a.Missing < b.Missing
		}
		if a.Total != b.Total {
			return a.Total < b.Total
		}
		return a.StoreID < b.StoreID
	})
	return out
}

// Round2 rounds a money amount to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
