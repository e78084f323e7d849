package optimizer

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/georgemunganga/minprice-backend/internal/modules/catalog"
)

var ErrUnknownStrategy = errors.New("unknown strategy")

// Kind names a pricing strategy on the wire.
type Kind string

const (
	KindOptimal     Kind = "optimal"
	KindSingleStore Kind = "single_store"
)

// Strategy is either Optimal() or SingleStore(id). The zero value is Optimal.
type Strategy struct {
	single bool
	store  catalog.StoreID
}

// Optimal buys every product at its cheapest allowed store.
func Optimal() Strategy { return Strategy{} }

// SingleStore buys the whole cart at one store.
func SingleStore(id catalog.StoreID) Strategy { return Strategy{single: true, store: id} }

func (s Strategy) Kind() Kind {
	if s.single {
		return KindSingleStore
	}
	return KindOptimal
}

// Store returns the target store of a single-store strategy.
func (s Strategy) Store() (catalog.StoreID, bool) { return s.store, s.single }

func (s Strategy) String() string {
	if s.single {
		return fmt.Sprintf("%s(%d)", KindSingleStore, s.store)
	}
	return string(KindOptimal)
}

// ParseStrategy builds a Strategy from its wire form.
func ParseStrategy(kind string, storeID catalog.StoreID) (Strategy, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(kind))) {
	case KindOptimal:
		return Optimal(), nil
	case KindSingleStore:
		if storeID <= 0 {
			return Strategy{}, errors.Wrap(ErrUnknownStrategy, "single_store needs a store_id")
		}
		return SingleStore(storeID), nil
	default:
		return Strategy{}, errors.Wrapf(ErrUnknownStrategy, "%q", kind)
	}
}
