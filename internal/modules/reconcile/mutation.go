package reconcile

import (
	"context"

	"github.com/pkg/errors"

	"github.com/georgemunganga/minprice-backend/internal/modules/cart"
)

var (
	ErrInvalidMutation = errors.New("invalid mutation")
	ErrClosed          = errors.New("session closed")
)

// Op is the kind of cart change a client can issue.
type Op int

const (
	OpAdd Op = iota + 1
	OpRemove
	OpSetQuantity
)

func (o Op) String() string {
	switch o {
	case OpAdd:
		return "add"
	case OpRemove:
		return "remove"
	case OpSetQuantity:
		return "set_quantity"
	default:
		return "unknown"
	}
}

// Mutation is one user-driven change to a cart's contents.
type Mutation struct {
	Op        Op
	ProductID string
	Quantity  int
}

func Add(productID string, quantity int) Mutation {
	return Mutation{Op: OpAdd, ProductID: productID, Quantity: quantity}
}

func Remove(productID string) Mutation {
	return Mutation{Op: OpRemove, ProductID: productID}
}

// SetQuantity sets an exact quantity; zero or less removes the product.
func SetQuantity(productID string, quantity int) Mutation {
	return Mutation{Op: OpSetQuantity, ProductID: productID, Quantity: quantity}
}

func (m Mutation) validate() error {
	if m.ProductID == "" {
		return errors.Wrap(ErrInvalidMutation, "empty product id")
	}
	switch m.Op {
	case OpAdd:
		if m.Quantity < 1 {
			return errors.Wrapf(ErrInvalidMutation, "add %s: quantity %d", m.ProductID, m.Quantity)
		}
	case OpRemove, OpSetQuantity:
	default:
		return errors.Wrapf(ErrInvalidMutation, "op %d", m.Op)
	}
	return nil
}

// Remote is the cart persistence service as seen by a client. A call that
// fails may still return the authoritative summary, as AddItem does when the
// product was recorded as unavailable.
type Remote interface {
	AddItem(ctx context.Context, cartID, productID string, quantity int) (*cart.CartSummary, error)
	RemoveItem(ctx context.Context, cartID, productID string) (*cart.CartSummary, error)
	UpdateQuantity(ctx context.Context, cartID, productID string, quantity int) (*cart.CartSummary, error)
	FetchSummary(ctx context.Context, cartID string) (*cart.CartSummary, error)
}

func call(ctx context.Context, r Remote, cartID string, m Mutation) (*cart.CartSummary, error) {
	switch m.Op {
	case OpAdd:
		return r.AddItem(ctx, cartID, m.ProductID, m.Quantity)
	case OpRemove:
		return r.RemoveItem(ctx, cartID, m.ProductID)
	default:
		return r.UpdateQuantity(ctx, cartID, m.ProductID, m.Quantity)
	}
}
