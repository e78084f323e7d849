package cart

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	ErrCartNotFound = errors.New("cart not found")
	ErrConflict     = errors.New("cart was modified concurrently")
	ErrArchived     = errors.New("cart is archived")
	ErrBadRequest   = errors.New("invalid request")
)

// Repository defines data access for stored carts.
type Repository interface {
	Create(ctx context.Context, r *Record) error
	Get(ctx context.Context, id uuid.UUID) (*Record, error)
	// GetActive returns the owner's active cart or ErrCartNotFound.
	GetActive(ctx context.Context, ownerID uuid.UUID) (*Record, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Record, error)

	// Save replaces the cart's contents if r.Version still matches the stored
	// version, and bumps r.Version. Otherwise it returns ErrConflict.
	Save(ctx context.Context, r *Record) error

	Rename(ctx context.Context, id uuid.UUID, name string) error
	Archive(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	// SetActive makes id the owner's only active cart.
	SetActive(ctx context.Context, ownerID, id uuid.UUID) error
}
