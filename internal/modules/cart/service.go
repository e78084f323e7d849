package cart

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/georgemunganga/minprice-backend/internal/modules/catalog"
	"github.com/georgemunganga/minprice-backend/internal/modules/optimizer"
	"github.com/georgemunganga/minprice-backend/internal/modules/preference"
)

// DefaultCartName is used when a cart is created without a name.
const DefaultCartName = "My cart"

// Service defines cart persistence and pricing for one owner (guest) at a time.
type Service interface {
	CreateCart(ctx context.Context, ownerID uuid.UUID, req CreateCartRequest) (*Record, error)
	ListCarts(ctx context.Context, ownerID uuid.UUID) ([]*Record, error)
	GetSummary(ctx context.Context, ownerID uuid.UUID, cartID string) (*CartSummary, error)
	// ActiveSummary returns the owner's active cart, creating one on first use.
	ActiveSummary(ctx context.Context, ownerID uuid.UUID) (*CartSummary, error)
	// SharedSummary is a read-only view of any cart by id, for share links.
	// The owner id is not disclosed.
	SharedSummary(ctx context.Context, cartID string) (*CartSummary, error)

	// Mutations return the new summary. AddItem also returns the summary together
	// with ErrProductUnavailable, since the product is kept as unavailable.
	AddItem(ctx context.Context, ownerID uuid.UUID, cartID string, req AddItemRequest) (*CartSummary, error)
	RemoveItem(ctx context.Context, ownerID uuid.UUID, cartID, productID string) (*CartSummary, error)
	UpdateQuantity(ctx context.Context, ownerID uuid.UUID, cartID, productID string, quantity int) (*CartSummary, error)
	SetLineStore(ctx context.Context, ownerID uuid.UUID, cartID, productID string, storeID catalog.StoreID) (*CartSummary, error)
	Clear(ctx context.Context, ownerID uuid.UUID, cartID string) (*CartSummary, error)
	SetPreference(ctx context.Context, ownerID uuid.UUID, cartID string, req SetPreferenceRequest) (*CartSummary, error)
	ApplyStrategy(ctx context.Context, ownerID uuid.UUID, cartID string, req ApplyStrategyRequest) (*CartSummary, error)

	Rename(ctx context.Context, ownerID uuid.UUID, cartID string, req RenameRequest) (*Record, error)
	Archive(ctx context.Context, ownerID uuid.UUID, cartID string) error
	Delete(ctx context.Context, ownerID uuid.UUID, cartID string) error
	SetActive(ctx context.Context, ownerID uuid.UUID, cartID string) error
}

type service struct {
	repo    Repository
	catalog catalog.Service
	log     logrus.FieldLogger
}

func NewService(repo Repository, catalogService catalog.Service, log logrus.FieldLogger) Service {
	return &service{repo: repo, catalog: catalogService, log: log}
}

func (s *service) CreateCart(ctx context.Context, ownerID uuid.UUID, req CreateCartRequest) (*Record, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = DefaultCartName
	}
	rec := &Record{
		ID:       uuid.New(),
		OwnerID:  ownerID,
		Name:     name,
		IsActive: true,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, errors.Wrap(err, "create cart")
	}
	s.log.WithFields(logrus.Fields{"cart_id": rec.ID, "owner_id": ownerID}).Info("cart created")
	return rec, nil
}

func (s *service) ListCarts(ctx context.Context, ownerID uuid.UUID) ([]*Record, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

func (s *service) GetSummary(ctx context.Context, ownerID uuid.UUID, cartID string) (*CartSummary, error) {
	rec, err := s.load(ctx, ownerID, cartID)
	if err != nil {
		return nil, err
	}
	c, err := s.restore(ctx, rec)
	if err != nil {
		return nil, err
	}
	return &CartSummary{Cart: rec, Summary: c.Summary()}, nil
}

func (s *service) SharedSummary(ctx context.Context, cartID string) (*CartSummary, error) {
	rec, err := s.get(ctx, cartID)
	if err != nil {
		return nil, err
	}
	c, err := s.restore(ctx, rec)
	if err != nil {
		return nil, err
	}
	shared := *rec
	shared.OwnerID = uuid.Nil
	return &CartSummary{Cart: &shared, Summary: c.Summary()}, nil
}

func (s *service) ActiveSummary(ctx context.Context, ownerID uuid.UUID) (*CartSummary, error) {
	rec, err := s.repo.GetActive(ctx, ownerID)
	if errors.Is(err, ErrCartNotFound) {
		rec, err = s.CreateCart(ctx, ownerID, CreateCartRequest{})
	}
	if err != nil {
		return nil, err
	}
	c, err := s.restore(ctx, rec)
	if err != nil {
		return nil, err
	}
	return &CartSummary{Cart: rec, Summary: c.Summary()}, nil
}

func (s *service) AddItem(ctx context.Context, ownerID uuid.UUID, cartID string, req AddItemRequest) (*CartSummary, error) {
	if req.ProductID == "" {
		return nil, errors.Wrap(ErrBadRequest, "product_id is required")
	}
	qty := req.Quantity
	if qty == 0 {
		qty = 1
	}
	return s.mutate(ctx, ownerID, cartID, "add_item", []string{req.ProductID}, func(c *Cart) error {
		return c.AddItem(req.ProductID, qty)
	})
}

func (s *service) RemoveItem(ctx context.Context, ownerID uuid.UUID, cartID, productID string) (*CartSummary, error) {
	return s.mutate(ctx, ownerID, cartID, "remove_item", nil, func(c *Cart) error {
		c.RemoveItem(productID)
		return nil
	})
}

func (s *service) UpdateQuantity(ctx context.Context, ownerID uuid.UUID, cartID, productID string, quantity int) (*CartSummary, error) {
	return s.mutate(ctx, ownerID, cartID, "update_quantity", nil, func(c *Cart) error {
		return c.UpdateQuantity(productID, quantity)
	})
}

func (s *service) SetLineStore(ctx context.Context, ownerID uuid.UUID, cartID, productID string, storeID catalog.StoreID) (*CartSummary, error) {
	return s.mutate(ctx, ownerID, cartID, "set_line_store", nil, func(c *Cart) error {
		return c.SetLineStore(productID, storeID)
	})
}

func (s *service) Clear(ctx context.Context, ownerID uuid.UUID, cartID string) (*CartSummary, error) {
	return s.mutate(ctx, ownerID, cartID, "clear", nil, func(c *Cart) error {
		c.Clear()
		return nil
	})
}

func (s *service) SetPreference(ctx context.Context, ownerID uuid.UUID, cartID string, req SetPreferenceRequest) (*CartSummary, error) {
	return s.mutate(ctx, ownerID, cartID, "set_preference", nil, func(c *Cart) error {
		c.SetPreference(preference.New(req.StoreIDs...))
		return nil
	})
}

func (s *service) ApplyStrategy(ctx context.Context, ownerID uuid.UUID, cartID string, req ApplyStrategyRequest) (*CartSummary, error) {
	strategy, err := optimizer.ParseStrategy(req.Strategy, req.StoreID)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, ownerID, cartID, "apply_strategy", nil, func(c *Cart) error {
		return c.ApplyStrategy(strategy)
	})
}

func (s *service) Rename(ctx context.Context, ownerID uuid.UUID, cartID string, req RenameRequest) (*Record, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, errors.Wrap(ErrBadRequest, "name is required")
	}
	rec, err := s.load(ctx, ownerID, cartID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Rename(ctx, rec.ID, name); err != nil {
		return nil, err
	}
	rec.Name = name
	return rec, nil
}

func (s *service) Archive(ctx context.Context, ownerID uuid.UUID, cartID string) error {
	rec, err := s.load(ctx, ownerID, cartID)
	if err != nil {
		return err
	}
	return s.repo.Archive(ctx, rec.ID)
}

func (s *service) Delete(ctx context.Context, ownerID uuid.UUID, cartID string) error {
	rec, err := s.load(ctx, ownerID, cartID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, rec.ID); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"cart_id": rec.ID, "owner_id": ownerID}).Info("cart deleted")
	return nil
}

func (s *service) SetActive(ctx context.Context, ownerID uuid.UUID, cartID string) error {
	rec, err := s.load(ctx, ownerID, cartID)
	if err != nil {
		return err
	}
	if rec.IsArchived {
		return errors.Wrapf(ErrArchived, "cart %s", rec.ID)
	}
	return s.repo.SetActive(ctx, ownerID, rec.ID)
}

// mutate loads the cart, applies fn and saves the result. A failed fn leaves the
// stored cart untouched, except for ErrProductUnavailable which records the product.
func (s *service) mutate(ctx context.Context, ownerID uuid.UUID, cartID, op string, extra []string, fn func(*Cart) error) (*CartSummary, error) {
	rec, err := s.load(ctx, ownerID, cartID)
	if err != nil {
		return nil, err
	}
	if rec.IsArchived {
		return nil, errors.Wrapf(ErrArchived, "cart %s", rec.ID)
	}
	c, err := s.restore(ctx, rec, extra...)
	if err != nil {
		return nil, err
	}

	opErr := fn(c)
	if opErr != nil && !errors.Is(opErr, ErrProductUnavailable) {
		return nil, opErr
	}

	rec.Snapshot = c.Snapshot()
	if err := s.repo.Save(ctx, rec); err != nil {
		return nil, err
	}

	totals := c.Totals()
	s.log.WithFields(logrus.Fields{
		"cart_id": rec.ID,
		"op":      op,
		"version": rec.Version,
		"current": totals.Current,
		"optimal": totals.Optimal,
	}).Info("cart updated")

	return &CartSummary{Cart: rec, Summary: c.Summary()}, opErr
}

func (s *service) get(ctx context.Context, cartID string) (*Record, error) {
	id, err := uuid.Parse(cartID)
	if err != nil {
		return nil, errors.Wrapf(ErrCartNotFound, "invalid cart id %q", cartID)
	}
	return s.repo.Get(ctx, id)
}

func (s *service) load(ctx context.Context, ownerID uuid.UUID, cartID string) (*Record, error) {
	rec, err := s.get(ctx, cartID)
	if err != nil {
		return nil, err
	}
	// Other owners' carts are reported as missing.
	if rec.OwnerID != ownerID {
		return nil, errors.Wrapf(ErrCartNotFound, "cart %s", rec.ID)
	}
	return rec, nil
}

func (s *service) restore(ctx context.Context, rec *Record, extra ...string) (*Cart, error) {
	ids := make([]string, 0, len(rec.Snapshot.Lines)+len(rec.Snapshot.Unavailable)+len(extra))
	for _, l := range rec.Snapshot.Lines {
		ids = append(ids, l.ProductID)
	}
	for _, u := range rec.Snapshot.Unavailable {
		ids = append(ids, u.ProductID)
	}
	ids = append(ids, extra...)

	idx, err := s.catalog.Index(ctx, ids)
	if err != nil {
		return nil, err
	}
	return Restore(idx, rec.Snapshot), nil
}
