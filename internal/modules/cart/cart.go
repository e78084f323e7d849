package cart

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/georgemunganga/minprice-backend/internal/modules/catalog"
	"github.com/georgemunganga/minprice-backend/internal/modules/optimizer"
	"github.com/georgemunganga/minprice-backend/internal/modules/preference"
)

var (
	ErrNotFound           = errors.New("cart item not found")
	ErrProductUnavailable = errors.New("product unavailable in allowed stores")
	ErrOfferNotFound      = errors.New("store does not offer this product")
	ErrStrategyInfeasible = errors.New("strategy cannot cover the whole cart")
	ErrInvalidQuantity    = errors.New("quantity must be at least 1")
)

// Cart is the authoritative state of one cart: at most one line per product,
// plus the products that cannot be bought under the current store preference.
// Totals and store groups are recomputed after every mutation, so reads are cheap.
//
// A Cart is not safe for concurrent use.
type Cart struct {
	idx         catalog.Index
	pref        preference.Set
	lines       []optimizer.Line
	unavailable []Unavailable

	totals Totals
	groups []StoreGroup
}

// New returns an empty cart priced against idx.
func New(idx catalog.Index, pref preference.Set) *Cart {
	c := &Cart{idx: idx, pref: pref}
	c.recompute()
	return c
}

// Restore rebuilds a cart from a snapshot. Lines whose offer disappeared since the
// snapshot was taken are moved to the unavailable list.
func Restore(idx catalog.Index, snap Snapshot) *Cart {
	c := &Cart{
		idx:         idx,
		pref:        preference.New(snap.Preference...),
		unavailable: append([]Unavailable(nil), snap.Unavailable...),
	}
	for _, l := range snap.Lines {
		if l.Quantity < 1 || c.lineIndex(l.ProductID) >= 0 {
			continue
		}
		c.lines = append(c.lines, l)
	}
	for _, l := range c.lines {
		c.dropUnavailable(l.ProductID)
	}
	c.revalidate()
	c.recompute()
	return c
}

// AddItem adds quantity units of a product. An existing line is incremented;
// otherwise a new line goes to the cheapest allowed offer. If there is none,
// the product is kept as unavailable and ErrProductUnavailable is returned.
func (c *Cart) AddItem(productID string, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	if i := c.lineIndex(productID); i >= 0 {
		c.lines[i].Quantity += quantity
		c.recompute()
		return nil
	}

	p, err := c.idx.GetProduct(productID)
	if err != nil {
		return err
	}
	best, err := optimizer.CheapestOffer(c.idx, c.pref, productID)
	if err != nil {
		if j := c.unavailableIndex(productID); j >= 0 {
			c.unavailable[j].Quantity += quantity
			c.unavailable[j].Reason = ReasonNoAllowedOffer
		} else {
			c.unavailable = append(c.unavailable, Unavailable{
				ProductID: productID,
				Title:     p.Title,
				Quantity:  quantity,
				Reason:    ReasonNoAllowedOffer,
			})
		}
		c.recompute()
		return errors.Wrapf(ErrProductUnavailable, "product %s", productID)
	}

	// An explicit add replaces a stale unavailable entry with a fresh line.
	c.dropUnavailable(productID)
	c.lines = append(c.lines, optimizer.Line{ProductID: productID, StoreID: best.StoreID, Quantity: quantity})
	c.recompute()
	return nil
}

// RemoveItem deletes the product's line or unavailable entry. Absent products are a no-op.
func (c *Cart) RemoveItem(productID string) {
	if i := c.lineIndex(productID); i >= 0 {
		c.lines = append(c.lines[:i], c.lines[i+1:]...)
	}
	c.dropUnavailable(productID)
	c.recompute()
}

// UpdateQuantity sets the quantity exactly. Zero or less removes the product.
func (c *Cart) UpdateQuantity(productID string, quantity int) error {
	if quantity <= 0 {
		c.RemoveItem(productID)
		return nil
	}
	if i := c.lineIndex(productID); i >= 0 {
		c.lines[i].Quantity = quantity
		c.recompute()
		return nil
	}
	if j := c.unavailableIndex(productID); j >= 0 {
		c.unavailable[j].Quantity = quantity
		c.recompute()
		return nil
	}
	return errors.Wrapf(ErrNotFound, "product %s", productID)
}

// SetLineStore pins a line to a store chosen by the user.
func (c *Cart) SetLineStore(productID string, storeID catalog.StoreID) error {
	i := c.lineIndex(productID)
	if i < 0 {
		return errors.Wrapf(ErrNotFound, "product %s", productID)
	}
	if _, ok := optimizer.OfferAt(c.idx, c.pref, productID, storeID); !ok {
		return errors.Wrapf(ErrOfferNotFound, "product %s at store %d", productID, storeID)
	}
	c.lines[i].StoreID = storeID
	c.recompute()
	return nil
}

// Clear empties the cart. The store preference is kept.
func (c *Cart) Clear() {
	c.lines = nil
	c.unavailable = nil
	c.recompute()
}

// SetPreference replaces the store allow-list and re-evaluates every line.
// Lines that lose their store become unavailable; unavailable entries are never
// restored automatically, only by an explicit AddItem.
func (c *Cart) SetPreference(pref preference.Set) {
	c.pref = pref
	c.revalidate()
	c.recompute()
}

// ApplyStrategy reassigns lines.
//
// Optimal moves each line to its cheapest allowed offer; products without one
// become unavailable and the rest are still updated. SingleStore is all-or-nothing:
// if the store cannot supply every line, ErrStrategyInfeasible is returned and
// nothing changes.
func (c *Cart) ApplyStrategy(s optimizer.Strategy) error {
	if storeID, single := s.Store(); single {
		if !optimizer.StoreFeasibility(c.lines, c.idx, c.pref, storeID) {
			return errors.Wrapf(ErrStrategyInfeasible, "store %d", storeID)
		}
		for i := range c.lines {
			c.lines[i].StoreID = storeID
		}
		c.recompute()
		return nil
	}

	kept := c.lines[:0]
	for _, l := range c.lines {
		best, err := optimizer.CheapestOffer(c.idx, c.pref, l.ProductID)
		if err != nil {
			c.markUnavailable(l, ReasonNoAllowedOffer)
			continue
		}
		l.StoreID = best.StoreID
		kept = append(kept, l)
	}
	c.lines = kept
	c.recompute()
	return nil
}

// Line returns the line for a product.
func (c *Cart) Line(productID string) (optimizer.Line, bool) {
	if i := c.lineIndex(productID); i >= 0 {
		return c.lines[i], true
	}
	return optimizer.Line{}, false
}

func (c *Cart) Lines() []optimizer.Line {
	return append([]optimizer.Line(nil), c.lines...)
}

func (c *Cart) Unavailable() []Unavailable {
	return append([]Unavailable(nil), c.unavailable...)
}

func (c *Cart) Preference() preference.Set { return c.pref }

func (c *Cart) Totals() Totals { return c.totals }

// Summary returns the priced view computed by the last mutation.
func (c *Cart) Summary() Summary {
	groups := make([]StoreGroup, len(c.groups))
	for i, g := range c.groups {
		g.Lines = append([]LineView(nil), g.Lines...)
		groups[i] = g
	}
	return Summary{
		Groups:      groups,
		Unavailable: c.Unavailable(),
		Totals:      c.totals,
		Preference:  c.pref.IDs(),
	}
}

// Snapshot returns the state needed to Restore the cart later.
func (c *Cart) Snapshot() Snapshot {
	return Snapshot{
		Lines:       c.Lines(),
		Unavailable: c.Unavailable(),
		Preference:  c.pref.IDs(),
	}
}

// revalidate moves lines that are no longer purchasable at their store to the unavailable list.
func (c *Cart) revalidate() {
	kept := c.lines[:0]
	for _, l := range c.lines {
		if reason, ok := c.lineProblem(l); ok {
			c.markUnavailable(l, reason)
			continue
		}
		kept = append(kept, l)
	}
	c.lines = kept
}

func (c *Cart) lineProblem(l optimizer.Line) (Reason, bool) {
	if _, err := c.idx.GetProduct(l.ProductID); err != nil {
		return ReasonProductNotFound, true
	}
	if !c.pref.IsAllowed(l.StoreID) {
		return ReasonStoreExcluded, true
	}
	if _, err := optimizer.CheapestOffer(c.idx, c.pref, l.ProductID); err != nil {
		return ReasonNoAllowedOffer, true
	}
	if _, ok := optimizer.OfferAt(c.idx, c.pref, l.ProductID, l.StoreID); !ok {
		return ReasonOfferWithdrawn, true
	}
	return "", false
}

func (c *Cart) markUnavailable(l optimizer.Line, reason Reason) {
	title := ""
	if p, err := c.idx.GetProduct(l.ProductID); err == nil {
		title = p.Title
	}
	if j := c.unavailableIndex(l.ProductID); j >= 0 {
		c.unavailable[j].Quantity += l.Quantity
		c.unavailable[j].Reason = reason
		return
	}
	c.unavailable = append(c.unavailable, Unavailable{
		ProductID: l.ProductID,
		Title:     title,
		Quantity:  l.Quantity,
		Reason:    reason,
	})
}

func (c *Cart) dropUnavailable(productID string) {
	if j := c.unavailableIndex(productID); j >= 0 {
		c.unavailable = append(c.unavailable[:j], c.unavailable[j+1:]...)
	}
}

func (c *Cart) lineIndex(productID string) int {
	for i, l := range c.lines {
		if l.ProductID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) unavailableIndex(productID string) int {
	for i, u := range c.unavailable {
		if u.ProductID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) recompute() {
	optimal, _ := optimizer.TotalForStrategy(c.lines, c.idx, c.pref, optimizer.Optimal())
	t := Totals{
		Current: optimizer.CurrentTotal(c.lines, c.idx, c.pref),
		Optimal: optimal,
		Savings: optimizer.SavingsIfOptimal(c.lines, c.idx, c.pref),
		Stores:  optimizer.StoreTotals(c.lines, c.idx, c.pref),
	}
	for _, l := range c.lines {
		t.ItemCount += l.Quantity
	}
	c.totals = t
	c.groups = c.buildGroups()
}

func (c *Cart) buildGroups() []StoreGroup {
	byStore := make(map[catalog.StoreID]*StoreGroup)
	for _, l := range c.lines {
		p, err := c.idx.GetProduct(l.ProductID)
		if err != nil {
			continue
		}
		o, ok := p.OfferAt(l.StoreID)
		if !ok {
			continue
		}
		view := LineView{
			ProductID:       l.ProductID,
			Title:           p.Title,
			StoreID:         l.StoreID,
			StoreName:       o.StoreName,
			Price:           o.Price,
			PreviousPrice:   o.PreviousPrice,
			DiscountPercent: o.DiscountPercent(),
			Quantity:        l.Quantity,
			LineTotal:       optimizer.Round2(o.Price * float64(l.Quantity)),
		}
		if best, err := optimizer.CheapestOffer(c.idx, c.pref, l.ProductID); err == nil {
			view.CheapestStoreID = best.StoreID
			view.CheapestPrice = best.Price
			view.IsCheapest = o.Price <= best.Price
		}

		g, ok := byStore[l.StoreID]
		if !ok {
			g = &StoreGroup{StoreID: l.StoreID, StoreName: o.StoreName}
			byStore[l.StoreID] = g
		}
		g.Lines = append(g.Lines, view)
		g.Subtotal = optimizer.Round2(g.Subtotal + view.LineTotal)
	}

	groups := make([]StoreGroup, 0, len(byStore))
	for _, g := range byStore {
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].StoreName != groups[j].StoreName {
			return groups[i].StoreName < groups[j].StoreName
		}
		return groups[i].StoreID < groups[j].StoreID
	})
	return groups
}
