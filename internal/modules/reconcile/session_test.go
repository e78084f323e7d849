package reconcile

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/georgemunganga/minprice-backend/internal/modules/cart"
	"github.com/georgemunganga/minprice-backend/internal/platform/logger"
)

// fakeRemote keeps server-side quantities. Failing calls still apply the
// change, like a request that timed out after the server committed it.
type fakeRemote struct {
	mu          sync.Mutex
	items       []Item
	unavailable map[string]bool
	calls       []string
	block       map[int]chan struct{}
	fail        map[int]error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		unavailable: map[string]bool{},
		block:       map[int]chan struct{}{},
		fail:        map[int]error{},
	}
}

func (f *fakeRemote) enter(name string) error {
	f.mu.Lock()
	n := len(f.calls)
	f.calls = append(f.calls, name)
	ch := f.block[n]
	err := f.fail[n]
	f.mu.Unlock()
	if ch != nil {
		<-ch
	}
	return err
}

func (f *fakeRemote) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeRemote) summaryLocked() *cart.CartSummary {
	s := &cart.CartSummary{Cart: &cart.Record{Name: "test"}}
	g := cart.StoreGroup{StoreID: 1, StoreName: "Alpha"}
	for _, it := range f.items {
		if f.unavailable[it.ProductID] {
			s.Unavailable = append(s.Unavailable, cart.Unavailable{ProductID: it.ProductID, Quantity: it.Quantity, Reason: cart.ReasonNoAllowedOffer})
			continue
		}
		g.Lines = append(g.Lines, cart.LineView{ProductID: it.ProductID, StoreID: 1, Quantity: it.Quantity})
		s.Totals.ItemCount += it.Quantity
	}
	if len(g.Lines) > 0 {
		s.Groups = []cart.StoreGroup{g}
	}
	return s
}

func (f *fakeRemote) mutate(name string, fn func()) (*cart.CartSummary, error) {
	err := f.enter(name)
	f.mu.Lock()
	defer f.mu.Unlock()
	fn()
	if err != nil {
		return nil, err
	}
	return f.summaryLocked(), nil
}

func (f *fakeRemote) index(productID string) int {
	for i, it := range f.items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}

func (f *fakeRemote) AddItem(ctx context.Context, cartID, productID string, quantity int) (*cart.CartSummary, error) {
	s, err := f.mutate("add:"+productID, func() {
		if i := f.index(productID); i >= 0 {
			f.items[i].Quantity += quantity
			return
		}
		f.items = append(f.items, Item{ProductID: productID, Quantity: quantity})
	})
	if err == nil && f.isUnavailable(productID) {
		return s, errors.Wrapf(cart.ErrProductUnavailable, "product %s", productID)
	}
	return s, err
}

func (f *fakeRemote) isUnavailable(productID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unavailable[productID]
}

func (f *fakeRemote) RemoveItem(ctx context.Context, cartID, productID string) (*cart.CartSummary, error) {
	return f.mutate("remove:"+productID, func() {
		if i := f.index(productID); i >= 0 {
			f.items = append(f.items[:i], f.items[i+1:]...)
		}
	})
}

func (f *fakeRemote) UpdateQuantity(ctx context.Context, cartID, productID string, quantity int) (*cart.CartSummary, error) {
	return f.mutate("update:"+productID, func() {
		i := f.index(productID)
		switch {
		case i < 0:
		case quantity <= 0:
			f.items = append(f.items[:i], f.items[i+1:]...)
		default:
			f.items[i].Quantity = quantity
		}
	})
}

func (f *fakeRemote) FetchSummary(ctx context.Context, cartID string) (*cart.CartSummary, error) {
	if err := f.enter("fetch"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.summaryLocked(), nil
}

func newTestSession(t *testing.T, remote Remote) *Session {
	t.Helper()
	s := NewSession(context.Background(), remote, "cart-1", logger.Discard())
	t.Cleanup(s.Close)
	return s
}

func waitStable(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
}

func TestIssueIsOptimisticThenReconciled(t *testing.T) {
	remote := newFakeRemote()
	release := make(chan struct{})
	remote.block[0] = release
	s := newTestSession(t, remote)

	seq, err := s.Issue(Add("X", 2))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq)

	v := s.View()
	assert.True(t, v.Pending)
	assert.Equal(t, []Item{{ProductID: "X", Quantity: 2}}, v.Items)
	assert.Nil(t, v.Summary)

	close(release)
	waitStable(t, s)

	v = s.View()
	assert.False(t, v.Pending)
	require.NotNil(t, v.Summary)
	assert.Equal(t, 2, v.Summary.Totals.ItemCount)
	assert.Equal(t, []Item{{ProductID: "X", Quantity: 2}}, v.Items)
	assert.NoError(t, v.Err)
}

func TestAddThenRemoveBeforeAnyResponseLeavesCartEmpty(t *testing.T) {
	remote := newFakeRemote()
	release := make(chan struct{})
	remote.block[0] = release
	s := newTestSession(t, remote)

	_, err := s.Issue(Add("X", 1))
	require.NoError(t, err)
	_, err = s.Issue(Remove("X"))
	require.NoError(t, err)
	assert.Empty(t, s.View().Items)

	close(release)
	waitStable(t, s)

	v := s.View()
	assert.Empty(t, v.Items)
	require.NotNil(t, v.Summary)
	assert.Empty(t, v.Summary.Groups)
	assert.Equal(t, []string{"add:X", "remove:X"}, remote.Calls())
}

func TestStaleResponsesAreDiscardedInAnyArrivalOrder(t *testing.T) {
	s := newTestSession(t, newFakeRemote())
	s.mu.Lock()
	s.issued = 2
	s.mu.Unlock()

	withX := &cart.CartSummary{Summary: cart.Summary{Groups: []cart.StoreGroup{{Lines: []cart.LineView{{ProductID: "X", Quantity: 1}}}}}}
	empty := &cart.CartSummary{}

	// The newer response lands first; the older one must not overwrite it.
	assert.True(t, s.apply(2, empty))
	assert.False(t, s.apply(1, withX))
	assert.Empty(t, s.View().Items)
	assert.Same(t, empty, s.View().Summary)
}

func TestFailedMutationRefetchesInsteadOfResending(t *testing.T) {
	remote := newFakeRemote()
	remote.fail[0] = errors.Wrap(ErrTransport, "timeout")
	s := newTestSession(t, remote)

	_, err := s.Issue(Add("X", 1))
	require.NoError(t, err)
	waitStable(t, s)

	v := s.View()
	assert.Equal(t, []string{"add:X", "fetch"}, remote.Calls())
	assert.Equal(t, []Item{{ProductID: "X", Quantity: 1}}, v.Items)
	assert.True(t, errors.Is(v.Err, ErrTransport))
}

func TestFailedMutationSkipsFetchWhenNewerIsQueued(t *testing.T) {
	remote := newFakeRemote()
	release := make(chan struct{})
	remote.block[0] = release
	remote.fail[0] = errors.Wrap(ErrTransport, "reset")
	s := newTestSession(t, remote)

	_, err := s.Issue(Add("X", 1))
	require.NoError(t, err)
	_, err = s.Issue(Add("Y", 3))
	require.NoError(t, err)
	close(release)
	waitStable(t, s)

	v := s.View()
	assert.Equal(t, []string{"add:X", "add:Y"}, remote.Calls())
	assert.Equal(t, []Item{{ProductID: "X", Quantity: 1}, {ProductID: "Y", Quantity: 3}}, v.Items)
	assert.NoError(t, v.Err)
}

func TestUnavailableProductSummaryIsAccepted(t *testing.T) {
	remote := newFakeRemote()
	remote.unavailable["N"] = true
	s := newTestSession(t, remote)

	_, err := s.Issue(Add("N", 2))
	require.NoError(t, err)
	waitStable(t, s)

	v := s.View()
	assert.Equal(t, []string{"add:N"}, remote.Calls())
	require.NotNil(t, v.Summary)
	require.Len(t, v.Summary.Unavailable, 1)
	assert.Equal(t, []Item{{ProductID: "N", Quantity: 2}}, v.Items)
	assert.True(t, errors.Is(v.Err, cart.ErrProductUnavailable))
}

func TestSetQuantityAndRefresh(t *testing.T) {
	remote := newFakeRemote()
	remote.items = []Item{{ProductID: "X", Quantity: 1}, {ProductID: "Y", Quantity: 1}}
	s := newTestSession(t, remote)

	require.NoError(t, s.Refresh())
	waitStable(t, s)
	assert.Len(t, s.View().Items, 2)

	_, err := s.Issue(SetQuantity("X", 4))
	require.NoError(t, err)
	_, err = s.Issue(SetQuantity("Y", 0))
	require.NoError(t, err)
	assert.Equal(t, []Item{{ProductID: "X", Quantity: 4}}, s.View().Items)

	waitStable(t, s)
	assert.Equal(t, []Item{{ProductID: "X", Quantity: 4}}, s.View().Items)
	assert.Equal(t, uint64(2), s.View().Seq)
}

func TestIssueValidationAndClose(t *testing.T) {
	s := NewSession(context.Background(), newFakeRemote(), "cart-1", logger.Discard())

	for _, m := range []Mutation{Add("", 1), Add("X", 0), {Op: Op(99), ProductID: "X"}} {
		_, err := s.Issue(m)
		assert.True(t, errors.Is(err, ErrInvalidMutation), "%+v", m)
	}

	s.Close()
	_, err := s.Issue(Add("X", 1))
	assert.True(t, errors.Is(err, ErrClosed))
	assert.True(t, errors.Is(s.Refresh(), ErrClosed))
	assert.NoError(t, s.Wait(context.Background()))
}
