package reconcile

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/georgemunganga/minprice-backend/internal/modules/cart"
)

// Item is a product and quantity as the client currently shows it.
type Item struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// View is the client's picture of a cart: optimistic items plus the last
// authoritative summary accepted from the server.
type View struct {
	Items   []Item
	Summary *cart.CartSummary
	Pending bool
	// Seq is the latest issued mutation.
	Seq uint64
	// Err is the last failure reported by the remote, cleared by the next success.
	Err error
}

type job struct {
	seq   uint64
	m     Mutation
	fetch bool
}

// Session keeps one cart's local view in step with the server. Mutations are
// applied locally at once and sent one at a time in issue order. A server
// response is accepted only if no newer mutation was issued since; a failed
// call is answered with a full fetch instead of a resend.
type Session struct {
	remote Remote
	cartID string
	log    logrus.FieldLogger

	mu       sync.Mutex
	issued   uint64
	inflight int
	items    []Item
	summary  *cart.CartSummary
	lastErr  error
	queue    []job
	closed   bool
	stable   chan struct{} // closed while nothing is in flight

	wake   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSession starts the dispatcher for cartID. It stops when ctx is done or Close is called.
func NewSession(ctx context.Context, remote Remote, cartID string, log logrus.FieldLogger) *Session {
	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		remote: remote,
		cartID: cartID,
		log:    log.WithField("cart_id", cartID),
		stable: make(chan struct{}),
		wake:   make(chan struct{}, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	close(s.stable)
	go s.dispatch(ctx)
	return s
}

// Issue applies m to the local view and queues it for the server. It returns
// the mutation's sequence number.
func (s *Session) Issue(m Mutation) (uint64, error) {
	if err := m.validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrClosed
	}
	s.issued++
	seq := s.issued
	s.applyLocal(m)
	s.enqueue(job{seq: seq, m: m})
	s.mu.Unlock()

	s.signal()
	return seq, nil
}

// Refresh queues a fetch of the authoritative summary.
func (s *Session) Refresh() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.enqueue(job{seq: s.issued, fetch: true})
	s.mu.Unlock()

	s.signal()
	return nil
}

// Wait blocks until every queued call has been answered.
func (s *Session) Wait(ctx context.Context) error {
	s.mu.Lock()
	ch := s.stable
	s.mu.Unlock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// View returns a copy of the current view.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return View{
		Items:   append([]Item(nil), s.items...),
		Summary: s.summary,
		Pending: s.inflight > 0,
		Seq:     s.issued,
		Err:     s.lastErr,
	}
}

// Close stops the dispatcher. Queued calls are dropped.
func (s *Session) Close() {
	s.cancel()
	<-s.done
}

func (s *Session) enqueue(j job) {
	if s.inflight == 0 {
		s.stable = make(chan struct{})
	}
	s.inflight++
	s.queue = append(s.queue, j)
}

func (s *Session) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Session) dispatch(ctx context.Context) {
	defer close(s.done)
	defer s.shutdown()
	for {
		j, ok := s.next(ctx)
		if !ok {
			return
		}
		if j.fetch {
			s.fetch(ctx, j.seq)
		} else {
			s.send(ctx, j)
		}
		s.finish()
	}
}

func (s *Session) next(ctx context.Context) (job, bool) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			j := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return j, true
		}
		s.mu.Unlock()

		select {
		case <-s.wake:
		case <-ctx.Done():
			return job{}, false
		}
	}
}

func (s *Session) send(ctx context.Context, j job) {
	summary, err := call(ctx, s.remote, s.cartID, j.m)
	if summary != nil {
		s.apply(j.seq, summary)
	}
	s.setErr(err)
	if err == nil || summary != nil {
		return
	}

	log := s.log.WithFields(logrus.Fields{"seq": j.seq, "op": j.m.Op.String(), "product_id": j.m.ProductID})
	if s.latest() != j.seq {
		log.WithError(err).Debug("mutation failed, newer mutation pending")
		return
	}
	log.WithError(err).Warn("mutation failed, refetching cart")
	s.fetch(ctx, j.seq)
}

func (s *Session) fetch(ctx context.Context, seq uint64) {
	summary, err := s.remote.FetchSummary(ctx, s.cartID)
	if err != nil {
		s.log.WithError(err).WithField("seq", seq).Warn("fetch cart summary")
		s.setErr(err)
		return
	}
	s.apply(seq, summary)
}

// apply accepts summary as truth if it answers the latest issued mutation.
func (s *Session) apply(seq uint64, summary *cart.CartSummary) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.issued {
		s.log.WithFields(logrus.Fields{"seq": seq, "latest": s.issued}).Debug("discarding stale response")
		return false
	}
	s.summary = summary
	s.items = itemsFrom(summary)
	return true
}

func (s *Session) setErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

func (s *Session) latest() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issued
}

func (s *Session) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight == 0 {
		return
	}
	s.inflight--
	if s.inflight == 0 {
		close(s.stable)
	}
}

func (s *Session) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.queue = nil
	if s.inflight > 0 {
		s.inflight = 0
		close(s.stable)
	}
}

func (s *Session) applyLocal(m Mutation) {
	i := -1
	for k, it := range s.items {
		if it.ProductID == m.ProductID {
			i = k
			break
		}
	}
	switch {
	case m.Op == OpAdd && i >= 0:
		s.items[i].Quantity += m.Quantity
	case m.Op == OpAdd:
		s.items = append(s.items, Item{ProductID: m.ProductID, Quantity: m.Quantity})
	case i < 0:
	case m.Op == OpRemove, m.Quantity <= 0:
		s.items = append(s.items[:i], s.items[i+1:]...)
	default:
		s.items[i].Quantity = m.Quantity
	}
}

func itemsFrom(summary *cart.CartSummary) []Item {
	var items []Item
	for _, g := range summary.Groups {
		for _, l := range g.Lines {
			items = append(items, Item{ProductID: l.ProductID, Quantity: l.Quantity})
		}
	}
	for _, u := range summary.Unavailable {
		items = append(items, Item{ProductID: u.ProductID, Quantity: u.Quantity})
	}
	return items
}
