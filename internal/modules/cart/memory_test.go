package cart

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/georgemunganga/minprice-backend/internal/modules/catalog"
)

// memoryRepository is an in-memory Repository with the same version semantics as Postgres.
type memoryRepository struct {
	mu    sync.Mutex
	carts map[uuid.UUID]*Record
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{carts: map[uuid.UUID]*Record{}}
}

func copyRecord(r *Record) *Record {
	c := *r
	c.Snapshot = Snapshot{
		Lines:       append(c.Snapshot.Lines[:0:0], r.Snapshot.Lines...),
		Unavailable: append(c.Snapshot.Unavailable[:0:0], r.Snapshot.Unavailable...),
		Preference:  append(c.Snapshot.Preference[:0:0], r.Snapshot.Preference...),
	}
	return &c
}

func (m *memoryRepository) Create(ctx context.Context, r *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.IsActive {
		m.deactivate(r.OwnerID)
	}
	now := time.Now()
	r.CreatedAt, r.UpdatedAt = now, now
	m.carts[r.ID] = copyRecord(r)
	return nil
}

func (m *memoryRepository) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.carts[id]
	if !ok {
		return nil, ErrCartNotFound
	}
	return copyRecord(r), nil
}

func (m *memoryRepository) GetActive(ctx context.Context, ownerID uuid.UUID) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.carts {
		if r.OwnerID == ownerID && r.IsActive && !r.IsArchived {
			return copyRecord(r), nil
		}
	}
	return nil, ErrCartNotFound
}

func (m *memoryRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Record
	for _, r := range m.carts {
		if r.OwnerID == ownerID {
			out = append(out, copyRecord(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryRepository) Save(ctx context.Context, r *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.carts[r.ID]
	if !ok {
		return ErrCartNotFound
	}
	if stored.Version != r.Version {
		return errors.Wrapf(ErrConflict, "cart %s", r.ID)
	}
	r.Version++
	r.UpdatedAt = time.Now()
	m.carts[r.ID] = copyRecord(r)
	return nil
}

func (m *memoryRepository) update(id uuid.UUID, fn func(*Record)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.carts[id]
	if !ok {
		return ErrCartNotFound
	}
	fn(r)
	return nil
}

func (m *memoryRepository) Rename(ctx context.Context, id uuid.UUID, name string) error {
	return m.update(id, func(r *Record) { r.Name = name })
}

func (m *memoryRepository) Archive(ctx context.Context, id uuid.UUID) error {
	return m.update(id, func(r *Record) { r.IsArchived, r.IsActive = true, false })
}

func (m *memoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.carts[id]; !ok {
		return ErrCartNotFound
	}
	delete(m.carts, id)
	return nil
}

func (m *memoryRepository) SetActive(ctx context.Context, ownerID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.carts[id]
	if !ok || r.OwnerID != ownerID {
		return ErrCartNotFound
	}
	m.deactivate(ownerID)
	r.IsActive = true
	return nil
}

func (m *memoryRepository) deactivate(ownerID uuid.UUID) {
	for _, r := range m.carts {
		if r.OwnerID == ownerID {
			r.IsActive = false
		}
	}
}

// indexRepository serves catalog reads from a swappable MemoryIndex.
type indexRepository struct {
	mu  sync.Mutex
	idx *catalog.MemoryIndex
}

func (r *indexRepository) set(idx *catalog.MemoryIndex) {
	r.mu.Lock()
	r.idx = idx
	r.mu.Unlock()
}

func (r *indexRepository) GetProduct(ctx context.Context, id string) (*catalog.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.idx.GetProduct(id)
}

func (r *indexRepository) GetProducts(ctx context.Context, ids []string) ([]*catalog.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*catalog.Product
	for _, id := range ids {
		if p, err := r.idx.GetProduct(id); err == nil {
			out = append(out, p)
		}
	}
	return out, nil
}
