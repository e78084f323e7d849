package cart

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/georgemunganga/minprice-backend/internal/modules/catalog"
	"github.com/georgemunganga/minprice-backend/internal/modules/optimizer"
	"github.com/georgemunganga/minprice-backend/internal/platform/postgres"
	"github.com/georgemunganga/minprice-backend/migrations"
)

// newPostgresRepository runs against MINPRICE_TEST_DATABASE_URL and skips without it.
func newPostgresRepository(t *testing.T) Repository {
	t.Helper()
	url := os.Getenv("MINPRICE_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("MINPRICE_TEST_DATABASE_URL not set")
	}
	db, err := postgres.Open(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = postgres.Migrate(db, migrations.FS, postgres.Up)
	require.NoError(t, err)
	return NewPostgresRepository(db)
}

func newRecord(owner uuid.UUID, name string) *Record {
	return &Record{ID: uuid.New(), OwnerID: owner, Name: name, IsActive: true}
}

func TestPostgresCreateKeepsOneActiveCart(t *testing.T) {
	repo := newPostgresRepository(t)
	ctx := context.Background()
	owner := uuid.New()

	first := newRecord(owner, "First")
	require.NoError(t, repo.Create(ctx, first))
	second := newRecord(owner, "Second")
	require.NoError(t, repo.Create(ctx, second))

	active, err := repo.GetActive(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)

	carts, err := repo.ListByOwner(ctx, owner)
	require.NoError(t, err)
	require.Len(t, carts, 2)
	n := 0
	for _, c := range carts {
		if c.IsActive {
			n++
		}
	}
	assert.Equal(t, 1, n)

	require.NoError(t, repo.SetActive(ctx, owner, first.ID))
	active, err = repo.GetActive(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, first.ID, active.ID)

	require.NoError(t, repo.Archive(ctx, second.ID))
	assert.True(t, errors.Is(repo.SetActive(ctx, owner, second.ID), ErrCartNotFound))
}

func TestPostgresSaveRoundTripAndVersionGuard(t *testing.T) {
	repo := newPostgresRepository(t)
	ctx := context.Background()

	rec := newRecord(uuid.New(), "Weekly")
	require.NoError(t, repo.Create(ctx, rec))

	stale, err := repo.Get(ctx, rec.ID)
	require.NoError(t, err)

	rec.Snapshot = Snapshot{
		Lines:       []optimizer.Line{{ProductID: "X", StoreID: 1, Quantity: 2}, {ProductID: "Y", StoreID: 1, Quantity: 1}},
		Unavailable: []Unavailable{{ProductID: "N", Title: "Nothing", Quantity: 1, Reason: ReasonNoAllowedOffer}},
		Preference:  []catalog.StoreID{3, 1},
	}
	require.NoError(t, repo.Save(ctx, rec))
	assert.Equal(t, 1, rec.Version)

	got, err := repo.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version)
	assert.Equal(t, rec.Snapshot.Lines, got.Snapshot.Lines, "line order is kept")
	assert.Equal(t, rec.Snapshot.Unavailable, got.Snapshot.Unavailable)
	assert.ElementsMatch(t, rec.Snapshot.Preference, got.Snapshot.Preference)

	stale.Snapshot.Lines = []optimizer.Line{{ProductID: "Z", StoreID: 2, Quantity: 1}}
	err = repo.Save(ctx, stale)
	assert.True(t, errors.Is(err, ErrConflict))

	got, err = repo.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Snapshot.Lines, got.Snapshot.Lines, "a stale save changes nothing")
}

func TestPostgresMissingCart(t *testing.T) {
	repo := newPostgresRepository(t)
	ctx := context.Background()
	id := uuid.New()

	_, err := repo.Get(ctx, id)
	assert.True(t, errors.Is(err, ErrCartNotFound))
	_, err = repo.GetActive(ctx, uuid.New())
	assert.True(t, errors.Is(err, ErrCartNotFound))
	assert.True(t, errors.Is(repo.Rename(ctx, id, "x"), ErrCartNotFound))
	assert.True(t, errors.Is(repo.Delete(ctx, id), ErrCartNotFound))

	rec := newRecord(uuid.New(), "Gone")
	require.NoError(t, repo.Create(ctx, rec))
	require.NoError(t, repo.Delete(ctx, rec.ID))
	_, err = repo.Get(ctx, rec.ID)
	assert.True(t, errors.Is(err, ErrCartNotFound))
}
