package guest

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct{ token string }

func (m *memoryStore) Load() (string, error) { return m.token, nil }
func (m *memoryStore) Save(t string) error   { m.token = t; return nil }

func TestTokenSourceProvisionsOnce(t *testing.T) {
	var (
		mu    sync.Mutex
		calls int
	)
	issue := func(ctx context.Context) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return "tok", nil
	}
	store := &memoryStore{}
	src := NewTokenSource(store, issue)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := src.Token(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "tok", tok)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, calls)
	assert.Equal(t, "tok", store.token)

	// A fresh source on the same store reuses the persisted token.
	again := NewTokenSource(store, issue)
	tok, err := again.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok", tok)
	assert.Equal(t, 1, calls)
}

func TestTokenSourceIssueFailure(t *testing.T) {
	boom := errors.New("offline")
	src := NewTokenSource(&memoryStore{}, func(ctx context.Context) (string, error) { return "", boom })
	_, err := src.Token(context.Background())
	assert.True(t, errors.Is(err, boom))
}

func TestFileStore(t *testing.T) {
	fs := FileStore{Path: filepath.Join(t.TempDir(), "nested", "guest")}

	tok, err := fs.Load()
	require.NoError(t, err)
	assert.Empty(t, tok)

	require.NoError(t, fs.Save("abc"))
	tok, err = fs.Load()
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)
}

func TestHTTPIssuer(t *testing.T) {
	svc := NewService(testKey, time.Hour)
	r := chi.NewRouter()
	NewHandler(svc).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	defer srv.Close()

	src := NewTokenSource(&memoryStore{}, HTTPIssuer(srv.URL, srv.Client()))
	tok, err := src.Token(context.Background())
	require.NoError(t, err)

	_, err = svc.Verify(tok)
	assert.NoError(t, err)

	require.NoError(t, src.Reset())
	next, err := src.Token(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, tok, next)
}
