package guest

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123"

func TestIssueAndVerify(t *testing.T) {
	svc := NewService(testKey, time.Hour)

	tok, err := svc.Issue()
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, tok.GuestID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tok.ExpiresAt, 5*time.Second)

	id, err := svc.Verify(tok.Token)
	require.NoError(t, err)
	assert.Equal(t, tok.GuestID, id)

	other, err := svc.Issue()
	require.NoError(t, err)
	assert.NotEqual(t, tok.GuestID, other.GuestID)
}

func TestVerifyRejects(t *testing.T) {
	svc := NewService(testKey, time.Hour)
	tok, err := svc.Issue()
	require.NoError(t, err)

	expired := &service{key: []byte(testKey), ttl: time.Hour, now: func() time.Time { return time.Now().Add(-2 * time.Hour) }}
	old, err := expired.Issue()
	require.NoError(t, err)

	tests := map[string]string{
		"garbage":   "not-a-token",
		"other key": mustIssue(t, NewService("another-signing-key-000", time.Hour)),
		"expired":   old.Token,
		"tampered":  tok.Token + "x",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Verify(token)
			assert.True(t, errors.Is(err, ErrInvalidToken), "%v", err)
		})
	}
}

func mustIssue(t *testing.T, svc Service) string {
	t.Helper()
	tok, err := svc.Issue()
	require.NoError(t, err)
	return tok.Token
}

func TestMiddleware(t *testing.T) {
	svc := NewService(testKey, time.Hour)
	tok, err := svc.Issue()
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(Middleware(svc))
	r.Get("/whoami", func(w http.ResponseWriter, r *http.Request) {
		id, ok := FromContext(r.Context())
		require.True(t, ok)
		w.Write([]byte(id.String()))
	})

	t.Run("header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set(Header, tok.Token)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, tok.GuestID.String(), rec.Body.String())
	})

	t.Run("bearer", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+tok.Token)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/whoami", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set(Header, "nope")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
