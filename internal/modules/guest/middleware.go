package guest

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/georgemunganga/minprice-backend/internal/platform/httpx"
)

// Header carries the guest token on every request.
const Header = "X-Guest-Token"

type ctxKey struct{}

func WithGuest(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the guest id set by Middleware.
func FromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(ctxKey{}).(uuid.UUID)
	return id, ok
}

// Middleware rejects requests without a valid guest token.
func Middleware(svc Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFrom(r)
			if token == "" {
				httpx.Error(w, http.StatusUnauthorized, ErrInvalidToken)
				return
			}
			id, err := svc.Verify(token)
			if err != nil {
				httpx.Error(w, http.StatusUnauthorized, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithGuest(r.Context(), id)))
		})
	}
}

func tokenFrom(r *http.Request) string {
	if t := r.Header.Get(Header); t != "" {
		return t
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
