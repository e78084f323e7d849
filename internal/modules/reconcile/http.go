package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/georgemunganga/minprice-backend/internal/modules/cart"
	"github.com/georgemunganga/minprice-backend/internal/modules/guest"
)

var (
	ErrNotFound  = errors.New("cart or product not found")
	ErrTransport = errors.New("cart service unreachable")
	ErrRejected  = errors.New("cart service rejected the request")
)

var _ Remote = (*HTTPRemote)(nil)

// HTTPRemote talks to the cart API and attaches the device's guest token.
type HTTPRemote struct {
	baseURL string
	client  *http.Client
	tokens  *guest.TokenSource
}

func NewHTTPRemote(baseURL string, client *http.Client, tokens *guest.TokenSource) *HTTPRemote {
	return &HTTPRemote{baseURL: strings.TrimRight(baseURL, "/"), client: client, tokens: tokens}
}

func (r *HTTPRemote) AddItem(ctx context.Context, cartID, productID string, quantity int) (*cart.CartSummary, error) {
	return r.summary(ctx, http.MethodPost, cartPath(cartID, "items"),
		cart.AddItemRequest{ProductID: productID, Quantity: quantity})
}

func (r *HTTPRemote) RemoveItem(ctx context.Context, cartID, productID string) (*cart.CartSummary, error) {
	return r.summary(ctx, http.MethodDelete, cartPath(cartID, "items", productID), nil)
}

func (r *HTTPRemote) UpdateQuantity(ctx context.Context, cartID, productID string, quantity int) (*cart.CartSummary, error) {
	return r.summary(ctx, http.MethodPatch, cartPath(cartID, "items", productID),
		cart.UpdateQuantityRequest{Quantity: quantity})
}

func (r *HTTPRemote) FetchSummary(ctx context.Context, cartID string) (*cart.CartSummary, error) {
	return r.summary(ctx, http.MethodGet, cartPath(cartID), nil)
}

// ActiveCart returns the guest's active cart, which the server creates on first use.
func (r *HTTPRemote) ActiveCart(ctx context.Context) (*cart.CartSummary, error) {
	return r.summary(ctx, http.MethodGet, "/api/v1/carts/active", nil)
}

func (r *HTTPRemote) CreateCart(ctx context.Context, name string) (*cart.Record, error) {
	var rec cart.Record
	if err := r.do(ctx, http.MethodPost, "/api/v1/carts/", cart.CreateCartRequest{Name: name}, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *HTTPRemote) ListCarts(ctx context.Context) ([]*cart.Record, error) {
	var carts []*cart.Record
	if err := r.do(ctx, http.MethodGet, "/api/v1/carts/", nil, &carts); err != nil {
		return nil, err
	}
	return carts, nil
}

func (r *HTTPRemote) Rename(ctx context.Context, cartID, name string) (*cart.Record, error) {
	var rec cart.Record
	if err := r.do(ctx, http.MethodPatch, cartPath(cartID), cart.RenameRequest{Name: name}, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *HTTPRemote) Archive(ctx context.Context, cartID string) error {
	return r.do(ctx, http.MethodPost, cartPath(cartID, "archive"), nil, nil)
}

func (r *HTTPRemote) Delete(ctx context.Context, cartID string) error {
	return r.do(ctx, http.MethodDelete, cartPath(cartID), nil, nil)
}

func (r *HTTPRemote) SetActive(ctx context.Context, cartID string) error {
	return r.do(ctx, http.MethodPost, cartPath(cartID, "active"), nil, nil)
}

// summary performs a call answered with a cart summary. A 422 that carries a
// summary returns both the summary and the error.
func (r *HTTPRemote) summary(ctx context.Context, method, path string, body interface{}) (*cart.CartSummary, error) {
	var s cart.CartSummary
	err := r.do(ctx, method, path, body, &s)
	var se *statusError
	if errors.As(err, &se) && se.summary != nil {
		return se.summary, err
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

type statusError struct {
	code    int
	message string
	summary *cart.CartSummary
	kind    error
}

func (e *statusError) Error() string { return e.kind.Error() + ": " + e.message }
func (e *statusError) Unwrap() error { return e.kind }

// errorBody is the API's error envelope; summary is set for unavailable products.
type errorBody struct {
	Error   string            `json:"error"`
	Summary *cart.CartSummary `json:"summary"`
}

func (r *HTTPRemote) do(ctx context.Context, method, path string, body, out interface{}) error {
	var payload io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		payload = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, payload)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	token, err := r.tokens.Token(ctx)
	if err != nil {
		return errors.Wrapf(ErrTransport, "guest token: %v", err)
	}
	req.Header.Set(guest.Header, token)

	resp, err := r.client.Do(req)
	if err != nil {
		return errors.Wrapf(ErrTransport, "%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}
		return errors.Wrap(json.NewDecoder(resp.Body).Decode(out), "decode response")
	}

	var eb errorBody
	_ = json.NewDecoder(resp.Body).Decode(&eb)
	se := &statusError{code: resp.StatusCode, message: eb.Error, summary: eb.Summary}
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		// The next request provisions a fresh identity.
		if err := r.tokens.Reset(); err != nil {
			return errors.Wrap(err, "reset guest token")
		}
		se.kind = guest.ErrInvalidToken
	case resp.StatusCode == http.StatusNotFound:
		se.kind = ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		se.kind = cart.ErrConflict
	case resp.StatusCode == http.StatusUnprocessableEntity && eb.Summary != nil:
		se.kind = cart.ErrProductUnavailable
	case resp.StatusCode >= 500:
		se.kind = ErrTransport
	default:
		se.kind = ErrRejected
	}
	return se
}

func cartPath(cartID string, parts ...string) string {
	p := "/api/v1/carts/" + url.PathEscape(cartID)
	for _, part := range parts {
		p += "/" + url.PathEscape(part)
	}
	return p
}
