package guest

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// TokenStore persists the device's guest token between runs.
type TokenStore interface {
	// Load returns "" when nothing is stored.
	Load() (string, error)
	Save(token string) error
}

// IssueFunc provisions a new guest token.
type IssueFunc func(ctx context.Context) (string, error)

// TokenSource hands out the device's guest token, provisioning it at most once.
type TokenSource struct {
	mu    sync.Mutex
	token string
	store TokenStore
	issue IssueFunc
}

func NewTokenSource(store TokenStore, issue IssueFunc) *TokenSource {
	return &TokenSource{store: store, issue: issue}
}

func (s *TokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" {
		return s.token, nil
	}
	t, err := s.store.Load()
	if err != nil {
		return "", errors.Wrap(err, "load guest token")
	}
	if t == "" {
		if t, err = s.issue(ctx); err != nil {
			return "", errors.Wrap(err, "issue guest token")
		}
		if err := s.store.Save(t); err != nil {
			return "", errors.Wrap(err, "save guest token")
		}
	}
	s.token = t
	return t, nil
}

// Reset forgets the cached token, e.g. after the server rejected it.
func (s *TokenSource) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return s.store.Save("")
}

// FileStore keeps the token in a local file.
type FileStore struct{ Path string }

func (f FileStore) Load() (string, error) {
	b, err := os.ReadFile(f.Path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func (f FileStore) Save(token string) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(f.Path, []byte(token), 0o600)
}

// HTTPIssuer provisions tokens from the API's guest endpoint.
func HTTPIssuer(baseURL string, client *http.Client) IssueFunc {
	return func(ctx context.Context) (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(baseURL, "/")+"/api/v1/guest", nil)
		if err != nil {
			return "", err
		}
		resp, err := client.Do(req)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			return "", errors.Errorf("guest endpoint returned %d", resp.StatusCode)
		}
		var t Token
		if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
			return "", errors.Wrap(err, "decode guest token")
		}
		return t.Token, nil
	}
}
