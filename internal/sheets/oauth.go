package sheets

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"
)

// LoadToken loads a token from file.
func LoadToken(tokenFile string) (*oauth2.Token, error) {
	f, err := os.Open(tokenFile) // #nosec G304
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	token := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(token); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return token, nil
}

// SaveToken writes a token to path with owner-only permissions.
func SaveToken(path string, token *oauth2.Token) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to create token file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := json.NewEncoder(f).Encode(token); err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	return nil
}

// PersistingTokenSource saves each newly issued token so later runs can skip
// the refresh round-trip.
type PersistingTokenSource struct {
	base oauth2.TokenSource
	last *oauth2.Token
	path string
	mu   sync.Mutex
}

// NewPersistingTokenSource wraps base. last is the token already on disk, if any.
func NewPersistingTokenSource(base oauth2.TokenSource, path string, last *oauth2.Token) *PersistingTokenSource {
	return &PersistingTokenSource{base: base, path: path, last: last}
}

// Token implements oauth2.TokenSource.
func (s *PersistingTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.last != nil && s.last.AccessToken == token.AccessToken {
		return token, nil
	}
	if err := SaveToken(s.path, token); err != nil {
		slog.Warn("Failed to save refreshed token", "error", err, "file", s.path)
	}
	s.last = token
	return token, nil
}
