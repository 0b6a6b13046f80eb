// Package auth holds the client side of a session: the bearer token the
// backend issued, persisted between runs. Credential verification itself
// is the backend's business.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenStore manages the bearer token backed by a single file on disk.
type TokenStore struct {
	path string

	mu    sync.RWMutex
	token string
}

// NewTokenStore loads any previously saved token from path. A missing
// file simply means no session yet.
func NewTokenStore(path string) (*TokenStore, error) {
	s := &TokenStore{path: filepath.Clean(path)}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}
	s.token = strings.TrimSpace(string(data))
	return s, nil
}

// Token returns the held bearer token, empty when logged out.
func (s *TokenStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Set stores and persists a new token.
func (s *TokenStore) Set(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	if err := os.WriteFile(s.path, []byte(token+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to persist token: %w", err)
	}
	s.token = token
	return nil
}

// Clear forgets the session and removes the token file.
func (s *TokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = ""
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}

// Expired inspects the token's exp claim without verifying the signature
// (verification is the server's job; the client only wants to know whether
// presenting this token is pointless). Tokens without an exp claim, or
// unparsable ones, are not treated as expired - the server gets the final
// word.
func (s *TokenStore) Expired() bool {
	tok := s.Token()
	if tok == "" {
		return false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(time.Now())
}
