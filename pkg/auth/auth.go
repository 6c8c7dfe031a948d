package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrMissingKey = errors.New("missing API key")
	ErrInvalidKey = errors.New("invalid API key")
)

// APIKeyAuth guards state-changing API routes with one shared key. Only
// the bcrypt hash of the key is kept.
type APIKeyAuth struct {
	hash []byte
}

// NewAPIKeyAuth hashes key for later comparison
func NewAPIKeyAuth(key string) (*APIKeyAuth, error) {
	if key == "" {
		return nil, ErrMissingKey
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash API key: %w", err)
	}
	return &APIKeyAuth{hash: hash}, nil
}

// NewAPIKeyAuthFromHash uses a bcrypt hash produced by HashAPIKey
func NewAPIKeyAuthFromHash(hash string) (*APIKeyAuth, error) {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("invalid API key hash: %w", err)
	}
	return &APIKeyAuth{hash: []byte(hash)}, nil
}

// HashAPIKey returns the bcrypt hash to store in configuration
func HashAPIKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash API key: %w", err)
	}
	return string(hash), nil
}

// GenerateAPIKey generates a new random API key
func GenerateAPIKey() (string, error) {
	keyBytes := make([]byte, 32)
	if _, err := rand.Read(keyBytes); err != nil {
		return "", fmt.Errorf("failed to generate API key: %w", err)
	}
	return base64.URLEncoding.EncodeToString(keyBytes), nil
}

// Validate checks key against the stored hash
func (a *APIKeyAuth) Validate(key string) error {
	if key == "" {
		return ErrMissingKey
	}
	if err := bcrypt.CompareHashAndPassword(a.hash, []byte(key)); err != nil {
		return ErrInvalidKey
	}
	return nil
}

// BearerToken extracts the token from an "Authorization: Bearer" header
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

// Middleware requires the key on every request except GET, HEAD and OPTIONS
func (a *APIKeyAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		if err := a.Validate(BearerToken(r)); err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="lumirender"`)
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
