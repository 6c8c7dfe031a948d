package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAPIKeyAuthValidate(t *testing.T) {
	key, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey: %v", err)
	}
	a, err := NewAPIKeyAuth(key)
	if err != nil {
		t.Fatalf("NewAPIKeyAuth: %v", err)
	}

	if err := a.Validate(key); err != nil {
		t.Errorf("valid key rejected: %v", err)
	}
	if err := a.Validate("wrong"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey, got %v", err)
	}
	if err := a.Validate(""); !errors.Is(err, ErrMissingKey) {
		t.Errorf("expected ErrMissingKey, got %v", err)
	}
	if _, err := NewAPIKeyAuth(""); err == nil {
		t.Error("empty key should be rejected")
	}
}

func TestAPIKeyAuthFromHash(t *testing.T) {
	hash, err := HashAPIKey("s3cret")
	if err != nil {
		t.Fatalf("HashAPIKey: %v", err)
	}
	a, err := NewAPIKeyAuthFromHash(hash)
	if err != nil {
		t.Fatalf("NewAPIKeyAuthFromHash: %v", err)
	}
	if err := a.Validate("s3cret"); err != nil {
		t.Errorf("valid key rejected: %v", err)
	}

	if _, err := NewAPIKeyAuthFromHash("not-a-hash"); err == nil {
		t.Error("garbage hash should be rejected")
	}
}

func TestMiddleware(t *testing.T) {
	a, err := NewAPIKeyAuth("s3cret")
	if err != nil {
		t.Fatalf("NewAPIKeyAuth: %v", err)
	}
	handler := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name     string
		method   string
		header   string
		expected int
	}{
		{"read without key", "GET", "", http.StatusOK},
		{"write without key", "POST", "", http.StatusUnauthorized},
		{"write with wrong key", "PUT", "Bearer nope", http.StatusUnauthorized},
		{"write with basic auth", "POST", "Basic s3cret", http.StatusUnauthorized},
		{"write with key", "POST", "Bearer s3cret", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/mode/recording", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			if w.Code != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, w.Code)
			}
		})
	}
}
