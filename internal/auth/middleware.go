package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

const (
	// APIKeyHeader carries the shared service API key.
	APIKeyHeader = "X-API-Key"

	// apiKeyUserHeader names the user a service-key caller acts for.
	apiKeyUserHeader = "X-User-ID"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const userContextKey contextKey = "user"

// Middleware authenticates requests with either the shared service API key
// (plus an explicit user header) or a bearer JWT whose claims carry the
// user ID. The user ID scopes retrieval to that user's documents.
type Middleware struct {
	jwtManager *JWTManager
	apiKey     string
}

// NewMiddleware creates an authentication middleware. An empty apiKey
// disables service-key access; bearer tokens always work.
func NewMiddleware(jwtManager *JWTManager, apiKey string) *Middleware {
	return &Middleware{jwtManager: jwtManager, apiKey: apiKey}
}

// Handler wraps next with authentication.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := m.authenticate(r)
		if !ok {
			unauthorized(w)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) authenticate(r *http.Request) (string, bool) {
	if key := strings.TrimSpace(r.Header.Get(APIKeyHeader)); key != "" {
		if m.apiKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(m.apiKey)) != 1 {
			return "", false
		}
		userID := strings.TrimSpace(r.Header.Get(apiKeyUserHeader))
		if userID == "" {
			return "", false
		}
		return userID, true
	}

	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}

	claims, err := m.jwtManager.ValidateToken(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		return "", false
	}
	return claims.UserID, true
}

// UserFromContext extracts the authenticated user ID from the context.
func UserFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userContextKey).(string)
	return userID, ok
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{
		"error": "missing or invalid credentials",
		"code":  "unauthenticated",
	})
}
