// Package middleware provides HTTP middleware for the link engine API.
package middleware

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
)

// Context keys for request-scoped values.
type contextKey string

const (
	// ClientIDKey is the context key for the authenticated client.
	ClientIDKey contextKey = "client_id"
)

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	Enabled bool
	APIKeys []string
	// AllowPublicPaths are served without a key.
	AllowPublicPaths []string
}

// Auth returns an API key authentication middleware. Keys are accepted
// from "Authorization: Bearer <key>" or "X-API-Key".
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	digests := make([][32]byte, 0, len(cfg.APIKeys))
	for _, k := range cfg.APIKeys {
		digests = append(digests, sha256.Sum256([]byte(k)))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip auth if disabled
			if !cfg.Enabled {
				ctx := context.WithValue(r.Context(), ClientIDKey, "dev")
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			for _, p := range cfg.AllowPublicPaths {
				if r.URL.Path == p {
					next.ServeHTTP(w, r)
					return
				}
			}

			key := extractKey(r)
			if key == "" {
				http.Error(w, `{"error": "missing api key"}`, http.StatusUnauthorized)
				return
			}

			id, ok := matchKey(digests, key)
			if !ok {
				http.Error(w, `{"error": "invalid api key"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ClientIDKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractKey(r *http.Request) string {
	if k := r.Header.Get("X-API-Key"); k != "" {
		return k
	}
	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// matchKey compares digests in constant time and returns a short client id
// derived from the key, never the key itself.
func matchKey(digests [][32]byte, key string) (string, bool) {
	sum := sha256.Sum256([]byte(key))
	found := false
	for _, d := range digests {
		if subtle.ConstantTimeCompare(sum[:], d[:]) == 1 {
			found = true
		}
	}
	if !found {
		return "", false
	}
	return "key-" + hex.EncodeToString(sum[:4]), true
}

// ClientFromContext extracts the client id from context.
func ClientFromContext(ctx context.Context) string {
	if v := ctx.Value(ClientIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
