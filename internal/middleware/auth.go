package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/goccy/go-json"
)

// APIKeyHeader carries the key; the api_key query parameter is accepted too
// because browsers cannot set headers on WebSocket upgrades.
const APIKeyHeader = "X-API-Key"

var publicPaths = map[string]bool{
	"/":           true,
	"/api/health": true,
	"/metrics":    true,
}

// APIKey rejects requests that do not present key. An empty key disables the check.
func APIKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPaths[r.URL.Path] || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			got := r.Header.Get(APIKeyHeader)
			if got == "" {
				got = r.URL.Query().Get("api_key")
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"detail": "Invalid or missing API key"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
