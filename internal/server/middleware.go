package server

import (
	"net/http"
	"strings"
)

// requireAPIKey rejects requests whose Authorization bearer token is not in
// the configured key list.
func requireAPIKey(apiKeys []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(apiKeys))
	for _, key := range apiKeys {
		allowed[key] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
			if token == "" || !allowed[token] {
				http.Error(w, `{"error":"Invalid or missing API key"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
