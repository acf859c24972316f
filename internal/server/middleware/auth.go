// Package middleware holds the HTTP middleware wrapped around the status API.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"slices"
	"strings"

	"github.com/bytedance/sonic"
)

// Auth requires the configured API key on every path except public ones.
// The key may arrive as a Bearer token or in X-API-Key. An empty key turns
// the check off.
func Auth(apiKey string, public ...string) func(http.Handler) http.Handler {
	want := []byte(apiKey)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" || slices.Contains(public, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			switch got := presentedKey(r); {
			case got == "":
				writeError(w, http.StatusUnauthorized, "missing api key")
			case subtle.ConstantTimeCompare([]byte(got), want) != 1:
				writeError(w, http.StatusUnauthorized, "invalid api key")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func presentedKey(r *http.Request) string {
	if scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	body, _ := sonic.Marshal(map[string]string{"error": msg})
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
