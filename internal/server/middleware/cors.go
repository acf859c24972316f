package middleware

import (
	"net/http"
	"strings"

	"github.com/samber/lo"
)

// The status API is read-only, so preflights only ever need GET.
const (
	corsMethods = "GET, OPTIONS"
	corsHeaders = "Content-Type, Authorization, X-API-Key"
	corsMaxAge  = "600"
)

// CORS lets dashboards on the listed origins read the status API. An empty
// list or a "*" entry admits any origin. Preflight requests are answered
// here and never reach auth or the rate limiter.
func CORS(origins []string) func(http.Handler) http.Handler {
	anyOrigin := len(origins) == 0 || lo.Contains(origins, "*")
	admit := func(origin string) bool {
		return anyOrigin || lo.ContainsBy(origins, func(o string) bool { return strings.EqualFold(o, origin) })
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); origin != "" && admit(origin) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
				h.Set("Access-Control-Allow-Methods", corsMethods)
				h.Set("Access-Control-Allow-Headers", corsHeaders)
				h.Set("Access-Control-Max-Age", corsMaxAge)
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
