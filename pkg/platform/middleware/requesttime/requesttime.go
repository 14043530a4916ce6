// Package requesttime pins a single "now" per HTTP request so every step
// timestamp and ledger entry produced while serving it agrees.
package requesttime

import (
	"net/http"
	"time"

	"efrn/pkg/requestcontext"
)

// Middleware captures the current UTC time at the start of the request and
// stores it in the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
