package middleware

import (
	"context"
	"net/http"
	"time"
)

// Timeout bounds each request's context. Listing queries observe the deadline
// at the store boundary and abort with a timeout error; webhook handling runs
// to completion regardless, so the webhook router does not install this.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
