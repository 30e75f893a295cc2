package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"dataspace/pkg/requestcontext"
)

// RequestID assigns each request an ID (or adopts the caller's X-Request-ID)
// and pins the request time, so every store write within the request shares
// one timestamp.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		ctx = requestcontext.WithTime(ctx, time.Now().UTC())

		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
