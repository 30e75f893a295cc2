package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"dataspace/pkg/requestcontext"
)

// ClientMetadata captures the client IP and a parsed User-Agent so audit
// events record where a lifecycle change came from.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		rawUA := r.Header.Get("User-Agent")

		ctx := requestcontext.WithClientMetadata(r.Context(), ip, rawUA)
		if rawUA != "" {
			ua := useragent.New(rawUA)
			browser, _ := ua.Browser()
			ctx = requestcontext.WithDeviceInfo(ctx, requestcontext.Device{
				Browser: browser,
				OS:      ua.OS(),
				Mobile:  ua.Mobile(),
				Bot:     ua.Bot(),
			})
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		// First hop is the original client.
		if idx := strings.IndexByte(fwd, ','); idx >= 0 {
			return strings.TrimSpace(fwd[:idx])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
