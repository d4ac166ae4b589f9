package middleware

import (
	"log/slog"
	"net/http"
)

// NewRequestLogger logs each incoming handshake request. Credentials travel
// in a header, so the URI is safe to log only when the client did not fall
// back to the query-parameter form; the raw query is therefore omitted.
func NewRequestLogger(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqMeta, ok := ReqMetadataFrom(r.Context())
			var ip string
			if ok {
				ip = reqMeta.IP
			}

			logger.Info("Incoming handshake request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("ip", ip),
			)
			next.ServeHTTP(w, r)
		})
	}
}
