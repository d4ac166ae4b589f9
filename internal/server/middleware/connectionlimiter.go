package middleware

import (
	"log/slog"
	"net/http"

	"github.com/ricardomussett/ms-server-gps-socket/pkg/config"
)

// AddrConnectionCounter reports the live connections from one remote address.
type AddrConnectionCounter func(remoteAddr string) int

// NewConnectionLimiter caps the number of simultaneous connections per
// remote address. A zero or negative limit disables the cap.
func NewConnectionLimiter(
	logger *slog.Logger,
	counter AddrConnectionCounter,
	cfg config.ConnectionLimitConfig,
) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.MaxPerIP <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			reqMeta, ok := ReqMetadataFrom(r.Context())
			if !ok {
				logger.Error("Connection limiter could not find request metadata in context. Check middleware order.")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			if count := counter(reqMeta.IP); count >= cfg.MaxPerIP {
				logger.Warn("Connection limit reached for address",
					slog.String("ip", reqMeta.IP),
					slog.Int("count", count),
				)
				http.Error(w, "Too Many Active Connections", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
