package middleware

import (
	"log/slog"
	"net/http"

	"github.com/ricardomussett/ms-server-gps-socket/pkg/token"
)

// NewAPIKeyMiddleware gates the websocket handshake on the encrypted api-key
// credential. The token is read from the named header, falling back to a
// query parameter of the same name for browser clients that cannot set
// websocket headers. Rejection happens before the upgrade: the viewer sees
// an immediate close and no session state is created.
func NewAPIKeyMiddleware(logger *slog.Logger, validator *token.Validator, headerName string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqMeta, ok := ReqMetadataFrom(r.Context())
			if !ok {
				// Previous middlewares did not run; wiring bug.
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			credential := r.Header.Get(headerName)
			if credential == "" {
				credential = r.URL.Query().Get(headerName)
			}
			if credential == "" {
				logger.Warn("Connection attempt without credential", "ip", reqMeta.IP)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if !validator.Validate(credential) {
				logger.Warn("Connection attempt with invalid credential", "ip", reqMeta.IP)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
