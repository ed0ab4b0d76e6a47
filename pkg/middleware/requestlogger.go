package middleware

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/productsearch/pkg/logger"
)

// ClientIDHeader optionally identifies the calling application.
const ClientIDHeader = "X-Client-ID"

// RequestLogger stores a request-scoped logger in the context for handlers
// to fetch with logger.FromContext. The logger carries the method and route
// path. Correlation, client and trace ids are added per record by the
// logger's context handler, so this runs after RequestLogging and Tracing.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if clientID := r.Header.Get(ClientIDHeader); clientID != "" {
				ctx = logger.WithClientID(ctx, clientID)
			}

			scoped := base.With(
				slog.String("http.method", r.Method),
				slog.String("http.path", r.URL.Path),
			)
			next.ServeHTTP(w, r.WithContext(logger.NewContext(ctx, scoped)))
		})
	}
}
