package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"

	apperrors "github.com/utafrali/productsearch/pkg/errors"
	"github.com/utafrali/productsearch/pkg/httputil"
	"github.com/utafrali/productsearch/pkg/logger"
)

const panicMessage = "an internal error occurred"

// Recovery turns a handler panic into a 500 INTERNAL_ERROR envelope.
// http.ErrAbortHandler is re-raised so net/http can drop the connection.
func Recovery(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				switch rec {
				case nil:
					return
				case http.ErrAbortHandler:
					panic(rec)
				}
				logPanic(r.Context(), l, r, rec)
				httputil.WriteJSON(w, http.StatusInternalServerError, httputil.Response{
					Error: &httputil.ErrorResponse{
						Code:      apperrors.CodeInternal,
						Message:   panicMessage,
						RequestID: logger.CorrelationIDFromContext(r.Context()),
					},
				})
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func logPanic(ctx context.Context, l *slog.Logger, r *http.Request, rec any) {
	l.LogAttrs(ctx, slog.LevelError, "handler panicked",
		slog.Any("panic", rec),
		slog.Group("http",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		),
		slog.String("stack", string(debug.Stack())),
	)
}
