package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/recrutaedu/checkout-sessions/pkg/logger"
)

// Recovery turns a handler panic into a 500 response instead of tearing down
// the server. The panic is logged with its stack through the request-scoped
// logger when RequestLogger has installed one, so the entry carries the
// request's correlation id.
func Recovery(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					reqLogger := logger.FromContext(r.Context())
					if reqLogger == slog.Default() {
						reqLogger = l
					}

					reqLogger.ErrorContext(r.Context(), "panic recovered",
						slog.Any("panic", rec),
						slog.String("stack", string(debug.Stack())),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
					)

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					if err := json.NewEncoder(w).Encode(map[string]string{
						"code":    "INTERNAL_ERROR",
						"message": "an internal error occurred",
					}); err != nil {
						reqLogger.Error("failed to encode response", slog.String("error", err.Error()))
					}
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
