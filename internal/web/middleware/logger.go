package middleware

import (
	"net/http"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kozaktomas/facecheck/internal/logger"
)

// Logger returns middleware that stores a request-scoped zap logger in the
// request context, tagged with the chi request ID when one is set.
func Logger(l *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqLogger := l
			if id := chiMiddleware.GetReqID(r.Context()); id != "" {
				reqLogger = l.With(zap.String("request_id", id))
			}
			next.ServeHTTP(w, r.WithContext(logger.ContextWithLogger(r.Context(), reqLogger)))
		})
	}
}
