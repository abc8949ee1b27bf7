package middleware

import (
	"log/slog"
	"net/http"

	"github.com/laas-platform/laas/pkg/logger"
)

// RequestLogger stores a logger carrying correlation_id, tenant_id and
// trace ids in the request context for logger.FromContext. Mount it after
// RequestLogging, Tracing and Tenant so those values are present.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
