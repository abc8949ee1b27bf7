package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/laas-platform/laas/pkg/errors"
	"github.com/laas-platform/laas/pkg/httputil"
	"github.com/laas-platform/laas/pkg/logger"
)

// TenantHeader carries the tenant a request is scoped to. The gateway in
// front of the service authenticates the caller and sets it.
const TenantHeader = "X-Tenant-ID"

type tenantCtxKey struct{}

// Tenant rejects requests without a valid tenant UUID and stores the parsed
// ID in the context. The ID is echoed back in the response header.
func Tenant(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(TenantHeader))
			if raw == "" {
				httputil.WriteError(w, r, apperrors.InvalidInput("tenant identification required"), l)
				return
			}
			id, err := uuid.Parse(raw)
			if err != nil {
				httputil.WriteError(w, r, apperrors.InvalidInput("invalid tenant id: "+raw), l)
				return
			}

			ctx := WithTenantID(r.Context(), id)
			w.Header().Set(TenantHeader, id.String())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithTenantID stores id in ctx for TenantIDFromContext and for logging.
func WithTenantID(ctx context.Context, id uuid.UUID) context.Context {
	ctx = context.WithValue(ctx, tenantCtxKey{}, id)
	return logger.WithTenantID(ctx, id.String())
}

// TenantIDFromContext returns the tenant set by the Tenant middleware.
func TenantIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(tenantCtxKey{}).(uuid.UUID)
	return id, ok
}
