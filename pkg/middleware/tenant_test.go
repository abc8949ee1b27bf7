package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laas-platform/laas/pkg/httputil"
)

func tenantHandler(t *testing.T, got *uuid.UUID) http.Handler {
	t.Helper()
	l := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	return Tenant(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := TenantIDFromContext(r.Context())
		require.True(t, ok)
		*got = id
		w.WriteHeader(http.StatusOK)
	}))
}

func TestTenant_ParsesHeader(t *testing.T) {
	want := uuid.New()
	var got uuid.UUID

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search", nil)
	req.Header.Set(TenantHeader, " "+want.String()+" ")
	rec := httptest.NewRecorder()
	tenantHandler(t, &got).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, want, got)
	assert.Equal(t, want.String(), rec.Header().Get(TenantHeader))
}

func TestTenant_Rejects(t *testing.T) {
	for name, header := range map[string]string{"missing": "", "malformed": "acme-corp"} {
		t.Run(name, func(t *testing.T) {
			var got uuid.UUID
			req := httptest.NewRequest(http.MethodGet, "/api/v1/search", nil)
			if header != "" {
				req.Header.Set(TenantHeader, header)
			}
			rec := httptest.NewRecorder()
			tenantHandler(t, &got).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var resp httputil.Response
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, "INVALID_INPUT", resp.Error.Code)
			assert.Equal(t, uuid.Nil, got)
		})
	}
}

func TestTenantIDFromContext_Missing(t *testing.T) {
	_, ok := TenantIDFromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	assert.False(t, ok)
}
