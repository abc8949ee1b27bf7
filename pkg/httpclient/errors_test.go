package httpclient

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/laas-platform/laas/pkg/errors"
)

func response(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body))}
}

func TestParseResponseError(t *testing.T) {
	structured := func(code, msg string) string {
		return `{"error":{"code":"` + code + `","message":"` + msg + `"}}`
	}

	tests := []struct {
		name     string
		status   int
		body     string
		sentinel error
		contains string
	}{
		{"not found", http.StatusNotFound, structured("NOT_FOUND", "tenant x"), apperrors.ErrNotFound, "tenant x"},
		{"bad request", http.StatusBadRequest, structured("INVALID_INPUT", "page"), apperrors.ErrInvalidInput, "catalog: page"},
		{"forbidden", http.StatusForbidden, structured("FORBIDDEN", "nope"), apperrors.ErrUnauthorized, "nope"},
		{"unavailable", http.StatusServiceUnavailable, structured("DOWN", "db"), apperrors.ErrServiceUnavail, "db"},
		{"server error", http.StatusInternalServerError, structured("INTERNAL", "boom"), nil, "500/INTERNAL"},
		{"unstructured", http.StatusBadGateway, "<html>bad gateway</html>", nil, "bad gateway"},
		{"null error", http.StatusBadRequest, `{"error":null}`, nil, "status 400"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ParseResponseError(response(tt.status, tt.body), "catalog")
			assert.ErrorContains(t, err, tt.contains)
			if tt.sentinel != nil {
				assert.True(t, errors.Is(err, tt.sentinel))
			}
		})
	}
}

func TestParseResponseError_OtherStatusKeepsCode(t *testing.T) {
	err := ParseResponseError(response(http.StatusConflict, `{"error":{"code":"CONFLICT","message":"dup"}}`), "catalog")
	var appErr *apperrors.AppError
	assert.True(t, errors.As(err, &appErr))
	assert.Equal(t, "CONFLICT", appErr.Code)
	assert.Equal(t, http.StatusConflict, appErr.Status)
}
