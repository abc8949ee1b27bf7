package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelErrors_AreDistinct(t *testing.T) {
	sentinels := []error{
		ErrNotFound, ErrInvalidInput, ErrInvalidQuery, ErrUnauthorized,
		ErrInternal, ErrStoreUnavailable, ErrServiceUnavail, ErrConflict,
	}

	for i := 0; i < len(sentinels); i++ {
		for j := i + 1; j < len(sentinels); j++ {
			assert.NotEqual(t, sentinels[i], sentinels[j],
				"sentinels %d and %d should be distinct", i, j)
		}
	}
}

func TestAppError_ErrorString(t *testing.T) {
	appErr := &AppError{Code: "INVALID_QUERY", Message: "offset must be >= 0"}
	assert.Equal(t, "INVALID_QUERY: offset must be >= 0", appErr.Error())

	wrapped := &AppError{Code: "INTERNAL_ERROR", Message: "boom", Err: fmt.Errorf("disk full")}
	assert.Contains(t, wrapped.Error(), "disk full")
}

func TestInvalidQuery(t *testing.T) {
	err := InvalidQuery("limit %d exceeds maximum %d", 500, 100)
	require.NotNil(t, err)
	assert.Equal(t, "INVALID_QUERY", err.Code)
	assert.Equal(t, "limit 500 exceeds maximum 100", err.Message)
	assert.Equal(t, http.StatusBadRequest, err.Status)
	assert.True(t, errors.Is(err, ErrInvalidQuery))
	assert.False(t, errors.Is(err, ErrInvalidInput))
}

func TestStoreUnavailable_KeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := StoreUnavailable(cause)

	assert.Equal(t, "STORE_UNAVAILABLE", err.Code)
	assert.Equal(t, http.StatusServiceUnavailable, err.Status)
	assert.True(t, errors.Is(err, ErrStoreUnavailable))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestNotFound(t *testing.T) {
	err := NotFound("tenant", "acme")
	assert.Contains(t, err.Message, "acme")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestIsCanceled(t *testing.T) {
	assert.True(t, IsCanceled(context.Canceled))
	assert.True(t, IsCanceled(fmt.Errorf("query: %w", context.DeadlineExceeded)))
	assert.False(t, IsCanceled(ErrStoreUnavailable))
}

func TestWrap(t *testing.T) {
	wrapped := Wrap(ErrNotFound, "load listing")
	assert.Contains(t, wrapped.Error(), "load listing")
	assert.True(t, errors.Is(wrapped, ErrNotFound))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"app error", InvalidQuery("bad"), http.StatusBadRequest},
		{"store", StoreUnavailable(errors.New("x")), http.StatusServiceUnavailable},
		{"not found sentinel", ErrNotFound, http.StatusNotFound},
		{"invalid query sentinel", ErrInvalidQuery, http.StatusBadRequest},
		{"wrapped store sentinel", fmt.Errorf("outer: %w", ErrStoreUnavailable), http.StatusServiceUnavailable},
		{"unauthorized", ErrUnauthorized, http.StatusUnauthorized},
		{"conflict", Conflict("busy"), http.StatusConflict},
		{"conflict sentinel", fmt.Errorf("outer: %w", ErrConflict), http.StatusConflict},
		{"shutting down", ServiceUnavailable("draining"), http.StatusServiceUnavailable},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"unknown", fmt.Errorf("unknown"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}
}

func TestConflict(t *testing.T) {
	err := Conflict("a reindex is already running")
	assert.Equal(t, "CONFLICT", err.Code)
	assert.Equal(t, http.StatusConflict, err.Status)
	assert.ErrorIs(t, err, ErrConflict)
}
