package httputil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/laas-platform/laas/pkg/errors"
	"github.com/laas-platform/laas/pkg/logger"
	"github.com/laas-platform/laas/pkg/validator"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusOK, Response{Data: map[string]int{"total": 3}})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":{"total":3}}`, rec.Body.String())
}

func TestWriteError_Mapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid query app error", apperrors.InvalidQuery("limit must be positive, got 0"), http.StatusBadRequest, "INVALID_QUERY"},
		{"store unavailable", apperrors.StoreUnavailable(errors.New("dial tcp")), http.StatusServiceUnavailable, "STORE_UNAVAILABLE"},
		{"wrapped invalid query sentinel", fmt.Errorf("search: %w", apperrors.ErrInvalidQuery), http.StatusBadRequest, "INVALID_QUERY"},
		{"not found sentinel", apperrors.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/search", nil)
			WriteError(rec, req, tt.err, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

			assert.Equal(t, tt.status, rec.Code)
			resp := decode(t, rec)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestWriteError_UnknownErrorHidesMessageAndLogs(t *testing.T) {
	var logs bytes.Buffer
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/search", nil)

	WriteError(rec, req, errors.New("pq: relation does not exist"), slog.New(slog.NewJSONHandler(&logs, nil)))

	resp := decode(t, rec)
	assert.Equal(t, "an internal error occurred", resp.Error.Message)
	assert.Contains(t, logs.String(), "relation does not exist")
}

func TestWriteError_ClientErrorNotLogged(t *testing.T) {
	var logs bytes.Buffer
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	WriteError(rec, req, apperrors.InvalidQuery("bad"), slog.New(slog.NewJSONHandler(&logs, nil)))
	assert.Zero(t, logs.Len())
}

func TestWriteError_ValidationFields(t *testing.T) {
	type in struct {
		SortOrder string `json:"sort_order" validate:"oneof=asc desc"`
	}
	verr := validator.Validate(in{SortOrder: "up"})
	require.Error(t, verr)

	rec := httptest.NewRecorder()
	WriteError(rec, httptest.NewRequest(http.MethodPost, "/", nil), verr, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Contains(t, resp.Error.Fields, "sort_order")
}

func TestWriteError_IncludesRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(logger.WithCorrelationID(req.Context(), "corr-42"))

	WriteError(rec, req, apperrors.InvalidQuery("bad"), nil)

	resp := decode(t, rec)
	assert.Equal(t, "corr-42", resp.Error.RequestID)
}

func TestResponse_OmitsEmptyFields(t *testing.T) {
	b, err := json.Marshal(Response{Data: []int{}})
	require.NoError(t, err)
	assert.NotContains(t, string(b), "error")

	b, err = json.Marshal(Response{Error: &ErrorResponse{Code: "X", Message: "y"}})
	require.NoError(t, err)
	assert.NotContains(t, string(b), "data")
	assert.NotContains(t, string(b), "request_id")
}
