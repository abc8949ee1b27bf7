package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/laas-platform/laas/pkg/errors"
)

// downstreamError is the {"error":{code,message}} envelope platform services return.
type downstreamError struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseResponseError consumes and closes the body of a non-2xx response and
// translates it into an error carrying the downstream semantics.
func ParseResponseError(resp *http.Response, service string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s returned status %d (read body: %w)", service, resp.StatusCode, err)
	}

	var env downstreamError
	if json.Unmarshal(body, &env) != nil || env.Error == nil {
		return fmt.Errorf("%s returned status %d: %s", service, resp.StatusCode, body)
	}

	msg := fmt.Sprintf("%s: %s", service, env.Error.Message)
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return apperrors.NotFound(service+" resource", env.Error.Message)
	case resp.StatusCode == http.StatusBadRequest:
		return apperrors.InvalidInput(msg)
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return apperrors.Unauthorized(msg)
	case resp.StatusCode == http.StatusServiceUnavailable:
		return &apperrors.AppError{
			Code:    env.Error.Code,
			Message: msg,
			Status:  http.StatusServiceUnavailable,
			Err:     apperrors.ErrServiceUnavail,
		}
	case resp.StatusCode >= 500:
		return fmt.Errorf("%s server error (%d/%s): %s", service, resp.StatusCode, env.Error.Code, env.Error.Message)
	default:
		return &apperrors.AppError{Code: env.Error.Code, Message: msg, Status: resp.StatusCode}
	}
}
