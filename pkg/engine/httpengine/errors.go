package httpengine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/voxgate/voxgate/pkg/engine"
)

// mapHTTPError converts a non-2xx backend response into a BackendError.
// 5xx and 429 are transient; other client errors are permanent.
func (e *HTTPEngine) mapHTTPError(resp *http.Response) *engine.BackendError {
	message := extractErrorMessage(resp.Body)
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	transient := resp.StatusCode >= http.StatusInternalServerError ||
		resp.StatusCode == http.StatusTooManyRequests

	return &engine.BackendError{
		Engine:    e.cfg.Name,
		Status:    resp.StatusCode,
		Message:   message,
		Transient: transient,
	}
}

// mapNetworkError converts a transport-level failure into a BackendError.
// Caller cancellation and deadline expiry are not transient: the caller's
// budget is spent and the dispatcher must not retry on its behalf.
func (e *HTTPEngine) mapNetworkError(ctx context.Context, err error) *engine.BackendError {
	transient := true
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
		transient = false
	} else if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		transient = false
	}

	return &engine.BackendError{
		Engine:    e.cfg.Name,
		Message:   fmt.Sprintf("backend connection error: %s", err),
		Transient: transient,
	}
}

// permanentError builds a non-retryable BackendError for responses the
// backend produced deliberately (error field set, unparseable body).
func (e *HTTPEngine) permanentError(status int, message string) *engine.BackendError {
	return &engine.BackendError{
		Engine:  e.cfg.Name,
		Status:  status,
		Message: message,
	}
}

// extractErrorMessage tries to pull an error string out of a backend
// response body. Backends answer either {"error": "..."} or a bare string.
func extractErrorMessage(body io.Reader) string {
	if body == nil {
		return ""
	}

	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}

	var errResp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error != "" {
		return errResp.Error
	}

	return string(data)
}
