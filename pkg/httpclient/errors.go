package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/utafrali/productsearch/pkg/errors"
)

// maxErrorBody caps how much of a failing response body is read.
const maxErrorBody = 1 << 20

// BackendErrorResponse mirrors the error body returned by Elasticsearch and
// compatible engines. "error" is either an object or a bare string.
type BackendErrorResponse struct {
	Status int             `json:"status"`
	Error  json.RawMessage `json:"error"`
}

type backendErrorDetail struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// ParseResponseError reads a non-2xx response body and translates it into an
// error classified by the apperrors sentinels. The body is drained, not closed.
func ParseResponseError(status int, body io.Reader, backend string) error {
	raw, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil {
		return apperrors.BackendUnavailable(fmt.Errorf("%s returned status %d (failed to read body: %w)", backend, status, err))
	}

	kind, reason := describe(raw)
	return BackendError(status, kind, reason, backend)
}

func describe(raw []byte) (kind, reason string) {
	var resp BackendErrorResponse
	if json.Unmarshal(raw, &resp) != nil || len(resp.Error) == 0 {
		return "", string(raw)
	}

	var detail backendErrorDetail
	if json.Unmarshal(resp.Error, &detail) == nil && (detail.Type != "" || detail.Reason != "") {
		return detail.Type, detail.Reason
	}

	var text string
	if json.Unmarshal(resp.Error, &text) == nil {
		return "", text
	}
	return "", string(resp.Error)
}

// BackendError translates a backend status and error type into an AppError that
// preserves the error semantics for the HTTP layer.
func BackendError(status int, kind, reason, backend string) error {
	msg := reason
	if kind != "" {
		msg = fmt.Sprintf("%s: %s", kind, reason)
	}

	switch {
	case status == http.StatusNotFound:
		return &apperrors.AppError{
			Code:    apperrors.CodeNotFound,
			Message: fmt.Sprintf("%s: %s", backend, msg),
			Status:  http.StatusNotFound,
			Err:     apperrors.ErrNotFound,
		}
	case status == http.StatusBadRequest:
		return apperrors.InvalidArgument("%s rejected the request: %s", backend, msg)
	case IsRetryable(status):
		return apperrors.BackendUnavailable(fmt.Errorf("%s returned status %d: %s", backend, status, msg))
	default:
		return apperrors.Internal(fmt.Errorf("%s returned status %d: %s", backend, status, msg))
	}
}

// IsRetryable reports whether status signals an overloaded or failing backend
// rather than a bad request.
func IsRetryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}
