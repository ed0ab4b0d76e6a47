package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/utafrali/productsearch/pkg/errors"
	"github.com/utafrali/productsearch/pkg/logger"
	"github.com/utafrali/productsearch/pkg/validator"
)

// Response is the standard JSON response envelope.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse represents an error in the standard response format.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON writes v as JSON with status. Encoding errors are dropped since
// the header is already sent.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError classifies err, writes the error envelope with the request's
// correlation id and logs 5xx failures. The request-scoped logger is used
// when RequestLogger stored one, otherwise fallback.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	ctx := r.Context()
	status := statusFor(err)
	resp := errorResponse(err)
	resp.RequestID = logger.CorrelationIDFromContext(ctx)

	if status >= http.StatusInternalServerError {
		l := logger.FromContext(ctx)
		if l == slog.Default() && fallback != nil {
			l = fallback
		}
		level, msg := slog.LevelError, "internal error"
		if status == http.StatusServiceUnavailable {
			level, msg = slog.LevelWarn, "search backend unavailable"
		}
		l.LogAttrs(ctx, level, msg,
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
		)
	}

	WriteJSON(w, status, Response{Error: resp})
}

func statusFor(err error) int {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		return http.StatusUnprocessableEntity
	}
	return apperrors.HTTPStatus(err)
}

func errorResponse(err error) *ErrorResponse {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return &ErrorResponse{Code: appErr.Code, Message: appErr.Message, Fields: appErr.Fields}
	}

	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		return &ErrorResponse{
			Code:    apperrors.CodeValidation,
			Message: "request validation failed",
			Fields:  valErr.Fields(),
		}
	}

	code := apperrors.Code(err)
	switch code {
	case apperrors.CodeNotFound:
		return &ErrorResponse{Code: code, Message: "resource not found"}
	case apperrors.CodeInvalidArgument, apperrors.CodeValidation:
		return &ErrorResponse{Code: code, Message: err.Error()}
	case apperrors.CodeBackendUnavailable:
		return &ErrorResponse{Code: code, Message: "search backend is unavailable"}
	case apperrors.CodePartialFailure:
		return &ErrorResponse{Code: code, Message: "some items could not be saved"}
	default:
		return &ErrorResponse{Code: apperrors.CodeInternal, Message: "an internal error occurred"}
	}
}

// DecodeJSON limits the request body to maxBytes and decodes it into dst.
// Oversized or malformed bodies come back as an InvalidArgument AppError.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any, maxBytes int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperrors.InvalidArgument("request body exceeds %d bytes", tooLarge.Limit)
		}
		return apperrors.InvalidArgument("invalid request body: %v", err)
	}
	return nil
}
