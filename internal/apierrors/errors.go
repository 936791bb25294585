// Package apierrors converts pricedit errors into JSON API responses.
package apierrors

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/davidluisklein/wire-price-change/internal/logging"
	"github.com/davidluisklein/wire-price-change/internal/session"
	"github.com/davidluisklein/wire-price-change/pkg/pricedit"
)

// APIError represents a structured API error response
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	TraceID    string      `json:"trace_id,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// Render implements the render.Renderer interface for chi/render
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	if e.TraceID == "" {
		e.TraceID = logging.TraceID(r.Context())
	}
	render.Status(r, e.StatusCode)
	return nil
}

// ValidationError represents validation errors
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// New creates a new APIError with the given parameters
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
}

// NewWithDetails creates a new APIError with additional details
func NewWithDetails(statusCode int, errorCode, message string, details interface{}) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
		Details:    details,
	}
}

// InvalidRequest reports a malformed request body or parameter.
func InvalidRequest(err error) *APIError {
	return NewWithDetails(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format", err.Error())
}

// Validation reports struct validation failures field by field.
func Validation(err error) *APIError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return NewWithDetails(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed", err.Error())
	}
	fields := make([]ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, ValidationError{
			Field:   fe.Field(),
			Message: fmt.Sprintf("failed on %q", fe.Tag()),
		})
	}
	return NewWithDetails(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed", fields)
}

// NotFound reports a missing resource.
func NotFound(resource string) *APIError {
	return NewWithDetails(http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("%s not found", resource), resource)
}

// FromError maps library and session errors to API errors.
func FromError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var (
		sheetErr  *pricedit.SheetMissingError
		loadErr   *pricedit.LoadError
		writeErr  *pricedit.WriteError
		saveErr   *pricedit.SaveError
		exportErr *pricedit.ExportError
	)
	switch {
	case errors.As(err, &sheetErr):
		return NewWithDetails(http.StatusNotFound, "SHEET_NOT_FOUND", err.Error(), sheetErr.SheetName)
	case errors.Is(err, session.ErrNotFound):
		return New(http.StatusNotFound, "SESSION_NOT_FOUND", err.Error())
	case errors.Is(err, session.ErrUploadTooLarge):
		return New(http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", err.Error())
	case errors.As(err, &loadErr):
		return New(http.StatusBadRequest, "LOAD_FAILED", err.Error())
	case errors.As(err, &writeErr):
		return NewWithDetails(http.StatusInternalServerError, "WRITE_FAILED", err.Error(), writeErr.Cell)
	case errors.As(err, &saveErr):
		return New(http.StatusInternalServerError, "SAVE_FAILED", err.Error())
	case errors.As(err, &exportErr):
		return NewWithDetails(http.StatusInternalServerError, "EXPORT_FAILED", err.Error(), exportErr.Stage)
	default:
		return New(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error")
	}
}

// Respond renders err as JSON and logs server-side failures.
func Respond(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	apiErr := FromError(err)
	if apiErr.StatusCode >= http.StatusInternalServerError && logger != nil {
		logger.ErrorContext(r.Context(), "request failed",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path))
	}
	if renderErr := render.Render(w, r, apiErr); renderErr != nil && logger != nil {
		logger.ErrorContext(r.Context(), "failed to render error",
			slog.String("error", renderErr.Error()))
	}
}
