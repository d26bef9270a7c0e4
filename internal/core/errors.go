// AngelaMos | 2026
// errors.go

package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrNetwork      = errors.New("network error")
	ErrConflict     = errors.New("conflict")
)

type AppError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(status int, code, message string, err error) *AppError {
	return &AppError{
		Status:  status,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func NotFoundError(resource string) *AppError {
	return NewAppError(
		http.StatusNotFound,
		"NOT_FOUND",
		resource+" not found",
		ErrNotFound,
	)
}

func ValidationError(message string) *AppError {
	return NewAppError(
		http.StatusBadRequest,
		"VALIDATION_ERROR",
		message,
		ErrInvalidInput,
	)
}

func UpstreamError(err error) *AppError {
	return NewAppError(
		http.StatusBadGateway,
		"UPSTREAM_ERROR",
		"user service unavailable",
		err,
	)
}

func ConflictError(message string) *AppError {
	return NewAppError(http.StatusConflict, "CONFLICT", message, ErrConflict)
}

// FromError maps a domain error onto the HTTP envelope. Unknown errors
// become a 500 without leaking their text.
func FromError(err error, resource string) *AppError {
	if appErr, ok := IsAppError(err); ok {
		return appErr
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return NotFoundError(resource)
	case errors.Is(err, ErrInvalidInput):
		return ValidationError(err.Error())
	case errors.Is(err, ErrConflict):
		return ConflictError(err.Error())
	case errors.Is(err, ErrNetwork):
		return UpstreamError(err)
	}

	return NewAppError(
		http.StatusInternalServerError,
		"INTERNAL_ERROR",
		"internal server error",
		err,
	)
}

func FormatValidationError(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}

	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, fieldError(fe))
	}
	return strings.Join(msgs, "; ")
}

func fieldError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "max":
		return fmt.Sprintf("%s must be %s characters or less", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "avatar":
		return field + " must be an http(s) or data URL"
	default:
		return fmt.Sprintf("%s failed validation (%s)", field, fe.Tag())
	}
}
