package common

import (
	"errors"
	"net/http"

	validator "github.com/go-playground/validator/v10"
)

// AppError is an error the HTTP layer can render: a stable code, a client-safe
// message and the status to answer with. Err keeps the cause for logs.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// Invalid reports a request that decoded but failed validation. details maps
// field names to the failed rule.
func Invalid(message string, details map[string]string, err error) *AppError {
	appErr := NewAppError("VALIDATION_FAILED", message, http.StatusUnprocessableEntity, err)
	if len(details) > 0 {
		appErr.Details = details
	}
	return appErr
}

// AsAppError extracts the AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var target *AppError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// IsAppError checks whether err carries an AppError.
func IsAppError(err error) bool {
	_, ok := AsAppError(err)
	return ok
}

// FieldErrors maps each failed field of a validator error to the failed rule,
// keyed by the field's struct namespace. It returns nil for other errors.
func FieldErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Namespace()] = fe.Tag()
	}
	return out
}
