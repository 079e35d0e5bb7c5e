package apperrors

import "errors"

// Error codes used across the service.
const (
	CodeBadRequest      = "BAD_REQUEST"
	CodeNotFound        = "NOT_FOUND"
	CodeValidationError = "VALIDATION_ERROR"
	CodeDuplicateEmail  = "DUPLICATE_EMAIL"
	CodeStoreError      = "STORE_ERROR"
)

// Error carries a taxonomy code alongside the message so handlers can map
// failures to transport status codes without string matching.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Err: cause}
}

func BadRequest(message string) *Error {
	return New(CodeBadRequest, message, nil)
}

func NotFound(message string) *Error {
	return New(CodeNotFound, message, nil)
}

func Validation(message string) *Error {
	return New(CodeValidationError, message, nil)
}

func DuplicateEmail(message string) *Error {
	return New(CodeDuplicateEmail, message, nil)
}

func Store(message string, cause error) *Error {
	return New(CodeStoreError, message, cause)
}

// CodeOf returns the taxonomy code of err, or CodeStoreError when err is not
// an *Error (unknown failures are treated as server-side).
func CodeOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeStoreError
}
