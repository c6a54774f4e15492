package common

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	CodeUnknown               ErrorCode = "UNKNOWN"
	CodeInvalidArgument       ErrorCode = "INVALID_ARGUMENT"
	CodeNotAuthorized         ErrorCode = "NOT_AUTHORIZED"
	CodeNotFound              ErrorCode = "NOT_FOUND"
	CodeConflict              ErrorCode = "CONFLICT"
	CodeInvalidKeyLength      ErrorCode = "INVALID_KEY_LENGTH"
	CodeAuthenticationFailure ErrorCode = "AUTHENTICATION_FAILURE"
	CodeRateLimited           ErrorCode = "RATE_LIMITED"
	CodeTransient             ErrorCode = "TRANSIENT"
)

type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// Constructors
func NewAppError(code ErrorCode, message string) error {
	return &AppError{Code: code, Message: message}
}

func WrapError(code ErrorCode, message string, cause error) error {
	return &AppError{Code: code, Message: message, Cause: cause}
}

func InvalidArg(msg string) error {
	return NewAppError(CodeInvalidArgument, msg)
}

func NotAuthorized(msg string) error {
	return NewAppError(CodeNotAuthorized, msg)
}

func NotFound(msg string) error {
	return NewAppError(CodeNotFound, msg)
}

func Conflict(msg string) error {
	return NewAppError(CodeConflict, msg)
}

func Transient(msg string, cause error) error {
	return WrapError(CodeTransient, msg, cause)
}

// Domain errors shared across services
var (
	ErrNotAuthorized         = NotAuthorized("caller is not an active participant of the conversation")
	ErrConversationNotFound  = NotFound("conversation not found")
	ErrUserNotFound          = NotFound("user not found")
	ErrMessageNotFound       = NotFound("message not found")
	ErrConversationExists    = Conflict("conversation id already exists")
	ErrUsernameTaken         = Conflict("username is already taken")
	ErrInvalidKeyLength      = NewAppError(CodeInvalidKeyLength, "encryption key must decode to exactly 32 bytes")
	ErrAuthenticationFailure = NewAppError(CodeAuthenticationFailure, "ciphertext authentication failed")
)

// CodeOf extracts the ErrorCode from err, walking the wrap chain.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// HTTPStatus maps an error to the status the REST surface reports for it.
// Unknown errors are treated as transient store faults (retryable 5xx).
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeNotAuthorized:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeInvalidKeyLength, CodeAuthenticationFailure:
		return http.StatusInternalServerError
	default:
		return http.StatusServiceUnavailable
	}
}
