package types

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Token is an ownership capability. It is issued once when an identity is
// registered and must be presented on every send and receive.
type Token struct {
	id uuid.UUID
}

// NewToken issues a fresh random token
func NewToken() Token {
	return Token{id: uuid.New()}
}

// String returns the string representation of the token
func (t Token) String() string {
	return t.id.String()
}

// IsZero returns true if the token was never issued
func (t Token) IsZero() bool {
	return t.id == uuid.Nil
}

// Timestamp represents a point in time
type Timestamp struct {
	time.Time
}

// NewTimestamp creates a new timestamp from the current time
func NewTimestamp() Timestamp {
	return Timestamp{Time: time.Now()}
}

// Error represents an error with additional context
type Error struct {
	Code    string
	Message string
	Err     error
}

// Error returns the error message
func (e *Error) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Code + ": " + e.Message
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new error with code and message
func NewError(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WrapError wraps an existing error with code and message
func WrapError(code, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsErrCode checks if an error, or any error it wraps, has a specific error code
func IsErrCode(err error, code string) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetErrorCode returns the error code from an error
func GetErrorCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsTimeout reports whether err is a receive timeout
func IsTimeout(err error) bool {
	return IsErrCode(err, ErrCodeTimeout)
}

// Common error codes
const (
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeInvalidArgument = "INVALID_ARGUMENT"
	ErrCodeInvalid         = "INVALID"
	ErrCodeInternal        = "INTERNAL"
	ErrCodeUnavailable     = "UNAVAILABLE"
	ErrCodeTimeout         = "TIMEOUT"
	ErrCodeCanceled        = "CANCELED"

	// Bus specific codes
	ErrCodeDuplicateName = "DUPLICATE_NAME"
	ErrCodeRegistryFull  = "REGISTRY_FULL"
	ErrCodeAlreadyBound  = "ALREADY_BOUND"
	ErrCodeNotOwner      = "NOT_OWNER"
	ErrCodeSendFailed    = "SEND_FAILED"
	ErrCodeRoutingError  = "ROUTING_ERROR"
)
