package core

import "errors"

// Error codes sent to clients.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodePersistence    = "persistence_error"
	ErrCodeConnectionGone = "connection_gone"
	ErrCodeUnauthorized   = "unauthorized"
	ErrCodeRateLimited    = "rate_limited"
	ErrCodeInternal       = "internal"
)

var (
	// ErrValidation marks a missing or malformed payload.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks an unknown message id or identity.
	ErrNotFound = errors.New("not found")
	// ErrPersistence marks a failed store call.
	ErrPersistence = errors.New("persistence failed")
	// ErrConnectionGone marks an operation on a connection that is unknown or already offline.
	ErrConnectionGone = errors.New("connection gone")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

// ErrorCode maps an error returned by the hub to a client-facing code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return ErrCodeBadRequest
	case errors.Is(err, ErrNotFound):
		return ErrCodeNotFound
	case errors.Is(err, ErrPersistence):
		return ErrCodePersistence
	case errors.Is(err, ErrConnectionGone):
		return ErrCodeConnectionGone
	default:
		return ErrCodeInternal
	}
}
