package domain

import "errors"

// Domain errors
var (
	ErrServerNotFound       = errors.New("server not found")
	ErrServerAlreadyRunning = errors.New("server already running")
	ErrServerNotRunning     = errors.New("server not running")
	ErrInvalidLogEntry      = errors.New("invalid log entry")
	ErrShutdownInProgress   = errors.New("shutdown in progress")
	ErrConfigNotFound       = errors.New("config file not found")
	ErrInvalidConfig        = errors.New("invalid configuration")
)

// Error codes for API responses
const (
	ErrCodeServerNotFound       = "SERVER_NOT_FOUND"
	ErrCodeServerAlreadyRunning = "SERVER_ALREADY_RUNNING"
	ErrCodeServerNotRunning     = "SERVER_NOT_RUNNING"
	ErrCodeInvalidLogEntry      = "INVALID_LOG_ENTRY"
	ErrCodeShutdownInProgress   = "SHUTDOWN_IN_PROGRESS"
)

// ErrorCode returns the API error code for a domain error
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrServerNotFound):
		return ErrCodeServerNotFound
	case errors.Is(err, ErrServerAlreadyRunning):
		return ErrCodeServerAlreadyRunning
	case errors.Is(err, ErrServerNotRunning):
		return ErrCodeServerNotRunning
	case errors.Is(err, ErrInvalidLogEntry):
		return ErrCodeInvalidLogEntry
	case errors.Is(err, ErrShutdownInProgress):
		return ErrCodeShutdownInProgress
	default:
		return "INTERNAL_ERROR"
	}
}
