package browser

import (
	"errors"
	"fmt"
)

var (
	ErrUnavailable      = errors.New("browser runtime unavailable")
	ErrSessionClosed    = errors.New("browser session closed")
	ErrNoSuchElement    = errors.New("no such element")
	ErrConnectionLost   = errors.New("driver connection lost")
	ErrOperationTimeout = errors.New("operation timeout")
)

// DriverError wraps errors from the browser driver with additional context.
type DriverError struct {
	Code    string
	Message string
	Err     error
}

func (e *DriverError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("driver error [%s]: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("driver error [%s]: %s", e.Code, e.Message)
}

func (e *DriverError) Unwrap() error {
	return e.Err
}

// NewDriverError creates a new DriverError.
func NewDriverError(code, message string) *DriverError {
	return &DriverError{Code: code, Message: message}
}

// WrapDriverError wraps an existing error with driver context.
func WrapDriverError(code, message string, err error) *DriverError {
	return &DriverError{Code: code, Message: message, Err: err}
}

// IsConnectionError returns true if the error indicates a lost connection.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConnectionLost) {
		return true
	}
	var driverErr *DriverError
	if errors.As(err, &driverErr) {
		return driverErr.Code == "connection_lost" || driverErr.Code == "unavailable"
	}
	return false
}

// IsRetryableError returns true if the error might succeed on retry.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConnectionLost) || errors.Is(err, ErrOperationTimeout) || errors.Is(err, ErrNoSuchElement) {
		return true
	}
	var driverErr *DriverError
	if errors.As(err, &driverErr) {
		switch driverErr.Code {
		case "connection_lost", "timeout", "unavailable", "stale element reference":
			return true
		}
	}
	return false
}
