package apperr

import (
	"errors"
	"fmt"
)

// Sentinel errors for the domain taxonomy. Callers classify with errors.Is
// and handlers map each class to a status code.
var (
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrSessionExpired = errors.New("session expired")
	ErrRecognition    = errors.New("recognition failed")
)

// NotFound wraps ErrNotFound with a descriptive message.
func NotFound(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}

// Conflict wraps ErrConflict with a descriptive message.
func Conflict(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrConflict)...)
}

// Unauthorized wraps ErrUnauthorized with a descriptive message.
func Unauthorized(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrUnauthorized)...)
}

// Recognition wraps an underlying face-service failure, preserving the
// original message for diagnostics.
func Recognition(err error) error {
	return fmt.Errorf("%w: %v", ErrRecognition, err)
}
