// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Storage errors.
	ErrNotFound          = errors.New("not found")
	ErrDatabaseCorrupted = errors.New("database corrupted")

	// Extraction errors.
	ErrNoPayloads     = errors.New("no payloads to extract")
	ErrDepthExceeded  = errors.New("maximum nesting depth exceeded")
	ErrUnsupportedFmt = errors.New("unsupported input format")

	// Classification errors.
	ErrNoKeys               = errors.New("no keys to classify")
	ErrClassificationFailed = errors.New("classification failed")
	ErrPermanentRemote      = errors.New("permanent classification service error")

	// Consensus errors. Both halt consensus for the batch.
	ErrIncomplete      = errors.New("temperature label sets are incomplete")
	ErrUnknownCategory = errors.New("unresolved category label")
	ErrInvalidScore    = errors.New("invalid confidence score")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrPermanentRemote) {
		return false
	}

	if errors.Is(err, ErrRateLimit) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
