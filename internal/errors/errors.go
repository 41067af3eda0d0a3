package errors

import (
	"errors"
	"fmt"
)

// Custom error types for the URL shortener application

// ErrShortCodeNotFound is returned when a short code doesn't exist in the database
var ErrShortCodeNotFound = errors.New("short code not found")

// ErrPersistence wraps every storage-layer fault. It is never retried.
var ErrPersistence = errors.New("persistence failure")

// ErrShortCodeGenerationFailed is returned when we can't generate a unique short code
var ErrShortCodeGenerationFailed = errors.New("failed to generate unique short code")

// ErrAnonymousClient is returned when a request without client IP is refused by policy.
var ErrAnonymousClient = errors.New("client IP is required")

// Validation kinds. A *ValidationError matches its kind with errors.Is.
var (
	ErrEmptyURL             = errors.New("empty url")
	ErrURLTooLong           = errors.New("url too long")
	ErrMalformedURL         = errors.New("malformed url")
	ErrUnsupportedProtocol  = errors.New("unsupported protocol")
	ErrDisallowedCharacters = errors.New("disallowed characters")
	ErrMissingHost          = errors.New("missing host")
)

// ValidationError is returned by the URL validator. Message is meant for end users.
type ValidationError struct {
	Kind    error
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %s", e.Kind, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Kind
}

// NewValidationError builds a ValidationError of the given kind.
func NewValidationError(kind error, message string) *ValidationError {
	return &ValidationError{Kind: kind, Message: message}
}

// Persistence wraps a storage error so that callers can test it with errors.Is(err, ErrPersistence).
func Persistence(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

// ErrConfigLoad is returned when configuration loading fails
type ErrConfigLoad struct {
	Path   string
	Reason string
}

func (e ErrConfigLoad) Error() string {
	return fmt.Sprintf("failed to load config from %s: %s", e.Path, e.Reason)
}
