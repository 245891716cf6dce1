package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrLLMFailure is returned when a language-model call fails
	ErrLLMFailure = errors.New("language model request failed")

	// ErrEmptyLLMResponse is returned when the model returns no content
	ErrEmptyLLMResponse = errors.New("empty response from language model")

	// ErrUserExists is returned when registering an already-registered email
	ErrUserExists = errors.New("user already exists")

	// ErrUserNotFound is returned when a user cannot be found
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidCredentials is returned on a failed login
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken is returned when a JWT fails verification
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrAccountLocked is returned after too many failed login attempts
	ErrAccountLocked = errors.New("account temporarily locked")
)

// ProviderError is returned when the external search-results provider fails:
// non-2xx status, network failure, or malformed payload.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s provider error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s provider error: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ValidationError is raised by the vector-ranking path on malformed input.
// It is the only error class that propagates to the caller: that path is a
// direct library-style call without an orchestrator-level safety net.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// IsValidationError reports whether err is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
