package domain

import (
	"context"
	"errors"
	"net"
)

// Error kinds surfaced by auth operations. Match them with errors.Is.
var (
	ErrAuthRejected    = errors.New("auth rejected")
	ErrNetwork         = errors.New("network error")
	ErrConfiguration   = errors.New("configuration error")
	ErrUsage           = errors.New("usage error")
	ErrProfileNotFound = errors.New("profile not found")
	ErrProfileExists   = errors.New("profile already exists")
	ErrNoSession       = errors.New("no active session")
	ErrFileNotFound    = errors.New("file not found")
)

// AuthError is a classified auth failure. Message is safe to show to the user
// verbatim; Err keeps the underlying cause for logging.
type AuthError struct {
	Kind    error
	Op      string
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.Error()
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *AuthError) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NewAuthRejected reports bad credentials or a policy violation.
func NewAuthRejected(op, message string) *AuthError {
	return &AuthError{Kind: ErrAuthRejected, Op: op, Message: message}
}

// NewNetworkError reports a timeout or connectivity failure.
func NewNetworkError(op string, err error) *AuthError {
	return &AuthError{Kind: ErrNetwork, Op: op, Message: "unable to reach the authentication service", Err: err}
}

// NewConfigurationError reports a misconfigured provider or backend.
func NewConfigurationError(op, message string) *AuthError {
	return &AuthError{Kind: ErrConfiguration, Op: op, Message: message}
}

// NewUsageError reports a programmer error such as using the auth facade outside its scope.
func NewUsageError(message string) *AuthError {
	return &AuthError{Kind: ErrUsage, Message: message}
}

// ClassifyAuthError guarantees err carries one of the auth error kinds.
// Untyped failures are treated as connectivity problems.
func ClassifyAuthError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrAuthRejected) || errors.Is(err, ErrNetwork) || errors.Is(err, ErrConfiguration) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return NewNetworkError(op, err)
	}
	return &AuthError{Kind: ErrNetwork, Op: op, Message: err.Error(), Err: err}
}
