package errors

import (
	"errors"
	"fmt"
)

// Common error types for the auth client
var (
	// Credential errors - the service declined a login/signup/exchange.
	// Surfaced verbatim to the caller, no retry, session state unchanged.
	ErrCredentialsRejected = errors.New("credentials rejected")
	ErrInvalidCredential   = errors.New("invalid credential")

	// Token errors
	ErrTokenAbsent     = errors.New("no token present")
	ErrRefreshRejected = errors.New("refresh token rejected")

	// Session errors - fatal to the session, tokens are cleared and the
	// caller is sent back to the public entry point.
	ErrSessionExpired = errors.New("session expired")
	ErrNoSession      = errors.New("no active session")

	// Federated errors
	ErrFederatedTokenInvalid = errors.New("federated identity token invalid")

	// General errors
	ErrNotFound = errors.New("not found")
	ErrInternal = errors.New("internal error")
)

// APIError is the identity service's error payload, carried through
// untouched so callers can display the service's own message.
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("api error %d: %s (%s)", e.Status, e.Message, e.Details)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
