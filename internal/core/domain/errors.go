package domain

import (
	"errors"
	"fmt"
)

// Domain outcomes. Callers match them with errors.Is; the transport layer maps
// each one to a fixed status code.
var (
	ErrMissingField       = errors.New("missing required field")
	ErrPasswordTooLong    = errors.New("password exceeds 72 bytes")
	ErrDuplicateUser      = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrInvalidTOTPCode    = errors.New("invalid 2FA code")
	ErrUserNotFound       = errors.New("user not found")
)

// Token failures are both reported as ErrUnauthenticated.
var (
	ErrTokenExpired   = fmt.Errorf("%w: token has expired", ErrUnauthenticated)
	ErrTokenMalformed = fmt.Errorf("%w: invalid token", ErrUnauthenticated)
)

// ErrStoreUnavailable marks infrastructure failures of the credential store.
var ErrStoreUnavailable = errors.New("credential store unavailable")

// MissingField returns ErrMissingField annotated with the field name.
func MissingField(field string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, field)
}
