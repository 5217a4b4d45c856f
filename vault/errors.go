package vault

import (
	"errors"
	"fmt"

	"github.com/credkeep/credkeep/key"
)

var (
	// ErrAuthentication indicates the passphrase did not verify.
	ErrAuthentication = key.ErrAuthentication
	// ErrKeyMismatch indicates a credentials blob was written under a
	// different encryption key than the one the session holds.
	ErrKeyMismatch = errors.New("encryption key mismatch")
	// ErrNotFound indicates the named credential or security level does not exist.
	ErrNotFound = errors.New("not found")
	// ErrSessionClosed indicates the session has been logged out and its key material dropped.
	ErrSessionClosed = errors.New("session closed")
	// ErrPasswordReused indicates a new shared password matches the current
	// one or one in the level's history.
	ErrPasswordReused = errors.New("password previously used")
)

// ValidationError reports caller input that was rejected before any state
// changed.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return "invalid input: " + e.Msg
}

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is or wraps a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
