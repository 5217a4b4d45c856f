package vault

import (
	"log/slog"
	"time"
)

// Default blob names.
const (
	DefaultKeystoreName    = "key.dat"
	DefaultSecLevelName    = "seclevel.dat"
	DefaultCredentialsName = "credentials.dat"
)

// Clock returns the current time. Only the calendar date is used.
type Clock func() time.Time

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used by the store and its sessions.
// Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock sets the clock that decides what "today" is for rotation and
// expiry. Default: time.Now.
func WithClock(clock Clock) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithKeystoreName sets the blob name of the keystore.
// Default: "key.dat".
func WithKeystoreName(name string) Option {
	return func(s *Store) {
		s.keystoreName = name
	}
}

// WithSecLevelName sets the blob name of the security levels.
// Default: "seclevel.dat".
func WithSecLevelName(name string) Option {
	return func(s *Store) {
		s.secLevelName = name
	}
}
