// Package vault implements the credential store: credentials, security
// levels and the authenticated session that ties them to the keystore.
package vault

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/awnumar/memguard"
	"github.com/credkeep/credkeep/internal/codec"
	"github.com/credkeep/credkeep/internal/uuid"
	"github.com/credkeep/credkeep/key"
	"github.com/credkeep/credkeep/storage"
)

// Store is a credential store backed by a Repository. It holds no secrets
// itself; Login returns a Session that does.
type Store struct {
	repo         storage.Repository
	logger       *slog.Logger
	clock        Clock
	keystoreName string
	secLevelName string
}

// New creates a Store for the given storage backend.
func New(repo storage.Repository, opts ...Option) *Store {
	s := &Store{
		repo:         repo,
		logger:       slog.Default(),
		clock:        time.Now,
		keystoreName: DefaultKeystoreName,
		secLevelName: DefaultSecLevelName,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialized reports whether a keystore exists, that is whether the next
// Login verifies a passphrase rather than setting one.
func (v *Store) Initialized() (bool, error) {
	ks, err := key.OpenKeystore(v.repo, v.keystoreName)
	if err != nil {
		return false, err
	}
	return ks.Initialized(), nil
}

// Login authenticates passphrase against the keystore and opens a session.
// The very first login on an empty store makes passphrase the master
// passphrase. The security levels are loaded as part of the login; the
// credentials are not, see Session.Load.
func (v *Store) Login(ctx context.Context, passphrase string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if passphrase == "" {
		return nil, validationErrorf("passphrase must not be empty")
	}

	ks, err := key.OpenKeystore(v.repo, v.keystoreName)
	if err != nil {
		return nil, fmt.Errorf("opening keystore: %w", err)
	}
	firstLogin := !ks.Initialized()

	ok, err := ks.Login(passphrase)
	if err != nil {
		return nil, fmt.Errorf("logging in: %w", err)
	}
	if !ok {
		v.logger.LogAttrs(ctx, slog.LevelWarn, "login failed")
		return nil, ErrAuthentication
	}

	levels, err := v.loadSecLevels(ctx)
	if err != nil {
		return nil, err
	}

	s := &Session{
		store:      v,
		id:         uuid.New(),
		keystore:   ks,
		passphrase: memguard.NewEnclave([]byte(passphrase)),
		key:        memguard.NewEnclave([]byte(ks.EncryptionKey(passphrase))),
		levels:     levels,
	}
	s.logger = v.logger.With(slog.String("session_id", s.id))
	s.logger.LogAttrs(ctx, slog.LevelInfo, "login",
		slog.Bool("first_login", firstLogin),
		slog.Int("security_levels", levels.Len()),
	)
	return s, nil
}

func (v *Store) loadSecLevels(ctx context.Context) (*SecLevelManager, error) {
	data, err := v.repo.Load(v.secLevelName)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return NewSecLevelManager(v.clock), nil
		}
		return nil, fmt.Errorf("loading security levels: %w", err)
	}

	r := codec.NewReader(bytes.NewReader(data))
	levels := DecodeSecLevels(r, v.clock)
	if err := r.Err(); err != nil {
		v.logger.LogAttrs(ctx, slog.LevelWarn, "security level file damaged; keeping levels read before the fault",
			slog.String("name", v.secLevelName),
			slog.Int("count", levels.Len()),
			slog.String("error", err.Error()),
		)
	}
	return levels, nil
}
