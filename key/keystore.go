package key

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/credkeep/credkeep/crypto"
	"github.com/credkeep/credkeep/internal/codec"
	"github.com/credkeep/credkeep/internal/util"
	"github.com/credkeep/credkeep/storage"
)

// StaticKeyLength is the length of the generated encryption key.
const StaticKeyLength = 32

const (
	staticKeyBase  = '!'
	staticKeyRange = 92
)

// Group tags of the keystore blob.
const (
	groupMaster byte = 'K'
	groupStatic byte = 'S'
)

var (
	// ErrAuthentication indicates a passphrase did not verify.
	ErrAuthentication = errors.New("authentication failed")
	// ErrNotInitialized indicates the keystore has never been set up.
	ErrNotInitialized = errors.New("keystore not initialized")
)

// Keystore holds the master passphrase record and the static encryption key
// sealed under that passphrase. The static key is generated once, at the
// first login, and only ever re-sealed afterwards, so changing the master
// passphrase never touches data encrypted with the static key.
type Keystore struct {
	repo   storage.Repository
	name   string
	master Record
	static crypto.Secret
	ready  bool
}

// OpenKeystore reads the keystore blob called name from repo. A missing blob
// yields an uninitialized keystore; the first Login sets it up.
//
// Trailing damage after a complete keystore is ignored. A blob that breaks
// off before both parts were read is reported as codec.ErrMalformed rather
// than treated as missing, so a damaged keystore is never silently replaced.
func OpenKeystore(repo storage.Repository, name string) (*Keystore, error) {
	ks := &Keystore{repo: repo, name: name}

	data, err := repo.Load(name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ks, nil
		}
		return nil, fmt.Errorf("loading keystore: %w", err)
	}

	var haveMaster, haveStatic bool
	r := codec.NewReader(bytes.NewReader(data))
	for {
		tag, ok := r.NextGroup()
		if !ok {
			break
		}
		switch tag {
		case groupMaster:
			rec := DecodeRecord(r)
			if r.Err() == nil {
				ks.master, haveMaster = rec, true
			}
		case groupStatic:
			s := crypto.DecodeSecret(r)
			if r.Err() == nil {
				ks.static, haveStatic = s, true
			}
		default:
			r.Fail("unknown keystore group %q", tag)
		}
	}

	switch {
	case haveMaster && haveStatic:
		ks.ready = true
	case r.Err() != nil:
		return nil, fmt.Errorf("reading keystore %s: %w", name, r.Err())
	case haveMaster || haveStatic:
		return nil, fmt.Errorf("reading keystore %s: %w: incomplete keystore", name, codec.ErrMalformed)
	}
	return ks, nil
}

// Initialized reports whether the keystore holds a master record and a
// static key.
func (ks *Keystore) Initialized() bool {
	return ks.ready
}

// Login verifies passphrase. On an uninitialized keystore it instead makes
// passphrase the master passphrase, generates the static key, persists both
// and reports success.
func (ks *Keystore) Login(passphrase string) (bool, error) {
	if ks.ready {
		return ks.master.Verify(passphrase), nil
	}

	static := util.RandomChars(StaticKeyLength, staticKeyBase, staticKeyRange)
	sealed, err := crypto.Seal(static, passphrase)
	if err != nil {
		return false, fmt.Errorf("sealing static key: %w", err)
	}
	master := NewRecord(passphrase)
	if err := ks.store(master, sealed); err != nil {
		return false, err
	}
	ks.master, ks.static, ks.ready = master, sealed, true
	return true, nil
}

// Verify reports whether passphrase is the master passphrase.
func (ks *Keystore) Verify(passphrase string) bool {
	return ks.ready && ks.master.Verify(passphrase)
}

// EncryptionKey returns the static key when passphrase verifies, or "".
func (ks *Keystore) EncryptionKey(passphrase string) string {
	if !ks.Verify(passphrase) {
		return ""
	}
	return ks.static.Open(passphrase)
}

// Rotate replaces the master passphrase. The static key is re-sealed under
// newPassphrase with a fresh nonce and the master record is regenerated. The
// in-memory keystore changes only once the new blob is stored.
func (ks *Keystore) Rotate(newPassphrase, oldPassphrase string) error {
	if !ks.ready {
		return ErrNotInitialized
	}
	if !ks.master.Verify(oldPassphrase) {
		return ErrAuthentication
	}

	static := ks.static
	if err := static.Rekey(newPassphrase, oldPassphrase); err != nil {
		return err
	}
	master := NewRecord(newPassphrase)
	if err := ks.store(master, static); err != nil {
		return err
	}
	ks.master, ks.static = master, static
	return nil
}

func (ks *Keystore) store(master Record, static crypto.Secret) error {
	var buf bytes.Buffer
	w := codec.NewWriter(&buf)
	w.Group(groupMaster)
	master.Encode(w)
	w.Group(groupStatic)
	static.Encode(w)
	if err := w.Flush(); err != nil {
		return fmt.Errorf("encoding keystore: %w", err)
	}
	if err := ks.repo.Store(ks.name, buf.Bytes()); err != nil {
		return fmt.Errorf("storing keystore: %w", err)
	}
	return nil
}
