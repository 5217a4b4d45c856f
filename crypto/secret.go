package crypto

import (
	"fmt"

	"github.com/credkeep/credkeep/internal/codec"
	"github.com/credkeep/credkeep/internal/util"
)

// Unit tags of an encoded secret.
const (
	tagData  byte = 'D'
	tagNonce byte = 'V'
)

// Secret is one encrypted field: the ciphertext and the nonce it was sealed
// with. The zero value is an empty secret that opens to "".
type Secret struct {
	data  []byte
	nonce Nonce
}

// Seal encrypts plain under passphrase.
func Seal(plain, passphrase string) (Secret, error) {
	data, nonce, err := Encrypt([]byte(plain), passphrase)
	if err != nil {
		return Secret{}, err
	}
	return Secret{data: data, nonce: nonce}, nil
}

// Open decrypts the secret. With the wrong passphrase the result is garbage
// of the right length.
func (s Secret) Open(passphrase string) string {
	plain := Decrypt(s.data, passphrase, s.nonce)
	defer util.WipeBytes(plain)
	return string(plain)
}

// Len returns the plaintext length.
func (s Secret) Len() int {
	return len(s.data)
}

// Rekey decrypts the secret with oldPassphrase and seals the result under
// newPassphrase with a fresh nonce. On error the secret is unchanged.
func (s *Secret) Rekey(newPassphrase, oldPassphrase string) error {
	plain := Decrypt(s.data, oldPassphrase, s.nonce)
	defer util.WipeBytes(plain)

	data, nonce, err := Encrypt(plain, newPassphrase)
	if err != nil {
		return fmt.Errorf("rekeying secret: %w", err)
	}
	s.data, s.nonce = data, nonce
	return nil
}

// EncodeUnits writes the ciphertext and nonce units without closing the
// record, for containers that put their own units beside them.
func (s Secret) EncodeUnits(w *codec.Writer) {
	w.Bytes(tagData, s.data)
	w.Bytes(tagNonce, s.nonce[:])
}

// Encode writes the secret as a complete record.
func (s Secret) Encode(w *codec.Writer) {
	s.EncodeUnits(w)
	w.EndRecord()
}

// DecodeUnit consumes the payload of a unit whose tag belongs to a secret
// and reports whether it did.
func (s *Secret) DecodeUnit(tag byte, r *codec.Reader) bool {
	switch tag {
	case tagData:
		b := r.Bytes()
		if len(b) > MaxSecretLength {
			r.Fail("secret of %d bytes exceeds maximum of %d", len(b), MaxSecretLength)
			return true
		}
		s.data = b
	case tagNonce:
		b := r.Bytes()
		if r.Err() == nil && len(b) != NonceSize {
			r.Fail("nonce of %d bytes, want %d", len(b), NonceSize)
			return true
		}
		copy(s.nonce[:], b)
	default:
		return false
	}
	return true
}

// DecodeSecret reads a record written by Encode. Problems are reported
// through r.Err.
func DecodeSecret(r *codec.Reader) Secret {
	var s Secret
	for {
		tag, ok := r.NextUnit()
		if !ok {
			break
		}
		if !s.DecodeUnit(tag, r) {
			r.Fail("unknown secret unit %q", tag)
		}
	}
	r.EndRecord()
	return s
}
