// Package crypto provides the secret cipher used for every encrypted field in
// a credkeep store.
//
// The cipher is Salsa20 keyed directly from the passphrase bytes. There is no
// key derivation and no authentication: decrypting with the wrong passphrase
// succeeds and yields garbage of the same length. Callers that need to know
// whether a passphrase is right verify it separately (see package key).
package crypto

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/credkeep/credkeep/internal/util"
	"golang.org/x/crypto/salsa20"
)

const (
	// KeySize is the cipher key length in bytes.
	KeySize = 32
	// NonceSize is the cipher nonce length in bytes.
	NonceSize = 8
	// MaxSecretLength is the largest plaintext a single secret can hold.
	MaxSecretLength = 64
)

// keyPad fills the tail of a passphrase shorter than KeySize.
const keyPad = '0'

// ErrSecretTooLong is returned when a plaintext exceeds MaxSecretLength.
var ErrSecretTooLong = errors.New("secret too long")

// Nonce is the per-encryption nonce stored next to every ciphertext.
type Nonce [NonceSize]byte

// NewNonce returns a nonce filled from the process-wide pseudo-random source.
func NewNonce() Nonce {
	var n Nonce
	binary.LittleEndian.PutUint64(n[:], util.RandomUint64())
	return n
}

// BlockKey turns a passphrase into a cipher key: its bytes truncated to
// KeySize, padded with '0'.
func BlockKey(passphrase string) [KeySize]byte {
	var k [KeySize]byte
	n := copy(k[:], passphrase)
	for i := n; i < KeySize; i++ {
		k[i] = keyPad
	}
	return k
}

// Encrypt seals plaintext under passphrase with a fresh nonce. The
// ciphertext has the same length as the plaintext.
func Encrypt(plaintext []byte, passphrase string) ([]byte, Nonce, error) {
	if len(plaintext) > MaxSecretLength {
		return nil, Nonce{}, fmt.Errorf("encrypting %d bytes (max %d): %w", len(plaintext), MaxSecretLength, ErrSecretTooLong)
	}
	nonce := NewNonce()
	return xor(plaintext, passphrase, nonce), nonce, nil
}

// Decrypt reverses Encrypt. It never fails: a wrong passphrase or nonce
// yields unrelated bytes of the same length.
func Decrypt(ciphertext []byte, passphrase string, nonce Nonce) []byte {
	return xor(ciphertext, passphrase, nonce)
}

func xor(in []byte, passphrase string, nonce Nonce) []byte {
	key := BlockKey(passphrase)
	defer util.WipeArray32(&key)

	out := make([]byte, len(in))
	if len(in) == 0 {
		return out
	}
	salsa20.XORKeyStream(out, in, nonce[:], &key)
	return out
}
