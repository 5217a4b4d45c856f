// Package key verifies passphrases and guards the static encryption key that
// every credential field is sealed with.
//
// A passphrase is never stored. A Record keeps a salted 32-bit hash of it,
// which is enough to tell a typo from the real thing and nothing more.
package key

import (
	"hash/fnv"

	"github.com/credkeep/credkeep/internal/codec"
	"github.com/credkeep/credkeep/internal/util"
)

const (
	// SaltLength is the number of characters in a record salt.
	SaltLength = 8

	saltBase  = 'A'
	saltRange = 32
)

// Unit tags of an encoded record.
const (
	tagHash byte = 'K'
	tagSalt byte = 'S'
)

// Record is a salted hash of a secret.
type Record struct {
	hash int32
	salt string
}

// NewRecord hashes secret with a freshly generated salt.
func NewRecord(secret string) Record {
	salt := newSalt()
	return Record{hash: hash(secret, salt), salt: salt}
}

// Verify reports whether attempt hashes to the stored value under the
// stored salt.
func (r Record) Verify(attempt string) bool {
	return hash(attempt, r.salt) == r.hash
}

// Salt returns the stored salt.
func (r Record) Salt() string {
	return r.salt
}

// IsZero reports whether the record was never set.
func (r Record) IsZero() bool {
	return r.hash == 0 && r.salt == ""
}

// Encode writes the record as units followed by a record marker.
func (r Record) Encode(w *codec.Writer) {
	w.Int(tagHash, r.hash)
	w.String(tagSalt, r.salt)
	w.EndRecord()
}

// DecodeRecord reads a record written by Encode.
func DecodeRecord(r *codec.Reader) Record {
	var rec Record
	for {
		tag, ok := r.NextUnit()
		if !ok {
			break
		}
		switch tag {
		case tagHash:
			rec.hash = r.Int()
		case tagSalt:
			rec.salt = r.String()
		default:
			r.Fail("unknown key record unit %q", tag)
		}
	}
	r.EndRecord()
	return rec
}

func hash(secret, salt string) int32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(secret))
	_, _ = h.Write([]byte(salt))
	return int32(h.Sum32())
}

func newSalt() string {
	return util.RandomChars(SaltLength, saltBase, saltRange)
}
