package crypto

import (
	"bytes"
	"strings"
	"testing"

	"github.com/credkeep/credkeep/internal/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockKey(t *testing.T) {
	tests := []struct {
		name       string
		passphrase string
		want       string
	}{
		{"Empty", "", strings.Repeat("0", KeySize)},
		{"Short", "abc", "abc" + strings.Repeat("0", KeySize-3)},
		{"Exact", strings.Repeat("k", KeySize), strings.Repeat("k", KeySize)},
		{"Long", strings.Repeat("x", KeySize) + "ignored", strings.Repeat("x", KeySize)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := BlockKey(tt.passphrase)
			assert.Equal(t, tt.want, string(k[:]))
		})
	}
}

func TestEncryptDecrypt(t *testing.T) {
	tests := []struct {
		name  string
		plain string
	}{
		{"Empty", ""},
		{"Short", "hunter2"},
		{"WithNUL", "ab\x00cd"},
		{"Max", strings.Repeat("z", MaxSecretLength)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ct, nonce, err := Encrypt([]byte(tt.plain), "master")
			require.NoError(t, err)
			assert.Len(t, ct, len(tt.plain))

			got := Decrypt(ct, "master", nonce)
			assert.Equal(t, tt.plain, string(got))
		})
	}
}

func TestEncrypt_TooLong(t *testing.T) {
	_, _, err := Encrypt(bytes.Repeat([]byte("a"), MaxSecretLength+1), "master")
	assert.ErrorIs(t, err, ErrSecretTooLong)

	_, err = Seal(strings.Repeat("a", MaxSecretLength+1), "master")
	assert.ErrorIs(t, err, ErrSecretTooLong)
}

func TestDecrypt_WrongKey(t *testing.T) {
	plain := "correct horse battery staple"
	ct, nonce, err := Encrypt([]byte(plain), "right")
	require.NoError(t, err)

	got := Decrypt(ct, "wrong", nonce)
	assert.Len(t, got, len(plain))
	assert.NotEqual(t, plain, string(got))
}

func TestEncrypt_FreshNonce(t *testing.T) {
	ct1, n1, err := Encrypt([]byte("same"), "k")
	require.NoError(t, err)
	ct2, n2, err := Encrypt([]byte("same"), "k")
	require.NoError(t, err)

	assert.NotEqual(t, n1, n2)
	assert.NotEqual(t, ct1, ct2)
}

func TestSecret(t *testing.T) {
	s, err := Seal("p@ssw0rd", "old")
	require.NoError(t, err)
	assert.Equal(t, 8, s.Len())
	assert.Equal(t, "p@ssw0rd", s.Open("old"))

	t.Run("WrongKeySameLength", func(t *testing.T) {
		got := s.Open("other")
		assert.Len(t, got, s.Len())
		assert.NotEqual(t, "p@ssw0rd", got)
	})

	t.Run("Rekey", func(t *testing.T) {
		r := s
		oldNonce := r.nonce
		require.NoError(t, r.Rekey("new", "old"))
		assert.Equal(t, "p@ssw0rd", r.Open("new"))
		assert.NotEqual(t, oldNonce, r.nonce)
	})

	t.Run("ZeroValue", func(t *testing.T) {
		var z Secret
		assert.Equal(t, "", z.Open("anything"))
		assert.Zero(t, z.Len())
	})
}

func TestSecret_Codec(t *testing.T) {
	for _, plain := range []string{"", "backup-code-1234"} {
		s, err := Seal(plain, "key")
		require.NoError(t, err)

		var buf bytes.Buffer
		w := codec.NewWriter(&buf)
		s.Encode(w)
		require.NoError(t, w.Flush())

		r := codec.NewReader(&buf)
		got := DecodeSecret(r)
		require.NoError(t, r.Err())
		assert.True(t, r.AtEOF())
		assert.Equal(t, plain, got.Open("key"))
		assert.Equal(t, s.nonce, got.nonce)
	}
}

func TestDecodeSecret_Malformed(t *testing.T) {
	t.Run("BadNonceLength", func(t *testing.T) {
		var buf bytes.Buffer
		w := codec.NewWriter(&buf)
		w.Bytes(tagData, []byte("abc"))
		w.Bytes(tagNonce, []byte{1, 2, 3})
		w.EndRecord()
		require.NoError(t, w.Flush())

		r := codec.NewReader(&buf)
		DecodeSecret(r)
		assert.ErrorIs(t, r.Err(), codec.ErrMalformed)
	})

	t.Run("UnknownUnit", func(t *testing.T) {
		var buf bytes.Buffer
		w := codec.NewWriter(&buf)
		w.Int('X', 1)
		w.EndRecord()
		require.NoError(t, w.Flush())

		r := codec.NewReader(&buf)
		DecodeSecret(r)
		assert.ErrorIs(t, r.Err(), codec.ErrMalformed)
	})

	t.Run("Oversized", func(t *testing.T) {
		var buf bytes.Buffer
		w := codec.NewWriter(&buf)
		w.Bytes(tagData, make([]byte, MaxSecretLength+1))
		require.NoError(t, w.Flush())

		r := codec.NewReader(&buf)
		DecodeSecret(r)
		assert.ErrorIs(t, r.Err(), codec.ErrMalformed)
	})
}
