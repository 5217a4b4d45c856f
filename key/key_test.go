package key

import (
	"bytes"
	"errors"
	"testing"

	"github.com/credkeep/credkeep/internal/codec"
	"github.com/credkeep/credkeep/storage"
	"github.com/credkeep/credkeep/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord(t *testing.T) {
	rec := NewRecord("open sesame")

	assert.True(t, rec.Verify("open sesame"))
	assert.False(t, rec.Verify("open sesame "))
	assert.False(t, rec.Verify(""))
	assert.False(t, rec.IsZero())
	assert.True(t, Record{}.IsZero())

	require.Len(t, rec.Salt(), SaltLength)
	for i := 0; i < len(rec.Salt()); i++ {
		c := rec.Salt()[i]
		assert.True(t, c >= 'A' && c < 'A'+32, "salt char %q out of range", c)
	}

	t.Run("VerifyKeepsSalt", func(t *testing.T) {
		salt := rec.Salt()
		rec.Verify("wrong")
		rec.Verify("open sesame")
		assert.Equal(t, salt, rec.Salt())
	})

	t.Run("SaltChangesHash", func(t *testing.T) {
		other := Record{hash: hash("open sesame", "AAAAAAAA"), salt: "AAAAAAAA"}
		assert.True(t, other.Verify("open sesame"))
		assert.NotEqual(t, hash("open sesame", "AAAAAAAA"), hash("open sesame", "BBBBBBBB"))
	})
}

func TestRecord_Codec(t *testing.T) {
	rec := NewRecord("pw")

	var buf bytes.Buffer
	w := codec.NewWriter(&buf)
	rec.Encode(w)
	require.NoError(t, w.Flush())

	r := codec.NewReader(&buf)
	got := DecodeRecord(r)
	require.NoError(t, r.Err())
	assert.Equal(t, rec, got)
	assert.True(t, got.Verify("pw"))
}

func TestKeystore_FirstLogin(t *testing.T) {
	repo := memory.NewRepository()

	ks, err := OpenKeystore(repo, "key.dat")
	require.NoError(t, err)
	assert.False(t, ks.Initialized())
	assert.Equal(t, "", ks.EncryptionKey("anything"))

	ok, err := ks.Login("master")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, ks.Initialized())

	staticKey := ks.EncryptionKey("master")
	require.Len(t, staticKey, StaticKeyLength)
	for i := 0; i < len(staticKey); i++ {
		assert.True(t, staticKey[i] >= '!' && staticKey[i] <= '|')
	}

	_, err = repo.Load("key.dat")
	require.NoError(t, err, "first login should persist the keystore")

	t.Run("Reopen", func(t *testing.T) {
		again, err := OpenKeystore(repo, "key.dat")
		require.NoError(t, err)
		assert.True(t, again.Initialized())

		ok, err := again.Login("master")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, staticKey, again.EncryptionKey("master"))

		ok, err = again.Login("not it")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, "", again.EncryptionKey("not it"))
	})
}

func TestKeystore_Rotate(t *testing.T) {
	repo := memory.NewRepository()
	ks, err := OpenKeystore(repo, "key.dat")
	require.NoError(t, err)

	assert.ErrorIs(t, ks.Rotate("new", "old"), ErrNotInitialized)

	_, err = ks.Login("old")
	require.NoError(t, err)
	staticKey := ks.EncryptionKey("old")

	t.Run("WrongOldPassphrase", func(t *testing.T) {
		err := ks.Rotate("new", "guess")
		assert.ErrorIs(t, err, ErrAuthentication)
		assert.True(t, ks.Verify("old"))
	})

	t.Run("PreservesStaticKey", func(t *testing.T) {
		require.NoError(t, ks.Rotate("new", "old"))
		assert.False(t, ks.Verify("old"))
		assert.True(t, ks.Verify("new"))
		assert.Equal(t, staticKey, ks.EncryptionKey("new"))

		reopened, err := OpenKeystore(repo, "key.dat")
		require.NoError(t, err)
		ok, err := reopened.Login("new")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, staticKey, reopened.EncryptionKey("new"))
	})
}

type failingRepo struct {
	storage.Repository
}

func (failingRepo) Store(string, []byte) error {
	return errors.New("disk full")
}

func TestKeystore_StoreFailureLeavesStateUnchanged(t *testing.T) {
	repo := memory.NewRepository()
	ks, err := OpenKeystore(repo, "key.dat")
	require.NoError(t, err)
	_, err = ks.Login("old")
	require.NoError(t, err)
	staticKey := ks.EncryptionKey("old")

	ks.repo = failingRepo{repo}
	assert.Error(t, ks.Rotate("new", "old"))
	assert.True(t, ks.Verify("old"))
	assert.Equal(t, staticKey, ks.EncryptionKey("old"))

	fresh, err := OpenKeystore(failingRepo{memory.NewRepository()}, "key.dat")
	require.NoError(t, err)
	ok, err := fresh.Login("pw")
	assert.Error(t, err)
	assert.False(t, ok)
	assert.False(t, fresh.Initialized())
}

func TestOpenKeystore_Malformed(t *testing.T) {
	repo := memory.NewRepository()
	ks, err := OpenKeystore(repo, "key.dat")
	require.NoError(t, err)
	_, err = ks.Login("pw")
	require.NoError(t, err)
	good, err := repo.Load("key.dat")
	require.NoError(t, err)

	t.Run("Truncated", func(t *testing.T) {
		require.NoError(t, repo.Store("cut.dat", good[:len(good)-5]))
		_, err := OpenKeystore(repo, "cut.dat")
		assert.ErrorIs(t, err, codec.ErrMalformed)
	})

	t.Run("MasterOnly", func(t *testing.T) {
		var buf bytes.Buffer
		w := codec.NewWriter(&buf)
		w.Group(groupMaster)
		NewRecord("pw").Encode(w)
		require.NoError(t, w.Flush())
		require.NoError(t, repo.Store("half.dat", buf.Bytes()))

		_, err := OpenKeystore(repo, "half.dat")
		assert.ErrorIs(t, err, codec.ErrMalformed)
	})

	t.Run("TrailingGarbage", func(t *testing.T) {
		require.NoError(t, repo.Store("tail.dat", append(append([]byte{}, good...), 'x')))
		ks, err := OpenKeystore(repo, "tail.dat")
		require.NoError(t, err)
		assert.True(t, ks.Verify("pw"))
	})

	t.Run("Empty", func(t *testing.T) {
		require.NoError(t, repo.Store("empty.dat", nil))
		ks, err := OpenKeystore(repo, "empty.dat")
		require.NoError(t, err)
		assert.False(t, ks.Initialized())
	})
}
