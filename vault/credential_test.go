package vault

import (
	"bytes"
	"testing"

	"github.com/credkeep/credkeep/crypto"
	"github.com/credkeep/credkeep/internal/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "static-key-0123456789abcdefghijk"

func newTestCredential(t *testing.T) *Credential {
	t.Helper()
	c, err := NewCredential("example.com", "alice", "hunter2", "", testKey)
	require.NoError(t, err)
	require.NoError(t, c.AddQuestions([]QA{
		{Question: "What was your first pet?", Answer: "Rex"},
		{Question: "What city were you born in?", Answer: "Oslo"},
		{Question: "What was your first car?", Answer: "Saab"},
	}, testKey))
	require.NoError(t, c.AddBackups([]string{"AAAA-1111", "BBBB-2222", "aaaa-3333"}, testKey))
	return c
}

func questionTexts(c *Credential) []string {
	var out []string
	for _, q := range c.Questions() {
		out = append(out, q.Text)
	}
	return out
}

func backupCodes(c *Credential, k string) []string {
	var out []string
	for _, b := range c.Backups() {
		out = append(out, b.Open(k))
	}
	return out
}

func TestNewCredential(t *testing.T) {
	c, err := NewCredential("example.com", "alice", "hunter2", "", testKey)
	require.NoError(t, err)
	assert.Equal(t, "example.com", c.Name())
	assert.Equal(t, "alice", c.Username())
	assert.Equal(t, "hunter2", c.Password(testKey))
	assert.Equal(t, NoSecurityLevel, c.SecurityLevel(testKey))
	assert.False(t, c.HasSecurityLevel(testKey))

	require.NoError(t, c.SetSecurityLevel("HIGH", testKey))
	assert.True(t, c.HasSecurityLevel(testKey))
	assert.Equal(t, "HIGH", c.SecurityLevel(testKey))

	require.NoError(t, c.SetSecurityLevel("", testKey))
	assert.Equal(t, NoSecurityLevel, c.SecurityLevel(testKey))

	_, err = NewCredential("x", "y", string(make([]byte, crypto.MaxSecretLength+1)), "", testKey)
	assert.ErrorIs(t, err, crypto.ErrSecretTooLong)
}

func TestCredential_DeleteQuestions(t *testing.T) {
	t.Run("FirstMatchOnePerQuery", func(t *testing.T) {
		c := newTestCredential(t)
		n := c.DeleteQuestions([]string{"FIRST"}, nil)
		assert.Equal(t, 1, n)
		assert.Equal(t, []string{"What city were you born in?", "What was your first car?"}, questionTexts(c))
	})

	t.Run("RepeatedQueryDeletesAgain", func(t *testing.T) {
		c := newTestCredential(t)
		n := c.DeleteQuestions([]string{"first", "first"}, nil)
		assert.Equal(t, 2, n)
		assert.Equal(t, []string{"What city were you born in?"}, questionTexts(c))
	})

	t.Run("DeclinedMatchConsumesQuery", func(t *testing.T) {
		c := newTestCredential(t)
		var asked []string
		confirm := func(match string) bool {
			asked = append(asked, match)
			return false
		}
		n := c.DeleteQuestions([]string{"first"}, confirm)
		assert.Zero(t, n)
		assert.Equal(t, []string{"What was your first pet?"}, asked)
		assert.Len(t, c.Questions(), 3)
	})

	t.Run("NoMatch", func(t *testing.T) {
		c := newTestCredential(t)
		called := false
		n := c.DeleteQuestions([]string{"school"}, func(string) bool { called = true; return true })
		assert.Zero(t, n)
		assert.False(t, called)
	})

	t.Run("EmptyQueryMatchesFirst", func(t *testing.T) {
		c := newTestCredential(t)
		n := c.DeleteQuestions([]string{"", ""}, nil)
		assert.Equal(t, 2, n)
		assert.Equal(t, []string{"What was your first car?"}, questionTexts(c))
	})
}

func TestCredential_DeleteByIndex(t *testing.T) {
	c := newTestCredential(t)

	assert.True(t, c.DeleteQuestion(1))
	assert.Equal(t, []string{"What was your first pet?", "What was your first car?"}, questionTexts(c))
	assert.False(t, c.DeleteQuestion(2))
	assert.False(t, c.DeleteQuestion(-1))

	assert.True(t, c.DeleteBackup(0))
	assert.Equal(t, []string{"BBBB-2222", "aaaa-3333"}, backupCodes(c, testKey))
	assert.False(t, c.DeleteBackup(5))
}

func TestCredential_DeleteBackups(t *testing.T) {
	c := newTestCredential(t)
	var asked []string
	n := c.DeleteBackups([]string{"aaaa", "aaaa", "zzzz"}, testKey, func(m string) bool {
		asked = append(asked, m)
		return true
	})
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"AAAA-1111", "aaaa-3333"}, asked)
	assert.Equal(t, []string{"BBBB-2222"}, backupCodes(c, testKey))
}

func TestCredential_DeleteBackupsEmptyQuery(t *testing.T) {
	c := newTestCredential(t)
	n := c.DeleteBackups([]string{""}, testKey, nil)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"BBBB-2222", "aaaa-3333"}, backupCodes(c, testKey))
}

func TestCredential_AccessorsReturnCopies(t *testing.T) {
	c := newTestCredential(t)
	qs := c.Questions()
	qs[0].Text = "changed"
	assert.Equal(t, "What was your first pet?", c.Questions()[0].Text)

	bs := c.Backups()
	bs[0] = crypto.Secret{}
	assert.Equal(t, "AAAA-1111", c.Backups()[0].Open(testKey))
}

func TestCredential_AddAllOrNothing(t *testing.T) {
	c := newTestCredential(t)
	long := string(make([]byte, crypto.MaxSecretLength+1))

	err := c.AddQuestions([]QA{{Question: "ok?", Answer: "yes"}, {Question: "too long", Answer: long}}, testKey)
	assert.ErrorIs(t, err, crypto.ErrSecretTooLong)
	assert.Len(t, c.Questions(), 3)

	err = c.AddBackups([]string{"fine", long}, testKey)
	assert.ErrorIs(t, err, crypto.ErrSecretTooLong)
	assert.Len(t, c.Backups(), 3)
}

func TestCredential_Rekey(t *testing.T) {
	c := newTestCredential(t)
	require.NoError(t, c.SetSecurityLevel("HIGH", testKey))

	const newKey = "a-completely-different-static-k"
	require.NoError(t, c.Rekey(newKey, testKey))

	assert.Equal(t, "hunter2", c.Password(newKey))
	assert.Equal(t, "HIGH", c.SecurityLevel(newKey))
	assert.Equal(t, "Rex", c.Questions()[0].Answer.Open(newKey))
	assert.Equal(t, []string{"AAAA-1111", "BBBB-2222", "aaaa-3333"}, backupCodes(c, newKey))
	assert.NotEqual(t, "hunter2", c.Password(testKey))
}

func TestCredential_Codec(t *testing.T) {
	full := newTestCredential(t)
	bare, err := NewCredential("bare.example", "", "", "LOW", testKey)
	require.NoError(t, err)

	var buf bytes.Buffer
	w := codec.NewWriter(&buf)
	full.encode(w)
	bare.encode(w)
	require.NoError(t, w.Flush())

	r := codec.NewReader(&buf)
	got := decodeCredential(r)
	require.NoError(t, r.Err())
	assert.Equal(t, "example.com", got.Name())
	assert.Equal(t, "alice", got.Username())
	assert.Equal(t, "hunter2", got.Password(testKey))
	assert.Equal(t, NoSecurityLevel, got.SecurityLevel(testKey))
	assert.Equal(t, questionTexts(full), questionTexts(got))
	assert.Equal(t, "Saab", got.Questions()[2].Answer.Open(testKey))
	assert.Equal(t, backupCodes(full, testKey), backupCodes(got, testKey))

	got = decodeCredential(r)
	require.NoError(t, r.Err())
	assert.Equal(t, "bare.example", got.Name())
	assert.Equal(t, "", got.Username())
	assert.Equal(t, "", got.Password(testKey))
	assert.Equal(t, "LOW", got.SecurityLevel(testKey))
	assert.Empty(t, got.Questions())
	assert.Empty(t, got.Backups())
	assert.True(t, r.AtEOF())
}
