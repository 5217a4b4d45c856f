package vault

import (
	"fmt"

	"github.com/credkeep/credkeep/crypto"
	"github.com/credkeep/credkeep/internal/codec"
	"github.com/credkeep/credkeep/internal/util"
)

// NoSecurityLevel is stored in place of a level code when a credential has
// none.
const NoSecurityLevel = "N/A"

// Credential record tags.
const (
	groupIdentity  byte = 'N'
	groupPassword  byte = 'P'
	groupLevel     byte = 'L'
	groupQuestions byte = 'S'
	groupBackups   byte = 'B'

	unitName     byte = 'N'
	unitUsername byte = 'U'
	unitQuestion byte = 'Q'
)

// ConfirmFunc is asked before a query-matched item is deleted. It receives a
// description of the match and returns whether to go ahead.
type ConfirmFunc func(match string) bool

// Question is a security question with its encrypted answer.
type Question struct {
	Text   string
	Answer crypto.Secret
}

// QA is a plaintext question and answer pair.
type QA struct {
	Question string
	Answer   string
}

// Credential is one site entry. Every field except the name, the username
// and the question texts is encrypted with the session's encryption key.
type Credential struct {
	name      string
	username  string
	password  crypto.Secret
	level     crypto.Secret
	questions []Question
	backups   []crypto.Secret
}

// NewCredential builds a credential. An empty level means none.
func NewCredential(name, username, password, level, key string) (*Credential, error) {
	c := &Credential{name: name, username: username}
	if err := c.SetPassword(password, key); err != nil {
		return nil, err
	}
	if err := c.SetSecurityLevel(level, key); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Credential) Name() string     { return c.name }
func (c *Credential) Username() string { return c.username }

func (c *Credential) setName(name string)         { c.name = name }
func (c *Credential) SetUsername(username string) { c.username = username }

// Password decrypts the password.
func (c *Credential) Password(key string) string {
	return c.password.Open(key)
}

// SetPassword replaces the password.
func (c *Credential) SetPassword(plain, key string) error {
	s, err := crypto.Seal(plain, key)
	if err != nil {
		return fmt.Errorf("sealing password: %w", err)
	}
	c.password = s
	return nil
}

// SecurityLevel decrypts the level code; NoSecurityLevel when unset.
func (c *Credential) SecurityLevel(key string) string {
	return c.level.Open(key)
}

// HasSecurityLevel reports whether a level is assigned.
func (c *Credential) HasSecurityLevel(key string) bool {
	return c.SecurityLevel(key) != NoSecurityLevel
}

// SetSecurityLevel assigns the level with the given code, or clears the
// assignment when code is empty.
func (c *Credential) SetSecurityLevel(code, key string) error {
	if code == "" {
		code = NoSecurityLevel
	}
	s, err := crypto.Seal(code, key)
	if err != nil {
		return fmt.Errorf("sealing security level: %w", err)
	}
	c.level = s
	return nil
}

// Questions returns a copy of the security questions.
func (c *Credential) Questions() []Question {
	return append([]Question(nil), c.questions...)
}

// Backups returns a copy of the encrypted backup codes.
func (c *Credential) Backups() []crypto.Secret {
	return append([]crypto.Secret(nil), c.backups...)
}

// AddQuestions appends questions in order. Either all are added or none.
func (c *Credential) AddQuestions(qas []QA, key string) error {
	add := make([]Question, 0, len(qas))
	for _, qa := range qas {
		s, err := crypto.Seal(qa.Answer, key)
		if err != nil {
			return fmt.Errorf("sealing answer to %q: %w", qa.Question, err)
		}
		add = append(add, Question{Text: qa.Question, Answer: s})
	}
	c.questions = append(c.questions, add...)
	return nil
}

// DeleteQuestions deletes, for each query, the first question whose text
// contains it, ignoring case, once confirm agrees. An empty query matches
// the first question. A declined match still uses up its query. It returns the number of questions deleted.
func (c *Credential) DeleteQuestions(queries []string, confirm ConfirmFunc) int {
	deleted := 0
	for _, q := range queries {
		i := c.findQuestion(q)
		if i < 0 || !ask(confirm, c.questions[i].Text) {
			continue
		}
		c.DeleteQuestion(i)
		deleted++
	}
	return deleted
}

func (c *Credential) findQuestion(query string) int {
	for i, q := range c.questions {
		if util.ContainsFold(q.Text, query) {
			return i
		}
	}
	return -1
}

// DeleteQuestion removes the question at index.
func (c *Credential) DeleteQuestion(index int) bool {
	if index < 0 || index >= len(c.questions) {
		return false
	}
	c.questions = append(c.questions[:index], c.questions[index+1:]...)
	return true
}

// AddBackups appends backup codes in order. Either all are added or none.
func (c *Credential) AddBackups(codes []string, key string) error {
	add := make([]crypto.Secret, 0, len(codes))
	for i, code := range codes {
		s, err := crypto.Seal(code, key)
		if err != nil {
			return fmt.Errorf("sealing backup code %d: %w", i+1, err)
		}
		add = append(add, s)
	}
	c.backups = append(c.backups, add...)
	return nil
}

// DeleteBackups is DeleteQuestions for backup codes; codes are decrypted
// with key to be matched.
func (c *Credential) DeleteBackups(queries []string, key string, confirm ConfirmFunc) int {
	deleted := 0
	for _, q := range queries {
		i, code := c.findBackup(q, key)
		if i < 0 || !ask(confirm, code) {
			continue
		}
		c.DeleteBackup(i)
		deleted++
	}
	return deleted
}

func (c *Credential) findBackup(query, key string) (int, string) {
	for i, b := range c.backups {
		if code := b.Open(key); util.ContainsFold(code, query) {
			return i, code
		}
	}
	return -1, ""
}

// DeleteBackup removes the backup code at index.
func (c *Credential) DeleteBackup(index int) bool {
	if index < 0 || index >= len(c.backups) {
		return false
	}
	c.backups = append(c.backups[:index], c.backups[index+1:]...)
	return true
}

// Rekey re-encrypts every secret field from oldKey to newKey. Nothing
// changes unless every field succeeds.
func (c *Credential) Rekey(newKey, oldKey string) error {
	password, level := c.password, c.level
	if err := password.Rekey(newKey, oldKey); err != nil {
		return fmt.Errorf("rekeying password: %w", err)
	}
	if err := level.Rekey(newKey, oldKey); err != nil {
		return fmt.Errorf("rekeying security level: %w", err)
	}
	questions := c.Questions()
	for i := range questions {
		if err := questions[i].Answer.Rekey(newKey, oldKey); err != nil {
			return fmt.Errorf("rekeying answer %d: %w", i+1, err)
		}
	}
	backups := c.Backups()
	for i := range backups {
		if err := backups[i].Rekey(newKey, oldKey); err != nil {
			return fmt.Errorf("rekeying backup code %d: %w", i+1, err)
		}
	}

	c.password, c.level = password, level
	c.questions, c.backups = questions, backups
	return nil
}

func ask(confirm ConfirmFunc, match string) bool {
	return confirm == nil || confirm(match)
}

func (c *Credential) encode(w *codec.Writer) {
	w.Group(groupIdentity)
	w.String(unitName, c.name)
	w.String(unitUsername, c.username)
	w.Group(groupPassword)
	c.password.Encode(w)
	w.Group(groupLevel)
	c.level.Encode(w)
	if len(c.questions) > 0 {
		w.Group(groupQuestions)
		for _, q := range c.questions {
			w.String(unitQuestion, q.Text)
			q.Answer.EncodeUnits(w)
			w.EndRecord()
		}
		w.EndRecord()
	}
	if len(c.backups) > 0 {
		w.Group(groupBackups)
		for _, b := range c.backups {
			b.Encode(w)
		}
		w.EndRecord()
	}
	w.EndRecord()
}

// decodeCredential reads one credential record. The result is only
// meaningful when r.Err() is nil afterwards.
func decodeCredential(r *codec.Reader) *Credential {
	c := &Credential{}
	for {
		tag, ok := r.NextGroup()
		if !ok {
			break
		}
		switch tag {
		case groupIdentity:
			c.decodeIdentity(r)
		case groupPassword:
			c.password = crypto.DecodeSecret(r)
		case groupLevel:
			c.level = crypto.DecodeSecret(r)
		case groupQuestions:
			for !r.AtEndOfRecord() {
				c.questions = append(c.questions, decodeQuestion(r))
			}
			r.EndRecord()
		case groupBackups:
			for !r.AtEndOfRecord() {
				c.backups = append(c.backups, crypto.DecodeSecret(r))
			}
			r.EndRecord()
		default:
			r.Fail("unknown credential group %q", tag)
		}
	}
	r.EndRecord()
	return c
}

func (c *Credential) decodeIdentity(r *codec.Reader) {
	for {
		tag, ok := r.NextUnit()
		if !ok {
			return
		}
		switch tag {
		case unitName:
			c.name = r.String()
		case unitUsername:
			c.username = r.String()
		default:
			r.Fail("unknown credential unit %q", tag)
		}
	}
}

func decodeQuestion(r *codec.Reader) Question {
	var q Question
	for {
		tag, ok := r.NextUnit()
		if !ok {
			break
		}
		if tag == unitQuestion {
			q.Text = r.String()
			continue
		}
		if !q.Answer.DecodeUnit(tag, r) {
			r.Fail("unknown question unit %q", tag)
		}
	}
	r.EndRecord()
	return q
}
