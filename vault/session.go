package vault

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/awnumar/memguard"
	"github.com/credkeep/credkeep/internal/codec"
	"github.com/credkeep/credkeep/internal/util"
	"github.com/credkeep/credkeep/key"
	"github.com/credkeep/credkeep/storage"
)

// Credentials blob tags.
const (
	groupKeyCheck   byte = 'K'
	groupCredential byte = 'C'
)

// Field names a credential attribute for ModifyCredential.
type Field int

const (
	FieldName Field = iota
	FieldUsername
	FieldPassword
	FieldSecurityLevel
)

func (f Field) String() string {
	switch f {
	case FieldName:
		return "name"
	case FieldUsername:
		return "username"
	case FieldPassword:
		return "password"
	case FieldSecurityLevel:
		return "security level"
	}
	return fmt.Sprintf("Field(%d)", int(f))
}

// ParseField maps a field name or its first letter (n, u, p, l) to a Field.
func ParseField(s string) (Field, error) {
	switch s {
	case "name", "n":
		return FieldName, nil
	case "username", "user", "u":
		return FieldUsername, nil
	case "password", "p":
		return FieldPassword, nil
	case "level", "security-level", "l":
		return FieldSecurityLevel, nil
	}
	return 0, validationErrorf("unknown field %q", s)
}

// Revealed is a credential with every secret decrypted.
type Revealed struct {
	Name          string
	Username      string
	Password      string
	SecurityLevel string // empty when none is assigned
	Questions     []QA
	Backups       []string
}

// Session holds the decrypted key material for an authenticated user along
// with the credential list and the security levels.
// Callers must call Logout when done to drop key material.
type Session struct {
	store       *Store
	id          string
	logger      *slog.Logger
	keystore    *key.Keystore
	passphrase  *memguard.Enclave
	key         *memguard.Enclave
	credentials []*Credential
	levels      *SecLevelManager
}

// ID returns the session identifier used in log lines.
func (s *Session) ID() string {
	return s.id
}

// LoggedIn reports whether the session still holds key material.
func (s *Session) LoggedIn() bool {
	return s.key != nil
}

// Logout drops the passphrase, the encryption key and all loaded data.
// Unsaved changes are lost.
func (s *Session) Logout() {
	if !s.LoggedIn() {
		return
	}
	s.passphrase = nil
	s.key = nil
	s.keystore = nil
	s.credentials = nil
	s.levels = nil
	s.logger.LogAttrs(context.Background(), slog.LevelInfo, "logout")
}

func openEnclave(e *memguard.Enclave) (string, error) {
	if e == nil {
		return "", ErrSessionClosed
	}
	buf, err := e.Open()
	if err != nil {
		return "", fmt.Errorf("opening enclave: %w", err)
	}
	defer buf.Destroy()
	return string(buf.Bytes()), nil
}

func (s *Session) encryptionKey() (string, error) {
	return openEnclave(s.key)
}

// Load replaces the credential list with the contents of the credentials
// blob called name. A missing blob yields an empty list. A blob written under
// a different encryption key is rejected with ErrKeyMismatch and leaves the
// list empty. A damaged blob yields the credentials read before the damage.
func (s *Session) Load(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	encKey, err := s.encryptionKey()
	if err != nil {
		return err
	}
	s.credentials = nil

	data, err := s.store.repo.Load(name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("loading credentials: %w", err)
	}

	r := codec.NewReader(bytes.NewReader(data))
	var loaded []*Credential
	for {
		tag, ok := r.NextGroup()
		if !ok {
			break
		}
		switch tag {
		case groupKeyCheck:
			rec := key.DecodeRecord(r)
			if r.Err() == nil && !rec.Verify(encKey) {
				s.logger.LogAttrs(ctx, slog.LevelWarn, "credentials written under another key",
					slog.String("name", name))
				return fmt.Errorf("loading %s: %w", name, ErrKeyMismatch)
			}
		case groupCredential:
			for !r.AtEndOfRecord() {
				c := decodeCredential(r)
				if r.Err() != nil {
					break
				}
				if findIn(loaded, c.name) != nil {
					s.logger.LogAttrs(ctx, slog.LevelWarn, "skipping duplicate credential",
						slog.String("credential", c.name))
					continue
				}
				loaded = append(loaded, c)
			}
			r.EndRecord()
		default:
			r.Fail("unknown credentials group %q", tag)
		}
	}
	if err := r.Err(); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "credentials file damaged; keeping credentials read before the fault",
			slog.String("name", name),
			slog.Int("count", len(loaded)),
			slog.String("error", err.Error()),
		)
	}

	s.credentials = loaded
	s.logger.LogAttrs(ctx, slog.LevelDebug, "credentials loaded",
		slog.String("name", name), slog.Int("count", len(loaded)))
	return nil
}

// Save writes the credentials blob called name and the security level blob.
func (s *Session) Save(ctx context.Context, name string) error {
	if err := s.SaveCredentials(ctx, name); err != nil {
		return err
	}
	return s.SaveSecLevels(ctx)
}

// SaveCredentials rewrites the credentials blob called name.
func (s *Session) SaveCredentials(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	encKey, err := s.encryptionKey()
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	w := codec.NewWriter(&buf)
	w.Group(groupKeyCheck)
	key.NewRecord(encKey).Encode(w)
	w.Group(groupCredential)
	for _, c := range s.credentials {
		c.encode(w)
	}
	w.EndRecord()
	if err := w.Flush(); err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}
	if err := s.store.repo.Store(name, buf.Bytes()); err != nil {
		return fmt.Errorf("storing credentials: %w", err)
	}
	s.logger.LogAttrs(ctx, slog.LevelDebug, "credentials saved",
		slog.String("name", name), slog.Int("count", len(s.credentials)))
	return nil
}

// SaveSecLevels rewrites the security level blob.
func (s *Session) SaveSecLevels(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.LoggedIn() {
		return ErrSessionClosed
	}

	var buf bytes.Buffer
	w := codec.NewWriter(&buf)
	s.levels.Encode(w)
	if err := w.Flush(); err != nil {
		return fmt.Errorf("encoding security levels: %w", err)
	}
	if err := s.store.repo.Store(s.store.secLevelName, buf.Bytes()); err != nil {
		return fmt.Errorf("storing security levels: %w", err)
	}
	s.logger.LogAttrs(ctx, slog.LevelDebug, "security levels saved", slog.Int("count", s.levels.Len()))
	return nil
}

// RotateMasterKey changes the master passphrase. Only the keystore is
// rewritten: credentials stay encrypted under the unchanged static key.
func (s *Session) RotateMasterKey(ctx context.Context, newPassphrase string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	old, err := openEnclave(s.passphrase)
	if err != nil {
		return err
	}
	if newPassphrase == "" {
		return validationErrorf("passphrase must not be empty")
	}
	if err := s.keystore.Rotate(newPassphrase, old); err != nil {
		return fmt.Errorf("rotating master key: %w", err)
	}
	s.passphrase = memguard.NewEnclave([]byte(newPassphrase))
	s.logger.LogAttrs(ctx, slog.LevelInfo, "master key rotated")
	return nil
}

// Credentials

func findIn(list []*Credential, name string) *Credential {
	for _, c := range list {
		if c.name == name {
			return c
		}
	}
	return nil
}

// FindCredential returns the credential called name, or nil.
func (s *Session) FindCredential(name string) *Credential {
	return findIn(s.credentials, name)
}

func (s *Session) credential(name string) (*Credential, error) {
	if !s.LoggedIn() {
		return nil, ErrSessionClosed
	}
	c := s.FindCredential(name)
	if c == nil {
		return nil, fmt.Errorf("credential %q: %w", name, ErrNotFound)
	}
	return c, nil
}

// levelCode checks that code is empty or names an existing level.
func (s *Session) levelCode(code string) error {
	if code != "" && s.levels.Find(code) == nil {
		return fmt.Errorf("security level %q: %w", code, ErrNotFound)
	}
	return nil
}

// Credentials returns the credential list in insertion order.
func (s *Session) Credentials() []*Credential {
	return slices.Clone(s.credentials)
}

// Search returns the credentials whose name contains query, ignoring case.
func (s *Session) Search(query string) []*Credential {
	var out []*Credential
	for _, c := range s.credentials {
		if util.ContainsFold(c.name, query) {
			out = append(out, c)
		}
	}
	return out
}

// AddCredential adds a credential, or updates the username, password and
// level of the existing one with the same name. An empty levelCode means no
// level.
func (s *Session) AddCredential(name, username, password, levelCode string) error {
	encKey, err := s.encryptionKey()
	if err != nil {
		return err
	}
	if err := validateName(name, "credential name"); err != nil {
		return err
	}
	if len(username) > MaxNameLength {
		return validationErrorf("username exceeds maximum length of %d", MaxNameLength)
	}
	if err := validateSecret(password, "password"); err != nil {
		return err
	}
	if err := s.levelCode(levelCode); err != nil {
		return err
	}

	if c := s.FindCredential(name); c != nil {
		if err := c.SetPassword(password, encKey); err != nil {
			return err
		}
		if err := c.SetSecurityLevel(levelCode, encKey); err != nil {
			return err
		}
		c.SetUsername(username)
		s.logger.Debug("credential updated", slog.String("credential", name))
		return nil
	}

	c, err := NewCredential(name, username, password, levelCode, encKey)
	if err != nil {
		return err
	}
	s.credentials = append(s.credentials, c)
	s.logger.Debug("credential added", slog.String("credential", name))
	return nil
}

// AddCredentialFromLevel adds a credential whose password is the shared
// password of the level with levelCode.
func (s *Session) AddCredentialFromLevel(name, username, levelCode string) error {
	encKey, err := s.encryptionKey()
	if err != nil {
		return err
	}
	l := s.levels.Find(levelCode)
	if l == nil {
		return fmt.Errorf("security level %q: %w", levelCode, ErrNotFound)
	}
	if !l.HasPassword() {
		return validationErrorf("security level %q has no shared password", levelCode)
	}
	return s.AddCredential(name, username, l.Password(encKey), levelCode)
}

// ModifyCredential changes one field of the credential called name.
func (s *Session) ModifyCredential(name string, field Field, value string) error {
	c, err := s.credential(name)
	if err != nil {
		return err
	}
	encKey, err := s.encryptionKey()
	if err != nil {
		return err
	}

	switch field {
	case FieldName:
		if err := validateName(value, "credential name"); err != nil {
			return err
		}
		if value != name && s.FindCredential(value) != nil {
			return validationErrorf("credential %q already exists", value)
		}
		c.setName(value)
	case FieldUsername:
		if len(value) > MaxNameLength {
			return validationErrorf("username exceeds maximum length of %d", MaxNameLength)
		}
		c.SetUsername(value)
	case FieldPassword:
		if err := validateSecret(value, "password"); err != nil {
			return err
		}
		return c.SetPassword(value, encKey)
	case FieldSecurityLevel:
		if err := s.levelCode(value); err != nil {
			return err
		}
		return c.SetSecurityLevel(value, encKey)
	default:
		return validationErrorf("unknown field %v", field)
	}
	return nil
}

// DeleteCredential removes the credential called name.
func (s *Session) DeleteCredential(name string) bool {
	if !s.LoggedIn() {
		return false
	}
	i := slices.IndexFunc(s.credentials, func(c *Credential) bool { return c.name == name })
	if i < 0 {
		return false
	}
	s.credentials = slices.Delete(s.credentials, i, i+1)
	s.logger.Debug("credential deleted", slog.String("credential", name))
	return true
}

// Reveal returns the credential called name with all secrets decrypted.
func (s *Session) Reveal(name string) (Revealed, error) {
	c, err := s.credential(name)
	if err != nil {
		return Revealed{}, err
	}
	encKey, err := s.encryptionKey()
	if err != nil {
		return Revealed{}, err
	}

	out := Revealed{
		Name:     c.name,
		Username: c.username,
		Password: c.Password(encKey),
	}
	if c.HasSecurityLevel(encKey) {
		out.SecurityLevel = c.SecurityLevel(encKey)
	}
	for _, q := range c.questions {
		out.Questions = append(out.Questions, QA{Question: q.Text, Answer: q.Answer.Open(encKey)})
	}
	for _, b := range c.backups {
		out.Backups = append(out.Backups, b.Open(encKey))
	}
	return out, nil
}

// SetSecurityLevel assigns the level with code to the credential called
// name; an empty code clears the assignment.
func (s *Session) SetSecurityLevel(name, code string) error {
	return s.ModifyCredential(name, FieldSecurityLevel, code)
}

// BulkSetSecurityLevel assigns the level with code to every named credential
// and returns how many were updated. Unknown names are skipped.
func (s *Session) BulkSetSecurityLevel(code string, names []string) int {
	if !s.LoggedIn() || s.levelCode(code) != nil {
		return 0
	}
	n := 0
	for _, name := range names {
		if s.SetSecurityLevel(name, code) == nil {
			n++
		}
	}
	return n
}

// Questions and backup codes

// AddQuestions appends security questions to the credential called name.
func (s *Session) AddQuestions(name string, qas []QA) error {
	c, err := s.credential(name)
	if err != nil {
		return err
	}
	for _, qa := range qas {
		if err := validateQuestion(qa.Question); err != nil {
			return err
		}
		if err := validateSecret(qa.Answer, "answer"); err != nil {
			return err
		}
	}
	encKey, err := s.encryptionKey()
	if err != nil {
		return err
	}
	return c.AddQuestions(qas, encKey)
}

// DeleteQuestions deletes at most one question per query from the credential
// called name, asking confirm first. It returns the number deleted.
func (s *Session) DeleteQuestions(name string, queries []string, confirm ConfirmFunc) int {
	c, err := s.credential(name)
	if err != nil {
		return 0
	}
	return c.DeleteQuestions(queries, confirm)
}

// DeleteQuestion removes the question at index from the credential called name.
func (s *Session) DeleteQuestion(name string, index int) bool {
	c, err := s.credential(name)
	return err == nil && c.DeleteQuestion(index)
}

// AddBackups appends backup codes to the credential called name.
func (s *Session) AddBackups(name string, codes []string) error {
	c, err := s.credential(name)
	if err != nil {
		return err
	}
	for _, code := range codes {
		if err := validateSecret(code, "backup code"); err != nil {
			return err
		}
	}
	encKey, err := s.encryptionKey()
	if err != nil {
		return err
	}
	return c.AddBackups(codes, encKey)
}

// DeleteBackups deletes at most one backup code per query from the
// credential called name, asking confirm first. It returns the number
// deleted.
func (s *Session) DeleteBackups(name string, queries []string, confirm ConfirmFunc) int {
	c, err := s.credential(name)
	if err != nil {
		return 0
	}
	encKey, err := s.encryptionKey()
	if err != nil {
		return 0
	}
	return c.DeleteBackups(queries, encKey, confirm)
}

// DeleteBackup removes the backup code at index from the credential called name.
func (s *Session) DeleteBackup(name string, index int) bool {
	c, err := s.credential(name)
	return err == nil && c.DeleteBackup(index)
}

// Security levels

func (s *Session) secLevel(code string) (*SecurityLevel, error) {
	if !s.LoggedIn() {
		return nil, ErrSessionClosed
	}
	l := s.levels.Find(code)
	if l == nil {
		return nil, fmt.Errorf("security level %q: %w", code, ErrNotFound)
	}
	return l, nil
}

// FindSecLevel returns the level with code, or nil.
func (s *Session) FindSecLevel(code string) *SecurityLevel {
	if !s.LoggedIn() {
		return nil
	}
	return s.levels.Find(code)
}

// SecLevels returns every level in insertion order.
func (s *Session) SecLevels() []*SecurityLevel {
	if !s.LoggedIn() {
		return nil
	}
	return s.levels.Levels()
}

// AddSecLevel adds a level. An empty password means no shared password.
// It reports false when the code is taken or the input is invalid.
func (s *Session) AddSecLevel(code, password string, months int, due Date) bool {
	encKey, err := s.encryptionKey()
	if err != nil {
		return false
	}
	if validateLevelCode(code) != nil {
		return false
	}
	if validateMonths(months) != nil || validateSecret(password, "password") != nil || due.IsZero() {
		return false
	}
	if s.levels.Find(code) != nil {
		return false
	}

	l := NewSecurityLevel(code, months, due)
	if password != "" {
		if err := l.SetPassword(password, encKey); err != nil {
			return false
		}
	}
	s.levels.Add(l)
	s.logger.Debug("security level added", slog.String("security_level", code))
	return true
}

// DeleteSecLevel removes the level with code and its history. Credentials
// that name the level keep their assignment.
func (s *Session) DeleteSecLevel(code string) bool {
	if !s.LoggedIn() {
		return false
	}
	return s.levels.Delete(code)
}

// SetSecLevelPassword replaces the shared password of the level with code.
func (s *Session) SetSecLevelPassword(code, password string) error {
	if _, err := s.secLevel(code); err != nil {
		return err
	}
	if password == "" {
		return validationErrorf("password must not be empty")
	}
	if err := validateSecret(password, "password"); err != nil {
		return err
	}
	encKey, err := s.encryptionKey()
	if err != nil {
		return err
	}
	if !s.levels.SetPassword(code, password, encKey) {
		return fmt.Errorf("setting password of security level %q", code)
	}
	return nil
}

// ClearSecLevelPassword removes the shared password of the level with code.
func (s *Session) ClearSecLevelPassword(code string) bool {
	encKey, err := s.encryptionKey()
	if err != nil {
		return false
	}
	return s.levels.ClearPassword(code, encKey)
}

// SetSecLevelMonths changes the rotation period of the level with code.
func (s *Session) SetSecLevelMonths(code string, months int) error {
	l, err := s.secLevel(code)
	if err != nil {
		return err
	}
	if err := validateMonths(months); err != nil {
		return err
	}
	l.SetMonthsValid(months)
	return nil
}

// SetSecLevelDue changes the next due date of the level with code.
func (s *Session) SetSecLevelDue(code string, due Date) error {
	l, err := s.secLevel(code)
	if err != nil {
		return err
	}
	if due.IsZero() {
		return validationErrorf("due date must be set")
	}
	l.SetNextDue(due)
	return nil
}

// RotateSecLevel performs a scheduled rotation of the level with code:
// the due date moves forward past today and password becomes the shared
// password. A password equal to the current one or found in the history is
// rejected with ErrPasswordReused.
func (s *Session) RotateSecLevel(code, password string) error {
	l, err := s.secLevel(code)
	if err != nil {
		return err
	}
	if password == "" {
		return validationErrorf("password must not be empty")
	}
	if err := validateSecret(password, "password"); err != nil {
		return err
	}
	encKey, err := s.encryptionKey()
	if err != nil {
		return err
	}
	if l.IsOldPassword(password) || (l.HasPassword() && l.Password(encKey) == password) {
		return fmt.Errorf("security level %q: %w", code, ErrPasswordReused)
	}
	if err := l.UpdatePassword(password, encKey); err != nil {
		return err
	}
	s.logger.Info("security level rotated",
		slog.String("security_level", code),
		slog.String("next_due", l.NextDue().String()),
	)
	return nil
}

// Queries

// StaleCredentials returns the credentials whose password is one their
// security level has since rotated away from.
func (s *Session) StaleCredentials() []*Credential {
	encKey, err := s.encryptionKey()
	if err != nil {
		return nil
	}
	var out []*Credential
	for _, c := range s.credentials {
		if s.levels.IsOldPassword(c.SecurityLevel(encKey), c.Password(encKey)) {
			out = append(out, c)
		}
	}
	return out
}

// ExpiredSecLevels returns the levels whose rotation is due.
func (s *Session) ExpiredSecLevels() []*SecurityLevel {
	if !s.LoggedIn() {
		return nil
	}
	return s.levels.Expired()
}

// SyncPassword copies the shared password of the credential's level into the
// credential called name.
func (s *Session) SyncPassword(name string) error {
	c, err := s.credential(name)
	if err != nil {
		return err
	}
	encKey, err := s.encryptionKey()
	if err != nil {
		return err
	}
	code := c.SecurityLevel(encKey)
	l := s.levels.Find(code)
	if l == nil {
		return fmt.Errorf("security level %q: %w", code, ErrNotFound)
	}
	if !l.HasPassword() {
		return validationErrorf("security level %q has no shared password", code)
	}
	return c.SetPassword(l.Password(encKey), encKey)
}

// SyncStale runs SyncPassword on every stale credential and returns how
// many were updated.
func (s *Session) SyncStale() int {
	n := 0
	for _, c := range s.StaleCredentials() {
		if s.SyncPassword(c.name) == nil {
			n++
		}
	}
	if n > 0 {
		s.logger.Info("stale credentials synced", slog.Int("count", n))
	}
	return n
}
