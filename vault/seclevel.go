package vault

import (
	"slices"
	"time"

	"github.com/credkeep/credkeep/crypto"
	"github.com/credkeep/credkeep/internal/codec"
	"github.com/credkeep/credkeep/key"
)

// Security level record tags.
const (
	groupLevels   byte = 'L'
	groupBasics   byte = 'B'
	groupDue      byte = 'U'
	groupShared   byte = 'P'
	groupHistory  byte = 'O'
	groupPrevious byte = 'P'
	groupChanged  byte = 'T'

	unitCode   byte = 'C'
	unitMonths byte = 'M'
)

// HistoryEntry remembers a password a level used to have. Only its hash is
// kept.
type HistoryEntry struct {
	Record key.Record
	Date   Date
}

// SecurityLevel is a named rotation policy shared by many credentials. It
// optionally carries a shared password, remembers the hashes of past shared
// passwords and knows when the next rotation is due.
type SecurityLevel struct {
	code     string
	password *crypto.Secret
	history  []HistoryEntry
	months   int
	nextDue  Date
	clock    Clock
}

// NewSecurityLevel returns a level without a shared password.
func NewSecurityLevel(code string, months int, nextDue Date) *SecurityLevel {
	return &SecurityLevel{code: code, months: months, nextDue: nextDue}
}

func (l *SecurityLevel) Code() string     { return l.code }
func (l *SecurityLevel) MonthsValid() int { return l.months }
func (l *SecurityLevel) NextDue() Date    { return l.nextDue }

func (l *SecurityLevel) SetMonthsValid(months int) { l.months = months }
func (l *SecurityLevel) SetNextDue(d Date)         { l.nextDue = d }

// HasPassword reports whether the level carries a shared password.
func (l *SecurityLevel) HasPassword() bool {
	return l.password != nil
}

// Password decrypts the shared password, or returns "" when there is none.
func (l *SecurityLevel) Password(key string) string {
	if l.password == nil {
		return ""
	}
	return l.password.Open(key)
}

// History returns a copy of the password history, oldest first.
func (l *SecurityLevel) History() []HistoryEntry {
	return slices.Clone(l.history)
}

func (l *SecurityLevel) today() Date {
	if l.clock == nil {
		return DateOf(time.Now())
	}
	return DateOf(l.clock())
}

// SetPassword replaces the shared password. The outgoing password, if any,
// is added to the history first.
func (l *SecurityLevel) SetPassword(password, key string) error {
	s, err := crypto.Seal(password, key)
	if err != nil {
		return err
	}
	l.archive(key)
	l.password = &s
	return nil
}

// ClearPassword drops the shared password after adding it to the history.
func (l *SecurityLevel) ClearPassword(key string) {
	l.archive(key)
	l.password = nil
}

func (l *SecurityLevel) archive(encKey string) {
	if l.password == nil {
		return
	}
	l.history = append(l.history, HistoryEntry{
		Record: key.NewRecord(l.password.Open(encKey)),
		Date:   l.today(),
	})
}

// UpdatePassword performs a scheduled rotation: the due date is moved forward
// by whole rotation periods until it lies in the future, then the password is
// replaced. A level with a zero period keeps its due date.
func (l *SecurityLevel) UpdatePassword(password, key string) error {
	today := l.today()
	due := l.nextDue
	for l.months > 0 && due.Compare(today) <= 0 {
		due = due.AddMonths(l.months)
	}
	if err := l.SetPassword(password, key); err != nil {
		return err
	}
	l.nextDue = due
	return nil
}

// IsExpired reports whether the next due date is today or earlier.
func (l *SecurityLevel) IsExpired() bool {
	return l.nextDue.Compare(l.today()) <= 0
}

// IsOldPassword reports whether candidate matches a password in the history.
// A level without a current shared password reports false.
func (l *SecurityLevel) IsOldPassword(candidate string) bool {
	if l.password == nil {
		return false
	}
	for _, h := range l.history {
		if h.Record.Verify(candidate) {
			return true
		}
	}
	return false
}

// SecLevelManager owns the security levels of a session. Codes are unique.
type SecLevelManager struct {
	levels []*SecurityLevel
	clock  Clock
}

// NewSecLevelManager returns an empty manager whose levels take "today" from
// clock.
func NewSecLevelManager(clock Clock) *SecLevelManager {
	return &SecLevelManager{clock: clock}
}

// Add appends level unless a level with the same code exists, in which case
// it reports false and changes nothing.
func (m *SecLevelManager) Add(level *SecurityLevel) bool {
	if m.Find(level.code) != nil {
		return false
	}
	level.clock = m.clock
	m.levels = append(m.levels, level)
	return true
}

// Delete removes the level with code, history included.
func (m *SecLevelManager) Delete(code string) bool {
	i := m.index(code)
	if i < 0 {
		return false
	}
	m.levels = slices.Delete(m.levels, i, i+1)
	return true
}

// Find returns the level with code, or nil.
func (m *SecLevelManager) Find(code string) *SecurityLevel {
	if i := m.index(code); i >= 0 {
		return m.levels[i]
	}
	return nil
}

func (m *SecLevelManager) index(code string) int {
	return slices.IndexFunc(m.levels, func(l *SecurityLevel) bool { return l.code == code })
}

// SetPassword sets the shared password of the level with code.
func (m *SecLevelManager) SetPassword(code, password, key string) bool {
	l := m.Find(code)
	return l != nil && l.SetPassword(password, key) == nil
}

// ClearPassword clears the shared password of the level with code.
func (m *SecLevelManager) ClearPassword(code, key string) bool {
	l := m.Find(code)
	if l == nil {
		return false
	}
	l.ClearPassword(key)
	return true
}

// IsOldPassword reports whether password is in the history of the level
// with code.
func (m *SecLevelManager) IsOldPassword(code, password string) bool {
	l := m.Find(code)
	return l != nil && l.IsOldPassword(password)
}

// Expired returns the levels that are due, in order.
func (m *SecLevelManager) Expired() []*SecurityLevel {
	var out []*SecurityLevel
	for _, l := range m.levels {
		if l.IsExpired() {
			out = append(out, l)
		}
	}
	return out
}

// Levels returns all levels in insertion order.
func (m *SecLevelManager) Levels() []*SecurityLevel {
	return slices.Clone(m.levels)
}

// Len returns the number of levels.
func (m *SecLevelManager) Len() int {
	return len(m.levels)
}

// Encode writes every level. A manager without levels writes nothing.
func (m *SecLevelManager) Encode(w *codec.Writer) {
	if len(m.levels) == 0 {
		return
	}
	w.Group(groupLevels)
	for _, l := range m.levels {
		l.encode(w)
	}
	w.EndRecord()
}

func (l *SecurityLevel) encode(w *codec.Writer) {
	w.Group(groupBasics)
	w.String(unitCode, l.code)
	w.Int(unitMonths, int32(l.months))
	w.Group(groupDue)
	l.nextDue.encode(w)
	if l.password != nil {
		w.Group(groupShared)
		l.password.Encode(w)
	}
	if len(l.history) > 0 {
		w.Group(groupHistory)
		for _, h := range l.history {
			w.Group(groupPrevious)
			h.Record.Encode(w)
			w.Group(groupChanged)
			h.Date.encode(w)
			w.EndRecord()
		}
		w.EndRecord()
	}
	w.EndRecord()
}

// DecodeSecLevels reads levels written by Encode into a new manager. When
// the input is malformed the levels read before the fault are kept and the
// fault is reported through r.Err.
func DecodeSecLevels(r *codec.Reader, clock Clock) *SecLevelManager {
	m := NewSecLevelManager(clock)
	for {
		tag, ok := r.NextGroup()
		if !ok {
			break
		}
		if tag != groupLevels {
			r.Fail("unknown security level file group %q", tag)
			break
		}
		for !r.AtEndOfRecord() {
			l := decodeSecLevel(r)
			if r.Err() != nil {
				break
			}
			if err := validateLevelCode(l.code); err != nil {
				r.Fail("security level %q: %v", l.code, err)
				break
			}
			m.Add(l)
		}
		r.EndRecord()
	}
	return m
}

func decodeSecLevel(r *codec.Reader) *SecurityLevel {
	l := &SecurityLevel{}
	for {
		tag, ok := r.NextGroup()
		if !ok {
			break
		}
		switch tag {
		case groupBasics:
			for {
				unit, ok := r.NextUnit()
				if !ok {
					break
				}
				switch unit {
				case unitCode:
					l.code = r.String()
				case unitMonths:
					l.months = int(r.Int())
				default:
					r.Fail("unknown security level unit %q", unit)
				}
			}
		case groupDue:
			l.nextDue = decodeDate(r)
		case groupShared:
			s := crypto.DecodeSecret(r)
			l.password = &s
		case groupHistory:
			for !r.AtEndOfRecord() {
				l.history = append(l.history, decodeHistoryEntry(r))
			}
			r.EndRecord()
		default:
			r.Fail("unknown security level group %q", tag)
		}
	}
	r.EndRecord()
	return l
}

func decodeHistoryEntry(r *codec.Reader) HistoryEntry {
	var h HistoryEntry
	for {
		tag, ok := r.NextGroup()
		if !ok {
			break
		}
		switch tag {
		case groupPrevious:
			h.Record = key.DecodeRecord(r)
		case groupChanged:
			h.Date = decodeDate(r)
		default:
			r.Fail("unknown history group %q", tag)
		}
	}
	r.EndRecord()
	return h
}
