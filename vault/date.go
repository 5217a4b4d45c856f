package vault

import (
	"cmp"
	"fmt"
	"strconv"
	"time"

	"github.com/credkeep/credkeep/internal/codec"
)

const (
	dateLayout = "2006/01/02"
	tagDate    = 'T'
)

// Date is a calendar day with no time of day.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate returns the given date, normalized the way time.Date normalizes
// out-of-range values.
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a date in YYYY/MM/DD form.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, validationErrorf("date %q is not in YYYY/MM/DD form", s)
	}
	return DateOf(t), nil
}

// String formats the date as YYYY/MM/DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d/%02d/%02d", d.Year, int(d.Month), d.Day)
}

// IsZero reports whether the date was never set.
func (d Date) IsZero() bool {
	return d == Date{}
}

// Compare returns -1, 0 or +1 as d is before, equal to or after o. Days past
// the end of their month compare as the month's last day.
func (d Date) Compare(o Date) int {
	d, o = d.Effective(), o.Effective()
	switch {
	case d.Year != o.Year:
		return cmp.Compare(d.Year, o.Year)
	case d.Month != o.Month:
		return cmp.Compare(d.Month, o.Month)
	default:
		return cmp.Compare(d.Day, o.Day)
	}
}

// Effective returns the calendar day d stands for: a day past the end of the
// month is clamped to its last day.
func (d Date) Effective() Date {
	if d.IsZero() {
		return d
	}
	if last := daysIn(d.Year, d.Month); d.Day > last {
		d.Day = last
	}
	return d
}

// AddMonths moves the date forward by n months, carrying into the year. The
// day of the month is kept as is, so a level due on the 31st stays due on
// the 31st and falls on the last day of shorter months.
func (d Date) AddMonths(n int) Date {
	total := d.Year*12 + int(d.Month) - 1 + n
	return Date{Year: total / 12, Month: time.Month(total%12 + 1), Day: d.Day}
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func (d Date) encode(w *codec.Writer) {
	w.String(tagDate, d.String())
	w.EndRecord()
}

func decodeDate(r *codec.Reader) Date {
	var d Date
	for {
		tag, ok := r.NextUnit()
		if !ok {
			break
		}
		if tag != tagDate {
			r.Fail("unknown date unit %q", tag)
			break
		}
		s := r.String()
		if r.Err() != nil || s == (Date{}).String() {
			break
		}
		parsed, ok := parseStoredDate(s)
		if !ok {
			r.Fail("bad date %q", s)
			break
		}
		d = parsed
	}
	r.EndRecord()
	return d
}

// parseStoredDate accepts any YYYY/MM/DD with a month of 1-12 and a day of
// 1-31, including days such as 02/31 that AddMonths can produce.
func parseStoredDate(s string) (Date, bool) {
	if len(s) != len(dateLayout) || s[4] != '/' || s[7] != '/' {
		return Date{}, false
	}
	year, err1 := strconv.Atoi(s[:4])
	month, err2 := strconv.Atoi(s[5:7])
	day, err3 := strconv.Atoi(s[8:])
	if err1 != nil || err2 != nil || err3 != nil {
		return Date{}, false
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return Date{}, false
	}
	return Date{Year: year, Month: time.Month(month), Day: day}, true
}
