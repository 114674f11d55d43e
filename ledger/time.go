package ledger

import (
	"strings"
	"time"
)

// =============================================================================
// DATE - Day-precision ledger date
// =============================================================================

const DateLayout = "2006-01-02"

// MaxDate is a cutoff later than any ledger record, used to load the whole log.
var MaxDate = NewDate(9999, time.December, 31)

// Time-of-day layouts accepted after a space in ParseDate.
var timeLayouts = []string{"15:04:05", "15:04:05.999999", "15:04"}

// Date is a calendar day in UTC. The ledger never looks at time of day.
type Date struct {
	Time time.Time
}

// Constructors
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

func Today() Date {
	return DateOf(time.Now())
}

// ParseDate accepts "YYYY-MM-DD", an ISO timestamp whose date part comes
// first ("2025-04-01T10:00:00"), or a date followed by a space and a time of
// day ("2025-04-01 10:00"). Anything else is an InvalidDateError.
func ParseDate(s string) (Date, error) {
	raw, _, _ := strings.Cut(strings.TrimSpace(s), "T")
	day, clock, hasClock := strings.Cut(raw, " ")
	t, err := time.Parse(DateLayout, day)
	if err != nil {
		return Date{}, &InvalidDateError{Input: s, Err: err}
	}
	if hasClock {
		if err := parseClock(clock); err != nil {
			return Date{}, &InvalidDateError{Input: s, Err: err}
		}
	}
	return DateOf(t), nil
}

func parseClock(s string) error {
	var err error
	for _, layout := range timeLayouts {
		if _, err = time.Parse(layout, s); err == nil {
			return nil
		}
	}
	return err
}

// MustParseDate is ParseDate for literals in tests and fixtures.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Comparison
func (d Date) Before(other Date) bool        { return d.Time.Before(other.Time) }
func (d Date) After(other Date) bool         { return d.Time.After(other.Time) }
func (d Date) Equal(other Date) bool         { return d.Time.Equal(other.Time) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{Time: d.Time.AddDate(0, 0, n)} }

func (d Date) IsZero() bool   { return d.Time.IsZero() }
func (d Date) String() string { return d.Time.Format(DateLayout) }
