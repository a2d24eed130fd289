// Package period provides the month-truncated time bucket used across
// the processed and metrics layers. Every normalized row carries exactly
// one Month; metric functions that look backwards (cumulative, YoY)
// operate on its total order.
package period

import (
	"fmt"
	"time"
)

// Month is a calendar month in the proleptic Gregorian calendar.
// The zero value is invalid; construct via Parse, FromParts or FromTime.
type Month struct {
	Year  int
	Month time.Month
}

// Parse parses a month in "2006-01" form.
func Parse(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, fmt.Errorf("invalid period %q: %w", s, err)
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

// FromParts builds a Month from separate year and month fields, as they
// appear in the vehicle registration source.
func FromParts(year, month int) (Month, error) {
	if year < 1900 || year > 2200 {
		return Month{}, fmt.Errorf("invalid year %d", year)
	}
	if month < 1 || month > 12 {
		return Month{}, fmt.Errorf("invalid month %d", month)
	}
	return Month{Year: year, Month: time.Month(month)}, nil
}

// FromTime truncates a timestamp to its month bucket.
func FromTime(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// IsZero reports whether m is the zero value.
func (m Month) IsZero() bool {
	return m.Year == 0 && m.Month == 0
}

// Index returns the absolute month number, the sort key for period order.
func (m Month) Index() int {
	return m.Year*12 + int(m.Month) - 1
}

// Before reports whether m precedes other.
func (m Month) Before(other Month) bool {
	return m.Index() < other.Index()
}

// AddMonths returns the month n months after m (n may be negative).
func (m Month) AddMonths(n int) Month {
	idx := m.Index() + n
	y, mo := idx/12, idx%12
	if mo < 0 {
		mo += 12
		y--
	}
	return Month{Year: y, Month: time.Month(mo + 1)}
}
