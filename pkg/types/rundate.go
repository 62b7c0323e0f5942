package types

import (
	"fmt"
	"strings"
	"time"
)

const runDateLayout = "2006-01-02"

// RunDate is the logical date of a pipeline run. It identifies the snapshot
// table of that run and doubles as the run's batch id.
type RunDate struct {
	year  int
	month time.Month
	day   int
}

// NewRunDate returns the run date of t in UTC.
func NewRunDate(t time.Time) RunDate {
	y, m, d := t.UTC().Date()
	return RunDate{year: y, month: m, day: d}
}

// ParseRunDate parses a YYYY-MM-DD date.
func ParseRunDate(s string) (RunDate, error) {
	t, err := time.Parse(runDateLayout, strings.TrimSpace(s))
	if err != nil {
		return RunDate{}, fmt.Errorf("invalid run date %q: %w", s, err)
	}
	return NewRunDate(t), nil
}

// IsZero reports whether the date is unset.
func (d RunDate) IsZero() bool {
	return d.year == 0 && d.month == 0 && d.day == 0
}

// Time returns midnight UTC of the run date.
func (d RunDate) Time() time.Time {
	return time.Date(d.year, d.month, d.day, 0, 0, 0, 0, time.UTC)
}

// String returns the YYYY-MM-DD form.
func (d RunDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.year, int(d.month), d.day)
}

// TableSuffix returns the YYYY_MM_DD form used in snapshot table names.
func (d RunDate) TableSuffix() string {
	return fmt.Sprintf("%04d_%02d_%02d", d.year, int(d.month), d.day)
}

// BatchID returns the batch identifier of a run on this date.
func (d RunDate) BatchID() string {
	return d.String()
}

// Before reports whether d is strictly earlier than other.
func (d RunDate) Before(other RunDate) bool {
	return d.Time().Before(other.Time())
}

// MarshalText implements encoding.TextMarshaler.
func (d RunDate) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *RunDate) UnmarshalText(b []byte) error {
	parsed, err := ParseRunDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
