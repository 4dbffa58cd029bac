package attendance

import (
	"fmt"
	"time"
)

// Status is the derived per-day attendance state. ABSENT is never persisted;
// it exists only in read-side projections.
type Status string

const (
	StatusPresent Status = "PRESENT"
	StatusLate    Status = "LATE"
	StatusAbsent  Status = "ABSENT"
)

// Valid returns true when the status is a supported value.
func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusLate, StatusAbsent:
		return true
	default:
		return false
	}
}

// Clock is a time-of-day boundary in seconds since midnight.
type Clock int

// ParseClock parses "HH:MM:SS" into a Clock.
func ParseClock(s string) (Clock, error) {
	var h, m, sec int
	if _, err := fmt.Sscanf(s, "%d:%d:%d", &h, &m, &sec); err != nil {
		return 0, fmt.Errorf("invalid clock %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 || sec < 0 || sec > 59 {
		return 0, fmt.Errorf("invalid clock %q: out of range", s)
	}
	return Clock(h*3600 + m*60 + sec), nil
}

// MustClock is ParseClock for compile-time constants; panics on bad input.
func MustClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", int(c)/3600, int(c)%3600/60, int(c)%60)
}

// classify applies the lateness cutoff to a check-in timestamp. The date
// component is irrelevant; only the UTC time-of-day is compared, with
// at-or-before the cutoff counting as PRESENT.
func classify(t time.Time, cutoff Clock) Status {
	u := t.UTC()
	secs := u.Hour()*3600 + u.Minute()*60 + u.Second()
	if Clock(secs) <= cutoff {
		return StatusPresent
	}
	return StatusLate
}

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)
