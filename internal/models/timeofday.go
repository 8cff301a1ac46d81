package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimeOfDay is a clock time within a single day with minute precision,
// stored as minutes since midnight. It serializes as "HH:mm".
type TimeOfDay int

const maxTimeOfDay TimeOfDay = 24*60 - 1

// ParseTimeOfDay parses an "HH:mm" string.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("time of day %q out of range", s)
	}
	return TimeOfDay(h*60 + m), nil
}

// TimeOfDayFrom extracts the time of day from a timestamp, truncating to the minute.
func TimeOfDayFrom(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// At anchors the time of day to the given calendar date, in that date's location.
func (t TimeOfDay) At(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), int(t)/60, int(t)%60, 0, 0, date.Location())
}

// Add shifts the time of day forward, rounding to the nearest minute and
// clamping at 23:59 so a shifted goal never spills into the next day.
func (t TimeOfDay) Add(d time.Duration) TimeOfDay {
	shifted := t + TimeOfDay(d.Round(time.Minute)/time.Minute)
	if shifted > maxTimeOfDay {
		return maxTimeOfDay
	}
	if shifted < 0 {
		return 0
	}
	return shifted
}

// Sub returns the duration from o to t.
func (t TimeOfDay) Sub(o TimeOfDay) time.Duration {
	return time.Duration(t-o) * time.Minute
}

// MarshalJSON implements json.Marshaler.
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// TimeOfDayPtr is a convenience for building optional schedule times.
func TimeOfDayPtr(t TimeOfDay) *TimeOfDay { return &t }
