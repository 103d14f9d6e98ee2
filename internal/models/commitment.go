package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// WeekdaySet is a bitmask of time.Weekday values. Bit n is set when weekday n is included.
type WeekdaySet uint8

// NewWeekdaySet builds a set from the provided weekdays.
func NewWeekdaySet(days ...time.Weekday) WeekdaySet {
	var set WeekdaySet
	for _, d := range days {
		set |= 1 << uint(d)
	}
	return set
}

// Has reports whether the weekday is part of the set.
func (s WeekdaySet) Has(d time.Weekday) bool {
	return s&(1<<uint(d)) != 0
}

// Intersects reports whether both sets share at least one weekday.
func (s WeekdaySet) Intersects(other WeekdaySet) bool {
	return s&other != 0
}

// Days lists the weekdays in the set starting from Sunday.
func (s WeekdaySet) Days() []time.Weekday {
	days := make([]time.Weekday, 0, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		if s.Has(d) {
			days = append(days, d)
		}
	}
	return days
}

// MarshalJSON encodes the set as upper-case weekday names.
func (s WeekdaySet) MarshalJSON() ([]byte, error) {
	names := make([]string, 0, 7)
	for _, d := range s.Days() {
		names = append(names, strings.ToUpper(d.String()))
	}
	return json.Marshal(names)
}

// UnmarshalJSON decodes weekday names (case-insensitive).
func (s *WeekdaySet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	set, err := ParseWeekdays(names)
	if err != nil {
		return err
	}
	*s = set
	return nil
}

// ParseWeekdays converts weekday names into a set.
func ParseWeekdays(names []string) (WeekdaySet, error) {
	var set WeekdaySet
	for _, name := range names {
		day, ok := weekdayNames[strings.ToUpper(strings.TrimSpace(name))]
		if !ok {
			return 0, fmt.Errorf("unknown weekday %q", name)
		}
		set |= NewWeekdaySet(day)
	}
	return set, nil
}

var weekdayNames = map[string]time.Weekday{
	"SUNDAY":    time.Sunday,
	"MONDAY":    time.Monday,
	"TUESDAY":   time.Tuesday,
	"WEDNESDAY": time.Wednesday,
	"THURSDAY":  time.Thursday,
	"FRIDAY":    time.Friday,
	"SATURDAY":  time.Saturday,
}

// ClockTime is a time of day expressed in minutes since midnight.
type ClockTime int

// ParseClockTime parses "HH:MM".
func ParseClockTime(raw string) (ClockTime, error) {
	t, err := time.Parse("15:04", raw)
	if err != nil {
		return 0, fmt.Errorf("parse clock time %q: %w", raw, err)
	}
	return ClockTime(t.Hour()*60 + t.Minute()), nil
}

// String renders the clock time as "HH:MM".
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// MarshalJSON encodes the clock time as "HH:MM".
func (c ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON decodes "HH:MM".
func (c *ClockTime) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseClockTime(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Validation errors for time commitments.
var (
	ErrEmptyWeekdays     = errors.New("at least one weekday is required")
	ErrInvalidDateRange  = errors.New("start date must not be after end date")
	ErrInvalidTimeWindow = errors.New("start time must be before end time")
)

// TimeCommitment is a recurring weekly meeting pattern: a date range, a set of weekdays and a daily
// time window. EndDate is the last meeting day (inclusive); the window is [StartTime, EndTime).
type TimeCommitment struct {
	StartDate time.Time  `db:"start_date" json:"start_date"`
	EndDate   time.Time  `db:"end_date" json:"end_date"`
	Weekdays  WeekdaySet `db:"weekdays" json:"weekdays"`
	StartTime ClockTime  `db:"start_minute" json:"start_time"`
	EndTime   ClockTime  `db:"end_minute" json:"end_time"`
}

// Validate checks the commitment is well formed.
func (c TimeCommitment) Validate() error {
	if c.Weekdays == 0 {
		return ErrEmptyWeekdays
	}
	if c.StartDate.IsZero() || c.EndDate.IsZero() || truncateDay(c.StartDate).After(truncateDay(c.EndDate)) {
		return ErrInvalidDateRange
	}
	if c.StartTime < 0 || c.EndTime > 24*60 || c.StartTime >= c.EndTime {
		return ErrInvalidTimeWindow
	}
	return nil
}

// rangeEnd is the exclusive upper bound of the date range.
func (c TimeCommitment) rangeEnd() time.Time {
	return truncateDay(c.EndDate).AddDate(0, 0, 1)
}

// DateRangeOverlaps reports whether the half-open date ranges intersect.
func (c TimeCommitment) DateRangeOverlaps(other TimeCommitment) bool {
	return truncateDay(c.StartDate).Before(other.rangeEnd()) && truncateDay(other.StartDate).Before(c.rangeEnd())
}

// WindowOverlaps reports whether the daily time windows intersect.
func (c TimeCommitment) WindowOverlaps(other TimeCommitment) bool {
	return c.StartTime < other.EndTime && other.StartTime < c.EndTime
}

// Overlaps holds when the date ranges, the weekday sets and the daily windows all intersect.
func (c TimeCommitment) Overlaps(other TimeCommitment) bool {
	return c.DateRangeOverlaps(other) && c.Weekdays.Intersects(other.Weekdays) && c.WindowOverlaps(other)
}

// SessionMinutes is the length of one meeting.
func (c TimeCommitment) SessionMinutes() int {
	return int(c.EndTime - c.StartTime)
}

// Sessions enumerates every meeting date.
func (c TimeCommitment) Sessions() []time.Time {
	if c.Weekdays == 0 || c.StartDate.IsZero() || c.EndDate.IsZero() {
		return nil
	}
	var sessions []time.Time
	end := c.rangeEnd()
	for day := truncateDay(c.StartDate); day.Before(end); day = day.AddDate(0, 0, 1) {
		if c.Weekdays.Has(day.Weekday()) {
			sessions = append(sessions, day)
		}
	}
	return sessions
}

// ContactMinutes is the total meeting time across all sessions.
func (c TimeCommitment) ContactMinutes() int {
	return len(c.Sessions()) * c.SessionMinutes()
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
