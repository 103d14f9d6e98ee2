package models

import "time"

// CourseOffering is a scheduled instance of a subject: a room, an optional instructor and a
// recurring time commitment. TotalMark is derived from the offering's graded items.
type CourseOffering struct {
	ID           string  `db:"id" json:"id"`
	SubjectID    string  `db:"subject_id" json:"subject_id"`
	RoomID       string  `db:"room_id" json:"room_id"`
	InstructorID *string `db:"instructor_id" json:"instructor_id,omitempty"`
	Title        string  `db:"title" json:"title"`
	Capacity     int     `db:"capacity" json:"capacity"`
	TimeCommitment
	ContactMinutes int       `db:"contact_minutes" json:"contact_minutes"`
	TotalMark      int       `db:"total_mark" json:"total_mark"`
	Completed      bool      `db:"completed" json:"completed"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// HasInstructor reports whether an instructor is assigned.
func (o CourseOffering) HasInstructor() bool {
	return o.InstructorID != nil && *o.InstructorID != ""
}

// Ended reports whether the last meeting day lies strictly before the given day.
func (o CourseOffering) Ended(now time.Time) bool {
	return truncateDay(now).After(truncateDay(o.EndDate))
}

// OfferingFilter describes query params for listing offerings.
type OfferingFilter struct {
	SubjectID    string
	RoomID       string
	InstructorID string
	Completed    *bool
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}

// ScheduleProposal is a candidate placement checked before any write. ExcludeOfferingID names the
// offering being rescheduled so it never conflicts with itself.
type ScheduleProposal struct {
	ExcludeOfferingID string
	SubjectID         string
	RoomID            string
	InstructorID      string
	Capacity          int
	Commitment        TimeCommitment
}

// Session is a single meeting of an offering.
type Session struct {
	Date      string    `json:"date"`
	Weekday   string    `json:"weekday"`
	StartTime ClockTime `json:"start_time"`
	EndTime   ClockTime `json:"end_time"`
}

// SessionCalendar lists every meeting of an offering.
type SessionCalendar struct {
	OfferingID     string    `json:"offering_id"`
	Sessions       []Session `json:"sessions"`
	ContactMinutes int       `json:"contact_minutes"`
}
