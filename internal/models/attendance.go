package models

import "time"

// AttendanceRecord marks one enrollment present or absent on one session date.
type AttendanceRecord struct {
	ID           string    `db:"id" json:"id"`
	OfferingID   string    `db:"offering_id" json:"offering_id"`
	EnrollmentID string    `db:"enrollment_id" json:"enrollment_id"`
	SessionDate  time.Time `db:"session_date" json:"session_date"`
	Present      bool      `db:"present" json:"present"`
	RecordedAt   time.Time `db:"recorded_at" json:"recorded_at"`
}

// SessionAttendance summarises attendance taken on one session date.
type SessionAttendance struct {
	Date     string `json:"date"`
	Recorded bool   `json:"recorded"`
	Present  int    `json:"present"`
	Absent   int    `json:"absent"`
}

// AbsenceRate is a learner's absences over the sessions recorded for them. Rate is a whole percent.
type AbsenceRate struct {
	EnrollmentID string `json:"enrollment_id"`
	LearnerID    string `json:"learner_id"`
	Sessions     int    `json:"sessions"`
	Absences     int    `json:"absences"`
	Rate         int    `json:"absence_rate"`
}

// LearnerAbsences lists the dates a learner missed in an offering.
type LearnerAbsences struct {
	OfferingID string `json:"offering_id"`
	AbsenceRate
	AbsentDates []string `json:"absent_dates"`
}
