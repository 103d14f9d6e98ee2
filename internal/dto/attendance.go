package dto

// AttendanceEntry marks one enrollment for the session.
type AttendanceEntry struct {
	EnrollmentID string `json:"enrollment_id" validate:"required"`
	Present      *bool  `json:"present" validate:"required"`
}

// RecordAttendanceRequest takes attendance for one session date of an offering.
type RecordAttendanceRequest struct {
	Date    string            `json:"date" validate:"required,datetime=2006-01-02"`
	Entries []AttendanceEntry `json:"entries" validate:"required,min=1,dive"`
}
