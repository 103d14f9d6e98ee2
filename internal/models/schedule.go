package models

// Conflict dimensions.
const (
	ConflictDimensionRoom       = "ROOM"
	ConflictDimensionInstructor = "INSTRUCTOR"
)

// ScheduleConflict describes an existing offering that collides with a proposal.
type ScheduleConflict struct {
	OfferingID   string         `json:"offering_id"`
	SubjectID    string         `json:"subject_id"`
	RoomID       string         `json:"room_id"`
	InstructorID string         `json:"instructor_id,omitempty"`
	Commitment   TimeCommitment `json:"commitment"`
	Dimension    string         `json:"dimension"`
}

// NewScheduleConflict builds a conflict entry for the given offering.
func NewScheduleConflict(dimension string, offering CourseOffering) ScheduleConflict {
	conflict := ScheduleConflict{
		OfferingID: offering.ID,
		SubjectID:  offering.SubjectID,
		RoomID:     offering.RoomID,
		Commitment: offering.TimeCommitment,
		Dimension:  dimension,
	}
	if offering.HasInstructor() {
		conflict.InstructorID = *offering.InstructorID
	}
	return conflict
}

// ScheduleConflictError is returned when a proposal collides with existing offerings. Conflict is
// the first collision; Errors lists all of them.
type ScheduleConflictError struct {
	Type     string             `json:"type"`
	Message  string             `json:"message"`
	Conflict ScheduleConflict   `json:"conflict"`
	Errors   []ScheduleConflict `json:"errors,omitempty"`
}

// Error implements the error interface for conflict errors.
func (e *ScheduleConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

// ScheduleDiagnosis reports every problem found for a proposal without writing anything.
type ScheduleDiagnosis struct {
	Feasible  bool               `json:"feasible"`
	Conflicts []ScheduleConflict `json:"conflicts,omitempty"`
	Problems  []string           `json:"problems,omitempty"`
}
