package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses. Active means no standing has been computed yet; Dropped is terminal.
const (
	EnrollmentStatusActive  EnrollmentStatus = "ACTIVE"
	EnrollmentStatusPass    EnrollmentStatus = "PASS"
	EnrollmentStatusFail    EnrollmentStatus = "FAIL"
	EnrollmentStatusDropped EnrollmentStatus = "DROPPED"
)

// DefaultPassMark is the overall score at or above which a learner passes.
const DefaultPassMark = 50

// NextStatus derives the status after a recomputation. Dropped never changes.
func NextStatus(current EnrollmentStatus, overall, passMark int) EnrollmentStatus {
	if current == EnrollmentStatusDropped {
		return EnrollmentStatusDropped
	}
	if overall >= passMark {
		return EnrollmentStatusPass
	}
	return EnrollmentStatusFail
}

// Scores holds the derived percentages of one enrollment. Overall is always Assignments + Quizzes.
type Scores struct {
	Assignments int `db:"assignments_score" json:"assignments_score"`
	Quizzes     int `db:"quizzes_score" json:"quizzes_score"`
	Overall     int `db:"overall_score" json:"overall_score"`
}

// Enrollment captures a learner's registration to an offering and their derived standing.
type Enrollment struct {
	ID         string           `db:"id" json:"id"`
	OfferingID string           `db:"offering_id" json:"offering_id"`
	LearnerID  string           `db:"learner_id" json:"learner_id"`
	Status     EnrollmentStatus `db:"status" json:"status"`
	Scores
	EnrolledAt time.Time  `db:"enrolled_at" json:"enrolled_at"`
	DroppedAt  *time.Time `db:"dropped_at" json:"dropped_at,omitempty"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// Dropped reports whether the enrollment has been withdrawn.
func (e Enrollment) Dropped() bool {
	return e.Status == EnrollmentStatusDropped
}
