package models

import "time"

// GradedItemKind distinguishes the two families of graded work.
type GradedItemKind string

// Supported graded item kinds.
const (
	GradedItemAssignment GradedItemKind = "ASSIGNMENT"
	GradedItemQuiz       GradedItemKind = "QUIZ"
)

// GradedItem is an assignment or quiz belonging to an offering.
type GradedItem struct {
	ID         string         `db:"id" json:"id"`
	OfferingID string         `db:"offering_id" json:"offering_id"`
	Kind       GradedItemKind `db:"kind" json:"kind"`
	Title      string         `db:"title" json:"title"`
	FullMark   int            `db:"full_mark" json:"full_mark"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}

// Achievement is the mark a learner obtained on a graded item.
type Achievement struct {
	ID           string    `db:"id" json:"id"`
	GradedItemID string    `db:"graded_item_id" json:"graded_item_id"`
	LearnerID    string    `db:"learner_id" json:"learner_id"`
	AchievedMark int       `db:"achieved_mark" json:"achieved_mark"`
	Feedback     *string   `db:"feedback" json:"feedback,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// StandingItem is one line of a learner's breakdown.
type StandingItem struct {
	GradedItemID string         `json:"graded_item_id"`
	Title        string         `json:"title"`
	Kind         GradedItemKind `json:"kind"`
	FullMark     int            `json:"full_mark"`
	AchievedMark int            `json:"achieved_mark"`
	Submitted    bool           `json:"submitted"`
}

// Standing is the read view of a learner's results in an offering.
type Standing struct {
	OfferingID         string           `json:"offering_id"`
	LearnerID          string           `json:"learner_id"`
	EnrollmentID       string           `json:"enrollment_id"`
	Status             EnrollmentStatus `json:"status"`
	TotalMark          int              `json:"total_mark"`
	Scores             Scores           `json:"scores"`
	AssignmentsPercent int              `json:"assignments_percent"`
	QuizzesPercent     int              `json:"quizzes_percent"`
	Items              []StandingItem   `json:"items"`
}

// RecomputeSummary reports the outcome of one offering recomputation.
type RecomputeSummary struct {
	OfferingID  string `json:"offering_id"`
	TotalMark   int    `json:"total_mark"`
	Enrollments int    `json:"enrollments"`
	Skipped     bool   `json:"skipped"`
}
