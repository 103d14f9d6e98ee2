package dto

// CreateGradedItemRequest adds an assignment or quiz to an offering.
type CreateGradedItemRequest struct {
	Kind     string `json:"kind" validate:"required,oneof=ASSIGNMENT QUIZ"`
	Title    string `json:"title" validate:"required,max=200"`
	FullMark int    `json:"full_mark" validate:"required,min=1"`
}

// UpdateGradedItemRequest edits title and full mark. Kind is immutable.
type UpdateGradedItemRequest struct {
	Title    string `json:"title" validate:"required,max=200"`
	FullMark int    `json:"full_mark" validate:"required,min=1"`
}

// RecordAchievementRequest enters or replaces a learner's mark.
type RecordAchievementRequest struct {
	LearnerID    string  `json:"learner_id" validate:"required"`
	AchievedMark *int    `json:"achieved_mark" validate:"required,min=0"`
	Feedback     *string `json:"feedback" validate:"omitempty,max=2000"`
}

// QuizSubmissionRequest scores a quiz attempt from its answer counts.
type QuizSubmissionRequest struct {
	LearnerID string `json:"learner_id" validate:"required"`
	Correct   *int   `json:"correct" validate:"required,min=0"`
	Total     int    `json:"total" validate:"required,min=1"`
}

// EnrollRequest enrolls a learner into an offering.
type EnrollRequest struct {
	LearnerID string `json:"learner_id" validate:"required"`
}

// RecomputeAllRequest queues recomputation. An empty list means every offering.
type RecomputeAllRequest struct {
	OfferingIDs []string `json:"offering_ids" validate:"omitempty,dive,required"`
}

// RecomputeAllResponse reports queued maintenance work.
type RecomputeAllResponse struct {
	Queued int      `json:"queued"`
	JobIDs []string `json:"job_ids"`
}
