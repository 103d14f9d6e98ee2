package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/studycenter-api/internal/dto"
	"github.com/noah-isme/studycenter-api/internal/models"
	appErrors "github.com/noah-isme/studycenter-api/pkg/errors"
	"github.com/noah-isme/studycenter-api/pkg/logger"
)

type achievementWriter interface {
	Upsert(ctx context.Context, exec sqlx.ExtContext, achievement *models.Achievement) error
}

type learnerEnrollmentFinder interface {
	FindByOfferingAndLearner(ctx context.Context, exec sqlx.ExtContext, offeringID, learnerID string) (*models.Enrollment, error)
}

// AchievementService records learners' marks and scores quiz submissions.
type AchievementService struct {
	items        gradedItemReader
	achievements achievementWriter
	enrollments  learnerEnrollmentFinder
	mutator      offeringMutator
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewAchievementService constructs the service.
func NewAchievementService(items gradedItemReader, achievements achievementWriter, enrollments learnerEnrollmentFinder, mutator offeringMutator, validate *validator.Validate, logger *zap.Logger) *AchievementService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AchievementService{items: items, achievements: achievements, enrollments: enrollments, mutator: mutator, validator: validate, logger: logger}
}

// Record enters or replaces a learner's mark on a graded item. Marks above the full mark are kept.
func (s *AchievementService) Record(ctx context.Context, itemID string, req dto.RecordAchievementRequest) (*models.Achievement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid achievement payload")
	}
	item, err := findGradedItem(ctx, s.items, itemID)
	if err != nil {
		return nil, err
	}
	return s.record(ctx, item, req.LearnerID, *req.AchievedMark, req.Feedback)
}

// SubmitQuiz scores a quiz attempt as round(correct/total*fullMark) and records it.
func (s *AchievementService) SubmitQuiz(ctx context.Context, itemID string, req dto.QuizSubmissionRequest) (*models.Achievement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid quiz submission")
	}
	if *req.Correct > req.Total {
		return nil, appErrors.Clone(appErrors.ErrValidation, "correct answers cannot exceed total questions")
	}
	item, err := findGradedItem(ctx, s.items, itemID)
	if err != nil {
		return nil, err
	}
	if item.Kind != models.GradedItemQuiz {
		return nil, appErrors.Clone(appErrors.ErrValidation, "submissions are only accepted for quizzes")
	}
	mark := roundRatio(*req.Correct*item.FullMark, req.Total)
	return s.record(ctx, item, req.LearnerID, mark, nil)
}

func (s *AchievementService) record(ctx context.Context, item *models.GradedItem, learnerID string, mark int, feedback *string) (*models.Achievement, error) {
	achievement := &models.Achievement{
		GradedItemID: item.ID,
		LearnerID:    learnerID,
		AchievedMark: mark,
		Feedback:     feedback,
	}
	_, err := s.mutator.Mutate(ctx, item.OfferingID, func(ctx context.Context, tx *sqlx.Tx, offering *models.CourseOffering) error {
		if err := ensureOpen(offering); err != nil {
			return err
		}
		enrollment, err := s.enrollments.FindByOfferingAndLearner(ctx, tx, offering.ID, learnerID)
		if err != nil {
			if err == sql.ErrNoRows {
				return appErrors.Clone(appErrors.ErrNotFound, "learner is not enrolled in this offering")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
		}
		if enrollment.Dropped() {
			return appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("learner %s dropped this offering", learnerID))
		}
		if err := s.achievements.Upsert(ctx, tx, achievement); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store achievement")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if mark > item.FullMark {
		logger.WithContext(ctx, s.logger).Info("achievement exceeds full mark", zap.String("item_id", item.ID), zap.String("learner_id", learnerID), zap.Int("mark", mark), zap.Int("full_mark", item.FullMark))
	}
	return achievement, nil
}
