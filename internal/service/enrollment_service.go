package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/studycenter-api/internal/dto"
	"github.com/noah-isme/studycenter-api/internal/models"
	appErrors "github.com/noah-isme/studycenter-api/pkg/errors"
	"github.com/noah-isme/studycenter-api/pkg/logger"
)

type enrollmentStore interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindByOfferingAndLearner(ctx context.Context, exec sqlx.ExtContext, offeringID, learnerID string) (*models.Enrollment, error)
	ListByOffering(ctx context.Context, exec sqlx.ExtContext, offeringID string) ([]models.Enrollment, error)
	CountActive(ctx context.Context, exec sqlx.ExtContext, offeringID string) (int, error)
	Create(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) error
	MarkDropped(ctx context.Context, exec sqlx.ExtContext, id string, droppedAt time.Time) error
}

type learnerAchievementLister interface {
	ListByLearner(ctx context.Context, offeringID, learnerID string) ([]models.Achievement, error)
}

// EnrollmentService manages learner enrollments and exposes their standing.
type EnrollmentService struct {
	enrollments  enrollmentStore
	offerings    offeringReader
	items        gradedItemLister
	achievements learnerAchievementLister
	mutator      offeringMutator
	engine       *GradeEngine
	validator    *validator.Validate
	logger       *zap.Logger
	now          func() time.Time
}

// NewEnrollmentService constructs the service.
func NewEnrollmentService(
	enrollments enrollmentStore,
	offerings offeringReader,
	items gradedItemLister,
	achievements learnerAchievementLister,
	mutator offeringMutator,
	engine *GradeEngine,
	validate *validator.Validate,
	logger *zap.Logger,
) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if engine == nil {
		engine = NewGradeEngine(models.DefaultPassMark)
	}
	return &EnrollmentService{
		enrollments:  enrollments,
		offerings:    offerings,
		items:        items,
		achievements: achievements,
		mutator:      mutator,
		engine:       engine,
		validator:    validate,
		logger:       logger,
		now:          time.Now,
	}
}

// ListByOffering returns all enrollments of an offering, dropped ones included.
func (s *EnrollmentService) ListByOffering(ctx context.Context, offeringID string) ([]models.Enrollment, error) {
	if _, err := findOffering(ctx, s.offerings, nil, offeringID); err != nil {
		return nil, err
	}
	enrollments, err := s.enrollments.ListByOffering(ctx, nil, offeringID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, nil
}

// Enroll adds a learner to an offering while seats remain. Scores reflect current graded work.
func (s *EnrollmentService) Enroll(ctx context.Context, offeringID string, req dto.EnrollRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	learnerID := strings.TrimSpace(req.LearnerID)
	enrollment := &models.Enrollment{OfferingID: offeringID, LearnerID: learnerID, Status: models.EnrollmentStatusActive}

	_, err := s.mutator.Mutate(ctx, offeringID, func(ctx context.Context, tx *sqlx.Tx, offering *models.CourseOffering) error {
		if err := ensureOpen(offering); err != nil {
			return err
		}
		existing, err := s.enrollments.FindByOfferingAndLearner(ctx, tx, offeringID, learnerID)
		switch {
		case err == nil && !existing.Dropped():
			return appErrors.Clone(appErrors.ErrConflict, "learner is already enrolled")
		case err != nil && err != sql.ErrNoRows:
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
		}
		active, err := s.enrollments.CountActive(ctx, tx, offeringID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
		}
		if active >= offering.Capacity {
			return appErrors.Clone(appErrors.ErrCapacityExceeded, fmt.Sprintf("offering is full (%d seats)", offering.Capacity))
		}
		enrollment.EnrolledAt = s.now().UTC()
		if err := s.enrollments.Create(ctx, tx, enrollment); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.WithContext(ctx, s.logger).Info("learner enrolled", zap.String("offering_id", offeringID), zap.String("learner_id", learnerID))
	return s.find(ctx, enrollment.ID)
}

// Drop moves an enrollment to the terminal dropped state.
func (s *EnrollmentService) Drop(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if enrollment.Dropped() {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "enrollment already dropped")
	}
	_, err = s.mutator.Mutate(ctx, enrollment.OfferingID, func(ctx context.Context, tx *sqlx.Tx, offering *models.CourseOffering) error {
		if err := ensureOpen(offering); err != nil {
			return err
		}
		current, err := s.enrollments.FindByOfferingAndLearner(ctx, tx, enrollment.OfferingID, enrollment.LearnerID)
		if err != nil && err != sql.ErrNoRows {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
		}
		if current == nil || current.ID != id || current.Dropped() {
			return appErrors.Clone(appErrors.ErrInvalidState, "enrollment already dropped")
		}
		if err := s.enrollments.MarkDropped(ctx, tx, id, s.now().UTC()); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to drop enrollment")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.WithContext(ctx, s.logger).Info("enrollment dropped", zap.String("enrollment_id", id), zap.String("offering_id", enrollment.OfferingID))
	return s.find(ctx, id)
}

// Standing returns a learner's scores, status and per-item breakdown in an offering.
func (s *EnrollmentService) Standing(ctx context.Context, offeringID, learnerID string) (*models.Standing, error) {
	offering, err := findOffering(ctx, s.offerings, nil, offeringID)
	if err != nil {
		return nil, err
	}
	enrollment, err := s.enrollments.FindByOfferingAndLearner(ctx, nil, offeringID, learnerID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "learner is not enrolled in this offering")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	items, err := s.items.ListByOffering(ctx, nil, offeringID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load graded items")
	}
	achievements, err := s.achievements.ListByLearner(ctx, offeringID, learnerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load achievements")
	}
	lines, assignmentsPct, quizzesPct := s.engine.Breakdown(items, achievements)
	return &models.Standing{
		OfferingID:         offeringID,
		LearnerID:          learnerID,
		EnrollmentID:       enrollment.ID,
		Status:             enrollment.Status,
		TotalMark:          offering.TotalMark,
		Scores:             enrollment.Scores,
		AssignmentsPercent: assignmentsPct,
		QuizzesPercent:     quizzesPct,
		Items:              lines,
	}, nil
}

func (s *EnrollmentService) find(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.enrollments.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}
